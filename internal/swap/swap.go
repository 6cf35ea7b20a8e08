// Package swap implements crash-safe substitution of an original file with
// a verified candidate, plus the startup reconciliation that repairs
// whatever a crash left behind. At no point in the protocol is the original
// unrecoverable: it exists either at its own path or at the backup path
// until the candidate is fully installed.
package swap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Replaceable function hooks so tests can simulate crashes and cross-volume
// failures at exact protocol points.
var (
	renameFn = os.Rename
	removeFn = os.Remove
)

// Status is the terminal state of one replace transaction.
type Status int

const (
	// Committed: candidate installed, backup deleted.
	Committed Status = iota
	// RolledBack: replace failed but the original was restored intact.
	RolledBack
	// Critical: replace failed AND restoring the backup also failed.
	// Manual filesystem inspection is required; a stray backup remains.
	Critical
)

func (s Status) String() string {
	switch s {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error reports a failed replace along with how far recovery got.
type Error struct {
	Status Status
	Backup string // Path of the surviving backup when Status is Critical.
	Err    error
}

func (e *Error) Error() string {
	if e.Status == Critical {
		return fmt.Sprintf("replace failed and backup restore failed, manual intervention required (backup at %s): %v", e.Backup, e.Err)
	}
	return fmt.Sprintf("replace failed, original restored: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Replace substitutes the file at finalPath for the original, using
// ordered renames with a backup so there is no window in which both copies
// are lost:
//
//  1. If the candidate sits on a different volume it is first moved into
//     the original's directory under a staging name (rename primitives need
//     same-volume operands; EXDEV triggers a copy fallback).
//  2. The original is displaced to <original>.bak, then the staged
//     candidate is renamed onto finalPath. The window between the two
//     renames is the minimal-risk point; Reconcile repairs a crash there.
//  3. On success the backup is deleted.
//
// finalPath is normally the original's path; it may differ in extension
// when the container changes. On any failure the backup is restored to the
// original path; if that restoration itself fails the returned Error
// carries Status Critical and must never be silently swallowed.
func Replace(originalPath, candidatePath, finalPath string) (Status, error) {
	dir := filepath.Dir(originalPath)

	staged := candidatePath
	if filepath.Dir(candidatePath) != dir {
		staged = stagingPath(dir, filepath.Base(originalPath))
		if err := moveFile(candidatePath, staged); err != nil {
			removeFn(staged)
			return RolledBack, &Error{Status: RolledBack, Err: fmt.Errorf("stage candidate: %w", err)}
		}
	}

	backup := BackupPath(originalPath)
	if err := renameFn(originalPath, backup); err != nil {
		removeFn(staged)
		return RolledBack, &Error{Status: RolledBack, Err: fmt.Errorf("displace original: %w", err)}
	}

	if err := renameFn(staged, finalPath); err != nil {
		// Between the two renames: the original lives only at the backup
		// path. Put it back.
		if restoreErr := renameFn(backup, originalPath); restoreErr != nil {
			return Critical, &Error{
				Status: Critical,
				Backup: backup,
				Err:    fmt.Errorf("install candidate: %v; restore backup: %w", err, restoreErr),
			}
		}
		removeFn(staged)
		return RolledBack, &Error{Status: RolledBack, Err: fmt.Errorf("install candidate: %w", err)}
	}

	// Backup removal failing is not worth a rollback; the stray .bak is
	// picked up by reconciliation and the candidate is already live.
	removeFn(backup)
	return Committed, nil
}

// moveFile renames src to dst, falling back to copy-sync-rename-delete when
// the two sit on different volumes.
func moveFile(src, dst string) error {
	err := renameFn(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return removeFn(src)
}

// copyFile writes dst via a same-directory temp file and rename, syncing
// before the rename so a crash cannot leave a torn file under dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".copy-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return renameFn(tmpName, dst)
}

func isCrossDevice(err error) bool {
	if errors.Is(err, errCrossDevice) {
		return true
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return errors.Is(le.Err, errCrossDevice)
	}
	return false
}
