package swap

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/probe"
)

// Replaceable clock for stale-age tests.
var now = time.Now

// ProbeFunc abstracts the re-probe done on suspicious originals during
// reconciliation.
type ProbeFunc func(ctx context.Context, path string) (*probe.MediaDescriptor, error)

// Reconcile scans the given roots for leftover .bak files from a crashed
// run and repairs what it safely can:
//
//   - original missing: the crash happened between backup and candidate
//     install, so the backup is restored to the original path;
//   - original present: the backup is left untouched, but the original is
//     re-probed; a probe failure is logged as a warning for human review.
//     A live file is never overwritten based on a guess.
//
// Returns the number of backups restored.
func Reconcile(ctx context.Context, roots []string, probeFn ProbeFunc, log hclog.Logger) int {
	restored := 0
	for _, root := range roots {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !IsBackup(d.Name()) {
				return nil
			}

			original := strings.TrimSuffix(path, backupSuffix)
			if _, statErr := os.Stat(original); statErr == nil {
				if _, probeErr := probeFn(ctx, original); probeErr != nil {
					log.Warn("backup exists and original is unreadable, leaving both for review",
						"original", original, "backup", path, "error", probeErr)
				}
				return nil
			}

			if renameErr := renameFn(path, original); renameErr != nil {
				log.Error("failed to restore backup", "backup", path, "error", renameErr)
				return nil
			}
			log.Info("restored original from backup left by a previous run", "path", original)
			restored++
			return nil
		})
	}
	return restored
}

// CleanStaleTemp deletes unconsumed temp encoder outputs and staging files
// older than maxAge. These are the residue of crashed or killed encode
// attempts; anything younger may belong to an in-flight worker and is left
// alone.
func CleanStaleTemp(roots []string, maxAge time.Duration, log hclog.Logger) int {
	cutoff := now().Add(-maxAge)
	removed := 0
	for _, root := range roots {
		if root == "" {
			continue
		}
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !IsArtifact(d.Name()) {
				return nil
			}
			fi, err := d.Info()
			if err != nil || fi.ModTime().After(cutoff) {
				return nil
			}
			if err := removeFn(path); err != nil {
				log.Warn("failed to delete stale temp output", "path", path, "error", err)
				return nil
			}
			log.Info("deleted stale temp output", "path", path, "age", now().Sub(fi.ModTime()).Round(time.Minute))
			removed++
			return nil
		})
	}
	return removed
}
