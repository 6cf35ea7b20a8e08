package swap

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Name suffixes for artifacts this package creates. Both are recognizable
// so startup reconciliation can find strays left behind by a crash.
const (
	tempSuffix    = ".reclaimer.tmp.mkv" // Encoder output not yet verified.
	stagingSuffix = ".reclaimer.staging" // Candidate mid-move into the original's directory.
	backupSuffix  = ".bak"               // Displaced original awaiting commit.
)

// TempOutputPath returns a fresh, unique path for an encoder output
// belonging to the named original. The leading dot keeps half-written
// output out of media library scans.
func TempOutputPath(dir, originalBase string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", originalBase, shortID(), tempSuffix))
}

func stagingPath(dir, originalBase string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", originalBase, shortID(), stagingSuffix))
}

// BackupPath returns the backup location for an original file.
func BackupPath(original string) string {
	return original + backupSuffix
}

// IsArtifact reports whether a file name is one of this package's
// intermediate artifacts (temp encoder output or staging file). Backups are
// deliberately excluded; they are handled by Reconcile, never by cleanup.
func IsArtifact(name string) bool {
	return strings.HasSuffix(name, tempSuffix) || strings.HasSuffix(name, stagingSuffix)
}

// IsBackup reports whether a file name is a replace-protocol backup.
func IsBackup(name string) bool {
	return strings.HasSuffix(name, backupSuffix)
}

func shortID() string {
	return uuid.NewString()[:8]
}
