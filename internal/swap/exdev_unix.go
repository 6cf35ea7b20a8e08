//go:build unix

package swap

import "syscall"

// Rename across filesystems fails with EXDEV; the caller falls back to a
// copy.
var errCrossDevice error = syscall.EXDEV
