//go:build windows

package swap

import "syscall"

// ERROR_NOT_SAME_DEVICE: MoveFile across volumes.
var errCrossDevice error = syscall.Errno(0x11)
