// Package term provides terminal detection and the simple line-oriented
// prompt used for interactive run-window overrides.
package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// IsTerminal reports whether f is attached to a TTY (character device).
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Confirm prints question to w and reads a y/n answer from r. Empty or
// unreadable input yields def.
func Confirm(r io.Reader, w io.Writer, question string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(w, "%s [%s] ", question, hint)

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}
