// Package encoder invokes the external transcoder as a black-box
// subprocess: input path and profile in, output file (or a typed failure)
// out. Success is exit code 0 plus a non-empty output file; anything else
// is an Error and the partial output is removed.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/backmassage/reclaimer/internal/probe"
)

// Profile describes one encode invocation.
type Profile struct {
	TenBit    bool
	CRF       int
	Preset    string
	ExtraArgs []string // Extra tokens appended before the output path.
}

// Error is returned when the encoder exits non-zero or produces no output.
type Error struct {
	ExitCode int
	Stderr   string // Tail of stderr, for the audit record.
}

func (e *Error) Error() string {
	return fmt.Sprintf("encoder failed (exit %d)", e.ExitCode)
}

// ParseExtraArgs splits a shell-style token string from configuration into
// argv tokens.
func ParseExtraArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return shlex.Split(s)
}

// BuildArgs constructs the transcoder argument list for one file. All
// streams are mapped through; only video is re-encoded. The descriptor is
// used to fix up the default-audio disposition when the source default is
// not in the safe-language list.
func BuildArgs(in, out string, prof Profile, md *probe.MediaDescriptor, safeLangs []string) []string {
	args := []string{
		"-hide_banner", "-y",
		"-i", in,
		"-map", "0:v", "-map", "0:a?", "-map", "0:s?",
		"-c:v", "libx265",
		"-preset", prof.Preset,
		"-crf", fmt.Sprintf("%d", prof.CRF),
	}
	if prof.TenBit {
		args = append(args, "-profile:v", "main10", "-pix_fmt", "yuv420p10le")
	} else {
		args = append(args, "-pix_fmt", "yuv420p")
	}
	args = append(args, "-c:a", "copy", "-c:s", "copy")
	args = append(args, dispositionArgs(md, safeLangs)...)
	args = append(args, prof.ExtraArgs...)
	args = append(args, out)
	return args
}

// dispositionArgs re-points the default audio flag at the first
// safe-language stream when the source default is not itself safe. Stream
// contents are never dropped; only dispositions move.
func dispositionArgs(md *probe.MediaDescriptor, safeLangs []string) []string {
	if md == nil || len(md.AudioStreams) == 0 || len(safeLangs) == 0 {
		return nil
	}
	safe := make(map[string]bool, len(safeLangs))
	for _, l := range safeLangs {
		safe[strings.ToLower(l)] = true
	}
	// Untagged audio counts as safe; there is nothing better to prefer.
	safe[""] = true

	for _, a := range md.AudioStreams {
		if a.IsDefault && safe[strings.ToLower(a.Language)] {
			return nil
		}
	}
	for i, a := range md.AudioStreams {
		if safe[strings.ToLower(a.Language)] {
			return []string{"-disposition:a", "0", fmt.Sprintf("-disposition:a:%d", i), "default"}
		}
	}
	return nil
}

// Encode runs the transcoder and enforces the success contract. On failure
// the partial output file is removed before returning.
func Encode(ctx context.Context, bin, in, out string, prof Profile, md *probe.MediaDescriptor, safeLangs []string) error {
	args := BuildArgs(in, out, prof, md, safeLangs)
	cmd := exec.CommandContext(ctx, bin, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	if runErr != nil {
		os.Remove(out)
		return &Error{ExitCode: cmdExitCode(runErr), Stderr: stderrTail(stderrBuf.String())}
	}

	fi, err := os.Stat(out)
	if err != nil || fi.Size() == 0 {
		os.Remove(out)
		return &Error{ExitCode: 0, Stderr: "encoder exited 0 but produced no output"}
	}
	return nil
}

func cmdExitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// stderrTail keeps the last 20 lines of encoder output; that is where the
// actionable error almost always is.
func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 20 {
		lines = lines[len(lines)-20:]
	}
	return strings.Join(lines, "\n")
}
