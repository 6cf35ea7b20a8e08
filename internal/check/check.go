// Package check provides system diagnostics (--check mode) and pre-run
// dependency validation for the configured encoder and probe binaries.
package check

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/config"
)

// Sentinel errors returned by CheckDeps when a required tool is missing.
var (
	ErrEncoderNotFound = errors.New("encoder binary not found on PATH")
	ErrProbeNotFound   = errors.New("probe binary not found on PATH")
	ErrX265Failed      = errors.New("libx265 test encode failed")
)

// RunCheck runs the interactive --check flow: availability and version of
// the encoder and probe binaries, the HEVC encoder list, and a short libx265
// test encode. Informational only; it does not stop on failure.
func RunCheck(cfg *config.Config, log hclog.Logger) {
	log.Info("system check")

	checkBinary(cfg.EncoderBinary, log)
	checkBinary(cfg.ProbeBinary, log)
	checkHEVCEncoders(cfg.EncoderBinary, log)
	checkX265(cfg.EncoderBinary, log)
}

// checkBinary verifies bin is on PATH and logs its version string.
func checkBinary(bin string, log hclog.Logger) {
	if _, err := exec.LookPath(bin); err != nil {
		log.Error("binary not found", "binary", bin)
		return
	}
	out, err := exec.Command(bin, "-version").Output()
	if err != nil {
		log.Warn("binary found but -version failed", "binary", bin, "error", err)
		return
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	log.Info("found", "binary", bin, "version", firstLine)
}

// checkHEVCEncoders lists all HEVC-related encoders the encoder binary reports.
func checkHEVCEncoders(bin string, log hclog.Logger) {
	out, err := exec.Command(bin, "-hide_banner", "-encoders").Output()
	if err != nil {
		log.Warn("could not list encoders", "error", err)
		return
	}
	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "hevc") || strings.Contains(lower, "265") {
			log.Info("hevc encoder", "entry", strings.TrimSpace(line))
		}
	}
}

// checkX265 runs a minimal libx265 encode to verify CPU encoding works.
func checkX265(bin string, log hclog.Logger) {
	log.Info("testing libx265 encode")
	if runSilent(bin, x265TestArgs()...) {
		log.Info("libx265 works")
	} else {
		log.Error("libx265 test encode failed")
	}
}

// CheckDeps is the pre-run validation: the encoder and probe binaries must
// be on PATH and a quick libx265 encode must succeed. Returns a sentinel
// error on failure.
func CheckDeps(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.EncoderBinary); err != nil {
		return ErrEncoderNotFound
	}
	if _, err := exec.LookPath(cfg.ProbeBinary); err != nil {
		return ErrProbeNotFound
	}
	if !runSilent(cfg.EncoderBinary, x265TestArgs()...) {
		return ErrX265Failed
	}
	return nil
}

// x265TestArgs returns the arguments for a minimal libx265 test encode.
func x265TestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-c:v", "libx265",
		"-f", "null", "-",
	}
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
