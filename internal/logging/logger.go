// Package logging constructs the process-wide hclog logger: level from
// config, color auto-detection on TTYs, and an optional append-to-file sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/config"
)

// New builds the root logger. When cfg.LogFile is set, output is duplicated
// to that file (plain, uncolored). The returned closer is non-nil only when
// a file sink was opened.
func New(cfg *config.Config) (hclog.Logger, io.Closer, error) {
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		return nil, nil, fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}

	var out io.Writer = os.Stdout
	var closer io.Closer
	if cfg.LogFile != "" {
		if dir := filepath.Dir(cfg.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:   "reclaimer",
		Level:  level,
		Output: out,
		Color:  colorMode(cfg),
	})
	return log, closer, nil
}

// colorMode disables color whenever output is duplicated to a file, since
// hclog colors the whole writer, not per-sink.
func colorMode(cfg *config.Config) hclog.ColorOption {
	if cfg.LogFile != "" || os.Getenv("NO_COLOR") != "" {
		return hclog.ColorOff
	}
	return hclog.AutoColor
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
