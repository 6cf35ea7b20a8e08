package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SortOrder != SortSmallest {
		t.Errorf("SortOrder = %q, want smallest", cfg.SortOrder)
	}
	if cfg.Threshold4KKbps != 8000 || cfg.Threshold1080Kbps != 4000 {
		t.Errorf("thresholds = %d/%d, want 8000/4000", cfg.Threshold4KKbps, cfg.Threshold1080Kbps)
	}
	if cfg.Width4KCutoff != 2500 {
		t.Errorf("Width4KCutoff = %d, want 2500", cfg.Width4KCutoff)
	}
	if cfg.MinSavings != 250*1024*1024 {
		t.Errorf("MinSavings = %d, want 250 MiB in bytes", cfg.MinSavings)
	}
	if cfg.MinFreeDisk != 2*1024*1024*1024 {
		t.Errorf("MinFreeDisk = %d, want 2 GiB in bytes", cfg.MinFreeDisk)
	}
	if cfg.StaleTempAge != 24*time.Hour {
		t.Errorf("StaleTempAge = %v, want 24h", cfg.StaleTempAge)
	}
	if cfg.DolbyVision != DVPreserve || cfg.BitDepth != BitDepthAuto {
		t.Errorf("policy defaults = %q/%q, want preserve/auto", cfg.DolbyVision, cfg.BitDepth)
	}
	if cfg.EncoderBinary != "ffmpeg" || cfg.ProbeBinary != "ffprobe" {
		t.Errorf("tool defaults = %q/%q", cfg.EncoderBinary, cfg.ProbeBinary)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reclaimer.yaml")
	yaml := `
targets:
  - /mnt/media/movies
  - /mnt/media/tv
min_savings: 1GB
stale_temp_age: 36h
run_window: "23:00-07:00"
sort_order: largest
encoder_crf: 20
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Targets) != 2 || cfg.Targets[0] != "/mnt/media/movies" {
		t.Errorf("Targets = %v", cfg.Targets)
	}
	if cfg.MinSavings != 1024*1024*1024 {
		t.Errorf("MinSavings = %d, want 1 GiB in bytes", cfg.MinSavings)
	}
	if cfg.StaleTempAge != 36*time.Hour {
		t.Errorf("StaleTempAge = %v, want 36h", cfg.StaleTempAge)
	}
	if cfg.SortOrder != SortLargest || cfg.EncoderCRF != 20 {
		t.Errorf("overrides not applied: sort=%q crf=%d", cfg.SortOrder, cfg.EncoderCRF)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !cfg.Window.Enabled() || cfg.Window.String() != "23:00-07:00" {
		t.Errorf("Window = %s", cfg.Window.String())
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load with a missing explicit config file succeeded")
	}
}

func validCfg() *Config {
	return &Config{
		Targets:           []string{"/mnt/media"},
		SortOrder:         SortSmallest,
		BitDepth:          BitDepthAuto,
		DolbyVision:       DVPreserve,
		Threshold4KKbps:   8000,
		Threshold1080Kbps: 4000,
		Width4KCutoff:     2500,
		EncoderCRF:        22,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad sort order", func(c *Config) { c.SortOrder = "biggest" }, true},
		{"bad bit depth", func(c *Config) { c.BitDepth = "sometimes" }, true},
		{"bad dv policy", func(c *Config) { c.DolbyVision = "maybe" }, true},
		{"zero threshold", func(c *Config) { c.Threshold1080Kbps = 0 }, true},
		{"negative min age", func(c *Config) { c.MinAgeDays = -1 }, true},
		{"crf out of range", func(c *Config) { c.EncoderCRF = 60 }, true},
		{"bad window", func(c *Config) { c.RunWindow = "9-17" }, true},
		{"bad exclude regex", func(c *Config) { c.ExcludePattern = "([" }, true},
		{"no targets", func(c *Config) { c.Targets = nil }, true},
		{"no targets in check mode", func(c *Config) { c.Targets = nil; c.CheckOnly = true }, false},
		{"no targets in worker mode", func(c *Config) { c.Targets = nil; c.WorkerFile = "/x.mkv" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCfg()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate succeeded, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestValidate_CompilesDerivedFields(t *testing.T) {
	cfg := validCfg()
	cfg.RunWindow = "22:00-06:00"
	cfg.ExcludePattern = `(?i)sample`
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !cfg.Window.Enabled() {
		t.Error("run window not compiled")
	}
	if cfg.Exclude == nil || !cfg.Exclude.MatchString("Movie.SAMPLE.mkv") {
		t.Error("exclude pattern not compiled case-insensitively")
	}
}
