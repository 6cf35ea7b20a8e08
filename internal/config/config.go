// Package config holds runtime configuration: defaults, config-file and
// environment loading via viper, CLI flag overrides, and validation. The
// resulting Config is built once at startup and passed (by pointer) to every
// component; nothing reads ambient global state afterwards.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// --- Enum types for validated string fields ---

// SortOrder controls per-volume queue ordering.
type SortOrder string

const (
	SortSmallest  SortOrder = "smallest"  // Smallest files first (default).
	SortLargest   SortOrder = "largest"   // Largest files first.
	SortAlpha     SortOrder = "alpha"     // Lexicographic by path.
	SortUnordered SortOrder = "unordered" // Enumeration order, no sort.
)

// BitDepthMode selects the encode bit depth.
type BitDepthMode string

const (
	BitDepthAuto   BitDepthMode = "auto"   // 10-bit iff source is 10-bit/HDR/DV (default).
	BitDepthAlways BitDepthMode = "always" // Always 10-bit.
	BitDepthNever  BitDepthMode = "never"  // Always 8-bit.
)

// DVPolicy governs Dolby Vision handling.
type DVPolicy string

const (
	DVSkip      DVPolicy = "skip"      // Never touch Dolby Vision sources.
	DVPreserve  DVPolicy = "preserve"  // Transcode, but fail verification if DV is lost (default).
	DVAllowLoss DVPolicy = "allowloss" // Transcode and accept DV metadata loss.
)

// Config holds all runtime settings. Populated by Load (defaults, optional
// YAML file, environment) and then overridden by ParseFlags. Fields are
// grouped by concern.
type Config struct {
	// Library scan.
	Targets        []string  `mapstructure:"targets"`         // Root folders to walk.
	Extensions     []string  `mapstructure:"extensions"`      // Allow-list (lowercase, with dot).
	ExcludePattern string    `mapstructure:"exclude_pattern"` // Regex on the base name; matches are skipped.
	MinAgeDays     int       `mapstructure:"min_age_days"`    // Skip files modified within the last N days.
	SortOrder      SortOrder `mapstructure:"sort_order"`

	// Decision thresholds.
	Threshold4KKbps   int64        `mapstructure:"threshold_4k_kbps"`   // Bloat ceiling for the 4K tier.
	Threshold1080Kbps int64        `mapstructure:"threshold_1080_kbps"` // Bloat ceiling for 1080/SD.
	Width4KCutoff     int          `mapstructure:"width_4k_cutoff"`     // Width above which a file is 4K tier.
	Force             bool         `mapstructure:"force"`               // Process regardless of codec/bitrate.
	BitDepth          BitDepthMode `mapstructure:"bit_depth"`
	DolbyVision       DVPolicy     `mapstructure:"dv_policy"`

	// Verification and replacement.
	MinSavings   int64         `mapstructure:"min_savings"`    // Minimum bytes the swap must reclaim.
	MinFreeDisk  int64         `mapstructure:"min_free_disk"`  // Absolute free-space floor per volume.
	TempDir      string        `mapstructure:"temp_dir"`       // Encoder output staging dir; "" = next to original.
	StaleTempAge time.Duration `mapstructure:"stale_temp_age"` // Age after which orphaned temp outputs are deleted.

	// Scheduler.
	RunWindow     string   `mapstructure:"run_window"`     // "HH:MM-HH:MM", empty = always.
	PauseFile     string   `mapstructure:"pause_file"`     // Presence halts the loop before the next pick.
	SafeLanguages []string `mapstructure:"safe_languages"` // Preferred default-audio language tags.

	// External tools.
	EncoderBinary    string `mapstructure:"encoder_binary"`
	ProbeBinary      string `mapstructure:"probe_binary"`
	EncoderPreset    string `mapstructure:"encoder_preset"`
	EncoderCRF       int    `mapstructure:"encoder_crf"`
	EncoderExtraArgs string `mapstructure:"encoder_extra_args"` // Shell-style token string, parsed with shlex.

	// Audit sinks.
	AuditCSV  string `mapstructure:"audit_csv"`
	HistoryDB string `mapstructure:"history_db"` // "" disables the sqlite history store.

	// Logging.
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Behavior flags (CLI only, not read from file/env).
	DryRun     bool   `mapstructure:"-"`
	CheckOnly  bool   `mapstructure:"-"`
	WorkerFile string `mapstructure:"-"` // Non-empty selects worker mode for this one file.

	// Derived at load time.
	Window  Window         `mapstructure:"-"`
	Exclude *regexp.Regexp `mapstructure:"-"`
}

// setDefaults registers every key's default value on the viper instance.
// Defaults are strings where a decode hook does the parsing (sizes,
// durations), mirroring how the rest of the config file reads.
func setDefaults(vp *viper.Viper) {
	vp.SetDefault("targets", []string{})
	vp.SetDefault("extensions", []string{
		".mkv", ".mp4", ".avi", ".m4v", ".mov", ".wmv",
		".ts", ".m2ts", ".mpg", ".mpeg", ".webm",
	})
	vp.SetDefault("exclude_pattern", `(?i)(sample|trailer|\.tmp)`)
	vp.SetDefault("min_age_days", 3)
	vp.SetDefault("sort_order", "smallest")

	vp.SetDefault("threshold_4k_kbps", 8000)
	vp.SetDefault("threshold_1080_kbps", 4000)
	vp.SetDefault("width_4k_cutoff", 2500)
	vp.SetDefault("force", false)
	vp.SetDefault("bit_depth", "auto")
	vp.SetDefault("dv_policy", "preserve")

	vp.SetDefault("min_savings", "250MB")
	vp.SetDefault("min_free_disk", "2GB")
	vp.SetDefault("temp_dir", "")
	vp.SetDefault("stale_temp_age", "24h")

	vp.SetDefault("run_window", "")
	vp.SetDefault("pause_file", "reclaimer.pause")
	vp.SetDefault("safe_languages", []string{"eng", "und"})

	vp.SetDefault("encoder_binary", "ffmpeg")
	vp.SetDefault("probe_binary", "ffprobe")
	vp.SetDefault("encoder_preset", "medium")
	vp.SetDefault("encoder_crf", 22)
	vp.SetDefault("encoder_extra_args", "")

	vp.SetDefault("audit_csv", "reclaimer-log.csv")
	vp.SetDefault("history_db", "reclaimer-history.db")

	vp.SetDefault("log_level", "info")
	vp.SetDefault("log_file", "")
}

// stringToByteSizeHookFunc parses human-readable sizes ("250MB") into int64
// byte counts during viper unmarshalling.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 || t == reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a size string; let the default parsers have it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

// Load builds a Config from defaults, an optional YAML config file, and
// RECLAIMER_* environment variables, in that precedence order. configPath
// may name an explicit file; when empty the usual search paths are tried.
func Load(configPath string) (*Config, error) {
	vp := viper.New()
	setDefaults(vp)

	if configPath != "" {
		vp.SetConfigFile(configPath)
	} else {
		vp.SetConfigName("reclaimer")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("/etc/reclaimer/")
	}

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	vp.SetEnvPrefix("RECLAIMER")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToByteSizeHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks enum fields, compiles derived values (run window,
// exclusion regex), and requires at least one target folder unless running
// in check or worker mode.
func (c *Config) Validate() error {
	switch c.SortOrder {
	case SortSmallest, SortLargest, SortAlpha, SortUnordered:
	default:
		return fmt.Errorf("invalid sort_order %q (use smallest, largest, alpha, or unordered)", c.SortOrder)
	}

	switch c.BitDepth {
	case BitDepthAuto, BitDepthAlways, BitDepthNever:
	default:
		return fmt.Errorf("invalid bit_depth %q (use auto, always, or never)", c.BitDepth)
	}

	switch c.DolbyVision {
	case DVSkip, DVPreserve, DVAllowLoss:
	default:
		return fmt.Errorf("invalid dv_policy %q (use skip, preserve, or allowloss)", c.DolbyVision)
	}

	if c.Threshold4KKbps <= 0 || c.Threshold1080Kbps <= 0 {
		return errors.New("bitrate thresholds must be positive")
	}
	if c.Width4KCutoff <= 0 {
		return errors.New("width_4k_cutoff must be positive")
	}
	if c.MinAgeDays < 0 {
		return errors.New("min_age_days must not be negative")
	}
	if c.EncoderCRF < 0 || c.EncoderCRF > 51 {
		return fmt.Errorf("encoder_crf %d out of range 0-51", c.EncoderCRF)
	}

	w, err := ParseWindow(c.RunWindow)
	if err != nil {
		return err
	}
	c.Window = w

	if c.ExcludePattern != "" {
		re, err := regexp.Compile(c.ExcludePattern)
		if err != nil {
			return fmt.Errorf("invalid exclude_pattern: %w", err)
		}
		c.Exclude = re
	}

	if c.CheckOnly || c.WorkerFile != "" {
		return nil
	}
	if len(c.Targets) == 0 {
		return errors.New("no target folders configured")
	}
	return nil
}
