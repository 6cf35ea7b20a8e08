package config

// CLI flag parsing. Flags override whatever Load read from file and
// environment, so the precedence is flags > env > file > defaults.

import (
	"flag"
	"fmt"
	"os"
)

// version is shown by --version; override at build time with
// -ldflags "-X .../internal/config.version=...".
var version = "1.0.0-dev"

// Flags holds the values parsed from the command line before they are
// applied to a loaded Config.
type Flags struct {
	ConfigPath string
	DryRun     bool
	CheckOnly  bool
	WorkerFile string
	Force      bool
	Targets    []string

	showVersion bool
	showHelp    bool
}

// ParseFlags parses os.Args. On --help or --version it prints and exits.
func ParseFlags() (*Flags, error) {
	fs := flag.NewFlagSet("reclaimer", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	var f Flags
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file (default: ./reclaimer.yaml, /etc/reclaimer/)")
	fs.BoolVar(&f.DryRun, "dry-run", false, "Enumerate and decide only; do not encode or replace")
	fs.BoolVar(&f.DryRun, "d", false, "Same as --dry-run")
	fs.BoolVar(&f.CheckOnly, "check", false, "Run system diagnostics and exit")
	fs.BoolVar(&f.CheckOnly, "c", false, "Same as --check")
	fs.StringVar(&f.WorkerFile, "worker", "", "Internal: process a single file and exit (spawned by the dispatcher)")
	fs.BoolVar(&f.Force, "force", false, "Process files regardless of codec and bitrate")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&f.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&f.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&f.showHelp, "h", false, "Same as --help")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	if f.showHelp {
		printUsage(fs)
		os.Exit(0)
	}
	if f.showVersion {
		fmt.Fprintln(os.Stdout, "reclaimer v"+version)
		os.Exit(0)
	}

	// Positional args, if any, replace the configured target list for
	// this run (handy for one-off scans).
	f.Targets = fs.Args()
	return &f, nil
}

// Apply copies flag values onto cfg.
func (f *Flags) Apply(cfg *Config) {
	cfg.DryRun = f.DryRun
	cfg.CheckOnly = f.CheckOnly
	cfg.WorkerFile = f.WorkerFile
	if f.Force {
		cfg.Force = true
	}
	if len(f.Targets) > 0 {
		cfg.Targets = f.Targets
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Reclaimer v%s - unattended media re-encode controller

  reclaimer [OPTIONS] [target_dir ...]

Options
  --config <path>    Config file (default: ./reclaimer.yaml, /etc/reclaimer/)
  -d, --dry-run      Enumerate and decide only; do not encode or replace
  --force            Process files regardless of codec and bitrate
  -c, --check        Run system diagnostics and exit
  -V, --version      Print version and exit
  -h, --help         Show this help and exit

Configuration is read from the config file and RECLAIMER_* environment
variables; positional target directories override the configured list.
`, version)
}
