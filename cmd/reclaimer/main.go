// Command reclaimer is the unattended re-encode controller. The default
// invocation runs the dispatcher loop over the configured library; the same
// binary re-invokes itself with --worker to process exactly one file per
// child process, so a crash during an encode never takes the loop down.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/audit"
	"github.com/backmassage/reclaimer/internal/check"
	"github.com/backmassage/reclaimer/internal/config"
	"github.com/backmassage/reclaimer/internal/logging"
	"github.com/backmassage/reclaimer/internal/sched"
	"github.com/backmassage/reclaimer/internal/term"
	"github.com/backmassage/reclaimer/internal/volume"
	"github.com/backmassage/reclaimer/internal/worker"
)

const busynessSampleInterval = 500 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reclaimer: %v\n", err)
		return 1
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reclaimer: %v\n", err)
		return 1
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "reclaimer: %v\n", err)
		return 1
	}

	log, closer, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reclaimer: %v\n", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}

	if cfg.CheckOnly {
		check.RunCheck(cfg, log)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WorkerFile != "" {
		return runWorker(ctx, cfg, log)
	}
	return runDispatcher(ctx, cfg, log, flags)
}

// runWorker processes the single file named by --worker and maps the
// pipeline outcome to the exit-code contract the dispatcher relies on.
func runWorker(ctx context.Context, cfg *config.Config, log hclog.Logger) int {
	rec, err := buildRecorder(cfg, log)
	if err != nil {
		log.Error("cannot open audit sinks", "error", err)
		return 1
	}
	defer rec.Close()

	return worker.New(cfg, log, rec).Process(ctx, cfg.WorkerFile)
}

func runDispatcher(ctx context.Context, cfg *config.Config, log hclog.Logger, flags *config.Flags) int {
	if !cfg.DryRun {
		if err := check.CheckDeps(cfg); err != nil {
			log.Error("dependency check failed", "error", err)
			return 1
		}
	}

	resolver, err := volume.NewResolver()
	if err != nil {
		log.Error("cannot read the mount table", "error", err)
		return 1
	}
	sampler := volume.NewDiskSampler(resolver, busynessSampleInterval)

	log.Info("starting run",
		"targets", cfg.Targets,
		"window", cfg.Window.String(),
		"dry_run", cfg.DryRun,
	)

	var prompt sched.Prompter
	if term.IsTerminal(os.Stdin) {
		prompt = ttyPrompter{}
	}

	d := sched.New(cfg, log, sampler, spawnWorker(cfg, flags), prompt)
	if _, err := d.Run(ctx, resolver); err != nil {
		log.Error("run aborted", "error", err)
		return 1
	}
	return 0
}

// spawnWorker re-invokes this binary in worker mode for one file. The child
// inherits stdout/stderr so its log lines interleave with the dispatcher's.
func spawnWorker(cfg *config.Config, flags *config.Flags) sched.Spawn {
	return func(ctx context.Context, path string) (int, error) {
		self, err := os.Executable()
		if err != nil {
			return -1, err
		}
		args := []string{"--worker", path}
		if flags.ConfigPath != "" {
			args = append(args, "--config", flags.ConfigPath)
		}
		if cfg.DryRun {
			args = append(args, "--dry-run")
		}
		if cfg.Force {
			args = append(args, "--force")
		}

		cmd := exec.CommandContext(ctx, self, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			var ee *exec.ExitError
			if errors.As(err, &ee) {
				return ee.ExitCode(), nil
			}
			return -1, err
		}
		return 0, nil
	}
}

// buildRecorder assembles the audit sinks: CSV always, sqlite history when
// configured. Dry runs record nothing.
func buildRecorder(cfg *config.Config, log hclog.Logger) (audit.Recorder, error) {
	if cfg.DryRun {
		return audit.Discard{}, nil
	}

	csvSink, err := audit.NewCSVSink(cfg.AuditCSV, log)
	if err != nil {
		return nil, err
	}
	recs := audit.Multi{csvSink}

	if cfg.HistoryDB != "" {
		hist, err := audit.OpenHistory(cfg.HistoryDB, log)
		if err != nil {
			csvSink.Close()
			return nil, err
		}
		recs = append(recs, hist)
	}
	return recs, nil
}

// ttyPrompter asks on the controlling terminal whether to ignore the run
// window for this invocation.
type ttyPrompter struct{}

func (ttyPrompter) ConfirmOutsideWindow(next time.Time) bool {
	q := fmt.Sprintf("Outside the run window (next opens %s). Run anyway?", next.Format("15:04"))
	return term.Confirm(os.Stdin, os.Stderr, q, false)
}
