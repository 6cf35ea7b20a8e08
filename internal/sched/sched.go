// Package sched runs the dispatcher loop: one worker at a time, always on
// the least busy eligible volume. The loop owns crash recovery at startup,
// run-window gating, the pause-file poll, and per-volume suspension when a
// worker signals low disk space.
package sched

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/config"
	"github.com/backmassage/reclaimer/internal/display"
	"github.com/backmassage/reclaimer/internal/probe"
	"github.com/backmassage/reclaimer/internal/queue"
	"github.com/backmassage/reclaimer/internal/swap"
	"github.com/backmassage/reclaimer/internal/volume"
	"github.com/backmassage/reclaimer/internal/worker"
)

// How often the wait loop rechecks the clock while outside the run window.
const windowPollInterval = time.Minute

// Spawn runs the worker for one file and returns its exit code. The
// production implementation re-invokes this binary with --worker; tests
// substitute a function.
type Spawn func(ctx context.Context, path string) (int, error)

// Prompter answers the one interactive question the dispatcher may ask:
// whether to run anyway when started outside the run window. Non-interactive
// runs always answer no.
type Prompter interface {
	ConfirmOutsideWindow(next time.Time) bool
}

// DenyPrompter is the non-interactive Prompter.
type DenyPrompter struct{}

func (DenyPrompter) ConfirmOutsideWindow(time.Time) bool { return false }

// Stats summarizes one dispatcher run.
type Stats struct {
	Handled   int // Worker exited 0: committed, skipped, or failed-but-handled.
	Crashed   int // Worker died with an unexpected exit code.
	Restored  int // Backups restored during startup reconciliation.
	Cleaned   int // Stale temp outputs deleted.
	Suspended []string
}

// Dispatcher coordinates the single-flight processing loop.
type Dispatcher struct {
	cfg     *config.Config
	log     hclog.Logger
	sampler volume.Sampler
	spawn   Spawn
	prompt  Prompter

	suspended map[string]bool

	// Test seams.
	now       func() time.Time
	sleep     func(time.Duration)
	pauseStat func(string) bool
}

// New builds a dispatcher. sampler and spawn are required; prompt may be nil
// for the non-interactive default.
func New(cfg *config.Config, log hclog.Logger, sampler volume.Sampler, spawn Spawn, prompt Prompter) *Dispatcher {
	if prompt == nil {
		prompt = DenyPrompter{}
	}
	return &Dispatcher{
		cfg:       cfg,
		log:       log,
		sampler:   sampler,
		spawn:     spawn,
		prompt:    prompt,
		suspended: make(map[string]bool),
		now:       time.Now,
		sleep:     time.Sleep,
		pauseStat: fileExists,
	}
}

// Run recovers leftovers from previous runs, enumerates the library, and
// drains the per-volume queues one worker at a time until everything is
// processed, the context is cancelled, or the pause file appears.
func (d *Dispatcher) Run(ctx context.Context, resolver queue.VolumeResolver) (Stats, error) {
	var stats Stats

	probeFn := func(ctx context.Context, path string) (*probe.MediaDescriptor, error) {
		return probe.Probe(ctx, d.cfg.ProbeBinary, path, probe.AllStreams)
	}
	stats.Restored = swap.Reconcile(ctx, d.cfg.Targets, probeFn, d.log)
	cleanRoots := append(append([]string{}, d.cfg.Targets...), d.cfg.TempDir)
	stats.Cleaned = swap.CleanStaleTemp(cleanRoots, d.cfg.StaleTempAge, d.log)

	queues, err := queue.Build(d.cfg, resolver, d.log)
	if err != nil {
		return stats, err
	}
	d.logQueues(queues)

	windowOverride := false
	for {
		if ctx.Err() != nil {
			d.log.Info("interrupted, stopping after current file")
			break
		}
		if d.pauseStat(d.cfg.PauseFile) {
			d.log.Info("pause file present, stopping", "file", d.cfg.PauseFile)
			break
		}
		if !windowOverride && !d.waitForWindow(ctx, &windowOverride) {
			break
		}

		vol, ok := d.pickVolume(queues)
		if !ok {
			d.log.Info("all queues drained")
			break
		}
		f, _ := queues.Pop(vol)

		code, spawnErr := d.spawn(ctx, f.Path)
		switch {
		case spawnErr != nil:
			stats.Crashed++
			d.log.Error("worker could not be started", "file", f.Path, "error", spawnErr)
		case code == worker.ExitHandled:
			stats.Handled++
		case code == worker.ExitLowSpace:
			stats.Handled++
			d.suspended[vol] = true
			d.log.Warn("volume suspended for the rest of the run: low disk space",
				"volume", vol, "remaining", queues.Len(vol))
		default:
			stats.Crashed++
			d.log.Error("worker crashed, continuing with next file", "file", f.Path, "exit_code", code)
		}

		stats.Cleaned += swap.CleanStaleTemp(cleanRoots, d.cfg.StaleTempAge, d.log)
	}

	stats.Suspended = d.suspendedList()
	d.logSummary(stats, queues)
	return stats, nil
}

// waitForWindow blocks until the run window opens, the context is cancelled,
// or the pause file appears. When started outside the window it offers the
// interactive override once; accepting disables gating for this run.
func (d *Dispatcher) waitForWindow(ctx context.Context, override *bool) bool {
	if d.cfg.Window.Contains(d.now()) {
		return true
	}

	next := d.cfg.Window.NextOpen(d.now())
	if d.prompt.ConfirmOutsideWindow(next) {
		d.log.Info("run window override accepted, ignoring window for this run")
		*override = true
		return true
	}

	d.log.Info("outside run window, waiting", "window", d.cfg.Window.String(),
		"next_open", next.Format("15:04"))
	for !d.cfg.Window.Contains(d.now()) {
		if ctx.Err() != nil {
			return false
		}
		if d.pauseStat(d.cfg.PauseFile) {
			d.log.Info("pause file present while waiting, stopping", "file", d.cfg.PauseFile)
			return false
		}
		d.sleep(windowPollInterval)
	}
	return true
}

// pickVolume returns the least busy eligible volume. Suspended and drained
// volumes are excluded; ties and sampler failures fall back to the sorted
// volume order, which keeps the pick deterministic.
func (d *Dispatcher) pickVolume(queues *queue.Set) (string, bool) {
	eligible := make([]string, 0)
	for _, vol := range queues.Volumes() {
		if !d.suspended[vol] {
			eligible = append(eligible, vol)
		}
	}
	if len(eligible) == 0 {
		return "", false
	}
	if len(eligible) == 1 {
		return eligible[0], true
	}

	scores, err := d.sampler.Busyness(eligible)
	if err != nil {
		d.log.Warn("busyness sampling failed, using first eligible volume", "error", err)
		return eligible[0], true
	}
	best := eligible[0]
	for _, vol := range eligible[1:] {
		if scores[vol] < scores[best] {
			best = vol
		}
	}
	return best, true
}

func (d *Dispatcher) logQueues(queues *queue.Set) {
	vols := queues.Volumes()
	d.log.Info("library enumerated", "files", queues.Total(), "volumes", len(vols))
	for _, vol := range vols {
		d.log.Info("queue", "volume", vol, "files", queues.Len(vol),
			"size", display.FormatBytes(queues.Size(vol)))
	}
}

func (d *Dispatcher) logSummary(stats Stats, queues *queue.Set) {
	d.log.Info("run finished",
		"handled", stats.Handled,
		"crashed", stats.Crashed,
		"restored_backups", stats.Restored,
		"stale_temps_deleted", stats.Cleaned,
		"unprocessed", queues.Total(),
	)
	for _, vol := range stats.Suspended {
		d.log.Warn("volume was suspended", "volume", vol)
	}
}

func (d *Dispatcher) suspendedList() []string {
	vols := make([]string, 0, len(d.suspended))
	for vol := range d.suspended {
		vols = append(vols, vol)
	}
	sort.Strings(vols)
	return vols
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
