// Package worker runs the per-file pipeline: probe, decide, space check,
// encode, verify, swap. Exactly one file per invocation; the dispatcher
// runs it out-of-process and reads the exit code.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/audit"
	"github.com/backmassage/reclaimer/internal/config"
	"github.com/backmassage/reclaimer/internal/decide"
	"github.com/backmassage/reclaimer/internal/display"
	"github.com/backmassage/reclaimer/internal/encoder"
	"github.com/backmassage/reclaimer/internal/probe"
	"github.com/backmassage/reclaimer/internal/swap"
	"github.com/backmassage/reclaimer/internal/verify"
	"github.com/backmassage/reclaimer/internal/volume"
)

// Exit codes of the worker process, consumed by the dispatcher.
const (
	// ExitHandled covers success and every non-space skip or failure;
	// the audit log has the detail.
	ExitHandled = 0
	// ExitLowSpace tells the dispatcher to suspend this file's volume
	// for the rest of the run.
	ExitLowSpace = 10
)

// Free space on the working volume must cover the original plus the temp
// output with headroom.
const freeSpaceFactor = 1.5

// Pipeline processes one file. The function fields are seams for tests;
// production wiring uses the external tools from config.
type Pipeline struct {
	cfg *config.Config
	log hclog.Logger
	rec audit.Recorder

	probeFn   func(ctx context.Context, path string, sel probe.Selector) (*probe.MediaDescriptor, error)
	encodeFn  func(ctx context.Context, in, out string, prof encoder.Profile, md *probe.MediaDescriptor) error
	verifyFn  func(ctx context.Context, candidatePath string, candidateSize int64, original *probe.MediaDescriptor, originalSize int64, requireDV bool) (*probe.MediaDescriptor, error)
	freeSpace func(path string) (uint64, error)
	replaceFn func(originalPath, candidatePath, finalPath string) (swap.Status, error)
	rootFn    func(dir string) bool
}

// New wires a production pipeline.
func New(cfg *config.Config, log hclog.Logger, rec audit.Recorder) *Pipeline {
	p := &Pipeline{
		cfg: cfg,
		log: log,
		rec: rec,
		probeFn: func(ctx context.Context, path string, sel probe.Selector) (*probe.MediaDescriptor, error) {
			return probe.Probe(ctx, cfg.ProbeBinary, path, sel)
		},
		encodeFn: func(ctx context.Context, in, out string, prof encoder.Profile, md *probe.MediaDescriptor) error {
			return encoder.Encode(ctx, cfg.EncoderBinary, in, out, prof, md, cfg.SafeLanguages)
		},
		freeSpace: volume.FreeSpace,
		replaceFn: swap.Replace,
		rootFn:    volumeRootCheck(),
	}
	p.verifyFn = func(ctx context.Context, candidatePath string, candidateSize int64, original *probe.MediaDescriptor, originalSize int64, requireDV bool) (*probe.MediaDescriptor, error) {
		return verify.Run(ctx, p.verifyProbe(), candidatePath, candidateSize, original, originalSize, cfg.MinSavings, requireDV)
	}
	return p
}

// Process drives the full pipeline for path and returns the process exit
// code. Every terminal state emits exactly one audit record.
func (p *Pipeline) Process(ctx context.Context, path string) int {
	base := filepath.Base(path)
	p.log.Info("processing", "file", base)

	fi, err := os.Stat(path)
	if err != nil {
		p.skip(path, "", "stat failed: "+err.Error(), nil)
		return ExitHandled
	}
	size := fi.Size()

	// Never create temp files directly in a drive or mount root.
	if p.rootFn(filepath.Dir(path)) {
		p.skip(path, "", "refusing to operate on a file in a volume root", nil)
		return ExitHandled
	}

	md, err := p.probeFn(ctx, path, probe.AllStreams)
	if err != nil {
		p.skip(path, "", "probe failed: "+err.Error(), nil)
		return ExitHandled
	}

	if md.Duration <= 0 {
		p.skip(path, "", "unprocessable: container reports no duration", md)
		return ExitHandled
	}
	if md.PrimaryVideo() == nil {
		p.skip(path, "", "unprocessable: no video stream", md)
		return ExitHandled
	}

	dec := decide.Decide(md, size, p.cfg)
	if !dec.Process {
		p.skip(path, string(dec.Reason), "already efficient", md)
		return ExitHandled
	}

	if md.IsDolbyVision() && p.cfg.DolbyVision == config.DVSkip {
		p.skip(path, string(dec.Reason), "dolby vision source, policy is skip", md)
		return ExitHandled
	}

	if p.cfg.DryRun {
		p.log.Info("[dry-run] would encode", "file", base, "reason", dec.Reason, "ten_bit", dec.TenBit)
		p.skip(path, string(dec.Reason), "dry run", md)
		return ExitHandled
	}

	workDir := filepath.Dir(path)
	if p.cfg.TempDir != "" {
		workDir = p.cfg.TempDir
	}
	if code, ok := p.checkSpace(path, workDir, size, dec, md); !ok {
		return code
	}

	outPath := swap.TempOutputPath(workDir, base)
	prof := encoder.Profile{
		TenBit: dec.TenBit,
		CRF:    p.cfg.EncoderCRF,
		Preset: p.cfg.EncoderPreset,
	}
	if extra, err := encoder.ParseExtraArgs(p.cfg.EncoderExtraArgs); err != nil {
		p.log.Warn("ignoring unparseable encoder_extra_args", "error", err)
	} else {
		prof.ExtraArgs = extra
	}

	p.log.Info("encoding", "file", base, "reason", dec.Reason, "ten_bit", dec.TenBit,
		"bitrate", display.FormatBitrateLabel(md.EffectiveBitRate(size)/1000))
	start := time.Now()
	if err := p.encodeFn(ctx, path, outPath, prof, md); err != nil {
		detail := "encoder failed: " + err.Error()
		var encErr *encoder.Error
		if errors.As(err, &encErr) && encErr.Stderr != "" {
			detail += " | " + lastLine(encErr.Stderr)
		}
		p.fail(path, dec, size, md, detail)
		return ExitHandled
	}
	p.log.Info("encode finished", "file", base, "elapsed", time.Since(start).Round(time.Second))

	candInfo, err := os.Stat(outPath)
	if err != nil {
		p.fail(path, dec, size, md, "encoder output vanished: "+err.Error())
		return ExitHandled
	}

	requireDV := md.IsDolbyVision() && p.cfg.DolbyVision == config.DVPreserve
	candidate, err := p.verifyFn(ctx, outPath, candInfo.Size(), md, size, requireDV)
	if err != nil {
		os.Remove(outPath)
		p.fail(path, dec, size, md, "validation failed: "+err.Error())
		return ExitHandled
	}

	return p.swapCandidate(path, outPath, dec, size, candInfo.Size(), md, candidate)
}

// checkSpace enforces the 1.5x headroom rule plus the absolute free-space
// floor on the working volume. A shortfall is escalated to the dispatcher
// via the distinguished exit code so the whole volume gets suspended.
func (p *Pipeline) checkSpace(path, workDir string, size int64, dec decide.Decision, md *probe.MediaDescriptor) (int, bool) {
	free, err := p.freeSpace(workDir)
	if err != nil {
		p.skip(path, string(dec.Reason), "cannot determine free space: "+err.Error(), md)
		return ExitHandled, false
	}
	needed := uint64(float64(size)*freeSpaceFactor) + uint64(p.cfg.MinFreeDisk)
	if free < needed {
		p.skip(path, string(dec.Reason), fmt.Sprintf("low space on volume: %d free, %d needed", free, needed), md)
		return ExitLowSpace, false
	}
	return ExitHandled, true
}

func (p *Pipeline) swapCandidate(path, outPath string, dec decide.Decision, origSize, candSize int64, md, candidate *probe.MediaDescriptor) int {
	finalPath := withExt(path, ".mkv")
	status, err := p.replaceFn(path, outPath, finalPath)

	rec := p.baseRecord(path, string(dec.Reason), md)
	rec.OutputPath = finalPath
	rec.OldSize = origSize
	rec.NewSize = candSize
	rec.SavedSize = origSize - candSize
	rec.AfterVideo = candidate.VideoSummary()
	rec.AfterAudio = candidate.AudioSummary()
	rec.AfterDV = candidate.IsDolbyVision()
	rec.BitDepth = bitDepth(dec)

	switch status {
	case swap.Committed:
		rec.Status = audit.StatusCommitted
		rec.Detail = "replaced original"
		p.rec.Record(rec)
		p.log.Info("committed", "file", filepath.Base(finalPath),
			"saved", display.FormatBytes(origSize-candSize),
			"size_change", display.FormatBytesWithSign(candSize-origSize))
		return ExitHandled
	case swap.Critical:
		rec.Status = audit.StatusCritical
		rec.Detail = err.Error()
		p.rec.Record(rec)
		p.log.Error("swap left the file in an inconsistent state, manual intervention required",
			"file", path, "error", err)
		return ExitHandled
	default:
		rec.Status = audit.StatusRolledBack
		rec.Detail = err.Error()
		p.rec.Record(rec)
		p.log.Error("swap failed, original restored", "file", path, "error", err)
		return ExitHandled
	}
}

// verifyProbe adapts the pipeline's probe seam to the verifier's signature.
func (p *Pipeline) verifyProbe() verify.ProbeFunc {
	return func(ctx context.Context, path string) (*probe.MediaDescriptor, error) {
		return p.probeFn(ctx, path, probe.AllStreams)
	}
}

func (p *Pipeline) baseRecord(path, strategy string, md *probe.MediaDescriptor) audit.Record {
	rec := audit.Record{
		Timestamp: time.Now(),
		InputPath: path,
		Strategy:  strategy,
	}
	if md != nil {
		rec.BeforeVideo = md.VideoSummary()
		rec.BeforeAudio = md.AudioSummary()
		rec.BeforeDV = md.IsDolbyVision()
	}
	return rec
}

func (p *Pipeline) skip(path, strategy, detail string, md *probe.MediaDescriptor) {
	rec := p.baseRecord(path, strategy, md)
	rec.Status = audit.StatusSkipped
	rec.Detail = detail
	p.rec.Record(rec)
	p.log.Info("skipped", "file", filepath.Base(path), "detail", detail)
}

func (p *Pipeline) fail(path string, dec decide.Decision, size int64, md *probe.MediaDescriptor, detail string) {
	rec := p.baseRecord(path, string(dec.Reason), md)
	rec.Status = audit.StatusFailed
	rec.OldSize = size
	rec.Detail = detail
	rec.BitDepth = bitDepth(dec)
	p.rec.Record(rec)
	p.log.Error("failed", "file", filepath.Base(path), "detail", detail)
}

func bitDepth(dec decide.Decision) int {
	if dec.TenBit {
		return 10
	}
	return 8
}

// isFilesystemRoot reports whether dir is a filesystem root ("/" or a
// drive root like "C:\").
func isFilesystemRoot(dir string) bool {
	clean := filepath.Clean(dir)
	return filepath.Dir(clean) == clean
}

// volumeRootCheck builds the default root guard from the mount table, so a
// file sitting directly in a mountpoint like /mnt/media is refused too, not
// just one under "/". When the mount table cannot be read only the
// filesystem-root check remains.
func volumeRootCheck() func(dir string) bool {
	resolver, err := volume.NewResolver()
	return func(dir string) bool {
		if isFilesystemRoot(dir) {
			return true
		}
		if err != nil {
			return false
		}
		return resolver.IsMountpoint(dir)
	}
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// lastLine extracts the final non-empty stderr line for the audit detail.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
