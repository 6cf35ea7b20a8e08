// Package verify decides whether a freshly encoded candidate may replace
// its original. The pass criteria are fixed; the retry loop only
// accommodates output files that are not yet fully visible to the
// inspector, it never loosens the checks.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/backmassage/reclaimer/internal/probe"
	"github.com/backmassage/reclaimer/internal/retry"
)

// Candidate duration must be at least this fraction of the original.
// Tolerates container rounding, rejects truncated output.
const minDurationRatio = 0.95

// The codec family every candidate must land in. Guards against silent
// encoder fallback to another codec.
const targetCodec = "hevc"

const (
	attempts     = 3
	backoffStart = 2 * time.Second
)

// backoffFn spaces the retry attempts; a test seam, like the function
// fields elsewhere.
var backoffFn = retry.Linear(backoffStart)

// FailError carries the machine-readable reason a candidate was rejected.
type FailError struct {
	Reason string
	Detail string
}

func (e *FailError) Error() string {
	return fmt.Sprintf("verification failed (%s): %s", e.Reason, e.Detail)
}

// Params bundles the inputs to a single verification check.
type Params struct {
	Original      *probe.MediaDescriptor
	OriginalSize  int64
	Candidate     *probe.MediaDescriptor
	CandidateSize int64
	MinSavings    int64
	RequireDV     bool // Original is Dolby Vision and policy demands preservation.
}

// Check applies every pass criterion and returns nil only when all hold.
func Check(p Params) error {
	if p.Original.Duration > 0 && p.Candidate.Duration < minDurationRatio*p.Original.Duration {
		return &FailError{
			Reason: "duration",
			Detail: fmt.Sprintf("candidate %.1fs < %.0f%% of original %.1fs",
				p.Candidate.Duration, minDurationRatio*100, p.Original.Duration),
		}
	}

	if len(p.Candidate.AudioStreams) < len(p.Original.AudioStreams) {
		return &FailError{
			Reason: "audio-streams",
			Detail: fmt.Sprintf("candidate has %d audio streams, original %d",
				len(p.Candidate.AudioStreams), len(p.Original.AudioStreams)),
		}
	}
	if len(p.Candidate.SubtitleStreams) < len(p.Original.SubtitleStreams) {
		return &FailError{
			Reason: "subtitle-streams",
			Detail: fmt.Sprintf("candidate has %d subtitle streams, original %d",
				len(p.Candidate.SubtitleStreams), len(p.Original.SubtitleStreams)),
		}
	}

	if saved := p.OriginalSize - p.CandidateSize; saved < p.MinSavings {
		return &FailError{
			Reason: "savings",
			Detail: fmt.Sprintf("saves %d bytes, minimum is %d", saved, p.MinSavings),
		}
	}

	v := p.Candidate.PrimaryVideo()
	if v == nil || v.Codec != targetCodec {
		got := "none"
		if v != nil {
			got = v.Codec
		}
		return &FailError{
			Reason: "codec",
			Detail: fmt.Sprintf("candidate video codec is %s, want %s", got, targetCodec),
		}
	}

	if p.RequireDV && !p.Candidate.IsDolbyVision() {
		return &FailError{
			Reason: "dolby-vision",
			Detail: "original is Dolby Vision but candidate is not",
		}
	}

	return nil
}

// ProbeFunc abstracts the candidate probe so tests can inject descriptors.
type ProbeFunc func(ctx context.Context, path string) (*probe.MediaDescriptor, error)

// Run probes the candidate and checks it, retrying up to 3 times with
// increasing delay. A fresh encoder output may not be fully flushed when
// the first probe runs, so probe failures and check failures both count as
// retryable; the error from the last attempt is the one reported. On
// success the candidate descriptor is returned for audit summaries.
func Run(ctx context.Context, probeFn ProbeFunc, candidatePath string, candidateSize int64,
	original *probe.MediaDescriptor, originalSize, minSavings int64, requireDV bool) (*probe.MediaDescriptor, error) {

	var candidate *probe.MediaDescriptor
	err := retry.Do(attempts, backoffFn, func(int) error {
		md, err := probeFn(ctx, candidatePath)
		if err != nil {
			return err
		}
		candidate = md
		return Check(Params{
			Original:      original,
			OriginalSize:  originalSize,
			Candidate:     md,
			CandidateSize: candidateSize,
			MinSavings:    minSavings,
			RequireDV:     requireDV,
		})
	})
	if err != nil {
		return nil, err
	}
	return candidate, nil
}
