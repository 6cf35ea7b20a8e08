// Package decide implements the pure per-file encode decision: given an
// immutable media descriptor and the configured policy, should this file be
// transcoded, and at which bit depth. No I/O happens here.
package decide

import (
	"strings"

	"github.com/backmassage/reclaimer/internal/config"
	"github.com/backmassage/reclaimer/internal/probe"
)

// Reason classifies why a file is (or is not) processed.
type Reason string

const (
	ReasonForce            Reason = "force"
	ReasonCodecUpgrade     Reason = "codec-upgrade"
	ReasonBitrateBloat4K   Reason = "bitrate-bloat-4k"
	ReasonBitrateBloat1080 Reason = "bitrate-bloat-1080"
	ReasonAlreadyEfficient Reason = "already-efficient"
)

// Decision is the pure derived value consumed by the worker pipeline.
type Decision struct {
	Process bool
	Reason  Reason
	TenBit  bool
}

// Codecs that always warrant a transcode regardless of bitrate.
var legacyCodecs = map[string]bool{
	"h264":       true,
	"mpeg2video": true,
	"mpeg4":      true,
	"vc1":        true,
}

func isLegacyCodec(codec string) bool {
	return legacyCodecs[codec] || strings.HasPrefix(codec, "msmpeg4")
}

// Decide evaluates the processing rules in fixed order: force, legacy codec
// upgrade, bitrate bloat by resolution tier, otherwise already efficient.
// Rule order is load-bearing: a legacy-codec file under the bloat threshold
// is still processed, and its reason is the codec, not the bitrate.
//
// fileSize is the on-disk size used to derive a bitrate when the container
// does not report one. Callers must have rejected files with non-positive
// duration before calling.
func Decide(md *probe.MediaDescriptor, fileSize int64, cfg *config.Config) Decision {
	tenBit := chooseBitDepth(md, cfg.BitDepth)

	if cfg.Force {
		return Decision{Process: true, Reason: ReasonForce, TenBit: tenBit}
	}

	v := md.PrimaryVideo()
	if v != nil && isLegacyCodec(v.Codec) {
		return Decision{Process: true, Reason: ReasonCodecUpgrade, TenBit: tenBit}
	}

	kbps := md.EffectiveBitRate(fileSize) / 1000
	if v != nil && v.Width > cfg.Width4KCutoff {
		if kbps > cfg.Threshold4KKbps {
			return Decision{Process: true, Reason: ReasonBitrateBloat4K, TenBit: tenBit}
		}
	} else if kbps > cfg.Threshold1080Kbps {
		return Decision{Process: true, Reason: ReasonBitrateBloat1080, TenBit: tenBit}
	}

	return Decision{Process: false, Reason: ReasonAlreadyEfficient, TenBit: tenBit}
}

// chooseBitDepth maps the configured mode to a concrete bit depth. Auto
// keeps 10-bit sources (and HDR/DV, which imply it) at 10-bit so fidelity
// is preserved, and everything else at 8-bit so SDR output is not bloated.
func chooseBitDepth(md *probe.MediaDescriptor, mode config.BitDepthMode) bool {
	switch mode {
	case config.BitDepthAlways:
		return true
	case config.BitDepthNever:
		return false
	}
	if v := md.PrimaryVideo(); v != nil && v.BitDepth >= 10 {
		return true
	}
	return md.IsHDR() || md.IsDolbyVision()
}
