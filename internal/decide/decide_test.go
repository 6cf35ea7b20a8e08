package decide

import (
	"testing"

	"github.com/backmassage/reclaimer/internal/config"
	"github.com/backmassage/reclaimer/internal/probe"
)

// --- Helper builders ---

func baseCfg() *config.Config {
	return &config.Config{
		Threshold4KKbps:   8000,
		Threshold1080Kbps: 4000,
		Width4KCutoff:     2500,
		BitDepth:          config.BitDepthAuto,
	}
}

func file(codec string, width, height int, kbps int64) *probe.MediaDescriptor {
	return &probe.MediaDescriptor{
		Duration: 3600,
		BitRate:  kbps * 1000,
		VideoStreams: []probe.VideoStream{
			{Codec: codec, Width: width, Height: height, BitDepth: 8},
		},
	}
}

func tenBitHDR(codec string, width, height int, kbps int64) *probe.MediaDescriptor {
	md := file(codec, width, height, kbps)
	md.VideoStreams[0].BitDepth = 10
	md.VideoStreams[0].ColorTransfer = "smpte2084"
	return md
}

func TestDecide_LegacyCodecAlwaysProcessed(t *testing.T) {
	// Well under the bitrate threshold; the codec alone triggers.
	dec := Decide(file("h264", 1920, 1080, 2000), 1_000_000_000, baseCfg())
	if !dec.Process {
		t.Fatal("h264 under threshold not processed")
	}
	if dec.Reason != ReasonCodecUpgrade {
		t.Errorf("reason = %s, want %s", dec.Reason, ReasonCodecUpgrade)
	}
}

func TestDecide_LegacyCodecFamilies(t *testing.T) {
	for _, codec := range []string{"h264", "mpeg2video", "mpeg4", "vc1", "msmpeg4v2", "msmpeg4v3"} {
		dec := Decide(file(codec, 1280, 720, 1500), 500_000_000, baseCfg())
		if !dec.Process || dec.Reason != ReasonCodecUpgrade {
			t.Errorf("%s: process=%v reason=%s, want codec upgrade", codec, dec.Process, dec.Reason)
		}
	}
}

func TestDecide_Bloat4K(t *testing.T) {
	dec := Decide(file("hevc", 3840, 2160, 12000), 10_000_000_000, baseCfg())
	if !dec.Process {
		t.Fatal("12000 kbps 4K hevc not processed")
	}
	if dec.Reason != ReasonBitrateBloat4K {
		t.Errorf("reason = %s, want %s", dec.Reason, ReasonBitrateBloat4K)
	}
}

func TestDecide_Bloat1080(t *testing.T) {
	dec := Decide(file("hevc", 1920, 1080, 6000), 3_000_000_000, baseCfg())
	if !dec.Process || dec.Reason != ReasonBitrateBloat1080 {
		t.Errorf("process=%v reason=%s, want 1080 bloat", dec.Process, dec.Reason)
	}
}

func TestDecide_AlreadyEfficient(t *testing.T) {
	// Modern codec at 3500 kbps against a 4000 threshold.
	dec := Decide(file("hevc", 1920, 1080, 3500), 2_000_000_000, baseCfg())
	if dec.Process {
		t.Fatal("efficient hevc was processed")
	}
	if dec.Reason != ReasonAlreadyEfficient {
		t.Errorf("reason = %s, want %s", dec.Reason, ReasonAlreadyEfficient)
	}
}

func TestDecide_TierSelectionByWidth(t *testing.T) {
	cfg := baseCfg()

	// 6000 kbps: bloated for 1080, fine for 4K. Width decides the tier.
	uhd := Decide(file("hevc", 3840, 2160, 6000), 5_000_000_000, cfg)
	if uhd.Process {
		t.Error("6000 kbps 4K file processed; threshold is 8000")
	}

	hd := Decide(file("hevc", 1920, 1080, 6000), 5_000_000_000, cfg)
	if !hd.Process {
		t.Error("6000 kbps 1080 file not processed; threshold is 4000")
	}
}

func TestDecide_ThresholdIsExclusive(t *testing.T) {
	// Exactly at the threshold does not count as bloated.
	dec := Decide(file("hevc", 1920, 1080, 4000), 2_000_000_000, baseCfg())
	if dec.Process {
		t.Error("file exactly at the threshold was processed")
	}
}

func TestDecide_Force(t *testing.T) {
	cfg := baseCfg()
	cfg.Force = true

	dec := Decide(file("hevc", 1920, 1080, 1000), 500_000_000, cfg)
	if !dec.Process || dec.Reason != ReasonForce {
		t.Errorf("process=%v reason=%s, want forced", dec.Process, dec.Reason)
	}
}

func TestDecide_DerivedBitrateWhenContainerSilent(t *testing.T) {
	// No container bitrate: 4.5 GB over 3600 s is 10 Mbit/s, over the
	// 1080 threshold.
	md := file("hevc", 1920, 1080, 0)
	md.BitRate = 0
	dec := Decide(md, 4_500_000_000, baseCfg())
	if !dec.Process || dec.Reason != ReasonBitrateBloat1080 {
		t.Errorf("process=%v reason=%s, want 1080 bloat from derived bitrate", dec.Process, dec.Reason)
	}
}

func TestDecide_BitDepthAuto(t *testing.T) {
	cfg := baseCfg()

	sdr := Decide(file("h264", 1920, 1080, 2000), 1_000_000_000, cfg)
	if sdr.TenBit {
		t.Error("8-bit SDR source got a 10-bit encode under auto")
	}

	hdr := Decide(tenBitHDR("hevc", 3840, 2160, 20000), 10_000_000_000, cfg)
	if !hdr.TenBit {
		t.Error("10-bit HDR source got an 8-bit encode under auto")
	}

	// HDR metadata with no explicit bit depth still implies 10-bit.
	md := file("h264", 3840, 2160, 20000)
	md.VideoStreams[0].BitDepth = 0
	md.VideoStreams[0].ColorTransfer = "arib-std-b67"
	if dec := Decide(md, 10_000_000_000, cfg); !dec.TenBit {
		t.Error("HDR source without bit depth info got an 8-bit encode under auto")
	}
}

func TestDecide_BitDepthOverrides(t *testing.T) {
	cfg := baseCfg()

	cfg.BitDepth = config.BitDepthAlways
	if dec := Decide(file("h264", 1280, 720, 2000), 1_000_000_000, cfg); !dec.TenBit {
		t.Error("always mode produced an 8-bit decision")
	}

	cfg.BitDepth = config.BitDepthNever
	if dec := Decide(tenBitHDR("hevc", 3840, 2160, 20000), 10_000_000_000, cfg); dec.TenBit {
		t.Error("never mode produced a 10-bit decision")
	}
}

func TestDecide_Pure(t *testing.T) {
	md := file("h264", 1920, 1080, 6000)
	cfg := baseCfg()
	first := Decide(md, 3_000_000_000, cfg)
	second := Decide(md, 3_000_000_000, cfg)
	if first != second {
		t.Errorf("identical inputs gave %+v then %+v", first, second)
	}
}
