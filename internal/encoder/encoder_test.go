package encoder

import (
	"reflect"
	"strings"
	"testing"

	"github.com/backmassage/reclaimer/internal/probe"
)

func argString(args []string) string { return strings.Join(args, " ") }

func md(audio ...probe.AudioStream) *probe.MediaDescriptor {
	return &probe.MediaDescriptor{
		VideoStreams: []probe.VideoStream{{Codec: "h264", Width: 1920, Height: 1080}},
		AudioStreams: audio,
	}
}

func TestBuildArgs_EightBit(t *testing.T) {
	args := BuildArgs("in.mkv", "out.mkv", Profile{CRF: 22, Preset: "medium"}, md(), nil)
	s := argString(args)

	for _, want := range []string{
		"-i in.mkv",
		"-map 0:v -map 0:a? -map 0:s?",
		"-c:v libx265",
		"-preset medium",
		"-crf 22",
		"-pix_fmt yuv420p",
		"-c:a copy",
		"-c:s copy",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("args missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "main10") {
		t.Error("8-bit profile requested main10")
	}
	if args[len(args)-1] != "out.mkv" {
		t.Errorf("last arg = %q, want the output path", args[len(args)-1])
	}
}

func TestBuildArgs_TenBit(t *testing.T) {
	args := BuildArgs("in.mkv", "out.mkv", Profile{TenBit: true, CRF: 20, Preset: "slow"}, md(), nil)
	s := argString(args)

	if !strings.Contains(s, "-profile:v main10") || !strings.Contains(s, "-pix_fmt yuv420p10le") {
		t.Errorf("10-bit profile args missing:\n%s", s)
	}
}

func TestBuildArgs_ExtraArgsBeforeOutput(t *testing.T) {
	prof := Profile{CRF: 22, Preset: "medium", ExtraArgs: []string{"-x265-params", "aq-mode=3"}}
	args := BuildArgs("in.mkv", "out.mkv", prof, md(), nil)

	n := len(args)
	if args[n-3] != "-x265-params" || args[n-2] != "aq-mode=3" || args[n-1] != "out.mkv" {
		t.Errorf("extra args not immediately before the output path: %v", args[n-4:])
	}
}

func TestParseExtraArgs(t *testing.T) {
	got, err := ParseExtraArgs(`-x265-params "aq-mode=3:psy-rd=2.0" -tune grain`)
	if err != nil {
		t.Fatalf("ParseExtraArgs: %v", err)
	}
	want := []string{"-x265-params", "aq-mode=3:psy-rd=2.0", "-tune", "grain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokens = %v, want %v", got, want)
	}

	if got, err := ParseExtraArgs("   "); err != nil || got != nil {
		t.Errorf("blank input gave %v, %v; want nil, nil", got, err)
	}
}

func TestDispositionArgs(t *testing.T) {
	safe := []string{"eng", "und"}

	tests := []struct {
		name string
		md   *probe.MediaDescriptor
		want []string
	}{
		{
			"default already safe",
			md(probe.AudioStream{Codec: "ac3", Language: "eng", IsDefault: true}),
			nil,
		},
		{
			"untagged default counts as safe",
			md(probe.AudioStream{Codec: "ac3", Language: "", IsDefault: true}),
			nil,
		},
		{
			"foreign default repointed to safe stream",
			md(
				probe.AudioStream{Codec: "ac3", Language: "jpn", IsDefault: true},
				probe.AudioStream{Codec: "aac", Language: "eng"},
			),
			[]string{"-disposition:a", "0", "-disposition:a:1", "default"},
		},
		{
			"no safe stream leaves dispositions alone",
			md(
				probe.AudioStream{Codec: "ac3", Language: "jpn", IsDefault: true},
				probe.AudioStream{Codec: "aac", Language: "fra"},
			),
			nil,
		},
		{
			"no audio at all",
			md(),
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dispositionArgs(tt.md, safe)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("dispositionArgs = %v, want %v", got, tt.want)
			}
		})
	}
}
