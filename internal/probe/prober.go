// Package probe wraps ffprobe-based media inspection behind typed result
// structures. One JSON call per file yields an immutable MediaDescriptor;
// callers never touch raw probe output.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Selector restricts which stream kinds a probe call requests. Narrower
// selections are cheaper on large files.
type Selector string

const (
	AllStreams Selector = ""  // Format plus every stream.
	VideoOnly  Selector = "v" // Video streams only.
	AudioOnly  Selector = "a" // Audio streams only.
)

// Error is returned for any inspector failure: missing binary, non-zero
// exit, or unparseable output. ExitCode is -1 when the process never ran.
type Error struct {
	Path     string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %q (exit %d): %v", e.Path, e.ExitCode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Probe runs a single ffprobe JSON call against path and returns the parsed
// descriptor. There are no retries at this layer; callers decide.
func Probe(ctx context.Context, bin, path string, sel Selector) (*MediaDescriptor, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
	}
	if sel != AllStreams {
		args = append(args, "-select_streams", string(sel))
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, &Error{Path: path, ExitCode: exitCode(err), Err: err}
	}

	md, err := ParseJSON(out)
	if err != nil {
		return nil, &Error{Path: path, ExitCode: 0, Err: err}
	}
	return md, nil
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// ParseJSON converts raw ffprobe JSON output into a MediaDescriptor.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*MediaDescriptor, error) {
	if len(data) == 0 {
		return nil, errors.New("empty probe output")
	}
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse probe JSON: %w", err)
	}
	return buildDescriptor(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index            int               `json:"index"`
	CodecName        string            `json:"codec_name"`
	CodecLongName    string            `json:"codec_long_name"`
	CodecType        string            `json:"codec_type"`
	CodecTagString   string            `json:"codec_tag_string"`
	Profile          string            `json:"profile"`
	PixFmt           string            `json:"pix_fmt"`
	Width            int               `json:"width"`
	Height           int               `json:"height"`
	BitRate          string            `json:"bit_rate"`
	BitsPerRawSample string            `json:"bits_per_raw_sample"`
	ColorTransfer    string            `json:"color_transfer"`
	ColorPrimaries   string            `json:"color_primaries"`
	Channels         int               `json:"channels"`
	Disposition      map[string]int    `json:"disposition"`
	Tags             map[string]string `json:"tags"`
	SideDataList     []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string `json:"side_data_type"`
}

// --- Conversion from wire types to domain types ---

func buildDescriptor(raw *ffprobeOutput) *MediaDescriptor {
	md := &MediaDescriptor{
		Duration: parseFloat(raw.Format.Duration),
		Size:     parseInt64(raw.Format.Size),
		BitRate:  parseInt64(raw.Format.BitRate),
		Format:   raw.Format.FormatName,
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			md.VideoStreams = append(md.VideoStreams, convertVideo(s))
		case "audio":
			md.AudioStreams = append(md.AudioStreams, convertAudio(s))
		case "subtitle":
			md.SubtitleStreams = append(md.SubtitleStreams, convertSubtitle(s))
		}
	}
	return md
}

func convertVideo(s *ffprobeStream) VideoStream {
	return VideoStream{
		Index:          s.Index,
		Codec:          strings.ToLower(s.CodecName),
		CodecTag:       strings.ToLower(s.CodecTagString),
		CodecLongName:  s.CodecLongName,
		Profile:        s.Profile,
		PixFmt:         s.PixFmt,
		Width:          s.Width,
		Height:         s.Height,
		BitRate:        parseInt64(s.BitRate),
		BitDepth:       detectBitDepth(s),
		ColorTransfer:  s.ColorTransfer,
		ColorPrimaries: s.ColorPrimaries,
		IsAttachedPic:  s.Disposition["attached_pic"] == 1,
		SideDataTypes:  sideDataTypes(s.SideDataList),
	}
}

func convertAudio(s *ffprobeStream) AudioStream {
	return AudioStream{
		Index:     s.Index,
		Codec:     strings.ToLower(s.CodecName),
		Channels:  s.Channels,
		BitRate:   parseInt64(s.BitRate),
		Language:  s.Tags["language"],
		IsDefault: s.Disposition["default"] == 1,
	}
}

func convertSubtitle(s *ffprobeStream) SubtitleStream {
	return SubtitleStream{
		Index:    s.Index,
		Codec:    strings.ToLower(s.CodecName),
		Language: s.Tags["language"],
	}
}

func sideDataTypes(list []ffprobeSideData) []string {
	if len(list) == 0 {
		return nil
	}
	types := make([]string, 0, len(list))
	for _, sd := range list {
		types = append(types, sd.SideDataType)
	}
	return types
}

// detectBitDepth prefers the explicit bits_per_raw_sample field and falls
// back to the pixel format name.
func detectBitDepth(s *ffprobeStream) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s.BitsPerRawSample)); err == nil && n > 0 {
		return n
	}
	pf := strings.ToLower(s.PixFmt)
	switch {
	case strings.Contains(pf, "12le"), strings.Contains(pf, "12be"):
		return 12
	case strings.Contains(pf, "10le"), strings.Contains(pf, "10be"), strings.Contains(pf, "p010"):
		return 10
	case pf == "":
		return 0
	default:
		return 8
	}
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
