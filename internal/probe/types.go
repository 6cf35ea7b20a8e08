package probe

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index          int
	Codec          string
	CodecTag       string
	CodecLongName  string
	Profile        string
	PixFmt         string
	Width          int
	Height         int
	BitRate        int64
	BitDepth       int // 0 when unknown
	ColorTransfer  string
	ColorPrimaries string
	IsAttachedPic  bool
	SideDataTypes  []string
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index     int
	Codec     string
	Channels  int
	BitRate   int64
	Language  string
	IsDefault bool
}

// SubtitleStream holds the parsed properties of a single subtitle stream.
type SubtitleStream struct {
	Index    int
	Codec    string
	Language string
}

// MediaDescriptor is the fully parsed output of a single probe call. It is
// an immutable snapshot: created fresh per probe, never mutated.
type MediaDescriptor struct {
	Duration float64 // Container duration in seconds.
	Size     int64   // Container size in bytes (as reported by the probe).
	BitRate  int64   // Overall container bitrate in bits/sec.
	Format   string

	VideoStreams    []VideoStream
	AudioStreams    []AudioStream
	SubtitleStreams []SubtitleStream
}

// PrimaryVideo returns the program video stream, or nil when the file has
// no video streams at all. See SelectPrimaryVideo for the selection rule.
func (m *MediaDescriptor) PrimaryVideo() *VideoStream {
	return SelectPrimaryVideo(m.VideoStreams)
}

// SelectPrimaryVideo picks the program video stream from a stream list.
// Attached pictures (cover art) are excluded first; if nothing remains the
// first stream of any kind is returned so callers still get *something* for
// oddball files. Among the remainder the largest pixel area wins, ties
// broken by first-encountered order. Naive "first video stream" logic would
// silently treat cover art as the program video.
func SelectPrimaryVideo(streams []VideoStream) *VideoStream {
	if len(streams) == 0 {
		return nil
	}

	var best *VideoStream
	for i := range streams {
		s := &streams[i]
		if s.IsAttachedPic {
			continue
		}
		if best == nil || s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	if best == nil {
		return &streams[0]
	}
	return best
}

// EffectiveBitRate returns the container bitrate when the probe reported
// one, otherwise a value derived from file size and duration. Returns 0
// when neither is computable.
func (m *MediaDescriptor) EffectiveBitRate(fileSize int64) int64 {
	if m.BitRate > 0 {
		return m.BitRate
	}
	if m.Duration > 0 && fileSize > 0 {
		return int64(float64(fileSize) * 8 / m.Duration)
	}
	return 0
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (m *MediaDescriptor) Resolution() string {
	v := m.PrimaryVideo()
	if v == nil || v.Width <= 0 || v.Height <= 0 {
		return "unknown"
	}
	return itoa(v.Width) + "x" + itoa(v.Height)
}

// VideoSummary returns a compact one-line description of the primary video
// stream for audit records, e.g. "hevc 1920x1080 10bit hdr".
func (m *MediaDescriptor) VideoSummary() string {
	v := m.PrimaryVideo()
	if v == nil {
		return "none"
	}
	s := v.Codec + " " + m.Resolution()
	if v.BitDepth > 0 {
		s += " " + itoa(v.BitDepth) + "bit"
	}
	if m.IsHDR() {
		s += " hdr"
	}
	return s
}

// AudioSummary returns a compact description of the audio streams for audit
// records, e.g. "ac3 6ch eng; aac 2ch ger".
func (m *MediaDescriptor) AudioSummary() string {
	if len(m.AudioStreams) == 0 {
		return "none"
	}
	var s string
	for i, a := range m.AudioStreams {
		if i > 0 {
			s += "; "
		}
		s += a.Codec + " " + itoa(a.Channels) + "ch"
		if a.Language != "" {
			s += " " + a.Language
		}
	}
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
