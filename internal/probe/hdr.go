package probe

import "strings"

// IsHDR reports whether the primary video stream carries HDR color
// metadata: smpte2084/arib-std-b67 transfer or bt2020 primaries.
func (m *MediaDescriptor) IsHDR() bool {
	v := m.PrimaryVideo()
	if v == nil {
		return false
	}
	switch v.ColorTransfer {
	case "smpte2084", "arib-std-b67":
		return true
	}
	return v.ColorPrimaries == "bt2020"
}

// Codec tag families that identify Dolby Vision elementary streams.
var dvCodecTags = map[string]bool{
	"dvh1": true,
	"dvhe": true,
	"dva1": true,
	"dvav": true,
}

// IsDolbyVision reports whether the primary video stream carries Dolby
// Vision, detected from any of three signals: the DV codec tag family, a
// DOVI side-data entry, or a DV marker in descriptive text fields. Multiple
// signals are checked because muxers are inconsistent about which they set.
func (m *MediaDescriptor) IsDolbyVision() bool {
	v := m.PrimaryVideo()
	if v == nil {
		return false
	}
	if dvCodecTags[v.CodecTag] {
		return true
	}
	for _, t := range v.SideDataTypes {
		u := strings.ToUpper(t)
		if strings.Contains(u, "DOVI") || strings.Contains(u, "DOLBY VISION") {
			return true
		}
	}
	for _, text := range []string{v.CodecLongName, v.Profile} {
		l := strings.ToLower(text)
		if strings.Contains(l, "dolby vision") || strings.Contains(l, "dvhe") || strings.Contains(l, "dvh1") {
			return true
		}
	}
	return false
}
