// Package display renders byte counts and bitrates for log lines and the
// run summary.
package display

import "fmt"

var sizeSuffixes = [...]string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatBytes renders a byte count in binary units with one decimal,
// e.g. "700.0 MiB". Values under 1 KiB stay integral.
func FormatBytes(bytes int64) string {
	v := float64(bytes)
	exp := 0
	for v >= 1024 && exp < len(sizeSuffixes)-1 {
		v /= 1024
		exp++
	}
	if exp == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", v, sizeSuffixes[exp])
}

// FormatBytesWithSign renders a size delta with its direction, so a
// committed swap reads "- 5.0 GiB" and a regression "+ 1.2 GiB".
func FormatBytesWithSign(bytes int64) string {
	switch {
	case bytes > 0:
		return "+ " + FormatBytes(bytes)
	case bytes < 0:
		return "- " + FormatBytes(-bytes)
	default:
		return FormatBytes(0)
	}
}

// FormatBitrateLabel renders a kbps value, switching to Mbps at 1000.
func FormatBitrateLabel(kbps int64) string {
	if kbps < 1000 {
		return fmt.Sprintf("%d kbps", kbps)
	}
	return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
}
