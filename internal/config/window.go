package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a time-of-day interval during which unattended processing may
// proceed. The zero value is an always-open window. Windows may wrap
// midnight (e.g. 23:00-07:00).
type Window struct {
	enabled    bool
	start, end int // minutes since midnight
}

// ParseWindow parses "HH:MM-HH:MM". An empty string yields an always-open
// window. Start and end equal is rejected (use "" to disable gating).
func ParseWindow(s string) (Window, error) {
	if strings.TrimSpace(s) == "" {
		return Window{}, nil
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("invalid run_window %q (use HH:MM-HH:MM)", s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("invalid run_window %q: %w", s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("invalid run_window %q: %w", s, err)
	}
	if start == end {
		return Window{}, fmt.Errorf("invalid run_window %q: start equals end", s)
	}
	return Window{enabled: true, start: start, end: end}, nil
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

// Enabled reports whether the window restricts processing at all.
func (w Window) Enabled() bool { return w.enabled }

// Contains reports whether t falls inside the window, handling wraparound
// when the interval crosses midnight.
func (w Window) Contains(t time.Time) bool {
	if !w.enabled {
		return true
	}
	now := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return now >= w.start && now < w.end
	}
	// Wraps midnight: inside iff after start or before end.
	return now >= w.start || now < w.end
}

// NextOpen returns the next instant at or after t when the window is open.
// If t is already inside, t is returned unchanged.
func (w Window) NextOpen(t time.Time) time.Time {
	if w.Contains(t) {
		return t
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	open := day.Add(time.Duration(w.start) * time.Minute)
	if !open.After(t) {
		open = open.Add(24 * time.Hour)
	}
	return open
}

// String renders the window back to HH:MM-HH:MM form for logging.
func (w Window) String() string {
	if !w.enabled {
		return "always"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.start/60, w.start%60, w.end/60, w.end%60)
}
