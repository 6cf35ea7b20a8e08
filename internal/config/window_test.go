package config

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		str     string
	}{
		{"", false, "always"},
		{"23:00-07:00", false, "23:00-07:00"},
		{"01:30-05:45", false, "01:30-05:45"},
		{"1:30-5:45", false, "01:30-05:45"},
		{"23:00", true, ""},
		{"25:00-07:00", true, ""},
		{"23:60-07:00", true, ""},
		{"abc-def", true, ""},
		{"04:00-04:00", true, ""},
	}
	for _, tt := range tests {
		w, err := ParseWindow(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWindow(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWindow(%q): %v", tt.in, err)
			continue
		}
		if w.String() != tt.str {
			t.Errorf("ParseWindow(%q).String() = %q, want %q", tt.in, w.String(), tt.str)
		}
	}
}

func TestWindowContains_Daytime(t *testing.T) {
	w, err := ParseWindow("09:00-17:00")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		t    time.Time
		want bool
	}{
		{at(8, 59), false},
		{at(9, 0), true},
		{at(12, 30), true},
		{at(16, 59), true},
		{at(17, 0), false}, // End is exclusive.
		{at(23, 0), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.t); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
		}
	}
}

func TestWindowContains_WrapsMidnight(t *testing.T) {
	w, err := ParseWindow("23:00-07:00")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		t    time.Time
		want bool
	}{
		{at(22, 59), false},
		{at(23, 0), true},
		{at(0, 0), true},
		{at(3, 30), true},
		{at(6, 59), true},
		{at(7, 0), false},
		{at(12, 0), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.t); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
		}
	}
}

func TestWindowContains_AlwaysOpen(t *testing.T) {
	var w Window
	if !w.Contains(at(12, 0)) || !w.Contains(at(3, 0)) {
		t.Error("zero-value window should always be open")
	}
}

func TestWindowNextOpen(t *testing.T) {
	w, err := ParseWindow("23:00-07:00")
	if err != nil {
		t.Fatal(err)
	}

	// Inside: unchanged.
	inside := at(2, 0)
	if got := w.NextOpen(inside); !got.Equal(inside) {
		t.Errorf("NextOpen inside window = %s, want unchanged", got)
	}

	// Midday: opens tonight at 23:00.
	if got := w.NextOpen(at(12, 0)); got.Hour() != 23 || got.Day() != 10 {
		t.Errorf("NextOpen(12:00) = %s, want 23:00 same day", got)
	}

	// Just after close at 07:00: also tonight at 23:00.
	if got := w.NextOpen(at(7, 0)); got.Hour() != 23 || got.Day() != 10 {
		t.Errorf("NextOpen(07:00) = %s, want 23:00 same day", got)
	}
}
