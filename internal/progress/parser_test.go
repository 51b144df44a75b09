package progress

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseProgressLine(t *testing.T) {
	u := Parse("[download]  42.5% of 10.00MiB at 1.20MiB/s ETA 00:30")
	if u.Percent == nil || !approx(*u.Percent, 0.425) {
		t.Fatalf("expected percent 0.425, got %v", u.Percent)
	}
	if u.Speed == nil || !approx(*u.Speed, 1.2*1024*1024) {
		t.Errorf("expected speed %f, got %v", 1.2*1024*1024, u.Speed)
	}
	if u.ETA == nil || *u.ETA != 30 {
		t.Errorf("expected eta 30, got %v", u.ETA)
	}
	if u.Filename != "" {
		t.Errorf("expected no filename, got %q", u.Filename)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected float64
		ok       bool
	}{
		{"regular", "[download]  10.0% of 5MiB", 0.1, true},
		{"complete", "[download] 100% of 5.00MiB in 00:02", 1, true},
		{"above hundred clamps", "[download] 130.0% of ~5MiB", 1, true},
		{"leading whitespace", "   [download]   5.5% of 1MiB", 0.055, true},
		{"no marker", "[youtube] 50% something", 0, false},
		{"no percent", "[download] Destination: a.mp4", 0, false},
		{"garbage before percent", "[download] Destination: 50abc%.mp4", 0, false},
		{"nan", "[download] NaN% of 1MiB", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percent(tt.line)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && !approx(got, tt.expected) {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestSpeed(t *testing.T) {
	tests := []struct {
		line     string
		expected float64
		ok       bool
	}{
		{"at 512KiB/s", 512 * 1024, true},
		{"at 3.5 MiB/s", 3.5 * 1024 * 1024, true},
		{"at 1GiB/s", 1024 * 1024 * 1024, true},
		{"at 100B/s", 0, false},
		{"at Unknown speed", 0, false},
		{"at 1.2.3MiB/s", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := Speed(tt.line)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && !approx(got, tt.expected) {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestETA(t *testing.T) {
	tests := []struct {
		line     string
		expected int
		ok       bool
	}{
		{"ETA 00:30", 30, true},
		{"ETA 12:05", 725, true},
		{"ETA 01:02:03", 3723, true},
		{"ETA Unknown", 0, false},
		{"no eta here", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ETA(tt.line)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestDestination(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
		ok       bool
	}{
		{"quoted", `Destination: "My Video.mp4"`, "My Video.mp4", true},
		{"download prefix with dir", "[download] Destination: /data/downloads/clip.f137.mp4", "clip.f137.mp4", true},
		{"extract audio", "[ExtractAudio] Destination: downloads/song.mp3", "song.mp3", true},
		{"windows path", `[download] Destination: C:\dl\a b.webm`, "a b.webm", true},
		{"merger", `[Merger] Merging formats into "downloads/My Video.mkv"`, "My Video.mkv", true},
		{"empty path", "[download] Destination: ", "", false},
		{"unrelated", "[info] Writing video metadata", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Destination(tt.line)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestParseIgnoresSpeedOutsideProgressLines(t *testing.T) {
	u := Parse("[info] average 2.00MiB/s ETA 00:10")
	if u.Percent != nil || u.Speed != nil || u.ETA != nil {
		t.Errorf("expected empty update, got %+v", u)
	}
}
