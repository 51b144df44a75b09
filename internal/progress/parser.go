// Package progress extracts telemetry from yt-dlp's line-oriented transcript.
// Every function is pure and best-effort: a line that does not match, or a
// field that fails conversion, is reported as absent.
package progress

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	downloadMarker    = "[download]"
	destinationMarker = "Destination:"
	mergeMarker       = `Merging formats into "`
)

var (
	speedRegex = regexp.MustCompile(`([0-9.]+)\s*(KiB|MiB|GiB)/s`)
	etaRegex   = regexp.MustCompile(`ETA\s*(\d+):(\d+)(?::(\d+))?`)
)

var unitMultipliers = map[string]float64{
	"KiB": 1024,
	"MiB": 1024 * 1024,
	"GiB": 1024 * 1024 * 1024,
}

// Update is everything one line yielded.
type Update struct {
	Percent  *float64
	Speed    *float64
	ETA      *int
	Filename string
}

// Parse runs every extractor over line. Speed and ETA are only read from
// download progress lines.
func Parse(line string) Update {
	line = strings.TrimSpace(line)
	var u Update
	if p, ok := Percent(line); ok {
		u.Percent = &p
		if s, ok := Speed(line); ok {
			u.Speed = &s
		}
		if e, ok := ETA(line); ok {
			u.ETA = &e
		}
	}
	if name, ok := Destination(line); ok {
		u.Filename = name
	}
	return u
}

// Percent returns the completion fraction of a "[download] 42.5% ..." line,
// clamped to [0, 1].
func Percent(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, downloadMarker) || !strings.Contains(line, "%") {
		return 0, false
	}
	fields := strings.Fields(strings.SplitN(line, "%", 2)[0])
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return math.Max(0, math.Min(1, v/100)), true
}

// Speed returns the transfer rate in bytes per second.
func Speed(line string) (float64, bool) {
	m := speedRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v * unitMultipliers[m[2]], true
}

// ETA returns the remaining time in seconds from "ETA mm:ss" or "ETA hh:mm:ss".
func ETA(line string) (int, bool) {
	m := etaRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	parts := []string{m[1], m[2]}
	if m[3] != "" {
		parts = append(parts, m[3])
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// Destination returns the base name of the file yt-dlp announces it is
// writing or merging into.
func Destination(line string) (string, bool) {
	var path string
	if i := strings.Index(line, destinationMarker); i >= 0 {
		path = strings.Trim(strings.TrimSpace(line[i+len(destinationMarker):]), `"`)
	} else if i := strings.Index(line, mergeMarker); i >= 0 {
		path = strings.TrimSuffix(strings.TrimSpace(line[i+len(mergeMarker):]), `"`)
	} else {
		return "", false
	}
	name := baseName(path)
	if name == "" || name == "." {
		return "", false
	}
	return name, true
}

// baseName accepts both separators since yt-dlp echoes paths in host form.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	return strings.TrimSpace(path)
}
