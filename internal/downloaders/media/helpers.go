package media

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tanq16/grabd/internal/task"
	"github.com/tanq16/grabd/internal/utils"
)

const (
	videoSelector = "bv*+ba/best"
	audioSelector = "bestaudio/best"
)

var (
	qualityRegex = regexp.MustCompile(`^(\d+)p$`)

	videoContainers = map[string]bool{"mp4": true, "mkv": true, "webm": true}
	audioFormats    = map[string]bool{"mp3": true, "m4a": true, "aac": true}

	// yt-dlp leftovers that never count as a finished artifact
	skippedSuffixes = []string{".part", ".ytdl", ".temp"}
)

// BuildArgs composes the yt-dlp argument list for req. Unknown formats and
// qualities are dropped so yt-dlp falls back to its own defaults; the URL is
// always last.
func BuildArgs(req task.Request, outputTemplate, ffmpegPath string) []string {
	args := []string{"--newline", "-o", outputTemplate}
	if req.Category == task.CategoryVideo {
		if m := qualityRegex.FindStringSubmatch(strings.TrimSpace(req.Quality)); m != nil {
			args = append(args, "-S", "res:"+m[1])
		}
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if req.Category == task.CategoryAudio {
		args = append(args, "-f", audioSelector, "-x")
		if audioFormats[format] {
			args = append(args, "--audio-format", format)
		}
	} else {
		args = append(args, "-f", videoSelector)
		if videoContainers[format] {
			args = append(args, "--merge-output-format", format)
		}
	}
	if ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", ffmpegPath)
	}
	return append(args, req.URL)
}

// outputBase picks the file stem: the sanitized title, or the task id.
func outputBase(title, id string) string {
	if title == "" {
		return id
	}
	if safe := utils.SanitizeFilename(title); safe != "" {
		return safe
	}
	return id
}

// findArtifact looks for a finished file named after the task id.
func findArtifact(dir, id string) string {
	matches, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return ""
	}
	sort.Strings(matches)
	for _, m := range matches {
		if !hasSkippedSuffix(m) {
			return filepath.Base(m)
		}
	}
	return ""
}

func hasSkippedSuffix(name string) bool {
	for _, s := range skippedSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Title asks yt-dlp for the page title, bounded by the title timeout.
func (d *MediaDownloader) Title(ctx context.Context, url string) (string, error) {
	if len(d.ytdlp) == 0 {
		return "", ErrExecutableUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, d.titleTimeout)
	defer cancel()
	out, err := runOutput(ctx, d.ytdlp, "--get-title", "--no-warnings", url)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// Health reports tool versions; unavailable tools are nil.
type Health struct {
	YtDlp  *string `json:"yt_dlp"`
	FFmpeg *string `json:"ffmpeg"`
	Time   string  `json:"time"`
}

func (d *MediaDownloader) Health(ctx context.Context) Health {
	h := Health{Time: time.Now().Format(time.RFC3339)}
	if len(d.ytdlp) > 0 {
		if v := probe(ctx, d.ytdlp, "--version"); v != "" {
			h.YtDlp = &v
		}
	}
	if d.ffmpeg != "" {
		if v := probe(ctx, []string{d.ffmpeg}, "-version"); v != "" {
			h.FFmpeg = &v
		}
	}
	return h
}

func probe(ctx context.Context, bin []string, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, defaultVersionTimeout)
	defer cancel()
	out, err := runOutput(ctx, bin, args...)
	if err != nil {
		return ""
	}
	return firstLine(out)
}

func runOutput(ctx context.Context, bin []string, args ...string) (string, error) {
	argv := append(append([]string{}, bin[1:]...), args...)
	out, err := exec.CommandContext(ctx, bin[0], argv...).Output()
	return string(out), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
