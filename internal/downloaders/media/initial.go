package media

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrExecutableUnavailable = errors.New("yt-dlp executable not found")

const (
	defaultTitleTimeout   = 20 * time.Second
	defaultVersionTimeout = 10 * time.Second
)

type Options struct {
	Dir          string
	YtdlpPath    string
	FFmpegPath   string
	TitleTimeout time.Duration
}

// MediaDownloader runs video and audio tasks through yt-dlp.
type MediaDownloader struct {
	dir          string
	ytdlp        []string
	ffmpeg       string
	titleTimeout time.Duration
}

// New resolves the external tools once. A missing yt-dlp is not fatal: title
// and health probes degrade to empty results and each run fails on launch.
func New(opts Options) *MediaDownloader {
	d := &MediaDownloader{
		dir:          opts.Dir,
		titleTimeout: opts.TitleTimeout,
	}
	if d.titleTimeout == 0 {
		d.titleTimeout = defaultTitleTimeout
	}
	if path, err := EnsureYtdlp(opts.YtdlpPath); err == nil {
		d.ytdlp = []string{path}
		log.Info().Str("op", "media/initial").Msgf("using yt-dlp at %s", path)
	} else {
		log.Warn().Str("op", "media/initial").Err(err).Msg("yt-dlp unavailable, media downloads will fail")
	}
	if path, err := EnsureFFmpeg(opts.FFmpegPath); err == nil {
		d.ffmpeg = path
		log.Debug().Str("op", "media/initial").Msgf("using ffmpeg at %s", path)
	}
	return d
}

// command returns the argv prefix used to launch yt-dlp.
func (d *MediaDownloader) command() []string {
	if len(d.ytdlp) > 0 {
		return d.ytdlp
	}
	return []string{"yt-dlp"}
}

func EnsureYtdlp(configured string) (string, error) {
	if configured != "" {
		return exec.LookPath(configured)
	}
	for _, name := range []string{"yt-dlp", "yt_dlp"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if path, ok := besideExecutable("yt-dlp"); ok {
		return path, nil
	}
	return "", ErrExecutableUnavailable
}

func EnsureFFmpeg(configured string) (string, error) {
	if configured != "" {
		return exec.LookPath(configured)
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}
	if path, ok := besideExecutable("ffmpeg"); ok {
		return path, nil
	}
	return "", errors.New("ffmpeg not found in PATH")
}

func besideExecutable(name string) (string, bool) {
	execPath, err := os.Executable()
	if err != nil {
		return "", false
	}
	path := filepath.Join(filepath.Dir(execPath), name)
	if runtime.GOOS == "windows" {
		path += ".exe"
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
