package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/grabd/internal/progress"
	"github.com/tanq16/grabd/internal/task"
)

const msgFileNotFound = "Download finished but file not found"

// Download runs one yt-dlp job for t. Every outcome is recorded on the task;
// nothing is returned to the caller.
func (d *MediaDownloader) Download(t *task.Task) {
	if t.Title() == "" {
		title, err := d.Title(context.Background(), t.Request.URL)
		if err != nil {
			log.Debug().Str("op", "media/download").Str("task", t.ID).Err(err).Msg("title probe failed")
		} else if title != "" {
			t.SetTitle(title)
		}
	}

	template := filepath.Join(d.dir, outputBase(t.Title(), t.ID)+".%(ext)s")
	bin := d.command()
	args := append(append([]string{}, bin[1:]...), BuildArgs(t.Request, template, d.ffmpeg)...)
	cmd := exec.Command(bin[0], args...)
	log.Debug().Str("op", "media/download").Str("task", t.ID).Msgf("Executing yt-dlp command: %s", cmd.String())

	if !t.Begin() {
		return
	}

	// stdout and stderr share one pipe so lines arrive in the order written
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fail(fmt.Sprintf("error creating output pipe: %v", err))
		return
	}
	defer reader.Close()
	cmd.Stdout = writer
	cmd.Stderr = writer
	if err := cmd.Start(); err != nil {
		writer.Close()
		log.Error().Str("op", "media/download").Str("task", t.ID).Err(err).Msg("Error starting yt-dlp")
		t.Fail(err.Error())
		return
	}
	writer.Close()

	if stopped := d.stream(t, reader); stopped {
		if err := terminate(cmd); err != nil {
			log.Warn().Str("op", "media/download").Str("task", t.ID).Err(err).Msg("failed to terminate yt-dlp")
		}
		go reap(cmd, t.ID)
		return
	}

	if err := cmd.Wait(); err != nil {
		log.Warn().Str("op", "media/download").Str("task", t.ID).Err(err).Msg("yt-dlp exited with error")
	}
	if _, stop := t.Checkpoint(); stop {
		return
	}

	filename := t.Filename()
	if filename == "" {
		if found := findArtifact(d.dir, t.ID); found != "" {
			filename = found
			t.SetFilename(found, filepath.Join(d.dir, found))
		}
	}
	if filename == "" {
		t.Fail(msgFileNotFound)
		return
	}
	state := t.Complete(time.Now())
	log.Info().Str("op", "media/download").Str("task", t.ID).Str("state", string(state)).Msgf("yt-dlp download finished: %s", filename)
}

// stream feeds every output line to the parser and checks the control flag
// after each one. It reports whether the worker was told to stop.
func (d *MediaDownloader) stream(t *task.Task, r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			d.apply(t, line)
		}
		if state, stop := t.Checkpoint(); stop {
			log.Info().Str("op", "media/download").Str("task", t.ID).Msgf("stopping yt-dlp, task %s", state)
			return true
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Str("op", "media/download").Str("task", t.ID).Err(err).Msg("error reading yt-dlp output")
		io.Copy(io.Discard, r)
	}
	return false
}

func (d *MediaDownloader) apply(t *task.Task, line string) {
	u := progress.Parse(line)
	if u.Percent != nil {
		t.Report(*u.Percent, u.Speed, u.ETA)
	}
	if u.Filename != "" {
		t.SetFilename(u.Filename, filepath.Join(d.dir, u.Filename))
	}
}

// reap collects the exit status of a terminated child so it does not linger.
func reap(cmd *exec.Cmd, id string) {
	if err := cmd.Wait(); err != nil {
		log.Debug().Str("op", "media/download").Str("task", id).Err(err).Msg("terminated yt-dlp exited")
	}
}
