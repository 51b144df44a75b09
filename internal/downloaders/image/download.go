package image

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/grabd/internal/task"
	"github.com/tanq16/grabd/internal/utils"
)

const defaultExtension = "jpg"

// ImageDownloader streams a single remote file into the download directory.
type ImageDownloader struct {
	dir    string
	client utils.HTTPDoer
}

func New(dir string, client utils.HTTPDoer) *ImageDownloader {
	return &ImageDownloader{dir: dir, client: client}
}

func (d *ImageDownloader) Download(t *task.Task) {
	if !t.Begin() {
		return
	}
	start := time.Now()
	name, written, stopped, err := d.fetch(t)
	if err != nil {
		log.Error().Str("op", "image/download").Str("task", t.ID).Err(err).Msg("image download failed")
		t.Fail(err.Error())
		return
	}
	if stopped {
		log.Info().Str("op", "image/download").Str("task", t.ID).Msgf("image download stopped after %s", utils.FormatBytes(uint64(written)))
		return
	}
	t.SetFilename(name, filepath.Join(d.dir, name))
	state := t.Complete(time.Now())
	log.Info().Str("op", "image/download").Str("task", t.ID).Str("state", string(state)).Msgf("image saved as %s (%s at %s)", name, utils.FormatBytes(uint64(written)), utils.FormatSpeed(written, time.Since(start).Seconds()))
}

// fetch streams the body chunk by chunk, checking the control flag before
// every write. A stop leaves the partial file in place.
func (d *ImageDownloader) fetch(t *task.Task) (string, int64, bool, error) {
	req, err := http.NewRequest("GET", t.Request.URL, nil)
	if err != nil {
		return "", 0, false, fmt.Errorf("error creating GET request: %v", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, false, fmt.Errorf("error executing GET request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	name := t.ID + "." + extension(t.Request.Format)
	out, err := os.Create(filepath.Join(d.dir, name))
	if err != nil {
		return "", 0, false, fmt.Errorf("error creating output file: %v", err)
	}
	defer out.Close()

	total := resp.ContentLength
	var downloaded int64
	start := time.Now()
	buffer := make([]byte, utils.ChunkSize)
	for {
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, stop := t.Checkpoint(); stop {
				return name, downloaded, true, nil
			}
			if _, err := out.Write(buffer[:n]); err != nil {
				return "", downloaded, false, fmt.Errorf("error writing to output file: %v", err)
			}
			downloaded += int64(n)
			if total > 0 {
				report(t, downloaded, total, time.Since(start))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", downloaded, false, fmt.Errorf("error reading response body: %v", readErr)
		}
	}
	return name, downloaded, false, nil
}

func report(t *task.Task, downloaded, total int64, elapsed time.Duration) {
	seconds := max(1, elapsed.Seconds())
	speed := float64(downloaded) / seconds
	var eta *int
	if speed > 0 {
		remaining := int(float64(total-downloaded) / speed)
		eta = &remaining
	}
	t.Report(float64(downloaded)/float64(total), &speed, eta)
}

// extension derives a safe file extension from the requested format.
func extension(format string) string {
	ext := utils.SanitizeFilename(strings.TrimLeft(strings.TrimSpace(format), "."))
	if ext == "" {
		return defaultExtension
	}
	return strings.ToLower(ext)
}
