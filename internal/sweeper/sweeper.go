package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/grabd/internal/task"
)

// Archiver keeps a copy of an artifact before it is removed from disk.
type Archiver interface {
	Archive(ctx context.Context, path string) error
}

// Sweeper removes aged artifacts of completed and canceled tasks. Task
// records are left in the registry.
type Sweeper struct {
	manager  *task.Manager
	dir      string
	ttl      time.Duration
	interval time.Duration
	archiver Archiver
}

// New builds a sweeper; archiver may be nil.
func New(manager *task.Manager, dir string, ttl, interval time.Duration, archiver Archiver) *Sweeper {
	return &Sweeper{
		manager:  manager,
		dir:      dir,
		ttl:      ttl,
		interval: interval,
		archiver: archiver,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Debug().Str("op", "sweeper/sweeper").Msgf("sweeping every %s, ttl %s", s.interval, s.ttl)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(ctx, now); n > 0 {
				log.Info().Str("op", "sweeper/sweeper").Msgf("removed %d expired artifacts", n)
			}
		}
	}
}

// Sweep makes one pass over the registry and returns the number of files removed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	removed := 0
	for _, status := range s.manager.SnapshotAll() {
		if status.Status != task.StateCompleted && status.Status != task.StateCanceled {
			continue
		}
		if status.Filename == nil {
			continue
		}
		path := filepath.Join(s.dir, *status.Filename)
		if status.Filepath != nil {
			path = *status.Filepath
		}
		if s.expire(ctx, path, now) {
			removed++
		}
	}
	return removed
}

func (s *Sweeper) expire(ctx context.Context, path string, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("op", "sweeper/sweeper").Err(err).Msgf("cannot stat %s", path)
		}
		return false
	}
	if info.IsDir() || now.Sub(info.ModTime()) <= s.ttl {
		return false
	}
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, path); err != nil {
			log.Error().Str("op", "sweeper/sweeper").Err(err).Msgf("archive failed, keeping %s", path)
			return false
		}
	}
	if err := os.Remove(path); err != nil {
		log.Error().Str("op", "sweeper/sweeper").Err(err).Msgf("cannot remove %s", path)
		return false
	}
	log.Debug().Str("op", "sweeper/sweeper").Msgf("removed %s", path)
	return true
}

// SweepDir removes every regular file in dir older than ttl, regardless of
// any registry. It backs the one-shot sweep command.
func SweepDir(ctx context.Context, dir string, ttl time.Duration, now time.Time, archiver Archiver) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	s := &Sweeper{dir: dir, ttl: ttl, archiver: archiver}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if s.expire(ctx, filepath.Join(dir, e.Name()), now) {
			removed++
		}
	}
	return removed, nil
}
