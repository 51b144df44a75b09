package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/grabd/internal/downloaders/media"
	"github.com/tanq16/grabd/internal/task"
)

const msgUnsupportedCategory = "Unsupported category"

// Downloader runs one job to completion, recording every outcome on the task.
type Downloader interface {
	Download(t *task.Task)
}

// Prober reports the availability of the external tools.
type Prober interface {
	Health(ctx context.Context) media.Health
}

// Service is the control plane over the task registry. Every control operation
// validates the id synchronously and never waits for a worker.
type Service struct {
	manager   *task.Manager
	registry  map[task.Category]Downloader
	prober    Prober
	maxActive int
}

func New(manager *task.Manager, maxActive int) *Service {
	return &Service{
		manager:   manager,
		registry:  make(map[task.Category]Downloader),
		maxActive: maxActive,
	}
}

// Register routes a category to a downloader. Must be called before serving.
func (s *Service) Register(category task.Category, d Downloader) {
	s.registry[category] = d
}

func (s *Service) SetProber(p Prober) {
	s.prober = p
}

func (s *Service) Start(req task.Request) (task.Status, error) {
	t, err := s.manager.Admit(req, s.maxActive)
	if err != nil {
		log.Warn().Str("op", "scheduler/scheduler").Err(err).Msg("download refused")
		return task.Status{}, err
	}
	if run, ok := t.Claim(); ok {
		go s.run(t, run)
	}
	log.Info().Str("op", "scheduler/scheduler").Str("task", t.ID).Str("category", string(req.Category)).Msgf("download started: %s", req.URL)
	return t.Snapshot(), nil
}

func (s *Service) Status(id string) (task.Status, error) {
	t, err := s.manager.Get(id)
	if err != nil {
		return task.Status{}, err
	}
	return t.Snapshot(), nil
}

func (s *Service) List() []task.Status {
	return s.manager.SnapshotAll()
}

func (s *Service) Pause(id string) (task.Status, error) {
	t, err := s.manager.Get(id)
	if err != nil {
		return task.Status{}, err
	}
	log.Info().Str("op", "scheduler/scheduler").Str("task", id).Msg("pause requested")
	return t.RequestPause(), nil
}

func (s *Service) Cancel(id string) (task.Status, error) {
	t, err := s.manager.Get(id)
	if err != nil {
		return task.Status{}, err
	}
	log.Info().Str("op", "scheduler/scheduler").Str("task", id).Msg("cancel requested")
	return t.RequestCancel(), nil
}

// Resume clears the control flag. A worker that is still bound keeps going;
// otherwise a fresh run is launched from the original request.
func (s *Service) Resume(id string) (task.Status, error) {
	t, err := s.manager.Get(id)
	if err != nil {
		return task.Status{}, err
	}
	if run, relaunch := t.Rearm(); relaunch {
		go s.run(t, run)
		log.Info().Str("op", "scheduler/scheduler").Str("task", id).Msg("download relaunched")
	} else {
		log.Info().Str("op", "scheduler/scheduler").Str("task", id).Msg("download resumed on running worker")
	}
	return t.Snapshot(), nil
}

func (s *Service) ClearCompleted() int {
	n := s.manager.Evict(task.StateCompleted)
	log.Info().Str("op", "scheduler/scheduler").Msgf("cleared %d completed tasks", n)
	return n
}

func (s *Service) ClearCanceled() int {
	n := s.manager.Evict(task.StateCanceled)
	log.Info().Str("op", "scheduler/scheduler").Msgf("cleared %d canceled tasks", n)
	return n
}

func (s *Service) Health(ctx context.Context) media.Health {
	if s.prober == nil {
		return media.Health{Time: time.Now().Format(time.RFC3339)}
	}
	return s.prober.Health(ctx)
}

// run is the goroutine boundary for one worker run. A panic in a downloader
// is downgraded to an error status.
func (s *Service) run(t *task.Task, run uint64) {
	defer t.Release(run)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "scheduler/scheduler").Str("task", t.ID).Msgf("worker panic: %v", r)
			t.Fail(fmt.Sprintf("%v", r))
		}
	}()
	d, ok := s.registry[t.Request.Category]
	if !ok {
		log.Warn().Str("op", "scheduler/scheduler").Str("task", t.ID).Msgf("no downloader for category %q", t.Request.Category)
		t.Fail(msgUnsupportedCategory)
		return
	}
	d.Download(t)
}
