package task

import (
	"sync"
	"time"
)

const defaultPublicPrefix = "/downloads/"

// Task holds the mutable state of one download job. All fields below mu are
// guarded by it; a single worker writes them while it holds the current run.
type Task struct {
	ID      string
	Request Request

	publicPrefix string

	mu          sync.Mutex
	state       State
	progress    float64
	speed       *float64
	eta         *int
	title       string
	filename    string
	filepath    string
	message     string
	completedAt time.Time
	control     Control
	run         uint64
	active      bool
}

func New(id string, req Request) *Task {
	return &Task{
		ID:           id,
		Request:      req,
		publicPrefix: defaultPublicPrefix,
		state:        StatePending,
	}
}

func (t *Task) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Task) snapshotLocked() Status {
	s := Status{
		ID:       t.ID,
		URL:      t.Request.URL,
		Title:    optional(t.title),
		Filename: optional(t.filename),
		Status:   t.state,
		Progress: t.progress,
		Format:   optional(t.Request.Format),
		Quality:  optional(t.Request.Quality),
		Filepath: optional(t.filepath),
		Message:  optional(t.message),
	}
	if t.speed != nil {
		v := *t.speed
		s.Speed = &v
	}
	if t.eta != nil {
		v := *t.eta
		s.ETA = &v
	}
	if !t.completedAt.IsZero() {
		s.DownloadedAt = optional(t.completedAt.Format(TimestampLayout))
	}
	if t.state == StateCompleted && t.filename != "" {
		s.DownloadURL = optional(t.publicPrefix + t.filename)
	}
	return s
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

func (t *Task) Filename() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filename
}

// Active reports whether a worker currently owns the task.
func (t *Task) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Claim binds a new run to an idle task. It fails when a worker is already bound.
func (t *Task) Claim() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return 0, false
	}
	t.run++
	t.active = true
	return t.run, true
}

// Release unbinds run if it is still the current one.
func (t *Task) Release(run uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run == run {
		t.active = false
	}
}

// Rearm clears the control flag and marks the task downloading again. When the
// previous worker never reached a checkpoint it keeps running and no new run is
// claimed; otherwise the task is reset and the returned run must be launched.
func (t *Task) Rearm() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.control = ControlNone
	t.state = StateDownloading
	if t.active {
		return 0, false
	}
	t.resetLocked()
	t.run++
	t.active = true
	return t.run, true
}

func (t *Task) resetLocked() {
	t.progress = 0
	t.speed = nil
	t.eta = nil
	t.filename = ""
	t.filepath = ""
	t.message = ""
	t.completedAt = time.Time{}
}

// Begin moves the task into downloading at the start of a run. It returns false
// when a pause or cancel arrived before the worker started.
func (t *Task) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.convergeLocked() {
		return false
	}
	t.state = StateDownloading
	t.resetLocked()
	return true
}

// Report records a progress observation. Progress is clamped to [0, 1] and
// never moves backwards within a run; nil speed or eta leave prior values.
func (t *Task) Report(progress float64, speed *float64, eta *int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	progress = clamp(progress)
	if progress > t.progress {
		t.progress = progress
	}
	if speed != nil {
		v := *speed
		t.speed = &v
	}
	if eta != nil {
		v := *eta
		t.eta = &v
	}
}

func (t *Task) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = title
}

func (t *Task) SetFilename(name, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filename = name
	t.filepath = path
}

// Checkpoint inspects the control flag. When a pause or cancel is pending the
// task converges to that state, the run is unbound and stop is true.
func (t *Task) Checkpoint() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stop := t.convergeLocked()
	return t.state, stop
}

// Complete finishes the run successfully unless a control request won the race.
func (t *Task) Complete(at time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.convergeLocked() {
		return t.state
	}
	t.state = StateCompleted
	t.progress = 1
	t.completedAt = at
	t.active = false
	return t.state
}

// Fail finishes the run with an error message unless a control request won the race.
func (t *Task) Fail(message string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.convergeLocked() {
		return t.state
	}
	t.state = StateError
	t.message = message
	t.active = false
	return t.state
}

func (t *Task) convergeLocked() bool {
	switch t.control {
	case ControlPause:
		t.state = StatePaused
	case ControlCancel:
		t.state = StateCanceled
	default:
		return false
	}
	t.active = false
	return true
}

// RequestPause raises the pause flag and optimistically reports the task paused.
func (t *Task) RequestPause() Status {
	return t.request(ControlPause, StatePaused)
}

// RequestCancel raises the cancel flag and optimistically reports the task canceled.
func (t *Task) RequestCancel() Status {
	return t.request(ControlCancel, StateCanceled)
}

func (t *Task) request(c Control, s State) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.control = c
	t.state = s
	return t.snapshotLocked()
}

func clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
