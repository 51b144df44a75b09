package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("task not found")
	ErrRateLimited = errors.New("too many active downloads")
)

// Manager is the in-memory registry of tasks. It owns the map, not the
// goroutines working on the tasks. Lock order is Manager before Task.
type Manager struct {
	mu           sync.RWMutex
	tasks        map[string]*Task
	publicPrefix string
}

// NewManager builds an empty registry; publicPrefix is prepended to filenames
// to form download URLs.
func NewManager(publicPrefix string) *Manager {
	if publicPrefix == "" {
		publicPrefix = defaultPublicPrefix
	}
	return &Manager{
		tasks:        make(map[string]*Task),
		publicPrefix: publicPrefix,
	}
}

func (m *Manager) newTask(req Request) *Task {
	t := New(uuid.New().String(), req)
	t.publicPrefix = m.publicPrefix
	return t
}

func (m *Manager) Create(req Request) *Task {
	t := m.newTask(req)
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()
	return t
}

// Admit creates a task unless maxActive tasks are already pending or
// downloading. Counting and insertion happen in one critical section.
func (m *Manager) Admit(req Request, maxActive int) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxActive > 0 && m.activeLocked() >= maxActive {
		return nil, fmt.Errorf("%w (max %d), please wait or clear old tasks", ErrRateLimited, maxActive)
	}
	t := m.newTask(req)
	m.tasks[t.ID] = t
	return t, nil
}

func (m *Manager) activeLocked() int {
	n := 0
	for _, t := range m.tasks {
		if t.State().IsActive() {
			n++
		}
	}
	return n
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

func (m *Manager) Get(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// Tasks returns the registered tasks in no particular order.
func (m *Manager) Tasks() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

func (m *Manager) SnapshotAll() []Status {
	tasks := m.Tasks()
	statuses := make([]Status, 0, len(tasks))
	for _, t := range tasks {
		statuses = append(statuses, t.Snapshot())
	}
	return statuses
}

// Evict forgets every task currently in state and returns how many were
// removed. Files on disk are left alone.
func (m *Manager) Evict(state State) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.tasks {
		if t.State() == state {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}
