package sweeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tanq16/grabd/internal/task"
)

type fakeArchiver struct {
	paths []string
	err   error
}

func (a *fakeArchiver) Archive(ctx context.Context, path string) error {
	if a.err != nil {
		return a.err
	}
	a.paths = append(a.paths, path)
	return nil
}

// finishedTask registers a task in the given terminal state whose artifact
// was last modified age ago.
func finishedTask(t *testing.T, m *task.Manager, dir, name string, state task.State, age time.Duration, now time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := now.Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	tk := m.Create(task.Request{URL: "https://example.com", Category: task.CategoryVideo})
	tk.Claim()
	tk.Begin()
	tk.SetFilename(name, path)
	switch state {
	case task.StateCompleted:
		tk.Complete(now)
	case task.StateCanceled:
		tk.RequestCancel()
		tk.Checkpoint()
	case task.StateError:
		tk.Fail("boom")
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweepAgeThreshold(t *testing.T) {
	dir := t.TempDir()
	m := task.NewManager("")
	now := time.Now()
	old := finishedTask(t, m, dir, "old.mp4", task.StateCompleted, 601*time.Second, now)
	fresh := finishedTask(t, m, dir, "fresh.mp4", task.StateCompleted, 599*time.Second, now)

	s := New(m, dir, 600*time.Second, time.Second, nil)
	if n := s.Sweep(t.Context(), now); n != 1 {
		t.Errorf("expected 1 removal, got %d", n)
	}
	if exists(old) {
		t.Error("expected artifact older than ttl to be removed")
	}
	if !exists(fresh) {
		t.Error("expected artifact younger than ttl to remain")
	}
	if m.Len() != 2 {
		t.Errorf("expected task records to stay, got %d", m.Len())
	}
}

func TestSweepOnlyTerminalStates(t *testing.T) {
	dir := t.TempDir()
	m := task.NewManager("")
	now := time.Now()
	canceled := finishedTask(t, m, dir, "c.jpg", task.StateCanceled, time.Hour, now)
	failed := finishedTask(t, m, dir, "e.jpg", task.StateError, time.Hour, now)

	New(m, dir, 600*time.Second, time.Second, nil).Sweep(t.Context(), now)
	if exists(canceled) {
		t.Error("expected canceled artifact to be removed")
	}
	if !exists(failed) {
		t.Error("expected errored task artifact to be left alone")
	}
}

func TestSweepArchivesBeforeRemoving(t *testing.T) {
	dir := t.TempDir()
	m := task.NewManager("")
	now := time.Now()
	path := finishedTask(t, m, dir, "a.mp3", task.StateCompleted, time.Hour, now)

	archiver := &fakeArchiver{}
	New(m, dir, time.Minute, time.Second, archiver).Sweep(t.Context(), now)
	if len(archiver.paths) != 1 || archiver.paths[0] != path {
		t.Errorf("expected archive of %s, got %v", path, archiver.paths)
	}
	if exists(path) {
		t.Error("expected archived artifact to be removed")
	}
}

func TestSweepKeepsFileWhenArchiveFails(t *testing.T) {
	dir := t.TempDir()
	m := task.NewManager("")
	now := time.Now()
	path := finishedTask(t, m, dir, "a.mp3", task.StateCompleted, time.Hour, now)

	s := New(m, dir, time.Minute, time.Second, &fakeArchiver{err: errors.New("offline")})
	if n := s.Sweep(t.Context(), now); n != 0 {
		t.Errorf("expected no removals, got %d", n)
	}
	if !exists(path) {
		t.Error("expected artifact to survive a failed archive")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	m := task.NewManager("")
	path := finishedTask(t, m, dir, "r.mp4", task.StateCompleted, time.Hour, time.Now())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		New(m, dir, time.Minute, 10*time.Millisecond, nil).Run(ctx)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for exists(path) {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never removed the artifact")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweepDir(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	for name, age := range map[string]time.Duration{"old.bin": time.Hour, "new.bin": time.Second} {
		p := filepath.Join(dir, name)
		os.WriteFile(p, nil, 0644)
		os.Chtimes(p, now.Add(-age), now.Add(-age))
	}
	os.Mkdir(filepath.Join(dir, "sub"), 0755)

	n, err := SweepDir(t.Context(), dir, time.Minute, now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || exists(filepath.Join(dir, "old.bin")) || !exists(filepath.Join(dir, "new.bin")) {
		t.Errorf("unexpected sweep result: removed %d", n)
	}
	if _, err := SweepDir(t.Context(), filepath.Join(dir, "missing"), time.Minute, now, nil); err == nil {
		t.Error("expected error for missing dir")
	}
}
