package task

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestManagerGet(t *testing.T) {
	m := NewManager("")
	tk := m.Create(Request{URL: "https://example.com/a.jpg", Category: CategoryImage})

	got, err := m.Get(tk.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != tk {
		t.Error("expected the same task pointer back")
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManagerIDsAreUnique(t *testing.T) {
	m := NewManager("")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tk := m.Create(Request{})
		if seen[tk.ID] {
			t.Fatalf("duplicate id %s", tk.ID)
		}
		seen[tk.ID] = true
	}
	if m.Len() != 100 {
		t.Errorf("expected 100 tasks, got %d", m.Len())
	}
}

func TestManagerAdmitRateLimit(t *testing.T) {
	m := NewManager("")
	for i := 0; i < 20; i++ {
		if _, err := m.Admit(Request{Category: CategoryVideo}, 20); err != nil {
			t.Fatalf("admit %d: unexpected error %v", i+1, err)
		}
	}
	_, err := m.Admit(Request{Category: CategoryVideo}, 20)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if !strings.Contains(err.Error(), "20") {
		t.Errorf("expected cap in message, got %q", err.Error())
	}
	if m.Len() != 20 {
		t.Errorf("expected registry size 20, got %d", m.Len())
	}
}

func TestManagerAdmitConcurrent(t *testing.T) {
	m := NewManager("")
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Admit(Request{}, 20); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 20 || m.Len() != 20 {
		t.Errorf("expected exactly 20 admissions, got %d (len %d)", admitted, m.Len())
	}
}

func TestManagerFinishedTasksFreeSlots(t *testing.T) {
	m := NewManager("")
	tk, _ := m.Admit(Request{}, 1)
	if _, err := m.Admit(Request{}, 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	tk.Claim()
	tk.Fail("nope")
	if _, err := m.Admit(Request{}, 1); err != nil {
		t.Errorf("expected slot to be free after failure, got %v", err)
	}
}

func TestManagerEvict(t *testing.T) {
	m := NewManager("/files/")
	done := m.Create(Request{})
	done.Claim()
	done.SetFilename("a.jpg", "/tmp/a.jpg")
	done.Complete(time.Now())

	canceled := m.Create(Request{})
	canceled.RequestCancel()

	pending := m.Create(Request{})

	if s := done.Snapshot(); s.DownloadURL == nil || *s.DownloadURL != "/files/a.jpg" {
		t.Errorf("expected manager prefix in download url, got %v", s.DownloadURL)
	}

	if n := m.Evict(StateCompleted); n != 1 {
		t.Errorf("expected 1 completed eviction, got %d", n)
	}
	if _, err := m.Get(done.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected completed task to be gone")
	}
	if n := m.Evict(StateCanceled); n != 1 {
		t.Errorf("expected 1 canceled eviction, got %d", n)
	}
	if _, err := m.Get(pending.ID); err != nil {
		t.Error("pending task must survive eviction")
	}
	if len(m.SnapshotAll()) != 1 {
		t.Errorf("expected one remaining snapshot, got %d", len(m.SnapshotAll()))
	}
}
