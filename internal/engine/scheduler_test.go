package engine

import (
	"sync"
	"testing"
	"time"
)

func TestTimerScheduler_RunsInDeadlineOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	now := time.Now()
	for i, d := range []time.Duration{40, 10, 30, 20} {
		i := i
		s.Schedule(now.Add(d*time.Millisecond), func() {
			mu.Lock()
			order = append(order, i)
			n := len(order)
			mu.Unlock()
			if n == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	want := []int{1, 3, 2, 0}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("run order = %v, want %v", order, want)
		}
	}
}

func TestTimerScheduler_PastDeadlineRunsPromptly(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	ran := make(chan struct{})
	s.Schedule(time.Now().Add(-time.Second), func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("overdue task did not run")
	}
}

func TestTimerScheduler_EarlierTaskPreemptsWait(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	ran := make(chan struct{})
	s.Schedule(time.Now().Add(time.Hour), func() {})
	s.Schedule(time.Now().Add(10*time.Millisecond), func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("earlier task waited behind a later deadline")
	}
	if got := s.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
}

func TestTimerScheduler_Close(t *testing.T) {
	s := NewScheduler()

	ran := make(chan struct{}, 1)
	s.Schedule(time.Now().Add(50*time.Millisecond), func() { ran <- struct{}{} })
	s.Close()
	s.Close()

	s.Schedule(time.Now(), func() { ran <- struct{}{} })
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() after Close = %d, want 0", got)
	}

	select {
	case <-ran:
		t.Error("task ran after Close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManualScheduler(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManualScheduler(start)

	var seen []time.Time
	for _, d := range []time.Duration{3, 1, 2, 1} {
		m.Schedule(start.Add(d*time.Second), func() { seen = append(seen, m.Now()) })
	}

	if n := m.AdvanceTo(start.Add(1500 * time.Millisecond)); n != 2 {
		t.Errorf("AdvanceTo() ran %d tasks, want 2", n)
	}
	if got := m.Now(); !got.Equal(start.Add(1500 * time.Millisecond)) {
		t.Errorf("Now() = %v, want clock at the advance target", got)
	}
	for _, ts := range seen {
		if !ts.Equal(start.Add(time.Second)) {
			t.Errorf("task observed clock %v, want its own deadline", ts)
		}
	}

	if n := m.Advance(10 * time.Second); n != 2 {
		t.Errorf("Advance() ran %d tasks, want 2", n)
	}
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", m.Pending())
	}

	t.Run("task scheduling another task", func(t *testing.T) {
		m := NewManualScheduler(start)
		var chained bool
		m.Schedule(start.Add(time.Second), func() {
			m.Schedule(m.Now().Add(time.Second), func() { chained = true })
		})
		m.AdvanceTo(start.Add(5 * time.Second))
		if !chained {
			t.Error("task scheduled from a task did not run")
		}
	})
}
