package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_OneShot(t *testing.T) {
	m := NewTimerManagerWithResolution(5 * time.Millisecond)
	defer m.Stop()

	fired := make(chan struct{}, 1)
	m.AddTimer(10*time.Millisecond, 0, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if m.Len() != 0 {
		t.Fatalf("one-shot timer still queued, len = %d", m.Len())
	}
}

func TestTimerManager_Repeating(t *testing.T) {
	m := NewTimerManagerWithResolution(5 * time.Millisecond)
	defer m.Stop()

	var count int32
	id := m.AddTimer(0, 10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&count) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("repeating timer fired %d times, want >= 3", atomic.LoadInt32(&count))
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.RemoveTimer(id)
	if m.Len() != 0 {
		t.Fatal("RemoveTimer should drop a repeating timer")
	}
}

func TestTimerManager_RemoveBeforeFire(t *testing.T) {
	m := NewTimerManagerWithResolution(5 * time.Millisecond)
	defer m.Stop()

	var fired int32
	id := m.AddTimer(30*time.Millisecond, 0, func() { atomic.StoreInt32(&fired, 1) })
	m.RemoveTimer(id)

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("removed timer fired")
	}
}

func TestTimerManager_DueOrder(t *testing.T) {
	m := NewTimerManagerWithResolution(time.Hour)
	defer m.Stop()

	base := time.Now()
	m.AddTimer(20*time.Millisecond, 0, func() {})
	first := m.AddTimer(0, 0, func() {})
	m.AddTimer(time.Hour, 0, func() {})

	ready := m.due(base.Add(time.Second))
	if len(ready) != 2 {
		t.Fatalf("due returned %d tasks, want 2", len(ready))
	}
	if ready[0].Id != first {
		t.Fatalf("earliest task should come first, got id %d", ready[0].Id)
	}
	if m.Len() != 1 {
		t.Fatalf("len after due = %d, want 1", m.Len())
	}
}

func TestTimerManager_Stop(t *testing.T) {
	m := NewTimerManagerWithResolution(5 * time.Millisecond)
	m.Stop()
	m.Stop()

	var fired int32
	m.AddTimer(0, 0, func() { atomic.StoreInt32(&fired, 1) })
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("stopped manager fired a timer")
	}
}
