package buffer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func collectFires() (*sync.Mutex, *[]string, FireFunc) {
	var mu sync.Mutex
	var fired []string
	return &mu, &fired, func(key string) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, key)
	}
}

func TestSchedulerFiresAfterQuietWindow(t *testing.T) {
	t.Parallel()

	mu, fired, fire := collectFires()
	s := NewScheduler(nil, 30*time.Millisecond, NewRegistry(), fire)
	defer s.Stop()

	s.Arm("c1")
	if !s.Live("c1") {
		t.Fatal("timer should be live after Arm")
	}
	ok := waitFor(time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*fired) == 1
	})
	if !ok {
		t.Fatal("timer did not fire")
	}
	if s.Live("c1") {
		t.Fatal("timer should not be live after firing")
	}
}

func TestSchedulerArmSupersedesPriorWindow(t *testing.T) {
	t.Parallel()

	mu, fired, fire := collectFires()
	s := NewScheduler(nil, 60*time.Millisecond, NewRegistry(), fire)
	defer s.Stop()

	// Re-arm three times inside the window: only the last window may fire.
	s.Arm("c1")
	time.Sleep(20 * time.Millisecond)
	s.Arm("c1")
	time.Sleep(20 * time.Millisecond)
	s.Arm("c1")

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	early := len(*fired)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("fired %d times before a full quiet window", early)
	}

	ok := waitFor(time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*fired) == 1
	})
	if !ok {
		t.Fatal("superseding arm never fired")
	}
	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	total := len(*fired)
	mu.Unlock()
	if total != 1 {
		t.Fatalf("fired %d times, want exactly 1", total)
	}
}

func TestSchedulerCancelSuppressesFire(t *testing.T) {
	t.Parallel()

	mu, fired, fire := collectFires()
	s := NewScheduler(nil, 25*time.Millisecond, NewRegistry(), fire)
	defer s.Stop()

	s.Arm("c1")
	s.Cancel("c1")
	if s.Live("c1") {
		t.Fatal("timer live after Cancel")
	}

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(*fired) != 0 {
		t.Fatalf("cancelled timer fired %d times", len(*fired))
	}
}

func TestSchedulerCrossKeyIndependence(t *testing.T) {
	t.Parallel()

	mu, fired, fire := collectFires()
	s := NewScheduler(nil, 40*time.Millisecond, NewRegistry(), fire)
	defer s.Stop()

	s.Arm("a")
	s.Arm("b")
	// Keep resetting b; a's window must still elapse on time.
	for range 4 {
		time.Sleep(15 * time.Millisecond)
		s.Arm("b")
	}

	mu.Lock()
	gotA := false
	for _, k := range *fired {
		if k == "b" {
			t.Fatal("b fired while being re-armed")
		}
		if k == "a" {
			gotA = true
		}
	}
	mu.Unlock()
	if !gotA {
		t.Fatal("a did not fire despite b resets")
	}
}

func TestSchedulerNoDoubleFireUnderChurn(t *testing.T) {
	t.Parallel()

	var fires atomic.Int64
	s := NewScheduler(nil, time.Millisecond, NewRegistry(), func(string) { fires.Add(1) })
	defer s.Stop()

	// Hammer Arm around the expiry boundary; each fire must correspond to
	// exactly one arm, so fires can never exceed arms.
	const arms = 200
	for range arms {
		s.Arm("c1")
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := fires.Load(); n > arms {
		t.Fatalf("%d fires for %d arms", n, arms)
	}
	if fires.Load() == 0 {
		t.Fatal("no fire at all")
	}
}

func TestSchedulerStopPreventsFiring(t *testing.T) {
	t.Parallel()

	mu, fired, fire := collectFires()
	s := NewScheduler(nil, 20*time.Millisecond, NewRegistry(), fire)

	s.Arm("c1")
	s.Stop()
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(*fired) != 0 {
		t.Fatal("timer fired after Stop")
	}
}

func TestSchedulerRegistryStates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	done := make(chan struct{}, 1)
	s := NewScheduler(nil, 15*time.Millisecond, reg, func(string) { done <- struct{}{} })
	defer s.Stop()

	s.Arm("c1")
	if !reg.HasLive("c1") {
		t.Fatal("registry should track armed timer")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if reg.HasLive("c1") {
		t.Fatal("registry entry still live after fire")
	}
}
