package throttle

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestThrottle_Budget(t *testing.T) {
	gate := New(2)

	if !gate.TryReserve() {
		t.Fatal("first reserve rejected")
	}
	if !gate.TryReserve() {
		t.Fatal("second reserve rejected")
	}
	if gate.TryReserve() {
		t.Error("reserve beyond budget succeeded")
	}

	gate.Release()
	if !gate.TryReserve() {
		t.Error("reserve after release rejected")
	}
}

func TestThrottle_MinimumBudgetIsOne(t *testing.T) {
	gate := New(0)
	if gate.Budget() != 1 {
		t.Errorf("Budget() = %d, want 1", gate.Budget())
	}
	if !gate.TryReserve() {
		t.Error("single slot not grantable")
	}
}

func TestThrottle_ForegroundPressureClosesGate(t *testing.T) {
	gate := New(5)

	gate.SetForegroundPressure(true)
	if gate.TryReserve() {
		t.Error("reserve succeeded under foreground pressure")
	}

	gate.SetForegroundPressure(false)
	if !gate.TryReserve() {
		t.Error("reserve rejected after pressure lifted")
	}
}

func TestThrottle_ReleaseWithoutReserveClamps(t *testing.T) {
	gate := New(1)
	gate.Release()
	gate.Release()

	if gate.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", gate.InFlight())
	}
	if !gate.TryReserve() {
		t.Error("budget inflated by stray releases")
	}
	if gate.TryReserve() {
		t.Error("second reserve on budget 1 succeeded")
	}
}

func TestThrottle_ConcurrentReservesNeverExceedBudget(t *testing.T) {
	const budget = 3
	const goroutines = 50

	gate := New(budget)
	var granted int64
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.TryReserve() {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted > budget {
		t.Errorf("granted %d reservations, budget is %d", granted, budget)
	}
	if gate.InFlight() != granted {
		t.Errorf("InFlight() = %d, want %d", gate.InFlight(), granted)
	}
}
