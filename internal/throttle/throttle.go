package throttle

import (
	"sync/atomic"
)

// Throttle is the shared admission gate between the HTTP path and the job
// processor: a fixed budget of in-flight background jobs guarded by an
// atomic counter. It is passed explicitly through constructors; there is no
// package-level instance.
type Throttle struct {
	budget     int64
	inFlight   int64
	foreground int32
}

func New(budget int) *Throttle {
	if budget < 1 {
		budget = 1
	}
	return &Throttle{budget: int64(budget)}
}

// TryReserve claims one slot without blocking. A false return means the
// caller must requeue the job; Release must not be called for it.
func (t *Throttle) TryReserve() bool {
	if atomic.LoadInt32(&t.foreground) == 1 {
		return false
	}
	for {
		current := atomic.LoadInt64(&t.inFlight)
		if current >= t.budget {
			return false
		}
		if atomic.CompareAndSwapInt64(&t.inFlight, current, current+1) {
			return true
		}
	}
}

// Release returns one slot. Exactly one call per successful TryReserve.
func (t *Throttle) Release() {
	if atomic.AddInt64(&t.inFlight, -1) < 0 {
		//release without reserve is a caller bug; clamp so the budget
		//cannot inflate
		atomic.StoreInt64(&t.inFlight, 0)
	}
}

// SetForegroundPressure closes the gate entirely while the HTTP path needs
// the CPU. Background jobs keep requeueing until it is lifted.
func (t *Throttle) SetForegroundPressure(active bool) {
	if active {
		atomic.StoreInt32(&t.foreground, 1)
		return
	}
	atomic.StoreInt32(&t.foreground, 0)
}

func (t *Throttle) InFlight() int64 {
	return atomic.LoadInt64(&t.inFlight)
}

func (t *Throttle) Budget() int64 {
	return t.budget
}
