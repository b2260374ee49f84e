package scheduler

import (
	"sync"
	"time"
)

// Stopper is the part of *time.Timer a Timer needs
type Stopper interface {
	Stop() bool
}

// AfterFunc arms f to run once after d. It must not call f synchronously.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Timer is a cancellable handle on one scheduled callback. The zero value is an
// unarmed timer. Cancel can be called any number of times, including after the
// callback ran.
type Timer struct {
	stopper Stopper
	once    *sync.Once
}

func newTimer(stopper Stopper) Timer {
	return Timer{stopper: stopper, once: &sync.Once{}}
}

// Armed reports whether the timer was ever scheduled
func (t Timer) Armed() bool {
	return t.stopper != nil
}

func (t Timer) Cancel() {
	if t.stopper == nil {
		return
	}
	t.once.Do(func() {
		t.stopper.Stop()
	})
}
