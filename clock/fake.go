package clock

import (
	"sync"
	"time"
)

// Fake is a deterministic clock for tests.
// Every Now call advances time by Step so successive timestamps strictly increase.
// After fires as soon as the gate is open; Hold closes the gate until Release.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	Step    time.Duration
	gate    chan struct{}
	delays  []time.Duration
	choice  int
	waiting int
}

func NewFake(start time.Time) *Fake {
	gate := make(chan struct{})
	close(gate)
	return &Fake{now: start.UTC(), Step: time.Millisecond, gate: gate}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(f.Step)
	return f.now
}

// After ignores d: waits are driven by Hold/Release, and time advances by d when they fire.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	gate := f.gate
	f.waiting++
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	go func() {
		<-gate
		f.mu.Lock()
		f.waiting--
		f.now = f.now.Add(d)
		now := f.now
		f.mu.Unlock()
		ch <- now
	}()
	return ch
}

// RandomDelay records the requested range and returns its lower bound.
func (f *Fake) RandomDelay(min, max time.Duration) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, min, max)
	return min
}

// RandomChoice cycles through options in order.
func (f *Fake) RandomChoice(options []string) string {
	if len(options) == 0 {
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	choice := options[f.choice%len(options)]
	f.choice++
	return choice
}

// Hold makes subsequent After calls block until Release.
func (f *Fake) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.gate:
		f.gate = make(chan struct{})
	default:
	}
}

// Release fires every pending After and lets future ones fire immediately.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.gate:
	default:
		close(f.gate)
	}
}

// Waiting counts After calls that have not fired yet.
func (f *Fake) Waiting() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting
}

// Delays returns every (min, max) pair asked through RandomDelay, flattened.
func (f *Fake) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}
