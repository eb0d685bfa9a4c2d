package wurstminebot

import (
	"sync"
	"time"
)

// Toggle is an on/off switch that may be turned off for a limited time.
type Toggle struct {
	mu    sync.Mutex
	on    bool
	timer *time.Timer
}

func NewToggle(on bool) *Toggle {
	return &Toggle{on: on}
}

func (t *Toggle) On() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.on
}

// Set changes the toggle state and cancels any pending re-enabling.
func (t *Toggle) Set(on bool) {
	t.mu.Lock()
	t.stopTimer()
	t.on = on
	t.mu.Unlock()
}

// DisableFor turns the toggle off and back on after d, calling reenabled
// at that point unless the toggle was set again in the meantime.
func (t *Toggle) DisableFor(d time.Duration, reenabled func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer()
	t.on = false
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.timer != timer {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.on = true
		t.mu.Unlock()
		if reenabled != nil {
			reenabled()
		}
	})
	t.timer = timer
}

// Stop cancels any pending re-enabling without changing the state.
func (t *Toggle) Stop() {
	t.mu.Lock()
	t.stopTimer()
	t.mu.Unlock()
}

func (t *Toggle) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
