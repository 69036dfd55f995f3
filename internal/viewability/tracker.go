// Package viewability decides when a rendered slot has been genuinely seen:
// at least Threshold of its area visible, continuously, for at least Dwell.
package viewability

import (
	"sync"
	"time"

	"github.com/patrickwarner/slotengine/internal/clock"
)

// Defaults for the viewed signal.
const (
	DefaultThreshold = 0.5
	DefaultDwell     = time.Second
)

// Source delivers visibility-ratio changes (0..1) for a slot's root element.
// Subscribe may invoke fn synchronously with the current ratio. The returned
// function releases the subscription and must be safe to call once.
type Source interface {
	Subscribe(fn func(ratio float64)) (unsubscribe func())
}

// Config holds the visibility threshold and the continuous dwell required.
type Config struct {
	Threshold float64
	Dwell     time.Duration
}

// DefaultConfig returns the 50% / 1s rule.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Dwell: DefaultDwell}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = DefaultThreshold
	}
	if c.Dwell <= 0 {
		c.Dwell = DefaultDwell
	}
	return c
}

// Tracker observes one slot. It raises onViewed at most once, then releases
// its subscription. After Stop returns no callback will run.
type Tracker struct {
	clk      clock.Clock
	cfg      Config
	onViewed func()

	mu          sync.Mutex
	visible     bool
	gen         uint64
	timer       clock.Timer
	fired       bool
	stopped     bool
	unsubscribe func()
}

// Start subscribes to src and begins tracking. onViewed runs on the timer's
// goroutine without any tracker lock held.
func Start(src Source, clk clock.Clock, cfg Config, onViewed func()) *Tracker {
	if clk == nil {
		clk = clock.Real()
	}
	t := &Tracker{
		clk:      clk,
		cfg:      cfg.withDefaults(),
		onViewed: onViewed,
	}
	if src == nil {
		t.stopped = true
		return t
	}

	unsub := src.Subscribe(t.observe)

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		return t
	}
	t.unsubscribe = unsub
	t.mu.Unlock()
	return t
}

// observe handles one visibility-ratio notification.
func (t *Tracker) observe(ratio float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	nowVisible := ratio >= t.cfg.Threshold
	switch {
	case nowVisible && !t.visible:
		t.gen++
		gen := t.gen
		t.timer = t.clk.AfterFunc(t.cfg.Dwell, func() { t.dwellElapsed(gen) })
	case !nowVisible && t.visible:
		// no partial credit: the next entry restarts the dwell from zero
		t.cancelTimerLocked()
	}
	t.visible = nowVisible
}

func (t *Tracker) dwellElapsed(gen uint64) {
	t.mu.Lock()
	if t.stopped || t.fired || gen != t.gen || !t.visible {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.stopped = true
	t.timer = nil
	unsub := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if t.onViewed != nil {
		t.onViewed()
	}
}

func (t *Tracker) cancelTimerLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Stop releases the subscription and cancels any pending dwell timer. It is
// idempotent and safe to call after the viewed signal fired.
func (t *Tracker) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.cancelTimerLocked()
	unsub := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Fired reports whether the viewed signal has been raised.
func (t *Tracker) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Active reports whether the tracker still holds its subscription.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}
