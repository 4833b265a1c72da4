// Package permission tracks whether the process may observe global key
// events and synthesize keystrokes.
package permission

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Checker queries the OS trust store, optionally showing the system prompt.
type Checker func(prompt bool) bool

// Gate caches the accessibility status. Grants happen out-of-band in the
// system settings, so the cached value is refreshed by single-shot rechecks
// scheduled a fixed delay after Start or after a Recheck request.
type Gate struct {
	check  Checker
	logger *slog.Logger
	delay  time.Duration

	granted atomic.Bool

	mu       sync.Mutex
	closed   bool
	known    bool
	pending  *time.Timer
	onChange func(granted bool)
}

func NewGate(check Checker, delay time.Duration, logger *slog.Logger) *Gate {
	if check == nil {
		check = Check
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		check:  check,
		logger: logger,
		delay:  delay,
	}
}

// OnChange registers a callback invoked whenever the cached status changes.
func (g *Gate) OnChange(fn func(granted bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Start queries once with the system prompt and schedules the first recheck.
func (g *Gate) Start() bool {
	granted := g.refresh(true)
	g.Recheck()
	return granted
}

// Granted returns the cached status without touching the OS.
func (g *Gate) Granted() bool {
	return g.granted.Load()
}

// Recheck schedules a single refresh after the configured delay. Requests made
// while one is pending collapse into it and do not move its deadline.
func (g *Gate) Recheck() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.pending != nil {
		return
	}
	g.pending = time.AfterFunc(g.delay, func() {
		g.mu.Lock()
		g.pending = nil
		g.mu.Unlock()
		g.refresh(false)
	})
}

// Close drops any pending recheck.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}

func (g *Gate) refresh(prompt bool) bool {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return g.granted.Load()
	}

	granted := g.check(prompt)
	previous := g.granted.Swap(granted)

	g.mu.Lock()
	changed := !g.known || previous != granted
	g.known = true
	onChange := g.onChange
	g.mu.Unlock()

	if !changed {
		return granted
	}
	if granted {
		g.logger.Info("accessibility permission granted")
	} else {
		g.logger.Warn("accessibility permission not granted; hotkey and paste may be dropped by the OS")
	}
	if onChange != nil {
		onChange(granted)
	}
	return granted
}
