// Package hotkey turns presses of the designated key, observed through
// several OS channels, into one logical hotkey event.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Channel is one OS-level observation scope for the designated key.
type Channel interface {
	Name() string
	// Consumes reports whether the channel suppresses the key for other applications.
	Consumes() bool
	Open() (<-chan struct{}, error)
	Close() error
}

// Listener fans every open channel into a single handler.
type Listener struct {
	channels []Channel
	handler  func()
	logger   *slog.Logger
	dedupe   *rate.Sometimes

	mu      sync.Mutex
	opened  []Channel
	started bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewListener builds a listener. Presses arriving within the dedupe window
// of the previous accepted press are dropped, which collapses one physical
// press seen by two channels into a single event.
func NewListener(handler func(), dedupe time.Duration, logger *slog.Logger, channels ...Channel) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Listener{
		channels: channels,
		handler:  handler,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	if dedupe > 0 {
		l.dedupe = &rate.Sometimes{Interval: dedupe}
	}
	return l
}

// Start opens every channel. It fails only when no channel could be opened.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return errors.New("hotkey listener is closed")
	}
	if l.started {
		return errors.New("hotkey listener already started")
	}
	l.started = true

	var failures []error
	for _, ch := range l.channels {
		events, err := ch.Open()
		if err != nil {
			l.logger.Warn("hotkey channel unavailable", "channel", ch.Name(), slog.String("error", err.Error()))
			failures = append(failures, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		l.opened = append(l.opened, ch)
		l.wg.Add(1)
		go l.forward(ch, events)
		l.logger.Debug("hotkey channel registered", "channel", ch.Name(), "consumes", ch.Consumes())
	}

	if len(l.opened) == 0 {
		if len(failures) == 0 {
			return errors.New("no hotkey channels configured")
		}
		return fmt.Errorf("no hotkey channel could be registered: %w", errors.Join(failures...))
	}
	return nil
}

// Close releases every registration exactly once. No handler call is in
// progress or can start after Close returns.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.stop)

		l.mu.Lock()
		opened := l.opened
		l.opened = nil
		l.mu.Unlock()

		var errs []error
		for _, ch := range opened {
			if err := ch.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			}
		}
		l.wg.Wait()
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}

func (l *Listener) forward(ch Channel, events <-chan struct{}) {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			l.dispatch(ch)
		}
	}
}

func (l *Listener) dispatch(ch Channel) {
	if l.closed.Load() {
		return
	}
	l.logger.Debug("hotkey pressed", "channel", ch.Name())
	if l.dedupe == nil {
		l.handler()
		return
	}
	l.dedupe.Do(l.handler)
}
