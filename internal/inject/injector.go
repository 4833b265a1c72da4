// Package inject delivers text into the focused application through the
// clipboard and a synthetic paste shortcut.
package inject

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dictakey/internal/ports"
)

// Injector pastes text. Each call is attempted once; whether the target
// application accepted the keystroke is not observable.
type Injector struct {
	clipboard  ports.Clipboard
	keystroker ports.Keystroker
	settle     time.Duration
	logger     *slog.Logger
}

func NewInjector(clipboard ports.Clipboard, keystroker ports.Keystroker, settle time.Duration, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{
		clipboard:  clipboard,
		keystroker: keystroker,
		settle:     settle,
		logger:     logger,
	}
}

// Paste clears the clipboard, writes text, then sends the paste shortcut.
func (i *Injector) Paste(ctx context.Context, text string) error {
	if err := i.clipboard.Clear(); err != nil {
		return fmt.Errorf("clear clipboard: %w", err)
	}
	if err := i.clipboard.SetText(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}

	if i.settle > 0 {
		timer := time.NewTimer(i.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if err := i.keystroker.Paste(); err != nil {
		return fmt.Errorf("send paste shortcut: %w", err)
	}
	i.logger.Debug("text pasted", "chars", len([]rune(text)))
	return nil
}
