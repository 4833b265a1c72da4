// Package transcription turns a finished recording into text with a local
// speech recognition engine.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"dictakey/internal/domain"
	"dictakey/internal/ports"
)

var errNotLoaded = errors.New("engine load was never started")

// Bridge loads one engine asynchronously and serves transcription futures
// against it. Every goroutine it starts is joined by Close.
type Bridge struct {
	loader ports.EngineLoader
	logger *slog.Logger

	ready   chan struct{}
	engine  ports.Engine
	loadErr error

	mu      sync.Mutex
	loading bool
	closed  bool
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func NewBridge(loader ports.EngineLoader, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		loader: loader,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Load starts loading model in the background. Only the first call has any effect.
func (b *Bridge) Load(ctx context.Context, model string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loading || b.closed {
		return
	}
	b.loading = true

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(b.ready)

		started := time.Now()
		engine, err := b.loader.Load(ctx, model)
		if err != nil {
			b.loadErr = fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
			b.logger.Error("speech engine failed to load", "model", model, slog.String("error", err.Error()))
			return
		}
		b.engine = engine
		b.logger.Info("speech engine loaded", "model", model, "elapsed", time.Since(started).Round(time.Millisecond))
	}()
}

// Ready is closed once loading has finished, successfully or not.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Err reports the load failure, if loading has finished and failed.
func (b *Bridge) Err() error {
	select {
	case <-b.ready:
		return b.loadErr
	default:
		return nil
	}
}

// Transcribe returns a future that yields exactly one result. It waits for
// an in-flight load and fails fast when the engine is unavailable.
func (b *Bridge) Transcribe(ctx context.Context, path string) <-chan ports.TranscriptionResult {
	out := make(chan ports.TranscriptionResult, 1)

	b.mu.Lock()
	if b.closed || !b.loading {
		b.mu.Unlock()
		out <- ports.TranscriptionResult{Err: fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, errNotLoaded)}
		close(out)
		return out
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer close(out)
		out <- b.transcribe(ctx, path)
	}()
	return out
}

func (b *Bridge) transcribe(ctx context.Context, path string) ports.TranscriptionResult {
	select {
	case <-b.ready:
	case <-ctx.Done():
		return ports.TranscriptionResult{Err: fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, ctx.Err())}
	}
	if b.loadErr != nil {
		return ports.TranscriptionResult{Err: b.loadErr}
	}

	segments, err := b.engine.Transcribe(ctx, path)
	if err != nil {
		return ports.TranscriptionResult{Err: fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)}
	}
	return ports.TranscriptionResult{Text: JoinSegments(segments)}
}

// Close waits for the load and all outstanding transcriptions, then
// releases the engine.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.wg.Wait()
		if b.engine != nil {
			b.closeErr = b.engine.Close()
		}
	})
	return b.closeErr
}

// JoinSegments trims every segment, drops empty ones and joins the rest
// with single spaces in engine order.
func JoinSegments(segments []ports.Segment) string {
	texts := lo.FilterMap(segments, func(segment ports.Segment, _ int) (string, bool) {
		text := strings.TrimSpace(segment.Text)
		return text, text != ""
	})
	return strings.Join(texts, " ")
}
