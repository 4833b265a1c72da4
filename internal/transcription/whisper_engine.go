//go:build whisper

package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"dictakey/internal/ports"
)

// WhisperLoader runs whisper.cpp in process through its cgo bindings.
type WhisperLoader struct{}

func NewWhisperLoader() (ports.EngineLoader, error) {
	return WhisperLoader{}, nil
}

func (WhisperLoader) Load(_ context.Context, modelPath string) (ports.Engine, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", modelPath, err)
	}
	return &whisperEngine{model: model}, nil
}

type whisperEngine struct {
	mu    sync.Mutex
	model whisper.Model
}

func (e *whisperEngine) Transcribe(ctx context.Context, path string) ([]ports.Segment, error) {
	samples, err := readWAV(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper process: %w", err)
	}

	var segments []ports.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper segment: %w", err)
		}
		segments = append(segments, ports.Segment{Text: segment.Text})
	}
	return segments, nil
}

func (e *whisperEngine) Close() error {
	return e.model.Close()
}
