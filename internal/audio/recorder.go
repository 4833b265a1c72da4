// Package audio records the microphone into a mono 16 kHz 16-bit WAV file.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"dictakey/internal/domain"
	"dictakey/internal/ports"
)

const (
	bitDepth     = 16
	wavFormatPCM = 1
	defaultChunk = 4096
)

var (
	ErrAlreadyRecording  = errors.New("recording already in progress")
	ErrNoActiveRecording = fmt.Errorf("%w: no active recording", domain.ErrCaptureProducedNoFile)
	ErrEmptyRecording    = fmt.Errorf("%w: no samples captured", domain.ErrCaptureProducedNoFile)
)

// Recorder owns at most one recording at a time, always written to the
// same path. Each Start truncates the previous file.
type Recorder struct {
	capture   ports.PCMCapture
	cfg       ports.AudioConfig
	path      string
	chunkSize int
	logger    *slog.Logger

	mu     sync.Mutex
	active *take
}

type take struct {
	source  ports.PCMSource
	file    *os.File
	encoder *wav.Encoder
	done    chan struct{}

	samples int
	pumpErr error
}

func NewRecorder(capture ports.PCMCapture, cfg ports.AudioConfig, path string, chunkSize int, logger *slog.Logger) *Recorder {
	if chunkSize <= 0 {
		chunkSize = defaultChunk
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		capture:   capture,
		cfg:       withDefaults(cfg),
		path:      path,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyRecording
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCaptureStartFailed, err)
	}
	file, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCaptureStartFailed, err)
	}

	source, err := r.capture.Open(ctx, r.cfg)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(r.path)
		return fmt.Errorf("%w: %w", domain.ErrCaptureStartFailed, err)
	}

	t := &take{
		source:  source,
		file:    file,
		encoder: wav.NewEncoder(file, r.cfg.SampleRate, bitDepth, r.cfg.Channels, wavFormatPCM),
		done:    make(chan struct{}),
	}
	format := &goaudio.Format{NumChannels: r.cfg.Channels, SampleRate: r.cfg.SampleRate}
	go func() {
		defer close(t.done)
		t.samples, t.pumpErr = pumpPCM(source, t.encoder, format, r.chunkSize)
	}()

	r.active = t
	r.logger.Debug("recording started", "path", r.path, "sample_rate", r.cfg.SampleRate)
	return nil
}

// Stop ends the active recording, finalizes the WAV header and returns the
// file path. A recording with no samples is removed and reported as empty.
func (r *Recorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	t := r.active
	r.active = nil
	r.mu.Unlock()

	if t == nil {
		return "", ErrNoActiveRecording
	}

	if err := t.source.Stop(); err != nil {
		r.logger.Warn("audio source stop failed", slog.String("error", err.Error()))
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		_ = t.source.Close()
		<-t.done
	}
	_ = t.source.Close()

	if t.pumpErr != nil {
		r.logger.Warn("audio capture ended with error", slog.String("error", t.pumpErr.Error()))
	}

	encodeErr := t.encoder.Close()
	fileErr := t.file.Close()

	if t.samples == 0 {
		_ = os.Remove(r.path)
		return "", ErrEmptyRecording
	}
	if encodeErr != nil || fileErr != nil {
		_ = os.Remove(r.path)
		return "", fmt.Errorf("%w: finalize %s: %w", domain.ErrCaptureProducedNoFile, r.path, firstErr(encodeErr, fileErr))
	}

	r.logger.Debug("recording finalized", "path", r.path, "samples", t.samples)
	return r.path, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
