package ports

import (
	"context"
	"io"
	"time"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// PCMSource is a live stream of signed 16-bit little-endian PCM.
type PCMSource interface {
	io.ReadCloser
	Stop() error
}

// PCMCapture opens microphone PCM sources.
type PCMCapture interface {
	Open(ctx context.Context, cfg AudioConfig) (PCMSource, error)
}

// AudioRecorder owns at most one recording written to a fixed file path.
type AudioRecorder interface {
	Start(ctx context.Context) error
	// Stop finalizes the file and returns its path.
	Stop(ctx context.Context) (string, error)
}

// Segment is one piece of recognized text in engine order.
type Segment struct {
	Text string
}

// Engine maps an audio file to recognized segments.
type Engine interface {
	Transcribe(ctx context.Context, path string) ([]Segment, error)
	Close() error
}

// EngineLoader loads an ASR engine for a model identifier.
type EngineLoader interface {
	Load(ctx context.Context, model string) (Engine, error)
}

// TranscriptionResult is the outcome of one transcription future.
type TranscriptionResult struct {
	Text string
	Err  error
}

// Transcriber is the asynchronous transcription boundary.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) <-chan TranscriptionResult
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard holds plain text for the system.
type Clipboard interface {
	Clear() error
	SetText(text string) error
}

// Keystroker synthesizes the platform paste shortcut.
type Keystroker interface {
	Paste() error
}

// Injector delivers text into the focused application.
type Injector interface {
	Paste(ctx context.Context, text string) error
}

// PermissionGate exposes the cached accessibility status.
type PermissionGate interface {
	Granted() bool
	Recheck()
}

// EpisodeMetrics records dictation episode telemetry.
type EpisodeMetrics interface {
	EpisodeStarted(ctx context.Context)
	EpisodeFinished(ctx context.Context, outcome string)
	TranscriptionLatency(ctx context.Context, d time.Duration, failed bool)
	PressIgnored(ctx context.Context)
}
