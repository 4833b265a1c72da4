// Package usecase drives the record, transcribe and paste lifecycle.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dictakey/internal/domain"
	"dictakey/internal/ports"
)

var ErrAlreadyRunning = errors.New("dictation controller already running")

// Config tunes the controller.
type Config struct {
	// PressBuffer is how many hotkey presses may queue while the loop is busy.
	PressBuffer int
	// StopTimeout bounds finalizing a recording that is discarded at shutdown.
	StopTimeout time.Duration
}

// DictationController owns the dictation state. Run is its single consumer
// loop; every state and transcript mutation happens there.
type DictationController struct {
	recorder    ports.AudioRecorder
	transcriber ports.Transcriber
	permission  ports.PermissionGate
	metrics     ports.EpisodeMetrics
	finalizer   transcriptFinalizer
	store       *StateStore
	logger      *slog.Logger
	cfg         Config
	newID       func() string
	now         func() time.Time

	presses     chan struct{}
	completions chan completion
	permissions chan bool
	running     atomic.Bool

	// Owned by the loop.
	episode *episode
	wg      sync.WaitGroup
}

type episode struct {
	id                string
	recordingStarted  time.Time
	transcribingSince time.Time
}

type completion struct {
	episodeID string
	result    ports.TranscriptionResult
	latency   time.Duration
}

func NewDictationController(
	recorder ports.AudioRecorder,
	transcriber ports.Transcriber,
	rules ports.RulesEngine,
	injector ports.Injector,
	permission ports.PermissionGate,
	metrics ports.EpisodeMetrics,
	logger *slog.Logger,
	cfg Config,
) *DictationController {
	if cfg.PressBuffer <= 0 {
		cfg.PressBuffer = 16
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &DictationController{
		recorder:    recorder,
		transcriber: transcriber,
		permission:  permission,
		metrics:     metrics,
		finalizer:   newTranscriptFinalizer(rules, injector, logger),
		store:       NewStateStore(),
		logger:      logger,
		cfg:         cfg,
		newID:       uuid.NewString,
		now:         time.Now,
		presses:     make(chan struct{}, cfg.PressBuffer),
		completions: make(chan completion, 1),
		permissions: make(chan bool, 1),
	}
}

// HotkeyPressed queues one logical hotkey event. It never blocks.
func (c *DictationController) HotkeyPressed() {
	select {
	case c.presses <- struct{}{}:
	default:
		c.logger.Warn("hotkey press dropped; press queue full")
	}
}

// PermissionChanged forwards a permission status change into the loop.
// Only the latest status is kept.
func (c *DictationController) PermissionChanged(granted bool) {
	for {
		select {
		case c.permissions <- granted:
			return
		default:
		}
		select {
		case <-c.permissions:
		default:
		}
	}
}

// Status returns the current snapshot.
func (c *DictationController) Status() domain.Snapshot {
	return c.store.Snapshot()
}

// Subscribe observes state changes. See StateStore.Subscribe.
func (c *DictationController) Subscribe(buffer int) (<-chan domain.StateChange, func()) {
	return c.store.Subscribe(buffer)
}

// Run processes hotkey presses and transcription completions until ctx is
// done. An episode still recording at that point is discarded; one still
// transcribing is awaited but not pasted. Run returns after every goroutine
// it started has finished.
func (c *DictationController) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.store.Close()

	granted := c.permission == nil || c.permission.Granted()
	c.store.update(func(s *domain.Snapshot) {
		s.State = domain.StateIdle
		s.Permission = granted
	}, change{reason: domain.ReasonReady})

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx)
			return nil
		case <-c.presses:
			c.handlePress(ctx)
		case done := <-c.completions:
			c.handleCompletion(ctx, done)
		case granted := <-c.permissions:
			c.store.update(func(s *domain.Snapshot) {
				s.Permission = granted
			}, change{reason: domain.ReasonPermissionChanged})
		}
	}
}

func (c *DictationController) handlePress(ctx context.Context) {
	c.checkPermission()

	switch c.store.Snapshot().State {
	case domain.StateIdle:
		c.startRecording(ctx)
	case domain.StateRecording:
		c.stopRecording(ctx)
	case domain.StateTranscribing:
		c.logger.Info("hotkey ignored while transcribing", "episode", c.episode.id)
		c.metrics.PressIgnored(ctx)
	}
}

// checkPermission is advisory: a missing grant is reported and a recheck is
// requested, but the press is still handled.
func (c *DictationController) checkPermission() {
	if c.permission == nil || c.permission.Granted() {
		return
	}
	c.logger.Warn("accessibility permission missing; continuing")
	c.store.update(func(s *domain.Snapshot) {
		s.Permission = false
	}, change{code: domain.ErrorCodePermissionDenied, detail: domain.ErrPermissionDenied.Error()})
	c.permission.Recheck()
}

func (c *DictationController) startRecording(ctx context.Context) {
	id := c.newID()
	logger := c.logger.With("episode", id)

	if err := c.recorder.Start(ctx); err != nil {
		logger.Error("failed to start recording", slog.String("error", err.Error()))
		c.store.update(func(s *domain.Snapshot) {
			s.State = domain.StateIdle
			s.EpisodeID = ""
			s.Transcript = ""
		}, change{
			reason: domain.ReasonCaptureStartFailed,
			code:   domain.ErrorCodeCaptureStartFailed,
			detail: err.Error(),
		})
		c.metrics.EpisodeFinished(ctx, string(domain.ReasonCaptureStartFailed))
		return
	}

	c.episode = &episode{id: id, recordingStarted: c.now()}
	c.metrics.EpisodeStarted(ctx)
	c.store.update(func(s *domain.Snapshot) {
		s.State = domain.StateRecording
		s.EpisodeID = id
		s.Transcript = ""
	}, change{reason: domain.ReasonRecordingStarted})
	logger.Info("recording started")
}

func (c *DictationController) stopRecording(ctx context.Context) {
	ep := c.episode
	logger := c.logger.With("episode", ep.id)

	path, err := c.recorder.Stop(ctx)
	if err != nil {
		logger.Warn("recording produced no file", slog.String("error", err.Error()))
		c.episode = nil
		c.store.update(func(s *domain.Snapshot) {
			s.State = domain.StateIdle
			s.EpisodeID = ""
		}, change{
			reason: domain.ReasonNoRecording,
			code:   domain.ErrorCodeCaptureProducedNoFile,
			detail: err.Error(),
		})
		c.metrics.EpisodeFinished(ctx, string(domain.ReasonNoRecording))
		return
	}

	ep.transcribingSince = c.now()
	c.store.update(func(s *domain.Snapshot) {
		s.State = domain.StateTranscribing
	}, change{reason: domain.ReasonTranscribing})
	logger.Info("transcribing", "path", path, "recorded", ep.transcribingSince.Sub(ep.recordingStarted).Round(time.Millisecond))

	// Transcription is not aborted by shutdown; Run waits for it instead.
	future := c.transcriber.Transcribe(context.WithoutCancel(ctx), path)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		result, ok := <-future
		if !ok {
			result = ports.TranscriptionResult{Err: fmt.Errorf("%w: no result produced", domain.ErrTranscriptionFailed)}
		}
		c.completions <- completion{episodeID: ep.id, result: result, latency: c.now().Sub(ep.transcribingSince)}
	}()
}

func (c *DictationController) handleCompletion(ctx context.Context, done completion) {
	if c.episode == nil || c.episode.id != done.episodeID {
		c.logger.Warn("dropping transcription for a finished episode", "episode", done.episodeID)
		return
	}
	logger := c.logger.With("episode", done.episodeID)
	failed := done.result.Err != nil
	c.metrics.TranscriptionLatency(ctx, done.latency, failed)
	if failed {
		logger.Error("transcription failed", slog.String("error", done.result.Err.Error()))
	}

	out := c.finalizer.Finalize(ctx, done.result)
	c.episode = nil
	c.store.update(func(s *domain.Snapshot) {
		s.State = domain.StateIdle
		s.EpisodeID = ""
		s.Transcript = out.text
	}, change{reason: out.reason, code: out.code, detail: out.detail})
	c.metrics.EpisodeFinished(ctx, string(out.reason))

	logger.Info("episode finished",
		"reason", out.reason,
		"pasted", out.pasted,
		"latency", done.latency.Round(time.Millisecond),
	)
}

func (c *DictationController) shutdown(ctx context.Context) {
	defer c.wg.Wait()

	if c.episode == nil {
		return
	}
	ep := c.episode
	logger := c.logger.With("episode", ep.id)
	// ctx is already done; cleanup gets its own bounded context.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StopTimeout)
	defer cancel()

	switch c.store.Snapshot().State {
	case domain.StateRecording:
		if _, err := c.recorder.Stop(cleanupCtx); err != nil {
			logger.Debug("discarded recording had no file", slog.String("error", err.Error()))
		}
		c.finishWithoutPaste(cleanupCtx, domain.ReasonRecordingDiscarded)
		logger.Info("recording discarded at shutdown")
	case domain.StateTranscribing:
		done := <-c.completions
		c.metrics.TranscriptionLatency(cleanupCtx, done.latency, done.result.Err != nil)
		c.finishWithoutPaste(cleanupCtx, domain.ReasonTranscriptionAbandoned)
		logger.Info("transcription finished after shutdown; not pasted")
	}
}

func (c *DictationController) finishWithoutPaste(ctx context.Context, reason domain.StateReason) {
	c.episode = nil
	c.store.update(func(s *domain.Snapshot) {
		s.State = domain.StateIdle
		s.EpisodeID = ""
	}, change{reason: reason})
	c.metrics.EpisodeFinished(ctx, string(reason))
}

type noopMetrics struct{}

func (noopMetrics) EpisodeStarted(context.Context)                            {}
func (noopMetrics) EpisodeFinished(context.Context, string)                   {}
func (noopMetrics) TranscriptionLatency(context.Context, time.Duration, bool) {}
func (noopMetrics) PressIgnored(context.Context)                              {}
