package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"dictakey/internal/bootstrap"
	"dictakey/internal/config"
	"dictakey/internal/domain"
	"dictakey/internal/telemetry"
)

const notificationTitle = "dictakey"

// App runs the dictation services for the lifetime of a context.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	notify func(title string, message string) error
}

func NewApp(cfg config.Config, logger *slog.Logger) *App {
	app := &App{cfg: cfg, logger: logger}
	if cfg.Notifications {
		app.notify = func(title string, message string) error {
			return beeep.Notify(title, message, "")
		}
	}
	return app
}

// Run blocks until ctx is done. It fails only when startup fails.
func (a *App) Run(ctx context.Context) error {
	provider := telemetry.Setup()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if shutdownErr := provider.Shutdown(shutdownCtx, a.logger); shutdownErr != nil {
			a.logger.Warn("metrics shutdown failed", slog.String("error", shutdownErr.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(provider.MeterProvider())
	if err != nil {
		return a.startupFailed(fmt.Errorf("create metrics: %w", err))
	}

	services, err := bootstrap.Build(a.cfg, a.logger, metrics, bootstrap.Overrides{})
	if err != nil {
		return a.startupFailed(err)
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			a.logger.Warn("shutdown incomplete", slog.String("error", closeErr.Error()))
		}
	}()

	changes, unsubscribe := services.Controller.Subscribe(32)
	var observers sync.WaitGroup
	observers.Add(1)
	go func() {
		defer observers.Done()
		for change := range changes {
			a.observe(change)
		}
	}()
	defer func() {
		unsubscribe()
		observers.Wait()
	}()

	services.Bridge.Load(ctx, a.cfg.Engine.Model)
	if !services.Permission.Start() {
		a.logger.Warn("continuing without accessibility permission; grant it in system settings")
	}
	if err := services.Listener.Start(); err != nil {
		return a.startupFailed(fmt.Errorf("hotkey: %w", err))
	}

	a.logger.Info("dictakey ready",
		"hotkey", a.cfg.Hotkey.Key,
		"recording", a.cfg.Audio.RecordingPath,
		"audio", a.cfg.Audio.Backend,
		"engine", a.cfg.Engine.Backend,
		"model", a.cfg.Engine.Model,
	)
	return services.Controller.Run(ctx)
}

func (a *App) startupFailed(err error) error {
	a.logger.Error("startup failed", "code", domain.ErrorCodeStartup, slog.String("error", err.Error()))
	return err
}

// observe logs a state change and forwards it as a desktop notification.
func (a *App) observe(change domain.StateChange) {
	attrs := []any{"state", change.State}
	if change.EpisodeID != "" {
		attrs = append(attrs, "episode", change.EpisodeID)
	}
	if change.Reason != "" {
		attrs = append(attrs, "reason", change.Reason)
	}

	message := reasonMessage(change.Reason)
	if change.ErrorCode != "" {
		attrs = append(attrs, "code", change.ErrorCode, "detail", change.Detail)
		a.logger.Warn("dictation issue", attrs...)
		message = errorMessage(change.ErrorCode, change.Detail)
	} else {
		a.logger.Debug("dictation state", attrs...)
	}

	if a.notify == nil || message == "" {
		return
	}
	if err := a.notify(notificationTitle, message); err != nil {
		a.logger.Debug("notification failed", slog.String("error", err.Error()))
	}
}

func reasonMessage(reason domain.StateReason) string {
	switch reason {
	case domain.ReasonRecordingStarted:
		return "Recording"
	case domain.ReasonTranscribing:
		return "Recording stopped. Transcribing..."
	case domain.ReasonTranscriptPasted:
		return "Transcript pasted"
	case domain.ReasonNothingRecognized:
		return "No speech recognized"
	case domain.ReasonRecordingDiscarded:
		return "Recording discarded"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermissionDenied:
		return "Accessibility permission missing"
	case domain.ErrorCodeEngineUnavailable:
		return "Speech engine unavailable"
	case domain.ErrorCodeCaptureStartFailed:
		return "Microphone could not be started"
	case domain.ErrorCodeCaptureProducedNoFile:
		return "Nothing was recorded"
	case domain.ErrorCodeTranscriptionFailed:
		return "Transcription failed"
	case domain.ErrorCodeRules:
		return "Substitution rules failed"
	case domain.ErrorCodePaste:
		return "Paste failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
