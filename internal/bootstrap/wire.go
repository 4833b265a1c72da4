// Package bootstrap assembles the runtime graph from configuration.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"dictakey/internal/audio"
	"dictakey/internal/config"
	"dictakey/internal/hotkey"
	"dictakey/internal/inject"
	"dictakey/internal/permission"
	"dictakey/internal/ports"
	"dictakey/internal/rules"
	"dictakey/internal/transcription"
	"dictakey/internal/usecase"
)

// Overrides replaces OS-backed collaborators. Nil fields use the real ones.
type Overrides struct {
	Capture    ports.PCMCapture
	Engine     ports.EngineLoader
	Clipboard  ports.Clipboard
	Keystroker ports.Keystroker
	Checker    permission.Checker
	Channels   []hotkey.Channel
}

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Controller *usecase.DictationController
	Bridge     *transcription.Bridge
	Permission *permission.Gate
	Listener   *hotkey.Listener
}

// Close releases the hotkey registrations, the permission timer and the engine.
func (s Services) Close() error {
	var errs []error
	if s.Listener != nil {
		if err := s.Listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("hotkey listener: %w", err))
		}
	}
	if s.Permission != nil {
		s.Permission.Close()
	}
	if s.Bridge != nil {
		if err := s.Bridge.Close(); err != nil {
			errs = append(errs, fmt.Errorf("speech engine: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Build wires all dependencies for cfg.
func Build(cfg config.Config, logger *slog.Logger, metrics ports.EpisodeMetrics, overrides Overrides) (Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	substitutions, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}
	if substitutions.Len() > 0 {
		logger.Info("substitution rules loaded", "path", cfg.Rules.Path, "rules", substitutions.Len())
	}

	capture, err := buildCapture(cfg, overrides)
	if err != nil {
		return Services{}, err
	}
	loader, err := buildEngine(cfg, overrides)
	if err != nil {
		return Services{}, err
	}
	injector, err := buildInjector(cfg, overrides, logger)
	if err != nil {
		return Services{}, err
	}

	recorder := audio.NewRecorder(
		capture,
		ports.AudioConfig{
			SampleRate:  config.SampleRate,
			Channels:    config.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		cfg.Audio.RecordingPath,
		cfg.Audio.ChunkSize,
		logger.With("component", "audio"),
	)
	bridge := transcription.NewBridge(loader, logger.With("component", "transcription"))
	gate := permission.NewGate(overrides.Checker, cfg.Permission.RecheckDelay, logger.With("component", "permission"))

	controller := usecase.NewDictationController(
		recorder,
		bridge,
		substitutions,
		injector,
		gate,
		metrics,
		logger.With("component", "dictation"),
		usecase.Config{},
	)
	gate.OnChange(controller.PermissionChanged)

	channels := overrides.Channels
	if channels == nil {
		channels, err = hotkeyChannels(cfg.Hotkey.Key)
		if err != nil {
			return Services{}, err
		}
	}
	listener := hotkey.NewListener(controller.HotkeyPressed, cfg.Hotkey.Dedupe, logger.With("component", "hotkey"), channels...)

	return Services{
		Config:     cfg,
		Controller: controller,
		Bridge:     bridge,
		Permission: gate,
		Listener:   listener,
	}, nil
}

func buildCapture(cfg config.Config, overrides Overrides) (ports.PCMCapture, error) {
	if overrides.Capture != nil {
		return overrides.Capture, nil
	}
	switch cfg.Audio.Backend {
	case "portaudio":
		return audio.NewPortAudioCapture(cfg.Audio.ChunkSize / 2)
	default:
		return audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand), nil
	}
}

func buildEngine(cfg config.Config, overrides Overrides) (ports.EngineLoader, error) {
	if overrides.Engine != nil {
		return overrides.Engine, nil
	}
	switch cfg.Engine.Backend {
	case "whisper":
		return transcription.NewWhisperLoader()
	default:
		return transcription.NewExecLoader(cfg.Engine.Command), nil
	}
}

func buildInjector(cfg config.Config, overrides Overrides, logger *slog.Logger) (*inject.Injector, error) {
	var clipboard ports.Clipboard = inject.SystemClipboard{}
	if overrides.Clipboard != nil {
		clipboard = overrides.Clipboard
	}
	keystroker := overrides.Keystroker
	if keystroker == nil {
		keyboard, err := inject.NewKeyboardKeystroker()
		if err != nil {
			return nil, err
		}
		keystroker = keyboard
	}
	return inject.NewInjector(clipboard, keystroker, cfg.Inject.Settle, logger.With("component", "inject")), nil
}

func hotkeyChannels(key string) ([]hotkey.Channel, error) {
	registered, err := hotkey.Registered(key)
	if err != nil {
		return nil, err
	}
	observed, err := hotkey.Observed(key)
	if err != nil {
		return nil, err
	}
	return []hotkey.Channel{registered, observed}, nil
}
