package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// SampleRate and Channels are fixed: mono 16 kHz linear PCM.
	SampleRate = 16000
	Channels   = 1

	// HotkeyName is the designated trigger key.
	HotkeyName = "f5"
)

// Config stores runtime configuration.
type Config struct {
	Audio      AudioConfig
	Engine     EngineConfig
	Rules      RulesConfig
	Permission PermissionConfig
	Hotkey     HotkeyConfig
	Inject     InjectConfig
	Log        LogConfig

	Notifications bool
}

type AudioConfig struct {
	Backend         string
	RecordingPath   string
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	ChunkSize       int
}

type EngineConfig struct {
	Backend string
	Command string
	Model   string
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type PermissionConfig struct {
	RecheckDelay time.Duration
}

type HotkeyConfig struct {
	Key    string
	Dedupe time.Duration
}

type InjectConfig struct {
	Settle time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	defaultFormat, defaultDevice := defaultAudioInput(runtime.GOOS)

	cfg := Config{
		Audio: AudioConfig{
			Backend:         strings.ToLower(envOrDefault("DICTAKEY_AUDIO_BACKEND", "ffmpeg")),
			RecordingPath:   envOrDefault("DICTAKEY_RECORDING_PATH", filepath.Join(home, "Documents", "recording.wav")),
			RecorderCommand: envOrDefault("DICTAKEY_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("DICTAKEY_AUDIO_INPUT_FORMAT", defaultFormat),
			InputDevice:     envOrDefault("DICTAKEY_AUDIO_INPUT_DEVICE", defaultDevice),
			ChunkSize:       envOrDefaultInt("DICTAKEY_AUDIO_CHUNK_SIZE", 4096),
		},
		Engine: EngineConfig{
			Backend: strings.ToLower(envOrDefault("DICTAKEY_ENGINE", "exec")),
			Command: strings.TrimSpace(os.Getenv("DICTAKEY_ENGINE_COMMAND")),
			Model:   envOrDefault("DICTAKEY_MODEL", filepath.Join(home, ".dictakey", "models", "ggml-base.en.bin")),
		},
		Rules: RulesConfig{
			Path:           envOrDefault("DICTAKEY_RULES_FILE", filepath.Join(home, ".config", "dictakey", "substitutions.rules")),
			IterationLimit: envOrDefaultInt("DICTAKEY_RULE_ITERATION_LIMIT", 30),
		},
		Permission: PermissionConfig{
			RecheckDelay: envOrDefaultMillis("DICTAKEY_PERMISSION_RECHECK_MS", 5*time.Second),
		},
		Hotkey: HotkeyConfig{
			Key:    HotkeyName,
			Dedupe: envOrDefaultMillis("DICTAKEY_HOTKEY_DEDUPE_MS", 150*time.Millisecond),
		},
		Inject: InjectConfig{
			Settle: envOrDefaultMillis("DICTAKEY_PASTE_SETTLE_MS", 80*time.Millisecond),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envOrDefault("DICTAKEY_LOG_LEVEL", "info")),
			Format: strings.ToLower(envOrDefault("DICTAKEY_LOG_FORMAT", "text")),
		},
		Notifications: envOrDefaultBool("DICTAKEY_NOTIFICATIONS", false),
	}

	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Permission.RecheckDelay <= 0 {
		cfg.Permission.RecheckDelay = 5 * time.Second
	}
	switch cfg.Audio.Backend {
	case "ffmpeg", "portaudio":
	default:
		return Config{}, errors.New("DICTAKEY_AUDIO_BACKEND must be ffmpeg or portaudio")
	}
	switch cfg.Engine.Backend {
	case "exec", "whisper":
	default:
		return Config{}, errors.New("DICTAKEY_ENGINE must be exec or whisper")
	}

	return cfg, nil
}

func defaultAudioInput(goos string) (format string, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}
