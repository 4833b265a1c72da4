//go:build !whisper

package transcription

import (
	"errors"

	"dictakey/internal/ports"
)

// NewWhisperLoader is unavailable unless built with -tags whisper.
func NewWhisperLoader() (ports.EngineLoader, error) {
	return nil, errors.New("whisper backend not compiled in; rebuild with -tags whisper")
}
