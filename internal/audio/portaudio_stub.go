//go:build !portaudio

package audio

import (
	"errors"

	"dictakey/internal/ports"
)

// NewPortAudioCapture is unavailable unless built with -tags portaudio.
func NewPortAudioCapture(int) (ports.PCMCapture, error) {
	return nil, errors.New("portaudio backend not compiled in; rebuild with -tags portaudio")
}
