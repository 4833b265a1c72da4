//go:build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"dictakey/internal/ports"
)

// PortAudioCapture reads the default input device through PortAudio.
type PortAudioCapture struct {
	framesPerBuffer int
}

func NewPortAudioCapture(framesPerBuffer int) (ports.PCMCapture, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &PortAudioCapture{framesPerBuffer: framesPerBuffer}, nil
}

func (c *PortAudioCapture) Open(_ context.Context, cfg ports.AudioConfig) (ports.PCMSource, error) {
	cfg = withDefaults(cfg)

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	frames := make([]int16, c.framesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), c.framesPerBuffer, frames)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio stream: %w", err)
	}

	return &portaudioSource{stream: stream, frames: frames}, nil
}

type portaudioSource struct {
	stream *portaudio.Stream
	frames []int16
	buf    []byte

	stopped   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Read blocks until one buffer of frames has been captured.
func (s *portaudioSource) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		if s.stopped.Load() {
			return 0, io.EOF
		}
		if err := s.stream.Read(); err != nil {
			if s.stopped.Load() {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("read portaudio stream: %w", err)
		}
		s.buf = s.buf[:0]
		for _, sample := range s.frames {
			s.buf = binary.LittleEndian.AppendUint16(s.buf, uint16(sample))
		}
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Stop ends the stream after the buffer currently being read.
func (s *portaudioSource) Stop() error {
	s.stopped.Store(true)
	return nil
}

func (s *portaudioSource) Close() error {
	s.closeOnce.Do(func() {
		s.stopped.Store(true)
		if err := s.stream.Stop(); err != nil {
			s.closeErr = err
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		if err := portaudio.Terminate(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
