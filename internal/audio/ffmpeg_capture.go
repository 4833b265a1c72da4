package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"dictakey/internal/ports"
)

const ffmpegStartGrace = 250 * time.Millisecond

// FFMPEGCapture reads raw microphone PCM from an ffmpeg child process.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Open(ctx context.Context, cfg ports.AudioConfig) (ports.PCMSource, error) {
	cfg = withDefaults(cfg)

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	// The process outlives the Open call, so it is bound to its own
	// lifetime rather than the caller's context.
	cmd := exec.Command(c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// A raw pipe keeps buffered samples readable after the process exits.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	_ = stdoutW.Close()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = stdout.Close()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		_ = stdout.Close()
		return nil, ctx.Err()
	case <-time.After(ffmpegStartGrace):
	}

	return &ffmpegSource{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegSource struct {
	stdout *os.File
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSource) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSource) Close() error {
	stopErr := s.Stop()
	if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && stopErr == nil {
		return err
	}
	return stopErr
}

// Stop interrupts ffmpeg so it flushes buffered samples, killing it if it
// does not exit in time.
func (s *ffmpegSource) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimOutput(s.stderr.String()))
		}
	})

	return s.stopErr
}

func withDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}
