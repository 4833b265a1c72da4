package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mattn/go-shellwords"

	"dictakey/internal/ports"
)

var defaultCommands = []string{"whisper-cli", "whisper-cpp"}

// ExecLoader runs the whisper.cpp command line tool once per recording.
type ExecLoader struct {
	command string
}

// NewExecLoader builds a loader for command, a shell-style command line.
// An empty command selects the first whisper.cpp binary found on PATH.
func NewExecLoader(command string) *ExecLoader {
	return &ExecLoader{command: command}
}

func (l *ExecLoader) Load(_ context.Context, model string) (ports.Engine, error) {
	argv, err := l.resolve()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("model %s: %w", model, err)
	}
	return &execEngine{argv: argv, model: model}, nil
}

func (l *ExecLoader) resolve() ([]string, error) {
	if l.command != "" {
		argv, err := shellwords.Parse(l.command)
		if err != nil {
			return nil, fmt.Errorf("parse engine command: %w", err)
		}
		if len(argv) == 0 {
			return nil, errors.New("engine command is empty")
		}
		path, err := exec.LookPath(argv[0])
		if err != nil {
			return nil, fmt.Errorf("engine command %s: %w", argv[0], err)
		}
		argv[0] = path
		return argv, nil
	}
	for _, name := range defaultCommands {
		if path, err := exec.LookPath(name); err == nil {
			return []string{path}, nil
		}
	}
	return nil, fmt.Errorf("no whisper.cpp binary found on PATH (tried %v)", defaultCommands)
}

type execEngine struct {
	argv  []string
	model string
}

type whisperJSON struct {
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func (e *execEngine) Transcribe(ctx context.Context, path string) ([]ports.Segment, error) {
	if _, err := readWAV(path); err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp("", "dictakey-transcript-")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)
	outBase := filepath.Join(outDir, "transcript")

	args := append([]string{}, e.argv[1:]...)
	args = append(args, "-m", e.model, "-f", path, "-oj", "-of", outBase, "-np")

	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(e.argv[0]), err, bytes.TrimSpace(stderr.Bytes()))
	}

	raw, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("read engine output: %w", err)
	}
	var parsed whisperJSON
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse engine output: %w", err)
	}

	segments := make([]ports.Segment, 0, len(parsed.Transcription))
	for _, item := range parsed.Transcription {
		segments = append(segments, ports.Segment{Text: item.Text})
	}
	return segments, nil
}

func (e *execEngine) Close() error {
	return nil
}
