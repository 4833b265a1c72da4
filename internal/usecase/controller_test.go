package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dictakey/internal/domain"
	"dictakey/internal/logging"
	"dictakey/internal/ports"
	"dictakey/internal/transcription"
)

func TestDictationPastesJoinedSegments(t *testing.T) {
	t.Parallel()

	bridge := transcription.NewBridge(&fakeLoader{segments: []ports.Segment{{Text: "hello"}, {Text: "world"}}}, logging.Discard())
	bridge.Load(context.Background(), "base.en")
	defer bridge.Close()

	h := newHarness(t, bridge)
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonRecordingStarted)
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonTranscribing)
	final := h.waitReason(domain.ReasonTranscriptPasted)

	if final.State != domain.StateIdle || final.Transcript != "hello world" {
		t.Fatalf("unexpected final snapshot: %+v", final.Snapshot)
	}
	if got := h.injector.texts(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("expected exactly one paste of %q, got %v", "hello world", got)
	}
	if h.recorder.starts.Load() != 1 || h.recorder.stops.Load() != 1 {
		t.Fatalf("unexpected recorder calls: starts=%d stops=%d", h.recorder.starts.Load(), h.recorder.stops.Load())
	}
}

func TestDictationPastesFailureDescription(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)

	h.controller.HotkeyPressed()
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonTranscribing)
	transcriber.finish(ports.TranscriptionResult{Err: errors.Join(domain.ErrTranscriptionFailed, errors.New("decoder crashed"))})
	final := h.waitReason(domain.ReasonTranscriptionFailed)

	if final.State != domain.StateIdle {
		t.Fatalf("expected idle after failure, got %s", final.State)
	}
	if final.ErrorCode != domain.ErrorCodeTranscriptionFailed {
		t.Fatalf("unexpected error code: %s", final.ErrorCode)
	}
	pasted := h.injector.texts()
	if len(pasted) != 1 || !strings.HasPrefix(pasted[0], "[dictation error] ") || !strings.Contains(pasted[0], "decoder crashed") {
		t.Fatalf("expected pasted error description, got %v", pasted)
	}
	if final.Transcript != pasted[0] {
		t.Fatalf("expected transcript to hold the error text, got %q", final.Transcript)
	}
	if h.rules.calls.Load() != 0 {
		t.Fatalf("rules must not run on failure text")
	}
}

func TestDictationIgnoresPressesWhileTranscribing(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)

	h.controller.HotkeyPressed()
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonTranscribing)

	for i := 0; i < 3; i++ {
		h.controller.HotkeyPressed()
	}
	waitUntil(t, func() bool { return h.metrics.ignored.Load() == 3 })

	snapshot := h.controller.Status()
	if snapshot.State != domain.StateTranscribing {
		t.Fatalf("expected transcribing, got %s", snapshot.State)
	}
	if h.recorder.starts.Load() != 1 {
		t.Fatalf("a press during transcription must not start recording")
	}

	transcriber.finish(ports.TranscriptionResult{Text: "done"})
	h.waitReason(domain.ReasonTranscriptPasted)
	if got := h.injector.texts(); len(got) != 1 {
		t.Fatalf("expected a single paste, got %v", got)
	}
	if transcriber.calls.Load() != 1 {
		t.Fatalf("expected one transcription, got %d", transcriber.calls.Load())
	}
}

func TestDictationNoFileReturnsToIdle(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)
	h.recorder.stopErr = domain.ErrCaptureProducedNoFile

	h.controller.HotkeyPressed()
	h.controller.HotkeyPressed()
	final := h.waitReason(domain.ReasonNoRecording)

	if final.State != domain.StateIdle || final.ErrorCode != domain.ErrorCodeCaptureProducedNoFile {
		t.Fatalf("unexpected change: %+v", final)
	}
	if transcriber.calls.Load() != 0 || len(h.injector.texts()) != 0 {
		t.Fatalf("nothing may be transcribed or pasted without a file")
	}
}

func TestDictationCaptureStartFailureStaysIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newScriptedTranscriber())
	h.recorder.setStartErr(errors.New("device busy"))

	h.controller.HotkeyPressed()
	final := h.waitReason(domain.ReasonCaptureStartFailed)
	if final.State != domain.StateIdle || final.ErrorCode != domain.ErrorCodeCaptureStartFailed {
		t.Fatalf("unexpected change: %+v", final)
	}
	if len(h.injector.texts()) != 0 {
		t.Fatalf("nothing may be pasted after a failed start")
	}

	h.recorder.setStartErr(nil)
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonRecordingStarted)
}

func TestDictationPermissionIsAdvisory(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newScriptedTranscriber())
	h.permission.granted.Store(false)

	h.controller.HotkeyPressed()
	denied := h.waitCode(domain.ErrorCodePermissionDenied)
	if denied.Permission {
		t.Fatalf("expected snapshot to report missing permission")
	}
	h.waitReason(domain.ReasonRecordingStarted)
	if h.permission.rechecks.Load() == 0 {
		t.Fatalf("expected a recheck request")
	}

	h.controller.PermissionChanged(true)
	granted := h.waitReason(domain.ReasonPermissionChanged)
	if !granted.Permission || granted.State != domain.StateRecording {
		t.Fatalf("unexpected snapshot after grant: %+v", granted.Snapshot)
	}
}

func TestDictationAppliesRulesToTranscript(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)
	h.rules.transform = func(text string) (string, error) { return strings.ToUpper(text), nil }

	h.controller.HotkeyPressed()
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonTranscribing)
	transcriber.finish(ports.TranscriptionResult{Text: "ship it"})
	final := h.waitReason(domain.ReasonTranscriptPasted)

	if final.Transcript != "SHIP IT" {
		t.Fatalf("unexpected transcript: %q", final.Transcript)
	}
}

func TestDictationEmptyTranscriptIsNotPasted(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)

	h.controller.HotkeyPressed()
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonTranscribing)
	transcriber.finish(ports.TranscriptionResult{Text: ""})
	final := h.waitReason(domain.ReasonNothingRecognized)

	if final.State != domain.StateIdle || len(h.injector.texts()) != 0 {
		t.Fatalf("expected idle without paste, got %+v pasted=%v", final.Snapshot, h.injector.texts())
	}
}

func TestDictationNewEpisodeClearsTranscript(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)

	h.controller.HotkeyPressed()
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonTranscribing)
	transcriber.finish(ports.TranscriptionResult{Text: "first"})
	h.waitReason(domain.ReasonTranscriptPasted)

	h.controller.HotkeyPressed()
	started := h.waitReason(domain.ReasonRecordingStarted)
	if started.Transcript != "" {
		t.Fatalf("expected transcript cleared, got %q", started.Transcript)
	}
	if started.EpisodeID == "" {
		t.Fatalf("expected episode id")
	}
}

func TestDictationShutdownDiscardsRecording(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)

	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonRecordingStarted)
	h.stop()

	if h.recorder.stops.Load() != 1 {
		t.Fatalf("expected recording to be stopped at shutdown")
	}
	if transcriber.calls.Load() != 0 || len(h.injector.texts()) != 0 {
		t.Fatalf("discarded recording must not be transcribed or pasted")
	}
	if got := h.controller.Status(); got.State != domain.StateIdle {
		t.Fatalf("expected idle after shutdown, got %s", got.State)
	}
}

func TestDictationShutdownAwaitsTranscriptionWithoutPasting(t *testing.T) {
	t.Parallel()

	transcriber := newScriptedTranscriber()
	h := newHarness(t, transcriber)

	h.controller.HotkeyPressed()
	h.controller.HotkeyPressed()
	h.waitReason(domain.ReasonTranscribing)

	h.cancel()
	select {
	case <-h.runDone:
		t.Fatalf("run returned before the transcription finished")
	case <-time.After(30 * time.Millisecond):
	}

	transcriber.finish(ports.TranscriptionResult{Text: "late"})
	<-h.runDone

	if len(h.injector.texts()) != 0 {
		t.Fatalf("transcription finished after shutdown must not be pasted")
	}
	if got := h.controller.Status(); got.State != domain.StateIdle {
		t.Fatalf("expected idle after shutdown, got %s", got.State)
	}
}

func TestDictationRunTwiceFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newScriptedTranscriber())
	if err := h.controller.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

type harness struct {
	t          *testing.T
	controller *DictationController
	recorder   *fakeRecorder
	rules      *fakeRules
	injector   *fakeInjector
	permission *fakePermission
	metrics    *fakeMetrics
	changes    <-chan domain.StateChange
	cancel     context.CancelFunc
	runDone    chan struct{}
	stopOnce   sync.Once
}

func newHarness(t *testing.T, transcriber ports.Transcriber) *harness {
	t.Helper()

	h := &harness{
		t:          t,
		recorder:   &fakeRecorder{path: "/tmp/recording.wav"},
		rules:      &fakeRules{},
		injector:   &fakeInjector{},
		permission: &fakePermission{},
		metrics:    &fakeMetrics{},
		runDone:    make(chan struct{}),
	}
	h.permission.granted.Store(true)
	h.controller = NewDictationController(h.recorder, transcriber, h.rules, h.injector, h.permission, h.metrics, logging.Discard(), Config{})
	h.changes, _ = h.controller.Subscribe(128)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.runDone)
		_ = h.controller.Run(ctx)
	}()
	h.waitReason(domain.ReasonReady)
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.runDone
	})
}

func (h *harness) waitReason(reason domain.StateReason) domain.StateChange {
	h.t.Helper()
	return h.waitFor(func(c domain.StateChange) bool { return c.Reason == reason }, string(reason))
}

func (h *harness) waitCode(code domain.ErrorCode) domain.StateChange {
	h.t.Helper()
	return h.waitFor(func(c domain.StateChange) bool { return c.ErrorCode == code }, string(code))
}

func (h *harness) waitFor(match func(domain.StateChange) bool, what string) domain.StateChange {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case change, ok := <-h.changes:
			if !ok {
				h.t.Fatalf("state changes closed while waiting for %s", what)
			}
			if match(change) {
				return change
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

type fakeRecorder struct {
	path    string
	stopErr error

	mu       sync.Mutex
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32
}

func (r *fakeRecorder) setStartErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

func (r *fakeRecorder) Start(context.Context) error {
	r.mu.Lock()
	err := r.startErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.starts.Add(1)
	return nil
}

func (r *fakeRecorder) Stop(context.Context) (string, error) {
	r.stops.Add(1)
	if r.stopErr != nil {
		return "", r.stopErr
	}
	return r.path, nil
}

type scriptedTranscriber struct {
	calls   atomic.Int32
	results chan ports.TranscriptionResult
}

func newScriptedTranscriber() *scriptedTranscriber {
	return &scriptedTranscriber{results: make(chan ports.TranscriptionResult, 1)}
}

func (s *scriptedTranscriber) Transcribe(context.Context, string) <-chan ports.TranscriptionResult {
	s.calls.Add(1)
	out := make(chan ports.TranscriptionResult, 1)
	go func() {
		out <- <-s.results
		close(out)
	}()
	return out
}

func (s *scriptedTranscriber) finish(result ports.TranscriptionResult) {
	s.results <- result
}

type fakeRules struct {
	transform func(string) (string, error)
	calls     atomic.Int32
}

func (r *fakeRules) Apply(text string) (string, error) {
	r.calls.Add(1)
	if r.transform == nil {
		return text, nil
	}
	return r.transform(text)
}

type fakeInjector struct {
	mu     sync.Mutex
	pasted []string
	err    error
}

func (i *fakeInjector) Paste(_ context.Context, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pasted = append(i.pasted, text)
	return i.err
}

func (i *fakeInjector) texts() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.pasted...)
}

type fakePermission struct {
	granted  atomic.Bool
	rechecks atomic.Int32
}

func (p *fakePermission) Granted() bool { return p.granted.Load() }
func (p *fakePermission) Recheck()      { p.rechecks.Add(1) }

type fakeMetrics struct {
	started  atomic.Int32
	finished atomic.Int32
	ignored  atomic.Int32
}

func (m *fakeMetrics) EpisodeStarted(context.Context)                            { m.started.Add(1) }
func (m *fakeMetrics) EpisodeFinished(context.Context, string)                   { m.finished.Add(1) }
func (m *fakeMetrics) TranscriptionLatency(context.Context, time.Duration, bool) {}
func (m *fakeMetrics) PressIgnored(context.Context)                              { m.ignored.Add(1) }

type fakeLoader struct {
	segments []ports.Segment
}

func (l *fakeLoader) Load(context.Context, string) (ports.Engine, error) {
	return fakeEngine{segments: l.segments}, nil
}

type fakeEngine struct {
	segments []ports.Segment
}

func (e fakeEngine) Transcribe(context.Context, string) ([]ports.Segment, error) {
	return e.segments, nil
}

func (fakeEngine) Close() error { return nil }
