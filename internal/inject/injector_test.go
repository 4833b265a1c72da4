package inject

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"dictakey/internal/logging"
)

func TestInjectorPasteOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	clip := &fakeClipboard{calls: &calls}
	keys := &fakeKeystroker{calls: &calls}
	injector := NewInjector(clip, keys, time.Millisecond, logging.Discard())

	if err := injector.Paste(context.Background(), "hello world"); err != nil {
		t.Fatalf("paste failed: %v", err)
	}

	want := []string{"clear", "set:hello world", "paste"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("unexpected call order: %v", calls)
	}
}

func TestInjectorStopsOnClipboardFailure(t *testing.T) {
	t.Parallel()

	var calls []string
	clip := &fakeClipboard{calls: &calls, setErr: errors.New("no display")}
	keys := &fakeKeystroker{calls: &calls}
	injector := NewInjector(clip, keys, 0, logging.Discard())

	if err := injector.Paste(context.Background(), "text"); err == nil {
		t.Fatalf("expected clipboard error")
	}
	if len(calls) != 2 || calls[1] != "set:text" {
		t.Fatalf("expected no keystroke after clipboard failure, calls=%v", calls)
	}
}

func TestInjectorReportsKeystrokeFailureWithoutRetry(t *testing.T) {
	t.Parallel()

	var calls []string
	clip := &fakeClipboard{calls: &calls}
	keys := &fakeKeystroker{calls: &calls, err: errors.New("uinput busy")}
	injector := NewInjector(clip, keys, 0, logging.Discard())

	if err := injector.Paste(context.Background(), "text"); err == nil {
		t.Fatalf("expected keystroke error")
	}
	pastes := 0
	for _, call := range calls {
		if call == "paste" {
			pastes++
		}
	}
	if pastes != 1 {
		t.Fatalf("expected exactly one paste attempt, got %d", pastes)
	}
}

func TestInjectorCancelledDuringSettle(t *testing.T) {
	t.Parallel()

	var calls []string
	injector := NewInjector(&fakeClipboard{calls: &calls}, &fakeKeystroker{calls: &calls}, time.Hour, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := injector.Paste(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected no keystroke after cancellation, calls=%v", calls)
	}
}

func TestPasteUsesSuper(t *testing.T) {
	t.Parallel()

	if !pasteUsesSuper("darwin") {
		t.Fatalf("expected Cmd on darwin")
	}
	if pasteUsesSuper("linux") || pasteUsesSuper("windows") {
		t.Fatalf("expected Ctrl off darwin")
	}
}

type fakeClipboard struct {
	calls  *[]string
	setErr error
}

func (c *fakeClipboard) Clear() error {
	*c.calls = append(*c.calls, "clear")
	return nil
}

func (c *fakeClipboard) SetText(text string) error {
	*c.calls = append(*c.calls, "set:"+text)
	return c.setErr
}

type fakeKeystroker struct {
	calls *[]string
	err   error
}

func (k *fakeKeystroker) Paste() error {
	*k.calls = append(*k.calls, "paste")
	return k.err
}
