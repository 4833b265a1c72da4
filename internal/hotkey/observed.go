package hotkey

import (
	"fmt"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// observedChannel watches the system-wide event tap. It sees the key no
// matter which application is focused but cannot stop it from propagating.
type observedChannel struct {
	name    string
	keycode uint16

	mu   sync.Mutex
	done chan struct{}
}

// Observed returns the pass-through channel for a key name.
func Observed(name string) (Channel, error) {
	code, ok := hook.Keycode[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey %q", name)
	}
	return &observedChannel{name: name, keycode: code}, nil
}

func (c *observedChannel) Name() string   { return "observed" }
func (c *observedChannel) Consumes() bool { return false }

func (c *observedChannel) Open() (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return nil, fmt.Errorf("hotkey %s already observed", c.name)
	}
	events := hook.Start()
	if events == nil {
		return nil, fmt.Errorf("global event tap unavailable")
	}
	c.done = make(chan struct{})

	out := make(chan struct{}, 1)
	go filterPresses(events, c.keycode, out, c.done)
	return out, nil
}

func (c *observedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done == nil {
		return nil
	}
	close(c.done)
	c.done = nil
	hook.End()
	return nil
}

// filterPresses forwards one signal per physical press of keycode. Auto-repeat
// holds are ignored until the key is released.
func filterPresses(events <-chan hook.Event, keycode uint16, out chan<- struct{}, done <-chan struct{}) {
	defer close(out)
	down := false
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Keycode != keycode {
				continue
			}
			switch ev.Kind {
			case hook.KeyHold:
				if down {
					continue
				}
				down = true
				select {
				case out <- struct{}{}:
				default:
				}
			case hook.KeyUp:
				down = false
			}
		}
	}
}
