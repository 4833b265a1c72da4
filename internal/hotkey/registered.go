package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"
)

var functionKeys = map[string]hotkey.Key{
	"f1":  hotkey.KeyF1,
	"f2":  hotkey.KeyF2,
	"f3":  hotkey.KeyF3,
	"f4":  hotkey.KeyF4,
	"f5":  hotkey.KeyF5,
	"f6":  hotkey.KeyF6,
	"f7":  hotkey.KeyF7,
	"f8":  hotkey.KeyF8,
	"f9":  hotkey.KeyF9,
	"f10": hotkey.KeyF10,
	"f11": hotkey.KeyF11,
	"f12": hotkey.KeyF12,
}

// registeredChannel registers the key with the OS hotkey service. The OS
// routes the key to this process only, so it never reaches the focused app.
type registeredChannel struct {
	name string
	key  hotkey.Key

	mu   sync.Mutex
	hk   *hotkey.Hotkey
	done chan struct{}
}

// Registered returns the consuming channel for a function key name.
func Registered(name string) (Channel, error) {
	key, ok := functionKeys[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey %q", name)
	}
	return &registeredChannel{name: name, key: key}, nil
}

func (c *registeredChannel) Name() string   { return "registered" }
func (c *registeredChannel) Consumes() bool { return true }

func (c *registeredChannel) Open() (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hk != nil {
		return nil, fmt.Errorf("hotkey %s already registered", c.name)
	}
	hk := hotkey.New(nil, c.key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("register hotkey %s: %w", c.name, err)
	}
	c.hk = hk
	c.done = make(chan struct{})

	out := make(chan struct{}, 1)
	go relay(hk.Keydown(), out, c.done)
	return out, nil
}

func (c *registeredChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hk == nil {
		return nil
	}
	close(c.done)
	err := c.hk.Unregister()
	c.hk = nil
	return err
}

func relay[T any](in <-chan T, out chan<- struct{}, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-done:
			return
		case _, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}
