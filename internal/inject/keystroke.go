package inject

import (
	"fmt"
	"runtime"
	"time"

	"github.com/micmonay/keybd_event"
)

const keyHold = 20 * time.Millisecond

// KeyboardKeystroker synthesizes the paste shortcut: Cmd+V on macOS and
// Ctrl+V elsewhere.
type KeyboardKeystroker struct {
	kb keybd_event.KeyBonding
}

func NewKeyboardKeystroker() (*KeyboardKeystroker, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	kb.SetKeys(keybd_event.VK_V)
	if pasteUsesSuper(runtime.GOOS) {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return &KeyboardKeystroker{kb: kb}, nil
}

// Paste sends modifier-down, key-down, key-up, modifier-up.
func (k *KeyboardKeystroker) Paste() error {
	if err := k.kb.Press(); err != nil {
		return err
	}
	time.Sleep(keyHold)
	return k.kb.Release()
}

func pasteUsesSuper(goos string) bool {
	return goos == "darwin"
}
