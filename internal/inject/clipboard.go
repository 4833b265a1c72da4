package inject

import "github.com/atotto/clipboard"

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Clear() error {
	return clipboard.WriteAll("")
}

func (SystemClipboard) SetText(text string) error {
	return clipboard.WriteAll(text)
}
