package tui

import "github.com/atotto/clipboard"

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// ClipboardAvailable reports whether a clipboard helper was found.
func ClipboardAvailable() bool {
	return !clipboard.Unsupported
}
