// Package hotkey listens for the global Ctrl+Shift+<key> shortcut.
package hotkey

import (
	"context"
	"fmt"
	"strings"
)

const DefaultKey = "n"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// ParseKey normalizes a key name. Letters, digits and "space" are accepted.
func ParseKey(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return DefaultKey, nil
	}
	if _, ok := keyCodes[key]; !ok {
		return "", fmt.Errorf("unsupported hotkey key %q (use a-z, 0-9 or space)", name)
	}
	return key, nil
}

// Label renders the full combination for display, e.g. "Ctrl+Shift+N".
func Label(key string) string {
	if key == "space" {
		return "Ctrl+Shift+Space"
	}
	return "Ctrl+Shift+" + strings.ToUpper(key)
}

// Listen calls onPress for every keydown until ctx is done. The press toggles
// recording, so key releases are drained and ignored.
func Listen(ctx context.Context, hk Hotkey, onPress func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			onPress()
		case <-hk.Keyup():
		}
	}
}
