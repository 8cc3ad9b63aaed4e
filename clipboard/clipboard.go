// Package clipboard copies text to the system clipboard and simulates the
// platform paste shortcut.
package clipboard

import (
	"fmt"
	"sync"

	cb "github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return fmt.Errorf("no clipboard utility available")
	}
	return cb.WriteAll(text)
}

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// Init prepares the virtual keyboard used by Paste. It is safe to call more
// than once.
func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil {
			settle()
		}
	})
	return kbErr
}

// Paste sends Cmd+V on macOS and Ctrl+V elsewhere to the focused window.
func Paste() error {
	if err := Init(); err != nil {
		return fmt.Errorf("keyboard init: %w", err)
	}
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	pasteModifier(&kb)
	return kb.Launching()
}

// Verify checks that the virtual keyboard can be created.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	return "keyboard event binding OK (" + PasteShortcut + ")", nil
}

// System adapts the package functions to the orchestrator collaborators.
type System struct{}

func (System) Copy(text string) error { return Copy(text) }
func (System) Paste() error           { return Paste() }
