//go:build !darwin

package clipboard

import (
	"runtime"
	"time"

	"github.com/micmonay/keybd_event"
)

const PasteShortcut = "Ctrl+V"

func pasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasCTRL(true)
}

// settle waits for a freshly created uinput device to be picked up by the
// compositor before the first key event.
func settle() {
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
}
