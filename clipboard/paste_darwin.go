//go:build darwin

package clipboard

import "github.com/micmonay/keybd_event"

const PasteShortcut = "Cmd+V"

func pasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasSuper(true)
}

func settle() {}
