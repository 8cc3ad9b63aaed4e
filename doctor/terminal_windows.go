//go:build windows

package doctor

// ResetTerminal is a no-op on Windows.
func ResetTerminal() {}
