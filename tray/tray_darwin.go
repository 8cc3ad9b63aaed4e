//go:build darwin

package tray

import "golang.design/x/hotkey/mainthread"

// runLoop starts the native loop on the main thread, which AppKit requires.
func runLoop(start func()) {
	done := make(chan struct{})
	mainthread.Call(func() {
		start()
		close(done)
	})
	<-done
}
