//go:build !darwin

package tray

func runLoop(start func()) {
	start()
}
