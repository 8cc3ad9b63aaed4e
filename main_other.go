//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	code := 0
	// hotkey and tray need the main thread on macOS
	mainthread.Init(func() { code = execute() })
	os.Exit(code)
}
