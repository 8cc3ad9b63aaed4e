//go:build windows

package ollama

import "os"

// Windows has no deliverable SIGINT for a child without a console group.
func interrupt(p *os.Process) error {
	return p.Kill()
}
