//go:build !windows

package ollama

import "os"

func interrupt(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
