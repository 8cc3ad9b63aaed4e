package transcript

import (
	"strings"
	"sync"
)

// Accumulator is the ordered text of one recording, one segment per drained
// interval.
type Accumulator struct {
	mu       sync.Mutex
	segments []string
}

// Append adds text as the next segment. Blank text is dropped.
func (a *Accumulator) Append(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	a.mu.Lock()
	a.segments = append(a.segments, text)
	a.mu.Unlock()
	return true
}

// String joins the segments with single spaces.
func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.segments, " ")
}

func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.segments)
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.segments = nil
	a.mu.Unlock()
}
