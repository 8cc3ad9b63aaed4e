package orchestrator

import "sync"

type Action int

const (
	ActionToggle Action = iota + 1
	ActionStart
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	}
	return "none"
}

// Mailbox holds at most one pending action. A newer Post replaces an
// unconsumed one.
type Mailbox struct {
	mu      sync.Mutex
	pending Action
}

func (m *Mailbox) Post(a Action) {
	m.mu.Lock()
	m.pending = a
	m.mu.Unlock()
}

// Take returns and clears the pending action.
func (m *Mailbox) Take() (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.pending
	m.pending = 0
	return a, a != 0
}
