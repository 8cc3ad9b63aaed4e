package shutdown

import (
	"sync"

	"localnotes/log"
)

// Hooks runs registered cleanup functions once, newest first, at process
// exit. Hooks registered after Run has started are run immediately.
type Hooks struct {
	mu    sync.Mutex
	names []string
	fns   map[string]func() error
	ran   bool
}

func NewHooks() *Hooks {
	return &Hooks{fns: make(map[string]func() error)}
}

var defaultHooks = NewHooks()

// Register adds fn under name. Registering the same name again replaces the
// earlier hook.
func (h *Hooks) Register(name string, fn func() error) {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		runHook(name, fn)
		return
	}
	if _, ok := h.fns[name]; !ok {
		h.names = append(h.names, name)
	}
	h.fns[name] = fn
	h.mu.Unlock()
}

func (h *Hooks) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.fns[name]; !ok {
		return
	}
	delete(h.fns, name)
	for i, n := range h.names {
		if n == name {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

// Run executes every hook once. Later calls are no-ops.
func (h *Hooks) Run() {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return
	}
	h.ran = true
	names := h.names
	fns := h.fns
	h.names, h.fns = nil, make(map[string]func() error)
	h.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		runHook(names[i], fns[names[i]])
	}
}

func runHook(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("shutdown hook %s panicked: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		log.Warnf("shutdown hook %s: %v", name, err)
	}
}

func Register(name string, fn func() error) { defaultHooks.Register(name, fn) }
func Unregister(name string)                { defaultHooks.Unregister(name) }
func Run()                                  { defaultHooks.Run() }
