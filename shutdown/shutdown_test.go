package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunOrderAndOnce(t *testing.T) {
	h := NewHooks()
	var order []string
	h.Register("server", func() error { order = append(order, "server"); return nil })
	h.Register("log", func() error { order = append(order, "log"); return errors.New("ignored") })

	h.Run()
	h.Run()

	require.Equal(t, []string{"log", "server"}, order)
}

func TestRegisterReplacesAndUnregister(t *testing.T) {
	h := NewHooks()
	calls := map[string]int{}
	h.Register("a", func() error { calls["a1"]++; return nil })
	h.Register("a", func() error { calls["a2"]++; return nil })
	h.Register("b", func() error { calls["b"]++; return nil })
	h.Unregister("b")
	h.Unregister("missing")

	h.Run()

	require.Equal(t, map[string]int{"a2": 1}, calls)
}

func TestRegisterAfterRunExecutesImmediately(t *testing.T) {
	h := NewHooks()
	h.Run()

	ran := false
	h.Register("late", func() error { ran = true; return nil })
	require.True(t, ran)
}

func TestPanickingHookDoesNotStopOthers(t *testing.T) {
	h := NewHooks()
	ran := false
	h.Register("first", func() error { ran = true; return nil })
	h.Register("boom", func() error { panic("boom") })

	require.NotPanics(t, h.Run)
	require.True(t, ran)
}
