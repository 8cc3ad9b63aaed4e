package hotkey

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", DefaultKey, true},
		{"N", "n", true},
		{" space ", "space", true},
		{"7", "7", true},
		{"F1", "", false},
		{"ctrl", "", false},
	}
	for _, tc := range tests {
		got, err := ParseKey(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseKey(%q) error: %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseKey(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("ParseKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label("n"); got != "Ctrl+Shift+N" {
		t.Errorf("Label(n) = %q", got)
	}
	if got := Label("space"); got != "Ctrl+Shift+Space" {
		t.Errorf("Label(space) = %q", got)
	}
}

func TestListenTogglesOnKeydownOnly(t *testing.T) {
	fk := NewFake()
	var presses atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Listen(ctx, fk, func() { presses.Add(1) })
		close(done)
	}()

	fk.SimKeydown()
	fk.SimKeyup()
	fk.SimKeydown()
	fk.SimKeyup()

	deadline := time.Now().Add(time.Second)
	for presses.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := presses.Load(); got != 2 {
		t.Fatalf("presses = %d, want 2", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
