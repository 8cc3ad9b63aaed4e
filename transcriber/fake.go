package transcriber

import (
	"context"
	"fmt"
	"sync"
)

// FakeTranscriber returns scripted texts in call order, then "".
type FakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	err   error
	paths []string
}

func NewFake(texts ...string) *FakeTranscriber {
	return &FakeTranscriber{texts: texts}
}

// FailWith makes every later call return err.
func (f *FakeTranscriber) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, f.err)
	}
	if len(f.texts) == 0 {
		return "", nil
	}
	text := f.texts[0]
	f.texts = f.texts[1:]
	return text, nil
}

// Paths lists every artifact passed to Transcribe.
func (f *FakeTranscriber) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}
