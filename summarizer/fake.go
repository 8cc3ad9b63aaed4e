package summarizer

import (
	"context"
	"fmt"
	"sync"
)

type FakeSummarizer struct {
	Summary string
	Err     error

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	Transcript string
	Request    Request
}

func (f *FakeSummarizer) Summarize(_ context.Context, transcript string, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Transcript: transcript, Request: req})
	if f.Err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarization, f.Err)
	}
	return f.Summary, nil
}

func (f *FakeSummarizer) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
