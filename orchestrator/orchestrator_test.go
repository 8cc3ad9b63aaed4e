package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"localnotes/audio"
	"localnotes/recorder"
	"localnotes/summarizer"
	"localnotes/transcriber"
)

type notice struct{ title, message string }

type sinks struct {
	mu       sync.Mutex
	notices  []notice
	copied   []string
	saved    []string
	pastes   int
	states   []State
	statuses []string
	ready    []string
	copyFn   func(string) error
}

func (s *sinks) Notify(title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, notice{title, message})
	return nil
}

func (s *sinks) Copy(text string) error {
	s.mu.Lock()
	fn := s.copyFn
	s.copied = append(s.copied, text)
	s.mu.Unlock()
	if fn != nil {
		return fn(text)
	}
	return nil
}

func (s *sinks) Paste() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pastes++
	return nil
}

func (s *sinks) Save(useCase, transcriptText, summary string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, useCase+"|"+transcriptText+"|"+summary)
	return "", nil
}

func (s *sinks) StateChanged(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *sinks) Processing(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *sinks) Segment(string) {}
func (s *sinks) Error(string)   {}

func (s *sinks) SummaryReady(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, summary)
}

func (s *sinks) snapshot() sinks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sinks{
		notices:  append([]notice(nil), s.notices...),
		copied:   append([]string(nil), s.copied...),
		saved:    append([]string(nil), s.saved...),
		pastes:   s.pastes,
		states:   append([]State(nil), s.states...),
		statuses: append([]string(nil), s.statuses...),
		ready:    append([]string(nil), s.ready...),
	}
}

type fakeServer struct {
	mu      sync.Mutex
	ensured []string
	err     error
}

func (f *fakeServer) Start(context.Context) (string, error) { return "http://127.0.0.1:11434", nil }

func (f *fakeServer) EnsureModel(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, name)
	return f.err
}

type harness struct {
	orch   *Orchestrator
	audio  *audio.FakeContext
	trans  Transcriber
	sum    *summarizer.FakeSummarizer
	server *fakeServer
	sinks  *sinks
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, trans Transcriber, opts Options, configure ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		audio:  audio.NewFakeContext(),
		trans:  trans,
		sum:    &summarizer.FakeSummarizer{Summary: "## Notes\n- greeting"},
		server: &fakeServer{},
		sinks:  &sinks{},
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = 5 * time.Millisecond
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = 20 * time.Millisecond
	}
	if opts.SummaryModel == "" {
		opts.SummaryModel = "qwen3:8b"
	}
	deps := Deps{
		Recorder:    recorder.New(h.audio, recorder.Options{Dir: t.TempDir()}),
		Server:      h.server,
		Transcriber: trans,
		Summarizer:  h.sum,
		Store:       h.sinks,
		Clipboard:   h.sinks,
		Paster:      h.sinks,
		Notifier:    h.sinks,
		Indicator:   h.sinks,
	}
	for _, fn := range configure {
		fn(&deps)
	}
	h.orch = New(deps, opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.orch.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.orch.State() == want }, 2*time.Second, time.Millisecond,
		"state %s never reached, stuck at %s", want, h.orch.State())
}

func (h *harness) push(t *testing.T, samples int) {
	t.Helper()
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i)))
	}
	require.True(t, h.audio.Last().Push(pcm))
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		to    State
		ok    bool
	}{
		{StateIdle, EventStart, StateRecording, true},
		{StateRecording, EventStop, StateProcessing, true},
		{StateProcessing, EventDone, StateIdle, true},
		{StateIdle, EventStop, StateIdle, false},
		{StateIdle, EventDone, StateIdle, false},
		{StateRecording, EventStart, StateRecording, false},
		{StateProcessing, EventStart, StateProcessing, false},
		{StateProcessing, EventStop, StateProcessing, false},
	}
	for _, tc := range tests {
		got, err := Transition(tc.from, tc.event)
		require.Equal(t, tc.to, got)
		if tc.ok {
			require.NoError(t, err)
		} else {
			require.Error(t, err)
		}
	}
	_, err := Transition("bogus", EventStart)
	require.Error(t, err)
}

func TestMailboxLastWriterWins(t *testing.T) {
	var m Mailbox
	_, ok := m.Take()
	require.False(t, ok)

	m.Post(ActionStart)
	m.Post(ActionStop)
	a, ok := m.Take()
	require.True(t, ok)
	require.Equal(t, ActionStop, a)

	_, ok = m.Take()
	require.False(t, ok)
}

func TestSpinnerFrameWraps(t *testing.T) {
	require.Equal(t, SpinnerFrame(0), SpinnerFrame(len(spinnerFrames)))
	require.NotEqual(t, SpinnerFrame(0), SpinnerFrame(1))
}

func TestEndToEndIncrementalTranscript(t *testing.T) {
	trans := transcriber.NewFake("hello world", "testing one two three")
	h := newHarness(t, trans, Options{UseCase: "Stand-up", AutoPaste: true})

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)

	h.push(t, 1600)
	require.Eventually(t, func() bool { return len(trans.Paths()) == 1 }, 2*time.Second, time.Millisecond)
	require.Equal(t, "hello world", h.orch.Transcript())

	h.push(t, 1600)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	paths := trans.Paths()
	require.Len(t, paths, 2)
	for _, p := range paths {
		_, err := os.Stat(p)
		require.ErrorIs(t, err, os.ErrNotExist, "artifact %s not removed", p)
	}

	calls := h.sum.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "hello world testing one two three", calls[0].Transcript)
	require.Equal(t, "Stand-up", calls[0].Request.UseCase)
	require.Equal(t, "qwen3:8b", calls[0].Request.Model)
	require.Equal(t, "http://127.0.0.1:11434", calls[0].Request.Host)
	require.Equal(t, []string{"qwen3:8b"}, h.server.ensured)

	got := h.sinks.snapshot()
	require.Equal(t, []string{"## Notes\n- greeting"}, got.copied)
	require.Equal(t, []string{"Stand-up|hello world testing one two three|## Notes\n- greeting"}, got.saved)
	require.Equal(t, []notice{{NoticeTitle, CopiedMessage}}, got.notices)
	require.Equal(t, []string{"## Notes\n- greeting"}, got.ready)
	require.Equal(t, 1, got.pastes)
	require.Equal(t, []State{StateRecording, StateProcessing, StateIdle}, got.states)
	require.Equal(t, "## Notes\n- greeting", h.orch.LastSummary())
}

func TestSeveralIntervalsThenTail(t *testing.T) {
	trans := transcriber.NewFake("hello world", "testing one", "two three")
	h := newHarness(t, trans, Options{})

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)

	h.push(t, 1600)
	require.Eventually(t, func() bool { return len(trans.Paths()) == 1 }, 2*time.Second, time.Millisecond)
	h.push(t, 1600)
	require.Eventually(t, func() bool { return len(trans.Paths()) == 2 }, 2*time.Second, time.Millisecond)
	require.Equal(t, "hello world testing one", h.orch.Transcript())

	h.push(t, 1600)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	require.Len(t, trans.Paths(), 3)
	calls := h.sum.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "hello world testing one two three", calls[0].Transcript)
	require.Equal(t, []string{"## Notes\n- greeting"}, h.sinks.snapshot().ready)
}

func TestSummaryProgressShownWhileSummarizing(t *testing.T) {
	o := New(Deps{}, Options{})

	o.setStep(StepSummarizing)
	require.Equal(t, SpinnerFrame(0)+" Summarizing", o.processingStatus())

	o.SummaryProgress(42)
	require.Equal(t, SpinnerFrame(0)+" Summarizing (42 chars)", o.processingStatus())

	o.setStep(StepSaving)
	require.Equal(t, SpinnerFrame(0)+" Saving", o.processingStatus())
}

func TestNoSpeechSkipsSummary(t *testing.T) {
	trans := transcriber.NewFake()
	h := newHarness(t, trans, Options{})

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.push(t, 800)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	require.Empty(t, h.sum.Calls())
	require.Empty(t, h.server.ensured)
	got := h.sinks.snapshot()
	require.Empty(t, got.copied)
	require.Empty(t, got.saved)
	require.Equal(t, []notice{{NoticeTitle, NoSpeechMessage}}, got.notices)
	require.Empty(t, got.ready)
}

func TestNoAudioIsReportedAsError(t *testing.T) {
	h := newHarness(t, transcriber.NewFake("unused"), Options{FlushInterval: time.Hour})

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	got := h.sinks.snapshot()
	require.Len(t, got.notices, 1)
	require.Equal(t, ErrorNoticeTitle, got.notices[0].title)
	require.Contains(t, got.notices[0].message, recorder.ErrNoAudio.Error())
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), Options{})

	h.orch.Post(ActionStop)
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, StateIdle, h.orch.State())
	require.Nil(t, h.audio.Last())
	require.Empty(t, h.sinks.snapshot().states)
}

func TestStartWhileRecordingIsNoop(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), Options{FlushInterval: time.Hour})

	h.orch.Post(ActionStart)
	h.waitState(t, StateRecording)
	first := h.audio.Last()

	h.orch.Post(ActionStart)
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, StateRecording, h.orch.State())
	require.Same(t, first, h.audio.Last())
}

type blockingSummarizer struct {
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (b *blockingSummarizer) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *blockingSummarizer) Summarize(ctx context.Context, text string, _ summarizer.Request) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	select {
	case <-b.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "done", nil
}

func TestToggleDuringProcessingIsIgnored(t *testing.T) {
	block := &blockingSummarizer{release: make(chan struct{})}
	h := newHarness(t, transcriber.NewFake("some words"), Options{FlushInterval: time.Hour},
		func(d *Deps) { d.Summarizer = block })

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.push(t, 800)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	first := h.audio.Last()

	h.orch.Post(ActionToggle)
	require.Eventually(t, func() bool { return len(h.sinks.snapshot().statuses) > 3 }, 2*time.Second, time.Millisecond)
	require.Equal(t, StateProcessing, h.orch.State())

	close(block.release)
	h.waitState(t, StateIdle)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateIdle, h.orch.State())
	require.Same(t, first, h.audio.Last())
	require.Equal(t, 1, block.count())

	for _, s := range h.sinks.snapshot().statuses {
		require.Contains(t, []string{string(StepSavingAudio), string(StepTranscribing), string(StepSummarizing)}, s[len(SpinnerFrame(0))+1:])
	}
}

type gatedTranscriber struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedTranscriber) Transcribe(context.Context, string) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n == 1 {
		close(g.entered)
		<-g.gate
		return "first interval", nil
	}
	return "tail words", nil
}

func TestStopWaitsForInFlightInterval(t *testing.T) {
	g := &gatedTranscriber{entered: make(chan struct{}), gate: make(chan struct{})}
	h := newHarness(t, g, Options{})

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.push(t, 800)
	<-g.entered

	h.push(t, 800)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	time.Sleep(20 * time.Millisecond)
	close(g.gate)
	h.waitState(t, StateIdle)

	calls := h.sum.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "first interval tail words", calls[0].Transcript)
}

func TestStartFailureStaysIdle(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), Options{})
	h.audio.OpenErr = errors.New("microphone permission denied")

	h.orch.Post(ActionToggle)
	require.Eventually(t, func() bool { return len(h.sinks.snapshot().notices) == 1 }, 2*time.Second, time.Millisecond)

	require.Equal(t, StateIdle, h.orch.State())
	n := h.sinks.snapshot().notices[0]
	require.Equal(t, ErrorNoticeTitle, n.title)
	require.Contains(t, n.message, "microphone permission denied")

	h.audio.OpenErr = nil
	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
}

func TestPipelineErrorCleansUp(t *testing.T) {
	trans := transcriber.NewFake("words")
	h := newHarness(t, trans, Options{FlushInterval: time.Hour})
	h.sum.Err = errors.New("model crashed")

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.push(t, 800)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	got := h.sinks.snapshot()
	require.Empty(t, got.copied)
	require.Len(t, got.notices, 1)
	require.Equal(t, ErrorNoticeTitle, got.notices[0].title)
	require.Contains(t, got.notices[0].message, "model crashed")

	for _, p := range trans.Paths() {
		require.NoFileExists(t, p)
	}
}

func TestPipelinePanicIsRecovered(t *testing.T) {
	h := newHarness(t, transcriber.NewFake("words"), Options{FlushInterval: time.Hour})
	h.sinks.copyFn = func(string) error { panic("clipboard exploded") }

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.push(t, 800)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	got := h.sinks.snapshot()
	require.Len(t, got.notices, 1)
	require.Equal(t, ErrorNoticeTitle, got.notices[0].title)
	require.Contains(t, got.notices[0].message, "clipboard exploded")
	require.Empty(t, h.orch.LastSummary())
}

func TestModelFetchFailureReported(t *testing.T) {
	h := newHarness(t, transcriber.NewFake("words"), Options{FlushInterval: time.Hour})
	h.server.err = errors.New("pulling model qwen3:8b: exit code 1")

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.push(t, 800)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	require.Empty(t, h.sum.Calls())
	got := h.sinks.snapshot()
	require.Len(t, got.notices, 1)
	require.Contains(t, got.notices[0].message, "exit code 1")
}

func TestUseCaseCapturedAtStop(t *testing.T) {
	h := newHarness(t, transcriber.NewFake("words"), Options{FlushInterval: time.Hour})
	require.Equal(t, "Meeting", h.orch.UseCase())

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.orch.SetUseCase("Lecture")
	h.push(t, 800)
	h.orch.Post(ActionToggle)
	h.waitState(t, StateProcessing)
	h.waitState(t, StateIdle)

	calls := h.sum.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "Lecture", calls[0].Request.UseCase)
}

func TestShutdownWhileRecordingStopsCapture(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), Options{FlushInterval: time.Hour})

	h.orch.Post(ActionToggle)
	h.waitState(t, StateRecording)
	h.push(t, 800)

	h.cancel()
	require.ErrorIs(t, <-h.done, context.Canceled)
	h.done <- nil // satisfy cleanup

	require.True(t, h.audio.Last().Closed())
	require.Empty(t, h.sum.Calls())
}
