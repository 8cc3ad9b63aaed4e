// Package orchestrator drives recording, incremental transcription and
// summarization from a single tick goroutine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"localnotes/log"
	"localnotes/metrics"
	"localnotes/recorder"
	"localnotes/summarizer"
	"localnotes/transcript"
)

const (
	DefaultTickInterval  = 150 * time.Millisecond
	DefaultFlushInterval = 10 * time.Second

	NoticeTitle      = "Local Notes"
	ErrorNoticeTitle = "Local Notes - Error"
	NoSpeechMessage  = "No speech detected."
	CopiedMessage    = "Summary copied to clipboard!"
)

// ErrProcessing wraps unexpected pipeline failures such as panics.
var ErrProcessing = errors.New("processing failed")

type Recorder interface {
	Start() error
	Flush() (*recorder.Artifact, error)
	Stop() (*recorder.Artifact, error)
	DeviceName() string
}

type ModelServer interface {
	Start(ctx context.Context) (string, error)
	EnsureModel(ctx context.Context, name string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type Store interface {
	Save(useCase, transcript, summary string) (string, error)
}

type Clipboard interface {
	Copy(text string) error
}

type Paster interface {
	Paste() error
}

type Notifier interface {
	Notify(title, message string) error
}

// Indicator receives UI updates. Calls come from the tick goroutine except
// Segment, which comes from the incremental loop, and SummaryReady, which
// comes from the processing worker once the summary is on the clipboard.
type Indicator interface {
	StateChanged(State)
	Processing(status string)
	Segment(text string)
	Error(msg string)
	SummaryReady(summary string)
}

type noopIndicator struct{}

func (noopIndicator) StateChanged(State)  {}
func (noopIndicator) Processing(string)   {}
func (noopIndicator) Segment(string)      {}
func (noopIndicator) Error(string)        {}
func (noopIndicator) SummaryReady(string) {}

type noopSink struct{}

func (noopSink) Save(string, string, string) (string, error) { return "", nil }
func (noopSink) Copy(string) error                           { return nil }
func (noopSink) Paste() error                                { return nil }
func (noopSink) Notify(string, string) error                 { return nil }

type Deps struct {
	Recorder    Recorder
	Server      ModelServer
	Transcriber Transcriber
	Summarizer  summarizer.Summarizer
	Store       Store
	Clipboard   Clipboard
	Paster      Paster
	Notifier    Notifier
	Indicator   Indicator
	Metrics     *metrics.Metrics
}

type Options struct {
	TickInterval  time.Duration
	FlushInterval time.Duration
	SummaryModel  string
	Language      string
	UseCase       string
	AutoPaste     bool
}

type Orchestrator struct {
	deps Deps
	opts Options

	mailbox Mailbox

	mu          sync.RWMutex
	state       State
	useCase     string
	lastSummary string

	// Owned by the tick goroutine.
	session     string
	startedAt   time.Time
	loopCancel  context.CancelFunc
	loopDone    chan struct{}
	workerDone  chan struct{}
	frame       int
	acc         transcript.Accumulator
	artifactsMu sync.Mutex
	artifacts   []*recorder.Artifact

	stepMu   sync.Mutex
	step     Step
	streamed atomic.Int64
}

func New(deps Deps, opts Options) *Orchestrator {
	if deps.Indicator == nil {
		deps.Indicator = noopIndicator{}
	}
	if deps.Store == nil {
		deps.Store = noopSink{}
	}
	if deps.Clipboard == nil {
		deps.Clipboard = noopSink{}
	}
	if deps.Paster == nil {
		deps.Paster = noopSink{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopSink{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.UseCase == "" {
		opts.UseCase = "Meeting"
	}
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		state:   StateIdle,
		useCase: opts.UseCase,
	}
}

// Post queues an action for the next tick. It never blocks and may be called
// from any goroutine.
func (o *Orchestrator) Post(a Action) {
	o.mailbox.Post(a)
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) SetUseCase(label string) {
	o.mu.Lock()
	o.useCase = label
	o.mu.Unlock()
	log.Infof("use case set to %s", label)
}

func (o *Orchestrator) UseCase() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.useCase
}

// LastSummary returns the most recent summary, or "".
func (o *Orchestrator) LastSummary() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastSummary
}

// Transcript returns the text accumulated for the current or last recording.
func (o *Orchestrator) Transcript() string {
	return o.acc.String()
}

// Run owns all state transitions until ctx is done. On return any recording
// has been stopped and any processing has finished.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()

	o.deps.Metrics.SetState(string(StateIdle), allStates...)
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return ctx.Err()
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	if o.State() == StateProcessing {
		select {
		case <-o.workerDone:
			o.apply(EventDone)
		default:
			o.frame++
			o.deps.Indicator.Processing(o.processingStatus())
		}
	}

	a, ok := o.mailbox.Take()
	if !ok {
		return
	}
	switch a {
	case ActionToggle:
		switch o.State() {
		case StateIdle:
			o.startRecording(ctx)
		case StateRecording:
			o.stopRecording(ctx)
		default:
			log.Info("toggle ignored while processing")
		}
	case ActionStart:
		o.startRecording(ctx)
	case ActionStop:
		o.stopRecording(ctx)
	}
}

// apply moves the state machine. Invalid events are logged and dropped.
func (o *Orchestrator) apply(event Event) bool {
	o.mu.Lock()
	from := o.state
	next, err := Transition(from, event)
	if err != nil {
		o.mu.Unlock()
		log.Warnf("%v", err)
		return false
	}
	o.state = next
	o.mu.Unlock()

	log.StateChange(o.session, string(from), string(next))
	o.deps.Metrics.SetState(string(next), allStates...)
	o.deps.Indicator.StateChanged(next)
	return true
}

func (o *Orchestrator) startRecording(ctx context.Context) {
	if _, err := Transition(o.State(), EventStart); err != nil {
		log.Warnf("start ignored: %v", err)
		return
	}

	o.acc.Reset()
	o.artifactsMu.Lock()
	o.artifacts = nil
	o.artifactsMu.Unlock()

	if err := o.deps.Recorder.Start(); err != nil {
		log.Errorf("start recording: %v", err)
		o.deps.Indicator.Error(err.Error())
		o.deps.Notifier.Notify(ErrorNoticeTitle, err.Error())
		return
	}

	o.session = uuid.NewString()
	o.startedAt = time.Now()
	log.SessionStart(o.session, o.UseCase(), o.deps.Recorder.DeviceName())
	o.deps.Metrics.RecordingStarted()
	o.apply(EventStart)

	loopCtx, cancel := context.WithCancel(ctx)
	o.loopCancel = cancel
	o.loopDone = make(chan struct{})
	go o.incrementalLoop(loopCtx, o.loopDone)
}

func (o *Orchestrator) stopRecording(ctx context.Context) {
	if !o.apply(EventStop) {
		return
	}
	o.loopCancel()
	o.deps.Metrics.RecordingStopped(time.Since(o.startedAt))

	o.frame = 0
	o.setStep(StepSavingAudio)
	o.workerDone = make(chan struct{})
	go o.process(ctx, job{
		session:  o.session,
		useCase:  o.UseCase(),
		loopDone: o.loopDone,
		done:     o.workerDone,
	})
}

// shutdown stops an active recording and waits for processing to finish.
func (o *Orchestrator) shutdown() {
	switch o.State() {
	case StateRecording:
		o.loopCancel()
		<-o.loopDone
		if tail, err := o.deps.Recorder.Stop(); err == nil {
			o.addArtifact(tail)
		}
		o.removeArtifacts()
	case StateProcessing:
		<-o.workerDone
		o.apply(EventDone)
	}
}

// incrementalLoop drains and transcribes audio every FlushInterval until
// ctx is cancelled. A transcription already in flight finishes and is
// appended before the loop exits.
func (o *Orchestrator) incrementalLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(o.opts.FlushInterval)
	defer timer.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		artifact, err := o.deps.Recorder.Flush()
		if err != nil {
			log.Warnf("flush: %v", err)
		}
		if artifact != nil {
			seq++
			o.addArtifact(artifact)
			o.deps.Metrics.Interval(artifact.Duration())

			text, err := o.transcribe(context.WithoutCancel(ctx), artifact.Path)
			if err != nil {
				log.Warnf("interval %d: %v", seq, err)
			} else if o.acc.Append(text) {
				o.deps.Indicator.Segment(text)
			}
			log.Interval(o.session, seq, artifact.Duration().Seconds(), len(text))
		}
		timer.Reset(o.opts.FlushInterval)
	}
}

func (o *Orchestrator) transcribe(ctx context.Context, path string) (string, error) {
	start := time.Now()
	text, err := o.deps.Transcriber.Transcribe(ctx, path)
	o.deps.Metrics.Transcription(time.Since(start), err)
	return text, err
}

func (o *Orchestrator) addArtifact(a *recorder.Artifact) {
	if a == nil {
		return
	}
	o.artifactsMu.Lock()
	o.artifacts = append(o.artifacts, a)
	o.artifactsMu.Unlock()
}

func (o *Orchestrator) removeArtifacts() {
	o.artifactsMu.Lock()
	artifacts := o.artifacts
	o.artifacts = nil
	o.artifactsMu.Unlock()

	for _, a := range artifacts {
		if err := a.Remove(); err != nil {
			log.Warnf("removing %s: %v", a.Path, err)
		}
	}
}

func (o *Orchestrator) setStep(s Step) {
	o.stepMu.Lock()
	o.step = s
	o.stepMu.Unlock()
	o.streamed.Store(0)
}

// SummaryProgress records how many characters of the summary have streamed
// in so far. It is shown next to the summarizing step.
func (o *Orchestrator) SummaryProgress(chars int) {
	o.streamed.Store(int64(chars))
}

func (o *Orchestrator) processingStatus() string {
	step := o.currentStep()
	status := SpinnerFrame(o.frame) + " " + string(step)
	if n := o.streamed.Load(); step == StepSummarizing && n > 0 {
		status += fmt.Sprintf(" (%d chars)", n)
	}
	return status
}

func (o *Orchestrator) currentStep() Step {
	o.stepMu.Lock()
	defer o.stepMu.Unlock()
	return o.step
}
