package orchestrator

import (
	"context"
	"fmt"
	"time"

	"localnotes/log"
	"localnotes/summarizer"
)

type job struct {
	session  string
	useCase  string
	loopDone <-chan struct{}
	done     chan<- struct{}
}

// process runs one Recording -> Processing cycle. Whatever happens, artifacts
// are removed and done is closed so the tick can return to Idle.
func (o *Orchestrator) process(ctx context.Context, j job) {
	defer close(j.done)
	defer o.removeArtifacts()

	start := time.Now()
	outcome, err := o.runPipeline(ctx, j)
	o.deps.Metrics.Pipeline(outcome)
	if err != nil {
		log.Errorf("processing %s: %v", j.session, err)
		o.deps.Indicator.Error(err.Error())
		o.deps.Notifier.Notify(ErrorNoticeTitle, err.Error())
		return
	}
	log.Infof("processing %s finished in %s (%s)", j.session, time.Since(start).Round(time.Millisecond), outcome)
}

func (o *Orchestrator) runPipeline(ctx context.Context, j job) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = "error", fmt.Errorf("%w: %v", ErrProcessing, r)
		}
	}()

	o.setStep(StepSavingAudio)
	<-j.loopDone
	tail, err := o.deps.Recorder.Stop()
	if err != nil {
		return "error", err
	}
	o.addArtifact(tail)

	if tail.Samples > 0 {
		o.setStep(StepTranscribing)
		text, err := o.transcribe(ctx, tail.Path)
		if err != nil {
			return "error", err
		}
		if o.acc.Append(text) {
			o.deps.Indicator.Segment(text)
		}
	}

	full := o.acc.String()
	log.SessionEnd(j.session, o.acc.Len(), len(full))
	if full == "" {
		o.deps.Notifier.Notify(NoticeTitle, NoSpeechMessage)
		return "no_speech", nil
	}
	log.TranscriptionText(full)

	o.setStep(StepSummarizing)
	host, err := o.deps.Server.Start(ctx)
	if err != nil {
		return "error", err
	}
	if err := o.deps.Server.EnsureModel(ctx, o.opts.SummaryModel); err != nil {
		return "error", err
	}
	sumStart := time.Now()
	summary, err := o.deps.Summarizer.Summarize(ctx, full, summarizer.Request{
		Model:    o.opts.SummaryModel,
		UseCase:  j.useCase,
		Language: o.opts.Language,
		Host:     host,
	})
	if err != nil {
		return "error", err
	}
	o.deps.Metrics.Summary(time.Since(sumStart))

	o.setStep(StepSaving)
	path, err := o.deps.Store.Save(j.useCase, full, summary)
	if err != nil {
		return "error", err
	}
	if path != "" {
		log.Infof("notes saved to %s", path)
	}

	o.setStep(StepCopying)
	if err := o.deps.Clipboard.Copy(summary); err != nil {
		return "error", fmt.Errorf("copying summary: %w", err)
	}
	o.mu.Lock()
	o.lastSummary = summary
	o.mu.Unlock()

	o.deps.Indicator.SummaryReady(summary)
	o.deps.Notifier.Notify(NoticeTitle, CopiedMessage)
	if o.opts.AutoPaste {
		if err := o.deps.Paster.Paste(); err != nil {
			log.Warnf("paste: %v", err)
		}
	}
	return "ok", nil
}
