package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"localnotes/beep"
	"localnotes/orchestrator"
	"localnotes/tray"
)

// fanout delivers orchestrator updates to every registered view.
type fanout struct {
	mu   sync.RWMutex
	all  []orchestrator.Indicator
	tray *tray.Tray
	tui  *tea.Program
}

func (f *fanout) add(ind orchestrator.Indicator) {
	f.mu.Lock()
	f.all = append(f.all, ind)
	f.mu.Unlock()
}

func (f *fanout) setTray(tr *tray.Tray) {
	f.mu.Lock()
	f.tray = tr
	f.all = append(f.all, tr)
	f.mu.Unlock()
}

func (f *fanout) setTUI(p *tea.Program) {
	f.mu.Lock()
	f.tui = p
	f.all = append(f.all, tuiIndicator{p: p})
	f.mu.Unlock()
}

func (f *fanout) each(fn func(orchestrator.Indicator)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ind := range f.all {
		fn(ind)
	}
}

func (f *fanout) StateChanged(s orchestrator.State) {
	f.each(func(i orchestrator.Indicator) { i.StateChanged(s) })
}

func (f *fanout) Processing(status string) {
	f.each(func(i orchestrator.Indicator) { i.Processing(status) })
}

func (f *fanout) Segment(text string) {
	f.each(func(i orchestrator.Indicator) { i.Segment(text) })
}

func (f *fanout) Error(msg string) {
	f.each(func(i orchestrator.Indicator) { i.Error(msg) })
}

func (f *fanout) SummaryReady(summary string) {
	f.each(func(i orchestrator.Indicator) { i.SummaryReady(summary) })
}

// useCase mirrors a use-case change made in one view into the others.
func (f *fanout) useCase(label string) {
	f.mu.RLock()
	tr, p := f.tray, f.tui
	f.mu.RUnlock()
	if tr != nil {
		tr.SetUseCase(label)
	}
	if p != nil {
		p.Send(useCaseMsg{Label: label})
	}
}

// cueIndicator plays audio cues for recording start and stop, finished
// summaries and errors.
type cueIndicator struct{}

func (cueIndicator) StateChanged(s orchestrator.State) {
	switch s {
	case orchestrator.StateRecording:
		beep.Play(beep.CueStart)
	case orchestrator.StateProcessing:
		beep.Play(beep.CueStop)
	}
}

func (cueIndicator) Processing(string)   {}
func (cueIndicator) Segment(string)      {}
func (cueIndicator) Error(string)        { beep.Play(beep.CueError) }
func (cueIndicator) SummaryReady(string) { beep.Play(beep.CueDone) }
