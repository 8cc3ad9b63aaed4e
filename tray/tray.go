// Package tray shows the menu-bar icon and menu and mirrors the
// orchestrator state in its title.
package tray

import (
	"sync"
	"time"

	"fyne.io/systray"

	"localnotes/orchestrator"
)

const (
	tooltipIdle    = "Local Notes"
	recordingTitle = "🔴"
	errorHold      = 10 * time.Second
)

type Callbacks struct {
	Toggle        func()
	SelectUseCase func(label string)
	CopyLast      func()
	Quit          func()
}

// Tray is safe to call before the menu is ready; updates made earlier are
// applied once it is.
type Tray struct {
	cb       Callbacks
	useCases []string

	mu       sync.Mutex
	ready    bool
	state    orchestrator.State
	status   string
	selected string

	mRecord   *systray.MenuItem
	mCopy     *systray.MenuItem
	mUseCase  *systray.MenuItem
	caseItems []*systray.MenuItem

	quit     chan struct{}
	quitOnce sync.Once
}

func New(useCases []string, selected string, cb Callbacks) *Tray {
	return &Tray{
		cb:       cb,
		useCases: useCases,
		selected: selected,
		state:    orchestrator.StateIdle,
		quit:     make(chan struct{}),
	}
}

// Start shows the tray icon. The returned channel closes when the user picks
// Quit or the tray exits.
func (t *Tray) Start() <-chan struct{} {
	start, _ := systray.RunWithExternalLoop(t.onReady, t.onExit)
	runLoop(start)
	return t.quit
}

func (t *Tray) Stop() {
	systray.Quit()
}

func (t *Tray) StateChanged(s orchestrator.State) {
	t.mu.Lock()
	t.state = s
	t.status = ""
	t.mu.Unlock()
	t.render()
}

func (t *Tray) Processing(status string) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
	t.render()
}

func (t *Tray) Segment(string) {}

func (t *Tray) Error(msg string) {
	t.mu.Lock()
	ready := t.ready
	t.mu.Unlock()
	if !ready {
		return
	}
	systray.SetIcon(iconError)
	systray.SetTooltip(tooltipIdle + " - " + msg)
	time.AfterFunc(errorHold, t.render)
}

// SummaryReady enables "Copy Last Summary".
func (t *Tray) SummaryReady(string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mCopy != nil {
		t.mCopy.Enable()
	}
}

// Title returns the menu-bar title for a state and processing status.
func Title(state orchestrator.State, status string) string {
	switch state {
	case orchestrator.StateRecording:
		return recordingTitle
	case orchestrator.StateProcessing:
		return status
	}
	return ""
}

// RecordLabel returns the label of the record menu item.
func RecordLabel(state orchestrator.State) string {
	switch state {
	case orchestrator.StateRecording:
		return "Stop Recording"
	case orchestrator.StateProcessing:
		return "Processing..."
	}
	return "Start Recording"
}

func (t *Tray) render() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}

	systray.SetTitle(Title(t.state, t.status))
	t.mRecord.SetTitle(RecordLabel(t.state))
	switch t.state {
	case orchestrator.StateRecording:
		systray.SetIcon(iconRecording)
		systray.SetTooltip(tooltipIdle + " - recording")
		t.mRecord.Enable()
		t.mUseCase.Enable()
	case orchestrator.StateProcessing:
		systray.SetIcon(iconProcessing)
		systray.SetTooltip(tooltipIdle + " - " + t.status)
		t.mRecord.Disable()
		t.mUseCase.Disable()
	default:
		systray.SetTemplateIcon(iconIdleHi, iconIdle)
		systray.SetTooltip(tooltipIdle)
		t.mRecord.Enable()
		t.mUseCase.Enable()
	}
}

func (t *Tray) onReady() {
	systray.SetTemplateIcon(iconIdleHi, iconIdle)
	systray.SetTooltip(tooltipIdle)

	mRecord := systray.AddMenuItem(RecordLabel(orchestrator.StateIdle), "Start or stop recording")
	mUseCase := systray.AddMenuItem("Use Case", "Select what is being recorded")
	caseItems := make([]*systray.MenuItem, len(t.useCases))
	t.mu.Lock()
	for i, label := range t.useCases {
		caseItems[i] = mUseCase.AddSubMenuItemCheckbox(label, label, label == t.selected)
	}
	t.mu.Unlock()
	mCopy := systray.AddMenuItem("Copy Last Summary", "Copy the last summary to the clipboard")
	mCopy.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit Local Notes")

	t.mu.Lock()
	t.mRecord, t.mCopy, t.mUseCase, t.caseItems = mRecord, mCopy, mUseCase, caseItems
	t.ready = true
	t.mu.Unlock()
	t.render()

	go t.clicks(mRecord.ClickedCh, t.cb.Toggle)
	go t.clicks(mCopy.ClickedCh, t.cb.CopyLast)
	go t.clicks(mQuit.ClickedCh, func() {
		if t.cb.Quit != nil {
			t.cb.Quit()
		}
		t.closeQuit()
	})
	for i, item := range caseItems {
		label := t.useCases[i]
		go t.clicks(item.ClickedCh, func() { t.selectUseCase(label) })
	}
}

func (t *Tray) clicks(ch <-chan struct{}, fn func()) {
	for {
		select {
		case <-t.quit:
			return
		case <-ch:
			if fn != nil {
				fn()
			}
		}
	}
}

func (t *Tray) selectUseCase(label string) {
	t.SetUseCase(label)
	if t.cb.SelectUseCase != nil {
		t.cb.SelectUseCase(label)
	}
}

// SetUseCase moves the checkmark without invoking SelectUseCase.
func (t *Tray) SetUseCase(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selected = label
	for i, item := range t.caseItems {
		if t.useCases[i] == label {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (t *Tray) onExit() {
	t.closeQuit()
}

func (t *Tray) closeQuit() {
	t.quitOnce.Do(func() { close(t.quit) })
}
