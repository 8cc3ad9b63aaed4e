package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localnotes/hotkey"
	"localnotes/orchestrator"
)

type stateMsg struct{ State orchestrator.State }
type statusMsg struct{ Text string }
type segmentMsg struct{ Text string }
type summaryMsg struct{ Text string }
type errorMsg struct{ Text string }
type useCaseMsg struct{ Label string }
type tickMsg time.Time

type tuiModel struct {
	state         orchestrator.State
	frame         int
	width, height int
	startedAt     time.Time
	elapsed       time.Duration

	status     string
	useCase    string
	deviceLine string
	modelLine  string
	hotkey     string
	segments   []string
	summary    string
	errText    string

	onToggle  func()
	onUseCase func() string
}

const (
	paletteIdle = iota
	paletteRec
	paletteBusy
)

type palette struct {
	fg [16]lipgloss.Style
	bg [16][16]lipgloss.Style
}

var palettes [3]palette

func init() {
	colors := [3][]string{
		paletteIdle: {"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"},
		paletteRec:  {"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"},
		paletteBusy: {"", "230", "229", "228", "221", "214", "178", "136", "94", "58", "236", "236", "236", "236", "255", "249"},
	}
	for p, cs := range colors {
		for i, fg := range cs {
			if fg == "" {
				continue
			}
			palettes[p].fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
			for j, bg := range cs {
				if bg != "" {
					palettes[p].bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
				}
			}
		}
	}
}

func newTUIModel(useCase, deviceLine, modelLine, key string, onToggle func(), onUseCase func() string) tuiModel {
	return tuiModel{
		state:      orchestrator.StateIdle,
		useCase:    useCase,
		deviceLine: deviceLine,
		modelLine:  modelLine,
		hotkey:     hotkey.Label(key),
		onToggle:   onToggle,
		onUseCase:  onUseCase,
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "r":
			if m.onToggle != nil {
				m.onToggle()
			}
		case "u":
			if m.onUseCase != nil && m.state != orchestrator.StateProcessing {
				m.useCase = m.onUseCase()
			}
		}

	case tickMsg:
		m.frame++
		if m.state == orchestrator.StateRecording {
			m.elapsed = time.Time(msg).Sub(m.startedAt)
		}
		return m, tuiTick()

	case stateMsg:
		m.state = msg.State
		m.status = ""
		if msg.State == orchestrator.StateRecording {
			m.startedAt = time.Now()
			m.elapsed = 0
			m.segments = nil
			m.summary = ""
			m.errText = ""
		}

	case statusMsg:
		m.status = msg.Text

	case segmentMsg:
		m.segments = append(m.segments, msg.Text)

	case summaryMsg:
		m.summary = msg.Text

	case errorMsg:
		m.errText = msg.Text

	case useCaseMsg:
		m.useCase = msg.Label
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case orchestrator.StateRecording:
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds()))
	case orchestrator.StateProcessing:
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true).
			Render(m.status)
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("○ STANDBY")
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 45
	eye := renderEye(m.frame, m.state)

	gray := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoLines := []string{m.statusLine()}
	if m.useCase != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("use case: "+m.useCase+" (u)"))
	}
	if m.modelLine != "" {
		infoLines = append(infoLines, gray.Render(m.modelLine))
	}
	if m.deviceLine != "" {
		infoLines = append(infoLines, gray.Render(m.deviceLine))
	}
	if m.errText != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("⚠ "+m.errText))
	}
	infoLines = append(infoLines, "")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := helpStyle.Bold(true)
	infoLines = append(infoLines, boldStyle.Render(m.hotkey)+helpStyle.Render(" or space to record"))
	infoLines = append(infoLines, helpStyle.Render("localnotes "+version))

	for _, line := range infoLines {
		eye += line + "\n"
	}
	eyeLines := strings.Split(eye, "\n")

	logWidth := m.width - eyeWidth - 1
	if logWidth < 20 {
		logWidth = 20
	}
	wrapWidth := logWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var right strings.Builder
	title := lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	switch {
	case m.summary != "":
		right.WriteString(title.Render("Summary") + " " + lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("[✓ copied]") + "\n\n")
		text := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
		for _, para := range strings.Split(m.summary, "\n") {
			for _, line := range wrapText(para, wrapWidth) {
				right.WriteString(text.Render(line) + "\n")
			}
		}
	case len(m.segments) > 0:
		right.WriteString(title.Render(fmt.Sprintf("Transcript (%d segments)", len(m.segments))) + "\n\n")
		text := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		for _, line := range wrapText(strings.Join(m.segments, " "), wrapWidth) {
			right.WriteString(text.Render(line) + "\n")
		}
	default:
		right.WriteString(gray.Render("No notes yet"))
	}

	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	eyePadded := make([]string, m.height)
	for i := range eyePadded {
		if i < len(eyeLines) {
			eyePadded[i] = eyeLines[i]
		} else {
			eyePadded[i] = strings.Repeat(" ", eyeWidth-1)
		}
	}

	eyePanel := lipgloss.NewStyle().
		Width(eyeWidth - 1).
		Height(m.height).
		Render(strings.Join(eyePadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, eyePanel, logPanel)
}

func renderEye(frame int, state orchestrator.State) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	var breathe float64
	switch state {
	case orchestrator.StateRecording:
		breathe = math.Sin(float64(frame)*0.10)*0.03 + 0.02
	case orchestrator.StateProcessing:
		breathe = math.Sin(float64(frame)*0.25)*0.05 - 0.03
	default:
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}

	rings := []ring{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4}, // high reactivity
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}

	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := r.radius + breathe*r.breatheAmt*20
				if radius > 10.0 {
					radius = 10.0
				}
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// Glass reflections
	type spot struct {
		ox, oy float64
		radius float64
		color  int
	}
	dSide := 9.0
	dSide2 := 7.2
	dTop := 10.0
	dTop2 := 8.2
	spots := []spot{
		{-dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{-dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -dTop, 0.8, 14},
		{0, -dTop2, 0.6, 15},
		{dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range spots {
				dx := px - s.ox
				dy := py - s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}

	p := palettes[paletteIdle]
	switch state {
	case orchestrator.StateRecording:
		p = palettes[paletteRec]
	case orchestrator.StateProcessing:
		p = palettes[paletteBusy]
	}
	styles, bgStyles := &p.fg, &p.bg

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			topY := cy * 2
			botY := cy*2 + 1
			top := 0
			bot := 0
			if topY < pixH {
				top = pixels[topY][cx]
			}
			if botY < pixH {
				bot = pixels[botY][cx]
			}
			if top == 0 && bot == 0 {
				result.WriteString(" ")
			} else if top == bot {
				result.WriteString(styles[top].Render("█"))
			} else if top != 0 && bot == 0 {
				result.WriteString(styles[top].Render("▀"))
			} else if top == 0 && bot != 0 {
				result.WriteString(styles[bot].Render("▄"))
			} else {
				result.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiIndicator forwards orchestrator updates to the running program.
type tuiIndicator struct {
	p *tea.Program
}

func (t tuiIndicator) StateChanged(s orchestrator.State) { t.p.Send(stateMsg{State: s}) }
func (t tuiIndicator) Processing(status string)         { t.p.Send(statusMsg{Text: status}) }
func (t tuiIndicator) Segment(text string)              { t.p.Send(segmentMsg{Text: text}) }
func (t tuiIndicator) Error(msg string)                 { t.p.Send(errorMsg{Text: msg}) }
func (t tuiIndicator) SummaryReady(summary string)      { t.p.Send(summaryMsg{Text: summary}) }
