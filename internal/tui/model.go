// Package tui provides the Bubble Tea study timer interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/studytrack/internal/gateway"
	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/state"
	statsPkg "github.com/verte-zerg/studytrack/internal/stats"
	"github.com/verte-zerg/studytrack/internal/timer"
)

type mode int

const (
	modeTimer mode = iota
	modeSave
	modeInsights
)

type tickMsg time.Time

type insightsMsg struct {
	text string
	err  error
}

// Options configures the timer UI.
type Options struct {
	DefaultSubject string
	Clock          func() time.Time
	Log            zerolog.Logger
}

// Model implements the Bubble Tea study timer.
type Model struct {
	state          *state.State
	gateway        *gateway.Gateway
	timer          *timer.Timer
	now            func() time.Time
	log            zerolog.Logger
	defaultSubject string

	width  int
	height int

	mode     mode
	form     saveForm
	status   string
	statusOK bool

	spinner  spinner.Model
	loading  bool
	insights string
	viewport viewport.Model
}

var (
	clockStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	matchStyle    = selectedStyle.Underline(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs the timer UI over loaded state. gw may be nil.
func NewModel(st *state.State, gw *gateway.Gateway, opts Options) *Model {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	subject := strings.TrimSpace(opts.DefaultSubject)
	if subject == "" {
		subject = model.DefaultSubject
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	return &Model{
		state:          st,
		gateway:        gw,
		timer:          timer.New(timer.WithClock(now), timer.WithDefaultSubject(subject)),
		now:            now,
		log:            opts.Log,
		defaultSubject: subject,
		spinner:        sp,
		viewport:       viewport.New(0, 0),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

// tick redraws the clock once a second. Elapsed time comes from the timer's
// timestamps, so late ticks only delay the display.
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		return m, nil
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case insightsMsg:
		m.loading = false
		m.showInsights(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSave:
			return m, m.updateSave(msg)
		case modeInsights:
			return m, m.updateInsights(msg)
		default:
			return m, m.updateTimer(msg)
		}
	default:
		return m, nil
	}
}

func (m *Model) updateTimer(msg tea.KeyMsg) tea.Cmd {
	m.status = ""
	key := msg.String()
	switch key {
	case "q", "esc":
		if m.timer.State() == timer.Idle {
			return tea.Quit
		}
		m.setStatus("Stop the timer before quitting (ctrl+c quits anyway).", false)
	case "s", " ", "p":
		if m.timer.State() == timer.Idle {
			if key == "p" {
				return nil
			}
			m.apply(m.timer.Start(), "start")
			return nil
		}
		m.apply(m.timer.Toggle(), "toggle")
	case "x", "enter":
		if m.apply(m.timer.Stop(), "stop") {
			m.form = newSaveForm(m.state.Plan.Labels(), m.defaultSubject)
			m.mode = modeSave
		}
	case "i":
		return m.requestInsights()
	case "r":
		if m.insights != "" {
			m.mode = modeInsights
		}
	}
	return nil
}

func (m *Model) apply(err error, op string) bool {
	if err == nil {
		return true
	}
	if !errors.Is(err, timer.ErrIllegalTransition) {
		m.log.Error().Err(err).Str("op", op).Msg("timer operation failed")
	}
	m.setStatus(err.Error(), false)
	return false
}

func (m *Model) updateSave(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.save()
		return nil
	case tea.KeyEsc:
		if !m.form.confirmDiscard {
			m.form.confirmDiscard = true
			return nil
		}
		if m.apply(m.timer.Discard(), "discard") {
			m.mode = modeTimer
			m.setStatus("Session discarded.", true)
		}
		return nil
	}
	return m.form.update(msg)
}

func (m *Model) save() {
	saved, err := m.timer.Commit(context.Background(), m.state.Sessions, m.form.draft())
	if err != nil {
		m.log.Error().Err(err).Msg("failed to save session")
		m.form.err = err.Error()
		return
	}
	m.log.Info().
		Str("id", saved.ID).
		Str("subject", saved.Subject).
		Int64("duration", saved.Duration).
		Int("concentration", saved.Concentration).
		Msg("session saved")
	m.mode = modeTimer
	m.setStatus(fmt.Sprintf("Saved %s of %s.", statsPkg.FormatDuration(saved.Duration), saved.Subject), true)
}

func (m *Model) requestInsights() tea.Cmd {
	if m.loading {
		m.mode = modeInsights
		return nil
	}
	if m.gateway == nil || !m.gateway.Configured() {
		m.setStatus(gateway.ErrMissingCredential.Error(), false)
		return nil
	}
	m.loading = true
	m.mode = modeInsights
	gw := m.gateway
	sessions := m.state.Sessions.LoadAll()
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		text, err := gw.RequestInsights(context.Background(), sessions)
		return insightsMsg{text: text, err: err}
	})
}

func (m *Model) showInsights(msg insightsMsg) {
	if msg.err != nil {
		m.log.Warn().Err(msg.err).Msg("insights unavailable")
		m.mode = modeTimer
		m.setStatus(msg.err.Error(), false)
		return
	}
	m.insights = msg.text
	m.viewport.SetContent(m.renderInsights())
	m.viewport.GotoTop()
}

func (m *Model) updateInsights(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q", "i", "backspace":
		m.mode = modeTimer
		return nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

func (m *Model) resizeViewport() {
	m.viewport.Width = m.contentWidth()
	h := m.height - 4
	if h < 3 {
		h = 3
	}
	m.viewport.Height = h
	if m.insights != "" {
		m.viewport.SetContent(m.renderInsights())
	}
}

func (m *Model) renderInsights() string {
	width := m.contentWidth()
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if out, err := r.Render(m.insights); err == nil {
			return out
		}
	}
	return wrapText(m.insights, width, clockStyle)
}

func (m *Model) contentWidth() int {
	w := int(float64(m.width) * 0.70)
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) setStatus(text string, ok bool) {
	m.status = text
	m.statusOK = ok
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.mode {
	case modeSave:
		content = m.viewSave()
	case modeInsights:
		content = m.viewInsights()
	default:
		content = m.viewTimer()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) viewTimer() string {
	var label string
	switch m.timer.State() {
	case timer.Running:
		label = runningStyle.Render("● studying")
	case timer.Paused:
		label = pausedStyle.Render("❚❚ paused")
	default:
		label = pendingStyle.Render("ready")
	}
	lines := []string{
		clockStyle.Render(statsPkg.FormatClock(m.timer.Seconds())),
		label,
		"",
	}
	if m.loading {
		lines = append(lines, m.spinner.View()+" Generating insights…", "")
	}
	if m.status != "" {
		style := errorStyle
		if m.statusOK {
			style = okStyle
		}
		lines = append(lines, wrapText(m.status, m.contentWidth(), style), "")
	}
	lines = append(lines, footerStyle.Render(m.timerHelp()))
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) timerHelp() string {
	parts := []string{}
	switch m.timer.State() {
	case timer.Idle:
		parts = append(parts, "s start")
	case timer.Running:
		parts = append(parts, "space pause", "x stop")
	case timer.Paused:
		parts = append(parts, "space resume", "x stop")
	}
	parts = append(parts, "i insights")
	if m.insights != "" && !m.loading {
		parts = append(parts, "r last insights")
	}
	parts = append(parts, "q quit")
	return strings.Join(parts, " · ")
}

func (m *Model) viewSave() string {
	header := clockStyle.Render("Save session  " + statsPkg.FormatDuration(m.timer.Seconds()))
	return lipgloss.NewStyle().Width(m.contentWidth()).Render(header + "\n\n" + m.form.view(m.contentWidth()))
}

func (m *Model) viewInsights() string {
	if m.loading {
		return m.spinner.View() + " Generating insights…\n\n" + footerStyle.Render("esc back to timer")
	}
	return m.viewport.View() + "\n" + footerStyle.Render("↑/↓ scroll · esc back to timer")
}

func (m *Model) renderFooter() string {
	now := m.now()
	sessions := m.state.Sessions.LoadAll()
	today := statsPkg.DailyBuckets(sessions, 1, now)
	segments := []string{}
	if len(today) == 1 {
		segments = append(segments, fmt.Sprintf("Today %.2fh", today[0].Hours))
	}
	segments = append(segments, fmt.Sprintf("MCQs today %d", statsPkg.DailyMCQTotal(m.state.MCQLogs.LoadAll(), now)))
	if last, ok := lastSession(sessions); ok {
		segments = append(segments, "Last session "+humanize.RelTime(last.EndedAt(), now, "ago", "from now"))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func lastSession(sessions []model.StudySession) (model.StudySession, bool) {
	if len(sessions) == 0 {
		return model.StudySession{}, false
	}
	last := sessions[0]
	for _, s := range sessions[1:] {
		if s.EndTime > last.EndTime {
			last = s
		}
	}
	return last, true
}
