// Package statsui provides the Bubble Tea stats dashboard.
package statsui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/state"
	"github.com/verte-zerg/studytrack/internal/stats"
)

const (
	tabOverview = iota
	tabSessions
	tabMCQ
)

const (
	inputSubject = iota
	inputFocus
	inputFrom
	inputTo
	inputWindow
)

var windowSteps = []int{7, 14, 30, 60, 90}

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	warnStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
)

// Model implements the Bubble Tea stats dashboard over a snapshot of the stores.
type Model struct {
	snapshot state.Snapshot
	cfg      model.StatsConfig
	now      func() time.Time

	report stats.Report

	tabs      []string
	activeTab int
	viewports []viewport.Model
	sessions  table.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a stats UI model. now may be nil.
func NewModel(snapshot state.Snapshot, cfg model.StatsConfig, now func() time.Time) *Model {
	if now == nil {
		now = time.Now
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = stats.DefaultWindowDays
	}
	m := &Model{
		snapshot: snapshot,
		cfg:      cfg,
		now:      now,
		tabs:     []string{"Overview", "Sessions", "MCQ"},
	}
	m.initInputs()
	m.initViewports()
	m.sessions = buildSessionTable(nil, time.Local, 0, 1)
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.activeTab == tabSessions {
			m.sessions.Focus()
		} else {
			m.sessions.Blur()
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=", "+":
			m.cfg.WindowDays = nextWindow(m.cfg.WindowDays)
			m.refreshReport()
			return m, nil
		case "-":
			m.cfg.WindowDays = prevWindow(m.cfg.WindowDays)
			m.refreshReport()
			return m, nil
		case "s":
			m.cfg.Subject = nextSubject(m.report.AllSubjects, m.cfg.Subject)
			m.refreshReport()
			return m, nil
		case "c":
			m.cfg = model.StatsConfig{WindowDays: m.cfg.WindowDays}
			m.refreshReport()
			return m, nil
		case "/":
			return m.startFilter()
		case "g", "home":
			if m.activeTab == tabSessions {
				m.sessions.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSessions {
				m.sessions.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabSessions {
				var cmd tea.Cmd
				m.sessions, cmd = m.sessions.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Subject: "),
		newFilterInput("Focus (1-5): "),
		newFilterInput("From (YYYY-MM-DD): "),
		newFilterInput("To (YYYY-MM-DD): "),
		newFilterInput("Window (days): "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[inputSubject].SetValue(m.cfg.Subject)
	focus := ""
	if m.cfg.Concentration > 0 {
		focus = strconv.Itoa(m.cfg.Concentration)
	}
	m.filterInputs[inputFocus].SetValue(focus)
	m.filterInputs[inputFrom].SetValue(m.cfg.StartDate)
	m.filterInputs[inputTo].SetValue(m.cfg.EndDate)
	m.filterInputs[inputWindow].SetValue(strconv.Itoa(m.cfg.WindowDays))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.sessions.SetWidth(m.width)
	m.sessions.SetHeight(maxInt(1, vpHeight-1))
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	m.activeTab = next
	if m.activeTab == tabSessions {
		m.sessions.Focus()
	} else {
		m.sessions.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	return padLines(m.renderTabs(), m.width) + "\n" + padLines(m.renderFilterSummary(), m.width)
}

func (m *Model) renderFilterSummary() string {
	subject := orAny(m.cfg.Subject)
	focus := "any"
	if m.cfg.Concentration > 0 {
		focus = strconv.Itoa(m.cfg.Concentration)
	}
	summary := fmt.Sprintf("Filter: subject=%s  focus=%s  from=%s  to=%s  window=%dd",
		subject, focus, orAny(m.cfg.StartDate), orAny(m.cfg.EndDate), m.cfg.WindowDays)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func orAny(v string) string {
	if strings.TrimSpace(v) == "" {
		return "any"
	}
	return v
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	return headerStyle.Render("Nav: left/right  Scroll: up/down  Window: -/=  Subject: s  Clear: c  Filter: /  Quit: q")
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filter (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if len(m.report.AllSubjects) > 0 {
		lines = append(lines, "", headerStyle.Render("Subjects: "+strings.Join(m.report.AllSubjects, ", ")))
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabSessions {
		if len(m.report.Sessions) == 0 {
			return fitLines("No sessions match the filter.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.sessions.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshReport() {
	m.report = stats.BuildReport(m.snapshot.Sessions, m.snapshot.MCQLogs, m.cfg, m.now())
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.sessions = buildSessionTable(m.report.Sessions, m.report.Filter.Location, width, bodyHeight)
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, width))
	m.viewports[tabMCQ].SetContent(renderMCQ(m.report, m.snapshot.MCQLogs, m.now(), width))
}

func renderOverview(r stats.Report, width int) string {
	if r.Totals.SessionsCount == 0 {
		return "No sessions found."
	}
	var buf bytes.Buffer
	buf.WriteString(renderSummaryCards(r, width))
	buf.WriteString("\n\n")
	if err := stats.RenderDaily(&buf, r.Daily, width, true); err != nil {
		return fmt.Sprintf("Failed to render daily chart: %v", err)
	}
	if err := stats.RenderSubjects(&buf, r.Subjects); err != nil {
		return fmt.Sprintf("Failed to render subjects: %v", err)
	}
	if len(r.LowFocus) > 0 {
		names := make([]string, len(r.LowFocus))
		for i, s := range r.LowFocus {
			names[i] = fmt.Sprintf("%s (%.1f)", s.Subject, s.AvgConcentration)
		}
		buf.WriteString(warnStyle.Render("Lowest focus: " + strings.Join(names, ", ")))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderSummaryCards(r stats.Report, width int) string {
	cards := []string{
		metricCard("Sessions", strconv.Itoa(r.Totals.SessionsCount)),
		metricCard("Total hours", fmt.Sprintf("%.2f", r.Totals.TotalHours)),
		metricCard("Avg focus", fmt.Sprintf("%.1f / 5", r.Totals.AvgConcentration)),
		metricCard("MCQs today", strconv.Itoa(r.MCQToday)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderMCQ(r stats.Report, logs []model.MCQLog, now time.Time, width int) string {
	var buf bytes.Buffer
	if err := stats.RenderMCQ(&buf, r.MCQToday, r.MCQTotal, r.MCQDaily, width, true); err != nil {
		return fmt.Sprintf("Failed to render MCQ chart: %v", err)
	}
	if len(logs) == 0 {
		buf.WriteString("No verified MCQ batches yet. Use `studytrack verify IMAGE` to log one.")
		return buf.String()
	}
	buf.WriteString("Recent batches\n")
	limit := minInt(len(logs), 10)
	for _, l := range logs[:limit] {
		line := fmt.Sprintf("%-14s %4d  %s", humanize.RelTime(l.LoggedAt(), now, "ago", "from now"), l.Count, strings.Join(strings.Fields(l.Feedback), " "))
		buf.WriteString(stats.Truncate(line, maxInt(20, width)))
		buf.WriteString("\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildSessionTable(sessions []model.StudySession, loc *time.Location, width, height int) table.Model {
	if loc == nil {
		loc = time.Local
	}
	headers := stats.SessionHeaders()
	widths := []int{16, 20, 9, 5, 40}
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		columns[i] = table.Column{Title: h, Width: widths[i]}
	}
	rows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, table.Row(stats.SessionRow(s, loc)))
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(sessionTableStyles())
	return t
}

func sessionTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	subject := strings.TrimSpace(m.filterInputs[inputSubject].Value())

	focus := 0
	if v := strings.TrimSpace(m.filterInputs[inputFocus].Value()); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < model.MinConcentration || parsed > model.MaxConcentration {
			return fmt.Errorf("invalid focus (use 1-5 or leave empty)")
		}
		focus = parsed
	}

	from := strings.TrimSpace(m.filterInputs[inputFrom].Value())
	to := strings.TrimSpace(m.filterInputs[inputTo].Value())
	if !stats.ValidDate(from) {
		return fmt.Errorf("invalid from date (expected YYYY-MM-DD)")
	}
	if !stats.ValidDate(to) {
		return fmt.Errorf("invalid to date (expected YYYY-MM-DD)")
	}
	if from != "" && to != "" && from > to {
		return fmt.Errorf("from date is after to date")
	}

	window := stats.DefaultWindowDays
	if v := strings.TrimSpace(m.filterInputs[inputWindow].Value()); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid window (use integer >= 1)")
		}
		window = parsed
	}

	m.cfg = model.StatsConfig{
		Subject:       subject,
		Concentration: focus,
		StartDate:     from,
		EndDate:       to,
		WindowDays:    window,
	}
	return nil
}

func nextWindow(n int) int {
	for _, step := range windowSteps {
		if step > n {
			return step
		}
	}
	return windowSteps[len(windowSteps)-1]
}

func prevWindow(n int) int {
	for i := len(windowSteps) - 1; i >= 0; i-- {
		if windowSteps[i] < n {
			return windowSteps[i]
		}
	}
	return windowSteps[0]
}

// nextSubject cycles through subjects, then back to no subject filter.
func nextSubject(subjects []string, current string) string {
	if len(subjects) == 0 {
		return ""
	}
	if current == "" {
		return subjects[0]
	}
	for i, s := range subjects {
		if s == current {
			if i+1 < len(subjects) {
				return subjects[i+1]
			}
			return ""
		}
	}
	return subjects[0]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return stats.Truncate(s, width)
}
