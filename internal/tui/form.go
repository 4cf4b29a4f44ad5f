package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/studytrack/internal/model"
	"github.com/verte-zerg/studytrack/internal/plan"
	"github.com/verte-zerg/studytrack/internal/timer"
)

const maxSuggestions = 5

type formField int

const (
	fieldSubject formField = iota
	fieldConcentration
	fieldNotes
	fieldCount
)

// saveForm collects the subject, rating and notes of a finished run.
type saveForm struct {
	subject       textinput.Model
	notes         textinput.Model
	concentration int
	focus         formField

	labels      []string
	suggestions []string
	selected    int

	confirmDiscard bool
	err            string
}

func newSaveForm(labels []string, defaultSubject string) saveForm {
	subject := textinput.New()
	subject.Placeholder = defaultSubject
	subject.CharLimit = 80
	subject.Prompt = ""

	notes := textinput.New()
	notes.Placeholder = "optional"
	notes.CharLimit = 500
	notes.Prompt = ""

	f := saveForm{
		subject:       subject,
		notes:         notes,
		concentration: 3,
		labels:        labels,
	}
	f.subject.Focus()
	f.refreshSuggestions()
	return f
}

func (f *saveForm) draft() timer.Draft {
	return timer.Draft{
		Subject:       f.subject.Value(),
		Concentration: f.concentration,
		Notes:         f.notes.Value(),
	}
}

func (f *saveForm) setFocus(field formField) tea.Cmd {
	f.focus = (field + fieldCount) % fieldCount
	f.subject.Blur()
	f.notes.Blur()
	switch f.focus {
	case fieldSubject:
		return f.subject.Focus()
	case fieldNotes:
		return f.notes.Focus()
	default:
		return nil
	}
}

func (f *saveForm) refreshSuggestions() {
	f.suggestions = plan.Suggest(f.labels, f.subject.Value(), maxSuggestions)
	if f.selected >= len(f.suggestions) {
		f.selected = 0
	}
}

// acceptSuggestion copies the highlighted plan label into the subject.
func (f *saveForm) acceptSuggestion() bool {
	if len(f.suggestions) == 0 {
		return false
	}
	choice := f.suggestions[f.selected]
	if strings.EqualFold(choice, strings.TrimSpace(f.subject.Value())) {
		return false
	}
	f.subject.SetValue(choice)
	f.subject.CursorEnd()
	f.refreshSuggestions()
	return true
}

func (f *saveForm) setConcentration(v int) {
	if v < model.MinConcentration {
		v = model.MinConcentration
	}
	if v > model.MaxConcentration {
		v = model.MaxConcentration
	}
	f.concentration = v
}

// update handles keys other than save and discard.
func (f *saveForm) update(msg tea.KeyMsg) tea.Cmd {
	f.confirmDiscard = false
	f.err = ""
	switch msg.Type {
	case tea.KeyTab:
		if f.focus == fieldSubject && f.acceptSuggestion() {
			return nil
		}
		return f.setFocus(f.focus + 1)
	case tea.KeyShiftTab:
		return f.setFocus(f.focus - 1)
	}

	switch f.focus {
	case fieldSubject:
		switch msg.Type {
		case tea.KeyUp:
			if len(f.suggestions) > 0 {
				f.selected = (f.selected - 1 + len(f.suggestions)) % len(f.suggestions)
			}
			return nil
		case tea.KeyDown:
			if len(f.suggestions) > 0 {
				f.selected = (f.selected + 1) % len(f.suggestions)
			}
			return nil
		}
		var cmd tea.Cmd
		f.subject, cmd = f.subject.Update(msg)
		f.refreshSuggestions()
		return cmd
	case fieldConcentration:
		switch msg.Type {
		case tea.KeyLeft, tea.KeyDown:
			f.setConcentration(f.concentration - 1)
		case tea.KeyRight, tea.KeyUp:
			f.setConcentration(f.concentration + 1)
		case tea.KeyRunes:
			if len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '5' {
				f.setConcentration(int(msg.Runes[0] - '0'))
			}
		}
		return nil
	case fieldNotes:
		var cmd tea.Cmd
		f.notes, cmd = f.notes.Update(msg)
		return cmd
	}
	return nil
}

func (f *saveForm) view(width int) string {
	var b strings.Builder
	b.WriteString(labelFor("Subject", f.focus == fieldSubject))
	b.WriteString(f.subject.View())
	b.WriteString("\n")
	if f.focus == fieldSubject && len(f.suggestions) > 0 {
		for i, s := range f.suggestions {
			marker := "  "
			base := pendingStyle
			if i == f.selected {
				marker = "> "
				base = selectedStyle
			}
			b.WriteString("    " + marker)
			b.WriteString(renderStyledRunes(highlightMatch(s, f.subject.Value(), base)))
			b.WriteString("\n")
		}
	}
	b.WriteString(labelFor("Focus", f.focus == fieldConcentration))
	b.WriteString(ratingView(f.concentration))
	b.WriteString("\n")
	b.WriteString(labelFor("Notes", f.focus == fieldNotes))
	b.WriteString(f.notes.View())
	b.WriteString("\n\n")
	switch {
	case f.err != "":
		b.WriteString(wrapText(f.err, width, errorStyle))
	case f.confirmDiscard:
		b.WriteString(wrapText("Press esc again to discard this session.", width, errorStyle))
	default:
		b.WriteString(wrapText("tab next field · ↑/↓ pick subject · 1-5 focus · enter save · esc discard", width, footerStyle))
	}
	return b.String()
}

func labelFor(name string, focused bool) string {
	label := fmt.Sprintf("%-9s", name)
	if focused {
		return selectedStyle.Render("> " + label)
	}
	return pendingStyle.Render("  " + label)
}

func ratingView(v int) string {
	var b strings.Builder
	for i := model.MinConcentration; i <= model.MaxConcentration; i++ {
		if i <= v {
			b.WriteString(selectedStyle.Render("●"))
		} else {
			b.WriteString(pendingStyle.Render("○"))
		}
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf("%d/5", v))
	return b.String()
}
