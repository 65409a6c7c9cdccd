package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sessioncal/internal/model"
)

type styles struct {
	Title      lipgloss.Style
	Tab        lipgloss.Style
	ActiveTab  lipgloss.Style
	Weekday    lipgloss.Style
	Gutter     lipgloss.Style
	Day        lipgloss.Style
	Outside    lipgloss.Style
	Today      lipgloss.Style
	Selected   lipgloss.Style
	DropTarget lipgloss.Style
	Dragged    lipgloss.Style
	Handle     lipgloss.Style
	Help       lipgloss.Style
	Status     lipgloss.Style
	Error      lipgloss.Style
	Search     lipgloss.Style
	Event      map[model.Category]lipgloss.Style
}

func defaultStyles() styles {
	event := func(bg string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color(bg))
	}
	return styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		Tab:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ActiveTab:  lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("212")),
		Weekday:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244")),
		Gutter:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Day:        lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Outside:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		Today:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("212")),
		Selected:   lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("81")),
		DropTarget: lipgloss.NewStyle().Background(lipgloss.Color("236")),
		Dragged:    lipgloss.NewStyle().Faint(true).Strikethrough(true),
		Handle:     lipgloss.NewStyle().Foreground(lipgloss.Color("229")),
		Help:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Status:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Error:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		Search:     lipgloss.NewStyle().Foreground(lipgloss.Color("229")),
		Event: map[model.Category]lipgloss.Style{
			model.CategoryDefault: event("60"),
			model.CategoryPrimary: event("25"),
			model.CategorySuccess: event("29"),
			model.CategoryWarning: event("130"),
			model.CategoryDanger:  event("124"),
			model.CategoryMuted:   event("240"),
		},
	}
}

func (s styles) event(c model.Category) lipgloss.Style {
	if st, ok := s.Event[c]; ok {
		return st
	}
	return s.Event[model.CategoryDefault]
}

// fit pads or truncates s to exactly w columns. Labels are plain text, so
// counting runes is enough.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > w {
		if w == 1 {
			return string(r[:1])
		}
		return string(r[:w-1]) + "…"
	}
	return s + strings.Repeat(" ", w-len(r))
}
