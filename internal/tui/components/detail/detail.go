package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitcraft/internal/models"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(12)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// Model shows the statistics and recent calendar of one habit.
type Model struct {
	viewport viewport.Model
	habit    *models.Habit
	stats    models.HabitStats
	days     []models.CalendarDay
	width    int
	height   int
}

func New(width, height int) Model {
	return Model{viewport: viewport.New(width, height)}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

// SetHabit shows h; a nil habit clears the pane.
func (m *Model) SetHabit(h *models.Habit, stats models.HabitStats, days []models.CalendarDay) {
	m.habit = h
	m.stats = stats
	m.days = days
	m.Render()
}

func (m *Model) Render() {
	if m.habit == nil {
		m.viewport.SetContent(mutedStyle.Render("No habit selected."))
		return
	}
	h := m.habit
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(string(h.Color)))

	var b strings.Builder
	b.WriteString(accent.Render("●") + " " + titleStyle.Render(h.Title) + "\n")
	if h.Description != "" {
		b.WriteString(h.Description + "\n")
	}
	if h.Motivation != "" {
		b.WriteString(mutedStyle.Render(h.Motivation) + "\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%d days\n", labelStyle.Render("Streak"), m.stats.Streak)
	fmt.Fprintf(&b, "%s%d%%\n", labelStyle.Render("Rate"), m.stats.CompletionRate)
	fmt.Fprintf(&b, "%s%d of %d days\n", labelStyle.Render("Completed"), m.stats.TotalCompletions, m.stats.TotalDays)
	if m.stats.LastCompletion != "" {
		fmt.Fprintf(&b, "%s%s\n", labelStyle.Render("Last done"), m.stats.LastCompletion)
	}

	if len(m.days) > 0 {
		b.WriteString("\n")
		for i, d := range m.days {
			if i > 0 && i%7 == 0 {
				b.WriteString("\n")
			}
			b.WriteString(cell(d, accent) + " ")
		}
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

func cell(d models.CalendarDay, accent lipgloss.Style) string {
	switch {
	case d.Completed:
		return accent.Render("■")
	case d.Due:
		return "□"
	default:
		return mutedStyle.Render("·")
	}
}
