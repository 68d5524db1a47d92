package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitcraft/internal/constants"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		docStyle.Render(m.list.View()),
		docStyle.Render(m.detail.View()),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		body,
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewHeader() string {
	label := m.day
	if m.day == m.store.Today() {
		label += " (today)"
	}
	if m.all {
		label += " | all habits"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render(constants.AppName),
		dayStyle.Render(label),
	)
}

func (m Model) viewStatus() string {
	if m.status == "" {
		return ""
	}
	switch m.statusLevel {
	case levelWarn:
		return warningStyle.Render(fmt.Sprintf("⚠ %s", m.status))
	case levelError:
		return dangerStyle.Render(fmt.Sprintf("✗ %s", m.status))
	default:
		return statusStyle.Render(m.status)
	}
}
