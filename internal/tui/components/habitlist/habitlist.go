package habitlist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitcraft/internal/models"
)

type ToggleMsg struct {
	ID string
}

type PauseMsg struct {
	ID     string
	Active bool
}

type DeleteMsg struct {
	ID string
}

type RestoreMsg struct {
	ID string
}

type Item struct {
	Habit  models.Habit
	Done   bool
	Streak int
}

func (i Item) Title() string {
	switch {
	case i.Habit.IsDeleted():
		return "[DELETED] " + i.Habit.Title
	case !i.Habit.IsActive:
		return "[PAUSED] " + i.Habit.Title
	case i.Done:
		return "✓ " + i.Habit.Title
	default:
		return "○ " + i.Habit.Title
	}
}

func (i Item) Description() string {
	if i.Habit.IsDeleted() {
		return "can restore with 'r'"
	}
	if i.Streak > 0 {
		return fmt.Sprintf("%s | streak %d", i.Habit.Cadence, i.Streak)
	}
	return string(i.Habit.Cadence)
}

func (i Item) FilterValue() string { return i.Habit.Title }

type KeyMap struct {
	Toggle  key.Binding
	Pause   key.Binding
	Delete  key.Binding
	Restore key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("x", " ", "enter"),
			key.WithHelp("x/space", "toggle done"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/resume"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Restore: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restore"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(items []Item, width, height int) Model {
	l := list.New(toListItems(items), list.NewDefaultDelegate(), width, height)
	l.Title = "Habits"
	l.SetShowTitle(false)
	l.SetShowHelp(false) // help is rendered by the board
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Pause, keys.Delete, keys.Restore}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Pause, keys.Delete, keys.Restore}
	}

	return Model{list: l, keys: keys}
}

func toListItems(items []Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// SetItems replaces the rows and keeps the cursor in range.
func (m *Model) SetItems(items []Item) {
	idx := m.list.Index()
	m.list.SetItems(toListItems(items))
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
}

// Selected returns the highlighted row.
func (m Model) Selected() (Item, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i, ok
}

func (m Model) Keys() KeyMap { return m.keys }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		i, selected := m.Selected()
		switch {
		case !selected:
		case key.Matches(msg, m.keys.Toggle):
			if !i.Habit.IsDeleted() {
				return m, func() tea.Msg { return ToggleMsg{ID: i.Habit.ID} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Pause):
			if !i.Habit.IsDeleted() {
				return m, func() tea.Msg { return PauseMsg{ID: i.Habit.ID, Active: !i.Habit.IsActive} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Delete):
			if !i.Habit.IsDeleted() {
				return m, func() tea.Msg { return DeleteMsg{ID: i.Habit.ID} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Restore):
			if i.Habit.IsDeleted() {
				return m, func() tea.Msg { return RestoreMsg{ID: i.Habit.ID} }
			}
			return m, nil
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return "\n  Nothing due.\n  Add habits with 'habitcraft habit add'."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
