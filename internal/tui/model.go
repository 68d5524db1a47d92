package tui

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/syncengine"
	"github.com/julianstephens/habitcraft/internal/tui/components/detail"
	"github.com/julianstephens/habitcraft/internal/tui/components/habitlist"
	"github.com/julianstephens/habitcraft/internal/utils"
)

type statusLevel int

const (
	levelInfo statusLevel = iota
	levelWarn
	levelError
)

type syncDoneMsg struct {
	live int
	err  error
}

// backgroundSyncMsg carries the outcome of one of the engine's timed syncs.
type backgroundSyncMsg syncengine.Result

// Model is the interactive habit board: the habits due on one day, with a
// detail pane for the highlighted habit.
type Model struct {
	ctx         context.Context
	store       *habits.Store
	engine      *syncengine.Engine
	day         string
	all         bool
	keys        KeyMap
	help        help.Model
	list        habitlist.Model
	detail      detail.Model
	status      string
	statusLevel statusLevel
	syncing     bool
	quitting    bool
	width       int
	height      int
}

// NewModel builds a board over store. engine may be nil when remote sync is
// disabled; otherwise the caller starts it and the board follows its
// background syncs.
func NewModel(ctx context.Context, store *habits.Store, engine *syncengine.Engine) Model {
	m := Model{
		ctx:    ctx,
		store:  store,
		engine: engine,
		day:    store.Today(),
		keys:   DefaultKeyMap(),
		help:   help.New(),
		list:   habitlist.New(nil, 0, 0),
		detail: detail.New(0, 0),
	}
	m.refresh()
	return m
}

func (m Model) ShortHelp() []key.Binding {
	lk := m.list.Keys()
	return []key.Binding{lk.Toggle, m.keys.PrevDay, m.keys.NextDay, m.keys.Sync, m.keys.Quit, m.keys.Help}
}

func (m Model) FullHelp() [][]key.Binding {
	lk := m.list.Keys()
	return append(m.keys.FullHelp(), []key.Binding{lk.Toggle, lk.Pause, lk.Delete, lk.Restore})
}

func (m Model) Init() tea.Cmd {
	if m.engine != nil {
		return m.waitForSync()
	}
	return nil
}

// waitForSync blocks until the engine reports its next background sync.
func (m Model) waitForSync() tea.Cmd {
	updates := m.engine.Updates()
	return func() tea.Msg {
		r, ok := <-updates
		if !ok {
			return nil
		}
		return backgroundSyncMsg(r)
	}
}

func (m *Model) syncCmd() tea.Cmd {
	m.syncing = true
	e, ctx := m.engine, m.ctx
	return func() tea.Msg {
		live, err := e.Sync(ctx)
		return syncDoneMsg{live: len(live), err: err}
	}
}

// rows lists what the board shows for the current day.
func (m *Model) rows() ([]models.Habit, error) {
	if m.all {
		return append(m.store.List(), m.store.ListDeleted()...), nil
	}
	return m.store.HabitsDueOn(m.day)
}

// refresh reloads the list and detail pane from the store.
func (m *Model) refresh() {
	hs, err := m.rows()
	if err != nil {
		m.setStatus(levelError, err.Error())
		return
	}
	items := make([]habitlist.Item, len(hs))
	for i := range hs {
		items[i] = habitlist.Item{
			Habit:  hs[i],
			Done:   hs[i].IsCompleted(m.day),
			Streak: habits.Streak(&hs[i], m.store.Today()),
		}
	}
	m.list.SetItems(items)
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	it, ok := m.list.Selected()
	if !ok || it.Habit.IsDeleted() {
		m.detail.SetHabit(nil, models.HabitStats{}, nil)
		return
	}
	stats, err := m.store.StatsFor(it.Habit.ID)
	if err != nil {
		m.detail.SetHabit(nil, models.HabitStats{}, nil)
		return
	}
	days, _ := m.store.Calendar(it.Habit.ID, constants.DefaultCalendarLen)
	h := it.Habit
	m.detail.SetHabit(&h, stats, days)
}

func (m *Model) setStatus(level statusLevel, msg string) {
	m.status = msg
	m.statusLevel = level
}

// report shows the outcome of a store mutation. Persistence failures keep the
// in-memory change, so they are warnings.
func (m *Model) report(err error, ok string) {
	switch {
	case err == nil:
		m.setStatus(levelInfo, ok)
	case errors.IsWarning(err):
		m.setStatus(levelWarn, fmt.Sprintf("%s (not saved: %v)", ok, err))
	default:
		m.setStatus(levelError, err.Error())
	}
	m.refresh()
}

func (m *Model) shiftDay(days int) {
	next, err := utils.AddDays(m.day, days)
	if err != nil {
		return
	}
	if next > m.store.Today() {
		m.setStatus(levelWarn, "Cannot go past today")
		return
	}
	m.day = next
	m.status = ""
	m.refresh()
}

// Day returns the day the board shows.
func (m Model) Day() string { return m.day }

// Status returns the last status line.
func (m Model) Status() string { return m.status }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		listWidth := msg.Width / 2
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(listWidth-h, msg.Height-v-4)
		m.detail.SetSize(msg.Width-listWidth-h, msg.Height-v-4)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.PrevDay):
			m.shiftDay(-1)
			return m, nil
		case key.Matches(msg, m.keys.NextDay):
			m.shiftDay(1)
			return m, nil
		case key.Matches(msg, m.keys.Today):
			m.day = m.store.Today()
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.All):
			m.all = !m.all
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Sync):
			if m.engine == nil {
				m.setStatus(levelWarn, "Remote sync is disabled")
				return m, nil
			}
			if m.syncing {
				return m, nil
			}
			m.setStatus(levelInfo, "Syncing...")
			return m, m.syncCmd()
		}

	case habitlist.ToggleMsg:
		done, err := m.store.ToggleCompletion(m.ctx, msg.ID, m.day)
		verb := "Unmarked"
		if done {
			verb = "Marked"
		}
		m.report(err, fmt.Sprintf("%s %s", verb, m.day))
		return m, nil

	case habitlist.PauseMsg:
		_, err := m.store.SetActive(m.ctx, msg.ID, msg.Active)
		if msg.Active {
			m.report(err, "Resumed")
		} else {
			m.report(err, "Paused")
		}
		return m, nil

	case habitlist.DeleteMsg:
		m.report(m.store.Delete(m.ctx, msg.ID), "Deleted")
		return m, nil

	case habitlist.RestoreMsg:
		_, err := m.store.Restore(m.ctx, msg.ID)
		m.report(err, "Restored")
		return m, nil

	case backgroundSyncMsg:
		switch {
		case msg.Err == nil:
			m.setStatus(levelInfo, fmt.Sprintf("Synced %d habits at %s", msg.Habits,
				msg.At.In(m.store.Location()).Format(constants.TimeFormat)))
		case stderrors.Is(msg.Err, errors.ErrRemoteUnavailable):
			m.setStatus(levelWarn, "Offline, changes are kept on this device")
		case errors.IsWarning(msg.Err):
			m.setStatus(levelWarn, fmt.Sprintf("Synced %d habits (not saved: %v)", msg.Habits, msg.Err))
		default:
			m.setStatus(levelError, "Sync failed: "+msg.Err.Error())
		}
		m.refresh()
		return m, m.waitForSync()

	case syncDoneMsg:
		m.syncing = false
		if msg.err != nil && !errors.IsWarning(msg.err) {
			m.setStatus(levelError, "Sync failed: "+msg.err.Error())
		} else {
			m.setStatus(levelInfo, fmt.Sprintf("Synced %d habits", msg.live))
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	m.refreshDetail()
	return m, cmd
}
