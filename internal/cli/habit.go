package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/utils"
)

type HabitCmd struct {
	Add      HabitAddCmd      `cmd:"" help:"Add a new habit."`
	List     HabitListCmd     `cmd:"" help:"List habits."`
	Edit     HabitEditCmd     `cmd:"" help:"Edit an existing habit."`
	Done     HabitDoneCmd     `cmd:"" help:"Toggle a habit's completion for a day."`
	Delete   HabitDeleteCmd   `cmd:"" help:"Delete a habit (soft delete)."`
	Restore  HabitRestoreCmd  `cmd:"" help:"Restore a deleted habit."`
	Pause    HabitPauseCmd    `cmd:"" help:"Pause a habit without losing its history."`
	Resume   HabitResumeCmd   `cmd:"" help:"Resume a paused habit."`
	Today    HabitTodayCmd    `cmd:"" help:"Show the habits due today."`
	Stats    HabitStatsCmd    `cmd:"" help:"Show statistics for one habit."`
	Calendar HabitCalendarCmd `cmd:"" help:"Show a habit's completion calendar."`
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type HabitAddCmd struct {
	Title       string `arg:"" optional:"" help:"Habit title. Omit to fill in a form."`
	Description string `help:"What the habit involves."`
	Motivation  string `help:"Why the habit matters."`
	Color       string `help:"Accent color (green, blue, orange, purple, red)." default:"green"`
	Cadence     string `help:"Which days the habit is due." enum:"daily,weekdays,weekly,weekends,custom" default:"daily"`
	Days        string `help:"Comma-separated weekdays for a custom cadence (e.g. mon,wed,fri)."`
	Goal        int    `help:"Optional target number of completions."`
}

func (c *HabitAddCmd) input(ctx *Context) (models.HabitInput, error) {
	if strings.TrimSpace(c.Title) == "" {
		if !ctx.Interactive {
			return models.HabitInput{}, errors.NewValidation("title", "must not be empty")
		}
		fm := &HabitForm{}
		if err := NewHabitForm(fm).Run(); err != nil {
			return models.HabitInput{}, err
		}
		return fm.Input()
	}

	color, err := ParseColor(c.Color)
	if err != nil {
		return models.HabitInput{}, err
	}
	in := models.HabitInput{
		Title:       c.Title,
		Description: c.Description,
		Motivation:  c.Motivation,
		Color:       color,
		Cadence:     constants.Cadence(c.Cadence),
		Goal:        c.Goal,
	}
	if c.Days != "" {
		if in.Cadence != constants.CadenceCustom {
			return models.HabitInput{}, errors.NewValidation("days", "only valid with --cadence=custom")
		}
		if in.Weekdays, err = ParseWeekdays(c.Days); err != nil {
			return models.HabitInput{}, err
		}
	}
	return in, nil
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	in, err := c.input(ctx)
	if err != nil {
		return err
	}
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}
	h, err := s.Create(ctx.Ctx(), in)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	ctx.Printf("%s Added habit: %s %s (%s)\n", SuccessStyle.Render("✓"), Swatch(h.Color), h.Title, shortID(h.ID))
	return nil
}

type HabitListCmd struct {
	Deleted bool `help:"Show deleted habits instead."`
	JSON    bool `help:"Print the habits as JSON."`
}

func (c *HabitListCmd) Run(ctx *Context) error {
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}

	list := s.List()
	if c.Deleted {
		list = s.ListDeleted()
	}

	if c.JSON {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	today := s.Today()
	for i := range list {
		h := &list[i]
		status := ""
		switch {
		case h.IsDeleted():
			status = MutedStyle.Render(" [DELETED]")
		case !h.IsActive:
			status = MutedStyle.Render(" [PAUSED]")
		}
		ctx.Printf("%s %s  %s%s\n", Swatch(h.Color), MutedStyle.Render(shortID(h.ID)), h.Title, status)
		ctx.Printf("    %s · streak %d\n", FormatCadence(h.Cadence, h.Weekdays), habits.Streak(h, today))
	}
	return nil
}

type HabitEditCmd struct {
	Habit       string  `arg:"" help:"Habit id, id prefix, or title."`
	Title       *string `help:"New title."`
	Description *string `help:"New description."`
	Motivation  *string `help:"New motivation."`
	Color       *string `help:"New accent color."`
	Cadence     *string `help:"New cadence (daily, weekdays, weekly, weekends, custom)."`
	Days        *string `help:"Weekdays for a custom cadence."`
	Goal        *int    `help:"New completion goal."`
}

func (c *HabitEditCmd) patch() (models.HabitPatch, error) {
	p := models.HabitPatch{
		Title:       c.Title,
		Description: c.Description,
		Motivation:  c.Motivation,
		Goal:        c.Goal,
	}
	if c.Color != nil {
		color, err := ParseColor(*c.Color)
		if err != nil {
			return p, err
		}
		p.Color = &color
	}
	if c.Cadence != nil {
		cadence := constants.Cadence(*c.Cadence)
		p.Cadence = &cadence
	}
	if c.Days != nil {
		wds, err := ParseWeekdays(*c.Days)
		if err != nil {
			return p, err
		}
		p.Weekdays = wds
		if p.Cadence == nil {
			custom := constants.CadenceCustom
			p.Cadence = &custom
		}
	}
	return p, nil
}

func (c *HabitEditCmd) Run(ctx *Context) error {
	p, err := c.patch()
	if err != nil {
		return err
	}
	if p.IsEmpty() {
		return errors.NewValidation("", "nothing to change; pass at least one flag")
	}
	s, h, err := ctx.ResolveHabit(ctx.Ctx(), c.Habit)
	if err != nil {
		return err
	}
	updated, err := s.Update(ctx.Ctx(), h.ID, p)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	ctx.Printf("%s Updated habit: %s\n", SuccessStyle.Render("✓"), updated.Title)
	return nil
}

type HabitDoneCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix, or title."`
	Date  string `help:"Day in YYYY-MM-DD format, or 'yesterday' (default: today)."`
}

func (c *HabitDoneCmd) Run(ctx *Context) error {
	s, h, err := ctx.ResolveHabit(ctx.Ctx(), c.Habit)
	if err != nil {
		return err
	}

	day := c.Date
	switch {
	case strings.EqualFold(day, "yesterday"):
		if day, err = utils.AddDays(s.Today(), -1); err != nil {
			return err
		}
	case day != "":
		if day, err = parseDay(day, s.Location()); err != nil {
			return err
		}
	}

	done, err := s.ToggleCompletion(ctx.Ctx(), h.ID, day)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	if day == "" {
		day = s.Today()
	}

	updated, err := s.Get(h.ID)
	if err != nil {
		return err
	}
	if done {
		ctx.Printf("%s Marked %q for %s (streak %d)\n", SuccessStyle.Render("✓"), h.Title, day, habits.Streak(&updated, s.Today()))
	} else {
		ctx.Printf("Unmarked %q for %s (streak %d)\n", h.Title, day, habits.Streak(&updated, s.Today()))
	}
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix, or title."`
	Yes   bool   `short:"y" help:"Skip the confirmation."`
}

func (c *HabitDeleteCmd) Run(ctx *Context) error {
	s, h, err := ctx.ResolveHabit(ctx.Ctx(), c.Habit)
	if err != nil {
		return err
	}
	if !c.Yes {
		ok, err := ctx.Confirm(fmt.Sprintf("Delete %q?", h.Title), "It can be restored with 'habit restore'.", true)
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Delete cancelled.")
			return nil
		}
	}
	if err := ctx.Soft(s.Delete(ctx.Ctx(), h.ID)); err != nil {
		return err
	}
	ctx.Printf("%s Deleted habit: %s\n", SuccessStyle.Render("✓"), h.Title)
	return nil
}

type HabitRestoreCmd struct {
	Habit string `arg:"" help:"Deleted habit id, id prefix, or title."`
}

func (c *HabitRestoreCmd) Run(ctx *Context) error {
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}
	h, err := s.FindDeleted(c.Habit)
	if err != nil {
		return err
	}
	restored, err := s.Restore(ctx.Ctx(), h.ID)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	ctx.Printf("%s Restored habit: %s\n", SuccessStyle.Render("✓"), restored.Title)
	return nil
}

type HabitPauseCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix, or title."`
}

func (c *HabitPauseCmd) Run(ctx *Context) error {
	return setActive(ctx, c.Habit, false)
}

type HabitResumeCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix, or title."`
}

func (c *HabitResumeCmd) Run(ctx *Context) error {
	return setActive(ctx, c.Habit, true)
}

func setActive(ctx *Context, ref string, active bool) error {
	s, h, err := ctx.ResolveHabit(ctx.Ctx(), ref)
	if err != nil {
		return err
	}
	updated, err := s.SetActive(ctx.Ctx(), h.ID, active)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	verb := "Paused"
	if active {
		verb = "Resumed"
	}
	ctx.Printf("%s %s habit: %s\n", SuccessStyle.Render("✓"), verb, updated.Title)
	return nil
}

type HabitTodayCmd struct {
	Date string `help:"Show another day (YYYY-MM-DD)."`
}

func (c *HabitTodayCmd) Run(ctx *Context) error {
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}
	day := s.Today()
	if c.Date != "" {
		if day, err = parseDay(c.Date, s.Location()); err != nil {
			return err
		}
	}
	due, err := s.HabitsDueOn(day)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		ctx.Printf("No habits due on %s.\n", day)
		return nil
	}

	ctx.Println(TitleStyle.Render(fmt.Sprintf("Habits for %s", day)))
	ctx.Println()
	recorded := 0
	for i := range due {
		h := &due[i]
		done := h.IsCompleted(day)
		if done {
			recorded++
		}
		ctx.Printf("%s %s %s %s\n", Check(done), Swatch(h.Color), h.Title, MutedStyle.Render(fmt.Sprintf("streak %d", habits.Streak(h, s.Today()))))
	}
	ctx.Printf("\nRecorded: %d/%d\n", recorded, len(due))
	return nil
}

type HabitStatsCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix, or title."`
	JSON  bool   `help:"Print the statistics as JSON."`
}

func (c *HabitStatsCmd) Run(ctx *Context) error {
	s, h, err := ctx.ResolveHabit(ctx.Ctx(), c.Habit)
	if err != nil {
		return err
	}
	st, err := s.StatsFor(h.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		return json.NewEncoder(ctx.Out).Encode(st)
	}

	last := st.LastCompletion
	if last == "" {
		last = "never"
	}
	ctx.Println(TitleStyle.Render(h.Title))
	if h.Motivation != "" {
		ctx.Println(MutedStyle.Render(h.Motivation))
	}
	ctx.Println()
	ctx.Printf("%s%s\n", LabelStyle.Render("Cadence"), FormatCadence(h.Cadence, h.Weekdays))
	ctx.Printf("%s%d days\n", LabelStyle.Render("Current streak"), st.Streak)
	ctx.Printf("%s%d%%\n", LabelStyle.Render("Completion rate"), st.CompletionRate)
	ctx.Printf("%s%d of %d days\n", LabelStyle.Render("Completions"), st.TotalCompletions, st.TotalDays)
	ctx.Printf("%s%s\n", LabelStyle.Render("Last completed"), last)
	ctx.Printf("%s%t\n", LabelStyle.Render("Done today"), st.CompletedToday)
	if h.Goal > 0 {
		ctx.Printf("%s%d/%d\n", LabelStyle.Render("Goal"), st.TotalCompletions, h.Goal)
	}
	return nil
}

type HabitCalendarCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix, or title."`
	Days  int    `help:"Number of days to show." default:"28"`
}

func (c *HabitCalendarCmd) Run(ctx *Context) error {
	s, h, err := ctx.ResolveHabit(ctx.Ctx(), c.Habit)
	if err != nil {
		return err
	}
	days, err := s.Calendar(h.ID, c.Days)
	if err != nil {
		return err
	}

	ctx.Println(TitleStyle.Render(h.Title))
	ctx.Println(MutedStyle.Render("■ done  □ missed  · not due"))
	ctx.Println()
	for i, d := range days {
		if i%7 == 0 {
			if i > 0 {
				ctx.Println()
			}
			ctx.Printf("%s  ", MutedStyle.Render(d.Date))
		}
		ctx.Printf("%s", calendarCell(d, h.Color))
	}
	ctx.Println()
	return nil
}

func calendarCell(d models.CalendarDay, color constants.Color) string {
	var cell string
	switch {
	case d.Completed:
		cell = Accent(color).Render("■")
	case d.Due:
		cell = "□"
	default:
		cell = MutedStyle.Render("·")
	}
	if d.IsToday {
		return cell + "<"
	}
	return cell + " "
}

// StatsCmd prints aggregate statistics across every habit.
type StatsCmd struct {
	JSON bool `help:"Print the statistics as JSON."`
}

func (c *StatsCmd) Run(ctx *Context) error {
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}
	st := s.OverallStats()
	if c.JSON {
		return json.NewEncoder(ctx.Out).Encode(st)
	}
	ctx.Println(TitleStyle.Render(fmt.Sprintf("Statistics as of %s", s.Today())))
	ctx.Println()
	ctx.Printf("%s%d\n", LabelStyle.Render("Habits"), st.TotalHabits)
	ctx.Printf("%s%d\n", LabelStyle.Render("Active"), st.ActiveHabits)
	ctx.Printf("%s%d/%d\n", LabelStyle.Render("Done today"), st.CompletedToday, st.ActiveHabits)
	ctx.Printf("%s%d days\n", LabelStyle.Render("Longest streak"), st.LongestStreak)
	ctx.Printf("%s%d%%\n", LabelStyle.Render("Completion rate"), st.OverallCompletionRate)
	ctx.Printf("%s%d\n", LabelStyle.Render("Completions"), st.TotalCompletions)
	return nil
}

// parseDay accepts a date key or an RFC 3339 timestamp and returns the key.
func parseDay(s string, loc *time.Location) (string, error) {
	if utils.IsValidDateKey(s) {
		return s, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", errors.NewValidation("date", "%q is not YYYY-MM-DD", s)
	}
	return utils.DateKey(t, loc), nil
}
