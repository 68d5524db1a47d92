package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/models"
)

// HabitForm holds the string values edited by the interactive habit form.
type HabitForm struct {
	Title       string
	Description string
	Motivation  string
	Color       constants.Color
	Cadence     constants.Cadence
	Weekdays    string
}

// Input converts the form into creation input.
func (f *HabitForm) Input() (models.HabitInput, error) {
	in := models.HabitInput{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Motivation:  strings.TrimSpace(f.Motivation),
		Color:       f.Color,
		Cadence:     f.Cadence,
	}
	if f.Cadence == constants.CadenceCustom {
		wds, err := ParseWeekdays(f.Weekdays)
		if err != nil {
			return models.HabitInput{}, err
		}
		in.Weekdays = wds
	}
	return in, nil
}

// NewHabitForm creates the interactive form for adding a habit
func NewHabitForm(fm *HabitForm) *huh.Form {
	colorOptions := make([]huh.Option[constants.Color], 0, len(constants.Palette))
	for _, c := range constants.Palette {
		colorOptions = append(colorOptions, huh.NewOption(constants.ColorNames[c], c))
	}
	if fm.Color == "" {
		fm.Color = constants.DefaultColor
	}
	if fm.Cadence == "" {
		fm.Cadence = constants.DefaultCadence
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&fm.Title).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" {
						return fmt.Errorf("title is required")
					}
					if len(s) > constants.MaxTitleLength {
						return fmt.Errorf("title must be at most %d characters", constants.MaxTitleLength)
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Value(&fm.Description),
			huh.NewInput().
				Title("Motivation").
				Description("Why does this habit matter to you?").
				Value(&fm.Motivation),
		),
		huh.NewGroup(
			huh.NewSelect[constants.Cadence]().
				Title("Cadence").
				Options(
					huh.NewOption("Every day", constants.CadenceDaily),
					huh.NewOption("Weekdays", constants.CadenceWeekdays),
					huh.NewOption("Weekends", constants.CadenceWeekly),
					huh.NewOption("Custom days", constants.CadenceCustom),
				).
				Value(&fm.Cadence),
			huh.NewInput().
				Title("Days").
				Description("For custom cadence, e.g. mon,wed,fri").
				Value(&fm.Weekdays).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					_, err := ParseWeekdays(s)
					return err
				}),
			huh.NewSelect[constants.Color]().
				Title("Color").
				Options(colorOptions...).
				Value(&fm.Color),
		),
	)
}

// Confirm asks a yes/no question. Non-interactive contexts answer with def.
func (c *Context) Confirm(title, description string, def bool) (bool, error) {
	if !c.Interactive {
		return def, nil
	}
	ok := def
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}
