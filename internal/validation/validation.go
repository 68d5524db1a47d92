package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/utils"
)

// inputValidate checks the tag rules on models.HabitInput.
var inputValidate *validator.Validate

func init() {
	inputValidate = validator.New()
	inputValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = inputValidate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = inputValidate.RegisterValidation("cadence", func(fl validator.FieldLevel) bool {
		return utils.IsKnownCadence(constants.Cadence(fl.Field().String()))
	})
	_ = inputValidate.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
		return utils.IsValidDateKey(fl.Field().String())
	})
}

// ValidateInput checks creation input. The returned error is a
// *errors.ValidationError naming the first offending field.
func ValidateInput(in models.HabitInput) error {
	if err := inputValidate.Struct(in); err != nil {
		return translate(err)
	}
	if in.Cadence == constants.CadenceCustom && len(in.Weekdays) == 0 {
		return errors.NewValidation("weekdays", "custom cadence needs at least one weekday")
	}
	return nil
}

// ValidateDateKey checks a calendar-day key.
func ValidateDateKey(key string) error {
	if err := inputValidate.Var(key, "datekey"); err != nil {
		return errors.NewValidation("date", "%q is not a YYYY-MM-DD calendar day", key)
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.NewValidation("", "%v", err)
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "notblank":
		return errors.NewValidation(field, "must not be empty")
	case "max":
		if fe.Kind() == reflect.Slice {
			return errors.NewValidation(field, "at most %s entries allowed", fe.Param())
		}
		return errors.NewValidation(field, "must be at most %s characters", fe.Param())
	case "cadence":
		return errors.NewValidation(field, "unknown cadence %q (want daily, weekdays, weekly, weekends or custom)", fe.Value())
	case "gte", "lte":
		if field == "goal" {
			return errors.NewValidation(field, "must be between 0 and %d days", constants.MaxGoalDays)
		}
		return errors.NewValidation(field, "%v is out of range", fe.Value())
	default:
		return errors.NewValidation(field, "failed %q check", fe.Tag())
	}
}

// ConflictType represents the type of problem found in a stored collection
type ConflictType string

const (
	ConflictDuplicateTitle  ConflictType = "duplicate_title"
	ConflictDuplicateID     ConflictType = "duplicate_id"
	ConflictMissingID       ConflictType = "missing_id"
	ConflictInvalidCadence  ConflictType = "invalid_cadence"
	ConflictInvalidDate     ConflictType = "invalid_date"
	ConflictFutureDate      ConflictType = "future_date"
	ConflictClockSkew       ConflictType = "clock_skew"
	ConflictEmptyTitle      ConflictType = "empty_title"
	ConflictEmptyCustomDays ConflictType = "empty_custom_days"
)

// Conflict represents one detected problem
type Conflict struct {
	Type        ConflictType
	Description string
	HabitIDs    []string
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}
	return b.String()
}

// ValidateHabits inspects a stored or imported collection. Tombstoned habits
// only take part in the id checks. today bounds the completion keys.
func ValidateHabits(habits []models.Habit, today string) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	ids := make(map[string]int)
	titles := make(map[string][]string)
	for _, h := range habits {
		if h.ID == "" {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictMissingID,
				Description: fmt.Sprintf("Habit %q has no id", h.Title),
			})
			continue
		}
		ids[h.ID]++
		if h.IsDeleted() {
			continue
		}

		if strings.TrimSpace(h.Title) == "" {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictEmptyTitle,
				Description: fmt.Sprintf("Habit %s has an empty title", h.ID),
				HabitIDs:    []string{h.ID},
			})
		} else {
			key := strings.ToLower(strings.TrimSpace(h.Title))
			titles[key] = append(titles[key], h.ID)
		}

		if h.Cadence != "" && !utils.IsKnownCadence(h.Cadence) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidCadence,
				Description: fmt.Sprintf("Habit %q has unknown cadence %q", h.Title, h.Cadence),
				HabitIDs:    []string{h.ID},
			})
		}
		if h.Cadence == constants.CadenceCustom && len(h.Weekdays) == 0 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictEmptyCustomDays,
				Description: fmt.Sprintf("Habit %q uses a custom cadence with no weekdays", h.Title),
				HabitIDs:    []string{h.ID},
			})
		}
		if h.UpdatedAt.Before(h.CreatedAt) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictClockSkew,
				Description: fmt.Sprintf("Habit %q was updated before it was created", h.Title),
				HabitIDs:    []string{h.ID},
			})
		}

		for _, day := range h.CompletedDates {
			if !utils.IsValidDateKey(day) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictInvalidDate,
					Description: fmt.Sprintf("Habit %q has malformed completion %q", h.Title, day),
					HabitIDs:    []string{h.ID},
				})
				continue
			}
			if today != "" && day > today {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictFutureDate,
					Description: fmt.Sprintf("Habit %q has a completion in the future (%s)", h.Title, day),
					HabitIDs:    []string{h.ID},
				})
			}
		}
	}

	dupIDs := make([]string, 0)
	for id, n := range ids {
		if n > 1 {
			dupIDs = append(dupIDs, id)
		}
	}
	sort.Strings(dupIDs)
	for _, id := range dupIDs {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictDuplicateID,
			Description: fmt.Sprintf("Habit id %s appears %d times", id, ids[id]),
			HabitIDs:    []string{id},
		})
	}

	names := make([]string, 0, len(titles))
	for name := range titles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if hs := titles[name]; len(hs) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateTitle,
				Description: fmt.Sprintf("Duplicate habit title: %q (IDs: %v)", name, hs),
				HabitIDs:    hs,
			})
		}
	}

	return result
}
