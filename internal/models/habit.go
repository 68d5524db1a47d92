package models

import (
	"sort"
	"time"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/utils"
)

// Habit is a recurring practice the user tracks. CompletedDates is a sorted
// set of calendar-day keys.
type Habit struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Motivation     string            `json:"motivation,omitempty"`
	Color          constants.Color   `json:"color"`
	Cadence        constants.Cadence `json:"cadence"`
	Weekdays       []time.Weekday    `json:"weekdays,omitempty"` // custom cadence only
	Goal           int               `json:"goal,omitempty"`
	CompletedDates []string          `json:"completed_dates"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
}

// HabitInput carries the user-supplied fields for a new habit.
type HabitInput struct {
	Title       string            `json:"title" validate:"notblank,max=120"`
	Description string            `json:"description" validate:"max=1000"`
	Motivation  string            `json:"motivation" validate:"max=1000"`
	Color       constants.Color   `json:"color"`
	Cadence     constants.Cadence `json:"cadence" validate:"omitempty,cadence"`
	Weekdays    []time.Weekday    `json:"weekdays" validate:"omitempty,max=7,dive,gte=0,lte=6"`
	Goal        int               `json:"goal" validate:"gte=0,lte=3650"`
}

// HabitPatch lists the fields to change on an existing habit. Nil fields are
// left untouched.
type HabitPatch struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Motivation  *string            `json:"motivation,omitempty"`
	Color       *constants.Color   `json:"color,omitempty"`
	Cadence     *constants.Cadence `json:"cadence,omitempty"`
	Weekdays    []time.Weekday     `json:"weekdays,omitempty"`
	Goal        *int               `json:"goal,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p HabitPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Motivation == nil &&
		p.Color == nil && p.Cadence == nil && p.Weekdays == nil && p.Goal == nil
}

// IsDeleted reports whether the habit carries a tombstone.
func (h *Habit) IsDeleted() bool {
	return h.DeletedAt != nil
}

// IsCompleted reports whether day is in the completion set.
func (h *Habit) IsCompleted(day string) bool {
	i := sort.SearchStrings(h.CompletedDates, day)
	return i < len(h.CompletedDates) && h.CompletedDates[i] == day
}

// SetCompleted adds or removes day from the completion set, keeping it sorted.
// It returns true when the set changed.
func (h *Habit) SetCompleted(day string, done bool) bool {
	i := sort.SearchStrings(h.CompletedDates, day)
	present := i < len(h.CompletedDates) && h.CompletedDates[i] == day
	switch {
	case done && !present:
		h.CompletedDates = append(h.CompletedDates, "")
		copy(h.CompletedDates[i+1:], h.CompletedDates[i:])
		h.CompletedDates[i] = day
		return true
	case !done && present:
		h.CompletedDates = append(h.CompletedDates[:i], h.CompletedDates[i+1:]...)
		return true
	}
	return false
}

// LastCompletion returns the most recent completed day, or "" when there is none.
func (h *Habit) LastCompletion() string {
	if len(h.CompletedDates) == 0 {
		return ""
	}
	return h.CompletedDates[len(h.CompletedDates)-1]
}

// IsDueOn reports whether the habit's cadence includes the weekday of day.
func (h *Habit) IsDueOn(day string) bool {
	wd, err := utils.Weekday(day)
	if err != nil {
		return false
	}
	return utils.CadenceIncludes(h.Cadence, h.Weekdays, wd)
}

// Clone returns a deep copy so callers never share slices with the store.
func (h Habit) Clone() Habit {
	out := h
	if h.CompletedDates != nil {
		out.CompletedDates = append(make([]string, 0, len(h.CompletedDates)), h.CompletedDates...)
	}
	if h.Weekdays != nil {
		out.Weekdays = append(make([]time.Weekday, 0, len(h.Weekdays)), h.Weekdays...)
	}
	if h.DeletedAt != nil {
		t := *h.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// Normalize repairs a record read from storage or the remote: malformed and
// duplicate completion keys are dropped, the set is sorted, and an off-palette
// color or empty cadence falls back to its default.
func (h *Habit) Normalize() {
	h.CompletedDates = NormalizeDateKeys(h.CompletedDates)
	h.Color = utils.NormalizeColor(h.Color)
	if h.Cadence == "" {
		h.Cadence = constants.DefaultCadence
	}
	if h.UpdatedAt.Before(h.CreatedAt) {
		h.UpdatedAt = h.CreatedAt
	}
}

// NormalizeDateKeys returns the valid keys of in, sorted and de-duplicated.
func NormalizeDateKeys(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		if !utils.IsValidDateKey(k) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
