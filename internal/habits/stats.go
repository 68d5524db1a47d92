package habits

import (
	"math"
	"time"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/utils"
)

// Streak counts consecutive completed calendar days ending today, or ending
// yesterday when today is not completed yet. The walk stops at the first
// missing day or after constants.StreakSafetyBound days.
func Streak(h *models.Habit, today string) int {
	cursor, err := utils.ParseDateKey(today, time.UTC)
	if err != nil {
		return 0
	}
	if !h.IsCompleted(today) {
		cursor = cursor.AddDate(0, 0, -1)
	}

	count := 0
	for i := 0; i < constants.StreakSafetyBound; i++ {
		if !h.IsCompleted(cursor.Format(constants.DateFormat)) {
			break
		}
		count++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return count
}

// DaysSinceCreated is the number of calendar days from the habit's creation
// date to now in loc, at least 1.
func DaysSinceCreated(h *models.Habit, now time.Time, loc *time.Location) int {
	days := utils.DaysBetween(h.CreatedAt, now, loc)
	if days < 1 {
		return 1
	}
	return days
}

// CompletionRate is completions over days since creation as a rounded
// percentage, clamped to 0..100.
func CompletionRate(h *models.Habit, now time.Time, loc *time.Location) int {
	return percent(len(h.CompletedDates), DaysSinceCreated(h, now, loc))
}

func percent(num, den int) int {
	if den < 1 {
		den = 1
	}
	p := int(math.Round(100 * float64(num) / float64(den)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func statsOf(h *models.Habit, now time.Time, loc *time.Location) models.HabitStats {
	today := utils.DateKey(now, loc)
	return models.HabitStats{
		HabitID:          h.ID,
		Streak:           Streak(h, today),
		CompletionRate:   CompletionRate(h, now, loc),
		TotalCompletions: len(h.CompletedDates),
		TotalDays:        DaysSinceCreated(h, now, loc),
		LastCompletion:   h.LastCompletion(),
		CompletedToday:   h.IsCompleted(today),
	}
}

// StatsFor derives the progress figures of one live habit.
func (s *Store) StatsFor(id string) (models.HabitStats, error) {
	now := s.env.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.lookupLocked(id)
	if err != nil {
		return models.HabitStats{}, err
	}
	return statsOf(h, now, s.env.Location), nil
}

// OverallStats aggregates over every live habit. The overall rate is total
// completions over cumulative habit-days.
func (s *Store) OverallStats() models.OverallStats {
	now := s.env.Clock.Now()
	today := utils.DateKey(now, s.env.Location)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out models.OverallStats
	habitDays := 0
	for i := range s.habits {
		h := &s.habits[i]
		if h.IsDeleted() {
			continue
		}
		out.TotalHabits++
		if h.IsActive {
			out.ActiveHabits++
		}
		if st := Streak(h, today); st > out.LongestStreak {
			out.LongestStreak = st
		}
		if h.IsCompleted(today) {
			out.CompletedToday++
		}
		out.TotalCompletions += len(h.CompletedDates)
		habitDays += DaysSinceCreated(h, now, s.env.Location)
	}
	if out.TotalHabits > 0 {
		out.OverallCompletionRate = percent(out.TotalCompletions, habitDays)
	}
	return out
}

// Calendar returns the last days calendar days of a live habit, oldest first
// and ending today.
func (s *Store) Calendar(id string, days int) ([]models.CalendarDay, error) {
	if days <= 0 {
		days = constants.DefaultCalendarLen
	}
	if days > constants.StreakSafetyBound+1 {
		days = constants.StreakSafetyBound + 1
	}
	today := s.Today()
	end, err := utils.ParseDateKey(today, time.UTC)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}

	out := make([]models.CalendarDay, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := end.AddDate(0, 0, -i).Format(constants.DateFormat)
		out = append(out, models.CalendarDay{
			Date:      key,
			Completed: h.IsCompleted(key),
			Due:       h.IsActive && h.IsDueOn(key),
			IsToday:   key == today,
		})
	}
	return out, nil
}
