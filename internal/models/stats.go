package models

// HabitStats holds the values derived from one habit's completion history.
// They are computed on read and never stored.
type HabitStats struct {
	HabitID          string `json:"habit_id"`
	Streak           int    `json:"streak"`
	CompletionRate   int    `json:"completion_rate"` // percent, 0..100
	TotalCompletions int    `json:"total_completions"`
	TotalDays        int    `json:"total_days"`
	LastCompletion   string `json:"last_completion,omitempty"`
	CompletedToday   bool   `json:"completed_today"`
}

// OverallStats aggregates across every live habit.
type OverallStats struct {
	TotalHabits           int `json:"total_habits"`
	ActiveHabits          int `json:"active_habits"`
	LongestStreak         int `json:"longest_streak"`
	OverallCompletionRate int `json:"overall_completion_rate"`
	TotalCompletions      int `json:"total_completions"`
	CompletedToday        int `json:"completed_today"`
}

// CalendarDay is one cell of a habit's completion calendar.
type CalendarDay struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Due       bool   `json:"due"`
	IsToday   bool   `json:"is_today"`
}
