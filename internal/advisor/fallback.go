package advisor

import (
	"strings"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/models"
)

type adviceRule struct {
	keywords []string
	text     string
}

// Later rules win, so the more specific topics come last.
var advicePool = []adviceRule{
	{keywords: []string{"motiv"}, text: "Remember: consistency is key. Even 5 minutes daily builds powerful habits over time!"},
	{keywords: []string{"product", "focus"}, text: "Try the '2-minute rule': if a habit takes less than 2 minutes, do it immediately."},
	{keywords: []string{"health", "exercise"}, text: "Small daily improvements lead to remarkable results. Your future self will thank you!"},
	{keywords: []string{"learn", "study"}, text: "15 minutes of learning daily compounds into expertise over a year. Keep going!"},
}

const defaultAdvice = "Focus on progress, not perfection. Every small step counts toward your bigger goals."

// FallbackAdvice picks a canned tip by keyword.
func FallbackAdvice(prompt string) string {
	lower := strings.ToLower(prompt)
	out := defaultAdvice
	for _, r := range advicePool {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				out = r.text
				break
			}
		}
	}
	return out
}

type suggestionRule struct {
	keyword    string
	suggestion models.Suggestion
}

var suggestionPool = []suggestionRule{
	{keyword: "meditat", suggestion: models.Suggestion{
		Title: "Morning Meditation", Motivation: "Start the day with clarity and peace",
		Color: constants.ColorBlue, Cadence: constants.CadenceDaily,
		Tips: []string{"Sit for five minutes before checking your phone"},
	}},
	{keyword: "journal", suggestion: models.Suggestion{
		Title: "Evening Journaling", Motivation: "Reflect on the day and plan for tomorrow",
		Color: constants.ColorOrange, Cadence: constants.CadenceDaily,
		Tips: []string{"Write three lines, no more"},
	}},
	{keyword: "read", suggestion: models.Suggestion{
		Title: "Daily Reading", Motivation: "Expand knowledge and relax the mind",
		Color: constants.ColorPurple, Cadence: constants.CadenceDaily,
		Tips: []string{"Keep the book where you usually reach for your phone"},
	}},
	{keyword: "water", suggestion: models.Suggestion{
		Title: "Water Tracking", Motivation: "Stay hydrated for better health and energy",
		Color: constants.ColorBlue, Cadence: constants.CadenceDaily,
		Tips: []string{"Drink a glass with every meal"},
	}},
	{keyword: "exerc", suggestion: models.Suggestion{
		Title: "Morning Exercise", Motivation: "Energize your body for the day ahead",
		Color: constants.ColorGreen, Cadence: constants.CadenceWeekdays,
		Tips: []string{"Lay out your clothes the night before"},
	}},
}

// FallbackSuggestion matches description against the template pool. With no
// match, seed picks a template so repeated calls on one day agree.
func FallbackSuggestion(description string, seed int) models.Suggestion {
	lower := strings.ToLower(description)
	for _, r := range suggestionPool {
		if strings.Contains(lower, r.keyword) {
			return cloneSuggestion(r.suggestion)
		}
	}
	if seed < 0 {
		seed = -seed
	}
	return cloneSuggestion(suggestionPool[seed%len(suggestionPool)].suggestion)
}

func cloneSuggestion(s models.Suggestion) models.Suggestion {
	s.Tips = append([]string(nil), s.Tips...)
	return s
}
