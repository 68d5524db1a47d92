package models

import "github.com/julianstephens/habitcraft/internal/constants"

// Suggestion is a habit proposed by the advisor. Accepting it creates an
// ordinary habit through the store.
type Suggestion struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Motivation  string            `json:"motivation,omitempty"`
	Color       constants.Color   `json:"color"`
	Cadence     constants.Cadence `json:"frequency"`
	Tips        []string          `json:"tips,omitempty"`
}

// Input converts the suggestion into creation input.
func (s Suggestion) Input() HabitInput {
	return HabitInput{
		Title:       s.Title,
		Description: s.Description,
		Motivation:  s.Motivation,
		Color:       s.Color,
		Cadence:     s.Cadence,
	}
}
