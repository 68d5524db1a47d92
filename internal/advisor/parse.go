package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/utils"
)

// rawSuggestion accepts the field names models tend to produce.
type rawSuggestion struct {
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Motivation  string   `json:"motivation"`
	Color       string   `json:"color"`
	Cadence     string   `json:"cadence"`
	Frequency   string   `json:"frequency"`
	Tips        []string `json:"tips"`
}

// extractJSON returns the outermost object in reply, which may be wrapped in
// prose or a code fence.
func extractJSON(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in reply")
	}
	return reply[start : end+1], nil
}

// ParseSuggestion decodes and normalizes a suggestion reply.
func ParseSuggestion(reply string) (models.Suggestion, error) {
	body, err := extractJSON(reply)
	if err != nil {
		return models.Suggestion{}, err
	}
	var raw rawSuggestion
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return models.Suggestion{}, fmt.Errorf("malformed suggestion: %w", err)
	}

	title := firstNonEmpty(raw.Title, raw.Name)
	if title == "" && raw.Motivation == "" && raw.Description == "" {
		return models.Suggestion{}, fmt.Errorf("suggestion has no content")
	}
	return Normalize(models.Suggestion{
		Title:       title,
		Description: raw.Description,
		Motivation:  raw.Motivation,
		Color:       constants.Color(raw.Color),
		Cadence:     constants.Cadence(strings.ToLower(firstNonEmpty(raw.Cadence, raw.Frequency))),
		Tips:        raw.Tips,
	}), nil
}

// Normalize makes a suggestion acceptable as creation input: a missing title
// becomes "New habit", off-palette colors and unknown cadences fall back to
// their defaults, and text is trimmed to the field limits.
func Normalize(s models.Suggestion) models.Suggestion {
	s.Title = truncate(strings.TrimSpace(s.Title), constants.MaxTitleLength)
	if s.Title == "" {
		s.Title = constants.DefaultSuggestionTitle
	}
	s.Description = truncate(strings.TrimSpace(s.Description), constants.MaxTextLength)
	s.Motivation = truncate(strings.TrimSpace(s.Motivation), constants.MaxTextLength)
	s.Color = utils.NormalizeColor(constants.Color(strings.ToUpper(string(s.Color))))
	if s.Cadence == "" || s.Cadence == constants.CadenceCustom || !utils.IsKnownCadence(s.Cadence) {
		s.Cadence = constants.DefaultCadence
	}
	tips := s.Tips[:0:0]
	for _, t := range s.Tips {
		if t = strings.TrimSpace(t); t != "" {
			tips = append(tips, t)
		}
	}
	s.Tips = tips
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
