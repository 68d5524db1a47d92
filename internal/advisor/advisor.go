// Package advisor asks an external chat model for habit advice and habit
// suggestions. Every failure path ends in a static answer, so callers always
// get something to show.
package advisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/utils"
)

// ErrQuotaExceeded is returned once the owner's daily request quota is used.
var ErrQuotaExceeded = stderrors.New("daily advisor limit reached")

const (
	adviceSystemPrompt = `You are a helpful, supportive habit coach. Provide short, practical, and motivating advice (2-3 sentences maximum).
Focus on habit formation, productivity, and personal development. Be encouraging and specific.
Respond in the same language as the user's message.`

	suggestionSystemPrompt = `You are a habit creation expert. Generate a habit tracking object based on the user's description.
Respond ONLY with a valid JSON object in this exact format:
{"title": "creative habit name", "description": "what to do", "motivation": "why it matters", "color": "#hexcolor", "cadence": "daily", "tips": ["tip"]}

Rules:
- "title": 2-4 words, descriptive and catchy
- "motivation": 1 short sentence explaining why this habit matters
- "color": one of #4CAF50, #2196F3, #FF9800, #9C27B0, #F44336 (green for health, blue for learning, orange for creativity, purple for mindfulness, red for important habits)
- "cadence": one of daily, weekdays, weekly
- "tips": at most 3 short practical tips`
)

// Source says where an answer came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

type Config struct {
	Owner   string
	Storage storage.Provider
	// Backend is nil when no API key is configured; answers then come from
	// the static pools without using quota.
	Backend           Backend
	Clock             utils.Clock
	Location          *time.Location
	DailyQuota        int
	RequestsPerMinute int
	Timeout           time.Duration
}

// Request is an advice prompt with optional habit context.
type Request struct {
	Prompt string
	Habit  *models.Habit
}

// Usage reports today's quota consumption.
type Usage struct {
	Date       string
	Used       int
	Remaining  int
	Limit      int
	HasBackend bool
}

type quotaRecord struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Advisor struct {
	cfg     Config
	limiter *rate.Limiter

	mu    sync.Mutex
	quota *quotaRecord
}

func New(cfg Config) (*Advisor, error) {
	if cfg.Owner == "" || cfg.Storage == nil {
		return nil, fmt.Errorf("owner and storage are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = utils.SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = constants.DefaultAdvisorDailyQuota
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = constants.DefaultAdvisorRequestsPerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultAdvisorTimeout
	}
	return &Advisor{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

func (a *Advisor) today() string {
	return utils.Today(a.cfg.Clock, a.cfg.Location)
}

// loadQuotaLocked returns today's counter, resetting it on a new day.
func (a *Advisor) loadQuotaLocked(ctx context.Context) *quotaRecord {
	today := a.today()
	if a.quota == nil {
		var rec quotaRecord
		if _, err := storage.GetJSON(ctx, a.cfg.Storage, a.cfg.Owner, constants.CollectionAdvisorQuota, &rec); err != nil {
			logger.Warn("Failed to read advisor quota", "owner", a.cfg.Owner, "error", err)
		}
		a.quota = &rec
	}
	if a.quota.Date != today {
		a.quota.Date = today
		a.quota.Count = 0
	}
	return a.quota
}

// reserve takes one request from today's quota.
func (a *Advisor) reserve(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := a.loadQuotaLocked(ctx)
	if q.Count >= a.cfg.DailyQuota {
		return ErrQuotaExceeded
	}
	if a.cfg.Backend == nil {
		return nil
	}
	q.Count++
	if err := storage.PutJSON(ctx, a.cfg.Storage, a.cfg.Owner, constants.CollectionAdvisorQuota, q); err != nil {
		logger.Warn("Failed to persist advisor quota", "owner", a.cfg.Owner, "error", err)
	}
	return nil
}

// Usage returns today's quota state.
func (a *Advisor) Usage(ctx context.Context) Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := a.loadQuotaLocked(ctx)
	return Usage{
		Date:       q.Date,
		Used:       q.Count,
		Remaining:  max(0, a.cfg.DailyQuota-q.Count),
		Limit:      a.cfg.DailyQuota,
		HasBackend: a.cfg.Backend != nil,
	}
}

// ResetQuota clears today's counter.
func (a *Advisor) ResetQuota(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := a.loadQuotaLocked(ctx)
	q.Count = 0
	return storage.PutJSON(ctx, a.cfg.Storage, a.cfg.Owner, constants.CollectionAdvisorQuota, q)
}

// ask sends c to the backend under the rate limit and timeout.
func (a *Advisor) ask(ctx context.Context, c Completion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limited: %w", err)
	}
	return a.cfg.Backend.Complete(ctx, c)
}

// Advice answers a free-form coaching prompt.
func (a *Advisor) Advice(ctx context.Context, req Request) (string, Source, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if err := a.reserve(ctx); err != nil {
		return "", "", err
	}
	if a.cfg.Backend == nil {
		return FallbackAdvice(prompt), SourceFallback, nil
	}

	reply, err := a.ask(ctx, Completion{
		System:    adviceSystemPrompt,
		User:      adviceUserMessage(prompt, req.Habit, a.today()),
		MaxTokens: constants.AdvisorAdviceMaxTokens,
	})
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply != "" {
			return reply, SourceModel, nil
		}
		err = fmt.Errorf("empty reply")
	}
	logger.Warn("Advisor unavailable, using fallback advice", "error", err)
	return FallbackAdvice(prompt), SourceFallback, nil
}

func adviceUserMessage(prompt string, h *models.Habit, today string) string {
	if h == nil {
		return prompt
	}
	var b strings.Builder
	fmt.Fprintf(&b, "My habit: %s (%s)", h.Title, h.Cadence)
	if h.Motivation != "" {
		fmt.Fprintf(&b, ", because %s", h.Motivation)
	}
	fmt.Fprintf(&b, ". Current streak: %d days, completed %d times.\n\n", habits.Streak(h, today), len(h.CompletedDates))
	b.WriteString(prompt)
	return b.String()
}

// Suggest turns a description into a habit suggestion.
func (a *Advisor) Suggest(ctx context.Context, description string) (models.Suggestion, Source, error) {
	description = strings.TrimSpace(description)
	if err := a.reserve(ctx); err != nil {
		return models.Suggestion{}, "", err
	}
	seed := a.cfg.Clock.Now().In(a.cfg.Location).YearDay()
	if a.cfg.Backend == nil {
		return FallbackSuggestion(description, seed), SourceFallback, nil
	}

	reply, err := a.ask(ctx, Completion{
		System:    suggestionSystemPrompt,
		User:      "Create a habit for: " + description,
		MaxTokens: constants.AdvisorSuggestionMaxTokens,
		JSON:      true,
	})
	if err == nil {
		var s models.Suggestion
		if s, err = ParseSuggestion(reply); err == nil {
			return s, SourceModel, nil
		}
	}
	logger.Warn("Advisor unavailable, using fallback suggestion", "error", err)
	return FallbackSuggestion(description, seed), SourceFallback, nil
}
