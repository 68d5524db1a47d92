package advise

import (
	"bytes"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/habitcraft/internal/advisor"
	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/config"
	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/utils"
)

func setupContext(t *testing.T, mod func(*config.Config)) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Default()
	if mod != nil {
		mod(&cfg)
	}
	ctx := &cli.Context{
		Config:   cfg,
		DataPath: filepath.Join(t.TempDir(), "habitcraft.db"),
		Clock:    utils.FixedClock{T: time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)},
		Location: time.UTC,
		Out:      &out,
		Local:    storage.NewMemoryStore(),
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, &out
}

// chatServer answers every chat completion with content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := `{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":` +
			content + `},"finish_reason":"stop"}]}`
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func withServer(srv *httptest.Server, quota int) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.Advisor.BaseURL = srv.URL + "/v1/"
		cfg.Advisor.Model = "test-model"
		cfg.Advisor.DailyQuota = quota
	}
}

func TestAskWithoutAdvisorUsesBuiltInAnswers(t *testing.T) {
	ctx, out := setupContext(t, func(cfg *config.Config) { cfg.Advisor.Enabled = false })

	cmd := &AdviseAskCmd{Prompt: []string{"how", "do", "I", "stay", "motivated?"}}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("advise ask: %v", err)
	}
	if !strings.Contains(out.String(), "(built-in answer)") {
		t.Errorf("ask output:\n%s", out.String())
	}

	out.Reset()
	if err := (&AdviseUsageCmd{}).Run(ctx); err != nil {
		t.Fatalf("advise usage: %v", err)
	}
	if !strings.Contains(out.String(), "built-in answers only") || !strings.Contains(out.String(), "0 of") {
		t.Errorf("built-in answers should not use the quota:\n%s", out.String())
	}
}

func TestAskRejectsEmptyPrompt(t *testing.T) {
	ctx, _ := setupContext(t, nil)
	err := (&AdviseAskCmd{Prompt: []string{"  "}}).Run(ctx)
	if !stderrors.Is(err, errors.ErrValidation) {
		t.Errorf("empty prompt error = %v, want a validation error", err)
	}
}

func TestAskUsesModelAndQuota(t *testing.T) {
	srv := chatServer(t, `"Start with two minutes a day."`)
	t.Setenv(constants.AdvisorAPIKeyEnv, "sk-test")
	ctx, out := setupContext(t, withServer(srv, 1))

	if err := (&cli.HabitAddCmd{Title: "Read", Color: "green", Cadence: "daily"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	out.Reset()

	cmd := &AdviseAskCmd{Prompt: []string{"any", "tips?"}, Habit: "Read"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("advise ask: %v", err)
	}
	if !strings.Contains(out.String(), "Start with two minutes a day.") || !strings.Contains(out.String(), "(from the advisor)") {
		t.Errorf("ask output:\n%s", out.String())
	}

	err := cmd.Run(ctx)
	if !stderrors.Is(err, advisor.ErrQuotaExceeded) {
		t.Fatalf("second ask error = %v, want quota exceeded", err)
	}
	if !strings.Contains(err.Error(), "1 of 1 requests used today") {
		t.Errorf("quota error = %q", err)
	}

	out.Reset()
	if err := (&AdviseUsageCmd{Reset: true}).Run(ctx); err != nil {
		t.Fatalf("advise usage --reset: %v", err)
	}
	if !strings.Contains(out.String(), "Advisor quota reset") || !strings.Contains(out.String(), "0 of 1 used, 1 left") {
		t.Errorf("usage output:\n%s", out.String())
	}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("ask after reset: %v", err)
	}
}

func TestSuggestAddsHabit(t *testing.T) {
	reply := `"{\"title\":\"Morning pages\",\"description\":\"Write three pages\",\"color\":\"#9c27b0\",\"cadence\":\"daily\",\"tips\":[\"Keep a notebook by the bed\"]}"`
	srv := chatServer(t, reply)
	t.Setenv(constants.AdvisorAPIKeyEnv, "sk-test")
	ctx, out := setupContext(t, withServer(srv, 5))

	cmd := &AdviseSuggestCmd{Description: []string{"I", "want", "to", "journal"}, Add: true}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("advise suggest: %v", err)
	}
	for _, want := range []string{"Morning pages", "Keep a notebook by the bed", "Added habit:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("suggest output missing %q:\n%s", want, out.String())
		}
	}

	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		t.Fatal(err)
	}
	h, err := s.Find("Morning pages")
	if err != nil {
		t.Fatalf("suggested habit not added: %v", err)
	}
	if h.Color != constants.ColorPurple {
		t.Errorf("color = %q, want purple", h.Color)
	}
}

func TestSuggestWithoutAddNeedsConfirmation(t *testing.T) {
	ctx, out := setupContext(t, func(cfg *config.Config) { cfg.Advisor.Enabled = false })

	// Without a terminal the confirmation takes its default, which is no.
	if err := (&AdviseSuggestCmd{Description: []string{"drink", "water"}}).Run(ctx); err != nil {
		t.Fatalf("advise suggest: %v", err)
	}
	if strings.Contains(out.String(), "Added habit:") {
		t.Errorf("habit added without confirmation:\n%s", out.String())
	}
	s, _ := ctx.Habits(ctx.Ctx())
	if n := len(s.List()); n != 0 {
		t.Errorf("%d habits after declined suggestion", n)
	}
}
