package advise

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitcraft/internal/advisor"
	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/models"
)

type AdviseCmd struct {
	Ask     AdviseAskCmd     `cmd:"" help:"Ask for coaching advice."`
	Suggest AdviseSuggestCmd `cmd:"" help:"Get a habit suggestion from a description."`
	Usage   AdviseUsageCmd   `cmd:"" help:"Show today's advisor quota."`
}

// quotaError explains an exhausted quota.
func quotaError(ctx *cli.Context, a *advisor.Advisor, err error) error {
	if !stderrors.Is(err, advisor.ErrQuotaExceeded) {
		return err
	}
	u := a.Usage(ctx.Ctx())
	return fmt.Errorf("%w: %d of %d requests used today, try again tomorrow", err, u.Used, u.Limit)
}

func sourceNote(src advisor.Source) string {
	if src == advisor.SourceFallback {
		return cli.MutedStyle.Render("(built-in answer)")
	}
	return cli.MutedStyle.Render("(from the advisor)")
}

type AdviseAskCmd struct {
	Prompt []string `arg:"" help:"What you want advice on."`
	Habit  string   `help:"Habit id, id prefix, or title to give the advisor context."`
}

func (c *AdviseAskCmd) Run(ctx *cli.Context) error {
	prompt := strings.TrimSpace(strings.Join(c.Prompt, " "))
	if prompt == "" {
		return errors.NewValidation("prompt", "must not be empty")
	}
	req := advisor.Request{Prompt: prompt}
	if c.Habit != "" {
		_, h, err := ctx.ResolveHabit(ctx.Ctx(), c.Habit)
		if err != nil {
			return err
		}
		req.Habit = &h
	}

	a, err := ctx.Advisor(ctx.Ctx())
	if err != nil {
		return err
	}
	answer, src, err := a.Advice(ctx.Ctx(), req)
	if err != nil {
		return quotaError(ctx, a, err)
	}
	ctx.Println(answer)
	ctx.Println()
	ctx.Println(sourceNote(src))
	return nil
}

type AdviseSuggestCmd struct {
	Description []string `arg:"" help:"Describe the habit you want to build."`
	Add         bool     `help:"Add the suggested habit without asking."`
}

func (c *AdviseSuggestCmd) Run(ctx *cli.Context) error {
	desc := strings.TrimSpace(strings.Join(c.Description, " "))
	if desc == "" {
		return errors.NewValidation("description", "must not be empty")
	}
	a, err := ctx.Advisor(ctx.Ctx())
	if err != nil {
		return err
	}
	sg, src, err := a.Suggest(ctx.Ctx(), desc)
	if err != nil {
		return quotaError(ctx, a, err)
	}
	printSuggestion(ctx, sg)
	ctx.Println(sourceNote(src))

	add := c.Add
	if !add {
		if add, err = ctx.Confirm("Add this habit?", sg.Title, false); err != nil {
			return err
		}
	}
	if !add {
		return nil
	}

	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}
	h, err := s.CreateFromSuggestion(ctx.Ctx(), sg)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	ctx.Printf("%s Added habit: %s %s\n", cli.SuccessStyle.Render("✓"), cli.Swatch(h.Color), h.Title)
	return nil
}

func printSuggestion(ctx *cli.Context, sg models.Suggestion) {
	ctx.Printf("%s %s\n", cli.Swatch(sg.Color), cli.TitleStyle.Render(sg.Title))
	if sg.Description != "" {
		ctx.Println(sg.Description)
	}
	if sg.Motivation != "" {
		ctx.Println(cli.MutedStyle.Render(sg.Motivation))
	}
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Cadence"), cli.FormatCadence(sg.Cadence, nil))
	for _, tip := range sg.Tips {
		ctx.Printf("  • %s\n", tip)
	}
	ctx.Println()
}

type AdviseUsageCmd struct {
	Reset bool `help:"Clear today's request count."`
}

func (c *AdviseUsageCmd) Run(ctx *cli.Context) error {
	a, err := ctx.Advisor(ctx.Ctx())
	if err != nil {
		return err
	}
	if c.Reset {
		if err := a.ResetQuota(ctx.Ctx()); err != nil {
			return fmt.Errorf("failed to reset advisor quota: %w", err)
		}
		ctx.Printf("%s Advisor quota reset for today.\n", cli.SuccessStyle.Render("✓"))
	}
	u := a.Usage(ctx.Ctx())
	backend := "built-in answers only (no API key)"
	if u.HasBackend {
		backend = ctx.Config.Advisor.Model
	}
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Backend"), backend)
	ctx.Printf("%s%d of %d used, %d left\n", cli.LabelStyle.Render("Today"), u.Used, u.Limit, u.Remaining)
	return nil
}
