package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/syncengine"
	"github.com/julianstephens/habitcraft/internal/tui"
)

type BoardCmd struct {
	Offline bool `help:"Do not connect to the remote store."`
}

func (c *BoardCmd) Run(ctx *cli.Context) error {
	if !ctx.Interactive {
		return fmt.Errorf("the board needs an interactive terminal; use 'habit today' instead")
	}
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}

	// Perform automatic backup on startup (after successful load)
	ctx.PerformAutomaticBackup()

	var engine *syncengine.Engine
	if !c.Offline && ctx.Config.Remote.Enabled {
		engine, err = startEngine(ctx)
		if err != nil {
			ctx.Printf("%s %v; starting offline.\n", cli.WarningStyle.Render("⚠"), err)
		}
	}

	p := tea.NewProgram(tui.NewModel(ctx.Ctx(), s, engine), tea.WithAltScreen(), tea.WithContext(ctx.Ctx()))
	_, err = p.Run()
	if engine != nil {
		engine.Stop()
	}
	if err != nil {
		return fmt.Errorf("board exited: %w", err)
	}
	return nil
}

// startEngine builds the sync engine and starts its timed loop. A remote that
// is down only makes the first attempts local-only.
func startEngine(ctx *cli.Context) (*syncengine.Engine, error) {
	e, err := ctx.Engine(ctx.Ctx())
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx.Ctx()); err != nil {
		return nil, err
	}
	return e, nil
}
