package backups

import (
	"fmt"
	"io"
	"os"

	"github.com/julianstephens/habitcraft/internal/backup"
	"github.com/julianstephens/habitcraft/internal/cli"
)

type ExportCmd struct {
	Output string `short:"o" help:"Write to a file instead of standard output." type:"path"`
}

func (c *ExportCmd) Run(ctx *cli.Context) error {
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}

	var w io.Writer = ctx.Out
	if c.Output != "" {
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := backup.WriteExport(w, s, ctx.Clock.Now())
	if err != nil {
		return err
	}
	if c.Output != "" {
		ctx.Printf("%s Exported %d habits to %s\n", cli.SuccessStyle.Render("✓"), n, c.Output)
	}
	return nil
}

type ImportCmd struct {
	File string `arg:"" help:"Export file to import." type:"existingfile"`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	exp, err := backup.ReadExport(f)
	if err != nil {
		return err
	}
	merge, err := ctx.Merge()
	if err != nil {
		return err
	}
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}

	ctx.PerformAutomaticBackup()

	res, err := backup.Import(ctx.Ctx(), s, exp, merge)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	if res.Report.HasConflicts() {
		ctx.Println(cli.WarningStyle.Render(res.Report.FormatReport()))
	}
	ctx.Printf("%s Imported %d habits (%d skipped); %d live habits now.\n",
		cli.SuccessStyle.Render("✓"), res.Imported, res.Skipped, len(res.Live))
	return nil
}
