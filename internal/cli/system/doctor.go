package system

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/keyring"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/storage/sqlite"
	"github.com/julianstephens/habitcraft/internal/utils"
	"github.com/julianstephens/habitcraft/internal/validation"
)

type DoctorCmd struct {
	Remote bool `help:"Also check the remote store connection." default:"true" negatable:""`
}

// checkResult is the outcome of one diagnostic.
type checkResult int

const (
	checkOK checkResult = iota
	checkFail
	checkWarn
	checkSkip
)

type doctor struct {
	ctx      *cli.Context
	hasError bool
}

func (d *doctor) report(name string, res checkResult, detail error) {
	switch res {
	case checkOK:
		d.ctx.Printf("✓ %s: OK\n", name)
	case checkFail:
		d.hasError = true
		d.ctx.Printf("❌ %s: FAIL\n", name)
		d.ctx.Printf("   Error: %v\n", detail)
	case checkWarn:
		d.ctx.Printf("⚠ %s: WARNING\n", name)
		d.ctx.Printf("   %v\n", detail)
	case checkSkip:
		d.ctx.Printf("⊘ %s: SKIPPED (%v)\n", name, detail)
	}
}

// run reports check as OK or FAIL, or SKIPPED when skip is non-nil.
func (d *doctor) run(name string, skip error, check func() error) {
	if skip != nil {
		d.report(name, checkSkip, skip)
		return
	}
	if err := check(); err != nil {
		d.report(name, checkFail, err)
		return
	}
	d.report(name, checkOK, nil)
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	d := &doctor{ctx: ctx}
	c := ctx.Ctx()

	d.run("Configuration", nil, ctx.Config.Validate)

	var unreachable error
	d.run("Local storage reachable", nil, func() error {
		if _, err := ctx.Storage(c); err != nil {
			unreachable = fmt.Errorf("local storage not reachable")
			return err
		}
		return nil
	})

	d.run("Schema version", unreachable, func() error { return checkSchemaVersion(ctx) })

	if err := checkBackupsPresent(ctx); err != nil {
		d.report("Backups present", checkWarn, err)
	} else {
		d.report("Backups present", checkOK, nil)
	}

	d.run("Data validation", unreachable, func() error { return checkValidation(ctx) })
	d.run("Clock/timezone", nil, func() error { return checkClockTimezone(ctx) })

	if keyring.IsAvailable() {
		d.report("OS keyring", checkOK, nil)
	} else {
		d.report("OS keyring", checkWarn, keyring.ErrKeyringUnavailable)
	}

	var remoteSkip error
	switch {
	case !cmd.Remote:
		remoteSkip = fmt.Errorf("disabled by --no-remote")
	case !ctx.Config.Remote.Enabled:
		remoteSkip = fmt.Errorf("remote sync disabled")
	}
	d.run("Remote store reachable", remoteSkip, func() error { return checkRemote(c, ctx) })

	ctx.Println()
	if ctx.ConfigPath != "" {
		ctx.Printf("Log file: %s\n", logger.Path(filepath.Dir(ctx.ConfigPath)))
	}
	if d.hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	ctx.Println("All diagnostics passed!")
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	p, err := ctx.Storage(ctx.Ctx())
	if err != nil {
		return err
	}
	s, ok := p.(*sqlite.Store)
	if !ok {
		// Only the SQLite backend is migrated.
		return nil
	}
	current, latest, err := s.SchemaVersion(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current != latest {
		return fmt.Errorf("schema version %d does not match latest %d", current, latest)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	mgr, err := ctx.Backups()
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found in %s", mgr.Dir())
	}
	if age := ctx.Clock.Now().Sub(backups[0].Timestamp); age > 7*24*time.Hour {
		return fmt.Errorf("latest backup is %d days old", int(age.Hours()/24))
	}
	return nil
}

func checkValidation(ctx *cli.Context) error {
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		return err
	}
	result := validation.ValidateHabits(s.Snapshot(), s.Today())
	if result.HasConflicts() {
		return fmt.Errorf("%d problems found:\n%s", len(result.Conflicts), result.FormatReport())
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	if !utils.ValidateTimezone(ctx.Config.Timezone) {
		return fmt.Errorf("invalid timezone %q", ctx.Config.Timezone)
	}
	now := ctx.Clock.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock reads %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkRemote(c context.Context, ctx *cli.Context) error {
	rs, err := ctx.RemoteStore(c)
	if err != nil {
		return err
	}
	owner, err := ctx.Owner(c)
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(c, ctx.Config.Sync.Timeout)
	defer cancel()
	_, err = rs.PullHabits(pctx, owner)
	return err
}
