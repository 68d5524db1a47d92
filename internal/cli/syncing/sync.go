package syncing

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/identity"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/remote"
)

// ErrRemoteDisabled is returned by commands that need the remote store.
var ErrRemoteDisabled = stderrors.New("remote sync is disabled; set remote.enabled in the config file")

type SyncCmd struct {
	Now    SyncNowCmd    `cmd:"" help:"Sync with the remote store once." default:"1"`
	Daemon SyncDaemonCmd `cmd:"" help:"Keep syncing in the foreground until interrupted."`
	Status SyncStatusCmd `cmd:"" help:"Show sync configuration and connectivity."`
}

func requireRemote(ctx *cli.Context) (remote.Store, error) {
	rs, err := ctx.RemoteStore(ctx.Ctx())
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, ErrRemoteDisabled
	}
	return rs, nil
}

// requireSync fails when remote sync is disabled. It does not connect; the
// engine does that on every attempt.
func requireSync(ctx *cli.Context) error {
	ok, err := ctx.SyncConfigured()
	if err != nil {
		return err
	}
	if !ok {
		return ErrRemoteDisabled
	}
	return nil
}

type SyncNowCmd struct{}

func (c *SyncNowCmd) Run(ctx *cli.Context) error {
	if err := requireSync(ctx); err != nil {
		return err
	}
	e, err := ctx.Engine(ctx.Ctx())
	if err != nil {
		return err
	}

	live, err := e.Sync(ctx.Ctx())
	if stderrors.Is(err, errors.ErrRemoteUnavailable) {
		ctx.Printf("%s Remote unavailable, %d local habits unchanged.\n", cli.WarningStyle.Render("⚠"), len(live))
		return err
	}
	if err = ctx.Soft(err); err != nil {
		return err
	}
	st := e.Status()
	ctx.Printf("%s Synced %d habits at %s\n", cli.SuccessStyle.Render("✓"), len(live),
		st.LastSuccess.In(ctx.Location).Format("15:04:05"))
	return nil
}

type SyncDaemonCmd struct {
	Interval time.Duration `help:"Override the configured sync interval."`
}

func (c *SyncDaemonCmd) Run(ctx *cli.Context) error {
	if err := requireSync(ctx); err != nil {
		return err
	}
	if c.Interval > 0 {
		ctx.Config.Sync.Interval = c.Interval
	}
	e, err := ctx.Engine(ctx.Ctx())
	if err != nil {
		return err
	}

	if err := e.Start(ctx.Ctx()); err != nil {
		return err
	}
	ctx.Printf("Syncing every %s. Press Ctrl+C to stop.\n", ctx.Config.Sync.Interval)
	logger.Info("Sync daemon started", "interval", ctx.Config.Sync.Interval)

	<-ctx.Ctx().Done()
	e.Stop()

	st := e.Status()
	logger.Info("Sync daemon stopped", "last_success", st.LastSuccess, "last_error", st.LastError)
	ctx.Println()
	ctx.Println("Sync daemon stopped.")
	return nil
}

type SyncStatusCmd struct {
	Check bool `help:"Connect to the remote store and count its habits."`
}

func (c *SyncStatusCmd) Run(ctx *cli.Context) error {
	l, err := ctx.Linker(ctx.Ctx())
	if err != nil {
		return err
	}
	owner, err := ctx.Owner(ctx.Ctx())
	if err != nil {
		return err
	}

	ctx.Println(cli.TitleStyle.Render("Sync status"))
	ctx.Println()
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Owner"), ownerLabel(owner))
	if linked, at, _ := l.Linked(ctx.Ctx()); linked != "" {
		ctx.Printf("%s%s\n", cli.LabelStyle.Render("Linked since"), at.In(ctx.Location).Format(stampFormat))
	}
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Merge policy"), ctx.Config.Sync.MergePolicy)
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Interval"), ctx.Config.Sync.Interval)

	if !ctx.Config.Remote.Enabled {
		ctx.Printf("%s%s\n", cli.LabelStyle.Render("Remote"), cli.MutedStyle.Render("disabled (local only)"))
		return nil
	}
	_, source, err := ctx.ConnectionString()
	if err != nil {
		ctx.Printf("%s%s\n", cli.LabelStyle.Render("Remote"), cli.ErrorStyle.Render(err.Error()))
		return nil
	}
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Remote"), "enabled (dsn from "+source+")")

	if !c.Check {
		return nil
	}
	rs, err := requireRemote(ctx)
	if err != nil {
		ctx.Printf("%s%s\n", cli.LabelStyle.Render("Connectivity"), cli.ErrorStyle.Render("offline: "+err.Error()))
		return nil
	}
	pulled, err := rs.PullHabits(ctx.Ctx(), owner)
	if err != nil {
		ctx.Printf("%s%s\n", cli.LabelStyle.Render("Connectivity"), cli.ErrorStyle.Render("offline: "+err.Error()))
		return nil
	}
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Connectivity"), cli.SuccessStyle.Render(fmt.Sprintf("online, %d remote habits", len(pulled))))
	return nil
}

func ownerLabel(owner string) string {
	if identity.IsAnonymous(owner) {
		return owner + cli.MutedStyle.Render(" (this device)")
	}
	return owner
}

// stampFormat renders link and expiry times.
const stampFormat = constants.DateFormat + " " + constants.TimeFormat

// codeHint is printed next to a freshly minted code.
func codeHint(expires time.Time, loc *time.Location) string {
	return fmt.Sprintf("Enter it on another device with '%s link redeem <code>' before %s.",
		constants.AppName, expires.In(loc).Format(stampFormat))
}
