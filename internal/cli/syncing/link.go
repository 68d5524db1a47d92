package syncing

import (
	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/identity"
)

type LinkCmd struct {
	Code   LinkCodeCmd   `cmd:"" help:"Create a sync code for linking another device."`
	Redeem LinkRedeemCmd `cmd:"" help:"Link this device using a sync code."`
	Unlink LinkUnlinkCmd `cmd:"" help:"Go back to this device's own habits."`
	Whoami LinkWhoamiCmd `cmd:"" help:"Show the owner this device syncs as."`
	Purge  LinkPurgeCmd  `cmd:"" help:"Remove expired sync codes from the remote store."`
}

// linker opens the remote store before the identity so sync codes work.
func linker(ctx *cli.Context) (*identity.Linker, error) {
	if _, err := requireRemote(ctx); err != nil {
		return nil, err
	}
	return ctx.Linker(ctx.Ctx())
}

type LinkCodeCmd struct{}

func (c *LinkCodeCmd) Run(ctx *cli.Context) error {
	l, err := linker(ctx)
	if err != nil {
		return err
	}
	owner, err := ctx.Owner(ctx.Ctx())
	if err != nil {
		return err
	}
	sc, err := l.CreateSyncCode(ctx.Ctx(), owner)
	if err != nil {
		return err
	}

	ctx.Println("Your sync code:")
	ctx.Println()
	ctx.Println("    " + cli.TitleStyle.Render(sc.Code))
	ctx.Println()
	ctx.Println(codeHint(sc.ExpiresAt, ctx.Location))
	return nil
}

type LinkRedeemCmd struct {
	Code string `arg:"" help:"Sync code shown on the other device."`
	Sync bool   `help:"Sync right after linking." default:"true" negatable:""`
}

func (c *LinkRedeemCmd) Run(ctx *cli.Context) error {
	l, err := linker(ctx)
	if err != nil {
		return err
	}
	owner, err := l.RedeemSyncCode(ctx.Ctx(), c.Code)
	if err = ctx.Soft(err); err != nil {
		return err
	}
	ctx.OwnerChanged()
	ctx.Printf("%s This device now syncs as %s\n", cli.SuccessStyle.Render("✓"), ownerLabel(owner))

	if !c.Sync {
		return nil
	}
	e, err := ctx.Engine(ctx.Ctx())
	if err != nil {
		return err
	}
	live, err := e.Sync(ctx.Ctx())
	if err = ctx.Soft(err); err != nil {
		return err
	}
	ctx.Printf("%s Synced %d habits\n", cli.SuccessStyle.Render("✓"), len(live))
	return nil
}

type LinkUnlinkCmd struct {
	Yes bool `short:"y" help:"Skip the confirmation."`
}

func (c *LinkUnlinkCmd) Run(ctx *cli.Context) error {
	l, err := ctx.Linker(ctx.Ctx())
	if err != nil {
		return err
	}
	linked, _, _ := l.Linked(ctx.Ctx())
	if linked == "" {
		ctx.Println("This device is not linked.")
		return nil
	}
	if !c.Yes {
		ok, err := ctx.Confirm("Unlink from "+linked+"?", "Habits synced under that owner stay on the remote.", true)
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Unlink cancelled.")
			return nil
		}
	}
	device, err := l.Unlink(ctx.Ctx())
	if err = ctx.Soft(err); err != nil {
		return err
	}
	ctx.OwnerChanged()
	ctx.Printf("%s This device now syncs as %s\n", cli.SuccessStyle.Render("✓"), ownerLabel(device))
	return nil
}

type LinkWhoamiCmd struct{}

func (c *LinkWhoamiCmd) Run(ctx *cli.Context) error {
	l, err := ctx.Linker(ctx.Ctx())
	if err != nil {
		return err
	}
	device, err := l.DeviceID(ctx.Ctx())
	if err = ctx.Soft(err); err != nil {
		return err
	}
	owner, err := ctx.Owner(ctx.Ctx())
	if err != nil {
		return err
	}
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Owner"), ownerLabel(owner))
	ctx.Printf("%s%s\n", cli.LabelStyle.Render("Device"), device)
	if linked, at, _ := l.Linked(ctx.Ctx()); linked != "" {
		ctx.Printf("%s%s\n", cli.LabelStyle.Render("Linked since"), at.In(ctx.Location).Format(stampFormat))
	}
	return nil
}

type LinkPurgeCmd struct{}

func (c *LinkPurgeCmd) Run(ctx *cli.Context) error {
	l, err := linker(ctx)
	if err != nil {
		return err
	}
	n, err := l.PurgeExpiredCodes(ctx.Ctx())
	if err != nil {
		return err
	}
	ctx.Printf("%s Removed %d expired sync codes\n", cli.SuccessStyle.Render("✓"), n)
	return nil
}
