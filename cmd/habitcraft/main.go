package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/cli/advise"
	"github.com/julianstephens/habitcraft/internal/cli/backups"
	"github.com/julianstephens/habitcraft/internal/cli/syncing"
	"github.com/julianstephens/habitcraft/internal/cli/system"
	"github.com/julianstephens/habitcraft/internal/config"
	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/logger"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"Config file path." type:"path" default:"${config_path}" env:"HABITCRAFT_CONFIG"`
	Data     string `help:"Local database path (overrides data_path)." type:"path" env:"HABITCRAFT_DATA"`
	Debug    bool   `help:"Log debug output to stderr." env:"HABITCRAFT_DEBUG"`
	Timezone string `help:"IANA timezone for calendar days (overrides timezone)." env:"HABITCRAFT_TIMEZONE"`
	NoInput  bool   `help:"Never prompt; use defaults for confirmations."`

	Init    system.InitCmd    `cmd:"" help:"Initialize habitcraft storage."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Habit   cli.HabitCmd      `cmd:"" help:"Manage habits and habit tracking."`
	Today   cli.HabitTodayCmd `cmd:"" help:"Show the habits due today." default:"1"`
	Stats   cli.StatsCmd      `cmd:"" help:"Show statistics across all habits."`
	Board   system.BoardCmd   `cmd:"" help:"Open the interactive habit board."`
	Sync    syncing.SyncCmd   `cmd:"" help:"Synchronize habits with the remote store."`
	Link    syncing.LinkCmd   `cmd:"" help:"Link devices with sync codes."`
	Advise  advise.AdviseCmd  `cmd:"" help:"Ask the habit advisor."`
	Export  backups.ExportCmd `cmd:"" help:"Export habits as JSON."`
	Import  backups.ImportCmd `cmd:"" help:"Import habits from a JSON export."`
	Keyring system.KeyringCmd `cmd:"" help:"Manage secrets in the OS keyring."`
	Backup  struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker with streaks and multi-device sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_path": constants.DefaultConfigPath,
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	if CLI.Data != "" {
		cfg.DataPath = CLI.Data
	}
	if CLI.Timezone != "" {
		cfg.Timezone = CLI.Timezone
	}
	cfg.Debug = cfg.Debug || CLI.Debug

	configPath, err := config.ExpandPath(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: filepath.Dir(configPath)}); err != nil {
		errors.Fatal(err)
	}

	appCtx, err := cli.NewContext(cfg, configPath)
	if err != nil {
		errors.Fatal(err)
	}
	base, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	appCtx.Base = base
	appCtx.Interactive = !CLI.NoInput && isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	runErr := ctx.Run(appCtx)
	if err := appCtx.Close(); err != nil {
		logger.Warn("Failed to close cleanly", "error", err)
	}
	stop()
	errors.Fatal(runErr)
}
