package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/habitcraft/internal/advisor"
	"github.com/julianstephens/habitcraft/internal/backup"
	"github.com/julianstephens/habitcraft/internal/config"
	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/identity"
	"github.com/julianstephens/habitcraft/internal/keyring"
	"github.com/julianstephens/habitcraft/internal/lockfile"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/remote"
	"github.com/julianstephens/habitcraft/internal/remote/postgres"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/storage/badger"
	"github.com/julianstephens/habitcraft/internal/storage/sqlite"
	"github.com/julianstephens/habitcraft/internal/syncengine"
	"github.com/julianstephens/habitcraft/internal/utils"
)

// ErrNoBackups is returned by backup commands on a backend without file snapshots.
var ErrNoBackups = stderrors.New("backups are only available with the sqlite backend")

// Context is handed to every command. Components are opened on first use and
// released by Close.
type Context struct {
	Config     config.Config
	ConfigPath string
	DataPath   string
	Clock      utils.Clock
	Location   *time.Location
	Out        io.Writer
	// Base is cancelled on interrupt. Nil means context.Background.
	Base context.Context
	// Interactive enables huh forms and confirmations.
	Interactive bool

	// Local and Remote may be set before the first command runs; otherwise
	// they are built from Config.
	Local  storage.Provider
	Remote remote.Store

	lock         *lockfile.Lock
	localOpen    bool
	conn         *remote.Lazy
	remoteOpen   bool
	remoteOwned  bool
	linker       *identity.Linker
	linkerRemote bool
	store        *habits.Store
	engine       *syncengine.Engine
	advisor      *advisor.Advisor
	closeStorage bool
}

// NewContext resolves the data path and timezone of cfg.
func NewContext(cfg config.Config, configPath string) (*Context, error) {
	dataPath, err := config.ExpandPath(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	loc, err := utils.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.NewValidation("timezone", "%v", err)
	}
	return &Context{
		Config:     cfg,
		ConfigPath: configPath,
		DataPath:   dataPath,
		Clock:      utils.SystemClock{},
		Location:   loc,
		Out:        os.Stdout,
	}, nil
}

// Ctx returns the context commands run under.
func (c *Context) Ctx() context.Context {
	if c.Base == nil {
		return context.Background()
	}
	return c.Base
}

// Printf writes to the command output.
func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

// Println writes a line to the command output.
func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.Out, args...)
}

// Soft reports a persistence warning and swallows it; any other error is
// returned unchanged.
func (c *Context) Soft(err error) error {
	if errors.IsWarning(err) {
		c.Printf("%s %v\n", WarningStyle.Render("⚠ Warning:"), err)
		c.Println("  The change is kept for this session but may not survive a restart.")
		return nil
	}
	return err
}

// Storage opens the local provider, taking the data lock first.
func (c *Context) Storage(ctx context.Context) (storage.Provider, error) {
	if c.localOpen {
		return c.Local, nil
	}
	if c.Local == nil {
		lock, err := lockfile.Acquire(lockfile.Path(c.DataPath))
		if err != nil {
			return nil, err
		}
		c.lock = lock
		switch c.Config.LocalBackend {
		case config.BackendBadger:
			c.Local = badger.NewStore(badger.DefaultConfig(c.DataPath))
		default:
			c.Local = sqlite.NewStore(c.DataPath)
		}
		c.closeStorage = true
	}
	if err := c.Local.Init(ctx); err != nil {
		c.releaseLock()
		return nil, &errors.PersistenceError{Op: "open", Err: err}
	}
	c.localOpen = true
	return c.Local, nil
}

// ConnectionString returns the remote DSN. The config file wins; the
// environment and the OS keyring are consulted otherwise.
func (c *Context) ConnectionString() (string, string, error) {
	if dsn := strings.TrimSpace(c.Config.Remote.DSN); dsn != "" {
		if postgres.HasEmbeddedCredentials(dsn) {
			return "", "", postgres.ErrEmbeddedCredentials
		}
		return dsn, "config", nil
	}
	dsn, source, err := keyring.Resolve(keyring.ConnectionString)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", "", fmt.Errorf("remote sync is enabled but no connection string is configured; run '%s keyring set db <dsn>'", constants.AppName)
		}
		return "", "", err
	}
	return dsn, source, nil
}

// remoteConn returns the remote store wrapped so that it connects on use. It
// returns nil without an error when remote sync is disabled.
func (c *Context) remoteConn() (*remote.Lazy, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	if c.Remote == nil {
		if !c.Config.Remote.Enabled {
			return nil, nil
		}
		dsn, source, err := c.ConnectionString()
		if err != nil {
			return nil, err
		}
		logger.Debug("Using remote store", "source", source)
		c.Remote = postgres.New(dsn)
		c.remoteOwned = true
	}
	c.conn = remote.NewLazy(c.Remote)
	return c.conn, nil
}

// RemoteStore connects to the remote store. It returns nil without an error
// when remote sync is disabled.
func (c *Context) RemoteStore(ctx context.Context) (remote.Store, error) {
	conn, err := c.remoteConn()
	if err != nil || conn == nil {
		return nil, err
	}
	if c.remoteOpen {
		return conn, nil
	}
	ictx, cancel := context.WithTimeout(ctx, c.Config.Sync.Timeout)
	defer cancel()
	if err := conn.Connect(ictx); err != nil {
		return nil, &errors.RemoteUnavailableError{Op: "connect", Err: err}
	}
	c.remoteOpen = true
	return conn, nil
}

// SyncConfigured reports whether a remote store is configured, without
// connecting to it.
func (c *Context) SyncConfigured() (bool, error) {
	conn, err := c.remoteConn()
	return conn != nil, err
}

// Linker returns the device identity. It can issue and redeem sync codes once
// RemoteStore has been opened.
func (c *Context) Linker(ctx context.Context) (*identity.Linker, error) {
	if c.linker != nil && (c.linkerRemote || !c.remoteOpen) {
		return c.linker, nil
	}
	p, err := c.Storage(ctx)
	if err != nil {
		return nil, err
	}
	cfg := identity.Config{Storage: p, Clock: c.Clock, Timeout: c.Config.Sync.Timeout}
	if c.remoteOpen {
		cfg.Remote = c.conn
	}
	l, err := identity.New(cfg)
	if err != nil {
		return nil, err
	}
	c.linker = l
	c.linkerRemote = cfg.Remote != nil
	return l, nil
}

// Owner returns the owner the habit collection is partitioned under.
func (c *Context) Owner(ctx context.Context) (string, error) {
	l, err := c.Linker(ctx)
	if err != nil {
		return "", err
	}
	owner, err := l.Owner(ctx)
	if err := c.Soft(err); err != nil {
		return "", err
	}
	return owner, nil
}

// Habits loads the owner's habit collection.
func (c *Context) Habits(ctx context.Context) (*habits.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	p, err := c.Storage(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := c.Owner(ctx)
	if err != nil {
		return nil, err
	}
	s, err := habits.NewStore(habits.Env{
		Owner:     owner,
		Storage:   p,
		Clock:     c.Clock,
		Location:  c.Location,
		MaxHabits: c.Config.MaxHabits,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Soft(s.Load(ctx)); err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

// Engine builds the sync engine over the habit store. It does not connect:
// each sync attempt reaches for the remote store and falls back to local-only
// when it is down. With remote sync disabled every sync reports it.
func (c *Context) Engine(ctx context.Context) (*syncengine.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	conn, err := c.remoteConn()
	if err != nil {
		return nil, err
	}
	s, err := c.Habits(ctx)
	if err != nil {
		return nil, err
	}
	cfg := syncengine.Config{
		Store:    s,
		Interval: c.Config.Sync.Interval,
		Timeout:  c.Config.Sync.Timeout,
		Policy:   syncengine.Policy(c.Config.Sync.MergePolicy),
		Clock:    c.Clock,
	}
	if conn != nil {
		cfg.Remote = conn
	}
	e, err := syncengine.New(cfg)
	if err != nil {
		return nil, err
	}
	c.engine = e
	return e, nil
}

// Merge returns the configured merge function, for import.
func (c *Context) Merge() (habits.MergeFunc, error) {
	p, err := syncengine.ParsePolicy(c.Config.Sync.MergePolicy)
	if err != nil {
		return nil, err
	}
	return syncengine.MergeFunc(p), nil
}

// Advisor builds the advisory client. Without an API key it answers from the
// static pools.
func (c *Context) Advisor(ctx context.Context) (*advisor.Advisor, error) {
	if c.advisor != nil {
		return c.advisor, nil
	}
	p, err := c.Storage(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := c.Owner(ctx)
	if err != nil {
		return nil, err
	}
	acfg := c.Config.Advisor
	cfg := advisor.Config{
		Owner:             owner,
		Storage:           p,
		Clock:             c.Clock,
		Location:          c.Location,
		DailyQuota:        acfg.DailyQuota,
		RequestsPerMinute: acfg.RequestsPerMinute,
		Timeout:           acfg.Timeout,
	}
	if acfg.Enabled {
		key, source, err := keyring.Resolve(keyring.AdvisorAPIKey)
		switch {
		case err == nil:
			logger.Debug("Advisor API key resolved", "source", source)
			cfg.Backend = advisor.NewOpenAIBackend(key, acfg.BaseURL, acfg.Model)
		case stderrors.Is(err, keyring.ErrNotFound):
			logger.Debug("No advisor API key, using built-in answers")
		default:
			logger.Warn("Advisor API key lookup failed", "error", err)
		}
	}
	a, err := advisor.New(cfg)
	if err != nil {
		return nil, err
	}
	c.advisor = a
	return a, nil
}

// Backups returns the snapshot manager for the local database.
func (c *Context) Backups() (*backup.Manager, error) {
	if c.Config.LocalBackend == config.BackendBadger {
		return nil, ErrNoBackups
	}
	return backup.NewManager(c.DataPath).WithClock(c.Clock), nil
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	mgr, err := c.Backups()
	if err != nil {
		return
	}
	if _, err := mgr.Create(); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// OwnerChanged drops the loaded collection and sync engine after a link or
// unlink so the next call loads the new owner's habits.
func (c *Context) OwnerChanged() {
	if c.engine != nil {
		c.engine.Stop()
		c.engine = nil
	}
	c.store = nil
}

// CloseStorage releases the local provider and the data lock, e.g. before a
// restore replaces the database file.
func (c *Context) CloseStorage() error {
	var err error
	if c.localOpen && c.closeStorage {
		err = c.Local.Close()
		c.Local = nil
	}
	c.localOpen = false
	c.store = nil
	c.linker = nil
	c.advisor = nil
	c.releaseLock()
	return err
}

func (c *Context) releaseLock() {
	if c.lock == nil {
		return
	}
	if err := c.lock.Release(); err != nil {
		logger.Warn("Failed to release lock", "error", err)
	}
	c.lock = nil
}

// Close stops the sync engine and releases every component.
func (c *Context) Close() error {
	if c.engine != nil {
		c.engine.Stop()
		c.engine = nil
	}
	var errs []error
	if c.conn != nil && c.remoteOwned {
		errs = append(errs, c.conn.Close())
	}
	c.conn = nil
	c.remoteOpen = false
	errs = append(errs, c.CloseStorage())
	return stderrors.Join(errs...)
}

// ResolveHabit finds a live habit by id, id prefix, or title.
func (c *Context) ResolveHabit(ctx context.Context, ref string) (*habits.Store, models.Habit, error) {
	s, err := c.Habits(ctx)
	if err != nil {
		return nil, models.Habit{}, err
	}
	h, err := s.Find(ref)
	if err != nil {
		return nil, models.Habit{}, err
	}
	return s, h, nil
}

// ParseWeekdays parses a comma-separated list of weekdays
func ParseWeekdays(s string) ([]time.Weekday, error) {
	parts := strings.Split(s, ",")
	var weekdays []time.Weekday

	dayMap := map[string]time.Weekday{
		"sun":       time.Sunday,
		"sunday":    time.Sunday,
		"mon":       time.Monday,
		"monday":    time.Monday,
		"tue":       time.Tuesday,
		"tuesday":   time.Tuesday,
		"wed":       time.Wednesday,
		"wednesday": time.Wednesday,
		"thu":       time.Thursday,
		"thursday":  time.Thursday,
		"fri":       time.Friday,
		"friday":    time.Friday,
		"sat":       time.Saturday,
		"saturday":  time.Saturday,
	}

	seen := make(map[time.Weekday]bool)
	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		wd, ok := dayMap[part]
		if !ok {
			// Try parsing as number (0=Sunday, 6=Saturday)
			num, err := strconv.Atoi(part)
			if err != nil || num < 0 || num > 6 {
				return nil, fmt.Errorf("invalid weekday: %s", part)
			}
			wd = time.Weekday(num)
		}
		if !seen[wd] {
			seen[wd] = true
			weekdays = append(weekdays, wd)
		}
	}

	return weekdays, nil
}

// FormatCadence renders a cadence for display.
func FormatCadence(cadence constants.Cadence, weekdays []time.Weekday) string {
	switch cadence {
	case constants.CadenceCustom:
		if len(weekdays) == 0 {
			return "custom"
		}
		days := make([]string, 0, len(weekdays))
		for _, wd := range weekdays {
			days = append(days, wd.String()[:3])
		}
		return "custom on " + strings.Join(days, ",")
	case constants.CadenceWeekly:
		return "weekly (weekends)"
	case "":
		return string(constants.DefaultCadence)
	default:
		return string(cadence)
	}
}

// ParseColor accepts a palette name ("blue") or hex value.
func ParseColor(s string) (constants.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return constants.DefaultColor, nil
	}
	for color, name := range constants.ColorNames {
		if strings.EqualFold(name, s) || strings.EqualFold(string(color), s) {
			return color, nil
		}
	}
	return "", errors.NewValidation("color", "%q is not one of %s", s, paletteNames())
}

func paletteNames() string {
	names := make([]string, 0, len(constants.Palette))
	for _, c := range constants.Palette {
		names = append(names, constants.ColorNames[c])
	}
	return strings.Join(names, ", ")
}
