package system

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/config"
	"github.com/julianstephens/habitcraft/internal/utils"
)

var testNow = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

// setupTestContext returns a context over a fresh SQLite database.
func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Timezone = "UTC"
	ctx := &cli.Context{
		Config:     cfg,
		ConfigPath: filepath.Join(dir, "config.yaml"),
		DataPath:   filepath.Join(dir, "habitcraft.db"),
		Clock:      utils.FixedClock{T: testNow},
		Location:   time.UTC,
		Out:        &out,
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, &out
}

func addHabit(t *testing.T, ctx *cli.Context, title string) {
	t.Helper()
	if err := (&cli.HabitAddCmd{Title: title, Color: "green", Cadence: "daily"}).Run(ctx); err != nil {
		t.Fatalf("habit add %q: %v", title, err)
	}
}
