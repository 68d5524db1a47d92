package backups

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/config"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/utils"
)

var testNow = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

// setupSQLite returns a context over a real SQLite database in a temp dir.
func setupSQLite(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ctx := &cli.Context{
		Config:   config.Default(),
		DataPath: filepath.Join(t.TempDir(), "habitcraft.db"),
		Clock:    utils.FixedClock{T: testNow},
		Location: time.UTC,
		Out:      &out,
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, &out
}

func setupMemory(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	ctx, out := setupSQLite(t)
	ctx.Local = storage.NewMemoryStore()
	return ctx, out
}

func addHabit(t *testing.T, ctx *cli.Context, title string) {
	t.Helper()
	if err := (&cli.HabitAddCmd{Title: title, Color: "green", Cadence: "daily"}).Run(ctx); err != nil {
		t.Fatalf("habit add %q: %v", title, err)
	}
}

func titles(t *testing.T, ctx *cli.Context) []string {
	t.Helper()
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, h := range s.List() {
		out = append(out, h.Title)
	}
	return out
}

func TestBackupListEmpty(t *testing.T) {
	ctx, out := setupSQLite(t)
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list: %v", err)
	}
	if !strings.Contains(out.String(), "No backups found.") {
		t.Errorf("list output:\n%s", out.String())
	}
}

func TestBackupCreateListRestore(t *testing.T) {
	ctx, out := setupSQLite(t)
	addHabit(t, ctx, "Read")

	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup create: %v", err)
	}
	mgr, err := ctx.Backups()
	if err != nil {
		t.Fatal(err)
	}
	backups, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("found %d backups, want 1", len(backups))
	}
	name := filepath.Base(backups[0].Path)
	if !strings.Contains(out.String(), name) {
		t.Errorf("create output does not name %s:\n%s", name, out.String())
	}

	out.Reset()
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list: %v", err)
	}
	if !strings.Contains(out.String(), "1 total") || !strings.Contains(out.String(), name) {
		t.Errorf("list output:\n%s", out.String())
	}

	addHabit(t, ctx, "Write")
	if got := titles(t, ctx); len(got) != 2 {
		t.Fatalf("habits before restore = %v", got)
	}

	out.Reset()
	if err := (&BackupRestoreCmd{BackupFile: name, Yes: true}).Run(ctx); err != nil {
		t.Fatalf("backup restore: %v", err)
	}
	if !strings.Contains(out.String(), "Previous database saved as") {
		t.Errorf("restore output:\n%s", out.String())
	}
	if got := titles(t, ctx); len(got) != 1 || got[0] != "Read" {
		t.Errorf("habits after restore = %v, want [Read]", got)
	}
}

func TestBackupRestoreMissingFile(t *testing.T) {
	ctx, _ := setupSQLite(t)
	err := (&BackupRestoreCmd{BackupFile: "nope.db", Yes: true}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "backup file not found") {
		t.Errorf("restore error = %v", err)
	}
}

func TestBackupRestoreDeclined(t *testing.T) {
	ctx, out := setupSQLite(t)
	addHabit(t, ctx, "Read")
	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	mgr, _ := ctx.Backups()
	backups, _ := mgr.List()

	addHabit(t, ctx, "Write")
	out.Reset()
	if err := (&BackupRestoreCmd{BackupFile: backups[0].Path}).Run(ctx); err != nil {
		t.Fatalf("backup restore: %v", err)
	}
	if !strings.Contains(out.String(), "Restore cancelled.") {
		t.Errorf("restore output:\n%s", out.String())
	}
	if got := titles(t, ctx); len(got) != 2 {
		t.Errorf("declined restore changed habits: %v", got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src, srcOut := setupMemory(t)
	addHabit(t, src, "Read")
	addHabit(t, src, "Stretch")
	if err := (&cli.HabitDoneCmd{Habit: "Read"}).Run(src); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(t.TempDir(), "export.json")
	srcOut.Reset()
	if err := (&ExportCmd{Output: file}).Run(src); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(srcOut.String(), "Exported 2 habits") {
		t.Errorf("export output:\n%s", srcOut.String())
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("export file mode = %o, want 600", perm)
	}

	dst, dstOut := setupMemory(t)
	addHabit(t, dst, "Walk")
	if err := (&ImportCmd{File: file}).Run(dst); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(dstOut.String(), "Imported 2 habits (0 skipped); 3 live habits now.") {
		t.Errorf("import output:\n%s", dstOut.String())
	}

	s, _ := dst.Habits(dst.Ctx())
	read, err := s.Find("Read")
	if err != nil {
		t.Fatal(err)
	}
	if len(read.CompletedDates) != 1 {
		t.Errorf("imported completions = %v", read.CompletedDates)
	}

	// Importing the same file again reconciles by id instead of duplicating.
	dstOut.Reset()
	if err := (&ImportCmd{File: file}).Run(dst); err != nil {
		t.Fatalf("second import: %v", err)
	}
	if got := titles(t, dst); len(got) != 3 {
		t.Errorf("habits after second import = %v", got)
	}
}

func TestExportToStdout(t *testing.T) {
	ctx, out := setupMemory(t)
	addHabit(t, ctx, "Read")
	out.Reset()
	if err := (&ExportCmd{}).Run(ctx); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out.String(), `"version"`) || !strings.Contains(out.String(), `"Read"`) {
		t.Errorf("export output:\n%s", out.String())
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	ctx, _ := setupMemory(t)
	file := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(file, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := (&ImportCmd{File: file}).Run(ctx); err == nil {
		t.Error("expected an error for a malformed export")
	}
}
