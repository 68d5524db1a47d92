package syncing

import (
	"bytes"
	"context"
	stderrors "errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/config"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/remote/memory"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/utils"
)

var testNow = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

func setupDevice(t *testing.T, rs *memory.Store) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Remote.Enabled = true
	cfg.Sync.Timeout = 2 * time.Second
	ctx := &cli.Context{
		Config:   cfg,
		DataPath: filepath.Join(t.TempDir(), "habitcraft.db"),
		Clock:    utils.FixedClock{T: testNow},
		Location: time.UTC,
		Out:      &out,
		Local:    storage.NewMemoryStore(),
		Remote:   rs,
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, &out
}

func addHabit(t *testing.T, ctx *cli.Context, title string) {
	t.Helper()
	cmd := &cli.HabitAddCmd{Title: title, Color: "green", Cadence: "daily"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("habit add: %v", err)
	}
}

func liveTitles(t *testing.T, ctx *cli.Context) []string {
	t.Helper()
	s, err := ctx.Habits(ctx.Ctx())
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, h := range s.List() {
		titles = append(titles, h.Title)
	}
	return titles
}

func TestSyncNowPushesLocalHabits(t *testing.T) {
	rs := memory.New()
	ctx, out := setupDevice(t, rs)
	addHabit(t, ctx, "Read")

	if err := (&SyncNowCmd{}).Run(ctx); err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if !strings.Contains(out.String(), "Synced 1 habits") {
		t.Errorf("sync output:\n%s", out.String())
	}
	owner, _ := ctx.Owner(ctx.Ctx())
	pulled, err := rs.PullHabits(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(pulled) != 1 || pulled[0].Title != "Read" {
		t.Errorf("remote holds %+v", pulled)
	}
}

func TestSyncNowRemoteDown(t *testing.T) {
	rs := memory.New()
	ctx, out := setupDevice(t, rs)
	addHabit(t, ctx, "Read")
	rs.SetError(stderrors.New("connection refused"))

	err := (&SyncNowCmd{}).Run(ctx)
	if !stderrors.Is(err, errors.ErrRemoteUnavailable) {
		t.Fatalf("sync now error = %v, want remote unavailable", err)
	}
	if !strings.Contains(out.String(), "Remote unavailable, 1 local habits unchanged") {
		t.Errorf("sync output:\n%s", out.String())
	}
	if titles := liveTitles(t, ctx); len(titles) != 1 {
		t.Errorf("local habits changed: %v", titles)
	}
}

func TestSyncRequiresRemote(t *testing.T) {
	ctx, _ := setupDevice(t, nil)
	ctx.Remote = nil
	ctx.Config.Remote.Enabled = false

	if err := (&SyncNowCmd{}).Run(ctx); !stderrors.Is(err, ErrRemoteDisabled) {
		t.Errorf("sync now error = %v, want ErrRemoteDisabled", err)
	}
	if err := (&LinkCodeCmd{}).Run(ctx); !stderrors.Is(err, ErrRemoteDisabled) {
		t.Errorf("link code error = %v, want ErrRemoteDisabled", err)
	}
}

func TestSyncDaemonRunsUntilCancelled(t *testing.T) {
	rs := memory.New()
	ctx, out := setupDevice(t, rs)
	base, cancel := context.WithCancel(context.Background())
	ctx.Base = base

	done := make(chan error, 1)
	go func() {
		done <- (&SyncDaemonCmd{Interval: 20 * time.Millisecond}).Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pulls, _ := rs.Calls(); pulls >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon did not sync repeatedly")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sync daemon: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
	if !strings.Contains(out.String(), "Sync daemon stopped.") {
		t.Errorf("daemon output:\n%s", out.String())
	}
}

func TestSyncNowRemoteUnreachableAtStart(t *testing.T) {
	rs := memory.New()
	rs.SetInitError(stderrors.New("dial tcp: connection refused"))
	ctx, out := setupDevice(t, rs)
	addHabit(t, ctx, "Read")

	err := (&SyncNowCmd{}).Run(ctx)
	if !stderrors.Is(err, errors.ErrRemoteUnavailable) {
		t.Fatalf("sync now error = %v, want remote unavailable", err)
	}
	if !strings.Contains(out.String(), "Remote unavailable, 1 local habits unchanged") {
		t.Errorf("sync output:\n%s", out.String())
	}
}

func TestSyncDaemonRecoversWhenRemoteComesBack(t *testing.T) {
	rs := memory.New()
	rs.SetInitError(stderrors.New("dial tcp: connection refused"))
	ctx, out := setupDevice(t, rs)
	addHabit(t, ctx, "Read")
	owner, err := ctx.Owner(ctx.Ctx())
	if err != nil {
		t.Fatal(err)
	}
	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx.Base = base

	done := make(chan error, 1)
	go func() {
		done <- (&SyncDaemonCmd{Interval: 20 * time.Millisecond}).Run(ctx)
	}()

	waitFor := func(what string, cond func() bool) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for !cond() {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %s", what)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	waitFor("repeated connect attempts", func() bool { return rs.Inits() >= 2 })
	select {
	case err := <-done:
		t.Fatalf("daemon exited while the remote was down: %v", err)
	default:
	}

	rs.SetInitError(nil)
	waitFor("the habit to reach the remote", func() bool {
		pulled, _ := rs.PullHabits(context.Background(), owner)
		return len(pulled) == 1
	})
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sync daemon: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
	if !strings.Contains(out.String(), "Sync daemon stopped.") {
		t.Errorf("daemon output:\n%s", out.String())
	}
}

func TestSyncStatus(t *testing.T) {
	ctx, out := setupDevice(t, memory.New())
	ctx.Config.Remote.DSN = "postgres://habits@localhost:5432/habitcraft"

	if err := (&SyncStatusCmd{Check: true}).Run(ctx); err != nil {
		t.Fatalf("sync status: %v", err)
	}
	status := out.String()
	for _, want := range []string{"Owner", "(this device)", "record", "enabled (dsn from config)", "online, 0 remote habits"} {
		if !strings.Contains(status, want) {
			t.Errorf("status missing %q:\n%s", want, status)
		}
	}
}

var codePattern = regexp.MustCompile(`\b[A-HJ-NP-Z2-9]{8}\b`)

func TestLinkTwoDevices(t *testing.T) {
	rs := memory.New()
	phone, phoneOut := setupDevice(t, rs)
	laptop, laptopOut := setupDevice(t, rs)

	addHabit(t, phone, "Meditate")
	if err := (&SyncNowCmd{}).Run(phone); err != nil {
		t.Fatalf("phone sync: %v", err)
	}

	phoneOut.Reset()
	if err := (&LinkCodeCmd{}).Run(phone); err != nil {
		t.Fatalf("link code: %v", err)
	}
	code := codePattern.FindString(phoneOut.String())
	if code == "" {
		t.Fatalf("no code in output:\n%s", phoneOut.String())
	}

	// Codes are typed by hand, so case and dashes do not matter.
	typed := strings.ToLower(code[:4] + "-" + code[4:])
	if err := (&LinkRedeemCmd{Code: typed, Sync: true}).Run(laptop); err != nil {
		t.Fatalf("link redeem: %v", err)
	}
	if !strings.Contains(laptopOut.String(), "Synced 1 habits") {
		t.Errorf("redeem output:\n%s", laptopOut.String())
	}
	if titles := liveTitles(t, laptop); len(titles) != 1 || titles[0] != "Meditate" {
		t.Errorf("laptop habits = %v, want [Meditate]", titles)
	}

	phoneOwner, _ := phone.Owner(phone.Ctx())
	laptopOwner, _ := laptop.Owner(laptop.Ctx())
	if phoneOwner != laptopOwner {
		t.Errorf("owners differ: %q vs %q", phoneOwner, laptopOwner)
	}

	laptopOut.Reset()
	if err := (&LinkWhoamiCmd{}).Run(laptop); err != nil {
		t.Fatalf("link whoami: %v", err)
	}
	if !strings.Contains(laptopOut.String(), "Linked since") {
		t.Errorf("whoami output:\n%s", laptopOut.String())
	}

	if err := (&LinkUnlinkCmd{Yes: true}).Run(laptop); err != nil {
		t.Fatalf("link unlink: %v", err)
	}
	device, _ := laptop.Owner(laptop.Ctx())
	if device == phoneOwner {
		t.Error("unlink kept the linked owner")
	}
}

func TestLinkRedeemUnknownCode(t *testing.T) {
	ctx, _ := setupDevice(t, memory.New())
	before, _ := ctx.Owner(ctx.Ctx())

	err := (&LinkRedeemCmd{Code: "ABCD2345"}).Run(ctx)
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("redeem error = %v, want not found", err)
	}
	if after, _ := ctx.Owner(ctx.Ctx()); after != before {
		t.Errorf("owner changed from %q to %q", before, after)
	}
}

func TestLinkPurge(t *testing.T) {
	ctx, out := setupDevice(t, memory.New())
	if err := (&LinkPurgeCmd{}).Run(ctx); err != nil {
		t.Fatalf("link purge: %v", err)
	}
	if !strings.Contains(out.String(), "Removed 0 expired sync codes") {
		t.Errorf("purge output:\n%s", out.String())
	}
}
