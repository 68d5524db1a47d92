package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/remote"
)

var _ remote.Store = (*Store)(nil)

func TestPushKeepsNewerRow(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	newer := models.Habit{ID: "h1", Title: "newer", UpdatedAt: t0.Add(time.Minute)}
	older := models.Habit{ID: "h1", Title: "older", UpdatedAt: t0}

	if err := s.PushHabits(ctx, "o", []models.Habit{newer}); err != nil {
		t.Fatal(err)
	}
	if err := s.PushHabits(ctx, "o", []models.Habit{older}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.PullHabits(ctx, "o")
	if len(got) != 1 || got[0].Title != "newer" {
		t.Errorf("PullHabits = %+v", got)
	}
	if other, _ := s.PullHabits(ctx, "someone"); len(other) != 0 {
		t.Error("owners must be isolated")
	}
	if pulls, pushes := s.Calls(); pulls != 2 || pushes != 2 {
		t.Errorf("Calls() = (%d, %d)", pulls, pushes)
	}
}

func TestFailureAndDelay(t *testing.T) {
	s := New()
	boom := errors.New("network down")
	s.SetError(boom)
	if _, err := s.PullHabits(context.Background(), "o"); !errors.Is(err, boom) {
		t.Errorf("PullHabits error = %v", err)
	}
	s.SetError(nil)

	s.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.PullHabits(ctx, "o"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("slow PullHabits error = %v, want deadline exceeded", err)
	}
}

func TestSyncCodes(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sc := remote.SyncCode{Code: "ABCD2345", Owner: "tg-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	if err := s.PutSyncCode(ctx, sc); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSyncCode(ctx, sc); !errors.Is(err, remote.ErrCodeExists) {
		t.Errorf("duplicate error = %v", err)
	}
	if owner, err := s.LookupSyncCode(ctx, "ABCD2345", now); err != nil || owner != "tg-1" {
		t.Errorf("Lookup = (%q, %v)", owner, err)
	}
	if _, err := s.LookupSyncCode(ctx, "ABCD2345", now.Add(time.Hour)); !errors.Is(err, remote.ErrCodeNotFound) {
		t.Errorf("expired lookup error = %v", err)
	}
	if n, _ := s.PurgeExpiredCodes(ctx, now.Add(time.Hour)); n != 1 {
		t.Errorf("purged %d codes, want 1", n)
	}
}
