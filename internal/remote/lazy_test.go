package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/remote"
	"github.com/julianstephens/habitcraft/internal/remote/memory"
)

var _ remote.Store = (*remote.Lazy)(nil)

func TestLazyRetriesFailedConnect(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	inner.SetInitError(errors.New("connection refused"))
	l := remote.NewLazy(inner)

	if _, err := l.PullHabits(ctx, "o"); err == nil {
		t.Fatal("PullHabits succeeded while the store was unreachable")
	}
	if err := l.PushHabits(ctx, "o", []models.Habit{{ID: "h1", Title: "Read"}}); err == nil {
		t.Fatal("PushHabits succeeded while the store was unreachable")
	}
	if l.Connected() {
		t.Fatal("Connected() = true after failed connects")
	}
	if pulls, pushes := inner.Calls(); pulls != 0 || pushes != 0 {
		t.Errorf("inner store was called before it connected: (%d, %d)", pulls, pushes)
	}

	inner.SetInitError(nil)
	if err := l.PushHabits(ctx, "o", []models.Habit{{ID: "h1", Title: "Read"}}); err != nil {
		t.Fatalf("PushHabits after recovery: %v", err)
	}
	got, err := l.PullHabits(ctx, "o")
	if err != nil || len(got) != 1 {
		t.Fatalf("PullHabits = %v, %v", got, err)
	}
	if n := inner.Inits(); n != 3 {
		t.Errorf("Init called %d times, want 3 (two failures, one success)", n)
	}
}

func TestLazyCloseForcesReconnect(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	l := remote.NewLazy(inner)

	if err := l.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if n := inner.Inits(); n != 1 {
		t.Fatalf("Init called %d times, want 1", n)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := l.PullHabits(ctx, "o"); err != nil {
		t.Fatal(err)
	}
	if n := inner.Inits(); n != 2 {
		t.Errorf("Init called %d times after Close, want 2", n)
	}
}
