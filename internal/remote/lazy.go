package remote

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/habitcraft/internal/models"
)

// Lazy connects its inner store on first use and again after a failed
// connect, so a store that is unreachable at startup is picked up once it
// comes back.
type Lazy struct {
	inner Store

	mu    sync.Mutex
	ready bool
}

func NewLazy(inner Store) *Lazy {
	return &Lazy{inner: inner}
}

// Connect initializes the inner store unless a previous call succeeded.
func (l *Lazy) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return nil
	}
	if err := l.inner.Init(ctx); err != nil {
		_ = l.inner.Close()
		return err
	}
	l.ready = true
	return nil
}

// Connected reports whether the inner store has been initialized.
func (l *Lazy) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Unwrap returns the inner store.
func (l *Lazy) Unwrap() Store { return l.inner }

func (l *Lazy) Init(ctx context.Context) error { return l.Connect(ctx) }

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ready = false
	return l.inner.Close()
}

func (l *Lazy) PullHabits(ctx context.Context, owner string) ([]models.Habit, error) {
	if err := l.Connect(ctx); err != nil {
		return nil, err
	}
	return l.inner.PullHabits(ctx, owner)
}

func (l *Lazy) PushHabits(ctx context.Context, owner string, habits []models.Habit) error {
	if err := l.Connect(ctx); err != nil {
		return err
	}
	return l.inner.PushHabits(ctx, owner, habits)
}

func (l *Lazy) PutSyncCode(ctx context.Context, code SyncCode) error {
	if err := l.Connect(ctx); err != nil {
		return err
	}
	return l.inner.PutSyncCode(ctx, code)
}

func (l *Lazy) LookupSyncCode(ctx context.Context, code string, now time.Time) (string, error) {
	if err := l.Connect(ctx); err != nil {
		return "", err
	}
	return l.inner.LookupSyncCode(ctx, code, now)
}

func (l *Lazy) PurgeExpiredCodes(ctx context.Context, now time.Time) (int, error) {
	if err := l.Connect(ctx); err != nil {
		return 0, err
	}
	return l.inner.PurgeExpiredCodes(ctx, now)
}
