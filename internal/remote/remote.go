// Package remote defines the shared row store that replicates one owner's
// habits across devices and maps sync codes to owners.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/habitcraft/internal/models"
)

var (
	// ErrCodeNotFound means the sync code is unknown or expired.
	ErrCodeNotFound = errors.New("sync code not found")
	// ErrCodeExists means the sync code is already taken.
	ErrCodeExists = errors.New("sync code already exists")
)

// SyncCode maps a short human-typeable code to an owner until it expires.
type SyncCode struct {
	Code      string
	Owner     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the remote collection, partitioned by owner and keyed by habit id.
// Implementations are safe for concurrent use.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error

	// Habits
	PullHabits(ctx context.Context, owner string) ([]models.Habit, error)
	// PushHabits upserts every record by id. A stored row with a newer
	// updated_at is kept.
	PushHabits(ctx context.Context, owner string, habits []models.Habit) error

	// Sync codes
	PutSyncCode(ctx context.Context, code SyncCode) error
	LookupSyncCode(ctx context.Context, code string, now time.Time) (string, error)
	PurgeExpiredCodes(ctx context.Context, now time.Time) (int, error)
}
