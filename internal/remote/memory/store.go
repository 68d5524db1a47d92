// Package memory is an in-process remote.Store. It backs tests and lets two
// local stores in one process replicate through a shared value.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/remote"
)

type Store struct {
	mu     sync.Mutex
	habits map[string][]models.Habit // owner -> rows in insertion order
	codes  map[string]remote.SyncCode

	err     error
	initErr error
	delay   time.Duration

	inits  int
	pulls  int
	pushes int
}

func New() *Store {
	return &Store{
		habits: make(map[string][]models.Habit),
		codes:  make(map[string]remote.SyncCode),
	}
}

// SetError makes every call fail with err until it is cleared with nil.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// SetInitError makes Init fail with err until it is cleared with nil.
func (s *Store) SetInitError(err error) {
	s.mu.Lock()
	s.initErr = err
	s.mu.Unlock()
}

// Inits reports how many times Init has been called.
func (s *Store) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

// SetDelay makes every call wait d (or until its context ends) first.
func (s *Store) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Calls reports how many pulls and pushes have been attempted.
func (s *Store) Calls() (pulls, pushes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls, s.pushes
}

// Seed stores rows for owner directly, bypassing the update guard.
func (s *Store) Seed(owner string, habits ...models.Habit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range habits {
		s.upsertLocked(owner, h.Clone(), true)
	}
}

func (s *Store) wait(ctx context.Context) error {
	s.mu.Lock()
	d, err := s.delay, s.err
	s.mu.Unlock()

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return err
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	return s.initErr
}

func (s *Store) Close() error { return nil }

func (s *Store) PullHabits(ctx context.Context, owner string) ([]models.Habit, error) {
	s.mu.Lock()
	s.pulls++
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.habits[owner]
	out := make([]models.Habit, len(rows))
	for i := range rows {
		out[i] = rows[i].Clone()
	}
	return out, nil
}

func (s *Store) PushHabits(ctx context.Context, owner string, habits []models.Habit) error {
	s.mu.Lock()
	s.pushes++
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range habits {
		s.upsertLocked(owner, h.Clone(), false)
	}
	return nil
}

// upsertLocked mirrors the SQL upsert: a stored row with a newer UpdatedAt
// is kept unless force is set.
func (s *Store) upsertLocked(owner string, h models.Habit, force bool) {
	rows := s.habits[owner]
	for i := range rows {
		if rows[i].ID == h.ID {
			if force || !rows[i].UpdatedAt.After(h.UpdatedAt) {
				rows[i] = h
			}
			return
		}
	}
	s.habits[owner] = append(rows, h)
}

func (s *Store) PutSyncCode(ctx context.Context, code remote.SyncCode) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code.Code]; ok {
		return remote.ErrCodeExists
	}
	s.codes[code.Code] = code
	return nil
}

func (s *Store) LookupSyncCode(ctx context.Context, code string, now time.Time) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.codes[code]
	if !ok || !now.Before(sc.ExpiresAt) {
		return "", remote.ErrCodeNotFound
	}
	return sc.Owner, nil
}

func (s *Store) PurgeExpiredCodes(ctx context.Context, now time.Time) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for code, sc := range s.codes {
		if !now.Before(sc.ExpiresAt) {
			delete(s.codes, code)
			n++
		}
	}
	return n, nil
}
