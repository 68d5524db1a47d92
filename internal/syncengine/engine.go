// Package syncengine reconciles a habit store with its owner's remote
// collection using last-writer-wins, on demand and on a timer.
package syncengine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/remote"
	"github.com/julianstephens/habitcraft/internal/utils"
)

var (
	// ErrStopped is returned by Sync and Start after Stop.
	ErrStopped = stderrors.New("sync engine stopped")
	// ErrAlreadyRunning is returned by a second Start.
	ErrAlreadyRunning = stderrors.New("sync engine already running")
	// ErrNoRemote means no remote store is configured.
	ErrNoRemote = stderrors.New("no remote store configured")
)

// State is the phase of the current sync attempt.
type State int32

const (
	StateIdle State = iota
	StatePulling
	StateMerging
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StatePulling:
		return "pulling"
	case StateMerging:
		return "merging"
	case StatePersisting:
		return "persisting"
	default:
		return "idle"
	}
}

// Status is the soft indicator shown to the user.
type Status struct {
	State       State
	Online      bool
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   string
	Habits      int
}

// Result is the outcome of one background sync.
type Result struct {
	Habits int
	Err    error
	At     time.Time
}

// Config wires an Engine. Store and Policy are required; a nil Remote makes
// every sync local-only.
type Config struct {
	Store    *habits.Store
	Remote   remote.Store
	Interval time.Duration
	Timeout  time.Duration
	Policy   Policy
	Clock    utils.Clock
}

type Engine struct {
	store    *habits.Store
	remote   remote.Store
	interval time.Duration
	timeout  time.Duration
	policy   Policy
	clock    utils.Clock

	group   singleflight.Group
	state   atomic.Int32
	updates chan Result

	// base is cancelled by Stop and bounds every attempt.
	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex // guards the fields below and serializes Adopt against Stop
	status  Status
	stopped bool
	running bool
	wg      sync.WaitGroup
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	policy, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultSyncInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultSyncTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = utils.SystemClock{}
	}

	base, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:      cfg.Store,
		remote:     cfg.Remote,
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
		policy:     policy,
		clock:      cfg.Clock,
		updates:    make(chan Result, 1),
		base:       base,
		cancelBase: cancel,
	}, nil
}

// State returns the phase of the attempt in flight, or StateIdle.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Updates delivers the outcome of each background sync. A result nobody has
// read yet is replaced by the next one. Stop closes the channel.
func (e *Engine) Updates() <-chan Result {
	return e.updates
}

// Status returns a copy of the last recorded outcome.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.status
	st.State = e.State()
	return st
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

func (e *Engine) recordFailure(op string, err error) {
	logger.Warn("Sync "+op+" failed", "owner", e.store.Owner(), "error", err)
	e.mu.Lock()
	e.status.Online = false
	e.status.LastError = fmt.Sprintf("%s: %v", op, err)
	e.mu.Unlock()
}

func (e *Engine) pull(ctx context.Context, owner string) ([]models.Habit, error) {
	if e.remote == nil {
		return nil, ErrNoRemote
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.remote.PullHabits(ctx, owner)
}

// PullRemote fetches owner's remote collection. It never fails: when the
// remote cannot be reached in time it returns the local snapshot instead and
// marks the engine offline.
func (e *Engine) PullRemote(ctx context.Context, owner string) []models.Habit {
	rows, err := e.pull(ctx, owner)
	if err != nil {
		e.recordFailure("pull", err)
		return e.store.Snapshot()
	}
	return rows
}

// PushLocal upserts habits into owner's remote collection. Failures are
// logged and recorded in Status; local state is never rolled back.
func (e *Engine) PushLocal(ctx context.Context, owner string, habits []models.Habit) error {
	if e.remote == nil {
		return &errors.RemoteUnavailableError{Op: "push", Err: ErrNoRemote}
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.remote.PushHabits(ctx, owner, habits); err != nil {
		e.recordFailure("push", err)
		return &errors.RemoteUnavailableError{Op: "push", Err: err}
	}
	return nil
}

// Sync pulls the remote collection, merges it with the store, persists the
// result locally and pushes it back. It always returns the store's live
// habits. A non-nil error is soft: *errors.RemoteUnavailableError when the
// attempt fell back to local-only, or *errors.PersistenceError when the local
// write failed. A call made while another is in flight shares its outcome.
func (e *Engine) Sync(ctx context.Context) ([]models.Habit, error) {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return e.store.List(), ErrStopped
	}

	owner := e.store.Owner()
	ch := e.group.DoChan(owner, func() (any, error) {
		return e.syncOnce(owner)
	})

	select {
	case <-ctx.Done():
		return e.store.List(), ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Debug("Joined in-flight sync", "owner", owner)
		}
		live, _ := res.Val.([]models.Habit)
		out := make([]models.Habit, len(live))
		for i := range live {
			out[i] = live[i].Clone()
		}
		return out, res.Err
	}
}

func (e *Engine) syncOnce(owner string) ([]models.Habit, error) {
	ctx, cancel := context.WithTimeout(e.base, e.timeout)
	defer cancel()
	defer e.setState(StateIdle)

	start := e.clock.Now()
	e.mu.Lock()
	e.status.LastAttempt = start
	e.mu.Unlock()

	e.setState(StatePulling)
	remoteHabits, err := e.pull(ctx, owner)
	if err != nil {
		e.recordFailure("pull", err)
		return e.store.List(), &errors.RemoteUnavailableError{Op: "pull", Err: err}
	}

	e.setState(StateMerging)
	merged := Merge(e.store.Snapshot(), remoteHabits, e.policy)

	e.setState(StatePersisting)
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return e.store.List(), ErrStopped
	}
	// The local write must not be cut short by the remote deadline.
	live, perr := e.store.Adopt(context.WithoutCancel(ctx), merged, MergeFunc(e.policy))
	e.mu.Unlock()

	if err := e.PushLocal(ctx, owner, e.store.Snapshot()); err != nil {
		return live, err
	}

	e.mu.Lock()
	e.status.Online = true
	e.status.LastSuccess = e.clock.Now()
	e.status.LastError = ""
	e.status.Habits = len(live)
	e.mu.Unlock()

	logger.Debug("Sync complete", "owner", owner, "habits", len(live), "remote", len(remoteHabits),
		"took", time.Since(start))
	if perr != nil {
		return live, perr
	}
	return live, nil
}

// Start runs one sync immediately and then one per interval until ctx ends or
// Stop is called. A slow sync delays the next tick instead of queueing more.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true

	e.wg.Add(1)
	go e.loop(ctx)
	return nil
}

// Running reports whether the background loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.base.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	live, err := e.Sync(ctx)
	if stderrors.Is(err, ErrStopped) || ctx.Err() != nil || e.base.Err() != nil {
		return
	}
	if err != nil {
		logger.Debug("Background sync incomplete", "owner", e.store.Owner(), "error", err)
	}
	e.publish(Result{Habits: len(live), Err: err, At: e.clock.Now()})
}

func (e *Engine) publish(r Result) {
	select {
	case e.updates <- r:
		return
	default:
	}
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- r:
	default:
	}
}

// Stop cancels any attempt in flight and waits for the background loop to
// exit. After Stop returns the engine never mutates the store again.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.cancelBase()
	e.mu.Unlock()

	e.wg.Wait()
	close(e.updates)
}
