// Package habits holds the habit record store: the in-memory collection of one
// owner's habits, persisted whole to local storage after every mutation.
package habits

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/utils"
	"github.com/julianstephens/habitcraft/internal/validation"
)

const collectionVersion = 1

// Env is everything a Store needs. Nothing is read from package state, so
// several stores can run side by side.
type Env struct {
	Owner     string
	Storage   storage.Provider
	Clock     utils.Clock
	Location  *time.Location
	MaxHabits int
}

// MergeFunc reconciles the current collection with an incoming one.
type MergeFunc func(local, incoming []models.Habit) []models.Habit

// collection is the persisted form of the store.
type collection struct {
	Version int            `json:"version"`
	Habits  []models.Habit `json:"habits"`
}

// Store is safe for concurrent use. Mutations are applied and persisted in
// call order.
type Store struct {
	env Env

	mu             sync.Mutex
	habits         []models.Habit // insertion order, tombstones included
	index          map[string]int
	lastPersistErr error
}

// NewStore builds an empty store. Call Load to read the persisted collection.
func NewStore(env Env) (*Store, error) {
	if env.Owner == "" {
		return nil, fmt.Errorf("owner must not be empty")
	}
	if env.Storage == nil {
		return nil, fmt.Errorf("storage provider is required")
	}
	if env.Clock == nil {
		env.Clock = utils.SystemClock{}
	}
	if env.Location == nil {
		env.Location = time.Local
	}
	if env.MaxHabits <= 0 {
		env.MaxHabits = constants.DefaultMaxHabits
	}
	return &Store{
		env:   env,
		index: make(map[string]int),
	}, nil
}

// Owner returns the partition key the store persists under.
func (s *Store) Owner() string { return s.env.Owner }

// Location returns the timezone used for calendar-day keys.
func (s *Store) Location() *time.Location { return s.env.Location }

// Today returns today's calendar-day key.
func (s *Store) Today() string {
	return utils.Today(s.env.Clock, s.env.Location)
}

// LastPersistError returns the most recent persistence failure, or nil once a
// later write succeeds.
func (s *Store) LastPersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPersistErr
}

// Load replaces the in-memory collection with the persisted one. An absent
// collection leaves the store empty. An unreadable one returns a
// PersistenceError and also leaves the store empty and usable.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.habits = nil
	s.index = make(map[string]int)

	var c collection
	found, err := storage.GetJSON(ctx, s.env.Storage, s.env.Owner, constants.CollectionHabits, &c)
	if err != nil {
		perr := &errors.PersistenceError{Op: "read", Err: err}
		s.lastPersistErr = perr
		logger.Error("Failed to load habits", "owner", s.env.Owner, "error", err)
		return perr
	}
	if !found {
		logger.Debug("No stored habits", "owner", s.env.Owner)
		return nil
	}

	s.setLocked(c.Habits)
	logger.Debug("Loaded habits", "owner", s.env.Owner, "count", len(s.habits))
	return nil
}

// setLocked installs records, repairing each and keeping the newest copy of
// a duplicated id.
func (s *Store) setLocked(records []models.Habit) {
	s.habits = make([]models.Habit, 0, len(records))
	s.index = make(map[string]int, len(records))
	for _, h := range records {
		if h.ID == "" {
			continue
		}
		h = h.Clone()
		h.Normalize()
		if i, ok := s.index[h.ID]; ok {
			if h.UpdatedAt.After(s.habits[i].UpdatedAt) {
				s.habits[i] = h
			}
			continue
		}
		s.index[h.ID] = len(s.habits)
		s.habits = append(s.habits, h)
	}
}

// persistLocked writes the whole collection. A failure is logged and
// remembered; the in-memory state stays authoritative.
func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(collection{Version: collectionVersion, Habits: s.habits})
	if err == nil {
		err = s.env.Storage.Put(ctx, s.env.Owner, constants.CollectionHabits, raw)
	}
	if err != nil {
		perr := &errors.PersistenceError{Op: "write", Err: err}
		s.lastPersistErr = perr
		logger.Warn("Failed to persist habits", "owner", s.env.Owner, "error", err)
		return perr
	}
	s.lastPersistErr = nil
	return nil
}

// touch bumps UpdatedAt without ever moving it backwards.
func (s *Store) touch(h *models.Habit) time.Time {
	now := s.env.Clock.Now()
	if now.Before(h.UpdatedAt) {
		now = h.UpdatedAt
	}
	h.UpdatedAt = now
	return now
}

func (s *Store) liveCountLocked() int {
	n := 0
	for i := range s.habits {
		if !s.habits[i].IsDeleted() {
			n++
		}
	}
	return n
}

func (s *Store) lookupLocked(id string) (*models.Habit, error) {
	i, ok := s.index[id]
	if !ok || s.habits[i].IsDeleted() {
		return nil, errors.NewNotFound("habit", id)
	}
	return &s.habits[i], nil
}

func normalizeCadence(c constants.Cadence) constants.Cadence {
	switch c {
	case "":
		return constants.DefaultCadence
	case constants.CadenceWeekends:
		return constants.CadenceWeekly
	}
	return c
}

func normalizeWeekdays(cadence constants.Cadence, days []time.Weekday) []time.Weekday {
	if cadence != constants.CadenceCustom {
		return nil
	}
	seen := make(map[time.Weekday]bool, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create validates input and appends a new habit. Off-palette colors fall
// back to the default.
func (s *Store) Create(ctx context.Context, in models.HabitInput) (models.Habit, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Motivation = strings.TrimSpace(in.Motivation)
	if err := validation.ValidateInput(in); err != nil {
		return models.Habit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveCountLocked() >= s.env.MaxHabits {
		return models.Habit{}, errors.NewValidation("", "habit limit of %d reached", s.env.MaxHabits)
	}

	now := s.env.Clock.Now()
	cadence := normalizeCadence(in.Cadence)
	h := models.Habit{
		ID:             uuid.New().String(),
		Title:          in.Title,
		Description:    in.Description,
		Motivation:     in.Motivation,
		Color:          utils.NormalizeColor(in.Color),
		Cadence:        cadence,
		Weekdays:       normalizeWeekdays(cadence, in.Weekdays),
		Goal:           in.Goal,
		CompletedDates: []string{},
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.index[h.ID] = len(s.habits)
	s.habits = append(s.habits, h)
	logger.Debug("Created habit", "owner", s.env.Owner, "id", h.ID, "title", h.Title)

	return h.Clone(), s.persistLocked(ctx)
}

// CreateFromSuggestion creates a habit from an accepted advisor suggestion.
func (s *Store) CreateFromSuggestion(ctx context.Context, sg models.Suggestion) (models.Habit, error) {
	in := sg.Input()
	if !utils.IsKnownCadence(in.Cadence) {
		in.Cadence = constants.DefaultCadence
	}
	return s.Create(ctx, in)
}

// Update applies a patch to a live habit. The result is validated as a whole
// before anything changes.
func (s *Store) Update(ctx context.Context, id string, patch models.HabitPatch) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.lookupLocked(id)
	if err != nil {
		return models.Habit{}, err
	}
	if patch.IsEmpty() {
		return h.Clone(), nil
	}

	in := models.HabitInput{
		Title:       h.Title,
		Description: h.Description,
		Motivation:  h.Motivation,
		Color:       h.Color,
		Cadence:     h.Cadence,
		Weekdays:    h.Weekdays,
		Goal:        h.Goal,
	}
	if patch.Title != nil {
		in.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		in.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Motivation != nil {
		in.Motivation = strings.TrimSpace(*patch.Motivation)
	}
	if patch.Color != nil {
		in.Color = *patch.Color
	}
	if patch.Cadence != nil {
		in.Cadence = *patch.Cadence
	}
	if patch.Weekdays != nil {
		in.Weekdays = patch.Weekdays
	}
	if patch.Goal != nil {
		in.Goal = *patch.Goal
	}
	if err := validation.ValidateInput(in); err != nil {
		return models.Habit{}, err
	}

	cadence := normalizeCadence(in.Cadence)
	h.Title = in.Title
	h.Description = in.Description
	h.Motivation = in.Motivation
	h.Color = utils.NormalizeColor(in.Color)
	h.Cadence = cadence
	h.Weekdays = normalizeWeekdays(cadence, in.Weekdays)
	h.Goal = in.Goal
	s.touch(h)

	return h.Clone(), s.persistLocked(ctx)
}

// Delete tombstones a habit so the deletion replicates on the next sync.
// Deleting an absent or already deleted habit does nothing.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || s.habits[i].IsDeleted() {
		return nil
	}

	h := &s.habits[i]
	now := s.touch(h)
	h.DeletedAt = &now
	logger.Debug("Deleted habit", "owner", s.env.Owner, "id", id)

	return s.persistLocked(ctx)
}

// Restore clears a tombstone.
func (s *Store) Restore(ctx context.Context, id string) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || !s.habits[i].IsDeleted() {
		return models.Habit{}, errors.NewNotFound("deleted habit", id)
	}
	if s.liveCountLocked() >= s.env.MaxHabits {
		return models.Habit{}, errors.NewValidation("", "habit limit of %d reached", s.env.MaxHabits)
	}

	h := &s.habits[i]
	h.DeletedAt = nil
	s.touch(h)

	return h.Clone(), s.persistLocked(ctx)
}

// SetActive pauses or resumes a habit. Paused habits keep their history but
// are never due.
func (s *Store) SetActive(ctx context.Context, id string, active bool) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.lookupLocked(id)
	if err != nil {
		return models.Habit{}, err
	}
	if h.IsActive == active {
		return h.Clone(), nil
	}
	h.IsActive = active
	s.touch(h)

	return h.Clone(), s.persistLocked(ctx)
}

// ToggleCompletion flips day (today when empty) in the habit's completion set
// and reports whether the day is now completed.
func (s *Store) ToggleCompletion(ctx context.Context, id, day string) (bool, error) {
	today := s.Today()
	if day == "" {
		day = today
	}
	if err := validation.ValidateDateKey(day); err != nil {
		return false, err
	}
	if day > today {
		return false, errors.NewValidation("date", "cannot complete %s, it is after today (%s)", day, today)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.lookupLocked(id)
	if err != nil {
		return false, err
	}

	done := !h.IsCompleted(day)
	h.SetCompleted(day, done)
	s.touch(h)
	logger.Debug("Toggled completion", "owner", s.env.Owner, "id", id, "day", day, "done", done)

	return done, s.persistLocked(ctx)
}

// Get returns a live habit by id.
func (s *Store) Get(id string) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.lookupLocked(id)
	if err != nil {
		return models.Habit{}, err
	}
	return h.Clone(), nil
}

// Find resolves a habit by id, unique id prefix, or case-insensitive title.
func (s *Store) Find(ref string) (models.Habit, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Habit{}, errors.NewNotFound("habit", ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, err := s.lookupLocked(ref); err == nil {
		return h.Clone(), nil
	}

	var match *models.Habit
	for i := range s.habits {
		h := &s.habits[i]
		if h.IsDeleted() {
			continue
		}
		if strings.EqualFold(h.Title, ref) || strings.HasPrefix(h.ID, ref) {
			if match != nil {
				return models.Habit{}, errors.NewValidation("habit", "%q matches more than one habit, use the id", ref)
			}
			match = h
		}
	}
	if match == nil {
		return models.Habit{}, errors.NewNotFound("habit", ref)
	}
	return match.Clone(), nil
}

// FindDeleted resolves a tombstoned habit by id, id prefix, or title.
func (s *Store) FindDeleted(ref string) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.habits {
		h := &s.habits[i]
		if !h.IsDeleted() {
			continue
		}
		if h.ID == ref || strings.HasPrefix(h.ID, ref) || strings.EqualFold(h.Title, ref) {
			return h.Clone(), nil
		}
	}
	return models.Habit{}, errors.NewNotFound("deleted habit", ref)
}

// List returns live habits in insertion order.
func (s *Store) List() []models.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Habit, 0, len(s.habits))
	for i := range s.habits {
		if !s.habits[i].IsDeleted() {
			out = append(out, s.habits[i].Clone())
		}
	}
	return out
}

// ListDeleted returns tombstoned habits in insertion order.
func (s *Store) ListDeleted() []models.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Habit
	for i := range s.habits {
		if s.habits[i].IsDeleted() {
			out = append(out, s.habits[i].Clone())
		}
	}
	return out
}

// Snapshot returns every record, tombstones included, for replication.
func (s *Store) Snapshot() []models.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Habit, len(s.habits))
	for i := range s.habits {
		out[i] = s.habits[i].Clone()
	}
	return out
}

// HabitsDueOn returns active live habits whose cadence includes the weekday
// of day, in insertion order.
func (s *Store) HabitsDueOn(day string) ([]models.Habit, error) {
	if err := validation.ValidateDateKey(day); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Habit
	for i := range s.habits {
		h := &s.habits[i]
		if h.IsDeleted() || !h.IsActive {
			continue
		}
		if h.IsDueOn(day) {
			out = append(out, h.Clone())
		}
	}
	return out, nil
}

// Adopt folds incoming records into the current collection with merge and
// persists the result. Merging under the store lock keeps any mutation that
// landed after incoming was computed. Returns the live habits.
func (s *Store) Adopt(ctx context.Context, incoming []models.Habit, merge MergeFunc) ([]models.Habit, error) {
	if merge == nil {
		return nil, fmt.Errorf("merge function is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]models.Habit, len(s.habits))
	for i := range s.habits {
		current[i] = s.habits[i].Clone()
	}
	s.setLocked(merge(current, incoming))

	err := s.persistLocked(ctx)

	out := make([]models.Habit, 0, len(s.habits))
	for i := range s.habits {
		if !s.habits[i].IsDeleted() {
			out = append(out, s.habits[i].Clone())
		}
	}
	return out, err
}
