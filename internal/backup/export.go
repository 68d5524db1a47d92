package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/validation"
)

// Export is the portable form of one owner's collection, tombstones included.
type Export struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Owner      string         `json:"owner"`
	Habits     []models.Habit `json:"habits"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int
	Skipped  int
	Report   validation.ValidationResult
	Live     []models.Habit
}

// WriteExport writes the store's full collection as indented JSON.
func WriteExport(w io.Writer, store *habits.Store, now time.Time) (int, error) {
	exp := Export{
		Version:    constants.ExportVersion,
		ExportedAt: now.UTC(),
		Owner:      store.Owner(),
		Habits:     store.Snapshot(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exp); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	return len(exp.Habits), nil
}

// ReadExport decodes and checks an export.
func ReadExport(r io.Reader) (Export, error) {
	var exp Export
	dec := json.NewDecoder(r)
	if err := dec.Decode(&exp); err != nil {
		return Export{}, fmt.Errorf("failed to parse export: %w", err)
	}
	if exp.Version < 1 || exp.Version > constants.ExportVersion {
		return Export{}, fmt.Errorf("unsupported export version %d (supported: 1..%d)", exp.Version, constants.ExportVersion)
	}
	return exp, nil
}

// Import merges an export into store with merge, the same way a sync does.
// Records without an id or title are skipped. Records whose id already
// exists are reconciled by merge rather than duplicated.
func Import(ctx context.Context, store *habits.Store, exp Export, merge habits.MergeFunc) (ImportResult, error) {
	res := ImportResult{Report: validation.ValidateHabits(exp.Habits, store.Today())}

	keep := make([]models.Habit, 0, len(exp.Habits))
	for _, h := range exp.Habits {
		if h.ID == "" || h.Title == "" {
			res.Skipped++
			continue
		}
		h.Normalize()
		keep = append(keep, h)
	}
	res.Imported = len(keep)

	live, err := store.Adopt(ctx, keep, merge)
	res.Live = live
	return res, err
}
