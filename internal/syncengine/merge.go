package syncengine

import (
	"fmt"

	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/models"
)

// Policy selects how two versions of the same habit are reconciled.
type Policy string

const (
	// PolicyRecord keeps the whole record with the later UpdatedAt. Ties keep
	// the local version. Concurrent edits on the losing side are discarded.
	PolicyRecord Policy = "record"
	// PolicyUnionCompletions picks scalar fields as PolicyRecord does but
	// takes the union of both completion sets.
	PolicyUnionCompletions Policy = "union"
)

// ParsePolicy maps a configuration value to a Policy. Empty means PolicyRecord.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyRecord:
		return PolicyRecord, nil
	case PolicyUnionCompletions:
		return PolicyUnionCompletions, nil
	}
	return "", fmt.Errorf("unknown merge policy %q (want %q or %q)", s, PolicyRecord, PolicyUnionCompletions)
}

// Merge reconciles two collections by id. A habit present on one side only
// is kept. Output order is local order followed by remote-only habits in
// remote order. Ids are never rewritten.
func Merge(local, remote []models.Habit, policy Policy) []models.Habit {
	out := make([]models.Habit, 0, len(local)+len(remote))
	pos := make(map[string]int, len(local)+len(remote))

	add := func(h models.Habit) {
		if h.ID == "" {
			return
		}
		if i, ok := pos[h.ID]; ok {
			out[i] = resolve(out[i], h, policy)
			return
		}
		pos[h.ID] = len(out)
		out = append(out, h.Clone())
	}
	for _, h := range local {
		add(h)
	}
	for _, h := range remote {
		add(h)
	}
	return out
}

// MergeFunc adapts Merge to the store's Adopt hook.
func MergeFunc(policy Policy) habits.MergeFunc {
	return func(local, incoming []models.Habit) []models.Habit {
		return Merge(local, incoming, policy)
	}
}

func resolve(local, remote models.Habit, policy Policy) models.Habit {
	winner := local
	if remote.UpdatedAt.After(local.UpdatedAt) {
		winner = remote
	}
	winner = winner.Clone()
	if policy == PolicyUnionCompletions {
		winner.CompletedDates = unionDates(local.CompletedDates, remote.CompletedDates)
	}
	return winner
}

func unionDates(a, b []string) []string {
	if len(b) == 0 {
		return cloneDates(a)
	}
	if len(a) == 0 {
		return cloneDates(b)
	}
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return models.NormalizeDateKeys(all)
}

func cloneDates(d []string) []string {
	if d == nil {
		return nil
	}
	return append(make([]string, 0, len(d)), d...)
}
