package backup

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/habitcraft/internal/habits"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/utils"
)

var exportTime = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

func newHabitStore(t *testing.T, owner string) *habits.Store {
	t.Helper()
	s, err := habits.NewStore(habits.Env{Owner: owner, Storage: storage.NewMemoryStore(), Clock: utils.FixedClock{T: exportTime}, Location: time.UTC})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

// keepNewer is a whole-record newest-wins merge.
func keepNewer(local, incoming []models.Habit) []models.Habit {
	out := append([]models.Habit(nil), local...)
	pos := map[string]int{}
	for i, h := range out {
		pos[h.ID] = i
	}
	for _, h := range incoming {
		if i, ok := pos[h.ID]; ok {
			if h.UpdatedAt.After(out[i].UpdatedAt) {
				out[i] = h
			}
			continue
		}
		pos[h.ID] = len(out)
		out = append(out, h)
	}
	return out
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newHabitStore(t, "local-a")
	h, err := src.Create(ctx, models.HabitInput{Title: "Journal"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.ToggleCompletion(ctx, h.ID, ""); err != nil {
		t.Fatal(err)
	}
	gone, _ := src.Create(ctx, models.HabitInput{Title: "Old habit"})
	if err := src.Delete(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	n, err := WriteExport(&buf, src, exportTime)
	if err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d records, want 2 including the tombstone", n)
	}

	exp, err := ReadExport(&buf)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	if exp.Owner != "local-a" {
		t.Errorf("Owner = %q", exp.Owner)
	}

	dst := newHabitStore(t, "local-b")
	res, err := Import(ctx, dst, exp, keepNewer)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 0 || len(res.Live) != 1 {
		t.Errorf("Import result = %+v", res)
	}
	got, err := dst.Get(h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsCompleted("2025-06-11") {
		t.Error("completion history lost in transfer")
	}
	if _, err := dst.Get(gone.ID); err == nil {
		t.Error("tombstoned habit should stay deleted after import")
	}

	// Importing the same file again does not duplicate anything.
	if _, err := Import(ctx, dst, exp, keepNewer); err != nil {
		t.Fatal(err)
	}
	if len(dst.List()) != 1 {
		t.Errorf("re-import duplicated habits: %d live", len(dst.List()))
	}
}

func TestImportSkipsIncompleteRecords(t *testing.T) {
	exp := Export{Version: 1, Habits: []models.Habit{
		{ID: "", Title: "No id", CreatedAt: exportTime, UpdatedAt: exportTime},
		{ID: "h2", Title: "", CreatedAt: exportTime, UpdatedAt: exportTime},
		{ID: "h3", Title: "Fine", CompletedDates: []string{"bad-date", "2025-06-10"}, IsActive: true, CreatedAt: exportTime, UpdatedAt: exportTime},
	}}
	dst := newHabitStore(t, "local-b")
	res, err := Import(context.Background(), dst, exp, keepNewer)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 || res.Skipped != 2 {
		t.Errorf("Imported=%d Skipped=%d, want 1 and 2", res.Imported, res.Skipped)
	}
	if !res.Report.HasConflicts() {
		t.Error("the validation report should flag the incomplete records")
	}
	h, err := dst.Get("h3")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.CompletedDates) != 1 || h.CompletedDates[0] != "2025-06-10" {
		t.Errorf("CompletedDates = %v, malformed keys should be dropped", h.CompletedDates)
	}
}

func TestReadExportRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"not json":       "hello",
		"future version": `{"version": 99, "habits": []}`,
		"no version":     `{"habits": []}`,
	}
	for name, in := range tests {
		if _, err := ReadExport(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
