package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/habitcraft/internal/constants"
)

func TestCadenceIncludes(t *testing.T) {
	tests := []struct {
		name    string
		cadence constants.Cadence
		custom  []time.Weekday
		want    map[time.Weekday]bool
	}{
		{
			name:    "daily is due every day",
			cadence: constants.CadenceDaily,
			want: map[time.Weekday]bool{
				time.Sunday: true, time.Monday: true, time.Tuesday: true, time.Wednesday: true,
				time.Thursday: true, time.Friday: true, time.Saturday: true,
			},
		},
		{
			name:    "weekdays is Monday through Friday",
			cadence: constants.CadenceWeekdays,
			want: map[time.Weekday]bool{
				time.Sunday: false, time.Monday: true, time.Tuesday: true, time.Wednesday: true,
				time.Thursday: true, time.Friday: true, time.Saturday: false,
			},
		},
		{
			name:    "weekly covers the weekend",
			cadence: constants.CadenceWeekly,
			want: map[time.Weekday]bool{
				time.Sunday: true, time.Monday: false, time.Friday: false, time.Saturday: true,
			},
		},
		{
			name:    "weekends alias",
			cadence: constants.CadenceWeekends,
			want:    map[time.Weekday]bool{time.Sunday: true, time.Wednesday: false},
		},
		{
			name:    "custom uses the weekday set",
			cadence: constants.CadenceCustom,
			custom:  []time.Weekday{time.Tuesday, time.Thursday},
			want: map[time.Weekday]bool{
				time.Monday: false, time.Tuesday: true, time.Wednesday: false, time.Thursday: true,
			},
		},
		{
			name:    "custom with no days is never due",
			cadence: constants.CadenceCustom,
			want:    map[time.Weekday]bool{time.Monday: false, time.Sunday: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for wd, want := range tt.want {
				if got := CadenceIncludes(tt.cadence, tt.custom, wd); got != want {
					t.Errorf("CadenceIncludes(%s, %v) = %v, want %v", tt.cadence, wd, got, want)
				}
			}
		})
	}
}

func TestIsKnownCadence(t *testing.T) {
	for _, c := range []constants.Cadence{"daily", "weekdays", "weekly", "weekends", "custom"} {
		if !IsKnownCadence(c) {
			t.Errorf("expected %q to be known", c)
		}
	}
	for _, c := range []constants.Cadence{"", "monthly", "DAILY"} {
		if IsKnownCadence(c) {
			t.Errorf("expected %q to be unknown", c)
		}
	}
}

func TestNormalizeColor(t *testing.T) {
	for _, c := range constants.Palette {
		if got := NormalizeColor(c); got != c {
			t.Errorf("NormalizeColor(%s) = %s, want unchanged", c, got)
		}
	}
	for _, c := range []constants.Color{"", "#000000", constants.Color(strings.ToLower(string(constants.ColorBlue)))} {
		if got := NormalizeColor(c); got != constants.DefaultColor {
			t.Errorf("NormalizeColor(%q) = %s, want default", c, got)
		}
	}
}
