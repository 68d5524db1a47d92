package utils

import (
	"time"

	"github.com/julianstephens/habitcraft/internal/constants"
)

// CadenceIncludes reports whether a habit with the given cadence is due on
// weekday wd. custom is only consulted for the custom cadence. Unknown
// cadences are treated as daily so a corrupted record is never hidden.
func CadenceIncludes(cadence constants.Cadence, custom []time.Weekday, wd time.Weekday) bool {
	switch cadence {
	case constants.CadenceDaily, "":
		return true
	case constants.CadenceWeekdays:
		return wd >= time.Monday && wd <= time.Friday
	case constants.CadenceWeekly, constants.CadenceWeekends:
		return wd == time.Saturday || wd == time.Sunday
	case constants.CadenceCustom:
		for _, d := range custom {
			if d == wd {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// IsKnownCadence reports whether cadence is one of the supported values.
func IsKnownCadence(cadence constants.Cadence) bool {
	switch cadence {
	case constants.CadenceDaily, constants.CadenceWeekdays, constants.CadenceWeekly,
		constants.CadenceWeekends, constants.CadenceCustom:
		return true
	}
	return false
}

// NormalizeColor returns color when it belongs to the palette and the default
// color otherwise.
func NormalizeColor(color constants.Color) constants.Color {
	for _, c := range constants.Palette {
		if c == color {
			return c
		}
	}
	return constants.DefaultColor
}
