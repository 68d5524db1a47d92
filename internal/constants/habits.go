package constants

// Cadence determines which calendar days a habit is due on.
type Cadence string

// Color is one of the fixed palette accents.
type Color string

const (
	CadenceDaily    Cadence = "daily"
	CadenceWeekdays Cadence = "weekdays"
	CadenceWeekly   Cadence = "weekly" // weekend days (Saturday and Sunday)
	CadenceWeekends Cadence = "weekends"
	CadenceCustom   Cadence = "custom"

	ColorGreen  Color = "#4CAF50"
	ColorBlue   Color = "#2196F3"
	ColorOrange Color = "#FF9800"
	ColorPurple Color = "#9C27B0"
	ColorRed    Color = "#F44336"

	DefaultColor   = ColorGreen
	DefaultCadence = CadenceDaily
)

// Palette lists the accepted colors in display order.
var Palette = []Color{ColorGreen, ColorBlue, ColorOrange, ColorPurple, ColorRed}

// ColorNames maps palette colors to display names.
var ColorNames = map[Color]string{
	ColorGreen:  "green",
	ColorBlue:   "blue",
	ColorOrange: "orange",
	ColorPurple: "purple",
	ColorRed:    "red",
}
