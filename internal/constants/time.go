package constants

const (
	// DateFormat is the calendar-day key format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// DefaultTimezone uses the system local timezone
	DefaultTimezone = "Local"
)
