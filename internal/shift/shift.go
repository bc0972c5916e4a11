// Package shift maps timestamps onto the plant's three working shifts.
package shift

import "time"

// Shift names as reported in the history analytics.
const (
	Morning = "Morning"
	Evening = "Evening"
	Night   = "Night"
)

// Boundaries (plant-local hours): morning 06:00-14:00, evening
// 14:00-22:00, night 22:00-06:00 crossing midnight.
const (
	morningStartHour = 6
	eveningStartHour = 14
	nightStartHour   = 22
)

// FromTime returns the shift the given instant falls into, evaluated
// in the supplied plant timezone. A nil location falls back to UTC.
func FromTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	hour := t.Hour()
	switch {
	case hour >= morningStartHour && hour < eveningStartHour:
		return Morning
	case hour >= eveningStartHour && hour < nightStartHour:
		return Evening
	default:
		return Night
	}
}

// TimeRange returns the human-readable hour range for a shift name.
func TimeRange(name string) string {
	switch name {
	case Morning:
		return "Morning (6:00-14:00)"
	case Evening:
		return "Evening (14:00-22:00)"
	case Night:
		return "Night (22:00-6:00)"
	}
	return name
}

// Order lists the shifts in reporting order.
func Order() []string {
	return []string{Morning, Evening, Night}
}
