package calendar

import (
	"time"
)

// FormatStyle selects how FormatInstant renders an instant.
type FormatStyle int

const (
	StyleDate FormatStyle = iota
	StyleTime
	StyleDateTime
)

// DaysInMonth returns the number of days in the given month and the weekday
// index (0 = Sunday) of its first day. Month follows time.Month numbering.
func DaysInMonth(year int, month time.Month) (count int, firstWeekday int) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month normalizes to the last day of this one,
	// which also absorbs the December -> January rollover.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return last.Day(), int(first.Weekday())
}

// FormatInstant renders an absolute instant in the given IANA zone. An
// unloadable zone falls back to returning the zone identifier itself so
// display code never has to handle an error.
func FormatInstant(t time.Time, zone string, style FormatStyle) string {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return zone
	}
	local := t.In(loc)
	switch style {
	case StyleDate:
		return local.Format("2006-01-02")
	case StyleTime:
		return local.Format("15:04")
	default:
		return local.Format("2006-01-02 15:04 MST")
	}
}

// DetectLocalZone reports the environment's configured zone as a loadable
// IANA name, falling back to UTC when only an abbreviation is known. It is a
// display and configuration default only; slot math always runs on absolute
// instants.
func DetectLocalZone() string {
	if loc := time.Local; loc != nil && loc.String() != "Local" {
		return loc.String()
	}
	return "UTC"
}
