package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidTime     = errors.New("invalid time format")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidWindow   = errors.New("invalid availability window")
)

// Window is a working interval within one day, expressed in minutes from
// local midnight. End is exclusive.
type Window struct {
	Start int
	End   int
}

// WeekSchedule maps a weekday to its working windows in the host timezone.
// A missing weekday means the day is closed.
type WeekSchedule map[time.Weekday][]Window

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse("15:04", timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ParseWindow builds a Window from "HH:MM" boundaries.
func ParseWindow(start, end string) (Window, error) {
	startMin, err := ParseClockToMinutes(start)
	if err != nil {
		return Window{}, err
	}
	endMin, err := ParseClockToMinutes(end)
	if err != nil {
		return Window{}, err
	}
	if endMin <= startMin {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: startMin, End: endMin}, nil
}

// HasUsableWindow reports whether any configured window can fit a slot of
// the given duration. A schedule without one yields no availability anywhere.
func HasUsableWindow(ws WeekSchedule, duration int) bool {
	if duration <= 0 {
		return false
	}
	for _, windows := range ws {
		for _, w := range windows {
			if w.End-w.Start >= duration {
				return true
			}
		}
	}
	return false
}

// SlotsForDate returns the candidate slot start instants (UTC) for one
// host-zone calendar date. Slots are generated at a fixed stride equal to the
// duration, and each local wall-clock candidate is converted with the zone
// offset in effect on that specific date, so DST transition days keep their
// configured wall-clock times. Candidates starting at or before now are
// dropped. Output is chronological and deterministic.
func SlotsForDate(dateStr string, ws WeekSchedule, duration int, loc *time.Location, now time.Time) ([]time.Time, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return nil, err
	}

	windows := ws[date.Weekday()]
	slots := make([]time.Time, 0)
	for _, w := range windows {
		for cursor := w.Start; cursor+duration <= w.End; cursor += duration {
			slot := time.Date(date.Year(), date.Month(), date.Day(), cursor/60, cursor%60, 0, 0, loc)
			if !slot.After(now) {
				continue
			}
			slots = append(slots, slot.UTC())
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots, nil
}

// AvailableDays returns the ISO dates within the month (host zone) that hold
// at least one candidate slot. Days already fully in the past are skipped;
// the current day is checked against its remaining slots.
func AvailableDays(year int, month time.Month, ws WeekSchedule, duration int, loc *time.Location, now time.Time) []string {
	if duration <= 0 || !HasUsableWindow(ws, duration) {
		return []string{}
	}

	startToday := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)

	days := make([]string, 0)
	for dayNum := 1; dayNum <= last.Day(); dayNum++ {
		date := time.Date(year, month, dayNum, 0, 0, 0, 0, loc)
		if date.Before(startToday) {
			continue
		}
		dateStr := date.Format("2006-01-02")
		slots, err := SlotsForDate(dateStr, ws, duration, loc, now)
		if err != nil || len(slots) == 0 {
			continue
		}
		days = append(days, dateStr)
	}
	return days
}

// Interval is a half-open [Start, End) busy range on absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Padded widens the interval by bufferMin minutes on both sides.
func (iv Interval) Padded(bufferMin int) Interval {
	if bufferMin <= 0 {
		return iv
	}
	pad := time.Duration(bufferMin) * time.Minute
	return Interval{Start: iv.Start.Add(-pad), End: iv.End.Add(pad)}
}

// Overlaps reports whether two half-open intervals intersect. Back-to-back
// intervals (one ending exactly where the other starts) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// FilterConflicts keeps the candidates whose [slot, slot+duration) does not
// overlap any busy interval.
func FilterConflicts(slots []time.Time, duration int, busy []Interval) []time.Time {
	d := time.Duration(duration) * time.Minute
	filtered := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		current := Interval{Start: s, End: s.Add(d)}
		overlap := false
		for _, b := range busy {
			if Overlaps(current, b) {
				overlap = true
				break
			}
		}
		if !overlap {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// ContainsSlot reports whether t matches one of the candidate starts.
func ContainsSlot(slots []time.Time, t time.Time) bool {
	for _, s := range slots {
		if s.Equal(t) {
			return true
		}
	}
	return false
}
