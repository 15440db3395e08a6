package schedule

import (
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func weekdaySchedule(days []time.Weekday, start, end string) WeekSchedule {
	w, err := ParseWindow(start, end)
	if err != nil {
		panic(err)
	}
	ws := WeekSchedule{}
	for _, d := range days {
		ws[d] = []Window{w}
	}
	return ws
}

func TestSlotsForDateWeekday(t *testing.T) {
	loc := mustLoadLoc(t, "Africa/Kinshasa")
	ws := weekdaySchedule([]time.Weekday{time.Monday}, "09:00", "12:00")

	// 2026-02-02 is a Monday.
	slots, err := SlotsForDate("2026-02-02", ws, 45, loc, time.Time{})
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	first := slots[0].In(loc)
	last := slots[len(slots)-1].In(loc)
	if first.Format("15:04") != "09:00" || last.Format("15:04") != "11:15" {
		t.Fatalf("unexpected boundary slots: %v .. %v", first, last)
	}
}

func TestSlotsForDateClosedDay(t *testing.T) {
	loc := mustLoadLoc(t, "Africa/Kinshasa")
	ws := weekdaySchedule([]time.Weekday{time.Monday}, "09:00", "12:00")

	// 2026-02-01 is a Sunday, not configured.
	slots, err := SlotsForDate("2026-02-01", ws, 45, loc, time.Time{})
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots, got %d", len(slots))
	}
}

func TestSlotsForDateWindowTooShort(t *testing.T) {
	loc := mustLoadLoc(t, "Africa/Kinshasa")
	ws := weekdaySchedule([]time.Weekday{time.Monday}, "09:00", "09:20")

	slots, err := SlotsForDate("2026-02-02", ws, 30, loc, time.Time{})
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots for undersized window, got %d", len(slots))
	}
}

func TestSlotsForDateDeterministic(t *testing.T) {
	loc := mustLoadLoc(t, "Europe/Paris")
	ws := weekdaySchedule([]time.Weekday{time.Monday, time.Tuesday}, "09:00", "17:00")
	now := time.Date(2026, 2, 2, 7, 0, 0, 0, loc)

	a, err := SlotsForDate("2026-02-03", ws, 30, loc, now)
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	b, err := SlotsForDate("2026-02-03", ws, 30, loc, now)
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic slot count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("non-deterministic slot at %d: %v vs %v", i, a[i], b[i])
		}
	}
	for i := 1; i < len(a); i++ {
		if !a[i].After(a[i-1]) {
			t.Fatalf("slots not strictly ascending at %d: %v", i, a)
		}
	}
}

func TestSlotsForDatePastExclusion(t *testing.T) {
	loc := mustLoadLoc(t, "Africa/Kinshasa")
	ws := weekdaySchedule([]time.Weekday{time.Wednesday}, "09:00", "17:00")

	// now is 14:30 on the requested day; the 14:00 and 14:30 starts are gone,
	// 15:00 onward remain.
	now := time.Date(2026, 2, 4, 14, 30, 0, 0, loc)
	slots, err := SlotsForDate("2026-02-04", ws, 30, loc, now)
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatalf("expected remaining slots")
	}
	if got := slots[0].In(loc).Format("15:04"); got != "15:00" {
		t.Fatalf("expected first remaining slot 15:00, got %s", got)
	}
}

func TestSlotsForDateDSTTransition(t *testing.T) {
	loc := mustLoadLoc(t, "America/New_York")
	ws := weekdaySchedule([]time.Weekday{time.Sunday}, "09:00", "17:00")

	// 2026-03-08 is the spring-forward date in America/New_York.
	slots, err := SlotsForDate("2026-03-08", ws, 60, loc, time.Time{})
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for i, s := range slots {
		local := s.In(loc)
		want := MinutesToClock(9*60 + i*60)
		if local.Format("15:04") != want {
			t.Fatalf("slot %d has wall-clock %s, want %s", i, local.Format("15:04"), want)
		}
	}
	// The transition day runs on EDT: 09:00 local must be 13:00 UTC, not the
	// 14:00 UTC a cached winter offset would produce.
	if slots[0].Hour() != 13 {
		t.Fatalf("expected first slot at 13:00 UTC, got %s", slots[0].Format(time.RFC3339))
	}
}

func TestAvailableDaysSkipsClosedAndPast(t *testing.T) {
	loc := mustLoadLoc(t, "Africa/Kinshasa")
	ws := weekdaySchedule([]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, "09:00", "12:00")
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, loc)

	days := AvailableDays(2026, time.February, ws, 45, loc, now)
	if len(days) == 0 {
		t.Fatalf("expected available days")
	}
	if days[0] != "2026-02-10" {
		t.Fatalf("expected first day 2026-02-10, got %s", days[0])
	}
	for _, d := range days {
		date, err := ParseDate(d, loc)
		if err != nil {
			t.Fatalf("ParseDate error: %v", err)
		}
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekend date %s should not be available", d)
		}
	}
}

func TestAvailableDaysNoUsableWindow(t *testing.T) {
	loc := mustLoadLoc(t, "Africa/Kinshasa")
	ws := weekdaySchedule([]time.Weekday{time.Monday}, "09:00", "09:20")

	days := AvailableDays(2026, time.February, ws, 45, loc, time.Date(2026, 2, 1, 0, 0, 0, 0, loc))
	if len(days) != 0 {
		t.Fatalf("expected no available days, got %v", days)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	a := Interval{Start: base, End: base.Add(30 * time.Minute)}
	backToBack := Interval{Start: base.Add(30 * time.Minute), End: base.Add(60 * time.Minute)}
	overlapping := Interval{Start: base.Add(15 * time.Minute), End: base.Add(45 * time.Minute)}

	if Overlaps(a, backToBack) {
		t.Fatalf("back-to-back intervals must not overlap")
	}
	if !Overlaps(a, overlapping) {
		t.Fatalf("expected overlap")
	}
}

func TestFilterConflictsBackToBack(t *testing.T) {
	base := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	slots := []time.Time{base, base.Add(30 * time.Minute), base.Add(60 * time.Minute)}
	busy := []Interval{{Start: base, End: base.Add(30 * time.Minute)}}

	filtered := FilterConflicts(slots, 30, busy)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(filtered))
	}
	if !filtered[0].Equal(base.Add(30 * time.Minute)) {
		t.Fatalf("slot starting at a busy interval's end must survive: %v", filtered)
	}
}

func TestDubaiScenario(t *testing.T) {
	loc := mustLoadLoc(t, "Asia/Dubai")
	ws := weekdaySchedule([]time.Weekday{time.Monday}, "09:00", "10:00")

	// 2026-03-02 is a Monday. One appointment occupies 09:00-09:30 local.
	busyStart := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	busy := []Interval{{Start: busyStart.UTC(), End: busyStart.Add(30 * time.Minute).UTC()}}

	slots, err := SlotsForDate("2026-03-02", ws, 30, loc, time.Time{})
	if err != nil {
		t.Fatalf("SlotsForDate error: %v", err)
	}
	open := FilterConflicts(slots, 30, busy)
	if len(open) != 1 {
		t.Fatalf("expected exactly one open slot, got %d: %v", len(open), open)
	}
	if got := open[0].In(loc).Format("15:04"); got != "09:30" {
		t.Fatalf("expected 09:30 local, got %s", got)
	}
}

func TestPaddedInterval(t *testing.T) {
	base := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	iv := Interval{Start: base, End: base.Add(30 * time.Minute)}

	padded := iv.Padded(10)
	if !padded.Start.Equal(base.Add(-10 * time.Minute)) {
		t.Fatalf("unexpected padded start: %v", padded.Start)
	}
	if !padded.End.Equal(base.Add(40 * time.Minute)) {
		t.Fatalf("unexpected padded end: %v", padded.End)
	}
	if unchanged := iv.Padded(0); !unchanged.Start.Equal(iv.Start) || !unchanged.End.Equal(iv.End) {
		t.Fatalf("zero buffer must not change the interval")
	}
}

func TestParseWindowRejectsInverted(t *testing.T) {
	if _, err := ParseWindow("12:00", "09:00"); err != ErrInvalidWindow {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := ParseWindow("9am", "17:00"); err != ErrInvalidTime {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}
