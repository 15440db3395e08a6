package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agencydesk-backend/internal/calendar"
	"agencydesk-backend/internal/schedule"
)

// fakeRepo is an in-memory Repository enforcing the same uniqueness rule as
// the storage index: at most one scheduled appointment per
// (bookingTypeId, startTime).
type fakeRepo struct {
	mu           sync.Mutex
	types        map[string]BookingType
	appointments map[string]Appointment
	blocks       []TimeBlock
	busyErr      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		types:        map[string]BookingType{},
		appointments: map[string]Appointment{},
	}
}

func (r *fakeRepo) GetTypeBySlug(ctx context.Context, slug string) (BookingType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bt := range r.types {
		if bt.Slug == slug {
			return bt, nil
		}
	}
	return BookingType{}, ErrNotFound
}

func (r *fakeRepo) GetTypeByID(ctx context.Context, id string) (BookingType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bt, ok := r.types[id]
	if !ok {
		return BookingType{}, ErrNotFound
	}
	return bt, nil
}

func (r *fakeRepo) ListTypes(ctx context.Context) ([]BookingType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BookingType, 0, len(r.types))
	for _, bt := range r.types {
		out = append(out, bt)
	}
	return out, nil
}

func (r *fakeRepo) CreateType(ctx context.Context, bt BookingType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.types {
		if existing.Slug == bt.Slug {
			return ErrDuplicateSlug
		}
	}
	r.types[bt.ID] = bt
	return nil
}

func (r *fakeRepo) UpdateType(ctx context.Context, bt BookingType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[bt.ID]; !ok {
		return ErrNotFound
	}
	r.types[bt.ID] = bt
	return nil
}

func (r *fakeRepo) DeleteType(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[id]; !ok {
		return ErrNotFound
	}
	delete(r.types, id)
	return nil
}

func (r *fakeRepo) BusyIntervals(ctx context.Context, bookingTypeID string, from, to time.Time, excludeAppointmentID string) ([]schedule.Interval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busyErr != nil {
		return nil, r.busyErr
	}
	var busy []schedule.Interval
	for _, a := range r.appointments {
		if a.BookingTypeID != bookingTypeID || a.Status == StatusCancelled {
			continue
		}
		if a.ID == excludeAppointmentID {
			continue
		}
		if a.StartTime.Before(to) && from.Before(a.EndTime) {
			busy = append(busy, schedule.Interval{Start: a.StartTime, End: a.EndTime})
		}
	}
	for _, b := range r.blocks {
		if b.BookingTypeID != "" && b.BookingTypeID != bookingTypeID {
			continue
		}
		if b.StartTime.Before(to) && from.Before(b.EndTime) {
			busy = append(busy, schedule.Interval{Start: b.StartTime, End: b.EndTime})
		}
	}
	return busy, nil
}

func (r *fakeRepo) InsertAppointment(ctx context.Context, appt Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.BookingTypeID == appt.BookingTypeID && a.Status == StatusScheduled && a.StartTime.Equal(appt.StartTime) {
			return ErrSlotUnavailable
		}
	}
	r.appointments[appt.ID] = appt
	return nil
}

func (r *fakeRepo) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) ListAppointments(ctx context.Context, filter AppointmentFilter, limit, offset int64) ([]Appointment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) CancelAppointment(ctx context.Context, id string, cancelledAt time.Time, reason string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != StatusScheduled {
		return Appointment{}, ErrAlreadyCancelled
	}
	a.Status = StatusCancelled
	a.CancelledAt = &cancelledAt
	a.CancelReason = reason
	r.appointments[id] = a
	return a, nil
}

func (r *fakeRepo) RescheduleAppointment(ctx context.Context, id string, oldStart, newStart, newEnd time.Time) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != StatusScheduled || !a.StartTime.Equal(oldStart) {
		return Appointment{}, ErrSlotUnavailable
	}
	for _, other := range r.appointments {
		if other.ID == id {
			continue
		}
		if other.BookingTypeID == a.BookingTypeID && other.Status == StatusScheduled && other.StartTime.Equal(newStart) {
			return Appointment{}, ErrSlotUnavailable
		}
	}
	prev := a.StartTime
	a.StartTime = newStart
	a.EndTime = newEnd
	a.RescheduledFrom = &prev
	r.appointments[id] = a
	return a, nil
}

func (r *fakeRepo) UpdateAppointmentStatus(ctx context.Context, id, status string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	a.Status = status
	r.appointments[id] = a
	return a, nil
}

func (r *fakeRepo) InsertTimeBlock(ctx context.Context, block TimeBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, block)
	return nil
}

func (r *fakeRepo) DeleteTimeBlock(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.blocks {
		if b.ID == id {
			r.blocks = append(r.blocks[:i], r.blocks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// testNow is a Sunday. 2026-02-02 (the next day) is a Monday.
var testNow = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func testBookingType() BookingType {
	return BookingType{
		ID:              "bt1",
		Slug:            "discovery-call",
		Name:            "Discovery call",
		DurationMinutes: 30,
		Timezone:        "UTC",
		Availability: map[string][]WindowConfig{
			"monday": {{Start: "09:00", End: "12:00"}},
		},
		Active: true,
	}
}

func newTestService(t *testing.T) (*Service, *fakeRepo, BookingType) {
	t.Helper()
	repo := newFakeRepo()
	bt := testBookingType()
	if err := repo.CreateType(context.Background(), bt); err != nil {
		t.Fatalf("seed type: %v", err)
	}
	svc := NewService(repo, calendar.FixedClock{Instant: testNow}, nil)
	return svc, repo, bt
}

func mustCreate(t *testing.T, svc *Service, bt BookingType, start time.Time) Appointment {
	t.Helper()
	appt, err := svc.Create(context.Background(), bt, CreateParams{
		StartTime:  start,
		GuestName:  "Ada Lovelace",
		GuestEmail: "ada@example.com",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return appt
}

func TestCreateBooking(t *testing.T) {
	svc, repo, bt := newTestService(t)
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

	appt := mustCreate(t, svc, bt, start)

	if appt.Status != StatusScheduled {
		t.Fatalf("expected status scheduled, got %q", appt.Status)
	}
	if !appt.StartTime.Equal(start) || !appt.EndTime.Equal(start.Add(30*time.Minute)) {
		t.Fatalf("unexpected interval: %v - %v", appt.StartTime, appt.EndTime)
	}
	if appt.ManageToken == "" {
		t.Fatal("expected a manage token")
	}
	stored, err := repo.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("stored appointment missing: %v", err)
	}
	if stored.GuestEmail != "ada@example.com" {
		t.Fatalf("unexpected stored guest email: %q", stored.GuestEmail)
	}
}

func TestCreateRejectsTakenSlot(t *testing.T) {
	svc, _, bt := newTestService(t)
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	mustCreate(t, svc, bt, start)

	_, err := svc.Create(context.Background(), bt, CreateParams{StartTime: start, GuestName: "B", GuestEmail: "b@example.com"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestCreateRejectsOffGridStart(t *testing.T) {
	svc, _, bt := newTestService(t)
	start := time.Date(2026, 2, 2, 9, 10, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), bt, CreateParams{StartTime: start, GuestName: "B", GuestEmail: "b@example.com"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestCreateRejectsClosedDay(t *testing.T) {
	svc, _, bt := newTestService(t)
	// 2026-02-03 is a Tuesday and availability only covers Monday.
	start := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), bt, CreateParams{StartTime: start, GuestName: "B", GuestEmail: "b@example.com"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestCreateConcurrentSameSlot(t *testing.T) {
	svc, _, bt := newTestService(t)
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

	const guests = 8
	errs := make([]error, guests)
	var wg sync.WaitGroup
	for i := 0; i < guests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), bt, CreateParams{
				StartTime:  start,
				GuestName:  "Guest",
				GuestEmail: "guest@example.com",
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestMonthAvailability(t *testing.T) {
	svc, _, bt := newTestService(t)

	days, err := svc.MonthAvailability(context.Background(), bt, "2026-02")
	if err != nil {
		t.Fatalf("MonthAvailability error: %v", err)
	}
	want := []string{"2026-02-02", "2026-02-09", "2026-02-16", "2026-02-23"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d: %v", len(want), len(days), days)
	}
	for i, d := range want {
		if days[i] != d {
			t.Fatalf("expected day %q at %d, got %q", d, i, days[i])
		}
	}
}

func TestMonthAvailabilityBadConfigDegrades(t *testing.T) {
	svc, _, bt := newTestService(t)
	bt.Availability = map[string][]WindowConfig{"monday": {{Start: "12:00", End: "09:00"}}}

	days, err := svc.MonthAvailability(context.Background(), bt, "2026-02")
	if err != nil {
		t.Fatalf("MonthAvailability error: %v", err)
	}
	if len(days) != 0 {
		t.Fatalf("expected no days for a broken configuration, got %v", days)
	}
}

func TestDayAvailabilityExcludesBookedSlot(t *testing.T) {
	svc, _, bt := newTestService(t)
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	mustCreate(t, svc, bt, start)

	slots, err := svc.DayAvailability(context.Background(), bt, "2026-02-02")
	if err != nil {
		t.Fatalf("DayAvailability error: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("expected 5 open slots, got %d: %v", len(slots), slots)
	}
	for _, s := range slots {
		if s.Equal(start) {
			t.Fatal("booked slot still offered")
		}
	}
	if !slots[0].Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("expected first open slot 09:30, got %v", slots[0])
	}
}

func TestDayAvailabilityFailsClosed(t *testing.T) {
	svc, repo, bt := newTestService(t)
	repo.busyErr = errors.New("storage down")

	_, err := svc.DayAvailability(context.Background(), bt, "2026-02-02")
	if err == nil {
		t.Fatal("expected an error when busy intervals cannot be read")
	}
}

func TestDayAvailabilityHonoursTimeBlock(t *testing.T) {
	svc, repo, bt := newTestService(t)
	repo.blocks = append(repo.blocks, TimeBlock{
		ID:        "blk1",
		StartTime: time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
	})

	slots, err := svc.DayAvailability(context.Background(), bt, "2026-02-02")
	if err != nil {
		t.Fatalf("DayAvailability error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 open slots, got %d: %v", len(slots), slots)
	}
	if !slots[0].Equal(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected first open slot 10:00, got %v", slots[0])
	}
}

func TestDayAvailabilityAppliesBuffer(t *testing.T) {
	svc, _, bt := newTestService(t)
	bt.BufferMinutes = 15
	start := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	mustCreate(t, svc, bt, start)

	slots, err := svc.DayAvailability(context.Background(), bt, "2026-02-02")
	if err != nil {
		t.Fatalf("DayAvailability error: %v", err)
	}
	// 10:00-10:30 padded to 09:45-10:45 removes 09:30, 10:00 and 10:30.
	for _, s := range slots {
		if s.Equal(time.Date(2026, 2, 2, 9, 30, 0, 0, time.UTC)) ||
			s.Equal(start) ||
			s.Equal(time.Date(2026, 2, 2, 10, 30, 0, 0, time.UTC)) {
			t.Fatalf("slot %v should be padded out", s)
		}
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 open slots, got %d: %v", len(slots), slots)
	}
}

func TestCreateHonoursMinNotice(t *testing.T) {
	svc, _, bt := newTestService(t)
	bt.MinNoticeMinutes = 24 * 60

	// 2026-02-02 09:00 is within 24h of the fixed clock (2026-02-01 10:00).
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), bt, CreateParams{StartTime: start, GuestName: "B", GuestEmail: "b@example.com"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	mustCreate(t, svc, bt, time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC))
}

func TestGetRequiresMatchingToken(t *testing.T) {
	svc, _, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))

	got, err := svc.Get(context.Background(), appt.ID, appt.ManageToken)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != appt.ID {
		t.Fatalf("unexpected appointment: %q", got.ID)
	}

	if _, err := svc.Get(context.Background(), appt.ID, "wrong-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a wrong token, got %v", err)
	}
}

func TestCancelIsTerminal(t *testing.T) {
	svc, repo, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))

	cancelled, err := svc.Cancel(context.Background(), appt.ID, appt.ManageToken, "conflict came up")
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled state: %+v", cancelled)
	}
	if cancelled.CancelReason != "conflict came up" {
		t.Fatalf("unexpected reason: %q", cancelled.CancelReason)
	}

	if _, err := svc.Cancel(context.Background(), appt.ID, appt.ManageToken, ""); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	stored, _ := repo.GetAppointment(context.Background(), appt.ID)
	if stored.Status != StatusCancelled {
		t.Fatalf("second cancel changed state to %q", stored.Status)
	}
}

func TestCancelWrongToken(t *testing.T) {
	svc, _, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))

	if _, err := svc.Cancel(context.Background(), appt.ID, "wrong-token", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	svc, _, bt := newTestService(t)
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	appt := mustCreate(t, svc, bt, start)

	if _, err := svc.Cancel(context.Background(), appt.ID, appt.ManageToken, ""); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	slots, err := svc.DayAvailability(context.Background(), bt, "2026-02-02")
	if err != nil {
		t.Fatalf("DayAvailability error: %v", err)
	}
	if !schedule.ContainsSlot(slots, start) {
		t.Fatal("cancelled slot not offered again")
	}
}

func TestReschedule(t *testing.T) {
	svc, _, bt := newTestService(t)
	oldStart := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	newStart := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	appt := mustCreate(t, svc, bt, oldStart)

	moved, err := svc.Reschedule(context.Background(), appt.ID, appt.ManageToken, newStart)
	if err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if !moved.StartTime.Equal(newStart) || !moved.EndTime.Equal(newStart.Add(30*time.Minute)) {
		t.Fatalf("unexpected interval: %v - %v", moved.StartTime, moved.EndTime)
	}
	if moved.RescheduledFrom == nil || !moved.RescheduledFrom.Equal(oldStart) {
		t.Fatalf("previous start not recorded: %v", moved.RescheduledFrom)
	}
	if moved.ID != appt.ID {
		t.Fatalf("reschedule created a new appointment: %q", moved.ID)
	}

	// The old slot is released and the new one is taken.
	slots, err := svc.DayAvailability(context.Background(), bt, "2026-02-02")
	if err != nil {
		t.Fatalf("DayAvailability error: %v", err)
	}
	if !schedule.ContainsSlot(slots, oldStart) {
		t.Fatal("old slot not released")
	}
	if schedule.ContainsSlot(slots, newStart) {
		t.Fatal("new slot still offered")
	}
}

func TestRescheduleRejectsTakenSlot(t *testing.T) {
	svc, _, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
	taken := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	mustCreate(t, svc, bt, taken)

	if _, err := svc.Reschedule(context.Background(), appt.ID, appt.ManageToken, taken); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestRescheduleConcurrentSameTarget(t *testing.T) {
	svc, _, bt := newTestService(t)
	first := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
	second := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 30, 0, 0, time.UTC))
	target := time.Date(2026, 2, 2, 11, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, appt := range []Appointment{first, second} {
		wg.Add(1)
		go func(i int, appt Appointment) {
			defer wg.Done()
			_, errs[i] = svc.Reschedule(context.Background(), appt.ID, appt.ManageToken, target)
		}(i, appt)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one reschedule to win, got %d", wins)
	}
}

func TestRescheduleKeepingOwnSlotAdjacency(t *testing.T) {
	// Moving to the slot right after its own does not conflict with itself.
	svc, _, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))

	if _, err := svc.Reschedule(context.Background(), appt.ID, appt.ManageToken, time.Date(2026, 2, 2, 9, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
}

func TestReschedulePastAppointment(t *testing.T) {
	svc, repo, bt := newTestService(t)
	past := Appointment{
		ID:            "old1",
		BookingTypeID: bt.ID,
		StartTime:     testNow.Add(-2 * time.Hour),
		EndTime:       testNow.Add(-90 * time.Minute),
		Status:        StatusScheduled,
		ManageToken:   "token-old1",
	}
	if err := repo.InsertAppointment(context.Background(), past); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	_, err := svc.Reschedule(context.Background(), past.ID, past.ManageToken, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrPastAppointment) {
		t.Fatalf("expected ErrPastAppointment, got %v", err)
	}
}

func TestRescheduleToPastSlot(t *testing.T) {
	svc, _, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))

	_, err := svc.Reschedule(context.Background(), appt.ID, appt.ManageToken, testNow.Add(-time.Hour))
	if !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("expected ErrSlotInPast, got %v", err)
	}
}

func TestRescheduleCancelledAppointment(t *testing.T) {
	svc, _, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
	if _, err := svc.Cancel(context.Background(), appt.ID, appt.ManageToken, ""); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	_, err := svc.Reschedule(context.Background(), appt.ID, appt.ManageToken, time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestRescheduleWrongToken(t *testing.T) {
	svc, _, bt := newTestService(t)
	appt := mustCreate(t, svc, bt, time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))

	_, err := svc.Reschedule(context.Background(), appt.ID, "wrong-token", time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
