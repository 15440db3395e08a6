package booking

import (
	"context"
	"strings"
	"time"

	"agencydesk-backend/internal/calendar"
	"agencydesk-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier delivers the lifecycle emails. Delivery is best-effort and runs
// after the state transition has committed; failures never roll it back.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, appt Appointment, bt BookingType, manageURL string) (string, error)
	SendBookingCancellation(ctx context.Context, appt Appointment, bt BookingType) (string, error)
	SendBookingReschedule(ctx context.Context, appt Appointment, bt BookingType, previousStart time.Time) (string, error)
}

// CreateParams carries the validated guest input for a new appointment.
type CreateParams struct {
	StartTime     time.Time
	GuestName     string
	GuestEmail    string
	GuestPhone    string
	GuestCompany  string
	Notes         string
	GuestTimezone string
}

// Service implements the booking state machine and the availability queries
// behind the public flow. All time arithmetic goes through the injected
// clock so past-slot and DST edges are testable.
type Service struct {
	repo     Repository
	clock    calendar.Clock
	notifier Notifier
}

func NewService(repo Repository, clock calendar.Clock, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		clock:    clock,
		notifier: notifier,
	}
}

func (s *Service) TypeBySlug(ctx context.Context, slug string) (BookingType, error) {
	return s.repo.GetTypeBySlug(ctx, strings.TrimSpace(slug))
}

// bookingBound is the earliest instant a guest may book: now plus the booking
// type's minimum notice period.
func bookingBound(bt BookingType, now time.Time) time.Time {
	if bt.MinNoticeMinutes > 0 {
		return now.Add(time.Duration(bt.MinNoticeMinutes) * time.Minute)
	}
	return now
}

// MonthAvailability returns the host-zone ISO dates within monthStr
// ("YYYY-MM") holding at least one candidate slot. A configuration without a
// usable window degrades to an empty list.
func (s *Service) MonthAvailability(ctx context.Context, bt BookingType, monthStr string) ([]string, error) {
	month, err := time.Parse("2006-01", monthStr)
	if err != nil {
		return nil, schedule.ErrInvalidDate
	}
	loc, err := bt.Location()
	if err != nil {
		return nil, ErrInvalidConfig
	}
	ws, err := bt.WeekSchedule()
	if err != nil {
		return []string{}, nil
	}
	bound := bookingBound(bt, s.clock.Now())
	return schedule.AvailableDays(month.Year(), month.Month(), ws, bt.DurationMinutes, loc, bound), nil
}

// DayAvailability resolves the open slot instants (UTC) for one host-zone
// date: resolver candidates minus conflicts with existing appointments and
// time blocks. A storage failure fails closed — the error propagates and no
// unfiltered candidates are ever returned.
func (s *Service) DayAvailability(ctx context.Context, bt BookingType, dateStr string) ([]time.Time, error) {
	loc, err := bt.Location()
	if err != nil {
		return nil, ErrInvalidConfig
	}
	ws, err := bt.WeekSchedule()
	if err != nil {
		return []time.Time{}, nil
	}

	bound := bookingBound(bt, s.clock.Now())
	candidates, err := schedule.SlotsForDate(dateStr, ws, bt.DurationMinutes, loc, bound)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	busy, err := s.busyAround(ctx, bt, candidates[0], candidates[len(candidates)-1].Add(time.Duration(bt.DurationMinutes)*time.Minute), "")
	if err != nil {
		return nil, err
	}
	return schedule.FilterConflicts(candidates, bt.DurationMinutes, busy), nil
}

// busyAround loads the busy intervals overlapping [from, to), widened by the
// booking type's buffer on both the query range and the returned intervals.
func (s *Service) busyAround(ctx context.Context, bt BookingType, from, to time.Time, excludeAppointmentID string) ([]schedule.Interval, error) {
	pad := time.Duration(bt.BufferMinutes) * time.Minute
	busy, err := s.repo.BusyIntervals(ctx, bt.ID, from.Add(-pad), to.Add(pad), excludeAppointmentID)
	if err != nil {
		return nil, err
	}
	if bt.BufferMinutes > 0 {
		for i := range busy {
			busy[i] = busy[i].Padded(bt.BufferMinutes)
		}
	}
	return busy, nil
}

// validateSlot re-runs the resolver and conflict filter for the exact start
// the caller wants, at the moment of write. This is the first half of the
// race guard; the storage unique index is the second.
func (s *Service) validateSlot(ctx context.Context, bt BookingType, start time.Time, excludeAppointmentID string) error {
	loc, err := bt.Location()
	if err != nil {
		return ErrInvalidConfig
	}
	ws, err := bt.WeekSchedule()
	if err != nil {
		return ErrSlotUnavailable
	}

	bound := bookingBound(bt, s.clock.Now())
	dateStr := start.In(loc).Format("2006-01-02")
	candidates, err := schedule.SlotsForDate(dateStr, ws, bt.DurationMinutes, loc, bound)
	if err != nil {
		return err
	}
	if !schedule.ContainsSlot(candidates, start) {
		return ErrSlotUnavailable
	}

	end := start.Add(time.Duration(bt.DurationMinutes) * time.Minute)
	busy, err := s.busyAround(ctx, bt, start, end, excludeAppointmentID)
	if err != nil {
		return err
	}
	candidate := schedule.Interval{Start: start, End: end}
	for _, b := range busy {
		if schedule.Overlaps(candidate, b) {
			return ErrSlotUnavailable
		}
	}
	return nil
}

// Create books a slot for a guest. The slot is re-validated at write time and
// the insert races through the unique (bookingTypeId, startTime) index, so at
// most one of two concurrent guests wins; the loser gets ErrSlotUnavailable.
func (s *Service) Create(ctx context.Context, bt BookingType, params CreateParams) (Appointment, error) {
	start := params.StartTime.UTC().Truncate(time.Minute)
	if err := s.validateSlot(ctx, bt, start, ""); err != nil {
		return Appointment{}, err
	}

	now := s.clock.Now().UTC()
	appt := Appointment{
		ID:            primitive.NewObjectID().Hex(),
		BookingTypeID: bt.ID,
		StartTime:     start,
		EndTime:       start.Add(time.Duration(bt.DurationMinutes) * time.Minute),
		Status:        StatusScheduled,
		GuestName:     strings.TrimSpace(params.GuestName),
		GuestEmail:    strings.TrimSpace(params.GuestEmail),
		GuestPhone:    strings.TrimSpace(params.GuestPhone),
		GuestCompany:  strings.TrimSpace(params.GuestCompany),
		Notes:         strings.TrimSpace(params.Notes),
		GuestTimezone: strings.TrimSpace(params.GuestTimezone),
		ManageToken:   NewManageToken(),
		CreatedAt:     now,
	}

	if err := s.repo.InsertAppointment(ctx, appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

// Get returns the appointment when the possession token matches. A wrong
// token is indistinguishable from a missing appointment.
func (s *Service) Get(ctx context.Context, id, token string) (Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, strings.TrimSpace(id))
	if err != nil {
		return Appointment{}, err
	}
	if !TokenMatches(appt.ManageToken, token) {
		return Appointment{}, ErrNotFound
	}
	return appt, nil
}

// Cancel is terminal: a cancelled appointment never leaves that state, and a
// second cancel reports ErrAlreadyCancelled instead of silently succeeding.
func (s *Service) Cancel(ctx context.Context, id, token, reason string) (Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, strings.TrimSpace(id))
	if err != nil {
		return Appointment{}, err
	}
	if !TokenMatches(appt.ManageToken, token) {
		return Appointment{}, ErrUnauthorized
	}
	if appt.Status == StatusCancelled {
		return Appointment{}, ErrAlreadyCancelled
	}

	return s.repo.CancelAppointment(ctx, appt.ID, s.clock.Now().UTC(), strings.TrimSpace(reason))
}

// Reschedule moves a scheduled appointment to a new start, keeping the same
// logical booking and recording the prior start for audit. Validation and the
// conditional update mirror Create's race guard.
func (s *Service) Reschedule(ctx context.Context, id, token string, newStart time.Time) (Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, strings.TrimSpace(id))
	if err != nil {
		return Appointment{}, err
	}
	if !TokenMatches(appt.ManageToken, token) {
		return Appointment{}, ErrUnauthorized
	}
	if appt.Status == StatusCancelled {
		return Appointment{}, ErrAlreadyCancelled
	}

	now := s.clock.Now()
	if !appt.StartTime.After(now) {
		return Appointment{}, ErrPastAppointment
	}
	start := newStart.UTC().Truncate(time.Minute)
	if !start.After(now) {
		return Appointment{}, ErrSlotInPast
	}

	bt, err := s.repo.GetTypeByID(ctx, appt.BookingTypeID)
	if err != nil {
		return Appointment{}, err
	}
	if err := s.validateSlot(ctx, bt, start, appt.ID); err != nil {
		return Appointment{}, err
	}

	end := start.Add(time.Duration(bt.DurationMinutes) * time.Minute)
	return s.repo.RescheduleAppointment(ctx, appt.ID, appt.StartTime, start, end)
}

// Notification helpers, called by the handler after a transition commits.

func (s *Service) NotifyConfirmation(ctx context.Context, appt Appointment, bt BookingType, manageURL string) error {
	if s.notifier == nil {
		return nil
	}
	_, err := s.notifier.SendBookingConfirmation(ctx, appt, bt, manageURL)
	return err
}

func (s *Service) NotifyCancellation(ctx context.Context, appt Appointment, bt BookingType) error {
	if s.notifier == nil {
		return nil
	}
	_, err := s.notifier.SendBookingCancellation(ctx, appt, bt)
	return err
}

func (s *Service) NotifyReschedule(ctx context.Context, appt Appointment, bt BookingType, previousStart time.Time) error {
	if s.notifier == nil {
		return nil
	}
	_, err := s.notifier.SendBookingReschedule(ctx, appt, bt, previousStart)
	return err
}
