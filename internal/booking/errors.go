package booking

import "errors"

var (
	// ErrNotFound covers an unknown booking type, appointment or an
	// id/token pairing that does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the possession token does not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSlotUnavailable is returned when the requested start no longer
	// passes the conflict check at write time. Callers re-fetch slots.
	ErrSlotUnavailable = errors.New("slot no longer available")
	ErrAlreadyCancelled = errors.New("appointment already cancelled")
	// ErrPastAppointment guards reschedules of appointments whose start has
	// already passed.
	ErrPastAppointment = errors.New("appointment is in the past")
	// ErrSlotInPast rejects a new start time at or before now.
	ErrSlotInPast = errors.New("requested time is in the past")
	ErrInvalidConfig = errors.New("booking type has no usable availability")
	// ErrDuplicateSlug means another booking type already owns the slug.
	ErrDuplicateSlug = errors.New("booking type slug already exists")
)
