package booking

import (
	"time"

	"agencydesk-backend/internal/schedule"
)

const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func IsValidWeekday(name string) bool {
	_, ok := weekdayNames[name]
	return ok
}

// WindowConfig is one working window of a weekday, as stored and exposed.
type WindowConfig struct {
	Start string `bson:"start" json:"start"`
	End   string `bson:"end" json:"end"`
}

// BookingType is a bookable service definition. It is read-only input for
// slot computation; editing happens through the admin surface.
type BookingType struct {
	ID              string                    `bson:"_id,omitempty" json:"id"`
	Slug            string                    `bson:"slug" json:"slug"`
	Name            string                    `bson:"name" json:"name"`
	Description     string                    `bson:"description" json:"description"`
	Color           string                    `bson:"color,omitempty" json:"color,omitempty"`
	DurationMinutes int                       `bson:"durationMinutes" json:"durationMinutes"`
	Timezone        string                    `bson:"timezone" json:"timezone"`
	Availability    map[string][]WindowConfig `bson:"availability" json:"availability"`
	BufferMinutes   int                       `bson:"bufferMinutes,omitempty" json:"bufferMinutes,omitempty"`
	MinNoticeMinutes int                      `bson:"minNoticeMinutes,omitempty" json:"minNoticeMinutes,omitempty"`
	HostName        string                    `bson:"hostName,omitempty" json:"hostName,omitempty"`
	HostEmail       string                    `bson:"hostEmail,omitempty" json:"hostEmail,omitempty"`
	Active          bool                      `bson:"active" json:"active"`
	CreatedAt       time.Time                 `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time                 `bson:"updatedAt" json:"updatedAt"`
}

// Location loads the booking type's host timezone.
func (bt BookingType) Location() (*time.Location, error) {
	return time.LoadLocation(bt.Timezone)
}

// WeekSchedule converts the stored availability configuration into the
// resolver's representation. Unknown weekday keys and malformed windows are
// rejected so a broken configuration degrades to "no availability" instead of
// producing wrong slots.
func (bt BookingType) WeekSchedule() (schedule.WeekSchedule, error) {
	ws := schedule.WeekSchedule{}
	for name, windows := range bt.Availability {
		weekday, ok := weekdayNames[name]
		if !ok {
			return nil, schedule.ErrInvalidWindow
		}
		for _, wc := range windows {
			w, err := schedule.ParseWindow(wc.Start, wc.End)
			if err != nil {
				return nil, err
			}
			ws[weekday] = append(ws[weekday], w)
		}
	}
	return ws, nil
}

// Appointment is a scheduled meeting instance. StartTime and EndTime are
// absolute UTC instants; EndTime is always StartTime plus the booking type's
// duration at creation time. The manage token is the guest's only credential
// and never leaves the server except inside the manage link.
type Appointment struct {
	ID              string     `bson:"_id,omitempty" json:"id"`
	BookingTypeID   string     `bson:"bookingTypeId" json:"bookingTypeId"`
	StartTime       time.Time  `bson:"startTime" json:"startTime"`
	EndTime         time.Time  `bson:"endTime" json:"endTime"`
	Status          string     `bson:"status" json:"status"`
	GuestName       string     `bson:"guestName" json:"guestName"`
	GuestEmail      string     `bson:"guestEmail" json:"guestEmail"`
	GuestPhone      string     `bson:"guestPhone,omitempty" json:"guestPhone,omitempty"`
	GuestCompany    string     `bson:"guestCompany,omitempty" json:"guestCompany,omitempty"`
	Notes           string     `bson:"notes,omitempty" json:"notes,omitempty"`
	GuestTimezone   string     `bson:"guestTimezone,omitempty" json:"guestTimezone,omitempty"`
	MeetingLink     string     `bson:"meetingLink,omitempty" json:"meetingLink,omitempty"`
	ManageToken     string     `bson:"manageToken" json:"-"`
	CancelledAt     *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancelReason    string     `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	RescheduledFrom *time.Time `bson:"rescheduledFrom,omitempty" json:"rescheduledFrom,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
}

// TimeBlock is an admin-created busy interval that the conflict filter treats
// like an appointment. An empty BookingTypeID blocks every booking type.
type TimeBlock struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	BookingTypeID string    `bson:"bookingTypeId,omitempty" json:"bookingTypeId,omitempty"`
	StartTime     time.Time `bson:"startTime" json:"startTime"`
	EndTime       time.Time `bson:"endTime" json:"endTime"`
	Reason        string    `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}
