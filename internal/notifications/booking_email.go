package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"agencydesk-backend/internal/booking"
	"agencydesk-backend/internal/calendar"
)

const confirmationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.GuestName}},</p>
  <p>Your booking is confirmed.</p>
  <ul>
    <li>Meeting: {{.TypeName}}</li>
    <li>When: {{.When}} ({{.Zone}})</li>
    <li>Duration: {{.DurationMinutes}} minutes</li>
    {{if .HostName}}<li>Host: {{.HostName}}</li>{{end}}
    <li>Reference: {{.AppointmentID}}</li>
  </ul>
  <p>Need to change or cancel? Use your personal link:</p>
  <p><a href="{{.ManageURL}}">{{.ManageURL}}</a></p>
</body>
</html>`

const cancellationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.GuestName}},</p>
  <p>Your booking for {{.TypeName}} on {{.When}} ({{.Zone}}) has been cancelled.</p>
  {{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
  <p>Reference: {{.AppointmentID}}</p>
</body>
</html>`

const rescheduleTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.GuestName}},</p>
  <p>Your booking for {{.TypeName}} has been moved.</p>
  <ul>
    <li>Previously: {{.PreviousWhen}} ({{.Zone}})</li>
    <li>Now: {{.When}} ({{.Zone}})</li>
    <li>Reference: {{.AppointmentID}}</li>
  </ul>
</body>
</html>`

var (
	confirmationTmpl = template.Must(template.New("booking_confirmation").Parse(confirmationTemplate))
	cancellationTmpl = template.Must(template.New("booking_cancellation").Parse(cancellationTemplate))
	rescheduleTmpl   = template.Must(template.New("booking_reschedule").Parse(rescheduleTemplate))
)

type bookingEmailData struct {
	GuestName       string
	TypeName        string
	HostName        string
	When            string
	PreviousWhen    string
	Zone            string
	DurationMinutes int
	Reason          string
	AppointmentID   string
	ManageURL       string
}

// displayZone picks the zone emails are rendered in: the guest's stated
// preference when present, else the host's zone.
func displayZone(appt booking.Appointment, bt booking.BookingType) string {
	if appt.GuestTimezone != "" {
		return appt.GuestTimezone
	}
	return bt.Timezone
}

func emailData(appt booking.Appointment, bt booking.BookingType) bookingEmailData {
	zone := displayZone(appt, bt)
	return bookingEmailData{
		GuestName:       appt.GuestName,
		TypeName:        bt.Name,
		HostName:        bt.HostName,
		When:            calendar.FormatInstant(appt.StartTime, zone, calendar.StyleDateTime),
		Zone:            zone,
		DurationMinutes: bt.DurationMinutes,
		Reason:          appt.CancelReason,
		AppointmentID:   appt.ID,
	}
}

func render(tmpl *template.Template, data bookingEmailData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *BrevoClient) SendBookingConfirmation(ctx context.Context, appt booking.Appointment, bt booking.BookingType, manageURL string) (string, error) {
	data := emailData(appt, bt)
	data.ManageURL = manageURL
	body, err := render(confirmationTmpl, data)
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Booking confirmed - %s", bt.Name)
	return c.sendHTML(ctx, appt.GuestEmail, appt.GuestName, subject, body)
}

func (c *BrevoClient) SendBookingCancellation(ctx context.Context, appt booking.Appointment, bt booking.BookingType) (string, error) {
	body, err := render(cancellationTmpl, emailData(appt, bt))
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Booking cancelled - %s", bt.Name)
	return c.sendHTML(ctx, appt.GuestEmail, appt.GuestName, subject, body)
}

func (c *BrevoClient) SendBookingReschedule(ctx context.Context, appt booking.Appointment, bt booking.BookingType, previousStart time.Time) (string, error) {
	data := emailData(appt, bt)
	data.PreviousWhen = calendar.FormatInstant(previousStart, displayZone(appt, bt), calendar.StyleDateTime)
	body, err := render(rescheduleTmpl, data)
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Booking updated - %s", bt.Name)
	return c.sendHTML(ctx, appt.GuestEmail, appt.GuestName, subject, body)
}
