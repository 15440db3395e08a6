package booking

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agencydesk-backend/internal/cache"
	"agencydesk-backend/internal/calendar"
	"agencydesk-backend/internal/httpx"
	"agencydesk-backend/internal/middleware"
	"agencydesk-backend/internal/schedule"
	"agencydesk-backend/internal/transport"
	"agencydesk-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

// AgencyInfo is the branding block returned on the public booking page.
type AgencyInfo struct {
	Name         string `json:"name"`
	LogoURL      string `json:"logo,omitempty"`
	PrimaryColor string `json:"primaryColor,omitempty"`
}

// Handler is the guest-facing flow controller: info, month grid, day slots,
// create, and the token-gated manage actions.
type Handler struct {
	service       *Service
	val           *validation.Validator
	log           *slog.Logger
	cache         cache.Cache
	cacheTTL      time.Duration
	agency        AgencyInfo
	publicBaseURL string
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, cacheStore cache.Cache, cacheTTL time.Duration, agency AgencyInfo, publicBaseURL string) *Handler {
	if cacheStore == nil {
		cacheStore = cache.NewNoop()
	}
	return &Handler{
		service:       service,
		val:           val,
		log:           log,
		cache:         cacheStore,
		cacheTTL:      cacheTTL,
		agency:        agency,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

type monthQuery struct {
	Month string `validate:"required,month"`
}

type dateQuery struct {
	Date string `validate:"required,date"`
}

type slotEntry struct {
	Time string `json:"time"`
}

// BookingPage dispatches the three read modes of GET /booking/{slug}:
// ?month= lists available days, ?date= lists open slots, and no query
// returns the booking type info with agency branding.
func (h *Handler) BookingPage(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	slug := chi.URLParam(r, "slug")

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	bt, err := h.service.TypeBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("booking page: type not found", slog.String("slug", slug))
			transport.WriteError(w, http.StatusNotFound, "booking type not found", nil)
			return
		}
		log.Error("booking page: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	query := r.URL.Query()
	switch {
	case query.Get("month") != "":
		h.monthAvailability(ctx, w, r, bt, query.Get("month"))
	case query.Get("date") != "":
		h.dayAvailability(ctx, w, r, bt, query.Get("date"))
	default:
		log.Info("booking page: info", slog.String("slug", slug))
		transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"bookingType": bt,
			"agency":      h.agency,
			"timezone":    bt.Timezone,
		})
	}
}

func (h *Handler) monthAvailability(ctx context.Context, w http.ResponseWriter, r *http.Request, bt BookingType, month string) {
	log := h.logWithRequest(r)
	if err := h.val.Struct(monthQuery{Month: month}); err != nil {
		log.Warn("booking month: invalid query", slog.String("month", month))
		transport.WriteError(w, http.StatusBadRequest, "invalid month", nil)
		return
	}

	cacheKey := "booking:" + bt.Slug + ":month:" + month
	if cached, ok, err := h.cache.Get(ctx, cacheKey); err == nil && ok {
		log.Info("booking month: cache hit", slog.String("slug", bt.Slug), slog.String("month", month))
		transport.WriteCached(w, http.StatusOK, cached)
		return
	}

	days, err := h.service.MonthAvailability(ctx, bt, month)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidDate) {
			transport.WriteError(w, http.StatusBadRequest, "invalid month", nil)
			return
		}
		log.Error("booking month: compute error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}

	response := map[string]interface{}{
		"month":         month,
		"timezone":      bt.Timezone,
		"availableDays": days,
	}
	h.cacheResponse(ctx, cacheKey, response)
	log.Info("booking month: ok", slog.String("slug", bt.Slug), slog.String("month", month), slog.Int("days", len(days)))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) dayAvailability(ctx context.Context, w http.ResponseWriter, r *http.Request, bt BookingType, date string) {
	log := h.logWithRequest(r)
	if err := h.val.Struct(dateQuery{Date: date}); err != nil {
		log.Warn("booking day: invalid query", slog.String("date", date))
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}

	cacheKey := "booking:" + bt.Slug + ":date:" + date
	if cached, ok, err := h.cache.Get(ctx, cacheKey); err == nil && ok {
		log.Info("booking day: cache hit", slog.String("slug", bt.Slug), slog.String("date", date))
		transport.WriteCached(w, http.StatusOK, cached)
		return
	}

	slots, err := h.service.DayAvailability(ctx, bt, date)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidDate) {
			transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
			return
		}
		// Fail closed: a conflict-query failure must never surface
		// unfiltered candidates.
		log.Error("booking day: compute error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}

	entries := make([]slotEntry, 0, len(slots))
	for _, s := range slots {
		entries = append(entries, slotEntry{Time: s.Format(time.RFC3339)})
	}

	response := map[string]interface{}{
		"date":     date,
		"timezone": bt.Timezone,
		"duration": bt.DurationMinutes,
		"slots":    entries,
	}
	h.cacheResponse(ctx, cacheKey, response)
	log.Info("booking day: ok", slog.String("slug", bt.Slug), slog.String("date", date), slog.Int("slots", len(entries)))
	transport.WriteJSON(w, http.StatusOK, response)
}

type CreateBookingRequest struct {
	StartTime     string `json:"startTime" validate:"required,rfc3339"`
	GuestName     string `json:"guestName" validate:"required,max=200"`
	GuestEmail    string `json:"guestEmail" validate:"required,email"`
	GuestPhone    string `json:"guestPhone" validate:"omitempty,phone"`
	GuestCompany  string `json:"guestCompany" validate:"omitempty,max=200"`
	Notes         string `json:"notes" validate:"omitempty,max=2000"`
	GuestTimezone string `json:"guestTimezone" validate:"omitempty,timezone"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	slug := chi.URLParam(r, "slug")

	var req CreateBookingRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("booking create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("booking create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid startTime", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	bt, err := h.service.TypeBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("booking create: type not found", slog.String("slug", slug))
			transport.WriteError(w, http.StatusNotFound, "booking type not found", nil)
			return
		}
		log.Error("booking create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	appt, err := h.service.Create(ctx, bt, CreateParams{
		StartTime:     startTime,
		GuestName:     req.GuestName,
		GuestEmail:    req.GuestEmail,
		GuestPhone:    req.GuestPhone,
		GuestCompany:  req.GuestCompany,
		Notes:         req.Notes,
		GuestTimezone: req.GuestTimezone,
	})
	if err != nil {
		h.writeBookingError(w, log, "booking create", err)
		return
	}

	h.invalidateAvailability(r.Context(), bt.Slug)
	manageURL := h.manageURL(appt)
	go h.notifyAsync(log, "confirmation", func(ctx context.Context) error {
		return h.service.NotifyConfirmation(ctx, appt, bt, manageURL)
	})

	log.Info("booking create: booked",
		slog.String("appointment_id", appt.ID),
		slog.String("slug", bt.Slug),
		slog.String("start", appt.StartTime.Format(time.RFC3339)),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"appointment": appt,
		"manageUrl":   manageURL,
	})
}

func (h *Handler) GetManaged(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := h.service.Get(ctx, id, token)
	if err != nil {
		// A wrong token is reported exactly like a missing appointment so
		// token guessing leaks nothing.
		if errors.Is(err, ErrNotFound) {
			log.Warn("booking manage get: not found", slog.String("appointment_id", id))
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
			return
		}
		log.Error("booking manage get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	bt, err := h.service.repo.GetTypeByID(ctx, appt.BookingTypeID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("booking manage get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	log.Info("booking manage get: ok", slog.String("appointment_id", appt.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointment": appt,
		"bookingType": bt,
		"localTime":   h.displayTime(appt, bt),
	})
}

type CancelBookingRequest struct {
	Token  string `json:"token" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (h *Handler) CancelManaged(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req CancelBookingRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("booking cancel: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("booking cancel: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.Cancel(ctx, id, req.Token, req.Reason)
	if err != nil {
		h.writeBookingError(w, log, "booking cancel", err)
		return
	}

	bt, btErr := h.service.repo.GetTypeByID(ctx, appt.BookingTypeID)
	if btErr == nil {
		h.invalidateAvailability(r.Context(), bt.Slug)
		go h.notifyAsync(log, "cancellation", func(ctx context.Context) error {
			return h.service.NotifyCancellation(ctx, appt, bt)
		})
	}

	log.Info("booking cancel: ok", slog.String("appointment_id", appt.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"appointment": appt})
}

type RescheduleBookingRequest struct {
	Token         string `json:"token" validate:"required"`
	NewStartTime  string `json:"newStartTime" validate:"required,rfc3339"`
	GuestTimezone string `json:"guestTimezone" validate:"omitempty,timezone"`
}

func (h *Handler) RescheduleManaged(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req RescheduleBookingRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("booking reschedule: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("booking reschedule: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	newStart, err := time.Parse(time.RFC3339, req.NewStartTime)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid newStartTime", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	appt, err := h.service.Reschedule(ctx, id, req.Token, newStart)
	if err != nil {
		h.writeBookingError(w, log, "booking reschedule", err)
		return
	}
	previousStart := appt.StartTime
	if appt.RescheduledFrom != nil {
		previousStart = *appt.RescheduledFrom
	}

	bt, btErr := h.service.repo.GetTypeByID(ctx, appt.BookingTypeID)
	if btErr == nil {
		h.invalidateAvailability(r.Context(), bt.Slug)
		go h.notifyAsync(log, "reschedule", func(ctx context.Context) error {
			return h.service.NotifyReschedule(ctx, appt, bt, previousStart)
		})
	}

	log.Info("booking reschedule: ok",
		slog.String("appointment_id", appt.ID),
		slog.String("from", previousStart.Format(time.RFC3339)),
		slog.String("to", appt.StartTime.Format(time.RFC3339)),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"appointment": appt})
}

// writeBookingError maps the state machine's sentinels onto the wire
// contract. Anything unrecognized is a generic 500 with no internals exposed.
func (h *Handler) writeBookingError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn(op + ": not found")
		transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
	case errors.Is(err, ErrUnauthorized):
		log.Warn(op + ": invalid token")
		transport.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrInvalidConfig):
		log.Warn(op + ": slot no longer available")
		transport.WriteError(w, http.StatusConflict, "SlotNoLongerAvailable", nil)
	case errors.Is(err, ErrAlreadyCancelled):
		log.Warn(op + ": already cancelled")
		transport.WriteError(w, http.StatusConflict, "AlreadyCancelled", nil)
	case errors.Is(err, ErrPastAppointment):
		log.Warn(op + ": past appointment")
		transport.WriteError(w, http.StatusGone, "PastAppointment", nil)
	case errors.Is(err, ErrSlotInPast):
		log.Warn(op + ": requested time in the past")
		transport.WriteError(w, http.StatusBadRequest, "InThePast", nil)
	case errors.Is(err, schedule.ErrInvalidDate), errors.Is(err, schedule.ErrInvalidTime):
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
	default:
		log.Error(op+": internal error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func (h *Handler) manageURL(appt Appointment) string {
	return h.publicBaseURL + "/booking/manage/" + appt.ID + "?token=" + appt.ManageToken
}

func (h *Handler) displayTime(appt Appointment, bt BookingType) string {
	zone := appt.GuestTimezone
	if zone == "" {
		zone = bt.Timezone
	}
	return calendar.FormatInstant(appt.StartTime, zone, calendar.StyleDateTime)
}

func (h *Handler) cacheResponse(ctx context.Context, key string, payload interface{}) {
	raw, err := transport.EncodeJSON(payload)
	if err != nil {
		return
	}
	_ = h.cache.Set(ctx, key, raw, h.cacheTTL)
}

func (h *Handler) invalidateAvailability(ctx context.Context, slug string) {
	_ = h.cache.DeletePrefix(ctx, "booking:"+slug+":")
}

// invalidateAllAvailability drops every cached availability entry; used for
// writes that cannot be pinned to one slug, like global time blocks.
func (h *Handler) invalidateAllAvailability(ctx context.Context) {
	_ = h.cache.DeletePrefix(ctx, "booking:")
}

func (h *Handler) notifyAsync(log *slog.Logger, kind string, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := send(ctx); err != nil {
		log.Warn("booking email: send failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}
