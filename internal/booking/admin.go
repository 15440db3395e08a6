package booking

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"agencydesk-backend/internal/httpx"
	"agencydesk-backend/internal/schedule"
	"agencydesk-backend/internal/transport"
	"agencydesk-backend/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WindowRequest struct {
	Weekday string `json:"weekday" validate:"required,weekday"`
	Start   string `json:"start" validate:"required,clock"`
	End     string `json:"end" validate:"required,clock"`
}

type UpsertTypeRequest struct {
	Name             string          `json:"name" validate:"required,max=200"`
	Description      string          `json:"description" validate:"omitempty,max=2000"`
	Color            string          `json:"color" validate:"omitempty,max=32"`
	DurationMinutes  int             `json:"durationMinutes" validate:"required,gte=5,lte=480"`
	Timezone         string          `json:"timezone" validate:"required,timezone"`
	Windows          []WindowRequest `json:"windows" validate:"required,min=1,dive"`
	BufferMinutes    int             `json:"bufferMinutes" validate:"gte=0,lte=120"`
	MinNoticeMinutes int             `json:"minNoticeMinutes" validate:"gte=0,lte=10080"`
	HostName         string          `json:"hostName" validate:"omitempty,max=200"`
	HostEmail        string          `json:"hostEmail" validate:"omitempty,email"`
	Active           *bool           `json:"active"`
}

func (req UpsertTypeRequest) availability() (map[string][]WindowConfig, error) {
	availability := make(map[string][]WindowConfig)
	for _, w := range req.Windows {
		if _, err := schedule.ParseWindow(w.Start, w.End); err != nil {
			return nil, err
		}
		availability[w.Weekday] = append(availability[w.Weekday], WindowConfig{Start: w.Start, End: w.End})
	}
	return availability, nil
}

// AdminHandler manages booking types, time blocks and the appointment list.
// Routes mount behind the admin auth middleware.
type AdminHandler struct {
	service *Handler
	repo    Repository
	log     *slog.Logger
}

func NewAdminHandler(public *Handler, repo Repository, log *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: public,
		repo:    repo,
		log:     log,
	}
}

func (h *AdminHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	log := h.service.logWithRequest(r)

	var req UpsertTypeRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.service.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.service.val.ValidationErrors(err)))
		return
	}
	availability, err := req.availability()
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid window", nil)
		return
	}

	now := time.Now().UTC()
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	bt := BookingType{
		ID:               primitive.NewObjectID().Hex(),
		Slug:             utils.Slugify(req.Name),
		Name:             req.Name,
		Description:      req.Description,
		Color:            req.Color,
		DurationMinutes:  req.DurationMinutes,
		Timezone:         req.Timezone,
		Availability:     availability,
		BufferMinutes:    req.BufferMinutes,
		MinNoticeMinutes: req.MinNoticeMinutes,
		HostName:         req.HostName,
		HostEmail:        req.HostEmail,
		Active:           active,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()
	if err := h.repo.CreateType(ctx, bt); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			transport.WriteError(w, http.StatusConflict, "slug already exists", nil)
			return
		}
		log.Error("admin type create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	log.Info("admin type create: ok", slog.String("booking_type_id", bt.ID), slog.String("slug", bt.Slug))
	transport.WriteJSON(w, http.StatusCreated, bt)
}

func (h *AdminHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	log := h.service.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req UpsertTypeRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.service.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.service.val.ValidationErrors(err)))
		return
	}
	availability, err := req.availability()
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid window", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	existing, err := h.repo.GetTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "booking type not found", nil)
			return
		}
		log.Error("admin type update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Color = req.Color
	existing.DurationMinutes = req.DurationMinutes
	existing.Timezone = req.Timezone
	existing.Availability = availability
	existing.BufferMinutes = req.BufferMinutes
	existing.MinNoticeMinutes = req.MinNoticeMinutes
	existing.HostName = req.HostName
	existing.HostEmail = req.HostEmail
	if req.Active != nil {
		existing.Active = *req.Active
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := h.repo.UpdateType(ctx, existing); err != nil {
		log.Error("admin type update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	h.service.invalidateAvailability(r.Context(), existing.Slug)
	log.Info("admin type update: ok", slog.String("booking_type_id", existing.ID))
	transport.WriteJSON(w, http.StatusOK, existing)
}

func (h *AdminHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	log := h.service.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.repo.ListTypes(ctx)
	if err != nil {
		log.Error("admin type list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"bookingTypes": items})
}

func (h *AdminHandler) DeleteType(w http.ResponseWriter, r *http.Request) {
	log := h.service.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existing, err := h.repo.GetTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "booking type not found", nil)
			return
		}
		log.Error("admin type delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	if err := h.repo.DeleteType(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "booking type not found", nil)
			return
		}
		log.Error("admin type delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	h.service.invalidateAvailability(r.Context(), existing.Slug)
	log.Info("admin type delete: ok", slog.String("booking_type_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	log := h.service.logWithRequest(r)

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid pagination", nil)
		return
	}

	filter := AppointmentFilter{
		BookingTypeID: r.URL.Query().Get("bookingTypeId"),
		Status:        r.URL.Query().Get("status"),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid from", nil)
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid to", nil)
			return
		}
		filter.To = t
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.repo.ListAppointments(ctx, filter, limit, offset)
	if err != nil {
		log.Error("admin appointments list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": items,
		"total":        total,
	})
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed scheduled"`
}

// UpdateAppointmentStatus lets an admin mark a finished appointment as
// completed. Cancellation stays guest-only and goes through the state
// machine, never through this endpoint.
func (h *AdminHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	log := h.service.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req UpdateAppointmentStatusRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.service.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.service.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := h.repo.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
			return
		}
		log.Error("admin appointment status: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if appt.Status == StatusCancelled {
		transport.WriteError(w, http.StatusConflict, "AlreadyCancelled", nil)
		return
	}

	updated, err := h.repo.UpdateAppointmentStatus(ctx, id, req.Status)
	if err != nil {
		log.Error("admin appointment status: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	log.Info("admin appointment status: ok", slog.String("appointment_id", id), slog.String("status", req.Status))
	transport.WriteJSON(w, http.StatusOK, updated)
}

type CreateBlockRequest struct {
	BookingTypeID string `json:"bookingTypeId" validate:"omitempty,max=64"`
	Date          string `json:"date" validate:"required,date"`
	Start         string `json:"start" validate:"required,clock"`
	End           string `json:"end" validate:"required,clock"`
	Reason        string `json:"reason" validate:"omitempty,max=500"`
}

// CreateBlock records an admin busy interval. Times are given in the booking
// type's zone (or the default zone for global blocks) and stored as instants.
func (h *AdminHandler) CreateBlock(defaultZone *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.service.logWithRequest(r)

		var req CreateBlockRequest
		if err := httpx.DecodeJSON(r.Body, &req); err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
			return
		}
		if err := h.service.val.Struct(req); err != nil {
			transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.service.val.ValidationErrors(err)))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		loc := defaultZone
		slug := ""
		if req.BookingTypeID != "" {
			bt, err := h.repo.GetTypeByID(ctx, req.BookingTypeID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					transport.WriteError(w, http.StatusNotFound, "booking type not found", nil)
					return
				}
				log.Error("admin block create: database error", slog.String("error", err.Error()))
				transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
				return
			}
			slug = bt.Slug
			if btLoc, err := bt.Location(); err == nil {
				loc = btLoc
			}
		}

		window, err := schedule.ParseWindow(req.Start, req.End)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid window", nil)
			return
		}
		date, err := schedule.ParseDate(req.Date, loc)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
			return
		}

		block := TimeBlock{
			ID:            primitive.NewObjectID().Hex(),
			BookingTypeID: req.BookingTypeID,
			StartTime:     time.Date(date.Year(), date.Month(), date.Day(), window.Start/60, window.Start%60, 0, 0, loc).UTC(),
			EndTime:       time.Date(date.Year(), date.Month(), date.Day(), window.End/60, window.End%60, 0, 0, loc).UTC(),
			Reason:        req.Reason,
			CreatedAt:     time.Now().UTC(),
		}
		if err := h.repo.InsertTimeBlock(ctx, block); err != nil {
			log.Error("admin block create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
			return
		}

		if slug != "" {
			h.service.invalidateAvailability(r.Context(), slug)
		} else {
			h.service.invalidateAllAvailability(r.Context())
		}
		log.Info("admin block create: ok", slog.String("block_id", block.ID))
		transport.WriteJSON(w, http.StatusCreated, block)
	}
}

func (h *AdminHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	log := h.service.logWithRequest(r)
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.DeleteTimeBlock(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "block not found", nil)
			return
		}
		log.Error("admin block delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	// The deleted block is gone, so its booking type is unknown here.
	h.service.invalidateAllAvailability(r.Context())
	log.Info("admin block delete: ok", slog.String("block_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
