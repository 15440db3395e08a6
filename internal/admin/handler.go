package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"agencydesk-backend/internal/auth"
	"agencydesk-backend/internal/httpx"
	"agencydesk-backend/internal/middleware"
	"agencydesk-backend/internal/transport"
	"agencydesk-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// User is an agency operator account. Admins manage booking types and
// appointments; guests never have accounts.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Handler struct {
	users            *mongo.Collection
	val              *validation.Validator
	log              *slog.Logger
	manager          *auth.Manager
	fallbackUser     string
	fallbackPassword string
	cookieSecure     bool
}

func NewHandler(users *mongo.Collection, val *validation.Validator, log *slog.Logger, manager *auth.Manager, fallbackUser, fallbackPassword string, cookieSecure bool) *Handler {
	return &Handler{
		users:            users,
		val:              val,
		log:              log,
		manager:          manager,
		fallbackUser:     fallbackUser,
		fallbackPassword: fallbackPassword,
		cookieSecure:     cookieSecure,
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

func (h *Handler) checkCredentials(ctx context.Context, username, password string) bool {
	var user User
	err := h.users.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err == nil {
		return auth.ComparePassword(user.PasswordHash, password) == nil
	}
	// Bootstrap fallback for a fresh deployment without a seeded user.
	if err == mongo.ErrNoDocuments && h.fallbackPassword != "" {
		return username == h.fallbackUser && password == h.fallbackPassword
	}
	return false
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	if h.manager == nil {
		log.Warn("admin login: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if !h.checkCredentials(ctx, req.Username, req.Password) {
		log.Warn("admin login: invalid credentials", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	accessToken, err := h.manager.NewAccessToken(req.Username, "admin")
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	refreshToken, err := h.manager.NewRefreshToken(req.Username, "admin")
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	h.setAuthCookies(w, accessToken, refreshToken)
	log.Info("admin login: ok", slog.String("username", req.Username))
	transport.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if h.manager == nil {
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	refreshCookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		log.Warn("admin refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	claims, err := h.manager.Parse(refreshCookie.Value)
	if err != nil || claims.Role != "admin" {
		log.Warn("admin refresh: invalid refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	accessToken, err := h.manager.NewAccessToken(claims.Subject, "admin")
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	refreshToken, err := h.manager.NewRefreshToken(claims.Subject, "admin")
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	h.setAuthCookies(w, accessToken, refreshToken)
	log.Info("admin refresh: ok")
	transport.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	h.clearAuthCookies(w)
	log.Info("admin logout: ok")
	transport.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=10"`
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req CreateUserRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	now := time.Now().UTC()
	user := User{
		ID:           primitive.NewObjectID().Hex(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         "admin",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			transport.WriteError(w, http.StatusConflict, "username already exists", nil)
			return
		}
		log.Error("admin user create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	log.Info("admin user create: ok", slog.String("username", user.Username))
	transport.WriteJSON(w, http.StatusCreated, user)
}

type UpdatePasswordRequest struct {
	Password string `json:"password" validate:"required,min=10"`
}

func (h *Handler) UpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := chi.URLParam(r, "id")

	var req UpdatePasswordRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"passwordHash": hash,
		"updatedAt":    time.Now().UTC(),
	}})
	if err != nil {
		log.Error("admin password update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if res.MatchedCount == 0 {
		transport.WriteError(w, http.StatusNotFound, "user not found", nil)
		return
	}

	log.Info("admin password update: ok", slog.String("user_id", id))
	transport.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookie,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.manager.AccessTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookie,
		Value:    refresh,
		Path:     "/api/admin",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.manager.RefreshTTL.Seconds()),
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	expire := time.Now().Add(-1 * time.Hour)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookie,
		Value:    "",
		Path:     "/api/admin",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	})
}
