package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agencydesk-backend/internal/admin"
	"agencydesk-backend/internal/auth"
	"agencydesk-backend/internal/booking"
	"agencydesk-backend/internal/cache"
	"agencydesk-backend/internal/calendar"
	"agencydesk-backend/internal/config"
	"agencydesk-backend/internal/db"
	"agencydesk-backend/internal/middleware"
	"agencydesk-backend/internal/notifications"
	"agencydesk-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "agencydesk-backend",
		}
	}

	var notifier booking.Notifier
	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
		notifier = mailer
	}

	val := validation.New()

	bookingRepo := booking.NewMongoRepository(cols.BookingTypes, cols.Appointments, cols.TimeBlocks)
	bookingService := booking.NewService(bookingRepo, calendar.SystemClock{}, notifier)
	bookingHandler := booking.NewHandler(
		bookingService,
		val,
		logger,
		cacheStore,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		booking.AgencyInfo{Name: cfg.AgencyName, LogoURL: cfg.AgencyLogoURL, PrimaryColor: cfg.AgencyPrimaryColor},
		cfg.PublicBaseURL,
	)
	bookingAdmin := booking.NewAdminHandler(bookingHandler, bookingRepo, logger)
	adminHandler := admin.NewHandler(cols.Users, val, logger, jwtManager, cfg.AdminUser, cfg.AdminPassword, cfg.CookieSecure)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimitBooking, time.Duration(cfg.RateLimitWindowSec)*time.Second)
	manageLimiter := middleware.NewRateLimiter(cfg.RateLimitManage, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	r.Route("/api", func(api chi.Router) {
		api.Route("/booking", func(pub chi.Router) {
			pub.Get("/manage/{id}", bookingHandler.GetManaged)
			pub.With(manageLimiter.Middleware).Delete("/manage/{id}", bookingHandler.CancelManaged)
			pub.With(manageLimiter.Middleware).Put("/manage/{id}", bookingHandler.RescheduleManaged)

			pub.Get("/{slug}", bookingHandler.BookingPage)
			pub.With(bookingLimiter.Middleware).Post("/{slug}", bookingHandler.CreateBooking)
		})

		api.Route("/admin", func(adm chi.Router) {
			adm.Post("/login", adminHandler.Login)
			adm.Post("/refresh", adminHandler.Refresh)
			adm.Post("/logout", adminHandler.Logout)

			// Important (chi): middlewares must be attached before defining routes.
			// Login/refresh/logout stay public; the rest sits behind a sub-router.
			adm.Group(func(protected chi.Router) {
				protected.Use(middleware.AdminAuth(cfg.AdminAPIKey, jwtManager))
				protected.Get("/booking-types", bookingAdmin.ListTypes)
				protected.Post("/booking-types", bookingAdmin.CreateType)
				protected.Put("/booking-types/{id}", bookingAdmin.UpdateType)
				protected.Delete("/booking-types/{id}", bookingAdmin.DeleteType)
				protected.Get("/appointments", bookingAdmin.ListAppointments)
				protected.Patch("/appointments/{id}/status", bookingAdmin.UpdateAppointmentStatus)
				protected.Post("/blocks", bookingAdmin.CreateBlock(cfg.Timezone))
				protected.Delete("/blocks/{id}", bookingAdmin.DeleteBlock)
				protected.Post("/users", adminHandler.CreateUser)
				protected.Patch("/users/{id}/password", adminHandler.UpdateUserPassword)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}
