package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"agencydesk-backend/internal/calendar"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                string
	MongoURI           string
	MongoDB            string
	ServerAddr         string
	PublicBaseURL      string
	FrontendOrigins    string
	AgencyName         string
	AgencyLogoURL      string
	AgencyPrimaryColor string
	RateLimitBooking   int
	RateLimitManage    int
	RateLimitWindowSec int
	RedisURL           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CacheTTLSeconds    int
	AdminAPIKey        string
	AdminUser          string
	AdminPassword      string
	JWTSecret          string
	AccessTTLMinutes   int
	RefreshTTLMinutes  int
	CookieSecure       bool
	BrevoAPIKey        string
	BrevoSenderEmail   string
	BrevoSenderName    string
	BrevoSandbox       bool
	Timezone           *time.Location
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	// TZ is the default host zone used when a booking type has no zone of
	// its own and for global time blocks. It falls back to the server's
	// detected zone, which never participates in slot math.
	loc, err := time.LoadLocation(getEnv("TZ", calendar.DetectLocalZone()))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/agencydesk")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "agencydesk"
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		MongoURI:           mongoURI,
		MongoDB:            mongoDB,
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		FrontendOrigins:    getEnv("FRONTEND_ORIGINS", "http://localhost:3000"),
		AgencyName:         getEnv("AGENCY_NAME", "AgencyDesk"),
		AgencyLogoURL:      getEnv("AGENCY_LOGO_URL", ""),
		AgencyPrimaryColor: getEnv("AGENCY_PRIMARY_COLOR", "#1f2937"),
		RateLimitBooking:   getEnvInt("RATE_LIMIT_BOOKING", 10),
		RateLimitManage:    getEnvInt("RATE_LIMIT_MANAGE", 20),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 60),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		AdminUser:          getEnv("ADMIN_USER", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:   getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes:  getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:       getEnv("COOKIE_SECURE", "false") == "true",
		BrevoAPIKey:        getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail:   getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:    getEnv("BREVO_SENDER_NAME", ""),
		BrevoSandbox:       getEnv("BREVO_SANDBOX", "false") == "true",
		Timezone:           loc,
	}

	return cfg, nil
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
