package app

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/jwtx"
)

type Config struct {
	Issuer        string // Issuer claim for tokens (default: SecureMed)
	SigningSecret string // Required: HS256 secret for access tokens and MFA tickets

	DatabaseFile string // Path to SQLite database file (default: ./portal.db)

	MaxFailedAttempts int           // Failed logins tolerated before the lock trips (default: 5)
	LockoutDuration   time.Duration // How long an account stays locked (default: 15m)

	MFATicketTTL      time.Duration // Lifetime of the MFA-pending ticket (default: 5m)
	MFAEnableSkew     uint          // TOTP window steps accepted at activation (default: 1)
	MFADeactivateSkew uint          // TOTP window steps accepted at deactivation (default: 3)
	MFALoginSkew      uint          // TOTP window steps accepted at login (default: 6)

	InviteTTL  time.Duration // Invitation link lifetime (default: 48h)
	AccessTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTTL time.Duration // Refresh token lifetime (default: 168h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

var ErrMissingSigningSecret = errors.New("AUTH_SIGNING_SECRET must be set")

func LoadConfig() (Config, error) {
	cfg := Config{
		Issuer:        getEnvOrDefault("AUTH_ISSUER", "SecureMed"),
		SigningSecret: os.Getenv("AUTH_SIGNING_SECRET"),
		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "portal.db"),

		MaxFailedAttempts: getEnvIntOrDefault("AUTH_MAX_FAILED_ATTEMPTS", service.DefaultMaxFailedAttempts),
		LockoutDuration:   getEnvDurationOrDefault("AUTH_LOCKOUT_DURATION", service.DefaultLockoutDuration),

		MFATicketTTL:      getEnvDurationOrDefault("AUTH_MFA_TICKET_TTL", jwtx.DefaultMFATicketTTL),
		MFAEnableSkew:     getEnvUintOrDefault("AUTH_MFA_ENABLE_SKEW", service.DefaultEnableSkew),
		MFADeactivateSkew: getEnvUintOrDefault("AUTH_MFA_DEACTIVATE_SKEW", service.DefaultDeactivateSkew),
		MFALoginSkew:      getEnvUintOrDefault("AUTH_MFA_LOGIN_SKEW", service.DefaultLoginSkew),

		InviteTTL:  getEnvDurationOrDefault("AUTH_INVITE_TTL", service.DefaultInviteTTL),
		AccessTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if cfg.SigningSecret == "" {
		return Config{}, ErrMissingSigningSecret
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint) uint {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if uintValue, err := strconv.ParseUint(value, 10, 32); err == nil {
		return uint(uintValue)
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accept Go duration strings ("15m", "48h") and bare integer minutes.
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
