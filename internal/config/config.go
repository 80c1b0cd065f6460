package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every runtime setting the services need. It is built once in
// main and passed to constructors; nothing below internal/config reads the
// environment.
type Config struct {
	DatabaseURL string
	HTTPPort    string

	// Operator session tokens (JWT).
	JWTSecret string
	JWTTTL    time.Duration

	// QR signatures live for the printed sticker's lifetime. The window is a
	// tunable, not a security boundary: verification re-checks the live asset
	// record regardless. Raise it well past 24h for long-lived stickers.
	QRSecret   string
	QRValidity time.Duration

	// Exit tokens bridge two operator actions seconds apart, so the TTL is
	// short. The secret defaults to QRSecret but can be rotated independently.
	ExitTokenSecret string
	ExitTokenTTL    time.Duration

	BootstrapAdminToken           string
	AllowOperatorSelfRegistration bool
	AdminSeedPassword             string
}

func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:                   os.Getenv("DATABASE_URL"),
		HTTPPort:                      getenv("HTTP_PORT", "8080"),
		JWTSecret:                     os.Getenv("JWT_SECRET"),
		JWTTTL:                        duration("JWT_EXPIRES_IN", time.Hour),
		QRSecret:                      os.Getenv("QR_SECRET"),
		QRValidity:                    hours("QR_VALIDITY_HOURS", 24),
		ExitTokenSecret:               os.Getenv("EXIT_TOKEN_SECRET"),
		ExitTokenTTL:                  seconds("EXIT_TOKEN_TTL_SECONDS", 300),
		BootstrapAdminToken:           os.Getenv("BOOTSTRAP_ADMIN_TOKEN"),
		AllowOperatorSelfRegistration: boolean("ALLOW_OPERATOR_SELF_REGISTRATION"),
		AdminSeedPassword:             getenv("ADMIN_PASSWORD", "admin"),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is empty")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is empty")
	}
	if cfg.QRSecret == "" {
		return cfg, fmt.Errorf("QR_SECRET is empty")
	}
	if cfg.ExitTokenSecret == "" {
		cfg.ExitTokenSecret = cfg.QRSecret
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}

func hours(key string, def int) time.Duration {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
	}
	return time.Duration(def) * time.Hour
}

func seconds(key string, def int) time.Duration {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(def) * time.Second
}

func boolean(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
