package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL    string   `env:"DATABASE_URL,required"`
	Port           string   `env:"PORT" envDefault:"8080"`
	JWTSecret      string   `env:"JWT_SECRET,required"`
	OTPSalt        string   `env:"OTP_SALT,required"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	// CookieSecure must stay true whenever the cookie uses SameSite=None;
	// it is only switchable for local plain-HTTP development.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"true"`
	DevMode      bool `env:"DEV_MODE" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	logConnTarget(cfg.DatabaseURL)

	return cfg, nil
}

// logConnTarget logs the database connection details with the password masked.
func logConnTarget(databaseURL string) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	user := u.User.Username()
	if user == "" {
		user = "(none)"
	}
	log.Printf("DB connect: host=%s port=%s db=%s user=%s", host, port, dbName, user)
}
