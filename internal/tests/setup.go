package tests

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/codeandrun/server/internal/auth"
	"github.com/codeandrun/server/internal/db"
	httphandler "github.com/codeandrun/server/internal/http"
	"github.com/codeandrun/server/internal/http/handlers"
	"github.com/codeandrun/server/internal/repo"
)

// ResolveMigrationDir returns the first existing migrations directory,
// checked relative to the module root and to this package (go test ./...).
func ResolveMigrationDir() string {
	for _, dir := range []string{"internal/db/migrations", "../../internal/db/migrations"} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}
	return ""
}

// RunMigrations runs goose Up using the resolved migration directory.
func RunMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	dir := ResolveMigrationDir()
	if dir == "" {
		return fmt.Errorf("migrations directory not found; run tests from the module root")
	}
	if err := goose.Up(database, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// TestServer bundles the running httptest server with its database handle.
type TestServer struct {
	Server *httptest.Server
	DB     *sql.DB
}

// BaseURL returns the server's base URL.
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// TruncateAuth truncates the auth tables for a clean test state.
func (ts *TestServer) TruncateAuth(t *testing.T) {
	t.Helper()
	_, err := ts.DB.ExecContext(context.Background(), "TRUNCATE TABLE otp_codes, users RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

// newTestServer wires the full stack against the DATABASE_URL database,
// with dev mode on so OTP codes are observable.
func newTestServer(t *testing.T) *TestServer {
	t.Helper()

	database, err := db.Open(context.Background(), os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	require.NoError(t, RunMigrations(database))

	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOtpRepo(database)

	tokenService := auth.NewTokenService("integration-test-secret")
	otpIssuer := auth.NewOtpIssuer(otpRepo, "integration-test-salt", true)
	authService := auth.NewService(userRepo, auth.NewBcryptHasher(), tokenService, otpIssuer)

	// Cookies are not Secure here: httptest serves plain HTTP and the Go
	// cookie jar drops Secure cookies on http:// URLs.
	cookies := handlers.NewCookieWriter(false)
	authHandler := handlers.NewAuthHandler(authService, cookies, true)
	router := httphandler.NewRouter(authHandler, authService, []string{"http://localhost:3000"})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close()
	})

	return &TestServer{Server: srv, DB: database}
}
