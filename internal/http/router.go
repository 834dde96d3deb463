package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/codeandrun/server/internal/http/handlers"
	"github.com/codeandrun/server/internal/middleware"
)

// NewRouter creates the HTTP router with all routes configured. Requests from
// origins outside the allow-list are rejected by the CORS layer before any
// auth handler runs; credentials are allowed so the session cookie flows.
func NewRouter(authHandler *handlers.AuthHandler, sessions middleware.SessionVerifier, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/check-user", authHandler.HandleCheckUser)
		r.Post("/send-otp", authHandler.HandleSendOtp)
		r.Post("/verify-otp", authHandler.HandleVerifyOtp)
		r.Post("/logout", authHandler.HandleLogout)

		// Session-cookie protected routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionMiddleware(sessions))
			r.Get("/session/verify", authHandler.HandleVerifySession)
			r.Post("/username/claim", authHandler.HandleClaimUsername)
		})
	})

	return r
}
