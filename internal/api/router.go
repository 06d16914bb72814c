package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/tutorbridge/backend/internal/config"
	"github.com/tutorbridge/backend/internal/events"
	"github.com/tutorbridge/backend/internal/meeting"
)

// Services groups the domain services the router exposes.
type Services struct {
	OAuth     *meeting.OAuthService
	Permanent *meeting.PermanentLinkService
	AdHoc     *meeting.AdHocService
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *config.Config, db *gorm.DB, hub *events.Hub, svcs Services) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(SecurityHeadersMiddleware(cfg))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	generalLimiter := NewRateLimiter(10, 30)
	generalLimiter.CleanupOldLimiters()
	authLimiter := NewRateLimiter(1, 5)
	authLimiter.CleanupOldLimiters()

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimitMiddleware(generalLimiter))

		// Auth routes
		r.Group(func(r chi.Router) {
			r.Use(StrictRateLimitMiddleware(authLimiter))
			r.Post("/auth/register", HandleRegister(db, cfg))
			r.Post("/auth/login", HandleLogin(db, cfg))
		})

		// OAuth callback is hit by Google's redirect, so it cannot carry a
		// bearer token. The signed state blob identifies the tutor.
		r.Get("/google/oauth/callback", HandleOAuthCallback(svcs.OAuth, cfg.FrontendURL))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret, db))

			r.Get("/tutor/me", HandleGetCurrentTutor(db))

			// Google account routes
			r.Get("/google/oauth/url", HandleGetOAuthURL(svcs.OAuth))
			r.Get("/google/oauth/status", HandleGetOAuthStatus(svcs.OAuth))
			r.Post("/google/oauth/refresh", HandleOAuthRefresh(svcs.OAuth))
			r.Post("/google/oauth/revoke", HandleOAuthRevoke(svcs.OAuth))

			// Meeting routes
			r.Post("/meetings", HandleCreateMeeting(svcs.AdHoc))
			r.Post("/meetings/permanent", HandleGetPermanentLink(svcs.Permanent))
		})
	})

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWebSocket)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
