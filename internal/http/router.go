package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/localgroup/internal/config"
	chatfeature "github.com/tendant/localgroup/internal/http/features/chat"
	"github.com/tendant/localgroup/internal/http/features/groups"
	safetyfeature "github.com/tendant/localgroup/internal/http/features/safety"
	"github.com/tendant/localgroup/internal/http/features/users"
	"github.com/tendant/localgroup/internal/http/middleware"
	"github.com/tendant/localgroup/internal/httputil"
	"github.com/tendant/localgroup/pkg/chat"
	"github.com/tendant/localgroup/pkg/group"
	"github.com/tendant/localgroup/pkg/safety"
	"github.com/tendant/localgroup/pkg/trust"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	Tokens             middleware.TokenVerifier
	Registry           *group.Registry
	Chat               *chat.Service
	Safety             *safety.Service
	Ledger             *trust.Ledger
	Users              users.Store
	RateLimitConfig    config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens))

		groups.NewHandler(cfg.Logger, cfg.Registry).Routes(r, rateLimiters[middleware.LimiterMutations])

		if cfg.Chat != nil {
			chatHandler := chatfeature.NewHandler(cfg.Logger, cfg.Chat)
			r.With(rateLimiters[middleware.LimiterMutations]).Post("/v1/groups/{id}/messages", chatHandler.Send)
		}

		if cfg.Safety != nil {
			safetyHandler := safetyfeature.NewHandler(cfg.Logger, cfg.Safety)
			r.With(rateLimiters[middleware.LimiterSOS]).Post("/v1/safety/sos/{id}", safetyHandler.SOS)
		}

		usersHandler := users.NewHandler(cfg.Logger, cfg.Ledger, cfg.Users)
		r.Get("/v1/me", usersHandler.GetMe)
		r.Get("/v1/me/trust-score", usersHandler.TrustScore)
		r.With(rateLimiters[middleware.LimiterMutations]).Post("/v1/users/block/{userId}", usersHandler.Block)
	})

	return r
}
