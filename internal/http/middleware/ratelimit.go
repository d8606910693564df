package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/localgroup/internal/config"
	"github.com/tendant/localgroup/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates a rate limiter keyed by the authenticated user, falling
// back to the client IP for anonymous requests.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(userOrIPKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

func userOrIPKey(r *http.Request) (string, error) {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID.String(), nil
	}
	return httprate.KeyByIP(r)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// Limiter names returned by CreateRateLimiters.
const (
	LimiterMutations = "mutations"
	LimiterSOS       = "sos"
)

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			LimiterMutations: noOp,
			LimiterSOS:       noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		LimiterMutations: RateLimit(RateLimitConfig{
			Requests: cfg.MutationsPerMinute,
			Window:   time.Minute,
			Logger:   logger,
		}),
		LimiterSOS: RateLimit(RateLimitConfig{
			Requests: cfg.SOSPerMinute,
			Window:   time.Minute,
			Logger:   logger,
		}),
	}
}
