// Package core assembles the group lifecycle services behind one handle.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create a Core and mount its router, then run its scheduler
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/localgroup?sslmode=disable")
//
//	c, err := core.New(core.Config{
//	    DB:        db,
//	    JWTSecret: "shared-secret-with-the-identity-service",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	go c.Scheduler().Run(ctx)
//	http.ListenAndServe(":8080", c.Router())
//
// Leaving DB nil runs everything on the in-memory store.
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/internal/config"
	httpserver "github.com/tendant/localgroup/internal/http"
	"github.com/tendant/localgroup/internal/http/middleware"
	"github.com/tendant/localgroup/pkg/auth"
	"github.com/tendant/localgroup/pkg/chat"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/events"
	"github.com/tendant/localgroup/pkg/gate"
	"github.com/tendant/localgroup/pkg/group"
	"github.com/tendant/localgroup/pkg/lifecycle"
	"github.com/tendant/localgroup/pkg/repository"
	"github.com/tendant/localgroup/pkg/repository/memstore"
	"github.com/tendant/localgroup/pkg/safety"
	"github.com/tendant/localgroup/pkg/trust"
)

// Config holds the configuration for a Core.
type Config struct {
	// DB is the database connection. When nil the in-memory store is used.
	DB *sql.DB

	// JWTSecret verifies access tokens issued by the identity service (required).
	JWTSecret string

	// JWTIssuer, when set, rejects tokens from other issuers.
	JWTIssuer string

	// Rules parameterize group creation and the lifecycle (default: group.DefaultRules()).
	Rules group.Rules

	// TickPeriod, TickTimeout and SweepConcurrency tune the scheduler.
	TickPeriod       time.Duration
	TickTimeout      time.Duration
	SweepConcurrency int

	// Publisher receives lifecycle, chat and SOS events (default: events.Nop).
	Publisher events.Publisher

	// SubjectPrefix prefixes every event subject (default: "localgroup").
	SubjectPrefix string

	RateLimit          config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// storage is everything the services need from a backing store.
type storage interface {
	group.Store
	group.BlockList
	group.PlaceChecker
	trust.Store
	safety.Store
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Block(ctx context.Context, ownerID, userID uuid.UUID) error
}

var (
	_ storage = (*repository.Store)(nil)
	_ storage = (*memstore.Store)(nil)
)

// Core holds the wired services.
type Core struct {
	config    Config
	store     storage
	locks     *group.Locks
	registry  *group.Registry
	ledger    *trust.Ledger
	gate      *gate.Gatekeeper
	chat      *chat.Service
	safety    *safety.Service
	tokens    *auth.TokenService
	scheduler *lifecycle.Scheduler
}

// New creates a Core with the given configuration.
// Returns an error if required database tables don't exist.
func New(cfg Config) (*Core, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	var store storage
	var places group.PlaceChecker
	if cfg.DB != nil {
		if err := validateSchema(cfg.DB); err != nil {
			return nil, err
		}
		pg := repository.NewStore(cfg.DB)
		store, places = pg, pg
	} else {
		// The in-memory store has no place catalogue, so place ids go unchecked.
		store = memstore.New()
		cfg.Logger.Warn("no database configured, using in-memory store")
	}

	subjects := events.NewSubjects(cfg.SubjectPrefix)
	locks := group.NewLocks()
	ledger := trust.NewLedger(store, cfg.Logger)
	gk := gate.New(store, store)

	registry := group.NewRegistry(group.RegistryConfig{Rules: cfg.Rules, Now: cfg.Now}, store, store, places, locks, cfg.Logger)
	scheduler := lifecycle.NewScheduler(lifecycle.Config{
		Period:      cfg.TickPeriod,
		Timeout:     cfg.TickTimeout,
		Concurrency: cfg.SweepConcurrency,
		Rules:       cfg.Rules,
		Subjects:    subjects,
		Now:         cfg.Now,
	}, store, ledger, locks, cfg.Publisher, cfg.Logger)

	return &Core{
		config:    cfg,
		store:     store,
		locks:     locks,
		registry:  registry,
		ledger:    ledger,
		gate:      gk,
		chat:      chat.NewService(gk, cfg.Publisher, subjects, cfg.Logger),
		safety:    safety.NewService(gk, store, cfg.Publisher, subjects, cfg.Logger),
		tokens:    auth.NewTokenService(auth.TokenConfig{JWTSecret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}),
		scheduler: scheduler,
	}, nil
}

// Router returns an http.Handler serving every endpoint:
//
//	GET  /health
//	POST /v1/groups                      - Create group
//	GET  /v1/groups/{id}                 - Group snapshot
//	GET  /v1/me/groups                   - Caller's groups
//	POST /v1/groups/{id}/join            - Join public group
//	POST /v1/groups/{id}/join-private    - Join with invite code
//	POST /v1/groups/{id}/leave           - Leave group
//	POST /v1/groups/{id}/confirm         - Confirm attendance
//	POST /v1/groups/{id}/messages        - Send chat message
//	POST /v1/safety/sos/{id}             - Raise SOS
//	GET  /v1/me                          - Caller's profile
//	GET  /v1/me/trust-score              - Caller's trust score
//	POST /v1/users/block/{userId}        - Block a user
func (c *Core) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             c.config.Logger,
		Tokens:             c.tokens,
		Registry:           c.registry,
		Chat:               c.chat,
		Safety:             c.safety,
		Ledger:             c.ledger,
		Users:              c.store,
		RateLimitConfig:    c.config.RateLimit,
		SecurityHeaders:    c.config.SecurityHeaders,
		MaxRequestBodySize: c.config.MaxRequestBodySize,
	})
}

// Scheduler returns the lifecycle scheduler. Run it once per deployment.
func (c *Core) Scheduler() *lifecycle.Scheduler {
	return c.scheduler
}

// Registry returns the membership registry for advanced usage.
func (c *Core) Registry() *group.Registry {
	return c.registry
}

// Ledger returns the trust score ledger.
func (c *Core) Ledger() *trust.Ledger {
	return c.ledger
}

// Tokens returns the access token service.
func (c *Core) Tokens() *auth.TokenService {
	return c.tokens
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(c.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (c *Core) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(c.tokens)
}

// GetUserIDFromContext extracts the user ID from a context.
// Use after AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("core: JWTSecret is required")
	}
	if cfg.Rules != (group.Rules{}) {
		if err := cfg.Rules.Validate(); err != nil {
			return fmt.Errorf("core: %w", err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Rules == (group.Rules{}) {
		cfg.Rules = group.DefaultRules()
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = events.DefaultSubjectPrefix
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "places", "groups", "group_members", "safety_events"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("core: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("core: failed to check schema: %w", err)
		}
	}

	return nil
}
