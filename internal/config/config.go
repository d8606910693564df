package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/localgroup/pkg/group"
	"github.com/tendant/localgroup/pkg/trust"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr         string
	ServerPort         int
	MaxRequestBodySize int64

	// Storage
	StoreDriver string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// JWT
	JWTSecret string
	JWTIssuer string

	// NATS (empty URL disables publishing)
	NATSURL           string
	NATSName          string
	NATSSubjectPrefix string

	// Lifecycle
	ConfirmationWindow        time.Duration
	ExpireBuffer              time.Duration
	TickPeriod                time.Duration
	TickTimeout               time.Duration
	SweepConcurrency          int
	MaxActiveGroupsPerCreator int
	NoShowPenalty             int
	AttendedReward            int
	GroupMinSize              int
	GroupMaxSize              int

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
}

// RateLimitConfig holds per-IP rate limits for mutating endpoints.
type RateLimitConfig struct {
	Enabled            bool
	MutationsPerMinute int
	SOSPerMinute       int
}

// SecurityHeadersConfig holds the response headers applied to every API response.
type SecurityHeadersConfig struct {
	Enabled            bool
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:         getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:         getEnvInt("SERVER_PORT", 8080),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 64*1024)),

		// Storage defaults
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "localgroup"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		// JWT defaults
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		// NATS
		NATSURL:           getEnv("NATS_URL", ""),
		NATSName:          getEnv("NATS_NAME", "localgroupd"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "localgroup"),

		// Lifecycle defaults
		ConfirmationWindow:        time.Duration(getEnvInt("CONFIRMATION_WINDOW_HOURS", 24)) * time.Hour,
		ExpireBuffer:              time.Duration(getEnvInt("EXPIRE_BUFFER_MINUTES", 30)) * time.Minute,
		TickPeriod:                time.Duration(getEnvInt("TICK_PERIOD_SECONDS", 60)) * time.Second,
		TickTimeout:               getEnvDuration("TICK_TIMEOUT", 0),
		SweepConcurrency:          getEnvInt("SWEEP_CONCURRENCY", 8),
		MaxActiveGroupsPerCreator: getEnvInt("MAX_ACTIVE_GROUPS_PER_CREATOR", group.DefaultMaxActiveGroupsPerCreator),
		NoShowPenalty:             getEnvInt("NO_SHOW_PENALTY", trust.DefaultNoShowPenalty),
		AttendedReward:            getEnvInt("ATTENDED_REWARD", trust.DefaultAttendedReward),
		GroupMinSize:              getEnvInt("GROUP_MIN_SIZE", group.DefaultMinSize),
		GroupMaxSize:              getEnvInt("GROUP_MAX_SIZE", group.DefaultMaxSize),

		RateLimit: RateLimitConfig{
			Enabled:            getEnvBool("RATE_LIMIT_ENABLED", true),
			MutationsPerMinute: getEnvInt("RATE_LIMIT_MUTATIONS_PER_MINUTE", 30),
			SOSPerMinute:       getEnvInt("RATE_LIMIT_SOS_PER_MINUTE", 5),
		},
		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			HSTSMaxAge:         getEnvInt("HSTS_MAX_AGE", 0),
			FrameOptions:       getEnv("X_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("REFERRER_POLICY", "no-referrer"),
		},
	}

	// Unset timeout follows the period.
	if cfg.TickTimeout == 0 {
		cfg.TickTimeout = cfg.TickPeriod * 3 / 4
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.TickPeriod <= 0 {
		return errors.New("TICK_PERIOD_SECONDS must be positive")
	}
	if c.TickTimeout <= 0 || c.TickTimeout >= c.TickPeriod {
		return fmt.Errorf("TICK_TIMEOUT (%s) must be positive and below the tick period (%s)", c.TickTimeout, c.TickPeriod)
	}
	if c.SweepConcurrency < 1 {
		return errors.New("SWEEP_CONCURRENCY must be at least 1")
	}
	if err := c.Rules().Validate(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && (c.RateLimit.MutationsPerMinute < 1 || c.RateLimit.SOSPerMinute < 1) {
		return errors.New("rate limits must be at least 1 request per minute")
	}
	return nil
}

// Rules converts the lifecycle settings to group rules.
func (c *Config) Rules() group.Rules {
	return group.Rules{
		ConfirmationWindow:        c.ConfirmationWindow,
		ExpireBuffer:              c.ExpireBuffer,
		MaxActiveGroupsPerCreator: c.MaxActiveGroupsPerCreator,
		NoShowPenalty:             c.NoShowPenalty,
		AttendedReward:            c.AttendedReward,
		MinSize:                   c.GroupMinSize,
		MaxSize:                   c.GroupMaxSize,
	}
}

// HasNATS returns true if event publishing is configured.
func (c *Config) HasNATS() bool {
	return c.NATSURL != ""
}

// NATSServers splits NATS_URL on commas.
func (c *Config) NATSServers() []string {
	var servers []string
	for _, s := range strings.Split(c.NATSURL, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
