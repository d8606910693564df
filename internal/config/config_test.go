package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")

	// Clear any other env vars that might interfere
	envVars := []string{
		"SERVER_ADDR", "SERVER_PORT", "STORE_DRIVER", "DB_HOST", "DB_PORT", "DB_NAME", "DB_SSLMODE",
		"NATS_URL", "NATS_SUBJECT_PREFIX", "CONFIRMATION_WINDOW_HOURS", "EXPIRE_BUFFER_MINUTES",
		"TICK_PERIOD_SECONDS", "TICK_TIMEOUT", "SWEEP_CONCURRENCY", "MAX_ACTIVE_GROUPS_PER_CREATOR",
		"NO_SHOW_PENALTY", "ATTENDED_REWARD", "GROUP_MIN_SIZE", "GROUP_MAX_SIZE", "RATE_LIMIT_ENABLED",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverPostgres)
	}
	if cfg.DBName != "localgroup" {
		t.Errorf("DBName = %q, want %q", cfg.DBName, "localgroup")
	}
	if cfg.HasNATS() {
		t.Error("HasNATS() = true without NATS_URL")
	}
	if cfg.NATSSubjectPrefix != "localgroup" {
		t.Errorf("NATSSubjectPrefix = %q, want %q", cfg.NATSSubjectPrefix, "localgroup")
	}
	if cfg.TickPeriod != time.Minute {
		t.Errorf("TickPeriod = %v, want %v", cfg.TickPeriod, time.Minute)
	}
	if cfg.TickTimeout != 45*time.Second {
		t.Errorf("TickTimeout = %v, want %v", cfg.TickTimeout, 45*time.Second)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = false, want true")
	}

	rules := cfg.Rules()
	if rules.ConfirmationWindow != 24*time.Hour {
		t.Errorf("ConfirmationWindow = %v, want 24h", rules.ConfirmationWindow)
	}
	if rules.ExpireBuffer != 30*time.Minute {
		t.Errorf("ExpireBuffer = %v, want 30m", rules.ExpireBuffer)
	}
	if rules.MaxActiveGroupsPerCreator != 2 {
		t.Errorf("MaxActiveGroupsPerCreator = %d, want 2", rules.MaxActiveGroupsPerCreator)
	}
	if rules.NoShowPenalty != -2 || rules.AttendedReward != 1 {
		t.Errorf("deltas = %d/%d, want -2/1", rules.NoShowPenalty, rules.AttendedReward)
	}
	if rules.MinSize != 2 || rules.MaxSize != 6 {
		t.Errorf("size range = [%d,%d], want [2,6]", rules.MinSize, rules.MaxSize)
	}
}

func TestLoad_RequiredJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Error("Load should fail when JWT_SECRET is not set")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "custom-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("NATS_URL", "nats://a:4222, nats://b:4222")
	t.Setenv("CONFIRMATION_WINDOW_HOURS", "12")
	t.Setenv("TICK_PERIOD_SECONDS", "30")
	t.Setenv("TICK_TIMEOUT", "20s")
	t.Setenv("NO_SHOW_PENALTY", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverMemory)
	}
	servers := cfg.NATSServers()
	if len(servers) != 2 || servers[0] != "nats://a:4222" || servers[1] != "nats://b:4222" {
		t.Errorf("NATSServers() = %v, want two trimmed servers", servers)
	}
	if cfg.ConfirmationWindow != 12*time.Hour {
		t.Errorf("ConfirmationWindow = %v, want %v", cfg.ConfirmationWindow, 12*time.Hour)
	}
	if cfg.TickPeriod != 30*time.Second || cfg.TickTimeout != 20*time.Second {
		t.Errorf("tick = %v/%v, want 30s/20s", cfg.TickPeriod, cfg.TickTimeout)
	}
	if cfg.Rules().NoShowPenalty != -3 {
		t.Errorf("NoShowPenalty = %d, want -3", cfg.Rules().NoShowPenalty)
	}
}

func TestLoad_TickTimeoutFollowsPeriod(t *testing.T) {
	tests := []struct {
		name        string
		period      string
		timeout     string
		wantTimeout time.Duration
	}{
		{"default period", "", "", 45 * time.Second},
		{"short period without timeout", "30", "", 22500 * time.Millisecond},
		{"period below old default", "10", "", 7500 * time.Millisecond},
		{"explicit timeout kept", "30", "5s", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv("TICK_PERIOD_SECONDS", tt.period)
			t.Setenv("TICK_TIMEOUT", tt.timeout)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.TickTimeout != tt.wantTimeout {
				t.Errorf("TickTimeout = %v, want %v", cfg.TickTimeout, tt.wantTimeout)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"timeout above period", map[string]string{"TICK_PERIOD_SECONDS": "10", "TICK_TIMEOUT": "15s"}},
		{"negative timeout", map[string]string{"TICK_TIMEOUT": "-5s"}},
		{"zero period", map[string]string{"TICK_PERIOD_SECONDS": "0"}},
		{"min above max", map[string]string{"GROUP_MIN_SIZE": "5", "GROUP_MAX_SIZE": "3"}},
		{"min below two", map[string]string{"GROUP_MIN_SIZE": "1"}},
		{"zero concurrency", map[string]string{"SWEEP_CONCURRENCY": "0"}},
		{"zero quota", map[string]string{"MAX_ACTIVE_GROUPS_PER_CREATOR": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("LG_TEST_INT", "not-a-number")
	t.Setenv("LG_TEST_BOOL", "false")
	t.Setenv("LG_TEST_DURATION", "90s")

	if got := getEnvInt("LG_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want fallback 7", got)
	}
	if got := getEnvBool("LG_TEST_BOOL", true); got {
		t.Errorf("getEnvBool() = %v, want false", got)
	}
	if got := getEnvDuration("LG_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
}
