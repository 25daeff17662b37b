package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/velora-crm/leadrouter/internal/agentstats"
	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/router"
	"github.com/velora-crm/leadrouter/internal/routing"
)

type Config struct {
	Server   ServerConfig              `yaml:"server"`
	Database DatabaseConfig            `yaml:"database"`
	NATS     NATSConfig                `yaml:"nats"`
	Redis    RedisConfig               `yaml:"redis"`
	CRM      CRMConfig                 `yaml:"crm"`
	Rules    []routing.ScoringRule     `yaml:"rules"`
	Gating   routing.GatingConfig      `yaml:"gating"`
	Decision proposal.DecisionConfig   `yaml:"decision"`
	Versions proposal.Versions         `yaml:"versions"`
	Profiles ProfilesConfig            `yaml:"profiles"`
	Limits   agentstats.CapacityLimits `yaml:"limits"`
	Sweep    SweepConfig               `yaml:"sweep"`
	Logging  LoggingConfig             `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	ClaimTTLMins int    `yaml:"claim_ttl_mins"`
}

type CRMConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type ProfilesConfig struct {
	WindowDays       int `yaml:"window_days"`
	RecentWindowDays int `yaml:"recent_window_days"`
}

type SweepConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalMs) * time.Millisecond
}

func (c *Config) ClaimTTL() time.Duration {
	return time.Duration(c.Redis.ClaimTTLMins) * time.Minute
}

func (c *Config) RecentWindow() time.Duration {
	return time.Duration(c.Profiles.RecentWindowDays) * 24 * time.Hour
}

// RoutingPolicy satisfies router.RuleSource. Policy is currently global; the
// org argument is the seam for per-org rule sets once they move to storage.
func (c *Config) RoutingPolicy(_ string) router.Policy {
	return router.Policy{
		Rules:    c.Rules,
		Gating:   c.Gating,
		Decision: c.Decision,
		Versions: c.Versions,
	}
}

// defaultRules is the starter rule set shipped for new installs. Weights sum
// to 100.
func defaultRules() []routing.ScoringRule {
	return []routing.ScoringRule{
		{
			ID: "conversion-rate", Name: "Overall conversion rate", Weight: 30, Enabled: true,
			Category: routing.CategoryPerformance,
			Score:    routing.ScoreSpec{Method: routing.MethodBuiltin, Builtin: routing.BuiltinConversionRate},
		},
		{
			ID: "recent-form", Name: "Recent conversion form", Weight: 20, Enabled: true,
			Category: routing.CategoryMomentum,
			Score:    routing.ScoreSpec{Method: routing.MethodBuiltin, Builtin: routing.BuiltinRecentConversion},
		},
		{
			ID: "industry-expertise", Name: "Industry expertise", Weight: 30, Enabled: true,
			Category: routing.CategoryExpertise,
			Score:    routing.ScoreSpec{Method: routing.MethodBuiltin, Builtin: routing.BuiltinIndustryMatch},
		},
		{
			ID: "availability", Name: "Availability", Weight: 20, Enabled: true,
			Category: routing.CategoryCapacity,
			Score:    routing.ScoreSpec{Method: routing.MethodBuiltin, Builtin: routing.BuiltinAvailability},
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			ClaimTTLMins: 10,
		},
		CRM: CRMConfig{
			URL: "http://localhost:8080",
		},
		Rules: defaultRules(),
		Gating: routing.GatingConfig{
			RequireAvailability: true,
		},
		Decision: proposal.DecisionConfig{
			Mode:             proposal.ModeHybrid,
			AutoApproveScore: 75,
			ExpiryHours:      48,
			OverrideAllowed:  true,
		},
		Versions: proposal.Versions{
			Schema:  "v1",
			Mapping: "v1",
			RuleSet: "default",
		},
		Profiles: ProfilesConfig{
			WindowDays:       90,
			RecentWindowDays: 14,
		},
		Sweep: SweepConfig{
			IntervalMs: 60000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LEADROUTER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("LEADROUTER_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("LEADROUTER_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("LEADROUTER_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("LEADROUTER_NATS_URL"); v != "" {
		cfg.NATS.URL = v
		cfg.NATS.Enabled = true
	}
	if v := os.Getenv("LEADROUTER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LEADROUTER_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LEADROUTER_CRM_URL"); v != "" {
		cfg.CRM.URL = v
	}
	if v := os.Getenv("LEADROUTER_CRM_TOKEN"); v != "" {
		cfg.CRM.Token = v
	}
	if v := os.Getenv("LEADROUTER_MODE"); v != "" {
		cfg.Decision.Mode = proposal.Mode(v)
	}
	if v := os.Getenv("LEADROUTER_AUTO_APPROVE_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Decision.AutoApproveScore = f
		}
	}
	if v := os.Getenv("LEADROUTER_SWEEP_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sweep.IntervalMs = n
		}
	}
	if v := os.Getenv("LEADROUTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
