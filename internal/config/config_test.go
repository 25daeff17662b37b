package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/routing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"LEADROUTER_PORT", "LEADROUTER_METRICS_PORT", "LEADROUTER_ADMIN_TOKEN",
		"LEADROUTER_DATABASE_URL", "LEADROUTER_NATS_URL", "LEADROUTER_REDIS_ADDR",
		"LEADROUTER_REDIS_PASSWORD", "LEADROUTER_CRM_URL", "LEADROUTER_CRM_TOKEN",
		"LEADROUTER_MODE", "LEADROUTER_AUTO_APPROVE_SCORE",
		"LEADROUTER_SWEEP_INTERVAL_MS", "LEADROUTER_LOG_LEVEL",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8700 {
		t.Errorf("expected port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected metrics port 8701, got %d", cfg.Server.MetricsPort)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("nats url = %s", cfg.NATS.URL)
	}
	if cfg.Decision.Mode != proposal.ModeHybrid {
		t.Errorf("mode = %s", cfg.Decision.Mode)
	}
	if cfg.Decision.AutoApproveScore != 75 {
		t.Errorf("auto-approve score = %v", cfg.Decision.AutoApproveScore)
	}
	if !cfg.Gating.RequireAvailability {
		t.Error("availability gate should default on")
	}
	if cfg.Profiles.WindowDays != 90 || cfg.Profiles.RecentWindowDays != 14 {
		t.Errorf("profile windows = %+v", cfg.Profiles)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestDefaultRuleWeightsSumTo100(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got := routing.EnabledWeightSum(cfg.Rules); got != 100 {
		t.Errorf("default rule weights sum to %v, want 100", got)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9000
  admin_token: hush
decision:
  mode: manual
  expiry_hours: 12
rules:
  - id: custom
    name: Custom fixed rule
    weight: 100
    enabled: true
    category: other
    score:
      method: fixed
      value: 1.0
gating:
  exclude_burnout: true
  burnout_threshold: 80
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.AdminToken != "hush" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Decision.Mode != proposal.ModeManual || cfg.Decision.ExpiryHours != 12 {
		t.Errorf("decision = %+v", cfg.Decision)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].ID != "custom" {
		t.Fatalf("rules = %+v", cfg.Rules)
	}
	if cfg.Rules[0].Score.Method != routing.MethodFixed || cfg.Rules[0].Score.Value != 1.0 {
		t.Errorf("score spec = %+v", cfg.Rules[0].Score)
	}
	if !cfg.Gating.ExcludeBurnout || cfg.Gating.BurnoutThreshold != 80 {
		t.Errorf("gating = %+v", cfg.Gating)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEADROUTER_PORT", "9100")
	t.Setenv("LEADROUTER_DATABASE_URL", "postgres://db/leadrouter")
	t.Setenv("LEADROUTER_NATS_URL", "nats://broker:4222")
	t.Setenv("LEADROUTER_MODE", "auto")
	t.Setenv("LEADROUTER_AUTO_APPROVE_SCORE", "90")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://db/leadrouter" {
		t.Errorf("db url = %s", cfg.Database.URL)
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("nats = %+v", cfg.NATS)
	}
	if cfg.Decision.Mode != proposal.ModeAuto || cfg.Decision.AutoApproveScore != 90 {
		t.Errorf("decision = %+v", cfg.Decision)
	}
}

func TestRoutingPolicy(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	policy := cfg.RoutingPolicy("org-1")
	if len(policy.Rules) != len(cfg.Rules) {
		t.Errorf("policy rules = %d", len(policy.Rules))
	}
	if policy.Versions.RuleSet != "default" {
		t.Errorf("versions = %+v", policy.Versions)
	}
}
