package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.Session.SearchTerms = []string{"chartered accountants", " accounting services ", "Chartered Accountants"}
	cfg.Source.Path = "testdata/raw.json"
	return cfg
}

func TestNormalizeAndValidateDefaults(t *testing.T) {
	out, vr := NormalizeAndValidate(validConfig())
	if !vr.OK() {
		t.Fatalf("expected valid config, got %v", vr.Errors)
	}
	if got := len(out.Session.SearchTerms); got != 2 {
		t.Fatalf("search terms not de-duplicated: %v", out.Session.SearchTerms)
	}
	if out.Session.SearchTerms[1] != "accounting services" {
		t.Fatalf("search term not trimmed: %q", out.Session.SearchTerms[1])
	}
}

func TestNormalizeAndValidateCRM(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "enabled without url",
			mutate:  func(c *Config) { c.CRM.Enabled = true },
			wantErr: "crm.url is required",
		},
		{
			name: "unknown type",
			mutate: func(c *Config) {
				c.CRM.Enabled = true
				c.CRM.Type = "pipedrive"
				c.CRM.URL = "https://crm.example.com/hook"
			},
			wantErr: "not supported",
		},
		{
			name: "odoo needs db",
			mutate: func(c *Config) {
				c.CRM.Enabled = true
				c.CRM.Type = "odoo"
				c.CRM.URL = "crm.example.com"
				c.CRM.Username = "admin"
			},
			wantErr: "crm.db is required",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Push.MaxRetries = 0 },
			wantErr: "push.max_retries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			_, vr := NormalizeAndValidate(cfg)
			if vr.OK() {
				t.Fatalf("expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(vr.Err().Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", vr.Err(), tt.wantErr)
			}
		})
	}
}

func TestSaveAtomicAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg := validConfig()
	cfg.Session.DurationMinutes = 15
	if err := SaveAtomic(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	// second save leaves a backup behind
	if err := SaveAtomic(path, cfg); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Session.DurationMinutes != 15 {
		t.Fatalf("duration = %d, want 15", got.Session.DurationMinutes)
	}
	if got.Scoring.Base != 4 {
		t.Fatalf("scoring base = %d, want 4", got.Scoring.Base)
	}
}

func TestSaveAtomicRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := validConfig()
	cfg.App.Port = 0
	if err := SaveAtomic(path, cfg); err == nil {
		t.Fatal("expected error for invalid port")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("invalid config must not be written")
	}
}

func TestEnsureUserConfigSeedsDefault(t *testing.T) {
	dir := t.TempDir()
	p, err := EnsureUserConfig(dir, filepath.Join(dir, "missing.yml"))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load seeded: %v", err)
	}
	if cfg.Push.MaxRetries != 3 {
		t.Fatalf("max retries = %d, want 3", cfg.Push.MaxRetries)
	}
}

func TestEnsureUserConfigSkipsBrokenDefault(t *testing.T) {
	dir := t.TempDir()
	shipped := filepath.Join(dir, "shipped.yml")
	if err := os.WriteFile(shipped, []byte("session: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := EnsureUserConfig(filepath.Join(dir, "data"), shipped)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load seeded: %v", err)
	}
	if cfg.Scoring.Base != 4 {
		t.Fatalf("scoring base = %d, want built-in default", cfg.Scoring.Base)
	}

	// an existing file is left alone
	if err := os.WriteFile(p, []byte("app:\n  port: 9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureUserConfig(filepath.Join(dir, "data"), shipped); err != nil {
		t.Fatal(err)
	}
	if cfg, _ := Load(p); cfg.App.Port != 9999 {
		t.Fatalf("existing config overwritten: port %d", cfg.App.Port)
	}
}

func TestOverlayEnv(t *testing.T) {
	t.Setenv("LEADHUNT_CRM_URL", "https://odoo.example.com/web/hook/abc")
	t.Setenv("LEADHUNT_CRM_ENABLED", "true")
	t.Setenv("LEADHUNT_DURATION_MINUTES", "120")

	cfg := Default()
	OverlayEnv(&cfg)
	if !cfg.CRM.Enabled || cfg.CRM.URL != "https://odoo.example.com/web/hook/abc" {
		t.Fatalf("crm overlay not applied: %+v", cfg.CRM)
	}
	if cfg.Session.DurationMinutes != 120 {
		t.Fatalf("duration = %d, want 120", cfg.Session.DurationMinutes)
	}
}

func TestValidateExtraSources(t *testing.T) {
	cfg := validConfig()
	cfg.ExtraSources = []Source{
		{Type: " HTML ", HTML: HTMLSource{URLTemplate: "https://dir.example.com/?q={query}", Listing: ".card", Fields: map[string]string{"Name": "h2"}}},
		{Type: "file"},
	}
	out, vr := NormalizeAndValidate(cfg)
	if out.ExtraSources[0].Type != "html" {
		t.Fatalf("type not normalized: %q", out.ExtraSources[0].Type)
	}
	if vr.OK() || !strings.Contains(vr.Err().Error(), "extra_sources[1].path is required") {
		t.Fatalf("errors = %v", vr.Errors)
	}
	if cfg.ExtraSources[0].Type != " HTML " {
		t.Fatal("input config was mutated")
	}
}
