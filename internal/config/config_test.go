package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() *Config {
	cfg := &Config{
		CRM: CRMConfig{APIToken: "tok", Domain: "acme"},
	}
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Transport != "stdio" {
		t.Errorf("Transport = %q, want stdio", cfg.Transport)
	}
	if cfg.Server.Port != 3000 || cfg.Server.SSEPath != "/sse" || cfg.Server.MessagePath != "/message" {
		t.Errorf("Server defaults = %+v", cfg.Server)
	}
	if cfg.Proxy.Port != 3001 || cfg.Proxy.Command != "mcp-proxy" {
		t.Errorf("Proxy defaults = %+v", cfg.Proxy)
	}
	if cfg.RateLimit.Interval != "250ms" || cfg.RateLimit.Concurrency != 2 {
		t.Errorf("RateLimit defaults = %+v", cfg.RateLimit)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.CRM.Timeout != "30s" {
		t.Errorf("CRM.Timeout = %q, want 30s", cfg.CRM.Timeout)
	}

	d, err := cfg.RateLimit.IntervalDuration()
	if err != nil || d != 250*time.Millisecond {
		t.Errorf("IntervalDuration() = %v, %v", d, err)
	}
}

func TestSetDefaults_AlgorithmOnlyWithSecret(t *testing.T) {
	cfg := validConfig()
	if cfg.Auth.Algorithm != "" {
		t.Errorf("Algorithm = %q without secret, want empty", cfg.Auth.Algorithm)
	}

	cfg = &Config{CRM: CRMConfig{APIToken: "tok", Domain: "acme"}, Auth: AuthConfig{Secret: "s"}}
	cfg.SetDefaults()
	if cfg.Auth.Algorithm != "HS256" {
		t.Errorf("Algorithm = %q with secret, want HS256", cfg.Auth.Algorithm)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing api token", func(c *Config) { c.CRM.APIToken = "" }, true},
		{"missing domain", func(c *Config) { c.CRM.Domain = "" }, true},
		{"bad transport", func(c *Config) { c.Transport = "websocket" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"bad algorithm", func(c *Config) {
			c.Auth = AuthConfig{Secret: "s", Algorithm: "RS256", BootToken: "t"}
		}, true},
		{"secret without boot token", func(c *Config) { c.Auth.Secret = "s" }, true},
		{"bad interval", func(c *Config) { c.RateLimit.Interval = "fast" }, true},
		{"bad crm timeout", func(c *Config) { c.CRM.Timeout = "soon" }, true},
		{"zero concurrency", func(c *Config) { c.RateLimit.Concurrency = 0 }, true},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"path without slash", func(c *Config) { c.Server.SSEPath = "sse" }, true},
		{"same paths", func(c *Config) { c.Server.MessagePath = "/sse" }, true},
		{"boot token without secret", func(c *Config) { c.Auth.BootToken = "t" }, true},
		{"audience without secret", func(c *Config) { c.Auth.Audience = "a" }, true},
		{"proxy port clash", func(c *Config) { c.Transport = "streamable-http"; c.Proxy.Port = 3000 }, true},
		{"auth fully configured", func(c *Config) {
			c.Auth = AuthConfig{Secret: "s", Algorithm: "HS512", Audience: "crm", Issuer: "ops", BootToken: "t"}
		}, false},
		{"valid policy", func(c *Config) {
			c.Policies = []PolicyConfig{{Name: "ro", Condition: `tool.name == "x"`, Action: "deny"}}
		}, false},
		{"policy without name", func(c *Config) {
			c.Policies = []PolicyConfig{{Condition: "true", Action: "deny"}}
		}, true},
		{"policy bad action", func(c *Config) {
			c.Policies = []PolicyConfig{{Name: "r", Condition: "true", Action: "block"}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "crmbridge.yaml")
	yaml := `
crm:
  api_token: file-token
  domain: acme
transport: sse
server:
  port: 8080
rate_limit:
  interval: 500ms
  concurrency: 4
policies:
  - name: read-only
    condition: tool.name.startsWith("create_")
    action: deny
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.CRM.APIToken != "file-token" || cfg.CRM.Domain != "acme" {
		t.Errorf("CRM = %+v", cfg.CRM)
	}
	if cfg.Transport != "sse" || cfg.Server.Port != 8080 {
		t.Errorf("Transport/Port = %s/%d", cfg.Transport, cfg.Server.Port)
	}
	// Unset fields still get defaults.
	if cfg.Server.SSEPath != "/sse" || cfg.Proxy.Command != "mcp-proxy" {
		t.Errorf("defaults not applied: %+v %+v", cfg.Server, cfg.Proxy)
	}
	if cfg.RateLimit.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.RateLimit.Concurrency)
	}
	if len(cfg.Policies) != 1 || cfg.Policies[0].Action != "deny" {
		t.Errorf("Policies = %+v", cfg.Policies)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("CRMBRIDGE_CRM_API_TOKEN", "env-token")
	t.Setenv("CRMBRIDGE_CRM_DOMAIN", "envco")
	t.Setenv("CRMBRIDGE_SERVER_PORT", "9000")

	InitViper("")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.CRM.APIToken != "env-token" || cfg.CRM.Domain != "envco" {
		t.Errorf("CRM = %+v, want env values", cfg.CRM)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
}

func TestLoadConfig_SecretRequiresBootToken(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("CRMBRIDGE_CRM_API_TOKEN", "tok")
	t.Setenv("CRMBRIDGE_CRM_DOMAIN", "acme")
	t.Setenv("CRMBRIDGE_AUTH_SECRET", "shh")

	InitViper(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() = nil error with auth.secret but no boot_token, want failure")
	}

	t.Setenv("CRMBRIDGE_AUTH_BOOT_TOKEN", "self-check")
	if _, err := LoadConfig(); err != nil {
		t.Errorf("LoadConfig() error with boot_token set: %v", err)
	}
}

func TestLoadConfigRaw_SkipsValidation(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// No CRM credentials and a secret without a boot token: invalid for
	// serve, but sign-token still needs the auth settings.
	t.Setenv("CRMBRIDGE_AUTH_SECRET", "shh")

	InitViper(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := LoadConfigRaw()
	if err != nil {
		t.Fatalf("LoadConfigRaw() error: %v", err)
	}
	if cfg.Auth.Secret != "shh" || cfg.Auth.Algorithm != "HS256" {
		t.Errorf("Auth = %+v, want secret with defaulted algorithm", cfg.Auth)
	}
}

func TestLoadConfig_MissingCredentialsFails(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	InitViper(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() = nil error without credentials, want failure")
	}
}
