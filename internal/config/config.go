// Package config provides configuration loading for the CRM bridge.
//
// Configuration is file-based (crmbridge.yaml) with environment variable
// overrides. The only required settings are the CRM credentials; everything
// else has a working default.
package config

import "time"

// Config is the top-level configuration.
type Config struct {
	// CRM holds the upstream API credentials. Both fields are required;
	// the server refuses to start without them.
	CRM CRMConfig `yaml:"crm" mapstructure:"crm"`

	// Transport selects the serving mode: stdio, sse, or streamable-http.
	Transport string `yaml:"transport" mapstructure:"transport" validate:"oneof=stdio sse streamable-http"`

	// Server configures the HTTP listener used by the sse and
	// streamable-http transports.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Proxy configures the companion process run in streamable-http mode.
	Proxy ProxyConfig `yaml:"proxy" mapstructure:"proxy"`

	// Auth configures the optional bearer token gate on the HTTP surface.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// RateLimit configures the outbound call gate toward the CRM.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Policies defines optional tool access rules. When empty every tool
	// call is allowed.
	Policies []PolicyConfig `yaml:"policies" mapstructure:"policies" validate:"omitempty,dive"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// CRMConfig holds the upstream API credentials.
type CRMConfig struct {
	// APIToken authenticates every upstream request.
	APIToken string `yaml:"api_token" mapstructure:"api_token" validate:"required"`

	// Domain is the company slug of the CRM account, not a full URL.
	Domain string `yaml:"domain" mapstructure:"domain" validate:"required"`

	// Timeout bounds each upstream HTTP request, as a duration string.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
}

// TimeoutDuration parses the configured upstream timeout.
func (c CRMConfig) TimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(c.Timeout)
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Port is the listen port for the SSE server.
	Port int `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`

	// SSEPath is the event stream path.
	SSEPath string `yaml:"sse_path" mapstructure:"sse_path" validate:"startswith=/"`

	// MessagePath is the JSON-RPC post path.
	MessagePath string `yaml:"message_path" mapstructure:"message_path" validate:"startswith=/"`
}

// ProxyConfig configures the streamable-http companion process.
type ProxyConfig struct {
	// Port is the port the companion proxy listens on.
	Port int `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`

	// Command is the proxy executable to spawn.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`
}

// AuthConfig configures the bearer token gate. An empty secret disables
// authentication entirely.
type AuthConfig struct {
	Secret    string `yaml:"secret" mapstructure:"secret"`
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm" validate:"omitempty,oneof=HS256 HS384 HS512"`
	Audience  string `yaml:"audience" mapstructure:"audience"`
	Issuer    string `yaml:"issuer" mapstructure:"issuer"`

	// BootToken, when set, is verified against the gate at startup so a
	// mis-signed deployment fails at boot instead of denying every client.
	BootToken string `yaml:"boot_token" mapstructure:"boot_token"`
}

// RateLimitConfig configures the outbound call gate.
type RateLimitConfig struct {
	// Interval is the minimum spacing between upstream calls, as a
	// duration string such as "250ms".
	Interval string `yaml:"interval" mapstructure:"interval" validate:"omitempty,duration"`

	// Concurrency is the maximum number of upstream calls in flight.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"min=1"`
}

// IntervalDuration parses the configured interval. Validate guarantees the
// string parses, so errors here mean Validate was skipped.
func (c RateLimitConfig) IntervalDuration() (time.Duration, error) {
	return time.ParseDuration(c.Interval)
}

// PolicyConfig is one tool access rule.
type PolicyConfig struct {
	Name      string `yaml:"name" mapstructure:"name" validate:"required"`
	Condition string `yaml:"condition" mapstructure:"condition" validate:"required"`
	Action    string `yaml:"action" mapstructure:"action" validate:"oneof=allow deny"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Transport == "" {
		c.Transport = "stdio"
	}
	if c.CRM.Timeout == "" {
		c.CRM.Timeout = "30s"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.SSEPath == "" {
		c.Server.SSEPath = "/sse"
	}
	if c.Server.MessagePath == "" {
		c.Server.MessagePath = "/message"
	}
	if c.Proxy.Port == 0 {
		c.Proxy.Port = 3001
	}
	if c.Proxy.Command == "" {
		c.Proxy.Command = "mcp-proxy"
	}
	if c.Auth.Algorithm == "" && c.Auth.Secret != "" {
		c.Auth.Algorithm = "HS256"
	}
	if c.RateLimit.Interval == "" {
		c.RateLimit.Interval = "250ms"
	}
	if c.RateLimit.Concurrency == 0 {
		c.RateLimit.Concurrency = 2
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
