package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, standard locations are searched for
// crmbridge.yaml/.yml. The search requires an explicit YAML extension so the
// crmbridge binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file anywhere. Set name/type without search paths so
		// ReadInConfig returns ConfigFileNotFoundError, which callers
		// treat as env-only configuration.
		viper.SetConfigName("crmbridge")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: CRMBRIDGE_CRM_API_TOKEN etc.
	viper.SetEnvPrefix("CRMBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for crmbridge.yaml or .yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".crmbridge"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "crmbridge"))
		}
	} else {
		paths = append(paths, "/etc/crmbridge")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "crmbridge"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys so environment variables can
// override them. Example: CRMBRIDGE_SERVER_PORT overrides server.port.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("crm.api_token")
	_ = viper.BindEnv("crm.domain")
	_ = viper.BindEnv("crm.timeout")

	_ = viper.BindEnv("transport")
	_ = viper.BindEnv("log_level")

	_ = viper.BindEnv("server.port")
	_ = viper.BindEnv("server.sse_path")
	_ = viper.BindEnv("server.message_path")

	_ = viper.BindEnv("proxy.port")
	_ = viper.BindEnv("proxy.command")

	_ = viper.BindEnv("auth.secret")
	_ = viper.BindEnv("auth.algorithm")
	_ = viper.BindEnv("auth.audience")
	_ = viper.BindEnv("auth.issuer")
	_ = viper.BindEnv("auth.boot_token")

	_ = viper.BindEnv("rate_limit.interval")
	_ = viper.BindEnv("rate_limit.concurrency")

	// policies is an array; override via config file only.
}

// LoadConfigRaw reads the configuration and applies environment overrides
// and defaults without validating. Used by commands that run before a full
// config exists, such as sign-token minting the boot token itself.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// LoadConfig reads the configuration, applies environment overrides and
// defaults, and validates. A missing config file is fine; missing CRM
// credentials are not.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, or an
// empty string in env-only mode.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
