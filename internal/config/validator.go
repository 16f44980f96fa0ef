package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers bridge-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// duration: validates Go duration strings such as "250ms" or "1s".
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate checks the configuration using struct tags plus cross-field
// rules. All failures here are startup errors; nothing later in the process
// lifecycle is allowed to be fatal.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Auth claims make no sense without a secret, and a secret without a
	// self-check token would defer signing mistakes to the first client.
	if c.Auth.Secret == "" {
		if c.Auth.Audience != "" || c.Auth.Issuer != "" || c.Auth.BootToken != "" {
			return errors.New("auth: audience, issuer, and boot_token require auth.secret")
		}
	} else if c.Auth.BootToken == "" {
		return errors.New("auth: boot_token is required when auth.secret is set")
	}

	// The two HTTP paths must stay distinct or posts would shadow the
	// event stream.
	if c.Server.SSEPath == c.Server.MessagePath {
		return errors.New("server: sse_path and message_path must differ")
	}

	if c.Transport == "streamable-http" && c.Proxy.Port == c.Server.Port {
		return errors.New("proxy: port must differ from server.port")
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors into actionable
// messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "duration":
		return fmt.Sprintf("%s must be a positive duration such as \"250ms\"", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
