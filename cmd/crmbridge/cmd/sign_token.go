package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crmbridge/crmbridge/internal/config"
	"github.com/crmbridge/crmbridge/internal/domain/auth"
)

var signTokenCmd = &cobra.Command{
	Use:   "sign-token",
	Short: "Sign a bearer token for the HTTP transports",
	Long: `Sign a bearer token with the configured auth secret.

The token carries the configured audience and issuer claims, so it passes
the same checks the server applies to incoming requests. Use the output as:

  Authorization: Bearer <token>

Examples:
  crmbridge sign-token --subject claude --ttl 24h
  CRMBRIDGE_AUTH_SECRET=s3cret crmbridge sign-token --subject ci`,
	RunE: runSignToken,
}

var (
	signSubject string
	signTTL     string
)

func init() {
	signTokenCmd.Flags().StringVar(&signSubject, "subject", "crmbridge-client", "subject (sub) claim for the token")
	signTokenCmd.Flags().StringVar(&signTTL, "ttl", "24h", "token lifetime, e.g. 1h or 30d")
	rootCmd.AddCommand(signTokenCmd)
}

func runSignToken(cmd *cobra.Command, args []string) error {
	// Raw load: sign-token is how the boot token gets minted in the first
	// place, so it cannot require one to be configured already.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is not configured; nothing to sign with")
	}

	ttl, err := time.ParseDuration(signTTL)
	if err != nil || ttl <= 0 {
		return fmt.Errorf("invalid ttl %q", signTTL)
	}

	token, err := auth.Sign(auth.Config{
		Secret:    cfg.Auth.Secret,
		Algorithm: cfg.Auth.Algorithm,
		Audience:  cfg.Auth.Audience,
		Issuer:    cfg.Auth.Issuer,
	}, signSubject, ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Println(token)
	return nil
}
