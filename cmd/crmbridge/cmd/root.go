// Package cmd provides the CLI commands for the CRM bridge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crmbridge/crmbridge/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "crmbridge",
	Short: "crmbridge - MCP server for Pipedrive CRM",
	Long: `crmbridge exposes a Pipedrive CRM account as a set of Model Context
Protocol (MCP) tools and prompts, so AI assistants can read and create
deals, contacts, and organizations.

Quick start:
  1. Create a config file: crmbridge.yaml (or set CRMBRIDGE_CRM_API_TOKEN
     and CRMBRIDGE_CRM_DOMAIN)
  2. Run: crmbridge serve

Configuration:
  Config is loaded from crmbridge.yaml in the current directory,
  $HOME/.crmbridge/, or /etc/crmbridge/.

  Environment variables can override config values with the CRMBRIDGE_ prefix.
  Example: CRMBRIDGE_SERVER_PORT=8080

Commands:
  serve       Start the bridge (stdio, sse, or streamable-http transport)
  sign-token  Sign a bearer token for the HTTP transports
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./crmbridge.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
