package main

import (
	"fmt"
	"strings"

	"github.com/kadrsp/importdesk/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an importdesk configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  importdesk validate -c config.yaml
  importdesk validate --config /etc/importdesk/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Backend:       %s\n", cfg.BackendURL)
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll:          %d attempts every %s\n", cfg.Poll.MaxAttempts, cfg.Poll.Interval.Duration())
	fmt.Fprintf(out, "  Timeout:       %s\n", cfg.RequestTimeout.Duration())
	fmt.Fprintf(out, "  Sheets:        %s\n", strings.Join(cfg.Curriculum.Sheets, ", "))
	fmt.Fprintf(out, "  Headers:       %d\n", len(cfg.Headers))

	return nil
}
