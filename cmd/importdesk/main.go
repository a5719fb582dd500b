// Package main is the entry point for the importdesk CLI.
//
// The import desk can be embedded as a library (SDK) or run as a standalone
// binary with YAML configuration. This CLI provides the standalone binary.
//
// Usage:
//
//	importdesk serve -c config.yaml                        # Start the import page
//	importdesk validate -c config.yaml                     # Validate configuration
//	importdesk upload teachers -c config.yaml -f staff.xlsx
//	importdesk upload curriculum -c config.yaml -f plan.xlsx
//	importdesk poll -c config.yaml                         # Wait for imported teachers
//	importdesk version                                     # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "importdesk",
	Short: "Staff records import page",
	Long: `importdesk is the operator front end of the staff records backend.

It uploads teachers and curriculum spreadsheets, waits for imported
teachers to appear and shows them in a sortable table on a local web page.

Quick start:
  1. Create a config file (importdesk.yaml)
  2. Run: importdesk serve -c importdesk.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  backend_url: http://localhost:8000
  poll:
    interval: 2s
    max_attempts: 10`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this importdesk binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "importdesk %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
