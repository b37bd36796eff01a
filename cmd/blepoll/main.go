package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blepoll",
	Short: "Poll a BLE characteristic on a nearby device",
	Long: `Bluetooth Low Energy (BLE) polling client:

- Scan for a peripheral whose advertised name contains a target substring
- Connect and discover its GATT services and characteristics
- Read one characteristic a fixed number of times at a fixed interval

Defaults target ChoiceMMed devices and characteristic 0x2A5F, reading
20 times every 200ms after a 2s scan.

Examples:
  # Run with defaults on the platform's Bluetooth stack
  blepoll

  # Five reads, one per second, printed as JSON
  blepoll --read-count 5 --read-interval 1s --format json

  # Dry run against a simulated device
  blepoll --backend simulated --simulation-file device.yaml`,
	Args:    cobra.NoArgs,
	RunE:    runPoll,
	Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		// Print user-friendly error message
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
