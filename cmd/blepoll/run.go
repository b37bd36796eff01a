package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blepoll/internal/devicefactory"
	"github.com/srg/blepoll/internal/groutine"
	"github.com/srg/blepoll/pkg/config"
	"github.com/srg/blepoll/session"
)

var (
	pollConfigFile     string
	pollScanDuration   time.Duration
	pollReadCount      int
	pollReadInterval   time.Duration
	pollTargetName     string
	pollTargetUUID     string
	pollConnectTimeout time.Duration
	pollBackend        string
	pollHCIDevice      int
	pollDBusAddress    string
	pollSimulationFile string
	pollFormat         string
	pollSummary        bool
)

func init() {
	defaults := config.DefaultConfig()

	flags := rootCmd.Flags()
	flags.StringVarP(&pollConfigFile, "config", "c", "", "YAML configuration file")
	flags.DurationVar(&pollScanDuration, "scan-duration", defaults.ScanDuration, "How long to collect advertisements")
	flags.IntVarP(&pollReadCount, "read-count", "n", defaults.ReadCount, "Number of reads")
	flags.DurationVar(&pollReadInterval, "read-interval", defaults.ReadInterval, "Delay after each read")
	flags.StringVar(&pollTargetName, "target-name", defaults.TargetName, "Substring of the advertised name to match (case-insensitive)")
	flags.StringVar(&pollTargetUUID, "target-uuid", defaults.TargetUUID, "Characteristic UUID to read (16-bit, 32-bit or 128-bit form)")
	flags.DurationVar(&pollConnectTimeout, "connect-timeout", defaults.ConnectTimeout, "Timeout for connection and service discovery")
	flags.StringVar(&pollBackend, "backend", "", fmt.Sprintf("Bluetooth backend: bluez, goble or simulated (default %s)", config.DefaultBackend()))
	flags.IntVar(&pollHCIDevice, "hci-device", defaults.HCIDevice, "HCI device index for the goble backend (-1 = any)")
	flags.StringVar(&pollDBusAddress, "dbus-address", "", "D-Bus address for the bluez backend (system bus by default)")
	flags.StringVar(&pollSimulationFile, "simulation-file", "", "YAML profile for the simulated backend")
	flags.StringVarP(&pollFormat, "format", "f", defaults.OutputFormat, "Output format: hex, bytes or json")
	flags.BoolVar(&pollSummary, "summary", false, "Print a run summary to stderr")
}

// loadConfig reads the config file, if any, and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(pollConfigFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("scan-duration") {
		cfg.ScanDuration = pollScanDuration
	}
	if flags.Changed("read-count") {
		cfg.ReadCount = pollReadCount
	}
	if flags.Changed("read-interval") {
		cfg.ReadInterval = pollReadInterval
	}
	if flags.Changed("target-name") {
		cfg.TargetName = pollTargetName
	}
	if flags.Changed("target-uuid") {
		cfg.TargetUUID = pollTargetUUID
	}
	if flags.Changed("connect-timeout") {
		cfg.ConnectTimeout = pollConnectTimeout
	}
	if flags.Changed("backend") {
		cfg.Backend = pollBackend
	}
	if flags.Changed("hci-device") {
		cfg.HCIDevice = pollHCIDevice
	}
	if flags.Changed("dbus-address") {
		cfg.DBusAddress = pollDBusAddress
	}
	if flags.Changed("simulation-file") {
		cfg.SimulationFile = pollSimulationFile
		if !flags.Changed("backend") && cfg.Backend == "" {
			cfg.Backend = config.BackendSimulated
		}
	}
	if flags.Changed("format") {
		cfg.OutputFormat = pollFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	return cfg, nil
}

func runPoll(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	manager, err := devicefactory.ManagerFactory(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close device manager")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	watchSignals(ctx, cancel, logger)

	sess := session.New(manager, session.OptionsFromConfig(cfg), logger)

	stdout := cmd.OutOrStdout()
	if isTerminal(stdout) {
		progress := NewProgressPrinter(stdout, fmt.Sprintf("Polling %q", cfg.TargetName))
		sess.OnProgress(progress.Callback())
		progress.Start()
		defer progress.Stop()
	}

	printer := newResultPrinter(stdout, cfg.OutputFormat, cfg.Target().Short())
	report, err := sess.Run(ctx, printer.Emit)
	if err != nil {
		return err
	}
	if err := printer.Err(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if pollSummary {
		printSummary(cmd.ErrOrStderr(), report)
	}
	return nil
}

// watchSignals cancels the run on SIGINT or SIGTERM.
func watchSignals(ctx context.Context, cancel context.CancelFunc, logger *logrus.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	groutine.Go(ctx, "signal-watcher", func(ctx context.Context) {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Info("Interrupted, cancelling run...")
			cancel()
		case <-ctx.Done():
		}
	})
}
