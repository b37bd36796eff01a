package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blepoll/pkg/config"
)

// configureLogger creates a logger from cfg.LogLevel, falling back to the
// --verbose flag when no level was given. An unset level keeps the logger
// silent for normal operations.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	if cfg.LogLevel == "" {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			cfg.LogLevel = "debug"
		}
	}

	if _, err := cfg.Level(); err != nil {
		return nil, err
	}

	logger := cfg.NewLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}
