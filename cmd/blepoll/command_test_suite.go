//go:build test

package main

import (
	"bytes"
	"context"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/srg/blepoll/internal/device"
	"github.com/srg/blepoll/internal/devicefactory"
	"github.com/srg/blepoll/internal/testutils"
	"github.com/srg/blepoll/pkg/config"
)

// CommandTestSuite extends SimulatedBLESuite with command testing utilities.
// By default the command runs against the suite's simulated Manager so tests
// can inspect adapter and peripheral state afterwards.
type CommandTestSuite struct {
	testutils.SimulatedBLESuite

	originalFactory func(cfg *config.Config, logger *logrus.Logger) (device.Manager, error)
	// LastConfig is the configuration the command handed to the factory.
	LastConfig *config.Config
}

func (s *CommandTestSuite) SetupSuite() {
	s.SimulatedBLESuite.SetupSuite()
	s.originalFactory = devicefactory.ManagerFactory
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownSuite() {
	devicefactory.ManagerFactory = s.originalFactory
}

func (s *CommandTestSuite) SetupTest() {
	s.SimulatedBLESuite.SetupTest()
	s.LastConfig = nil
	devicefactory.ManagerFactory = func(cfg *config.Config, _ *logrus.Logger) (device.Manager, error) {
		s.LastConfig = cfg
		return s.Manager, nil
	}
}

// UseRealFactory routes the command through the production backend factory.
func (s *CommandTestSuite) UseRealFactory() {
	devicefactory.ManagerFactory = s.originalFactory
}

// ExecuteCommand runs rootCmd with args and returns stdout, stderr and the error.
// Flags are reset to their defaults first since cobra keeps them between runs.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	resetFlags(rootCmd.Flags())
	resetFlags(rootCmd.PersistentFlags())

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	rootCmd.SilenceUsage = false
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// FastArgs returns flags that keep a simulated run short.
func FastArgs(extra ...string) []string {
	return append([]string{
		"--scan-duration", "10ms",
		"--read-interval", "1ms",
		"--connect-timeout", "1s",
	}, extra...)
}

func resetFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}
