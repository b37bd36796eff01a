package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
	"gopkg.in/yaml.v3"
)

// Backend names
const (
	BackendBlueZ     = "bluez"
	BackendGoBLE     = "goble"
	BackendSimulated = "simulated"
)

// Output formats
const (
	FormatHex   = "hex"
	FormatBytes = "bytes"
	FormatJSON  = "json"
)

var (
	backends      = []string{BackendBlueZ, BackendGoBLE, BackendSimulated}
	outputFormats = []string{FormatHex, FormatBytes, FormatJSON}
)

// Config holds application configuration
type Config struct {
	// Discovery and polling
	ScanDuration time.Duration `yaml:"scan_duration" default:"2s"`
	ReadCount    int           `yaml:"read_count" default:"20"`
	ReadInterval time.Duration `yaml:"read_interval" default:"200ms"`
	TargetName   string        `yaml:"target_name" default:"choicemmed"`
	TargetUUID   string        `yaml:"target_uuid" default:"00002a5f-0000-1000-8000-00805f9b34fb"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`

	// Backend selection; empty means the platform default.
	Backend        string `yaml:"backend"`
	HCIDevice      int    `yaml:"hci_device" default:"-1"`
	DBusAddress    string `yaml:"dbus_address"`
	SimulationFile string `yaml:"simulation_file"`

	OutputFormat string `yaml:"output_format" default:"hex"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultBackend is bluez on Linux, where bluetoothd usually owns the radio, and goble elsewhere.
func DefaultBackend() string {
	if runtime.GOOS == "linux" {
		return BackendBlueZ
	}
	return BackendGoBLE
}

// Load returns the defaults overlaid with the YAML file at path. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks option ranges and resolves the platform default backend.
func (c *Config) Validate() error {
	if c.ReadCount <= 0 {
		return fmt.Errorf("read_count must be positive, got %d", c.ReadCount)
	}
	if c.ScanDuration < 0 {
		return fmt.Errorf("scan_duration must not be negative, got %v", c.ScanDuration)
	}
	if c.ReadInterval < 0 {
		return fmt.Errorf("read_interval must not be negative, got %v", c.ReadInterval)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative, got %v", c.ConnectTimeout)
	}
	if strings.TrimSpace(c.TargetName) == "" {
		return fmt.Errorf("target_name must not be empty")
	}
	if _, err := device.ParseUUID(c.TargetUUID); err != nil {
		return fmt.Errorf("target_uuid: %w", err)
	}

	if c.Backend == "" {
		c.Backend = DefaultBackend()
	}
	if !slices.Contains(backends, c.Backend) {
		return fmt.Errorf("invalid backend '%s': must be one of %v", c.Backend, backends)
	}
	if c.Backend == BackendSimulated && c.SimulationFile == "" {
		return fmt.Errorf("backend %s requires simulation_file", BackendSimulated)
	}
	if !slices.Contains(outputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid format '%s': must be one of %v", c.OutputFormat, outputFormats)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Target returns the parsed target characteristic UUID.
func (c *Config) Target() device.UUID {
	u, err := device.ParseUUID(c.TargetUUID)
	if err != nil {
		return device.UUID{}
	}
	return u
}

// Level maps LogLevel onto a logrus level. An empty level keeps the logger
// silent for normal operation.
func (c *Config) Level() (logrus.Level, error) {
	switch c.LogLevel {
	case "":
		return logrus.PanicLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.PanicLevel, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	level, err := c.Level()
	if err != nil {
		level = logrus.InfoLevel
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
