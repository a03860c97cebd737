// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file for [Load].
const EnvironmentVariable = "MCTP_MUX_CONFIG"

// socketPrefix is prepended to the bus number to form the default
// client socket name. Clients such as a PLDM daemon derive the same
// name from the bus they manage.
const socketPrefix = "mctp-mux"

// StatusSocketDisabled, as status_socket_name, turns the status
// socket off.
const StatusSocketDisabled = "-"

// Config is the daemon configuration.
type Config struct {
	// LocalEID is the mux's own endpoint ID. Default: 8
	LocalEID uint8 `yaml:"local_eid"`

	// SocketName is the client socket. Names starting with "/" are
	// filesystem paths; anything else is in the abstract namespace.
	// Default: "mctp-mux<bus>", bus being the first binding parameter.
	SocketName string `yaml:"socket_name"`

	// StatusSocketName serves the daemon's status snapshot. "-"
	// disables it. Default: "<socket_name>-status"
	StatusSocketName string `yaml:"status_socket_name"`

	// AddressMapFile is a JSONC file mapping EIDs to SMBus slave
	// addresses. Optional.
	AddressMapFile string `yaml:"address_map_file"`

	// DefaultSlaveAddress is used for EIDs missing from the address
	// map. Default: 0x64. 0x00 is the I2C general call address and is
	// rejected; mux.Config treats a zero address as unset.
	DefaultSlaveAddress uint8 `yaml:"default_slave_address"`

	// DevRoot and SysfsRoot locate device nodes. Defaults: /dev, /sys
	DevRoot   string `yaml:"dev_root"`
	SysfsRoot string `yaml:"sysfs_root"`

	// Retry bounds transmit retries.
	Retry RetryConfig `yaml:"retry"`

	// PollTimeout bounds each wait for I/O so housekeeping still runs
	// on an idle bus. Default: 200ms
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// JoinInterval is the pause between failed bus initializations.
	// Default: 2s
	JoinInterval time.Duration `yaml:"join_interval"`

	// LogLevel is one of debug, info, warn, error. Default: info
	LogLevel string `yaml:"log_level"`
}

// RetryConfig bounds transmit retries.
type RetryConfig struct {
	// Retries is the number of attempts after the first. Default: 3
	Retries int `yaml:"retries"`

	// Delay separates attempts. Default: 30ms
	Delay time.Duration `yaml:"delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LocalEID:            8,
		DefaultSlaveAddress: 0x64,
		DevRoot:             "/dev",
		SysfsRoot:           "/sys",
		Retry: RetryConfig{
			Retries: 3,
			Delay:   30 * time.Millisecond,
		},
		PollTimeout:  200 * time.Millisecond,
		JoinInterval: 2 * time.Second,
		LogLevel:     "info",
	}
}

// Load loads configuration from the file named by MCTP_MUX_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your mctp-mux.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of [Default]. Unknown
// keys are rejected so that a misspelled key does not silently fall
// back to its default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.AddressMapFile = expandVars(c.AddressMapFile, vars)
	c.DevRoot = expandVars(c.DevRoot, vars)
	c.SysfsRoot = expandVars(c.SysfsRoot, vars)
	c.SocketName = expandVars(c.SocketName, vars)
	c.StatusSocketName = expandVars(c.StatusSocketName, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.LocalEID == 0x00 || c.LocalEID == 0xff {
		errs = append(errs, fmt.Errorf("local_eid %#x is reserved", c.LocalEID))
	}
	if c.DefaultSlaveAddress == 0x00 {
		errs = append(errs, errors.New("default_slave_address 0x00 is the general call address"))
	}
	if c.DefaultSlaveAddress > 0x7f {
		errs = append(errs, fmt.Errorf("default_slave_address %#x is not a 7-bit address", c.DefaultSlaveAddress))
	}
	if c.DevRoot == "" {
		errs = append(errs, errors.New("dev_root is required"))
	}
	if c.SysfsRoot == "" {
		errs = append(errs, errors.New("sysfs_root is required"))
	}
	if c.Retry.Retries < 0 {
		errs = append(errs, fmt.Errorf("retry.retries must not be negative, got %d", c.Retry.Retries))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay must not be negative, got %s", c.Retry.Delay))
	}
	if c.PollTimeout < time.Millisecond {
		errs = append(errs, fmt.Errorf("poll_timeout must be at least 1ms, got %s", c.PollTimeout))
	}
	if c.JoinInterval <= 0 {
		errs = append(errs, fmt.Errorf("join_interval must be positive, got %s", c.JoinInterval))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return level, nil
}

// SocketNames returns the client and status socket names for a
// binding on bus. The status name is empty when the status socket is
// disabled.
func (c *Config) SocketNames(bus string) (socket, status string) {
	socket = c.SocketName
	if socket == "" {
		socket = socketPrefix + bus
	}
	switch c.StatusSocketName {
	case StatusSocketDisabled:
		status = ""
	case "":
		status = socket + "-status"
	default:
		status = c.StatusSocketName
	}
	return socket, status
}
