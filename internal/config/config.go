// Package config loads the daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/mcp23017-sensor/internal/gpio"
)

// Supported platforms.
const (
	PlatformMCP23017 = "mcp23017"
	PlatformGPIOChip = "gpiochip"
)

// Defaults.
const (
	DefaultI2CAddress      = 0x20
	DefaultPullMode        = "UP"
	DefaultScanInterval    = 30 * time.Second
	DefaultHeartbeat       = 15 * time.Minute
	DefaultChip            = "gpiochip0"
	DefaultClientID        = "mcp23017-sensor"
	DefaultTopicPrefix     = "home/mcp23017"
	DefaultDiscoveryPrefix = "homeassistant"
)

// MCP23017 address range (A0-A2 select the low three bits).
const (
	minI2CAddress = 0x20
	maxI2CAddress = 0x27
	maxPin        = 15
)

// Config is the daemon configuration.
type Config struct {
	Platform     string         `yaml:"platform"`
	I2CBus       string         `yaml:"i2c_bus"`
	I2CAddress   int            `yaml:"i2c_address"`
	Chip         string         `yaml:"chip"`
	Pins         map[int]string `yaml:"pins"`
	InvertLogic  bool           `yaml:"invert_logic"`
	PullMode     string         `yaml:"pull_mode"`
	ScanInterval time.Duration  `yaml:"scan_interval"`
	Heartbeat    time.Duration  `yaml:"heartbeat"`
	HTTP         string         `yaml:"http"`
	MQTT         MQTT           `yaml:"mqtt"`

	// Pull is PullMode after validation.
	Pull gpio.Pull `yaml:"-"`
}

// MQTT configures the publisher. An empty Broker disables MQTT.
type MQTT struct {
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// Default returns a Config with every optional field at its default.
func Default() Config {
	return Config{
		Platform:     PlatformMCP23017,
		I2CAddress:   DefaultI2CAddress,
		Chip:         DefaultChip,
		PullMode:     DefaultPullMode,
		ScanInterval: DefaultScanInterval,
		Heartbeat:    DefaultHeartbeat,
		HTTP:         ":8080",
		MQTT: MQTT{
			ClientID:        DefaultClientID,
			TopicPrefix:     DefaultTopicPrefix,
			DiscoveryPrefix: DefaultDiscoveryPrefix,
		},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys and duplicate pin indexes are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values and resolves Pull from PullMode.
func (c *Config) Validate() error {
	if c.Pins == nil {
		return errors.New("config: pins is required")
	}

	pull, err := gpio.ParsePull(c.PullMode)
	if err != nil {
		return fmt.Errorf("config: pull_mode: %w", err)
	}
	c.Pull = pull

	switch c.Platform {
	case PlatformMCP23017:
		if c.I2CAddress < minI2CAddress || c.I2CAddress > maxI2CAddress {
			return fmt.Errorf("config: i2c_address 0x%02x out of range 0x%02x-0x%02x", c.I2CAddress, minI2CAddress, maxI2CAddress)
		}
		for pin := range c.Pins {
			if pin < 0 || pin > maxPin {
				return fmt.Errorf("config: pin %d out of range 0-%d", pin, maxPin)
			}
		}
	case PlatformGPIOChip:
		if c.Chip == "" {
			return errors.New("config: chip is required for platform gpiochip")
		}
		for pin := range c.Pins {
			if pin < 0 {
				return fmt.Errorf("config: pin %d must not be negative", pin)
			}
		}
	default:
		return fmt.Errorf("config: unknown platform %q", c.Platform)
	}

	if c.ScanInterval <= 0 {
		return fmt.Errorf("config: scan_interval must be positive, got %v", c.ScanInterval)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("config: heartbeat must not be negative, got %v", c.Heartbeat)
	}
	return nil
}

// PinIndexes returns the configured pin indexes in ascending order.
func (c *Config) PinIndexes() []int {
	out := make([]int, 0, len(c.Pins))
	for pin := range c.Pins {
		out = append(out, pin)
	}
	sort.Ints(out)
	return out
}
