// Package platform builds binary sensors from the configuration.
package platform

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/mcp23017-sensor/internal/config"
	"github.com/sweeney/mcp23017-sensor/internal/expander"
	"github.com/sweeney/mcp23017-sensor/internal/gpio"
	"github.com/sweeney/mcp23017-sensor/internal/sensor"
)

// OpenSource opens the pin source selected by cfg.Platform.
func OpenSource(cfg config.Config) (gpio.PinSource, error) {
	switch cfg.Platform {
	case config.PlatformMCP23017:
		chip, err := expander.OpenBus(cfg.I2CBus, uint16(cfg.I2CAddress))
		if err != nil {
			return nil, err
		}
		return chip, nil
	case config.PlatformGPIOChip:
		return gpio.NewLineSource(cfg.Chip), nil
	}
	return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
}

// UniqueID returns the stable identifier for a pin.
func UniqueID(cfg config.Config, pin int) string {
	if cfg.Platform == config.PlatformGPIOChip {
		return fmt.Sprintf("%s_%d", cfg.Chip, pin)
	}
	return fmt.Sprintf("mcp23017_%02x_%d", cfg.I2CAddress, pin)
}

// Device returns the identifier and display name of the device that
// groups all sensors of cfg.
func Device(cfg config.Config) (id, name string) {
	if cfg.Platform == config.PlatformGPIOChip {
		return cfg.Chip, cfg.Chip
	}
	return fmt.Sprintf("mcp23017_%02x", cfg.I2CAddress), fmt.Sprintf("MCP23017 0x%02x", cfg.I2CAddress)
}

// Setup creates one sensor per configured pin, in ascending pin order.
// A pin that cannot be configured is logged and skipped. An error is
// returned only when every configured pin failed.
func Setup(cfg config.Config, src gpio.PinSource, log logrus.FieldLogger) ([]*sensor.BinarySensor, error) {
	var (
		sensors []*sensor.BinarySensor
		errs    []error
	)

	for _, idx := range cfg.PinIndexes() {
		name := cfg.Pins[idx]
		id := UniqueID(cfg, idx)
		entry := log.WithFields(logrus.Fields{"sensor": id, "pin": idx, "name": name})

		pin, err := src.Pin(idx)
		if err != nil {
			entry.WithError(err).Error("pin unavailable, sensor not added")
			errs = append(errs, err)
			continue
		}

		s, err := sensor.New(name, pin, cfg.Pull, cfg.InvertLogic,
			sensor.WithPin(idx),
			sensor.WithUniqueID(id),
			sensor.WithLogger(log),
		)
		if err != nil {
			entry.WithError(err).Error("pin configuration failed, sensor not added")
			errs = append(errs, err)
			continue
		}

		entry.Info("binary sensor added")
		sensors = append(sensors, s)
	}

	if len(sensors) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all %d pins failed: %w", len(errs), errors.Join(errs...))
	}
	return sensors, nil
}
