// Package gpio defines the pin accessor contract shared by every input backend.
// Backends configure a single pin and read its raw logic level.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"fmt"
	"strings"
)

// Direction is the I/O direction of a pin.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "INPUT"
	case Output:
		return "OUTPUT"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Pull is the bias resistor mode of an input pin.
type Pull int

const (
	PullUp Pull = iota
	PullDown
	PullNone
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "UP"
	case PullDown:
		return "DOWN"
	case PullNone:
		return "NONE"
	}
	return fmt.Sprintf("Pull(%d)", int(p))
}

// ParsePull converts a pull mode name (UP, DOWN, NONE) to a Pull.
// Matching is case-insensitive.
func ParsePull(s string) (Pull, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP":
		return PullUp, nil
	case "DOWN":
		return PullDown, nil
	case "NONE":
		return PullNone, nil
	}
	return PullNone, fmt.Errorf("invalid pull mode %q (want UP, DOWN or NONE)", s)
}

// PinAccessor wraps one pin of a GPIO device.
type PinAccessor interface {
	// Configure sets direction and pull mode. It is idempotent.
	// Returns a *HardwareConfigError if the device rejects the configuration.
	Configure(dir Direction, pull Pull) error

	// ReadLevel performs one bus transaction and returns the raw level
	// (true = high). Returns a *HardwareReadError on failure.
	ReadLevel(ctx context.Context) (bool, error)
}

// PinSource hands out pin accessors for a device.
// Each index may be requested at most once.
type PinSource interface {
	Pin(index int) (PinAccessor, error)

	// Close releases the device.
	Close() error
}

// HardwareConfigError reports a failure to configure a pin.
type HardwareConfigError struct {
	Pin int
	Op  string
	Err error
}

func (e *HardwareConfigError) Error() string {
	return fmt.Sprintf("configure pin %d: %s: %v", e.Pin, e.Op, e.Err)
}

func (e *HardwareConfigError) Unwrap() error { return e.Err }

// HardwareReadError reports a failed read of a pin level.
type HardwareReadError struct {
	Pin int
	Err error
}

func (e *HardwareReadError) Error() string {
	return fmt.Sprintf("read pin %d: %v", e.Pin, e.Err)
}

func (e *HardwareReadError) Unwrap() error { return e.Err }
