// Package expander serves the pins of an MCP23017 I2C port expander.
// Register access is delegated to the TinyGo MCP23017 driver; the Linux
// I2C bus comes from periph.
package expander

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/mcp23017"

	"github.com/sweeney/mcp23017-sensor/internal/gpio"
)

// PinCount is the number of GPIO pins on the chip.
const PinCount = 16

// DefaultAddress is the bus address with A0-A2 tied low.
const DefaultAddress = 0x20

// ErrPullDownUnsupported is returned when a pin is configured with a pull-down.
// The MCP23017 only has internal pull-ups.
var ErrPullDownUnsupported = errors.New("mcp23017: pull-down not supported")

// Chip is one MCP23017 on a bus.
type Chip struct {
	addr uint16

	// mu serializes register access; the driver does read-modify-write
	// on registers shared by all pins of a port.
	mu      sync.Mutex
	dev     *mcp23017.Device
	closer  io.Closer
	claimed [PinCount]bool
}

// Open probes the chip at addr on bus. Failure to reach the chip is
// reported as a *gpio.HardwareConfigError.
func Open(bus drivers.I2C, addr uint16) (*Chip, error) {
	if addr > 0xff {
		return nil, &gpio.HardwareConfigError{Pin: -1, Op: "open chip", Err: fmt.Errorf("invalid address 0x%x", addr)}
	}
	// NewI2C reads the pin registers, so an absent chip fails here.
	dev, err := mcp23017.NewI2C(bus, uint8(addr))
	if err != nil {
		return nil, &gpio.HardwareConfigError{Pin: -1, Op: fmt.Sprintf("open chip at 0x%02x", addr), Err: err}
	}
	return &Chip{addr: addr, dev: dev}, nil
}

// OpenBus opens the named periph I2C bus ("" for the first one available)
// and the chip at addr on it. The bus is closed with the chip.
func OpenBus(name string, addr uint16) (*Chip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, &gpio.HardwareConfigError{Pin: -1, Op: fmt.Sprintf("open i2c bus %q", name), Err: err}
	}
	c, err := Open(bus, addr)
	if err != nil {
		bus.Close()
		return nil, err
	}
	c.closer = bus
	return c, nil
}

// Address returns the bus address of the chip.
func (c *Chip) Address() uint16 {
	return c.addr
}

// Pin returns the accessor for pin index (0-15). Each pin can be claimed once.
func (c *Chip) Pin(index int) (gpio.PinAccessor, error) {
	if index < 0 || index >= PinCount {
		return nil, &gpio.HardwareConfigError{Pin: index, Op: "open", Err: fmt.Errorf("pin out of range 0-%d", PinCount-1)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claimed[index] {
		return nil, &gpio.HardwareConfigError{Pin: index, Op: "open", Err: fmt.Errorf("pin %d already in use", index)}
	}
	c.claimed[index] = true
	return &Pin{chip: c, index: index}, nil
}

// Close releases the bus if the chip owns it.
func (c *Chip) Close() error {
	if c.closer == nil {
		return nil
	}
	if err := c.closer.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return nil
}

// Pin is a single expander pin.
type Pin struct {
	chip  *Chip
	index int
}

// Configure sets the pin direction and pull-up.
func (p *Pin) Configure(dir gpio.Direction, pull gpio.Pull) error {
	var mode mcp23017.PinMode
	switch dir {
	case gpio.Input:
		mode = mcp23017.Input
		switch pull {
		case gpio.PullUp:
			mode |= mcp23017.Pullup
		case gpio.PullNone:
		case gpio.PullDown:
			return &gpio.HardwareConfigError{Pin: p.index, Op: "set pull", Err: ErrPullDownUnsupported}
		default:
			return &gpio.HardwareConfigError{Pin: p.index, Op: "set pull", Err: fmt.Errorf("unknown pull mode %v", pull)}
		}
	case gpio.Output:
		mode = mcp23017.Output
	default:
		return &gpio.HardwareConfigError{Pin: p.index, Op: "set direction", Err: fmt.Errorf("unknown direction %v", dir)}
	}

	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()

	if err := p.chip.dev.Pin(p.index).SetMode(mode); err != nil {
		return &gpio.HardwareConfigError{Pin: p.index, Op: "set mode", Err: err}
	}
	return nil
}

// ReadLevel reads the GPIO register and returns the pin level.
func (p *Pin) ReadLevel(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &gpio.HardwareReadError{Pin: p.index, Err: err}
	}

	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()

	v, err := p.chip.dev.Pin(p.index).Get()
	if err != nil {
		return false, &gpio.HardwareReadError{Pin: p.index, Err: err}
	}
	return v, nil
}
