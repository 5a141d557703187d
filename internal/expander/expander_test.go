package expander

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"tinygo.org/x/drivers/mcp23017"

	"github.com/sweeney/mcp23017-sensor/internal/gpio"
)

// Register addresses in IOCON.BANK=0 layout.
const (
	regIODIRA = 0x00
	regIODIRB = 0x01
	regGPPUA  = 0x0C
	regGPPUB  = 0x0D
	regGPIOA  = 0x12
	regGPIOB  = 0x13
	numRegs   = 0x16
)

// fakeBus emulates one MCP23017 register file behind an I2C bus.
type fakeBus struct {
	mu    sync.Mutex
	addr  uint16
	regs  [numRegs]byte
	fail  error
	txs   int
	level uint16
}

func newFakeBus(addr uint16) *fakeBus {
	b := &fakeBus{addr: addr}
	// Power-on reset: all pins inputs.
	b.regs[regIODIRA] = 0xff
	b.regs[regIODIRB] = 0xff
	return b
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.txs++
	if b.fail != nil {
		return b.fail
	}
	if addr != b.addr {
		return fmt.Errorf("i2c: no ack from 0x%02x", addr)
	}
	if len(w) == 0 {
		return nil
	}
	ptr := int(w[0]) % numRegs
	for _, v := range w[1:] {
		b.regs[ptr] = v
		ptr = (ptr + 1) % numRegs
	}
	for i := range r {
		switch ptr {
		case regGPIOA:
			r[i] = byte(b.level)
		case regGPIOB:
			r[i] = byte(b.level >> 8)
		default:
			r[i] = b.regs[ptr]
		}
		ptr = (ptr + 1) % numRegs
	}
	return nil
}

func (b *fakeBus) setLevel(pin int, high bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if high {
		b.level |= 1 << pin
	} else {
		b.level &^= 1 << pin
	}
}

func (b *fakeBus) setFail(err error) {
	b.mu.Lock()
	b.fail = err
	b.mu.Unlock()
}

func (b *fakeBus) reg16(lo, hi int) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint16(b.regs[lo]) | uint16(b.regs[hi])<<8
}

func openTestChip(t *testing.T) (*Chip, *fakeBus) {
	t.Helper()
	bus := newFakeBus(DefaultAddress)
	c, err := Open(bus, DefaultAddress)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c, bus
}

func TestOpenAbsentDevice(t *testing.T) {
	bus := newFakeBus(0x21)

	_, err := Open(bus, DefaultAddress)
	var cfgErr *gpio.HardwareConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected HardwareConfigError, got %v", err)
	}
}

func TestOpenBusFault(t *testing.T) {
	bus := newFakeBus(DefaultAddress)
	stuck := errors.New("bus stuck")
	bus.setFail(stuck)

	_, err := Open(bus, DefaultAddress)
	var cfgErr *gpio.HardwareConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected HardwareConfigError, got %v", err)
	}
	if cfgErr.Op != "open chip at 0x20" || !errors.Is(err, stuck) {
		t.Errorf("got op %q, err %v", cfgErr.Op, err)
	}
}

func TestOpenUsesOnlyDriverTransactions(t *testing.T) {
	ref := newFakeBus(DefaultAddress)
	if _, err := mcp23017.NewI2C(ref, DefaultAddress); err != nil {
		t.Fatalf("NewI2C: %v", err)
	}

	bus := newFakeBus(DefaultAddress)
	if _, err := Open(bus, DefaultAddress); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if bus.txs != ref.txs {
		t.Errorf("Open made %d transactions, driver alone makes %d", bus.txs, ref.txs)
	}
}

func TestOpenInvalidAddress(t *testing.T) {
	bus := newFakeBus(0x120)

	if _, err := Open(bus, 0x120); err == nil {
		t.Fatal("expected error for address above 0xff")
	}
}

func TestConfigureInputPullUp(t *testing.T) {
	c, bus := openTestChip(t)

	pin, err := c.Pin(5)
	if err != nil {
		t.Fatalf("Pin(5): %v", err)
	}
	if err := pin.Configure(gpio.Input, gpio.PullUp); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if gppu := bus.reg16(regGPPUA, regGPPUB); gppu&(1<<5) == 0 {
		t.Errorf("GPPU: pin 5 pull-up not enabled (0x%04x)", gppu)
	}
	if iodir := bus.reg16(regIODIRA, regIODIRB); iodir&(1<<5) == 0 {
		t.Errorf("IODIR: pin 5 not an input (0x%04x)", iodir)
	}
}

func TestConfigureInputPullNone(t *testing.T) {
	c, bus := openTestChip(t)

	pin, _ := c.Pin(9)
	if err := pin.Configure(gpio.Input, gpio.PullUp); err != nil {
		t.Fatalf("Configure up: %v", err)
	}
	if err := pin.Configure(gpio.Input, gpio.PullNone); err != nil {
		t.Fatalf("Configure none: %v", err)
	}

	if gppu := bus.reg16(regGPPUA, regGPPUB); gppu&(1<<9) != 0 {
		t.Errorf("GPPU: pin 9 pull-up still enabled (0x%04x)", gppu)
	}
}

func TestConfigurePullDownUnsupported(t *testing.T) {
	c, _ := openTestChip(t)
	pin, _ := c.Pin(0)

	err := pin.Configure(gpio.Input, gpio.PullDown)
	var cfgErr *gpio.HardwareConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected HardwareConfigError, got %v", err)
	}
	if !errors.Is(err, ErrPullDownUnsupported) {
		t.Errorf("expected ErrPullDownUnsupported, got %v", err)
	}
}

func TestConfigureBusFault(t *testing.T) {
	c, bus := openTestChip(t)
	pin, _ := c.Pin(3)
	bus.setFail(errors.New("arbitration lost"))

	err := pin.Configure(gpio.Input, gpio.PullUp)
	var cfgErr *gpio.HardwareConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected HardwareConfigError, got %v", err)
	}
	if cfgErr.Pin != 3 {
		t.Errorf("Pin: got %d, want 3", cfgErr.Pin)
	}
}

func TestReadLevel(t *testing.T) {
	c, bus := openTestChip(t)
	ctx := context.Background()

	pinA, _ := c.Pin(5)
	pinB, _ := c.Pin(12)
	for _, p := range []gpio.PinAccessor{pinA, pinB} {
		if err := p.Configure(gpio.Input, gpio.PullUp); err != nil {
			t.Fatalf("Configure: %v", err)
		}
	}

	bus.setLevel(5, true)
	bus.setLevel(12, false)

	if v, err := pinA.ReadLevel(ctx); err != nil || !v {
		t.Errorf("pin 5: got (%v, %v), want (true, nil)", v, err)
	}
	if v, err := pinB.ReadLevel(ctx); err != nil || v {
		t.Errorf("pin 12: got (%v, %v), want (false, nil)", v, err)
	}

	bus.setLevel(5, false)
	bus.setLevel(12, true)

	if v, err := pinA.ReadLevel(ctx); err != nil || v {
		t.Errorf("pin 5 after change: got (%v, %v), want (false, nil)", v, err)
	}
	if v, err := pinB.ReadLevel(ctx); err != nil || !v {
		t.Errorf("pin 12 after change: got (%v, %v), want (true, nil)", v, err)
	}
}

func TestReadLevelBusFault(t *testing.T) {
	c, bus := openTestChip(t)
	pin, _ := c.Pin(1)
	if err := pin.Configure(gpio.Input, gpio.PullUp); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	cause := errors.New("nack")
	bus.setFail(cause)

	_, err := pin.ReadLevel(context.Background())
	var readErr *gpio.HardwareReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected HardwareReadError, got %v", err)
	}
	if readErr.Pin != 1 {
		t.Errorf("Pin: got %d, want 1", readErr.Pin)
	}
}

func TestReadLevelCancelled(t *testing.T) {
	c, bus := openTestChip(t)
	pin, _ := c.Pin(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := bus.txs
	if _, err := pin.ReadLevel(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if bus.txs != before {
		t.Error("cancelled read should not touch the bus")
	}
}

func TestPinClaimedOnce(t *testing.T) {
	c, _ := openTestChip(t)

	if _, err := c.Pin(4); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := c.Pin(4); err == nil {
		t.Error("expected error claiming pin 4 twice")
	}
}

func TestPinOutOfRange(t *testing.T) {
	c, _ := openTestChip(t)

	for _, idx := range []int{-1, 16, 100} {
		if _, err := c.Pin(idx); err == nil {
			t.Errorf("Pin(%d): expected error", idx)
		}
	}
}

func TestCloseWithoutOwnedBus(t *testing.T) {
	c, _ := openTestChip(t)
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if c.Address() != DefaultAddress {
		t.Errorf("Address: got 0x%x, want 0x%x", c.Address(), DefaultAddress)
	}
}
