package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// FakePin is a test double that returns scripted levels.
type FakePin struct {
	mu sync.Mutex

	// Index is reported in returned errors.
	Index int

	// Levels contains scripted raw levels to return.
	// Each call to ReadLevel consumes the next level.
	Levels []bool

	// index tracks current position in Levels
	index int

	// ConfigError, if set, will be returned (wrapped) by Configure.
	ConfigError error

	// ReadError, if set, will be returned (wrapped) by ReadLevel.
	ReadError error

	// Direction and Pull record the last successful Configure call.
	Direction  Direction
	Pull       Pull
	Configured int

	// Reads counts ReadLevel calls, including failed ones.
	Reads int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakePin creates a FakePin with the given levels.
func NewFakePin(index int, levels ...bool) *FakePin {
	return &FakePin{Index: index, Levels: levels}
}

// Configure records the requested configuration.
func (f *FakePin) Configure(dir Direction, pull Pull) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ConfigError != nil {
		return &HardwareConfigError{Pin: f.Index, Op: "set mode", Err: f.ConfigError}
	}
	f.Direction = dir
	f.Pull = pull
	f.Configured++
	return nil
}

// ReadLevel returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakePin) ReadLevel(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if err := ctx.Err(); err != nil {
		return false, &HardwareReadError{Pin: f.Index, Err: err}
	}
	if f.ReadError != nil {
		return false, &HardwareReadError{Pin: f.Index, Err: f.ReadError}
	}
	if len(f.Levels) == 0 {
		return false, &HardwareReadError{Pin: f.Index, Err: errors.New("no levels configured")}
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return level, nil
}

// SetReadError changes the error returned by subsequent reads.
func (f *FakePin) SetReadError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// ReadCount returns the number of ReadLevel calls so far.
func (f *FakePin) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeChip is a PinSource backed by FakePins.
type FakeChip struct {
	// Pins maps index to the pin returned for it. Missing indexes fail.
	Pins map[int]*FakePin

	claimed map[int]bool

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeChip creates a FakeChip serving the given pins.
func NewFakeChip(pins ...*FakePin) *FakeChip {
	c := &FakeChip{Pins: make(map[int]*FakePin), claimed: make(map[int]bool)}
	for _, p := range pins {
		c.Pins[p.Index] = p
	}
	return c
}

// Pin returns the fake pin for index.
func (c *FakeChip) Pin(index int) (PinAccessor, error) {
	p, ok := c.Pins[index]
	if !ok {
		return nil, &HardwareConfigError{Pin: index, Op: "open", Err: errors.New("no such pin")}
	}
	if c.claimed[index] {
		return nil, &HardwareConfigError{Pin: index, Op: "open", Err: fmt.Errorf("pin %d already in use", index)}
	}
	if c.claimed == nil {
		c.claimed = make(map[int]bool)
	}
	c.claimed[index] = true
	return p, nil
}

// Close marks the chip as closed.
func (c *FakeChip) Close() error {
	c.Closed = true
	return nil
}
