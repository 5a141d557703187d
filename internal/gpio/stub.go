//go:build !linux

package gpio

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// LineSource is not available on non-Linux platforms.
type LineSource struct{}

// NewLineSource returns a source whose pins always fail to configure.
func NewLineSource(chip string) *LineSource {
	return &LineSource{}
}

// Pin returns an accessor that fails on use.
func (s *LineSource) Pin(index int) (PinAccessor, error) {
	return &LinePin{offset: index}, nil
}

// Close is a no-op on non-Linux platforms.
func (s *LineSource) Close() error {
	return nil
}

// LinePin is not implemented on non-Linux platforms.
type LinePin struct {
	offset int
}

// Configure always fails on non-Linux platforms.
func (p *LinePin) Configure(dir Direction, pull Pull) error {
	return &HardwareConfigError{Pin: p.offset, Op: "request line", Err: errUnsupported}
}

// ReadLevel always fails on non-Linux platforms.
func (p *LinePin) ReadLevel(ctx context.Context) (bool, error) {
	return false, &HardwareReadError{Pin: p.offset, Err: errUnsupported}
}
