//go:build linux

package gpio

import (
	"context"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// LineSource serves pins of a host GPIO chip using the Linux GPIO character device.
type LineSource struct {
	chip string

	mu    sync.Mutex
	lines map[int]*LinePin
}

// NewLineSource creates a pin source for the named chip (e.g. "gpiochip0").
// Lines are requested lazily by Configure.
func NewLineSource(chip string) *LineSource {
	return &LineSource{chip: chip, lines: make(map[int]*LinePin)}
}

// Pin returns the accessor for line offset index.
func (s *LineSource) Pin(index int) (PinAccessor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 {
		return nil, &HardwareConfigError{Pin: index, Op: "open", Err: fmt.Errorf("invalid offset %d", index)}
	}
	if _, ok := s.lines[index]; ok {
		return nil, &HardwareConfigError{Pin: index, Op: "open", Err: fmt.Errorf("line %d already in use", index)}
	}
	p := &LinePin{chip: s.chip, offset: index}
	s.lines[index] = p
	return p, nil
}

// Close releases all requested lines.
// Lines are returned to input with pull-down before release, matching Pi boot defaults.
func (s *LineSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range s.lines {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// LinePin is a single requested line.
type LinePin struct {
	chip   string
	offset int

	mu   sync.Mutex
	line *gpiocdev.Line
}

// Configure requests the line on first use and reconfigures it afterwards.
func (p *LinePin) Configure(dir Direction, pull Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bias, err := biasOption(pull)
	if err != nil {
		return &HardwareConfigError{Pin: p.offset, Op: "set pull", Err: err}
	}

	if p.line == nil {
		opts := []gpiocdev.LineReqOption{bias}
		if dir == Output {
			opts = append(opts, gpiocdev.AsOutput(0))
		} else {
			opts = append(opts, gpiocdev.AsInput)
		}
		line, err := gpiocdev.RequestLine(p.chip, p.offset, opts...)
		if err != nil {
			return &HardwareConfigError{Pin: p.offset, Op: "request line", Err: err}
		}
		p.line = line
		return nil
	}

	opts := []gpiocdev.LineConfigOption{bias}
	if dir == Output {
		opts = append(opts, gpiocdev.AsOutput(0))
	} else {
		opts = append(opts, gpiocdev.AsInput)
	}
	if err := p.line.Reconfigure(opts...); err != nil {
		return &HardwareConfigError{Pin: p.offset, Op: "reconfigure line", Err: err}
	}
	return nil
}

// ReadLevel returns true when the line is electrically high.
func (p *LinePin) ReadLevel(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &HardwareReadError{Pin: p.offset, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.line == nil {
		return false, &HardwareReadError{Pin: p.offset, Err: fmt.Errorf("line not configured")}
	}
	v, err := p.line.Value()
	if err != nil {
		return false, &HardwareReadError{Pin: p.offset, Err: err}
	}
	return v == 1, nil
}

// Close reconfigures the line to input with pull-down and releases it.
func (p *LinePin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.line == nil {
		return nil
	}
	var errs []error
	if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line %d: %w", p.offset, err))
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line %d: %w", p.offset, err))
	}
	p.line = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func biasOption(pull Pull) (gpiocdev.LineBias, error) {
	switch pull {
	case PullUp:
		return gpiocdev.WithPullUp, nil
	case PullDown:
		return gpiocdev.WithPullDown, nil
	case PullNone:
		return gpiocdev.WithBiasDisabled, nil
	}
	return gpiocdev.WithBiasDisabled, fmt.Errorf("unsupported pull mode %v", pull)
}
