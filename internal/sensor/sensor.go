// Package sensor exposes single GPIO pins as polled binary sensors.
package sensor

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/mcp23017-sensor/internal/gpio"
	"github.com/sweeney/mcp23017-sensor/internal/logic"
)

// DefaultName is used when a pin is configured without a name.
const DefaultName = "Unnamed Device"

// Entity is the capability set a scheduler needs to poll and report a sensor.
type Entity interface {
	// Poll reads the current level. At most one Poll may be in flight per entity.
	Poll(ctx context.Context) error

	// IsOn returns the logical state; known is false until the first successful poll.
	IsOn() (on, known bool)

	Name() string
	UniqueID() string

	// ShouldPoll reports whether the entity must be polled to update.
	ShouldPoll() bool
}

// BinarySensor reports the logical state of one input pin.
type BinarySensor struct {
	name     string
	uniqueID string
	index    int
	pin      gpio.PinAccessor
	pull     gpio.Pull
	invert   bool
	log      logrus.FieldLogger

	mu    sync.RWMutex
	raw   bool
	known bool
}

// Option customizes a BinarySensor.
type Option func(*BinarySensor)

// WithUniqueID sets the stable identifier used for topics and metrics.
func WithUniqueID(id string) Option {
	return func(s *BinarySensor) { s.uniqueID = id }
}

// WithPin records the pin index for reporting.
func WithPin(index int) Option {
	return func(s *BinarySensor) { s.index = index }
}

// WithLogger sets the logger for construction messages.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *BinarySensor) { s.log = log }
}

// New configures pin as an input with the given pull mode and returns the sensor.
// If configuration fails the error is returned and no sensor is created.
func New(name string, pin gpio.PinAccessor, pull gpio.Pull, invert bool, opts ...Option) (*BinarySensor, error) {
	if name == "" {
		name = DefaultName
	}
	s := &BinarySensor{
		name:   name,
		pin:    pin,
		pull:   pull,
		invert: invert,
		index:  -1,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.uniqueID == "" {
		s.uniqueID = name
	}

	if err := pin.Configure(gpio.Input, pull); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"sensor": s.uniqueID,
		"pin":    s.index,
		"pull":   pull,
		"invert": invert,
	}).Debug("binary sensor configured")
	return s, nil
}

// Poll reads the pin and stores the raw level.
// On failure the previous state is kept and the read error is returned.
func (s *BinarySensor) Poll(ctx context.Context) error {
	level, err := s.pin.ReadLevel(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.raw = level
	s.known = true
	s.mu.Unlock()
	return nil
}

// IsOn returns raw != invert, or known == false before the first successful poll.
func (s *BinarySensor) IsOn() (on, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.known {
		return false, false
	}
	return s.raw != s.invert, true
}

// State returns the logical state as a logic.State.
func (s *BinarySensor) State() logic.State {
	on, known := s.IsOn()
	if !known {
		return logic.StateUnknown
	}
	return logic.StateOf(on)
}

// Name returns the display name.
func (s *BinarySensor) Name() string { return s.name }

// UniqueID returns the stable identifier.
func (s *BinarySensor) UniqueID() string { return s.uniqueID }

// Pin returns the pin index, or -1 if unset.
func (s *BinarySensor) Pin() int { return s.index }

// Invert reports whether the raw level is inverted.
func (s *BinarySensor) Invert() bool { return s.invert }

// Pull returns the pull mode applied at construction.
func (s *BinarySensor) Pull() gpio.Pull { return s.pull }

// ShouldPoll is always true; there is no interrupt-driven mode.
func (s *BinarySensor) ShouldPoll() bool { return true }

// Close releases the pin handle if it holds resources.
func (s *BinarySensor) Close() error {
	if c, ok := s.pin.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
