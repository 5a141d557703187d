// Package logic contains pure business logic for binary sensor state tracking.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of a binary sensor.
// The zero value means the state is not yet known.
type State string

const (
	StateUnknown State = ""
	StateOn      State = "ON"
	StateOff     State = "OFF"
)

// StateOf converts a logical boolean into a State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// String returns "UNKNOWN" for the zero value.
func (s State) String() string {
	if s == StateUnknown {
		return "UNKNOWN"
	}
	return string(s)
}

// Input is the outcome of one poll of one sensor.
type Input struct {
	ID    string
	Name  string
	Pin   int
	State State
	Time  time.Time
}

// Event represents a state change to be published.
type Event struct {
	Timestamp time.Time
	ID        string
	Name      string
	Pin       int
	State     State
	// Previous is StateUnknown for the first known state of a sensor.
	Previous State
}

// Counts tracks per-sensor activity since startup.
type Counts struct {
	On         int
	Off        int
	ReadErrors int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    map[string]Counts
}
