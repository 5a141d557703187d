package logic

import "time"

// Detector tracks the last reported state of each sensor and detects changes.
type Detector struct {
	states        map[string]State
	counts        map[string]Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDetector creates a new change detector.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(startTime time.Time) *Detector {
	return &Detector{
		states:        make(map[string]State),
		counts:        make(map[string]Counts),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a poll outcome and returns an event if the sensor's state changed.
// The first known state of a sensor is reported with Previous == StateUnknown.
// Unknown input never produces an event.
func (d *Detector) Process(input Input) *Event {
	if input.State == StateUnknown {
		return nil
	}

	prev := d.states[input.ID]
	if prev == input.State {
		return nil
	}
	d.states[input.ID] = input.State

	// Only transitions between known states are counted.
	if prev != StateUnknown {
		c := d.counts[input.ID]
		if input.State == StateOn {
			c.On++
		} else {
			c.Off++
		}
		d.counts[input.ID] = c
	}

	return &Event{
		Timestamp: input.Time,
		ID:        input.ID,
		Name:      input.Name,
		Pin:       input.Pin,
		State:     input.State,
		Previous:  prev,
	}
}

// RecordError counts a failed poll for the sensor.
func (d *Detector) RecordError(id string) {
	c := d.counts[id]
	c.ReadErrors++
	d.counts[id] = c
}

// State returns the last reported state of a sensor.
func (d *Detector) State(id string) State {
	return d.states[id]
}

// CountsFor returns the counters of a sensor.
func (d *Detector) CountsFor(id string) Counts {
	return d.counts[id]
}

// CountsSnapshot returns a copy of all counters.
func (d *Detector) CountsSnapshot() map[string]Counts {
	out := make(map[string]Counts, len(d.counts))
	for id, c := range d.counts {
		out[id] = c
	}
	return out
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.CountsSnapshot(),
	}
}
