// Package status provides a thread-safe status tracker for the sensor daemon.
// It is read by HTTP handlers and used to build MQTT system events.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/mcp23017-sensor/internal/logic"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Platform    string
	I2CAddress  int
	PullMode    string
	InvertLogic bool
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// SensorStatus is the reported state of one sensor.
type SensorStatus struct {
	ID        string
	Name      string
	Pin       int
	State     logic.State
	LastPoll  time.Time
	LastError string
	Counts    logic.Counts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Sensors       []SensorStatus // ordered by pin
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	sensors map[string]SensorStatus
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		sensors: make(map[string]SensorStatus),
	}
}

// AddSensor registers a sensor with unknown state.
func (t *Tracker) AddSensor(id, name string, pin int) {
	t.mu.Lock()
	t.sensors[id] = SensorStatus{ID: id, Name: name, Pin: pin}
	t.mu.Unlock()
}

// UpdateSensor records the outcome of a poll. pollErr is nil on success.
// Unregistered sensors are added.
func (t *Tracker) UpdateSensor(id string, state logic.State, at time.Time, pollErr error, counts logic.Counts) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sensors[id]
	if !ok {
		s = SensorStatus{ID: id, Pin: -1}
	}
	s.State = state
	s.LastPoll = at
	s.Counts = counts
	if pollErr != nil {
		s.LastError = pollErr.Error()
	} else {
		s.LastError = ""
	}
	t.sensors[id] = s
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Sensors = make([]SensorStatus, 0, len(t.sensors))
	for _, st := range t.sensors {
		s.Sensors = append(s.Sensors, st)
	}
	t.mu.RUnlock()

	sort.Slice(s.Sensors, func(i, j int) bool {
		if s.Sensors[i].Pin != s.Sensors[j].Pin {
			return s.Sensors[i].Pin < s.Sensors[j].Pin
		}
		return s.Sensors[i].ID < s.Sensors[j].ID
	})
	s.Now = time.Now()
	return s
}

// Sensor returns the status of one sensor by ID.
func (t *Tracker) Sensor(id string) (SensorStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sensors[id]
	return s, ok
}
