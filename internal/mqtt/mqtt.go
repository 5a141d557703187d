// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/mcp23017-sensor/internal/logic"
)

// Topics builds topic names from the configured prefixes.
type Topics struct {
	Prefix string
	// DiscoveryPrefix is the Home Assistant discovery prefix; empty disables discovery.
	DiscoveryPrefix string
}

// State returns the retained state topic of a sensor.
func (t Topics) State(id string) string {
	return t.Prefix + "/" + id + "/state"
}

// System returns the topic for lifecycle events.
func (t Topics) System() string {
	return t.Prefix + "/system"
}

// Discovery returns the Home Assistant discovery config topic of a sensor.
func (t Topics) Discovery(id string) string {
	return t.DiscoveryPrefix + "/binary_sensor/" + id + "/config"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a sensor state change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishDiscovery announces a sensor to Home Assistant.
	PublishDiscovery(d Discovery) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT state message payload.
type Payload struct {
	Sensor SensorPayload `json:"sensor"`
}

// SensorPayload contains the state change details.
type SensorPayload struct {
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Pin       int    `json:"pin"`
	State     string `json:"state"`
	Previous  string `json:"previous,omitempty"`
}

// FormatPayload creates the JSON payload for a state change.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Sensor: SensorPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			ID:        event.ID,
			Name:      event.Name,
			Pin:       event.Pin,
			State:     string(event.State),
			Previous:  string(event.Previous),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Discovery describes one sensor for Home Assistant MQTT discovery.
type Discovery struct {
	ID         string
	Name       string
	Pin        int
	DeviceID   string
	DeviceName string
}

// DiscoveryPayload is the Home Assistant binary_sensor discovery document.
type DiscoveryPayload struct {
	Name          string        `json:"name"`
	UniqueID      string        `json:"unique_id"`
	StateTopic    string        `json:"state_topic"`
	ValueTemplate string        `json:"value_template"`
	PayloadOn     string        `json:"payload_on"`
	PayloadOff    string        `json:"payload_off"`
	Device        DevicePayload `json:"device"`
}

// DevicePayload groups sensors of one chip under a device.
type DevicePayload struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// FormatDiscovery creates the discovery document for a sensor.
func FormatDiscovery(topics Topics, d Discovery) ([]byte, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("discovery: empty sensor id")
	}
	payload := DiscoveryPayload{
		Name:          d.Name,
		UniqueID:      d.ID,
		StateTopic:    topics.State(d.ID),
		ValueTemplate: "{{ value_json.sensor.state }}",
		PayloadOn:     string(logic.StateOn),
		PayloadOff:    string(logic.StateOff),
		Device: DevicePayload{
			Identifiers:  []string{d.DeviceID},
			Name:         d.DeviceName,
			Model:        "MCP23017",
			Manufacturer: "Microchip",
		},
	}
	return json.Marshal(payload)
}

// WillEvent is the last-will message registered with the broker.
func WillEvent(now time.Time) SystemEvent {
	return SystemEvent{
		Timestamp: now,
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
		Retained:  true,
	}
}
