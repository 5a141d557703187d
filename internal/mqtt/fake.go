package mqtt

import (
	"github.com/sweeney/mcp23017-sensor/internal/logic"
)

// FakePublisher records published messages for test assertions.
// Topic and retain rules follow RealPublisher, so Retained holds what a
// broker would hand a subscriber that connects afterwards.
type FakePublisher struct {
	Topics Topics

	Events         []logic.Event
	Payloads       [][]byte
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte
	Discoveries    []Discovery

	// Retained maps topic to the last retained payload.
	Retained map[string][]byte

	// Injected failures; nothing is recorded when set.
	PublishError          error
	PublishSystemError    error
	PublishDiscoveryError error

	Closed    bool
	Connected bool // returned by IsConnected
}

// NewFakePublisher creates a FakePublisher using the "test" topic prefix.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{
		Topics:   Topics{Prefix: "test", DiscoveryPrefix: "homeassistant"},
		Retained: map[string][]byte{},
	}
}

func (f *FakePublisher) retain(topic string, payload []byte) {
	if f.Retained == nil {
		f.Retained = map[string][]byte{}
	}
	f.Retained[topic] = payload
}

// Publish records the state change.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	f.retain(f.Topics.State(event.ID), payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	if event.Retained {
		f.retain(f.Topics.System(), payload)
	}
	return nil
}

// PublishDiscovery records the discovery announcement. Like RealPublisher it
// does nothing when the discovery prefix is empty.
func (f *FakePublisher) PublishDiscovery(d Discovery) error {
	if f.PublishDiscoveryError != nil {
		return f.PublishDiscoveryError
	}
	if f.Topics.DiscoveryPrefix == "" {
		return nil
	}
	payload, err := FormatDiscovery(f.Topics, d)
	if err != nil {
		return err
	}
	f.Discoveries = append(f.Discoveries, d)
	f.retain(f.Topics.Discovery(d.ID), payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected implements ConnectionStatus.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages, injected errors and flags.
func (f *FakePublisher) Reset() {
	topics := f.Topics
	*f = *NewFakePublisher()
	f.Topics = topics
}
