package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/mcp23017-sensor/internal/logic"
)

const (
	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
	bufferCapacity = 256
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Topics   Topics
	Logger   logrus.FieldLogger
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are buffered and
// replayed once paho reconnects.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    logrus.FieldLogger

	mu         sync.Mutex
	buf        *offlineBuffer
	connectedN int
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	clientID := o.ClientID
	if clientID == "" {
		clientID = "mcp23017-sensor"
	}
	// Two instances with the same client ID would kick each other off the broker.
	clientID = clientID + "-" + uuid.NewString()[:8]

	p := &RealPublisher{
		topics: o.Topics,
		log:    o.Logger.WithField("component", "mqtt"),
	}
	p.buf = newOfflineBuffer(bufferCapacity, p.log)

	will, err := FormatSystemPayload(WillEvent(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(o.Topics.System(), will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.WithError(err).Warn("connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p.log.WithFields(logrus.Fields{"broker": o.Broker, "client_id": clientID}).Info("connected")
	return p, nil
}

// onConnect runs on every (re)connection. After the first it announces the
// reconnection and replays anything buffered while offline.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connectedN++
	reconnect := p.connectedN > 1
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if !reconnect && len(pending) == 0 {
		return
	}

	go func() {
		if reconnect {
			payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
			c.Publish(p.topics.System(), 1, false, payload)
			p.log.Info("reconnected")
		}
		for _, m := range pending {
			c.Publish(m.topic, m.qos, m.retained, m.payload)
		}
		if len(pending) > 0 {
			p.log.WithField("count", len(pending)).Info("flushed buffered messages")
		}
	}()
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a sensor state to its retained state topic.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.topics.State(event.ID), payload: payload, qos: 1, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: p.topics.System(), payload: payload, qos: 1, retained: event.Retained})
}

// PublishDiscovery sends a retained Home Assistant discovery document.
// It is a no-op when no discovery prefix is configured.
func (p *RealPublisher) PublishDiscovery(d Discovery) error {
	if p.topics.DiscoveryPrefix == "" {
		return nil
	}
	payload, err := FormatDiscovery(p.topics, d)
	if err != nil {
		return err
	}
	return p.send(bufferedMsg{topic: p.topics.Discovery(d.ID), payload: payload, qos: 1, retained: true})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
