package mqtt

import "github.com/sirupsen/logrus"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineBuffer is a bounded FIFO that stores messages while disconnected.
// A retained message replaces any older retained message on the same topic,
// since the broker would only keep the newest one anyway.
// Not safe for concurrent use; the caller must synchronize.
type offlineBuffer struct {
	msgs     []bufferedMsg
	capacity int
	overflow bool // true if any message was dropped since last drain
	log      logrus.FieldLogger
}

func newOfflineBuffer(capacity int, log logrus.FieldLogger) *offlineBuffer {
	return &offlineBuffer{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
		log:      log,
	}
}

func (b *offlineBuffer) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range b.msgs {
			if m.retained && m.topic == msg.topic {
				b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
				break
			}
		}
	}

	if len(b.msgs) == b.capacity {
		if !b.overflow {
			b.log.WithField("capacity", b.capacity).Warn("mqtt: buffer full, dropping oldest")
			b.overflow = true
		}
		b.msgs = append(b.msgs[:0], b.msgs[1:]...)
	}
	b.msgs = append(b.msgs, msg)
}

func (b *offlineBuffer) drainAll() []bufferedMsg {
	if len(b.msgs) == 0 {
		return nil
	}

	result := make([]bufferedMsg, len(b.msgs))
	copy(result, b.msgs)
	b.msgs = b.msgs[:0]
	b.overflow = false
	return result
}

func (b *offlineBuffer) len() int {
	return len(b.msgs)
}
