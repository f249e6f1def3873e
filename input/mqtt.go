package input

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to a topic and serves message payloads as
// physical lines.
type MQTTSource struct {
	client  mqtt.Client
	topic   string
	quiesce uint
	buf     *lineBuffer
}

// MQTTOpts configures FromMQTT.
type MQTTOpts struct {
	// Broker is the broker URL ("tcp://localhost:1883").
	Broker string

	// Topic to subscribe to.
	Topic string

	// ClientID defaults to a generated one if empty.
	ClientID string

	// QoS for the subscription.
	QoS byte

	// Quiesce is the disconnect timeout in milliseconds.
	Quiesce uint
}

// FromMQTT connects, subscribes, and starts buffering lines.
func FromMQTT(opts MQTTOpts) (*MQTTSource, error) {
	copts := mqtt.NewClientOptions()
	copts.AddBroker(opts.Broker)
	if opts.ClientID != "" {
		copts.SetClientID(opts.ClientID)
	}

	s := &MQTTSource{
		topic:   opts.Topic,
		quiesce: opts.Quiesce,
		buf:     newLineBuffer(),
	}
	if s.quiesce == 0 {
		s.quiesce = 250
	}

	s.client = mqtt.NewClient(copts)
	if t := s.client.Connect(); t.Wait() && t.Error() != nil {
		return nil, t.Error()
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		payload := string(msg.Payload())
		if len(payload) == 0 || payload[len(payload)-1] != '\n' {
			payload += "\n"
		}
		s.buf.feed(payload)
	}
	if t := s.client.Subscribe(opts.Topic, opts.QoS, handler); t.Wait() && t.Error() != nil {
		s.client.Disconnect(s.quiesce)
		return nil, fmt.Errorf("subscribe %s: %w", opts.Topic, t.Error())
	}

	return s, nil
}

// Next implements core.LineSource.  It blocks until a message
// arrives or Close is called.
func (s *MQTTSource) Next() (string, error) {
	return s.buf.next()
}

// Close unsubscribes and disconnects; a blocked Next drains what's
// buffered and then sees io.EOF.
func (s *MQTTSource) Close() error {
	if t := s.client.Unsubscribe(s.topic); t.Wait() && t.Error() != nil {
		s.client.Disconnect(s.quiesce)
		s.buf.finish(nil)
		return t.Error()
	}
	s.client.Disconnect(s.quiesce)
	s.buf.finish(nil)
	return nil
}
