package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/protocol"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string // a per-process suffix is appended
	Prefix     string
	BufferSize int
	// OnCommand receives each record decoded from the command topic. It runs
	// on the MQTT client's goroutine.
	OnCommand func(rec protocol.Record)
	// OnConnectionChange is told about every connect and connection loss.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Records sent while the
// connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	opts   Options

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = "nightlight"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	p := &RealPublisher{
		topics: NewTopics(o.Prefix),
		opts:   o,
		buf:    newRingBuffer(o.BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	clientID := o.ClientID + "-" + uuid.NewString()[:8]

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt: connection lost")
			p.notify(false)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	log.Info().Str("broker", o.Broker).Str("client_id", clientID).Msg("mqtt: connected")
	return p, nil
}

func (p *RealPublisher) notify(connected bool) {
	if p.opts.OnConnectionChange != nil {
		p.opts.OnConnectionChange(connected)
	}
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.notify(true)
	if p.opts.OnCommand != nil {
		c.Subscribe(p.topics.Command, 1, p.handleCommand)
	}

	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) handleCommand(_ paho.Client, msg paho.Message) {
	recs, err := DecodeCommands(msg.Payload())
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt: malformed command")
	}
	for _, rec := range recs {
		p.opts.OnCommand(rec)
	}
}

// Send publishes a record, or buffers it while disconnected.
func (p *RealPublisher) Send(rec protocol.Record) error {
	payload, err := FormatRecordPayload(rec, time.Now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	msg := bufferedMsg{topic: p.topics.Records, payload: payload}

	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}

	// QoS 0 (at-most-once), not retained. The foreground loop must not wait
	// on the broker.
	p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := p.client.Publish(p.topics.System, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
