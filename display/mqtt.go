// Package display provides ready-made Portal displayers.
//
// The MQTT displayer publishes captured frames to a broker topic as
// msgpack payloads, so a viewer process (dashboard, recorder, notebook)
// can subscribe to a live portal without linking against the host.
package display

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/renderhooks"
)

// connectTimeout bounds the initial broker connection.
const connectTimeout = 10 * time.Second

// MQTTConfig configures an MQTT frame displayer.
type MQTTConfig struct {
	// Broker is the broker address, host:port. Required.
	Broker string

	// ClientID identifies this publisher to the broker. Required.
	ClientID string

	// Topic receives the frame payloads. Required.
	Topic string

	// QoS is the MQTT quality of service for frame publishes. Frames are
	// a lossy live feed; QoS 0 is the intended setting.
	QoS byte
}

// FramePayload is the wire format for one published frame.
type FramePayload struct {
	Seq       uint64    `msgpack:"seq"`
	Timestamp time.Time `msgpack:"timestamp"`
	Width     int       `msgpack:"width"`
	Height    int       `msgpack:"height"`
	Pix       []byte    `msgpack:"pix"`
}

// MQTTDisplayer publishes portal frames to an MQTT topic.
//
// Publishes are fire-and-forget on the render goroutine: the displayer
// never waits on the broker. Failures are counted and logged, observable
// through Stats.
type MQTTDisplayer struct {
	client mqtt.Client
	topic  string
	qos    byte

	seq       atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64
}

// MQTTStats is a snapshot of displayer activity.
type MQTTStats struct {
	Published uint64
	Failed    uint64
	Connected bool
}

// NewMQTTDisplayer wraps an existing MQTT client. The caller owns the
// client's lifecycle.
func NewMQTTDisplayer(client mqtt.Client, topic string, qos byte) (*MQTTDisplayer, error) {
	if client == nil {
		return nil, fmt.Errorf("display: mqtt client is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("display: mqtt topic is required")
	}
	return &MQTTDisplayer{client: client, topic: topic, qos: qos}, nil
}

// ConnectMQTT connects to a broker and returns a displayer owning the
// connection. Close releases it.
func ConnectMQTT(cfg MQTTConfig) (*MQTTDisplayer, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("display: mqtt broker is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("display: mqtt client id is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		slog.Info("display: mqtt connection established",
			"broker", cfg.Broker,
			"client_id", cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("display: mqtt connection lost, will auto-reconnect",
			"broker", cfg.Broker,
			"error", err,
		)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("display: mqtt connect timeout after %v", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("display: mqtt connect failed: %w", err)
	}

	return NewMQTTDisplayer(client, cfg.Topic, cfg.QoS)
}

// Displayer returns the function to hand to a Portal hook.
func (d *MQTTDisplayer) Displayer() renderhooks.Displayer {
	return func(img renderhooks.Image) error {
		payload := FramePayload{
			Seq:       d.seq.Add(1),
			Timestamp: time.Now(),
			Width:     img.Width,
			Height:    img.Height,
			Pix:       img.Pix,
		}
		raw, err := msgpack.Marshal(&payload)
		if err != nil {
			return fmt.Errorf("display: marshal frame payload: %w", err)
		}

		// Fire-and-forget: the render goroutine never waits on the
		// broker. Token outcome is observed off-thread for telemetry.
		token := d.client.Publish(d.topic, d.qos, false, raw)
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				d.failed.Add(1)
				slog.Debug("display: frame publish failed",
					"topic", d.topic,
					"seq", payload.Seq,
					"error", err,
				)
				return
			}
			d.published.Add(1)
		}()
		return nil
	}
}

// Stats returns a snapshot of displayer counters. Thread-safe.
func (d *MQTTDisplayer) Stats() MQTTStats {
	return MQTTStats{
		Published: d.published.Load(),
		Failed:    d.failed.Load(),
		Connected: d.client.IsConnected(),
	}
}

// Close disconnects from the broker, allowing in-flight publishes a
// short grace period.
func (d *MQTTDisplayer) Close() {
	d.client.Disconnect(250)
}
