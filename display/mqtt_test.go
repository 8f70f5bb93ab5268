package display

import (
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/renderhooks"
)

// doneToken is a paho token that resolved immediately with a fixed
// outcome.
type doneToken struct {
	err error
	ch  chan struct{}
}

func newDoneToken(err error) *doneToken {
	ch := make(chan struct{})
	close(ch)
	return &doneToken{err: err, ch: ch}
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.ch }
func (t *doneToken) Error() error                   { return t.err }

type publishRecord struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes and scripts their outcome.
type fakeClient struct {
	mu          sync.Mutex
	publishes   []publishRecord
	publishErr  error
	connected   bool
	disconnects int
}

func (c *fakeClient) IsConnected() bool      { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool { return c.connected }
func (c *fakeClient) Connect() mqtt.Token    { return newDoneToken(nil) }

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.connected = false
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishes = append(c.publishes, publishRecord{
		topic:   topic,
		qos:     qos,
		payload: append([]byte(nil), payload.([]byte)...),
	})
	return newDoneToken(c.publishErr)
}

func (c *fakeClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return newDoneToken(nil)
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newDoneToken(nil)
}

func (c *fakeClient) Unsubscribe(...string) mqtt.Token { return newDoneToken(nil) }

func (c *fakeClient) AddRoute(string, mqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// waitForStat polls a counter accessor until it reaches want.
func waitForStat(t *testing.T, want uint64, get func() uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("counter stuck at %d, want %d", get(), want)
}

func testImage(width, height int, lead byte) renderhooks.Image {
	pix := make([]byte, height*width*3)
	for i := range pix {
		pix[i] = lead
	}
	return renderhooks.Image{Width: width, Height: height, Pix: pix}
}

func TestDisplayerPublishesMsgpackPayload(t *testing.T) {
	client := &fakeClient{connected: true}
	d, err := NewMQTTDisplayer(client, "render/portal", 0)
	if err != nil {
		t.Fatalf("NewMQTTDisplayer() failed: %v", err)
	}

	show := d.Displayer()
	if err := show(testImage(4, 3, 7)); err != nil {
		t.Fatalf("displayer failed: %v", err)
	}
	if err := show(testImage(4, 3, 8)); err != nil {
		t.Fatalf("displayer failed: %v", err)
	}

	waitForStat(t, 2, func() uint64 { return d.Stats().Published })

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.publishes) != 2 {
		t.Fatalf("publishes = %d, want 2", len(client.publishes))
	}
	rec := client.publishes[1]
	if rec.topic != "render/portal" || rec.qos != 0 {
		t.Errorf("published to %q qos %d, want render/portal qos 0", rec.topic, rec.qos)
	}

	var payload FramePayload
	if err := msgpack.Unmarshal(rec.payload, &payload); err != nil {
		t.Fatalf("payload is not valid msgpack: %v", err)
	}
	if payload.Seq != 2 {
		t.Errorf("seq = %d, want 2", payload.Seq)
	}
	if payload.Width != 4 || payload.Height != 3 {
		t.Errorf("frame size = %dx%d, want 4x3", payload.Width, payload.Height)
	}
	if len(payload.Pix) != 4*3*3 || payload.Pix[0] != 8 {
		t.Errorf("pix len %d first %d, want len 36 first 8", len(payload.Pix), payload.Pix[0])
	}
	if payload.Timestamp.IsZero() {
		t.Error("timestamp must be set")
	}
}

func TestDisplayerCountsBrokerFailures(t *testing.T) {
	client := &fakeClient{connected: true, publishErr: errors.New("broker gone")}
	d, err := NewMQTTDisplayer(client, "render/portal", 1)
	if err != nil {
		t.Fatalf("NewMQTTDisplayer() failed: %v", err)
	}

	// A broker-side failure is telemetry, not a hook error: the live feed
	// is lossy.
	if err := d.Displayer()(testImage(2, 2, 1)); err != nil {
		t.Fatalf("displayer must not surface publish failures, got %v", err)
	}

	waitForStat(t, 1, func() uint64 { return d.Stats().Failed })
	if got := d.Stats().Published; got != 0 {
		t.Errorf("published = %d, want 0", got)
	}
}

func TestDisplayerClose(t *testing.T) {
	client := &fakeClient{connected: true}
	d, err := NewMQTTDisplayer(client, "render/portal", 0)
	if err != nil {
		t.Fatalf("NewMQTTDisplayer() failed: %v", err)
	}

	d.Close()

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", client.disconnects)
	}
}

func TestDisplayerValidation(t *testing.T) {
	if _, err := NewMQTTDisplayer(nil, "t", 0); err == nil {
		t.Error("nil client accepted")
	}
	if _, err := NewMQTTDisplayer(&fakeClient{}, "", 0); err == nil {
		t.Error("empty topic accepted")
	}
	if _, err := ConnectMQTT(MQTTConfig{ClientID: "c", Topic: "t"}); err == nil {
		t.Error("empty broker accepted")
	}
	if _, err := ConnectMQTT(MQTTConfig{Broker: "b:1883", Topic: "t"}); err == nil {
		t.Error("empty client id accepted")
	}
}
