package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/dutysched/core/monitoring"
	coremqtt "github.com/kilianp07/dutysched/core/mqtt"
	"github.com/kilianp07/dutysched/core/model"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", AuthMethod: "certificate", Username: "u"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, "fleet", cfg.TopicPrefix)
	assert.NotEmpty(t, cfg.ClientID)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.NoError(t, cfg.Validate(), "disabled bridge needs no broker")

	cfg.Enabled = true
	assert.Error(t, cfg.Validate())
	cfg.Broker = "tcp://localhost:1883"
	assert.NoError(t, cfg.Validate())
	cfg.QoS = map[string]byte{"event": 3}
	assert.Error(t, cfg.Validate())
	cfg.QoS, cfg.AuthMethod = nil, "kerberos"
	assert.Error(t, cfg.Validate())
}

func TestPublishEvent_TopicsAndQoS(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "acme", QoS: map[string]byte{"event": 1, "status": 1}})
	require.NoError(t, err)

	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "acme/bridge/status", mc.opts.WillTopic)
	assert.Equal(t, "offline", string(mc.opts.WillPayload))
	require.Len(t, mc.published, 1, "online status published on connect")

	ev := model.TransitionEvent{Seq: 3, DutyID: "duty-1", Previous: model.StateScheduled, Next: model.StateAssigned, VehicleID: "V1"}
	require.NoError(t, cli.PublishEvent(ev))
	require.Len(t, mc.published, 3)
	assert.Equal(t, "acme/duties/duty-1/events", mc.published[1].topic)
	assert.Equal(t, byte(1), mc.published[1].qos)
	assert.False(t, mc.published[1].retained)
	assert.Equal(t, "acme/vehicles/V1/duty", mc.published[2].topic)
	assert.True(t, mc.published[2].retained)

	var got model.TransitionEvent
	require.NoError(t, json.Unmarshal(mc.published[1].payload, &got))
	assert.Equal(t, ev.Seq, got.Seq)

	require.NoError(t, cli.PublishEvent(model.TransitionEvent{DutyID: "u-1", Next: model.StateUnassigned}))
	assert.Len(t, mc.published, 4, "no vehicle topic without a vehicle")
}

func TestPublishEvent_Retry(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	mc.published = nil
	mc.publishErrs = []error{fmt.Errorf("net fail"), nil}

	require.NoError(t, cli.PublishEvent(model.TransitionEvent{DutyID: "d1", Next: model.StateCancelled}))
	assert.Len(t, mc.published, 2)
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishEvent_ErrorCaptured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	mc.publishErrs = []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}

	assert.Error(t, cli.PublishEvent(model.TransitionEvent{DutyID: "d1"}))
	require.Error(t, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, "d1", mon.tags["duty_id"])
}

func TestPublishEvent_NotConnected(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	require.NoError(t, err)
	mc.disconnected = true
	assert.ErrorIs(t, cli.PublishEvent(model.TransitionEvent{DutyID: "d1"}), coremqtt.ErrNotConnected)
}

type stubController struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubController) record(op, id string) {
	s.mu.Lock()
	s.calls = append(s.calls, op+":"+id)
	s.mu.Unlock()
}

func (s *stubController) StartDuty(_ context.Context, id string) (model.Duty, error) {
	s.record("start", id)
	return model.Duty{ID: id, State: model.StateInProgress}, nil
}

func (s *stubController) CompleteDuty(_ context.Context, id string) (model.Duty, error) {
	s.record("complete", id)
	return model.Duty{ID: id, State: model.StateCompleted}, nil
}

func (s *stubController) CancelDuty(_ context.Context, id string) (model.Duty, error) {
	s.record("cancel", id)
	return model.Duty{}, &model.DutyNotFoundError{ID: id}
}

func TestServe_Commands(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", Commands: true, QoS: map[string]byte{"command": 1}})
	require.NoError(t, err)
	ctl := &stubController{}
	require.NoError(t, cli.Serve(context.Background(), ctl))
	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, "fleet/duties/+/command", mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)

	mc.published = nil
	cli.onCommand(nil, mockMessage{topic: "fleet/duties/duty-7/command", p: []byte(`{"command_id":"c1","action":"start"}`)})
	cli.onCommand(nil, mockMessage{topic: "fleet/duties/duty-8/command", p: []byte(`{"command_id":"c2","action":"cancel"}`)})
	cli.onCommand(nil, mockMessage{topic: "fleet/duties/duty-9/command", p: []byte(`{"duty_id":"other","action":"start"}`)})
	cli.onCommand(nil, mockMessage{topic: "fleet/duties/duty-9/command", p: []byte(`garbage`)})

	assert.Equal(t, []string{"start:duty-7", "cancel:duty-8"}, ctl.calls)
	require.Len(t, mc.published, 2)
	assert.Equal(t, "fleet/duties/duty-7/command/result", mc.published[0].topic)
	var ok, failed coremqtt.CommandResult
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &ok))
	require.NoError(t, json.Unmarshal(mc.published[1].payload, &failed))
	assert.True(t, ok.OK)
	assert.Equal(t, model.StateInProgress, ok.State)
	assert.False(t, failed.OK)
	assert.Equal(t, "not_found", failed.Kind)
}

func TestServe_CommandsDisabled(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	require.NoError(t, err)
	require.NoError(t, cli.Serve(context.Background(), &stubController{}))
	assert.Empty(t, mc.subscribed)
}

type publishRecord struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient and paho.Client for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published    []publishRecord
	publishErrs  []error
	disconnected bool
}

func (m *mockClient) IsConnected() bool { return !m.disconnected }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnected = true }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	m.published = append(m.published, publishRecord{topic, qos, retained, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return !m.disconnected }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
