package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/dutysched/core/monitoring"
	coremqtt "github.com/kilianp07/dutysched/core/mqtt"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool            `json:"enabled" yaml:"enabled"`
	Broker      string          `json:"broker" yaml:"broker"`
	ClientID    string          `json:"client_id" yaml:"client_id"`
	Username    string          `json:"username" yaml:"username"`
	Password    string          `json:"password" yaml:"password"`
	TopicPrefix string          `json:"topic_prefix" yaml:"topic_prefix"`
	UseTLS      bool            `json:"use_tls" yaml:"use_tls"`
	ClientCert  string          `json:"client_cert" yaml:"client_cert"`
	ClientKey   string          `json:"client_key" yaml:"client_key"`
	CABundle    string          `json:"ca_bundle" yaml:"ca_bundle"`
	AuthMethod  string          `json:"auth_method" yaml:"auth_method"`
	QoS         map[string]byte `json:"qos" yaml:"qos"`
	// Commands enables the inbound duty command subscription.
	Commands   bool        `json:"commands" yaml:"commands"`
	MaxRetries int         `json:"max_retries" yaml:"max_retries"`
	BackoffMS  int         `json:"backoff_ms" yaml:"backoff_ms"`
	TLSConfig  *tls.Config `json:"-" yaml:"-"`
}

// SetDefaults fills the client id, topic prefix and retry policy.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "dutysched-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fleet"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the settings needed to connect.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt: qos %s must be 0, 1 or 2", k)
		}
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes duty transitions and, when a controller is attached,
// serves duty commands sent by vehicles.
type PahoClient struct {
	cli    pahoClient
	topics coremqtt.Topics
	qos    map[string]byte
	logger logger.Logger

	mu   sync.RWMutex
	ctl  coremqtt.DutyController
	ctx  context.Context
	cmds bool

	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker. Commands are only subscribed when
// cfg.Commands is set and Serve has attached a controller.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_bridge")
	pc := &PahoClient{
		topics:     coremqtt.Topics{Prefix: cfg.TopicPrefix},
		qos:        cfg.QoS,
		logger:     log,
		cmds:       cfg.Commands,
		ctx:        context.Background(),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	opts.SetWill(pc.topics.BridgeStatus(), "offline", pc.qosFor("status"), true)
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		c.Publish(pc.topics.BridgeStatus(), pc.qosFor("status"), true, "online")
		pc.subscribeCommands(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// Serve attaches the controller that handles inbound duty commands and
// subscribes to the command topic. Commands run with ctx.
func (p *PahoClient) Serve(ctx context.Context, ctl coremqtt.DutyController) error {
	p.mu.Lock()
	p.ctl, p.ctx = ctl, ctx
	p.mu.Unlock()
	if !p.cmds {
		return nil
	}
	token := p.cli.Subscribe(p.topics.Commands(), p.qosFor("command"), p.onCommand)
	token.Wait()
	return token.Error()
}

func (p *PahoClient) subscribeCommands(c paho.Client) {
	p.mu.RLock()
	ready := p.cmds && p.ctl != nil
	p.mu.RUnlock()
	if !ready {
		return
	}
	if token := c.Subscribe(p.topics.Commands(), p.qosFor("command"), p.onCommand); token.Wait() && token.Error() != nil {
		p.logger.Errorf("subscribe error: %v", token.Error())
	}
}

func (p *PahoClient) onCommand(_ paho.Client, msg paho.Message) {
	p.mu.RLock()
	ctl, ctx := p.ctl, p.ctx
	p.mu.RUnlock()
	if ctl == nil {
		return
	}
	var cmd coremqtt.Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		p.logger.Errorf("failed to decode command: %v", err)
		return
	}
	if id, ok := p.topics.DutyIDFromCommandTopic(msg.Topic()); ok {
		if cmd.DutyID != "" && cmd.DutyID != id {
			p.logger.Warnf("command %s targets %s on topic of %s", cmd.CommandID, cmd.DutyID, id)
			return
		}
		cmd.DutyID = id
	}
	res := coremqtt.Apply(ctx, ctl, cmd)
	p.logger.Infof("command %s %s on %s ok=%t", cmd.CommandID, cmd.Action, cmd.DutyID, res.OK)
	if err := p.publish(p.topics.CommandResult(cmd.DutyID), p.qosFor("command"), false, res); err != nil {
		p.logger.Errorf("publish command result: %v", err)
	}
}

// PublishEvent sends ev to the duty events topic and, when a vehicle is
// involved, the retained vehicle topic.
func (p *PahoClient) PublishEvent(ev model.TransitionEvent) error {
	if err := p.publish(p.topics.DutyEvents(ev.DutyID), p.qosFor("event"), false, ev); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "duty_id": ev.DutyID})
		return err
	}
	if ev.VehicleID != "" {
		if err := p.publish(p.topics.VehicleDuty(ev.VehicleID), p.qosFor("event"), true, ev); err != nil {
			coremon.CaptureException(err, map[string]string{"module": "mqtt", "vehicle_id": ev.VehicleID})
			return err
		}
	}
	return nil
}

func (p *PahoClient) publish(topic string, qos byte, retained bool, v any) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		if publishErr = token.Error(); publishErr == nil {
			p.logger.Debugf("published to %s", topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// Disconnect marks the bridge offline and closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Publish(p.topics.BridgeStatus(), p.qosFor("status"), true, "offline").Wait()
		p.cli.Disconnect(250)
	}
}
