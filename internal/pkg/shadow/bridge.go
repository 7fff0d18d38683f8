package shadow

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/metrics"
)

const (
	DefaultTopicTemplate  = "$aws/things/{thing}/shadow/update"
	DefaultConnectTimeout = time.Second * 10
	DefaultPublishTimeout = time.Second * 10
	defaultPort           = 8883
)

var ErrNotConnected = errors.New("shadow session not connected")

type Options struct {
	TopicTemplate  string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Bridge owns one MQTT session to the vendor's device-shadow broker.
// There is no reconnect loop; Publish reconnects synchronously when the
// session is down.
//
// connectMu serialises connect attempts, which block on the network.  mu
// only guards the session fields, so Connected never waits on a connect.
type Bridge struct {
	exchanger Exchanger
	opts      Options
	newClient func(o *mqtt.ClientOptions) mqtt.Client

	connectMu sync.Mutex

	mu         sync.Mutex
	client     mqtt.Client
	connected  bool
	generation uint64
}

func NewBridge(exchanger Exchanger, opts Options) *Bridge {
	if opts.TopicTemplate == "" {
		opts.TopicTemplate = DefaultTopicTemplate
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}

	return &Bridge{
		exchanger: exchanger,
		opts:      opts,
		newClient: mqtt.NewClient,
	}
}

func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Topic returns the shadow update topic for a thing
func (b *Bridge) Topic(thing string) string {
	return strings.ReplaceAll(b.opts.TopicTemplate, "{thing}", thing)
}

func brokerURL(creds IoTCredentials) (string, *tls.Config, error) {
	if strings.Contains(creds.Endpoint, "://") {
		host := creds.Endpoint[strings.Index(creds.Endpoint, "://")+3:]
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		return creds.Endpoint, &tls.Config{ServerName: host}, nil
	}

	host := creds.Endpoint
	port := creds.Port
	if h, p, err := net.SplitHostPort(creds.Endpoint); err == nil {
		host = h
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", nil, fmt.Errorf("invalid IoT endpoint port %q", p)
		}
		port = n
	}
	if port == 0 {
		port = defaultPort
	}

	tlsConfig := &tls.Config{ServerName: host}
	if port == 443 {
		// MQTT on 443 is negotiated through ALPN
		tlsConfig.NextProtos = []string{"mqtt"}
	}

	return fmt.Sprintf("ssl://%s:%d", host, port), tlsConfig, nil
}

func (b *Bridge) clientOptions(creds IoTCredentials) (*mqtt.ClientOptions, error) {
	broker, tlsConfig, err := brokerURL(creds)
	if err != nil {
		return nil, err
	}

	clientID := creds.ClientID
	if clientID == "" {
		clientID = "bluestar-bridge-" + uuid.New().String()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetTLSConfig(tlsConfig)
	opts.SetClientID(clientID)
	if creds.Username != "" {
		opts.SetUsername(creds.Username)
	}
	if creds.Password != "" {
		opts.SetPassword(creds.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(b.opts.ConnectTimeout)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	return opts, nil
}

// onConnectionLost only acts for the current client; a late callback from
// a replaced session must not mark its successor down
func (b *Bridge) onConnectionLost(c mqtt.Client, err error) {
	b.mu.Lock()
	current := c == b.client
	if current {
		b.connected = false
	}
	b.mu.Unlock()

	if !current {
		logging.Logger(nil).WithError(err).Debug("ignoring loss of a replaced shadow session")
		return
	}

	logging.Logger(nil).WithError(err).Warn("shadow session lost")
	metrics.ShadowConnected(false)
}

// Connect exchanges credentials and opens a fresh MQTT session.  Either
// step failing leaves the bridge disconnected.
func (b *Bridge) Connect(ctx context.Context) error {
	b.connectMu.Lock()
	defer b.connectMu.Unlock()

	return b.connect(ctx)
}

// connect runs with connectMu held
func (b *Bridge) connect(ctx context.Context) error {
	ctxLogger := logging.Logger(ctx)

	b.mu.Lock()
	stale := b.detachLocked()
	gen := b.generation
	b.mu.Unlock()
	if stale != nil {
		stale.Disconnect(250)
	}

	creds, err := b.exchanger.Exchange(ctx)
	if err != nil {
		return errors.Wrap(err, "exchanging IoT credentials")
	}
	ctxLogger.Debugf("IoT credentials: %s", creds)

	opts, err := b.clientOptions(creds)
	if err != nil {
		return errors.Wrap(err, "building MQTT options")
	}

	client := b.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(b.opts.ConnectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("timed out connecting to %s", creds.Endpoint)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "connecting to %s", creds.Endpoint)
	}

	b.mu.Lock()
	if b.generation != gen {
		// closed while connecting
		b.mu.Unlock()
		client.Disconnect(0)
		return ErrNotConnected
	}
	b.client = client
	b.connected = true
	b.mu.Unlock()

	metrics.ShadowConnected(true)
	ctxLogger.Infof("Connected to IoT endpoint %s", creds.Endpoint)

	return nil
}

func (b *Bridge) session() (mqtt.Client, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client, b.connected && b.client != nil
}

// EnsureConnected connects when there is no live session
func (b *Bridge) EnsureConnected(ctx context.Context) error {
	if _, ok := b.session(); ok {
		return nil
	}

	b.connectMu.Lock()
	defer b.connectMu.Unlock()

	// another caller may have connected while we waited
	if _, ok := b.session(); ok {
		return nil
	}

	return b.connect(ctx)
}

// Update wraps reported fields in a shadow "desired" state document
func Update(fields map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"state": map[string]interface{}{
			"desired": fields,
		},
	}
}

// Publish sends doc to the thing's shadow update topic, connecting first
// if needed
func (b *Bridge) Publish(ctx context.Context, thing string, doc interface{}) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encoding shadow document")
	}

	if err := b.EnsureConnected(ctx); err != nil {
		return err
	}

	client, ok := b.session()
	if !ok {
		return ErrNotConnected
	}

	topic := b.Topic(thing)
	logging.Logger(ctx).Debugf("publishing to %s: %s", topic, payload)

	token := client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(b.opts.PublishTimeout) {
		b.markDisconnected(client)
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		b.markDisconnected(client)
		return errors.Wrapf(err, "publishing to %s", topic)
	}

	return nil
}

func (b *Bridge) markDisconnected(c mqtt.Client) {
	b.mu.Lock()
	current := c == b.client
	if current {
		b.connected = false
	}
	b.mu.Unlock()

	if current {
		metrics.ShadowConnected(false)
	}
}

// detachLocked drops the current session and returns its client for the
// caller to disconnect outside the lock
func (b *Bridge) detachLocked() mqtt.Client {
	c := b.client
	b.client = nil
	if b.connected {
		b.connected = false
		metrics.ShadowConnected(false)
	}
	return c
}

// Close ends the MQTT session without waiting for a connect in flight;
// that connect is abandoned.  It is safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	c := b.detachLocked()
	b.generation++
	b.mu.Unlock()

	if c != nil {
		c.Disconnect(250)
	}
	return nil
}
