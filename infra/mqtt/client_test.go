package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremqtt "github.com/kilianp07/mgdispatch/core/mqtt"
)

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// mockClient implements pahoClient for tests.
type mockClient struct {
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
	stall       bool
	connected   bool
}

func (m *mockClient) IsConnected() bool { return m.connected }
func (m *mockClient) Connect() paho.Token {
	m.connected = true
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.connected = false }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.published = append(m.published, published{topic, qos, retained, payload.([]byte)})
	if m.stall {
		return &dummyToken{stall: true}
	}
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct {
	err   error
	stall bool
}

func (d *dummyToken) Wait() bool                     { return !d.stall }
func (d *dummyToken) WaitTimeout(time.Duration) bool { return !d.stall }
func (d *dummyToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !d.stall {
		close(ch)
	}
	return ch
}
func (d *dummyToken) Error() error { return d.err }

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestPublishSetpoint(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: 1, Retain: true})
	require.NoError(t, err)

	ts := time.UnixMilli(1714564800000)
	require.NoError(t, pub.PublishSetpoint(context.Background(), coremqtt.Setpoint{RunID: "r1", Label: "Bat", Power: -30, Timestamp: ts}))
	require.Len(t, mc.published, 1)
	got := mc.published[0]
	assert.Equal(t, "microgrid/Bat/setpoint", got.topic)
	assert.Equal(t, byte(1), got.qos)
	assert.True(t, got.retain)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.payload, &payload))
	assert.Equal(t, "r1", payload["run_id"])
	assert.Equal(t, -30.0, payload["power"])
	assert.Equal(t, float64(1714564800000), payload["timestamp"])

	pub.Disconnect()
	assert.False(t, mc.connected)
}

func TestPublishRetries(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", TopicPrefix: "site", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	require.NoError(t, pub.PublishSetpoint(context.Background(), coremqtt.Setpoint{Label: "G", Power: 5}))
	assert.Len(t, mc.published, 2)
	assert.Equal(t, "site/G/setpoint", mc.published[1].topic)
}

func TestPublishGivesUp(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	err = pub.PublishSetpoint(context.Background(), coremqtt.Setpoint{Label: "G"})
	assert.ErrorIs(t, err, fail)
}

func TestPublishTimeout(t *testing.T) {
	mc := &mockClient{stall: true}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", TimeoutMS: 1})
	require.NoError(t, err)
	err = pub.PublishSetpoint(context.Background(), coremqtt.Setpoint{Label: "G"})
	assert.ErrorIs(t, err, coremqtt.ErrPublishTimeout)
}

func TestPublishStopsOnCanceledContext(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("a"), errors.New("b")}}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 3, BackoffMS: 1000})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pub.PublishSetpoint(ctx, coremqtt.Setpoint{Label: "G"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, mc.published, 1)
}

func TestNewClientOptions(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p", LWTTopic: "lwt", LWTPayload: "bye"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "lwt", opts.WillTopic)

	_, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", UseTLS: true})
	assert.Error(t, err)
}

func TestLoadTLSConfig(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pemBlock("CERTIFICATE", der), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pemBlock("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv)), 0o600))

	cfg, err := Config{ClientCert: certFile, ClientKey: keyFile, CABundle: certFile}.LoadTLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.NotNil(t, cfg.RootCAs)
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	m.FailIDs["L"] = true
	require.NoError(t, m.PublishSetpoint(context.Background(), coremqtt.Setpoint{Label: "G", Power: 60}))
	assert.Error(t, m.PublishSetpoint(context.Background(), coremqtt.Setpoint{Label: "L", Power: -60}))
	assert.Equal(t, map[string]float64{"G": 60}, m.Powers())
}

func pemBlock(typ string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
}
