// Package util provides helpers shared across integration tests.
//
// StartMosquitto launches a disposable Mosquitto broker in a Docker container.
// CollectSetpoints subscribes to the set-point topics of a broker.
// WaitForMetric polls a Prometheus endpoint until a metric appears.
package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// WaitForMetric polls metricsURL until substr is found in the output or ctx
// is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read metrics body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// StartMosquitto launches a temporary Mosquitto broker inside a Docker
// container and returns its broker URL along with a cleanup function.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", "mosq")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	cleanup := func() {
		_ = cont.Terminate(context.Background())
		_ = os.RemoveAll(dir)
	}

	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Setpoint is the decoded payload of a set-point message.
type Setpoint struct {
	Topic     string
	RunID     string  `json:"run_id"`
	Label     string  `json:"label"`
	Power     float64 `json:"power"`
	Timestamp int64   `json:"timestamp"`
}

// Collector accumulates set-point messages received from the broker.
type Collector struct {
	cli  paho.Client
	mu   sync.Mutex
	msgs []Setpoint
}

// CollectSetpoints subscribes to prefix/+/setpoint on broker.
func CollectSetpoints(broker, prefix string) (*Collector, error) {
	c := &Collector{}
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(fmt.Sprintf("collector-%d", time.Now().UnixNano()))
	c.cli = paho.NewClient(opts)
	if tok := c.cli.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, tok.Error()
	}
	tok := c.cli.Subscribe(prefix+"/+/setpoint", 1, func(_ paho.Client, m paho.Message) {
		var sp Setpoint
		if err := json.Unmarshal(m.Payload(), &sp); err != nil {
			return
		}
		sp.Topic = m.Topic()
		c.mu.Lock()
		c.msgs = append(c.msgs, sp)
		c.mu.Unlock()
	})
	if tok.Wait() && tok.Error() != nil {
		c.cli.Disconnect(100)
		return nil, tok.Error()
	}
	return c, nil
}

// WaitFor blocks until n messages arrived or ctx is done and returns a copy
// of what was received.
func (c *Collector) WaitFor(ctx context.Context, n int) ([]Setpoint, error) {
	for {
		c.mu.Lock()
		got := append([]Setpoint(nil), c.msgs...)
		c.mu.Unlock()
		if len(got) >= n {
			return got, nil
		}
		select {
		case <-ctx.Done():
			return got, fmt.Errorf("received %d of %d set-points: %w", len(got), n, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Close disconnects the collector.
func (c *Collector) Close() { c.cli.Disconnect(100) }
