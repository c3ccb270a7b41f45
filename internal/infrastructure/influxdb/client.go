package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
)

// Batching defaults applied when the configuration leaves them unset,
// plus the probe timeouts.
const (
	defaultBatchSize    = 100
	defaultFlushSeconds = 10

	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Client mirrors telemetry samples into a site-local InfluxDB v2 bucket.
//
// The mirror is an operator convenience. The platform remains the
// source of truth, but a copy of recent system status samples on the
// local network lets an installer inspect a device without platform
// access. Writes are batched and asynchronous, so a slow or absent
// server never blocks the reporting path.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.MetricsConfig

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect builds the client and verifies the server is reachable.
//
// Parameters:
//   - cfg: Metrics configuration (URL, token, org, bucket, batching)
//
// Returns:
//   - *Client: Connected client with the async write pipeline running
//   - error: ErrDisabled when the mirror is off, ErrConnectionFailed
//     when the server cannot be reached or reports unhealthy
func Connect(cfg config.MetricsConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, batchOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server reports unhealthy", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}
	go c.forwardWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// batchOptions translates the batching settings, falling back to the
// package defaults for unset or nonsense values.
func batchOptions(cfg config.MetricsConfig) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushSeconds
	}

	// The config value is in seconds, the API wants milliseconds.
	// #nosec G115 -- both values are clamped positive above
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush) * 1000)
}

// forwardWriteErrors drains the async error channel for the lifetime
// of the write pipeline, handing each error to the registered callback.
func (c *Client) forwardWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		cb := c.onError
		c.mu.RUnlock()

		if cb != nil {
			cb(err)
		}
	}
}

// SetOnError registers a callback for asynchronous write failures.
//
// Writes never fail synchronously. A dropped batch surfaces here, and
// the agent logs it and carries on, since the mirror is best effort.
func (c *Client) SetOnError(cb func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = cb
}

// IsConnected reports the last known connection state. It does not
// probe the server, HealthCheck does.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck actively pings the server.
//
// Parameters:
//   - ctx: Bounds the probe together with the package ping timeout
//
// Returns:
//   - error: nil when the server answers healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb ping: server reports unhealthy")
	}

	return nil
}

// Flush blocks until every buffered point has been handed to the
// server. Used in tests and before shutdown, a no-op once closed.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes pending writes and tears the connection down.
//
// Returns:
//   - error: always nil, kept for the io.Closer shape
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()

	return nil
}
