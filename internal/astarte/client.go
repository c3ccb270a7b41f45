package astarte

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// flushTimeout bounds one outbox flush pass after a reconnect.
const flushTimeout = 30 * time.Second

// received carries one inbound parse result to Receive.
type received struct {
	msg *Message
	err error
}

// Client is a connected session.
//
// It owns the broker connection, the server-owned subscriptions and the
// inbound delivery channel drained by Receive.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	opts        Options
	client      pahomqtt.Client
	interfaces  map[string]InterfaceDefinition
	topicPrefix string

	// inbound buffers parsed messages between the paho handler and Receive.
	inbound chan received

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// flushMu serialises outbox flushes across overlapping reconnects.
	flushMu sync.Mutex

	logger Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Connect opens the session.
//
// It performs the following setup:
//  1. Loads the interface definitions from the configured directory
//  2. Connects to the broker with auto-reconnect enabled
//  3. Subscribes to every server-owned interface
//  4. Flushes any stored publications left from a previous run
//
// Parameters:
//   - opts: Session options
//
// Returns:
//   - *Client: Connected session ready for use
//   - error: If the definitions cannot be loaded, the initial connection
//     fails within the timeout, or a subscription is refused
func Connect(opts Options) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	defs, err := LoadInterfaces(opts.InterfacesDirectory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		opts:        opts,
		interfaces:  defs,
		topicPrefix: fmt.Sprintf("%s/%s/", opts.Realm, opts.DeviceID),
		inbound:     make(chan received, inboundBufferSize),
		logger:      logger,
		done:        make(chan struct{}),
	}

	pahoOpts := buildClientOptions(opts)
	pahoOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(pahoOpts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after successful connection.
	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet, so we set it here to ensure IsConnected() returns true.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	// Subscribe synchronously so a refused subscription fails the open
	// instead of surfacing later as silence.
	if err := c.subscribeServerOwned(); err != nil {
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	return c, nil
}

// handleConnect is called when the connection is established, including on
// every reconnect.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.logger.Debug("session connected", "broker", c.opts.BrokerURL)

	// Restore subscriptions (ignore errors during reconnection)
	c.restoreSubscriptions()

	// Redeliver anything queued while offline
	go c.flushStored()
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.logger.Warn("session connection lost", "error", err)
}

// subscribeServerOwned subscribes to every interface the platform publishes
// on. Returns the first failure.
func (c *Client) subscribeServerOwned() error {
	for name, def := range c.interfaces {
		if !def.ServerOwned() {
			continue
		}

		topic := c.topicPrefix + name + "/#"
		token := c.client.Subscribe(topic, defaultQoS, c.handleMessage)
		if !token.WaitTimeout(defaultPublishTimeout) {
			return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, name, defaultPublishTimeout)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, name, err)
		}
	}
	return nil
}

// restoreSubscriptions re-subscribes after a reconnect. Failures are logged;
// the auto-reconnect cycle will retry on the next connection.
func (c *Client) restoreSubscriptions() {
	for name, def := range c.interfaces {
		if !def.ServerOwned() {
			continue
		}
		topic := c.topicPrefix + name + "/#"
		token := c.client.Subscribe(topic, defaultQoS, c.handleMessage)
		if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
			c.logger.Warn("failed to restore subscription", "interface", name, "error", token.Error())
		}
	}
}

// handleMessage parses one broker delivery and hands it to Receive.
//
// The send blocks when the inbound buffer is full, which holds further
// deliveries at the broker rather than dropping them.
func (c *Client) handleMessage(_ pahomqtt.Client, m pahomqtt.Message) {
	var r received

	iface, path, err := parseTopic(c.topicPrefix, m.Topic())
	if err == nil {
		var payload Payload
		payload, err = decodePayload(m.Payload())
		if err == nil {
			r.msg = &Message{Interface: iface, Path: path, Payload: payload}
		}
	}
	if err != nil {
		r.err = fmt.Errorf("topic %s: %w", m.Topic(), err)
	}

	select {
	case c.inbound <- r:
	case <-c.done:
	}
}

// Receive blocks until the next inbound message, a malformed-delivery error,
// context cancellation, or Close.
//
// A returned error wrapping ErrMalformedMessage is transient: the session
// stays connected and the next call continues with the following delivery.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - *Message: The next inbound message
//   - error: ctx.Err() on cancellation, ErrClosed after Close, or a
//     malformed-delivery error
func (c *Client) Receive(ctx context.Context) (*Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case r := <-c.inbound:
		if r.err != nil {
			return nil, r.err
		}
		return r.msg, nil
	}
}

// flushStored redelivers queued publications in insertion order. Stops at the
// first failure; the remainder waits for the next reconnect.
func (c *Client) flushStored() {
	if c.opts.Store == nil {
		return
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	pubs, err := c.opts.Store.Publications(ctx)
	if err != nil {
		c.logger.Error("reading stored publications", "error", err)
		return
	}
	if len(pubs) == 0 {
		return
	}

	delivered := 0
	for _, p := range pubs {
		if err := c.publish(ctx, c.topicPrefix+p.Interface+p.Path, p.Payload); err != nil {
			c.logger.Warn("stored publication redelivery failed",
				"interface", p.Interface,
				"error", err,
			)
			break
		}
		if err := c.opts.Store.DeletePublication(ctx, p.ID); err != nil {
			c.logger.Error("removing delivered publication", "id", p.ID, "error", err)
			break
		}
		delivered++
	}

	c.logger.Info("flushed stored publications", "delivered", delivered, "queued", len(pubs))
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// HealthCheck verifies the session is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("session health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// Close shuts the session down. Receive unblocks with ErrClosed; pending
// operations get a short quiesce period.
//
// Returns:
//   - error: Always nil; kept for io.Closer compatibility
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		if c.client != nil {
			c.client.Disconnect(defaultDisconnectQuiesce)
		}

		c.connMu.Lock()
		c.connected = false
		c.connMu.Unlock()
	})

	return nil
}
