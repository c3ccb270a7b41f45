package astarte

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Maximum payload size for publications (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Send publishes an individual value on a device-owned interface.
//
// Parameters:
//   - ctx: Context for cancellation
//   - iface: Interface name, e.g. "io.edgehog.devicemanager.OSInfo"
//   - path: Mapping path, e.g. "/osName"
//   - value: The value; marshalled into the JSON envelope
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	err := client.Send(ctx, "io.edgehog.devicemanager.OSInfo", "/osName", "Linux")
func (c *Client) Send(ctx context.Context, iface, path string, value any) error {
	def, err := c.publishableInterface(iface)
	if err != nil {
		return err
	}
	if def.ObjectAggregated() {
		return fmt.Errorf("%w: %s takes object aggregates", ErrAggregationMismatch, iface)
	}

	payload, err := encodeIndividual(value)
	if err != nil {
		return err
	}

	return c.publish(ctx, c.topicPrefix+iface+path, payload)
}

// SendObject publishes an object aggregate on a device-owned interface.
//
// Parameters:
//   - ctx: Context for cancellation
//   - iface: Interface name, e.g. "io.edgehog.devicemanager.SystemStatus"
//   - path: Mapping path, e.g. "/systemStatus"
//   - fields: Named values sent as one aggregate
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) SendObject(ctx context.Context, iface, path string, fields map[string]any) error {
	def, err := c.publishableInterface(iface)
	if err != nil {
		return err
	}
	if !def.ObjectAggregated() {
		return fmt.Errorf("%w: %s takes individual values", ErrAggregationMismatch, iface)
	}

	payload, err := encodeObject(fields)
	if err != nil {
		return err
	}

	return c.publish(ctx, c.topicPrefix+iface+path, payload)
}

// SendStored publishes an object aggregate with stored retention: when
// delivery fails, the publication is queued in the state store and redelivered
// on the next (re)connect, surviving restarts.
//
// Validation failures (unknown interface, aggregation mismatch) are returned
// as-is; only delivery failures are queued. Without a configured store the
// delivery error is returned.
func (c *Client) SendStored(ctx context.Context, iface, path string, fields map[string]any) error {
	err := c.SendObject(ctx, iface, path, fields)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrPublishFailed) && !errors.Is(err, ErrNotConnected) {
		return err
	}
	if c.opts.Store == nil {
		return err
	}

	payload, encErr := encodeObject(fields)
	if encErr != nil {
		return encErr
	}

	if qErr := c.opts.Store.EnqueuePublication(ctx, iface, path, payload); qErr != nil {
		return fmt.Errorf("queueing publication after %v: %w", err, qErr)
	}

	c.logger.Info("publication queued for redelivery",
		"interface", iface,
		"path", path,
		"cause", err,
	)
	return nil
}

// publishableInterface returns the definition when the device may publish on
// the interface.
func (c *Client) publishableInterface(iface string) (InterfaceDefinition, error) {
	def, ok := c.interfaces[iface]
	if !ok {
		return InterfaceDefinition{}, fmt.Errorf("%w: %s", ErrUnknownInterface, iface)
	}
	if def.ServerOwned() {
		return InterfaceDefinition{}, fmt.Errorf("%w: %s is server owned", ErrPublishFailed, iface)
	}
	return def, nil
}

// publish delivers an encoded payload with the session QoS and timeout.
func (c *Client) publish(ctx context.Context, topic string, payload []byte) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	timer := time.NewTimer(defaultPublishTimeout)
	defer timer.Stop()

	token := c.client.Publish(topic, defaultQoS, false, payload)
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
