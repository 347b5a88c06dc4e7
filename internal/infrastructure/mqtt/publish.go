package mqtt

import "fmt"

// maxPayloadSize caps outbound messages at 1MB. The largest payloads the
// bridge produces are the raw ".json" endpoint leaves, which stay well
// under this.
const maxPayloadSize = 1 << 20

// Publish sends a message to the given topic.
//
// Retained messages are stored by the broker and delivered to new
// subscribers immediately; use them for state, never for
// acknowledgements.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, opTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes retained at the configured default QoS.
// This is the path every namespace leaf update takes.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
