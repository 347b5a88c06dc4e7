package mqtt

import "fmt"

// Subscribe registers a handler for a topic pattern (MQTT wildcards
// allowed, e.g. "graylogic/omada/set/#"). The subscription is tracked
// and restored automatically after a reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	ok := token.WaitTimeout(opTimeout)
	if !ok || token.Error() != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()

		if !ok {
			return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, opTimeout)
		}
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, token.Error())
	}
	return nil
}
