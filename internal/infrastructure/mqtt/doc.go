// Package mqtt provides MQTT client connectivity for the Omada bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge publishes the projected controller namespace as retained
// state topics and listens for write intents on set topics:
//
//	Omada Controller ↔ Omada Bridge ↔ MQTT Broker ↔ Gray Logic Core
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Listen for write intents
//	err = client.Subscribe(mqtt.Topics{}.AllSetLeaves(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("write intent: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a leaf value
//	topic := mqtt.Topics{}.StateLeaf("site1.ssids.SS1.hidden")
//	client.Publish(topic, []byte("false"), 1, true)
package mqtt
