// Package mqtt publishes rpihome state changes to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// The server only publishes. Home automation hubs subscribe to the event
// and retained state topics built by Topics.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	client.PublishRetained(topics.SwitchState("lamp"), []byte(`{"enabled":true}`))
package mqtt
