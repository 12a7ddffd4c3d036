package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "rpihome"

// Topics builds rpihome MQTT topics under a common prefix.
//
//	topics := mqtt.NewTopics("rpihome")
//	topics.Event("switch", "lamp") // "rpihome/event/switch/lamp"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders under prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

func (t Topics) base() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Event returns the topic for a state change event.
//
// Example: rpihome/event/switch/lamp
func (t Topics) Event(eventType, entity string) string {
	return fmt.Sprintf("%s/event/%s/%s", t.base(), eventType, entity)
}

// SwitchState returns the retained state topic for a switch.
//
// Example: rpihome/state/switch/lamp
func (t Topics) SwitchState(name string) string {
	return fmt.Sprintf("%s/state/switch/%s", t.base(), name)
}

// ClimateState returns the retained state topic for the climate controller.
//
// Example: rpihome/state/climate
func (t Topics) ClimateState() string {
	return fmt.Sprintf("%s/state/climate", t.base())
}

// SystemStatus returns the online/offline status topic.
//
// Example: rpihome/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.base())
}
