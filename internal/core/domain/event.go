package domain

// ClimateStateUpdateEvent is published on the event stream whenever a
// snapshot should reach MQTT.
type ClimateStateUpdateEvent struct {
	Snapshot ClimateSnapshot
	Retain   bool
}

type BridgeStateUpdateEvent struct {
	Online bool
}

// MQTTReadyEvent is published each time the MQTT actor starts forwarding
// events, so publishers can resend retained state.
type MQTTReadyEvent struct {
}
