package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_CLIMATE      = "climate"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// GetClimatesRequest reads the current snapshot of every climate without
// touching the transport.
type GetClimatesRequest struct {
	ActorRequestMixIn
}

type GetClimatesResponse struct {
	ActorResponseMixIn
	Climates []ClimateSnapshot
}

// RefreshClimatesRequest fetches a new device status and answers with the
// resulting snapshots.
type RefreshClimatesRequest struct {
	ActorRequestMixIn
}

type RefreshClimatesResponse struct {
	ActorResponseMixIn
	Climates []ClimateSnapshot
}

type ClimateCommandRequest struct {
	ActorRequestMixIn
	Command ClimateCommand
}

type ClimateCommandResponse struct {
	ActorResponseMixIn
	Command  ClimateCommand
	Snapshot *ClimateSnapshot
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Bridge   Device
	Climates []ClimateEntity
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
