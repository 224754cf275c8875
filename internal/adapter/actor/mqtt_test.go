package actor

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/internal/util"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	topic   string
	payload string
	retain  bool
}

type recordingSink struct {
	mu       sync.Mutex
	messages []published
}

func (s *recordingSink) publish(topic string, payload string, retain bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, published{topic: topic, payload: payload, retain: retain})
}

func (s *recordingSink) find(topic string) (published, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].topic == topic {
			return s.messages[i], true
		}
	}
	return published{}, false
}

func spawnTestMQTTActor(t *testing.T, es *eventstream.EventStream, sink *recordingSink) (*actor.RootContext, *actor.PID) {
	cfg := util.LoadTestConfig()
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewTestMQTTActor(&cfg, es, zap.NewNop(), sink.publish)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MQTT)
	require.NoError(t, err)
	return as.Root, pid
}

func TestMQTTActorPublishesEvents(t *testing.T) {

	es := &eventstream.EventStream{}
	sink := &recordingSink{}
	root, pid := spawnTestMQTTActor(t, es, sink)

	res, err := root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	require.True(t, res.(domain.ActorHealthResponse).Healthy)

	es.Publish(domain.BridgeStateUpdateEvent{Online: true})
	es.Publish(domain.ClimateStateUpdateEvent{
		Snapshot: domain.ClimateSnapshot{
			Entity: domain.ClimateEntity{Id: "innobus_m1_z2"},
			State: &climate.State{
				On:                true,
				HVACMode:          climate.HVACModeHeat,
				TargetTemperature: climate.Float(21.5),
				MinTemp:           15,
				MaxTemp:           30,
				Unit:              climate.Celsius,
			},
		},
		Retain: true,
	})
	// snapshots without state are not published
	es.Publish(domain.ClimateStateUpdateEvent{
		Snapshot: domain.ClimateSnapshot{Entity: domain.ClimateEntity{Id: "broken"}, Error: "no status"},
	})

	require.Eventually(t, func() bool {
		_, ok := sink.find("airzone/climate/innobus_m1_z2/state")
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	bridge, ok := sink.find("airzone/bridge/state")
	require.True(t, ok)
	assert.Equal(t, "online", bridge.payload)
	assert.True(t, bridge.retain)

	msg, _ := sink.find("airzone/climate/innobus_m1_z2/state")
	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.payload), &state))
	assert.Equal(t, "heat", state["hvac_mode"])
	assert.Equal(t, 21.5, state["temperature"])
	assert.True(t, msg.retain)

	_, ok = sink.find("airzone/climate/broken/state")
	assert.False(t, ok)
}

func TestMQTTActorPublishRequest(t *testing.T) {

	sink := &recordingSink{}
	root, pid := spawnTestMQTTActor(t, &eventstream.EventStream{}, sink)

	res, err := root.RequestFuture(pid, domain.PublishMessageRequest{Topic: "airzone/test", Payload: "hello"}, 2*time.Second).Result()
	require.NoError(t, err)
	require.False(t, res.(domain.PublishMessageResponse).HasResponseError())

	msg, ok := sink.find("airzone/test")
	require.True(t, ok)
	assert.Equal(t, "hello", msg.payload)
	assert.False(t, msg.retain)
}

func TestMQTTActorPublishDiscovery(t *testing.T) {

	sink := &recordingSink{}
	root, pid := spawnTestMQTTActor(t, &eventstream.EventStream{}, sink)

	bridge := domain.BridgeDevice("airzone")
	res, err := root.RequestFuture(pid, domain.PublishDiscoveryRequest{
		Bridge: bridge,
		Climates: []domain.ClimateEntity{{
			Device:       domain.Device{Id: "airzone_innobus_m1_z2", Name: "Zone 2", ViaDevice: bridge.Id},
			Id:           "innobus_m1_z2",
			UniqueId:     "innobus_m1_z2",
			Name:         "Zone 2",
			Capabilities: climate.CapMode | climate.CapTemperature,
			HVACModes:    []climate.HVACMode{climate.HVACModeOff, climate.HVACModeHeat},
			MinTemp:      15,
			MaxTemp:      30,
			TempStep:     domain.TEMPERATURE_STEP,
			Unit:         climate.Celsius,
		}},
	}, 2*time.Second).Result()
	require.NoError(t, err)
	require.False(t, res.(domain.PublishDiscoveryResponse).HasResponseError())

	msg, ok := sink.find("homeassistant/climate/airzone_innobus_m1_z2/innobus_m1_z2/config")
	require.True(t, ok)
	assert.True(t, msg.retain)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.payload), &payload))
	assert.Equal(t, "airzone/climate/innobus_m1_z2/mode/set", payload["mode_command_topic"])

	_, ok = sink.find("homeassistant/binary_sensor/" + bridge.Id + "/bridge/config")
	assert.True(t, ok)
}

func TestMQTTActorForwardsCommandsToParent(t *testing.T) {

	cfg := util.LoadTestConfig()
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)

	commands := make(chan ParsedCommand, 1)
	var child *actor.PID
	parentProps := actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case *actor.Started:
			child, _ = ctx.SpawnNamed(actor.PropsFromProducer(func() actor.Actor {
				return NewTestMQTTActor(&cfg, nil, zap.NewNop(), func(string, string, bool) {})
			}), domain.ACTOR_ID_MQTT)
			ctx.Send(child, ParsedCommand{Command: &domain.ClimateCommand{ClimateId: "a", Kind: domain.COMMAND_POWER, Payload: "ON"}})
		case ParsedCommand:
			commands <- msg
		}
	})
	_, err := as.Root.SpawnNamed(parentProps, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	select {
	case cmd := <-commands:
		assert.Equal(t, "a", cmd.Command.ClimateId)
		assert.Equal(t, domain.COMMAND_POWER, cmd.Command.Kind)
	case <-time.After(2 * time.Second):
		require.Fail(t, "command not forwarded")
	}
}
