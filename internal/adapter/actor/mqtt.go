package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/airzone2mqtt/internal/config"
	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/internal/mqtt"
	"github.com/berfenger/airzone2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	client       *mqtt.MQTTClient
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	logger       *zap.Logger

	// test sink, replaces the broker
	sink func(topic string, payload string, retain bool)
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *domain.ClimateCommand
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err != nil {
				state.logger.Warn("mqtt@command ignored", zap.String("topic", m.Topic()), zap.Error(err))
				return
			}
			root.Send(self, ParsedCommand{Command: cmd})
		}, func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		state.logger.Debug("mqtt@starting subscribed")
		state.subscribeEvents(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// stop and let the supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		state.logger.Debug("mqtt@default parsedCommand", zap.Stringer("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.String("topic", msg.Topic))
		state.publishMessage(ctx, rawMessage{topic: msg.Topic, message: msg.Payload, retain: msg.Retain}, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.ClimateStateUpdateEvent, domain.BridgeStateUpdateEvent:
		state.logger.Debug("mqtt@default event", zap.String("type", fmt.Sprintf("%T", msg)))
		raw, err := state.event2MQTTMessage(msg)
		if err != nil {
			state.logger.Error("mqtt@default event encode", zap.Error(err))
			return
		}
		if raw != nil {
			state.publishMessage(ctx, *raw, nil)
		}
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery", zap.Int("climates", len(msg.Climates)))
		err := state.PublishHomeAssistantDiscovery(msg.Bridge, msg.Climates)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
		}
	case MQTTConnectionLost:
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// subscribeEvents forwards event stream messages to the actor mailbox.
func (state *MQTTActor) subscribeEvents(ctx actor.Context) {
	if state.eventStream == nil {
		return
	}
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	state.subscription = state.eventStream.SubscribeWithPredicate(func(evt any) {
		root.Send(self, evt)
	}, func(evt any) bool {
		switch evt.(type) {
		case domain.ClimateStateUpdateEvent, domain.BridgeStateUpdateEvent:
			return true
		}
		return false
	})
	state.eventStream.Publish(domain.MQTTReadyEvent{})
}

func (state *MQTTActor) event2MQTTMessage(event any) (*rawMessage, error) {
	switch msg := event.(type) {
	case domain.ClimateStateUpdateEvent:
		if msg.Snapshot.State == nil {
			return nil, nil
		}
		payload, err := json.Marshal(msg.Snapshot.State)
		if err != nil {
			return nil, err
		}
		return &rawMessage{
			topic:   state.client.ClimateStateTopic(msg.Snapshot.Entity.Id),
			message: string(payload),
			retain:  msg.Retain,
		}, nil
	case domain.BridgeStateUpdateEvent:
		stringMessage := mqtt.MQTT_PAYLOAD_OFFLINE
		if msg.Online {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
			retain:  true,
		}, nil
	}
	return nil, nil
}

func (state *MQTTActor) publishMessage(ctx actor.Context, msg rawMessage, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: %s => %s", msg.topic, msg.message)
	if state.sink != nil {
		state.sink(msg.topic, msg.message, msg.retain)
		if replyTo != nil {
			ctx.Send(replyTo, domain.PublishMessageResponse{})
		}
		return
	}
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	state.client.Publish(msg.topic, msg.message, 1, msg.retain, func(err error) {
		root.Send(self, publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.PublishResultReceive)
}

func (state *MQTTActor) PublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ErrorResponse(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(bridge domain.Device, climates []domain.ClimateEntity) error {
	discoveryTopic := state.client.DiscoveryTopic()
	for _, sensor := range domain.BridgeSensors(bridge) {
		payload, err := json.Marshal(mqtt.GenericSensorToHADiscoveryMessage(state.client, sensor))
		if err != nil {
			return err
		}
		state.publishDiscovery(mqtt.HADiscoverySensorTopic(discoveryTopic, sensor), payload)
	}
	for i := range climates {
		payload, err := json.Marshal(mqtt.ClimateToHADiscoveryMessage(state.client, climates[i]))
		if err != nil {
			return err
		}
		state.publishDiscovery(mqtt.HADiscoveryClimateTopic(discoveryTopic, climates[i]), payload)
	}
	return nil
}

func (state *MQTTActor) publishDiscovery(topic string, payload []byte) {
	if state.sink != nil {
		state.sink(topic, string(payload), true)
		return
	}
	state.client.Publish(topic, payload, 0, true, func(err error) {
		if err != nil {
			state.logger.Error("mqtt@discovery publish", zap.String("topic", topic), zap.Error(err))
		}
	}, 1*time.Second)
}

func (state *MQTTActor) stop() {
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	if state.client != nil && state.sink == nil {
		state.logger.Debug("mqtt: disconnect")
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

// NewTestMQTTActor never connects; every message it would publish goes
// to sink instead.
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger,
	sink func(topic string, payload string, retain bool)) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
		sink:        sink,
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribeEvents(ctx)
		state.behavior.Become(state.DefaultReceive)
	}
}
