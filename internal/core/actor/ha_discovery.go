package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/airzone2mqtt/internal/config"
	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes Home Assistant discovery once the climate
// and MQTT actors are healthy, then idles.
type HADiscoveryActor struct {
	config              *config.Config
	behavior            actor.Behavior
	stash               *actorutil.Stash
	climateActor        *actor.PID
	mqttActor           *actor.PID
	climateActorHealthy bool
	mqttActorHealthy    bool
	healthyRecv         int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, climateActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:       config,
		climateActor: climateActor,
		mqttActor:    mqttActor,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		state.healthyRecv = 0
		state.climateActorHealthy = false
		state.mqttActorHealthy = false
		// the climate actor answers once its device is built
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.climateActor, domain.ActorHealthRequest{}, 30*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CLIMATE,
				Healthy: false,
			}
		})
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 10*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_CLIMATE:
				state.climateActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {
			if !state.climateActorHealthy || !state.mqttActorHealthy {
				panic(errors.New("MQTT Actor or Climate Actor are not healthy"))
			}
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.climateActor, domain.GetClimatesRequest{}, 2*time.Second), func(err error) any {
				return domain.GetClimatesResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
				}
			})
			state.behavior.Become(state.WaitingClimatesReceive)
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingClimatesReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetClimatesResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@climates GetClimatesResponse", zap.Int("climates", len(msg.Climates)))

		climates := make([]domain.ClimateEntity, 0, len(msg.Climates))
		for _, snapshot := range msg.Climates {
			climates = append(climates, snapshot.Entity)
		}
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Bridge:   domain.BridgeDevice(state.config.MQTT.BaseTopic),
			Climates: climates,
		})
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@climates default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
}
