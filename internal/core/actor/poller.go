package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/airzone2mqtt/internal/config"
	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	REFRESH_REQUEST_TIMEOUT = 15 * time.Second
	// consecutive refresh failures before the poller reports unhealthy
	POLL_FAILURE_THRESHOLD = 3
)

// PollerActor refreshes the device on every tick and publishes the
// snapshots that changed since the previous publication.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	scheduler *scheduler.TimerScheduler

	climateActor *actor.PID
	config       *config.Config
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription

	// last published state payload per climate id
	published    map[string]string
	tickCount    uint32
	failureCount int
	online       bool

	logger *zap.Logger
}

type pollerTick struct {
}

func NewPollerActor(config *config.Config, climateActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:       config,
		climateActor: climateActor,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_POLLER, logger),
		eventStream:  eventStream,
		published:    map[string]string{},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.subscribeEvents(ctx)
		// first poll right away, the rest every interval
		ctx.Send(ctx.Self(), pollerTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.unsubscribeEvents()
	default:
		state.logger.Debug("poller@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default ActorHealthRequest")
		ctx.Respond(state.health("idle"))
	case pollerTick:
		state.logger.Debug("poller@default tick")
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.climateActor, domain.RefreshClimatesRequest{}, REFRESH_REQUEST_TIMEOUT), func(err error) any {
			return domain.RefreshClimatesResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
			}
		})
		state.scheduler.RequestOnce(state.config.MonitorConfig.PollInterval(), ctx.Self(), pollerTick{})
		state.behavior.BecomeStacked(state.WaitingRefreshReceive)
	case domain.ClimateCommandResponse:
		state.onCommandResponse(msg)
	case domain.MQTTReadyEvent:
		state.logger.Debug("poller@default mqtt ready, republish all")
		state.forget()
	case *actor.Stopping, *actor.Restarting:
		state.unsubscribeEvents()
	default:
		state.logger.Debug("poller@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) WaitingRefreshReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RefreshClimatesResponse:
		state.onRefreshResponse(msg)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(state.health("refreshing"))
	case domain.ClimateCommandResponse:
		state.onCommandResponse(msg)
	case *actor.Stopping, *actor.Restarting:
		state.unsubscribeEvents()
	default:
		state.logger.Debug("poller@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) onRefreshResponse(msg domain.RefreshClimatesResponse) {
	if msg.HasResponseError() {
		state.failureCount++
		state.logger.Error("poller@refresh failed", zap.Int("failures", state.failureCount), zap.Error(msg.GetResponseError()))
		if state.failureCount >= POLL_FAILURE_THRESHOLD {
			state.publishBridgeState(false)
		}
		return
	}
	if state.failureCount > 0 {
		state.logger.Info("poller@refresh recovered", zap.Int("failures", state.failureCount))
	}
	state.failureCount = 0

	full := state.config.MonitorConfig.FullPublishEvery > 0 && state.tickCount%state.config.MonitorConfig.FullPublishEvery == 0
	state.tickCount++

	state.publishBridgeState(true)
	for _, snapshot := range msg.Climates {
		state.publishSnapshot(snapshot, full)
	}
}

func (state *PollerActor) onCommandResponse(msg domain.ClimateCommandResponse) {
	if msg.HasResponseError() {
		state.logger.Warn("poller@command failed", zap.Stringer("command", msg.Command), zap.Error(msg.GetResponseError()))
		return
	}
	state.logger.Debug("poller@command done", zap.Stringer("command", msg.Command))
	if msg.Snapshot != nil {
		state.publishSnapshot(*msg.Snapshot, false)
	}
}

// publishSnapshot skips states equal to the last published one unless
// force is set.
func (state *PollerActor) publishSnapshot(snapshot domain.ClimateSnapshot, force bool) {
	if snapshot.State == nil {
		state.logger.Warn("poller@publish no state", zap.String("climate", snapshot.Entity.Id), zap.String("error", snapshot.Error))
		return
	}
	payload, err := json.Marshal(snapshot.State)
	if err != nil {
		state.logger.Error("poller@publish encode", zap.String("climate", snapshot.Entity.Id), zap.Error(err))
		return
	}
	if !force && state.published[snapshot.Entity.Id] == string(payload) {
		return
	}
	state.published[snapshot.Entity.Id] = string(payload)
	state.eventStream.Publish(domain.ClimateStateUpdateEvent{
		Snapshot: snapshot,
		Retain:   true,
	})
}

// publishBridgeState only publishes transitions.
func (state *PollerActor) publishBridgeState(online bool) {
	if state.online == online {
		return
	}
	state.online = online
	state.eventStream.Publish(domain.BridgeStateUpdateEvent{Online: online})
}

func (state *PollerActor) subscribeEvents(ctx actor.Context) {
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	state.subscription = state.eventStream.SubscribeWithPredicate(func(evt any) {
		root.Send(self, evt)
	}, func(evt any) bool {
		_, ok := evt.(domain.MQTTReadyEvent)
		return ok
	})
}

func (state *PollerActor) unsubscribeEvents() {
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
}

// forget drops the publication history; the next refresh publishes
// every state and the bridge state again.
func (state *PollerActor) forget() {
	state.published = map[string]string{}
	state.online = false
}

func (state *PollerActor) health(status string) domain.ActorHealthResponse {
	return domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_POLLER,
		Healthy: state.failureCount < POLL_FAILURE_THRESHOLD,
		State:   status,
	}
}
