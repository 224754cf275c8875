package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/internal/util/actorutil"
	"github.com/berfenger/airzone2mqtt/pkg/airzone"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	DEVICE_OPEN_TIMEOUT = 30 * time.Second
	DEVICE_CALL_TIMEOUT = 10 * time.Second
)

// DeviceProvider builds and connects the device graph.
type DeviceProvider func(ctx context.Context) (*airzone.Device, error)

// ClimateActor owns the device graph. Transport calls run as background
// tasks, one at a time; requests arriving meanwhile are stashed.
type ClimateActor struct {
	behavior       actor.Behavior
	stash          *actorutil.Stash
	deviceProvider DeviceProvider
	device         *airzone.Device
	bridgeId       string
	logger         *zap.Logger

	// closed when the last background task returns, which may be after
	// its timeout already answered the request
	taskDone chan struct{}
	// set when the device can never be built with this configuration
	failure error
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewClimateActor(deviceProvider DeviceProvider, bridgeId string, logger *zap.Logger) *ClimateActor {
	act := &ClimateActor{
		deviceProvider: deviceProvider,
		bridgeId:       bridgeId,
		behavior:       actor.NewBehavior(),
		stash:          &actorutil.Stash{},
		logger:         actorutil.ActorLogger(domain.ACTOR_ID_CLIMATE, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ClimateActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ClimateActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("climate@starting started")
		openCtx, cancel := context.WithTimeout(context.Background(), DEVICE_OPEN_TIMEOUT)
		device, err := state.deviceProvider(openCtx)
		cancel()
		if errors.Is(err, climate.ErrConfiguration) {
			// a rebuild would fail the same way
			state.logger.Error("climate@starting bad configuration, giving up", zap.Error(err))
			state.failure = err
			state.behavior.Become(state.FailedReceive)
			state.stash.UnstashAll(ctx)
			return
		}
		if err != nil {
			// the supervisor restarts with backoff
			state.logger.Error("climate@starting device build failed", zap.Error(err))
			panic(err)
		}
		state.device = device
		state.logger.Info("climate@starting device ready",
			zap.String("backend", string(device.Backend)), zap.Int("climates", len(device.Climates)))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("climate@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ClimateActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("climate@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLIMATE,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetClimatesRequest:
		state.logger.Debug("climate@default GetClimatesRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetClimatesResponse{
			Climates: state.snapshots(state.device),
		})
	case domain.RefreshClimatesRequest:
		state.logger.Debug("climate@default RefreshClimatesRequest")
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		device, done := state.startTask()
		actorutil.MapBackgroundTask(actorutil.NewContextTask(ctx, DEVICE_CALL_TIMEOUT, func(callCtx context.Context) (*domain.RefreshClimatesResponse, error) {
			defer close(done)
			return state.refresh(callCtx, device)
		}),
			mapTaskResult[domain.RefreshClimatesResponse](replyTo)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.RefreshClimatesResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
				},
				replyTo: replyTo,
			}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case domain.ClimateCommandRequest:
		state.logger.Debug("climate@default ClimateCommandRequest", zap.Stringer("command", msg.Command))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		command := msg.Command
		device, done := state.startTask()
		actorutil.MapBackgroundTask(actorutil.NewContextTask(ctx, DEVICE_CALL_TIMEOUT, func(callCtx context.Context) (*domain.ClimateCommandResponse, error) {
			defer close(done)
			return state.command(callCtx, device, command)
		}), mapTaskResult[domain.ClimateCommandResponse](replyTo)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ClimateCommandResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
					Command:            command,
				},
				replyTo: replyTo,
			}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case *actor.Stopping:
		state.close()
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("climate@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ClimateActor) WaitingDevice(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("climate@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLIMATE,
			Healthy: true,
			State:   "busy",
		})
	case *actor.Stopping:
		state.close()
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("climate@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// FailedReceive answers every request with the configuration error the
// device build failed with. Health stays false.
func (state *ClimateActor) FailedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLIMATE,
			Healthy: false,
			State:   "failed: " + state.failure.Error(),
		})
	case domain.GetClimatesRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.GetClimatesResponse{
			ActorResponseMixIn: domain.ErrorResponse(state.failure),
		})
	case domain.RefreshClimatesRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.RefreshClimatesResponse{
			ActorResponseMixIn: domain.ErrorResponse(state.failure),
		})
	case domain.ClimateCommandRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.ClimateCommandResponse{
			ActorResponseMixIn: domain.ErrorResponse(state.failure),
			Command:            msg.Command,
		})
	default:
		state.logger.Debug("climate@failed ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// startTask hands the device to a background task. The task closes done
// when it returns, whatever the actor is doing by then.
func (state *ClimateActor) startTask() (*airzone.Device, chan struct{}) {
	done := make(chan struct{})
	state.taskDone = done
	return state.device, done
}

func (state *ClimateActor) refresh(ctx context.Context, device *airzone.Device) (*domain.RefreshClimatesResponse, error) {
	if err := device.Refresh(ctx); err != nil {
		state.logger.Warn("climate@refresh failed", zap.Error(err))
		return nil, err
	}
	return &domain.RefreshClimatesResponse{
		Climates: state.snapshots(device),
	}, nil
}

func (state *ClimateActor) command(ctx context.Context, device *airzone.Device, command domain.ClimateCommand) (*domain.ClimateCommandResponse, error) {
	target := find(device, command.ClimateId)
	if target == nil {
		return nil, fmt.Errorf("%w: unknown climate %q", climate.ErrConfiguration, command.ClimateId)
	}
	if err := command.Apply(ctx, target); err != nil {
		state.logger.Warn("climate@command failed", zap.Stringer("command", command), zap.Error(err))
		return nil, err
	}
	snapshot := domain.NewClimateSnapshot(string(device.Backend), target, state.bridgeId)
	return &domain.ClimateCommandResponse{
		Command:  command,
		Snapshot: &snapshot,
	}, nil
}

func find(device *airzone.Device, climateId string) *climate.Climate {
	for _, c := range device.Climates {
		if domain.TopicId(c.UniqueID()) == climateId {
			return c
		}
	}
	return nil
}

// snapshots reads the published device status only.
func (state *ClimateActor) snapshots(device *airzone.Device) []domain.ClimateSnapshot {
	out := make([]domain.ClimateSnapshot, 0, len(device.Climates))
	for _, c := range device.Climates {
		out = append(out, domain.NewClimateSnapshot(string(device.Backend), c, state.bridgeId))
	}
	return out
}

// close releases the device once the last background task lets go of it.
func (state *ClimateActor) close() {
	device, done := state.device, state.taskDone
	state.device, state.taskDone = nil, nil
	if device == nil {
		return
	}
	if done == nil {
		state.closeDevice(device)
		return
	}
	go func() {
		<-done
		state.closeDevice(device)
	}()
}

func (state *ClimateActor) closeDevice(device *airzone.Device) {
	if err := device.Close(); err != nil {
		state.logger.Warn("climate: close device", zap.Error(err))
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
