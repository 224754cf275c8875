package actor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/internal/util"
	"github.com/berfenger/airzone2mqtt/pkg/airzone"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func localAPIProvider(fake *util.FakeLocalAPI) DeviceProvider {
	cfg := util.LoadTestConfig()
	params := cfg.Airzone.ConnectionParams()
	params.BaseURL = fake.Server.URL
	return func(ctx context.Context) (*airzone.Device, error) {
		return airzone.Build(ctx, params, airzone.BackendLocalAPI, airzone.WithHTTPClient(fake.Server.Client()))
	}
}

func spawnClimateActor(t *testing.T, provider DeviceProvider) (*actor.RootContext, *actor.PID) {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewClimateActor(provider, "airzone_bridge_test", zap.NewNop())
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_CLIMATE)
	require.NoError(t, err)
	return as.Root, pid
}

func TestClimateActorRefreshAndCommand(t *testing.T) {

	require := require.New(t)

	fake := util.NewFakeLocalAPI(t)
	root, pid := spawnClimateActor(t, localAPIProvider(fake))

	res, err := root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(err)
	require.True(res.(domain.ActorHealthResponse).Healthy)

	res, err = root.RequestFuture(pid, domain.RefreshClimatesRequest{}, 5*time.Second).Result()
	require.NoError(err)
	refresh := res.(domain.RefreshClimatesResponse)
	require.False(refresh.HasResponseError())
	require.Len(refresh.Climates, 1)
	snapshot := refresh.Climates[0]
	require.Equal("localapi_airzone_local_s1_z1", snapshot.Entity.Id)
	require.Equal("airzone_bridge_test", snapshot.Entity.Device.ViaDevice)
	require.NotNil(snapshot.State)
	require.Equal(climate.HVACModeHeat, snapshot.State.HVACMode)

	res, err = root.RequestFuture(pid, domain.ClimateCommandRequest{
		Command: domain.ClimateCommand{
			ClimateId: snapshot.Entity.Id,
			Kind:      domain.COMMAND_TEMPERATURE,
			Payload:   "23",
		},
	}, 5*time.Second).Result()
	require.NoError(err)
	command := res.(domain.ClimateCommandResponse)
	require.False(command.HasResponseError())
	require.NotNil(command.Snapshot)
	require.Equal(23.0, *command.Snapshot.State.TargetTemperature)

	puts := fake.Puts()
	require.Len(puts, 1)
	require.Equal(23.0, puts[0]["setpoint"])
}

func TestClimateActorCommandErrors(t *testing.T) {

	require := require.New(t)

	fake := util.NewFakeLocalAPI(t)
	root, pid := spawnClimateActor(t, localAPIProvider(fake))

	res, err := root.RequestFuture(pid, domain.ClimateCommandRequest{
		Command: domain.ClimateCommand{ClimateId: "nope", Kind: domain.COMMAND_POWER, Payload: "ON"},
	}, 5*time.Second).Result()
	require.NoError(err)
	command := res.(domain.ClimateCommandResponse)
	require.ErrorIs(command.GetResponseError(), climate.ErrConfiguration)

	res, err = root.RequestFuture(pid, domain.ClimateCommandRequest{
		Command: domain.ClimateCommand{ClimateId: "localapi_airzone_local_s1_z1", Kind: domain.COMMAND_TEMPERATURE, Payload: "45"},
	}, 5*time.Second).Result()
	require.NoError(err)
	command = res.(domain.ClimateCommandResponse)
	require.ErrorIs(command.GetResponseError(), climate.ErrRange)
	require.Empty(fake.Puts())
}

func TestClimateActorGetClimatesWithReplyTo(t *testing.T) {

	require := require.New(t)

	fake := util.NewFakeLocalAPI(t)
	root, pid := spawnClimateActor(t, localAPIProvider(fake))

	responses := make(chan domain.GetClimatesResponse, 1)
	probe, err := root.SpawnNamed(actor.PropsFromFunc(func(ctx actor.Context) {
		if msg, ok := ctx.Message().(domain.GetClimatesResponse); ok {
			responses <- msg
		}
	}), "probe")
	require.NoError(err)

	root.Send(pid, domain.GetClimatesRequest{ActorRequestMixIn: domain.ReplyToPID(probe)})
	select {
	case msg := <-responses:
		require.Len(msg.Climates, 1)
		require.Equal("Salon", msg.Climates[0].Entity.Name)
	case <-time.After(5 * time.Second):
		require.Fail("no response")
	}
}

func TestClimateActorStashesUntilDeviceIsReady(t *testing.T) {

	require := require.New(t)

	fake := util.NewFakeLocalAPI(t)
	inner := localAPIProvider(fake)
	release := make(chan struct{})
	provider := func(ctx context.Context) (*airzone.Device, error) {
		<-release
		return inner(ctx)
	}
	root, pid := spawnClimateActor(t, provider)

	future := root.RequestFuture(pid, domain.RefreshClimatesRequest{}, 5*time.Second)
	close(release)
	res, err := future.Result()
	require.NoError(err)
	require.Len(res.(domain.RefreshClimatesResponse).Climates, 1)

}

func TestClimateActorKeepsBadConfiguration(t *testing.T) {

	require := require.New(t)

	var calls atomic.Int32
	provider := func(ctx context.Context) (*airzone.Device, error) {
		calls.Add(1)
		return nil, fmt.Errorf("%w: bad credentials", climate.ErrConfiguration)
	}
	root, pid := spawnClimateActor(t, provider)

	res, err := root.RequestFuture(pid, domain.RefreshClimatesRequest{}, 5*time.Second).Result()
	require.NoError(err)
	require.ErrorIs(res.(domain.RefreshClimatesResponse).GetResponseError(), climate.ErrConfiguration)

	res, err = root.RequestFuture(pid, domain.ClimateCommandRequest{
		Command: domain.ClimateCommand{ClimateId: "localapi_airzone_local_s1_z1", Kind: domain.COMMAND_POWER, Payload: "ON"},
	}, 5*time.Second).Result()
	require.NoError(err)
	require.ErrorIs(res.(domain.ClimateCommandResponse).GetResponseError(), climate.ErrConfiguration)

	res, err = root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(err)
	require.False(res.(domain.ActorHealthResponse).Healthy)

	// a restart would call the provider again
	time.Sleep(1500 * time.Millisecond)
	require.Equal(int32(1), calls.Load())
}

func TestClimateActorRetriesTransportErrors(t *testing.T) {

	require := require.New(t)

	fake := util.NewFakeLocalAPI(t)
	inner := localAPIProvider(fake)
	var calls atomic.Int32
	provider := func(ctx context.Context) (*airzone.Device, error) {
		if calls.Add(1) == 1 {
			return nil, fmt.Errorf("%w: connection refused", climate.ErrTransport)
		}
		return inner(ctx)
	}
	root, pid := spawnClimateActor(t, provider)

	require.Eventually(func() bool {
		res, err := root.RequestFuture(pid, domain.RefreshClimatesRequest{}, time.Second).Result()
		if err != nil {
			return false
		}
		return !res.(domain.RefreshClimatesResponse).HasResponseError()
	}, 10*time.Second, 200*time.Millisecond)
	require.Equal(int32(2), calls.Load())
}

func TestClimateActorClosesDeviceAfterRunningTask(t *testing.T) {

	require := require.New(t)

	fake := util.NewFakeLocalAPI(t)
	inner := localAPIProvider(fake)
	started := make(chan struct{})
	release := make(chan struct{})
	var refreshing, closedWhileRefreshing, closed atomic.Bool
	provider := func(ctx context.Context) (*airzone.Device, error) {
		device, err := inner(ctx)
		if err != nil {
			return nil, err
		}
		refresh := func(ctx context.Context) error {
			refreshing.Store(true)
			defer refreshing.Store(false)
			close(started)
			<-release
			return device.Refresh(ctx)
		}
		return airzone.NewDevice(device.Backend, device.Climates, refresh, func() error {
			closedWhileRefreshing.Store(refreshing.Load())
			closed.Store(true)
			return device.Close()
		}), nil
	}
	root, pid := spawnClimateActor(t, provider)

	root.Send(pid, domain.RefreshClimatesRequest{})
	<-started
	require.NoError(root.StopFuture(pid).Wait())
	require.False(closed.Load())

	close(release)
	require.Eventually(closed.Load, 5*time.Second, 20*time.Millisecond)
	require.False(closedWhileRefreshing.Load())
}
