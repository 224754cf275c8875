package climate

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeView records every call that reaches the transport side.
type fakeView struct {
	state    State
	lo, hi   float64
	calls    []string
	setpoint float64
}

func (v *fakeView) Refresh(ctx context.Context) error {
	v.calls = append(v.calls, "refresh")
	return nil
}

func (v *fakeView) State() (State, error) {
	return v.state, nil
}

func (v *fakeView) TemperatureRange() (float64, float64, error) {
	return v.lo, v.hi, nil
}

func (v *fakeView) SetTargetTemperature(ctx context.Context, value float64) error {
	v.calls = append(v.calls, "temperature")
	v.setpoint = value
	return nil
}

// modeView adds mode and fan control on top of fakeView.
type modeView struct {
	fakeView
}

func (v *modeView) HVACModes() []HVACMode {
	return []HVACMode{HVACModeOff, HVACModeHeat}
}

func (v *modeView) SetHVACMode(ctx context.Context, mode HVACMode) error {
	v.calls = append(v.calls, "mode:"+string(mode))
	return nil
}

func (v *modeView) FanModes() []FanMode {
	return StepFanModes(3)
}

func (v *modeView) SetFanMode(ctx context.Context, mode FanMode) error {
	v.calls = append(v.calls, "fan:"+string(mode))
	return nil
}

func TestCapabilitiesFromView(t *testing.T) {

	c := New("a", "A", &fakeView{}, nil)
	assert.Equal(t, CapTemperature, c.Capabilities())
	assert.Equal(t, "temperature", c.Capabilities().String())
	assert.Nil(t, c.HVACModes())
	assert.Empty(t, c.PresetModes())

	m := New("b", "B", &modeView{}, nil)
	assert.True(t, m.Capabilities().Has(CapMode|CapFan|CapTemperature))
	assert.False(t, m.Capabilities().Has(CapPower))
	assert.Equal(t, "none", Capability(0).String())
}

func TestUnsupportedOperations(t *testing.T) {

	require := require.New(t)

	view := &fakeView{lo: 15, hi: 30}
	c := New("a", "A", view, nil)
	ctx := context.Background()

	require.ErrorIs(c.TurnOn(ctx), ErrUnsupportedOperation)
	require.ErrorIs(c.TurnOff(ctx), ErrUnsupportedOperation)
	require.ErrorIs(c.SetHVACMode(ctx, HVACModeHeat), ErrUnsupportedOperation)
	require.ErrorIs(c.SetFanMode(ctx, FanAuto), ErrUnsupportedOperation)
	require.ErrorIs(c.SetPreset(ctx, PresetSleep), ErrUnsupportedOperation)
	require.Empty(view.calls)
}

func TestModeAndFanMembership(t *testing.T) {

	require := require.New(t)

	view := &modeView{}
	c := New("a", "A", view, nil)
	ctx := context.Background()

	require.ErrorIs(c.SetHVACMode(ctx, HVACModeCool), ErrUnsupportedOperation)
	require.ErrorIs(c.SetFanMode(ctx, "4"), ErrUnsupportedOperation)
	require.ErrorIs(c.SetFanMode(ctx, FanHigh), ErrUnsupportedOperation)
	require.Empty(view.calls)

	require.NoError(c.SetHVACMode(ctx, HVACModeHeat))
	require.NoError(c.SetFanMode(ctx, "3"))
	require.Equal([]string{"mode:heat", "fan:3"}, view.calls)
}

func TestSetTemperatureRange(t *testing.T) {

	require := require.New(t)

	view := &fakeView{lo: 15, hi: 30}
	c := New("a", "A", view, nil)
	ctx := context.Background()

	require.ErrorIs(c.SetTemperature(ctx, 14.99), ErrRange)
	require.ErrorIs(c.SetTemperature(ctx, 30.01), ErrRange)
	require.ErrorIs(c.SetTemperature(ctx, math.NaN()), ErrRange)
	require.ErrorIs(c.SetTemperature(ctx, math.Inf(1)), ErrRange)
	require.ErrorIs(c.SetTemperature(ctx, math.Inf(-1)), ErrRange)
	require.Empty(view.calls)

	require.NoError(c.SetTemperature(ctx, 15))
	require.NoError(c.SetTemperature(ctx, 22.46))
	require.Equal([]string{"temperature", "temperature"}, view.calls)
	require.Equal(22.5, view.setpoint)
}

func TestSpeedScaleRoundTrip(t *testing.T) {

	for steps := 1; steps <= 10; steps++ {
		scale, err := NewSpeedScale(steps)
		require.NoError(t, err)
		for level := 0; level <= steps; level++ {
			native := scale.ToNative(level)
			assert.LessOrEqual(t, native, SPEED_SCALE_MAX)
			assert.Equal(t, level, scale.FromNative(native), "steps %d level %d", steps, level)
		}
		assert.Len(t, scale.FanModes(), steps+1)
	}

	scale := SpeedScale{Steps: 4}
	assert.Equal(t, 25, scale.ToNative(1))
	assert.Equal(t, 100, scale.ToNative(4))
	assert.Equal(t, 4, scale.FromNative(150))
	assert.Equal(t, 0, scale.FromNative(-10))

	_, err := NewSpeedScale(0)
	require.ErrorIs(t, err, ErrParse)
}

func TestParseLevel(t *testing.T) {

	level, err := ParseLevel(FanAuto, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, level)

	level, err = ParseLevel("3", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, level)

	for _, bad := range []FanMode{"0", "4", "low", ""} {
		_, err := ParseLevel(bad, 3)
		assert.ErrorIs(t, err, ErrUnsupportedOperation, bad)
	}
	assert.Equal(t, FanAuto, LevelFanMode(0))
	assert.Equal(t, FanMode("2"), LevelFanMode(2))
}

func TestParseNames(t *testing.T) {

	mode, err := ParseHVACMode("heat_cool")
	require.NoError(t, err)
	assert.Equal(t, HVACModeHeatCool, mode)

	_, err = ParseHVACMode("HEAT")
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	preset, err := ParsePreset("floor")
	require.NoError(t, err)
	assert.Equal(t, PresetFloor, preset)

	_, err = ParsePreset("eco")
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	assert.Equal(t, 20.0, RoundTemperature(19.96))
	assert.Equal(t, 21.4, RoundTemperature(21.44))
}
