package innobus

import (
	"testing"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newAidooBus emulates a powered on unit cooling at 22.0 with the fan on auto.
func newAidooBus(steps uint16) *testBus {
	return &testBus{regs: map[uint16]uint16{
		REG_AIDOO_POWER:       1,
		REG_AIDOO_MODE:        uint16(AidooModeCool),
		REG_AIDOO_SPEED:       0,
		REG_AIDOO_SETPOINT:    encodeTemp(22),
		REG_AIDOO_LOCAL_TEMP:  encodeTemp(24),
		REG_AIDOO_SPEED_STEPS: steps,
	}}
}

func buildAidoo(t *testing.T, bus *testBus) *climate.Climate {
	client := newAidooClient(bus, 3, zap.NewNop(), nil)
	require.NoError(t, client.Open(testContext()))
	c, err := NewAidooClimate(client, nil)
	require.NoError(t, err)
	return c
}

func TestNewAidooClientRequiresAddress(t *testing.T) {

	_, err := NewAidooClient(Config{Port: 502, MachineID: 1}, nil)
	require.ErrorIs(t, err, climate.ErrConfiguration)

	_, err = NewAidooClient(Config{Host: "gateway.local", Port: 502}, nil)
	require.ErrorIs(t, err, climate.ErrConfiguration)
}

func TestAidooOpenRejectsMissingSpeedSteps(t *testing.T) {

	client := newAidooClient(newAidooBus(0), 3, zap.NewNop(), nil)
	require.ErrorIs(t, client.Open(testContext()), climate.ErrConfiguration)
}

func TestAidooState(t *testing.T) {

	require := require.New(t)

	bus := newAidooBus(4)
	bus.regs[REG_AIDOO_SPEED] = 50
	c := buildAidoo(t, bus)

	assert.Equal(t, "aidoo_m3", c.UniqueID())
	assert.Equal(t, "Aidoo 3", c.Name())

	st, err := c.State()
	require.NoError(err)
	require.True(st.On)
	require.Equal(climate.HVACModeCool, st.HVACMode)
	require.Equal(climate.HVACActionCooling, st.HVACAction)
	require.Equal(climate.FanMode("2"), st.FanMode)
	require.Equal(24.0, *st.CurrentTemperature)
	require.Equal(22.0, *st.TargetTemperature)
	require.Equal(17.0, st.MinTemp)
	require.Equal(35.0, st.MaxTemp)

	bus.mu.Lock()
	bus.regs[REG_AIDOO_POWER] = 0
	bus.mu.Unlock()
	require.NoError(c.Refresh(testContext()))
	st, err = c.State()
	require.NoError(err)
	require.False(st.On)
	require.Equal(climate.HVACModeOff, st.HVACMode)

	bus.mu.Lock()
	bus.regs[REG_AIDOO_MODE] = 9
	bus.mu.Unlock()
	require.NoError(c.Refresh(testContext()))
	_, err = c.State()
	require.ErrorIs(err, climate.ErrUnknownMode)
}

func TestAidooFanSpeedSteps(t *testing.T) {

	require := require.New(t)

	bus := newAidooBus(4)
	c := buildAidoo(t, bus)

	require.Equal([]climate.FanMode{climate.FanAuto, "1", "2", "3", "4"}, c.FanModes())

	require.NoError(c.SetFanMode(testContext(), "1"))
	require.Equal([]registerWrite{{Addr: REG_AIDOO_SPEED, Value: 25}}, bus.writeLog())
	st, _ := c.State()
	require.Equal(climate.FanMode("1"), st.FanMode)

	require.NoError(c.SetFanMode(testContext(), climate.FanAuto))
	st, _ = c.State()
	require.Equal(climate.FanAuto, st.FanMode)

	require.ErrorIs(c.SetFanMode(testContext(), "5"), climate.ErrUnsupportedOperation)
	require.ErrorIs(c.SetFanMode(testContext(), climate.FanHigh), climate.ErrUnsupportedOperation)
	require.Len(bus.writeLog(), 2)
}

func TestAidooModeSwitchesUnitOn(t *testing.T) {

	require := require.New(t)

	bus := newAidooBus(3)
	bus.regs[REG_AIDOO_POWER] = 0
	c := buildAidoo(t, bus)

	require.NoError(c.SetHVACMode(testContext(), climate.HVACModeHeat))
	require.Equal([]registerWrite{
		{Addr: REG_AIDOO_POWER, Value: 1},
		{Addr: REG_AIDOO_MODE, Value: uint16(AidooModeHeat)},
	}, bus.writeLog())
	st, _ := c.State()
	require.Equal(climate.HVACModeHeat, st.HVACMode)

	require.NoError(c.SetHVACMode(testContext(), climate.HVACModeDry))
	require.Len(bus.writeLog(), 3)

	require.NoError(c.SetHVACMode(testContext(), climate.HVACModeOff))
	require.Equal(registerWrite{Addr: REG_AIDOO_POWER, Value: 0}, bus.writeLog()[3])
	st, _ = c.State()
	require.Equal(climate.HVACModeOff, st.HVACMode)

	require.ErrorIs(c.SetHVACMode(testContext(), climate.HVACModeHeatCool), climate.ErrUnsupportedOperation)
	require.Len(bus.writeLog(), 4)
}

func TestAidooTemperature(t *testing.T) {

	require := require.New(t)

	bus := newAidooBus(3)
	c := buildAidoo(t, bus)

	require.ErrorIs(c.SetTemperature(testContext(), 16.9), climate.ErrRange)
	require.ErrorIs(c.SetTemperature(testContext(), 35.1), climate.ErrRange)
	require.Empty(bus.writeLog())

	require.NoError(c.SetTemperature(testContext(), 25.46))
	require.Equal([]registerWrite{{Addr: REG_AIDOO_SETPOINT, Value: 255}}, bus.writeLog())
	st, _ := c.State()
	require.Equal(25.5, *st.TargetTemperature)
}

func TestAidooReadFailureIsTransport(t *testing.T) {

	require := require.New(t)

	bus := newAidooBus(3)
	c := buildAidoo(t, bus)
	bus.mu.Lock()
	bus.failReads = true
	bus.mu.Unlock()

	require.ErrorIs(c.Refresh(testContext()), climate.ErrTransport)
	st, err := c.State()
	require.NoError(err)
	require.Equal(climate.HVACModeCool, st.HVACMode)
}
