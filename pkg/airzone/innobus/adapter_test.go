package innobus

import (
	"testing"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildClimates(t *testing.T, bus *testBus) (*climate.Climate, *climate.Climate) {
	client, err := openTestClient(bus)
	require.NoError(t, err)
	climates := NewClimates(client, nil)
	require.Len(t, climates, 2)
	return climates[0], climates[1]
}

func TestUniqueIDs(t *testing.T) {

	machine, zone := buildClimates(t, newTestBus(OperationModeHot, 2))
	assert.Equal(t, "innobus_m1", machine.UniqueID())
	assert.Equal(t, "innobus_m1_z2", zone.UniqueID())
	assert.Equal(t, "Airzone Zone 2", zone.Name())
}

func TestZoneHVACAction(t *testing.T) {

	cases := []struct {
		name   string
		mode   OperationMode
		flags  uint16
		action climate.HVACAction
	}{
		{"air requested in hot air heats", OperationModeHotAir, FLAG_REQUESTING_AIR, climate.HVACActionHeating},
		{"air requested in cold cools", OperationModeCold, FLAG_REQUESTING_AIR, climate.HVACActionCooling},
		{"stop without flags is off", OperationModeStop, 0, climate.HVACActionOff},
		{"floor has priority over air", OperationModeCold, FLAG_FLOOR_ACTIVE | FLAG_REQUESTING_AIR, climate.HVACActionHeating},
		{"floor has priority over stop", OperationModeStop, FLAG_FLOOR_ACTIVE, climate.HVACActionHeating},
		{"air requested in hotplus cools", OperationModeHotPlus, FLAG_REQUESTING_AIR, climate.HVACActionCooling},
		{"running without demand is idle", OperationModeHot, FLAG_TACTO_ON, climate.HVACActionIdle},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			bus := newTestBus(c.mode, 1)
			bus.setFlags(1, c.flags)
			_, zone := buildClimates(t, bus)

			st, err := zone.State()
			require.NoError(t, err)
			assert.Equal(t, c.action, st.HVACAction)
		})
	}
}

func TestZoneModeFromFlags(t *testing.T) {

	bus := newTestBus(OperationModeHot, 1)
	_, zone := buildClimates(t, bus)

	st, err := zone.State()
	require.NoError(t, err)
	assert.Equal(t, climate.HVACModeOff, st.HVACMode)
	assert.False(t, st.On)

	bus.setFlags(1, FLAG_TACTO_ON)
	require.NoError(t, zone.Refresh(testContext()))
	st, _ = zone.State()
	assert.Equal(t, climate.HVACModeHeatCool, st.HVACMode)

	bus.setFlags(1, FLAG_TACTO_ON|FLAG_AUTOMATIC|FLAG_SLEEP|FLAG_WINDOW_OPENED)
	require.NoError(t, zone.Refresh(testContext()))
	st, _ = zone.State()
	assert.Equal(t, climate.HVACModeAuto, st.HVACMode)
	assert.Equal(t, climate.PresetSleep, st.Preset)
	assert.Equal(t, true, st.Attributes["is_window_opened"])
	assert.Contains(t, zone.HVACModes(), st.HVACMode)
}

func TestMachineModesAreAdvertised(t *testing.T) {

	for _, mode := range []OperationMode{OperationModeStop, OperationModeCold, OperationModeHot,
		OperationModeAir, OperationModeHotAir, OperationModeHotPlus} {
		machine, _ := buildClimates(t, newTestBus(mode, 1))
		st, err := machine.State()
		require.NoError(t, err)
		assert.Contains(t, machine.HVACModes(), st.HVACMode, mode.String())
	}
}

func TestMachineUnknownModeFailsClosed(t *testing.T) {

	machine, _ := buildClimates(t, newTestBus(OperationMode(9), 1))
	_, err := machine.State()
	require.ErrorIs(t, err, climate.ErrUnknownMode)
}

func TestMachineRejectsZoneLevelCommands(t *testing.T) {

	require := require.New(t)

	bus := newTestBus(OperationModeHot, 1)
	machine, _ := buildClimates(t, bus)

	require.ErrorIs(machine.SetTemperature(testContext(), 22), climate.ErrUnsupportedOperation)
	require.ErrorIs(machine.SetFanMode(testContext(), climate.FanLow), climate.ErrUnsupportedOperation)
	require.ErrorIs(machine.TurnOn(testContext()), climate.ErrUnsupportedOperation)
	require.ErrorIs(machine.SetHVACMode(testContext(), climate.HVACModeAuto), climate.ErrUnsupportedOperation)
	require.Empty(bus.writeLog())
}

func TestMachinePresets(t *testing.T) {

	require := require.New(t)

	bus := newTestBus(OperationModeHot, 1)
	machine, _ := buildClimates(t, bus)

	st, _ := machine.State()
	require.Equal(climate.PresetFloor, st.Preset)

	require.NoError(machine.SetPreset(testContext(), climate.PresetAir))
	st, _ = machine.State()
	require.Equal(climate.PresetAir, st.Preset)
	require.Equal(climate.HVACModeHeat, st.HVACMode)

	require.NoError(machine.SetPreset(testContext(), climate.PresetCombined))
	st, _ = machine.State()
	require.Equal(climate.PresetCombined, st.Preset)

	require.Equal([]registerWrite{
		{Addr: REG_MACHINE_MODE, Value: uint16(OperationModeHotAir)},
		{Addr: REG_MACHINE_MODE, Value: uint16(OperationModeHotPlus)},
	}, bus.writeLog())
}

func TestMachinePresetOutsideHeatIsNoop(t *testing.T) {

	bus := newTestBus(OperationModeCold, 1)
	machine, _ := buildClimates(t, bus)

	require.NoError(t, machine.SetPreset(testContext(), climate.PresetAir))
	require.Empty(t, bus.writeLog())

	st, _ := machine.State()
	assert.Equal(t, climate.HVACModeCool, st.HVACMode)
}

func TestMachineHeatKeepsHeatSource(t *testing.T) {

	require := require.New(t)

	bus := newTestBus(OperationModeHotAir, 1)
	machine, _ := buildClimates(t, bus)
	require.NoError(machine.SetHVACMode(testContext(), climate.HVACModeHeat))
	require.Equal(OperationModeHotAir, OperationMode(bus.writeLog()[0].Value))

	bus = newTestBus(OperationModeCold, 1)
	machine, _ = buildClimates(t, bus)
	require.NoError(machine.SetHVACMode(testContext(), climate.HVACModeHeat))
	require.Equal(OperationModeHot, OperationMode(bus.writeLog()[0].Value))

	require.NoError(machine.SetHVACMode(testContext(), climate.HVACModeOff))
	st, _ := machine.State()
	require.Equal(climate.HVACModeOff, st.HVACMode)
	require.Equal(climate.HVACActionOff, st.HVACAction)
}

func TestZoneAutoModeEnablesZoneLast(t *testing.T) {

	require := require.New(t)

	bus := newTestBus(OperationModeHot, 1)
	_, zone := buildClimates(t, bus)

	require.NoError(zone.SetHVACMode(testContext(), climate.HVACModeAuto))
	require.Equal([]registerWrite{
		{Addr: ZONE_BLOCK_LEN + REG_ZONE_AUTOMATIC, Value: 1},
		{Addr: ZONE_BLOCK_LEN + REG_ZONE_TACTO_ON, Value: 1},
	}, bus.writeLog())

	st, err := zone.State()
	require.NoError(err)
	require.Equal(climate.HVACModeAuto, st.HVACMode)

	require.NoError(zone.SetHVACMode(testContext(), climate.HVACModeOff))
	st, _ = zone.State()
	require.Equal(climate.HVACModeOff, st.HVACMode)
}

func TestZoneFanAndPreset(t *testing.T) {

	require := require.New(t)

	bus := newTestBus(OperationModeCold, 1)
	_, zone := buildClimates(t, bus)

	require.Equal([]climate.FanMode{climate.FanAuto, climate.FanLow, climate.FanMedium, climate.FanHigh}, zone.FanModes())
	require.NoError(zone.SetFanMode(testContext(), climate.FanHigh))
	st, _ := zone.State()
	require.Equal(climate.FanHigh, st.FanMode)

	require.ErrorIs(zone.SetFanMode(testContext(), "2"), climate.ErrUnsupportedOperation)

	require.NoError(zone.SetPreset(testContext(), climate.PresetSleep))
	st, _ = zone.State()
	require.Equal(climate.PresetSleep, st.Preset)

	require.NoError(zone.SetPreset(testContext(), climate.PresetNone))
	st, _ = zone.State()
	require.Equal(climate.PresetNone, st.Preset)
}

func TestZoneTemperature(t *testing.T) {

	require := require.New(t)

	bus := newTestBus(OperationModeCold, 1)
	_, zone := buildClimates(t, bus)

	require.ErrorIs(zone.SetTemperature(testContext(), 14.9), climate.ErrRange)
	require.ErrorIs(zone.SetTemperature(testContext(), 30.5), climate.ErrRange)
	require.Empty(bus.writeLog())

	require.NoError(zone.SetTemperature(testContext(), 23.46))
	st, _ := zone.State()
	require.Equal(23.5, *st.TargetTemperature)
	require.Equal(20.0, *st.CurrentTemperature)
	require.Equal(15.0, st.MinTemp)
	require.Equal(30.0, st.MaxTemp)
}
