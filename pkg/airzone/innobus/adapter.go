package innobus

import (
	"context"
	"fmt"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"go.uber.org/zap"
)

var (
	machineHVACModes = []climate.HVACMode{climate.HVACModeOff, climate.HVACModeHeat, climate.HVACModeCool, climate.HVACModeFanOnly}
	machinePresets   = []climate.Preset{climate.PresetAir, climate.PresetFloor, climate.PresetCombined}
	zoneHVACModes    = []climate.HVACMode{climate.HVACModeOff, climate.HVACModeHeatCool, climate.HVACModeAuto}
	zonePresets      = []climate.Preset{climate.PresetNone, climate.PresetSleep}
	zoneFanModes     = []climate.FanMode{climate.FanAuto, climate.FanLow, climate.FanMedium, climate.FanHigh}
)

// NewClimates builds the machine climate followed by one climate per
// discovered zone, all reading the same client snapshot.
func NewClimates(client *Client, logger *zap.Logger) []*climate.Climate {
	machine := &MachineView{client: client, defaultHeat: OperationModeHot}
	climates := []*climate.Climate{
		climate.New(machine.UniqueID(), fmt.Sprintf("Airzone Machine %d", client.MachineID()), machine, logger),
	}
	for _, zoneID := range client.ZoneIDs() {
		zone := &ZoneView{client: client, zoneID: zoneID}
		climates = append(climates,
			climate.New(zone.UniqueID(), fmt.Sprintf("Airzone Zone %d", zoneID), zone, logger))
	}
	return climates
}

func machineMode(mode OperationMode) (climate.HVACMode, error) {
	switch mode {
	case OperationModeHot, OperationModeHotAir, OperationModeHotPlus:
		return climate.HVACModeHeat, nil
	case OperationModeCold:
		return climate.HVACModeCool, nil
	case OperationModeAir:
		return climate.HVACModeFanOnly, nil
	case OperationModeStop:
		return climate.HVACModeOff, nil
	}
	return "", fmt.Errorf("%w: innobus operation mode %s", climate.ErrUnknownMode, mode)
}

func heatPreset(mode OperationMode) climate.Preset {
	switch mode {
	case OperationModeHotAir:
		return climate.PresetAir
	case OperationModeHotPlus:
		return climate.PresetCombined
	case OperationModeHot:
		return climate.PresetFloor
	}
	return climate.PresetNone
}

func presetOperationMode(preset climate.Preset) (OperationMode, bool) {
	switch preset {
	case climate.PresetAir:
		return OperationModeHotAir, true
	case climate.PresetCombined:
		return OperationModeHotPlus, true
	case climate.PresetFloor:
		return OperationModeHot, true
	}
	return 0, false
}

// MachineView exposes the machine operation mode and its heat source.
type MachineView struct {
	client      *Client
	defaultHeat OperationMode
}

func (v *MachineView) UniqueID() string {
	return fmt.Sprintf("innobus_m%d", v.client.MachineID())
}

func (v *MachineView) Refresh(ctx context.Context) error {
	_, err := v.client.FetchStatus(ctx)
	return err
}

func (v *MachineView) State() (climate.State, error) {
	st, err := v.client.currentStatus()
	if err != nil {
		return climate.State{}, err
	}
	mode, err := machineMode(st.Mode)
	if err != nil {
		return climate.State{}, err
	}
	action := climate.HVACActionOff
	switch mode {
	case climate.HVACModeHeat:
		action = climate.HVACActionHeating
	case climate.HVACModeCool:
		action = climate.HVACActionCooling
	case climate.HVACModeFanOnly:
		action = climate.HVACActionFan
	}
	return climate.State{
		On:         mode != climate.HVACModeOff,
		HVACMode:   mode,
		HVACAction: action,
		Preset:     heatPreset(st.Mode),
		Unit:       climate.Celsius,
		Attributes: map[string]any{
			"operation_mode": st.Mode.String(),
			"zones":          len(st.Zones),
		},
	}, nil
}

func (v *MachineView) HVACModes() []climate.HVACMode {
	return machineHVACModes
}

// SetHVACMode keeps the current heat source when switching to heat and
// falls back to the default one when the machine is not heating.
func (v *MachineView) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	var target OperationMode
	switch mode {
	case climate.HVACModeOff:
		target = OperationModeStop
	case climate.HVACModeCool:
		target = OperationModeCold
	case climate.HVACModeFanOnly:
		target = OperationModeAir
	case climate.HVACModeHeat:
		target = v.defaultHeat
		if st := v.client.Status(); st != nil {
			if current, ok := presetOperationMode(heatPreset(st.Mode)); ok {
				target = current
			}
		}
	default:
		return fmt.Errorf("%w: hvac mode %q on innobus machine", climate.ErrUnsupportedOperation, mode)
	}
	return v.client.SetOperationMode(ctx, target)
}

func (v *MachineView) PresetModes() []climate.Preset {
	return machinePresets
}

// SetPreset switches the heat source. Outside heat it does nothing.
func (v *MachineView) SetPreset(ctx context.Context, preset climate.Preset) error {
	target, ok := presetOperationMode(preset)
	if !ok {
		return fmt.Errorf("%w: preset %q on innobus machine", climate.ErrUnsupportedOperation, preset)
	}
	st, err := v.client.currentStatus()
	if err != nil {
		return err
	}
	if mode, err := machineMode(st.Mode); err != nil || mode != climate.HVACModeHeat {
		return nil
	}
	if st.Mode == target {
		return nil
	}
	return v.client.SetOperationMode(ctx, target)
}

// ZoneView exposes one zone of the machine.
type ZoneView struct {
	client *Client
	zoneID int
}

func (v *ZoneView) UniqueID() string {
	return fmt.Sprintf("innobus_m%d_z%d", v.client.MachineID(), v.zoneID)
}

func (v *ZoneView) Refresh(ctx context.Context) error {
	_, err := v.client.FetchStatus(ctx)
	return err
}

func (v *ZoneView) zone() (*Status, ZoneStatus, error) {
	st, err := v.client.currentStatus()
	if err != nil {
		return nil, ZoneStatus{}, err
	}
	zone, ok := st.Zone(v.zoneID)
	if !ok {
		return nil, ZoneStatus{}, fmt.Errorf("%w: zone %d missing from status", climate.ErrParse, v.zoneID)
	}
	return st, zone, nil
}

func (v *ZoneView) State() (climate.State, error) {
	st, zone, err := v.zone()
	if err != nil {
		return climate.State{}, err
	}
	fan, err := zoneFanMode(zone.FanSpeed)
	if err != nil {
		return climate.State{}, err
	}
	preset := climate.PresetNone
	if zone.Flags.Sleep() {
		preset = climate.PresetSleep
	}
	return climate.State{
		On:                 zone.Flags.TactoOn(),
		HVACMode:           zoneMode(zone.Flags),
		HVACAction:         zoneAction(st.Mode, zone.Flags),
		Preset:             preset,
		FanMode:            fan,
		CurrentTemperature: climate.Float(zone.LocalTemperature),
		TargetTemperature:  climate.Float(zone.Setpoint),
		MinTemp:            zone.MinSetpoint,
		MaxTemp:            zone.MaxSetpoint,
		Unit:               climate.Celsius,
		Attributes:         zoneAttributes(zone),
	}, nil
}

func zoneMode(flags ZoneFlags) climate.HVACMode {
	switch {
	case flags.TactoOn() && flags.Automatic():
		return climate.HVACModeAuto
	case flags.TactoOn():
		return climate.HVACModeHeatCool
	}
	return climate.HVACModeOff
}

// zoneAction derives the running operation. The order of the checks
// decides the outcome and must not change.
func zoneAction(machine OperationMode, flags ZoneFlags) climate.HVACAction {
	if flags.FloorActive() {
		return climate.HVACActionHeating
	}
	if flags.RequestingAir() {
		if machine == OperationModeHotAir {
			return climate.HVACActionHeating
		}
		return climate.HVACActionCooling
	}
	if machine == OperationModeStop {
		return climate.HVACActionOff
	}
	return climate.HVACActionIdle
}

func zoneAttributes(zone ZoneStatus) map[string]any {
	return map[string]any{
		"is_zone_grid_opened":     zone.Flags.GridOpened(),
		"is_grid_motor_active":    zone.Flags.GridMotorActive(),
		"is_grid_motor_requested": zone.Flags.GridMotorRequested(),
		"is_floor_active":         zone.Flags.FloorActive(),
		"local_module_fancoil":    zone.Flags.LocalFancoil(),
		"is_requesting_air":       zone.Flags.RequestingAir(),
		"is_occupied":             zone.Flags.Occupied(),
		"is_window_opened":        zone.Flags.WindowOpened(),
		"fancoil_speed":           uint16(zone.FanSpeed),
		"proportional_aperture":   zone.Aperture,
		"is_tacto_connected":      zone.Flags.TactoConnected(),
		"is_automatic_mode":       zone.Flags.Automatic(),
		"is_tacto_on":             zone.Flags.TactoOn(),
		"dif_current_temp":        climate.RoundTemperature(zone.LocalTemperature - zone.Setpoint),
	}
}

func zoneFanMode(speed FancoilSpeed) (climate.FanMode, error) {
	switch speed {
	case FancoilSpeedAuto:
		return climate.FanAuto, nil
	case FancoilSpeed1:
		return climate.FanLow, nil
	case FancoilSpeed2:
		return climate.FanMedium, nil
	case FancoilSpeed3:
		return climate.FanHigh, nil
	}
	return "", fmt.Errorf("%w: innobus fancoil speed %d", climate.ErrUnknownMode, speed)
}

func (v *ZoneView) TurnOn(ctx context.Context) error {
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{On: ptr(true)})
}

func (v *ZoneView) TurnOff(ctx context.Context) error {
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{On: ptr(false)})
}

func (v *ZoneView) HVACModes() []climate.HVACMode {
	return zoneHVACModes
}

// SetHVACMode writes the automatic flag before switching the zone on.
func (v *ZoneView) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	var cmd ZoneCommand
	switch mode {
	case climate.HVACModeOff:
		cmd.On = ptr(false)
	case climate.HVACModeHeatCool:
		cmd.Automatic, cmd.On = ptr(false), ptr(true)
	case climate.HVACModeAuto:
		cmd.Automatic, cmd.On = ptr(true), ptr(true)
	default:
		return fmt.Errorf("%w: hvac mode %q on innobus zone", climate.ErrUnsupportedOperation, mode)
	}
	return v.client.SetZone(ctx, v.zoneID, cmd)
}

func (v *ZoneView) FanModes() []climate.FanMode {
	return zoneFanModes
}

func (v *ZoneView) SetFanMode(ctx context.Context, mode climate.FanMode) error {
	var speed FancoilSpeed
	switch mode {
	case climate.FanAuto:
		speed = FancoilSpeedAuto
	case climate.FanLow:
		speed = FancoilSpeed1
	case climate.FanMedium:
		speed = FancoilSpeed2
	case climate.FanHigh:
		speed = FancoilSpeed3
	default:
		return fmt.Errorf("%w: fan mode %q on innobus zone", climate.ErrUnsupportedOperation, mode)
	}
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{FanSpeed: &speed})
}

func (v *ZoneView) PresetModes() []climate.Preset {
	return zonePresets
}

func (v *ZoneView) SetPreset(ctx context.Context, preset climate.Preset) error {
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{Sleep: ptr(preset == climate.PresetSleep)})
}

func (v *ZoneView) TemperatureRange() (float64, float64, error) {
	_, zone, err := v.zone()
	if err != nil {
		return 0, 0, err
	}
	return zone.MinSetpoint, zone.MaxSetpoint, nil
}

func (v *ZoneView) SetTargetTemperature(ctx context.Context, value float64) error {
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{Setpoint: &value})
}

func ptr[T any](v T) *T {
	return &v
}
