package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"go.uber.org/zap"
)

const (
	DEFAULT_MIN_TEMP = 17
	DEFAULT_MAX_TEMP = 35
)

var deviceHVACModes = []climate.HVACMode{climate.HVACModeOff, climate.HVACModeAuto, climate.HVACModeCool,
	climate.HVACModeHeat, climate.HVACModeFanOnly, climate.HVACModeDry}

// NewClimate builds the climate of the device selected by the client. The
// speed scale is read once from the current status.
func NewClimate(client *Client, logger *zap.Logger) (*climate.Climate, error) {
	st := client.Status()
	if st == nil {
		return nil, fmt.Errorf("%w: no status fetched yet", climate.ErrTransport)
	}
	steps := st.SpeedSteps()
	if steps == 0 {
		steps = DEFAULT_SPEED_STEPS
	}
	scale, err := climate.NewSpeedScale(steps)
	if err != nil {
		return nil, err
	}
	view := &DeviceView{client: client, scale: scale}
	name := st.Name
	if name == "" {
		name = fmt.Sprintf("Aidoo %s", client.DeviceID())
	}
	return climate.New(view.UniqueID(), name, view, logger), nil
}

// DeviceView drives a single cloud device (Aidoo).
type DeviceView struct {
	client *Client
	scale  climate.SpeedScale
}

func (v *DeviceView) UniqueID() string {
	return strings.ToLower(fmt.Sprintf("aidoo_%s_%s", v.client.InstallationID(), v.client.DeviceID()))
}

func (v *DeviceView) Refresh(ctx context.Context) error {
	_, err := v.client.FetchStatus(ctx)
	return err
}

func (v *DeviceView) status() (*Status, error) {
	st := v.client.Status()
	if st == nil {
		return nil, fmt.Errorf("%w: no status fetched yet", climate.ErrTransport)
	}
	return st, nil
}

func (v *DeviceView) State() (climate.State, error) {
	st, err := v.status()
	if err != nil {
		return climate.State{}, err
	}
	native, err := st.Mode.HVACMode()
	if err != nil {
		return climate.State{}, err
	}
	mode := climate.HVACModeOff
	if st.Power {
		mode = native
	}
	lo, hi := v.rangeOf(st)
	state := climate.State{
		On:                 st.Power,
		HVACMode:           mode,
		HVACAction:         deviceAction(mode),
		FanMode:            climate.FanAuto,
		CurrentTemperature: st.LocalTemp,
		MinTemp:            lo,
		MaxTemp:            hi,
		Unit:               climate.Celsius,
		Attributes: map[string]any{
			"connected": st.Connected,
		},
	}
	if st.PSpeed != nil {
		state.FanMode = climate.LevelFanMode(v.scale.FromNative(*st.PSpeed))
	}
	if st.Power {
		state.TargetTemperature = st.Setpoint()
	}
	return state, nil
}

func deviceAction(mode climate.HVACMode) climate.HVACAction {
	switch mode {
	case climate.HVACModeHeat:
		return climate.HVACActionHeating
	case climate.HVACModeCool:
		return climate.HVACActionCooling
	case climate.HVACModeFanOnly:
		return climate.HVACActionFan
	case climate.HVACModeDry:
		return climate.HVACActionDrying
	case climate.HVACModeOff:
		return climate.HVACActionOff
	}
	return climate.HVACActionIdle
}

func (v *DeviceView) rangeOf(st *Status) (float64, float64) {
	lo, hi := float64(DEFAULT_MIN_TEMP), float64(DEFAULT_MAX_TEMP)
	if st.RangeMin != nil {
		lo = *st.RangeMin
	}
	if st.RangeMax != nil {
		hi = *st.RangeMax
	}
	return lo, hi
}

func (v *DeviceView) TurnOn(ctx context.Context) error {
	return v.client.SetPower(ctx, true)
}

func (v *DeviceView) TurnOff(ctx context.Context) error {
	return v.client.SetPower(ctx, false)
}

func (v *DeviceView) HVACModes() []climate.HVACMode {
	return deviceHVACModes
}

// SetHVACMode powers the device on first when it is off.
func (v *DeviceView) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	if mode == climate.HVACModeOff {
		return v.TurnOff(ctx)
	}
	native, err := nativeMode(mode)
	if err != nil {
		return err
	}
	st, err := v.status()
	if err != nil {
		return err
	}
	if !st.Power {
		if err := v.client.SetPower(ctx, true); err != nil {
			return err
		}
	}
	return v.client.SetMode(ctx, native)
}

func (v *DeviceView) FanModes() []climate.FanMode {
	return v.scale.FanModes()
}

func (v *DeviceView) SetFanMode(ctx context.Context, mode climate.FanMode) error {
	level, err := climate.ParseLevel(mode, v.scale.Steps)
	if err != nil {
		return err
	}
	return v.client.SetSpeed(ctx, v.scale.ToNative(level))
}

func (v *DeviceView) TemperatureRange() (float64, float64, error) {
	st, err := v.status()
	if err != nil {
		return 0, 0, err
	}
	lo, hi := v.rangeOf(st)
	return lo, hi, nil
}

// SetTargetTemperature requires the status to carry the setpoint of the
// active mode.
func (v *DeviceView) SetTargetTemperature(ctx context.Context, value float64) error {
	st, err := v.status()
	if err != nil {
		return err
	}
	switch st.Mode {
	case ModeCool, ModeHeat, ModeAuto:
		if st.Setpoint() == nil {
			return fmt.Errorf("%w: device status has no setpoint for mode %d", climate.ErrParse, st.Mode)
		}
	}
	return v.client.SetSetpoint(ctx, value)
}
