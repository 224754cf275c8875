package localapi

import (
	"context"
	"fmt"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"go.uber.org/zap"
)

var zoneHVACModes = []climate.HVACMode{climate.HVACModeOff, climate.HVACModeHeatCool}

// NewClimates builds the adapters of a system: one collapsed climate when
// requested and the system has a single zone, otherwise the machine
// climate followed by one climate per zone.
func NewClimates(client *Client, collapse bool, logger *zap.Logger) ([]*climate.Climate, error) {
	st, err := client.currentStatus()
	if err != nil {
		return nil, err
	}
	if collapse && len(st.Zones) == 1 {
		c, err := NewOneZoneClimate(client, logger)
		if err != nil {
			return nil, err
		}
		return []*climate.Climate{c}, nil
	}

	machine, err := newMachineView(client)
	if err != nil {
		return nil, err
	}
	climates := []*climate.Climate{
		climate.New(machine.UniqueID(), fmt.Sprintf("Airzone System %d", client.SystemID()), machine, logger),
	}
	for _, z := range st.Zones {
		zone := &ZoneView{client: client, zoneID: z.ZoneID}
		climates = append(climates, climate.New(zone.UniqueID(), zoneName(z), zone, logger))
	}
	return climates, nil
}

// NewOneZoneClimate merges system and zone control on the first zone.
func NewOneZoneClimate(client *Client, logger *zap.Logger) (*climate.Climate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := client.currentStatus()
	if err != nil {
		return nil, err
	}
	machine, err := newMachineView(client)
	if err != nil {
		return nil, err
	}
	first := st.Zones[0]
	view := &OneZoneView{
		machine: machine,
		zone:    ZoneView{client: client, zoneID: first.ZoneID},
		logger:  logger,
	}
	view.checkZones(st)
	return climate.New(view.UniqueID(), zoneName(first), view, logger), nil
}

func zoneName(z Zone) string {
	if z.Name == "" {
		return fmt.Sprintf("Zone %d", z.ZoneID)
	}
	return z.Name
}

func systemModes(master Zone) []climate.HVACMode {
	natives := append([]Mode(nil), master.Modes...)
	if len(natives) == 0 {
		for _, e := range modeTable {
			natives = append(natives, e.native)
		}
	}
	natives = append(natives, master.Mode)
	var modes []climate.HVACMode
	seen := map[climate.HVACMode]bool{}
	for _, m := range natives {
		mode, err := m.HVACMode()
		if err != nil || seen[mode] {
			continue
		}
		seen[mode] = true
		modes = append(modes, mode)
	}
	if !seen[climate.HVACModeOff] {
		modes = append([]climate.HVACMode{climate.HVACModeOff}, modes...)
	}
	return modes
}

// MachineView exposes the system mode and fan speed held by the master
// zone. Mode list and speed steps are fixed at construction.
type MachineView struct {
	client *Client
	modes  []climate.HVACMode
	steps  int
}

func newMachineView(client *Client) (*MachineView, error) {
	st, err := client.currentStatus()
	if err != nil {
		return nil, err
	}
	master := st.Master()
	steps := 0
	if master.Speeds != nil {
		steps = *master.Speeds
	}
	return &MachineView{client: client, modes: systemModes(master), steps: steps}, nil
}

func (v *MachineView) UniqueID() string {
	return fmt.Sprintf("localapi_%s_s%d", v.client.Host(), v.client.SystemID())
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
	master := st.Master()
	mode, err := master.Mode.HVACMode()
	if err != nil {
		return climate.State{}, err
	}
	action := climate.HVACActionOff
	if mode != climate.HVACModeOff {
		action = systemAction(st)
	}
	return climate.State{
		On:         mode != climate.HVACModeOff,
		HVACMode:   mode,
		HVACAction: action,
		FanMode:    speedFanMode(master),
		MinTemp:    master.MinTemp,
		MaxTemp:    master.MaxTemp,
		Unit:       master.Units.TemperatureUnit(),
		Attributes: map[string]any{
			"master_zone": master.ZoneID,
			"zones":       len(st.Zones),
		},
	}, nil
}

// systemAction reports the first active demand found across zones.
func systemAction(st *Status) climate.HVACAction {
	action := climate.HVACActionIdle
	for _, z := range st.Zones {
		switch a := z.HVACAction(); a {
		case climate.HVACActionHeating, climate.HVACActionCooling, climate.HVACActionDrying:
			return a
		case climate.HVACActionFan:
			action = a
		}
	}
	return action
}

func speedFanMode(z Zone) climate.FanMode {
	if z.Speed == nil {
		return climate.FanAuto
	}
	return climate.LevelFanMode(*z.Speed)
}

func (v *MachineView) HVACModes() []climate.HVACMode {
	return v.modes
}

func (v *MachineView) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	native, err := nativeMode(mode)
	if err != nil {
		return err
	}
	st, err := v.client.currentStatus()
	if err != nil {
		return err
	}
	return v.client.SetZone(ctx, st.Master().ZoneID, ZoneCommand{Mode: &native})
}

func (v *MachineView) FanModes() []climate.FanMode {
	return climate.StepFanModes(v.steps)
}

func (v *MachineView) SetFanMode(ctx context.Context, mode climate.FanMode) error {
	level, err := climate.ParseLevel(mode, v.steps)
	if err != nil {
		return err
	}
	st, err := v.client.currentStatus()
	if err != nil {
		return err
	}
	return v.client.SetZone(ctx, st.Master().ZoneID, ZoneCommand{Speed: &level})
}

// ZoneView exposes power and setpoint of one zone.
type ZoneView struct {
	client *Client
	zoneID int
}

func (v *ZoneView) UniqueID() string {
	return fmt.Sprintf("localapi_%s_s%d_z%d", v.client.Host(), v.client.SystemID(), v.zoneID)
}

func (v *ZoneView) Refresh(ctx context.Context) error {
	_, err := v.client.FetchStatus(ctx)
	return err
}

func (v *ZoneView) zone() (Zone, error) {
	st, err := v.client.currentStatus()
	if err != nil {
		return Zone{}, err
	}
	z, ok := st.Zone(v.zoneID)
	if !ok {
		return Zone{}, fmt.Errorf("%w: zone %d missing from status", climate.ErrParse, v.zoneID)
	}
	return z, nil
}

func (v *ZoneView) State() (climate.State, error) {
	z, err := v.zone()
	if err != nil {
		return climate.State{}, err
	}
	mode := climate.HVACModeOff
	if z.On {
		mode = climate.HVACModeHeatCool
	}
	return zoneState(z, mode), nil
}

func zoneState(z Zone, mode climate.HVACMode) climate.State {
	attrs := map[string]any{}
	if z.Humidity != nil {
		attrs["humidity"] = *z.Humidity
	}
	for name, v := range map[string]*int{
		"air_demand":   z.AirDemand,
		"floor_demand": z.FloorDemand,
		"heat_demand":  z.HeatDemand,
		"cold_demand":  z.ColdDemand,
	} {
		if v != nil {
			attrs[name] = *v > 0
		}
	}
	return climate.State{
		On:                 z.On,
		HVACMode:           mode,
		HVACAction:         z.HVACAction(),
		CurrentTemperature: climate.Float(z.RoomTemp),
		TargetTemperature:  climate.Float(z.Setpoint),
		MinTemp:            z.MinTemp,
		MaxTemp:            z.MaxTemp,
		Unit:               z.Units.TemperatureUnit(),
		Attributes:         attrs,
	}
}

func (v *ZoneView) TurnOn(ctx context.Context) error {
	on := true
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{On: &on})
}

func (v *ZoneView) TurnOff(ctx context.Context) error {
	on := false
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{On: &on})
}

func (v *ZoneView) HVACModes() []climate.HVACMode {
	return zoneHVACModes
}

func (v *ZoneView) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	switch mode {
	case climate.HVACModeOff:
		return v.TurnOff(ctx)
	case climate.HVACModeHeatCool:
		return v.TurnOn(ctx)
	}
	return fmt.Errorf("%w: hvac mode %q on local api zone", climate.ErrUnsupportedOperation, mode)
}

func (v *ZoneView) TemperatureRange() (float64, float64, error) {
	z, err := v.zone()
	if err != nil {
		return 0, 0, err
	}
	return z.MinTemp, z.MaxTemp, nil
}

func (v *ZoneView) SetTargetTemperature(ctx context.Context, value float64) error {
	return v.client.SetZone(ctx, v.zoneID, ZoneCommand{Setpoint: &value})
}

// OneZoneView is the union of the machine and zone views for a system
// with a single zone. If more zones show up it keeps driving the first.
type OneZoneView struct {
	machine *MachineView
	zone    ZoneView
	logger  *zap.Logger
}

func (v *OneZoneView) UniqueID() string {
	return v.zone.UniqueID()
}

func (v *OneZoneView) checkZones(st *Status) {
	if len(st.Zones) > 1 {
		v.logger.Warn("one zone climate on a multi zone system, only the first zone is used",
			zap.Int("zones", len(st.Zones)), zap.Int("zone", v.zone.zoneID))
	}
}

func (v *OneZoneView) Refresh(ctx context.Context) error {
	st, err := v.zone.client.FetchStatus(ctx)
	if err != nil {
		return err
	}
	v.checkZones(st)
	return nil
}

func (v *OneZoneView) State() (climate.State, error) {
	st, err := v.zone.client.currentStatus()
	if err != nil {
		return climate.State{}, err
	}
	z, ok := st.Zone(v.zone.zoneID)
	if !ok {
		return climate.State{}, fmt.Errorf("%w: zone %d missing from status", climate.ErrParse, v.zone.zoneID)
	}
	mode := climate.HVACModeOff
	if z.On {
		if mode, err = st.Master().Mode.HVACMode(); err != nil {
			return climate.State{}, err
		}
	}
	state := zoneState(z, mode)
	state.FanMode = speedFanMode(z)
	return state, nil
}

func (v *OneZoneView) TurnOn(ctx context.Context) error {
	return v.zone.TurnOn(ctx)
}

func (v *OneZoneView) TurnOff(ctx context.Context) error {
	return v.zone.TurnOff(ctx)
}

func (v *OneZoneView) HVACModes() []climate.HVACMode {
	return v.machine.HVACModes()
}

// SetHVACMode switches the zone off for off, otherwise sets the system
// mode and switches the zone on in the same request.
func (v *OneZoneView) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	if mode == climate.HVACModeOff {
		return v.zone.TurnOff(ctx)
	}
	native, err := nativeMode(mode)
	if err != nil {
		return err
	}
	on := true
	return v.zone.client.SetZone(ctx, v.zone.zoneID, ZoneCommand{On: &on, Mode: &native})
}

func (v *OneZoneView) FanModes() []climate.FanMode {
	return v.machine.FanModes()
}

func (v *OneZoneView) SetFanMode(ctx context.Context, mode climate.FanMode) error {
	level, err := climate.ParseLevel(mode, v.machine.steps)
	if err != nil {
		return err
	}
	return v.zone.client.SetZone(ctx, v.zone.zoneID, ZoneCommand{Speed: &level})
}

func (v *OneZoneView) TemperatureRange() (float64, float64, error) {
	return v.zone.TemperatureRange()
}

func (v *OneZoneView) SetTargetTemperature(ctx context.Context, value float64) error {
	return v.zone.SetTargetTemperature(ctx, value)
}
