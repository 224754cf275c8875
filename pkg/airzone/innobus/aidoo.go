package innobus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"go.uber.org/zap"
)

// Holding register map of an Aidoo unit behind the bus gateway. The unit
// id is the device id.
const (
	REG_AIDOO_POWER       = 0
	REG_AIDOO_MODE        = 1
	REG_AIDOO_SPEED       = 2 // 0 auto, else 1..100 split in SpeedSteps bands
	REG_AIDOO_SETPOINT    = 3
	REG_AIDOO_LOCAL_TEMP  = 4
	REG_AIDOO_SPEED_STEPS = 5
	AIDOO_READ_LEN        = 6

	AIDOO_MIN_TEMP = 17
	AIDOO_MAX_TEMP = 35
)

type AidooMode uint16

const (
	AidooModeAuto AidooMode = 0
	AidooModeCool AidooMode = 1
	AidooModeHeat AidooMode = 2
	AidooModeFan  AidooMode = 3
	AidooModeDry  AidooMode = 4
)

func (m AidooMode) String() string {
	switch m {
	case AidooModeAuto:
		return "AUTO"
	case AidooModeCool:
		return "COOLING"
	case AidooModeHeat:
		return "HEATING"
	case AidooModeFan:
		return "VENTILATION"
	case AidooModeDry:
		return "DRY"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(m))
	}
}

func (m AidooMode) HVACMode() (climate.HVACMode, error) {
	switch m {
	case AidooModeAuto:
		return climate.HVACModeAuto, nil
	case AidooModeCool:
		return climate.HVACModeCool, nil
	case AidooModeHeat:
		return climate.HVACModeHeat, nil
	case AidooModeFan:
		return climate.HVACModeFanOnly, nil
	case AidooModeDry:
		return climate.HVACModeDry, nil
	}
	return "", fmt.Errorf("%w: aidoo mode %s", climate.ErrUnknownMode, m)
}

func aidooNativeMode(mode climate.HVACMode) (AidooMode, error) {
	switch mode {
	case climate.HVACModeAuto:
		return AidooModeAuto, nil
	case climate.HVACModeCool:
		return AidooModeCool, nil
	case climate.HVACModeHeat:
		return AidooModeHeat, nil
	case climate.HVACModeFanOnly:
		return AidooModeFan, nil
	case climate.HVACModeDry:
		return AidooModeDry, nil
	}
	return 0, fmt.Errorf("%w: hvac mode %q on aidoo", climate.ErrUnsupportedOperation, mode)
}

// AidooStatus is one snapshot of the unit registers.
type AidooStatus struct {
	DeviceID         int
	Power            bool
	Mode             AidooMode
	Speed            uint16
	Setpoint         float64
	LocalTemperature float64
	SpeedSteps       int
}

func (s *AidooStatus) String() string {
	return fmt.Sprintf("aidoo %d power=%t mode=%s speed=%d/%d sp=%.1f temp=%.1f",
		s.DeviceID, s.Power, s.Mode, s.Speed, s.SpeedSteps, s.Setpoint, s.LocalTemperature)
}

func parseAidoo(deviceID int, regs []uint16) *AidooStatus {
	return &AidooStatus{
		DeviceID:         deviceID,
		Power:            regs[REG_AIDOO_POWER] != 0,
		Mode:             AidooMode(regs[REG_AIDOO_MODE]),
		Speed:            regs[REG_AIDOO_SPEED],
		Setpoint:         decodeTemp(regs[REG_AIDOO_SETPOINT]),
		LocalTemperature: decodeTemp(regs[REG_AIDOO_LOCAL_TEMP]),
		SpeedSteps:       int(regs[REG_AIDOO_SPEED_STEPS]),
	}
}

// AidooCommand holds the fields to change; power is written first.
type AidooCommand struct {
	On       *bool
	Mode     *AidooMode
	Speed    *uint16
	Setpoint *float64
}

// AidooClient talks to a single Aidoo unit through the same gateway and
// register helpers as the Innobus machine client.
type AidooClient struct {
	ModbusClient

	deviceID int
	logger   *zap.Logger

	mu     sync.Mutex
	status atomic.Pointer[AidooStatus]
}

func NewAidooClient(cfg Config, logger *zap.Logger, instruments ...transport.Instrument) (*AidooClient, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("%w: aidoo requires host and port", climate.ErrConfiguration)
	}
	if cfg.MachineID == 0 {
		return nil, fmt.Errorf("%w: aidoo requires a device id", climate.ErrConfiguration)
	}
	bus, err := newModbusBus(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", "aidoo"), zap.Uint8("device", cfg.MachineID))
	inst := append([]transport.Instrument{traceLoggerInstrumentation(logger)}, instruments...)
	return newAidooClient(bus, int(cfg.MachineID), logger, inst), nil
}

func newAidooClient(bus registerBus, deviceID int, logger *zap.Logger, instruments []transport.Instrument) *AidooClient {
	return &AidooClient{
		ModbusClient: ModbusClient{
			bus:        bus,
			instrument: instruments,
		},
		deviceID: deviceID,
		logger:   logger,
	}
}

// Open connects to the gateway and fetches the first snapshot. A unit
// without speed steps is rejected.
func (c *AidooClient) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bus.Open(); err != nil {
		return fmt.Errorf("%w: open gateway: %v", climate.ErrTransport, err)
	}
	st, err := c.fetchLocked(ctx)
	if err != nil {
		return err
	}
	if st.SpeedSteps < 1 {
		return fmt.Errorf("%w: aidoo %d reports %d speed steps", climate.ErrConfiguration, c.deviceID, st.SpeedSteps)
	}
	c.logger.Info("aidoo unit discovered", zap.Int("speed_steps", st.SpeedSteps))
	return nil
}

func (c *AidooClient) Close() error {
	return c.bus.Close()
}

func (c *AidooClient) DeviceID() int {
	return c.deviceID
}

// Status returns the latest published snapshot, nil before the first fetch.
func (c *AidooClient) Status() *AidooStatus {
	return c.status.Load()
}

func (c *AidooClient) FetchStatus(ctx context.Context) (*AidooStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(ctx)
}

func (c *AidooClient) Set(ctx context.Context, cmd AidooCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	writes := []struct {
		name  string
		apply func() error
	}{
		{"power", func() error {
			if cmd.On == nil {
				return nil
			}
			return c.writeBool(REG_AIDOO_POWER, *cmd.On)
		}},
		{"mode", func() error {
			if cmd.Mode == nil {
				return nil
			}
			return c.writeRegister(REG_AIDOO_MODE, uint16(*cmd.Mode))
		}},
		{"speed", func() error {
			if cmd.Speed == nil {
				return nil
			}
			return c.writeRegister(REG_AIDOO_SPEED, *cmd.Speed)
		}},
		{"setpoint", func() error {
			if cmd.Setpoint == nil {
				return nil
			}
			return c.writeRegister(REG_AIDOO_SETPOINT, encodeTemp(*cmd.Setpoint))
		}},
	}
	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.apply(); err != nil {
			return fmt.Errorf("%w: write aidoo %d %s: %v", climate.ErrTransport, c.deviceID, w.name, err)
		}
	}
	_, err := c.fetchLocked(ctx)
	return err
}

func (c *AidooClient) fetchLocked(ctx context.Context) (*AidooStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	regs, err := c.readRegisters(REG_AIDOO_POWER, AIDOO_READ_LEN)
	if err != nil {
		return nil, fmt.Errorf("%w: read aidoo %d: %v", climate.ErrTransport, c.deviceID, err)
	}
	if len(regs) < AIDOO_READ_LEN {
		return nil, fmt.Errorf("%w: aidoo %d: short read (%d registers)", climate.ErrParse, c.deviceID, len(regs))
	}
	status := parseAidoo(c.deviceID, regs)
	c.status.Store(status)
	c.logger.Debug("aidoo status", zap.Stringer("status", status))
	return status, nil
}

var aidooHVACModes = []climate.HVACMode{climate.HVACModeOff, climate.HVACModeAuto, climate.HVACModeCool,
	climate.HVACModeHeat, climate.HVACModeFanOnly, climate.HVACModeDry}

// NewAidooClimate builds the climate of an opened unit. The speed scale is
// read once from the current status.
func NewAidooClimate(client *AidooClient, logger *zap.Logger) (*climate.Climate, error) {
	st := client.Status()
	if st == nil {
		return nil, errNoStatus
	}
	scale, err := climate.NewSpeedScale(st.SpeedSteps)
	if err != nil {
		return nil, err
	}
	view := &AidooView{client: client, scale: scale}
	return climate.New(view.UniqueID(), fmt.Sprintf("Aidoo %d", client.DeviceID()), view, logger), nil
}

// AidooView drives a single Aidoo unit: power, mode, numeric fan and
// temperature.
type AidooView struct {
	client *AidooClient
	scale  climate.SpeedScale
}

func (v *AidooView) UniqueID() string {
	return fmt.Sprintf("aidoo_m%d", v.client.DeviceID())
}

func (v *AidooView) Refresh(ctx context.Context) error {
	_, err := v.client.FetchStatus(ctx)
	return err
}

func (v *AidooView) status() (*AidooStatus, error) {
	st := v.client.Status()
	if st == nil {
		return nil, errNoStatus
	}
	return st, nil
}

func (v *AidooView) State() (climate.State, error) {
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
	return climate.State{
		On:                 st.Power,
		HVACMode:           mode,
		HVACAction:         aidooAction(mode),
		FanMode:            climate.LevelFanMode(v.scale.FromNative(int(st.Speed))),
		CurrentTemperature: climate.Float(st.LocalTemperature),
		TargetTemperature:  climate.Float(st.Setpoint),
		MinTemp:            AIDOO_MIN_TEMP,
		MaxTemp:            AIDOO_MAX_TEMP,
		Unit:               climate.Celsius,
		Attributes: map[string]any{
			"operation_mode": st.Mode.String(),
			"speed_steps":    st.SpeedSteps,
		},
	}, nil
}

func aidooAction(mode climate.HVACMode) climate.HVACAction {
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

func (v *AidooView) TurnOn(ctx context.Context) error {
	return v.client.Set(ctx, AidooCommand{On: ptr(true)})
}

func (v *AidooView) TurnOff(ctx context.Context) error {
	return v.client.Set(ctx, AidooCommand{On: ptr(false)})
}

func (v *AidooView) HVACModes() []climate.HVACMode {
	return aidooHVACModes
}

// SetHVACMode switches the unit on in the same write batch when it is off.
func (v *AidooView) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	if mode == climate.HVACModeOff {
		return v.TurnOff(ctx)
	}
	native, err := aidooNativeMode(mode)
	if err != nil {
		return err
	}
	cmd := AidooCommand{Mode: &native}
	if st := v.client.Status(); st == nil || !st.Power {
		cmd.On = ptr(true)
	}
	return v.client.Set(ctx, cmd)
}

func (v *AidooView) FanModes() []climate.FanMode {
	return v.scale.FanModes()
}

func (v *AidooView) SetFanMode(ctx context.Context, mode climate.FanMode) error {
	level, err := climate.ParseLevel(mode, v.scale.Steps)
	if err != nil {
		return err
	}
	speed := uint16(v.scale.ToNative(level))
	return v.client.Set(ctx, AidooCommand{Speed: &speed})
}

func (v *AidooView) TemperatureRange() (float64, float64, error) {
	return AIDOO_MIN_TEMP, AIDOO_MAX_TEMP, nil
}

func (v *AidooView) SetTargetTemperature(ctx context.Context, value float64) error {
	return v.client.Set(ctx, AidooCommand{Setpoint: &value})
}
