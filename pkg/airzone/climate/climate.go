package climate

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// View is the backend strategy behind a Climate. It must at least read
// state; every other control is optional and discovered by type assertion.
type View interface {
	Refresh(ctx context.Context) error
	State() (State, error)
}

type PowerControl interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

type ModeControl interface {
	HVACModes() []HVACMode
	SetHVACMode(ctx context.Context, mode HVACMode) error
}

type FanControl interface {
	FanModes() []FanMode
	SetFanMode(ctx context.Context, mode FanMode) error
}

type PresetControl interface {
	PresetModes() []Preset
	SetPreset(ctx context.Context, preset Preset) error
}

type TemperatureControl interface {
	TemperatureRange() (float64, float64, error)
	SetTargetTemperature(ctx context.Context, value float64) error
}

// Climate is the single adapter type exposed to callers. Commands are
// validated here before the view touches its transport.
type Climate struct {
	uniqueID string
	name     string
	view     View
	caps     Capability
	logger   *zap.Logger
}

func New(uniqueID string, name string, view View, logger *zap.Logger) *Climate {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Climate{
		uniqueID: uniqueID,
		name:     name,
		view:     view,
		logger:   logger.With(zap.String("climate", uniqueID)),
	}
	if _, ok := view.(PowerControl); ok {
		c.caps |= CapPower
	}
	if _, ok := view.(ModeControl); ok {
		c.caps |= CapMode
	}
	if _, ok := view.(FanControl); ok {
		c.caps |= CapFan
	}
	if _, ok := view.(PresetControl); ok {
		c.caps |= CapPreset
	}
	if _, ok := view.(TemperatureControl); ok {
		c.caps |= CapTemperature
	}
	return c
}

func (c *Climate) UniqueID() string {
	return c.uniqueID
}

func (c *Climate) Name() string {
	return c.name
}

func (c *Climate) Capabilities() Capability {
	return c.caps
}

func (c *Climate) Refresh(ctx context.Context) error {
	return c.view.Refresh(ctx)
}

func (c *Climate) State() (State, error) {
	return c.view.State()
}

func (c *Climate) HVACModes() []HVACMode {
	if m, ok := c.view.(ModeControl); ok {
		return m.HVACModes()
	}
	return nil
}

func (c *Climate) FanModes() []FanMode {
	if f, ok := c.view.(FanControl); ok {
		return f.FanModes()
	}
	return nil
}

func (c *Climate) PresetModes() []Preset {
	if p, ok := c.view.(PresetControl); ok {
		return p.PresetModes()
	}
	return []Preset{}
}

func (c *Climate) TurnOn(ctx context.Context) error {
	p, ok := c.view.(PowerControl)
	if !ok {
		return c.unsupported("turn_on")
	}
	c.logger.Debug("climate@cmd turn_on")
	return p.TurnOn(ctx)
}

func (c *Climate) TurnOff(ctx context.Context) error {
	p, ok := c.view.(PowerControl)
	if !ok {
		return c.unsupported("turn_off")
	}
	c.logger.Debug("climate@cmd turn_off")
	return p.TurnOff(ctx)
}

func (c *Climate) SetHVACMode(ctx context.Context, mode HVACMode) error {
	m, ok := c.view.(ModeControl)
	if !ok {
		return c.unsupported("set_hvac_mode")
	}
	if !containsMode(m.HVACModes(), mode) {
		return fmt.Errorf("%w: hvac mode %q on %s", ErrUnsupportedOperation, mode, c.uniqueID)
	}
	c.logger.Debug("climate@cmd set_hvac_mode", zap.String("mode", string(mode)))
	return m.SetHVACMode(ctx, mode)
}

func (c *Climate) SetFanMode(ctx context.Context, mode FanMode) error {
	f, ok := c.view.(FanControl)
	if !ok {
		return c.unsupported("set_fan_mode")
	}
	if !containsFan(f.FanModes(), mode) {
		return fmt.Errorf("%w: fan mode %q on %s", ErrUnsupportedOperation, mode, c.uniqueID)
	}
	c.logger.Debug("climate@cmd set_fan_mode", zap.String("fan_mode", string(mode)))
	return f.SetFanMode(ctx, mode)
}

func (c *Climate) SetPreset(ctx context.Context, preset Preset) error {
	p, ok := c.view.(PresetControl)
	if !ok {
		return c.unsupported("set_preset_mode")
	}
	if !containsPreset(p.PresetModes(), preset) {
		return fmt.Errorf("%w: preset %q on %s", ErrUnsupportedOperation, preset, c.uniqueID)
	}
	c.logger.Debug("climate@cmd set_preset_mode", zap.String("preset", string(preset)))
	return p.SetPreset(ctx, preset)
}

// SetTemperature checks value against the backend range and sends it
// rounded to one decimal place.
func (c *Climate) SetTemperature(ctx context.Context, value float64) error {
	t, ok := c.view.(TemperatureControl)
	if !ok {
		return c.unsupported("set_temperature")
	}
	lo, hi, err := t.TemperatureRange()
	if err != nil {
		return err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < lo || value > hi {
		return fmt.Errorf("%w: temperature %.2f not in [%.1f, %.1f]", ErrRange, value, lo, hi)
	}
	value = RoundTemperature(value)
	c.logger.Debug("climate@cmd set_temperature", zap.Float64("temperature", value))
	return t.SetTargetTemperature(ctx, value)
}

func (c *Climate) unsupported(op string) error {
	return fmt.Errorf("%w: %s on %s (capabilities: %s)", ErrUnsupportedOperation, op, c.uniqueID, c.caps)
}
