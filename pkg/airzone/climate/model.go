package climate

import "fmt"

type HVACMode string

const (
	HVACModeOff      HVACMode = "off"
	HVACModeAuto     HVACMode = "auto"
	HVACModeHeat     HVACMode = "heat"
	HVACModeCool     HVACMode = "cool"
	HVACModeHeatCool HVACMode = "heat_cool"
	HVACModeFanOnly  HVACMode = "fan_only"
	HVACModeDry      HVACMode = "dry"
)

var allHVACModes = []HVACMode{HVACModeOff, HVACModeAuto, HVACModeHeat, HVACModeCool,
	HVACModeHeatCool, HVACModeFanOnly, HVACModeDry}

func ParseHVACMode(s string) (HVACMode, error) {
	for _, m := range allHVACModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: hvac mode %q", ErrUnsupportedOperation, s)
}

// HVACAction is the operation the unit is currently running.
type HVACAction string

const (
	HVACActionOff     HVACAction = "off"
	HVACActionHeating HVACAction = "heating"
	HVACActionCooling HVACAction = "cooling"
	HVACActionIdle    HVACAction = "idle"
	HVACActionFan     HVACAction = "fan"
	HVACActionDrying  HVACAction = "drying"
)

// FanMode is either a named speed (auto, low, medium, high) or the
// decimal representation of a numeric step ("1".."N").
type FanMode string

const (
	FanAuto   FanMode = "auto"
	FanLow    FanMode = "low"
	FanMedium FanMode = "medium"
	FanHigh   FanMode = "high"
)

// Preset is a heating source selector layered on top of heat mode.
type Preset string

const (
	PresetNone     Preset = "none"
	PresetSleep    Preset = "sleep"
	PresetAir      Preset = "air"
	PresetFloor    Preset = "floor"
	PresetCombined Preset = "combined"
)

func ParsePreset(s string) (Preset, error) {
	switch p := Preset(s); p {
	case PresetNone, PresetSleep, PresetAir, PresetFloor, PresetCombined:
		return p, nil
	}
	return "", fmt.Errorf("%w: preset %q", ErrUnsupportedOperation, s)
}

type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"
)

// Capability is a bit set of the controls an adapter exposes.
type Capability uint8

const (
	CapPower Capability = 1 << iota
	CapMode
	CapFan
	CapPreset
	CapTemperature
)

func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	names := []struct {
		cap  Capability
		name string
	}{
		{CapPower, "power"},
		{CapMode, "mode"},
		{CapFan, "fan"},
		{CapPreset, "preset"},
		{CapTemperature, "temperature"},
	}
	s := ""
	for _, n := range names {
		if c.Has(n.cap) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

func containsMode(modes []HVACMode, mode HVACMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

func containsFan(modes []FanMode, mode FanMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

func containsPreset(presets []Preset, preset Preset) bool {
	for _, p := range presets {
		if p == preset {
			return true
		}
	}
	return false
}
