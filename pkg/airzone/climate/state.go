package climate

import "math"

// State is the canonical, read-only view of a climate entity computed from
// one backend status snapshot.
type State struct {
	On                 bool            `json:"on"`
	HVACMode           HVACMode        `json:"hvac_mode"`
	HVACAction         HVACAction      `json:"hvac_action,omitempty"`
	Preset             Preset          `json:"preset_mode,omitempty"`
	FanMode            FanMode         `json:"fan_mode,omitempty"`
	CurrentTemperature *float64        `json:"current_temperature,omitempty"`
	TargetTemperature  *float64        `json:"temperature,omitempty"`
	MinTemp            float64         `json:"min_temp"`
	MaxTemp            float64         `json:"max_temp"`
	Unit               TemperatureUnit `json:"temperature_unit"`
	Attributes         map[string]any  `json:"attributes,omitempty"`
}

func Float(v float64) *float64 {
	return &v
}

// RoundTemperature rounds to one decimal place.
func RoundTemperature(v float64) float64 {
	return math.Round(v*10) / 10
}
