package cloud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
)

// ID is an installation or device identifier. The cloud answers with
// strings but older firmware sends plain numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// Mode is the native operation mode of a cloud device.
type Mode int

const (
	ModeStop Mode = 1
	ModeCool Mode = 2
	ModeHeat Mode = 3
	ModeFan  Mode = 4
	ModeDry  Mode = 5
	ModeAuto Mode = 7
)

var modeTable = []struct {
	native    Mode
	canonical climate.HVACMode
}{
	{ModeStop, climate.HVACModeOff},
	{ModeAuto, climate.HVACModeAuto},
	{ModeCool, climate.HVACModeCool},
	{ModeHeat, climate.HVACModeHeat},
	{ModeFan, climate.HVACModeFanOnly},
	{ModeDry, climate.HVACModeDry},
}

func (m Mode) HVACMode() (climate.HVACMode, error) {
	for _, e := range modeTable {
		if e.native == m {
			return e.canonical, nil
		}
	}
	return "", fmt.Errorf("%w: cloud mode %d", climate.ErrUnknownMode, int(m))
}

func nativeMode(mode climate.HVACMode) (Mode, error) {
	for _, e := range modeTable {
		if e.canonical == mode && e.native != ModeStop {
			return e.native, nil
		}
	}
	return 0, fmt.Errorf("%w: hvac mode %q on cloud device", climate.ErrUnsupportedOperation, mode)
}

type temperature struct {
	Celsius    *float64 `json:"celsius"`
	Fahrenheit *float64 `json:"fah"`
}

func (t *temperature) celsius() *float64 {
	if t == nil {
		return nil
	}
	return t.Celsius
}

type rawStatus struct {
	Name            string       `json:"name"`
	IsConnected     *bool        `json:"is_connected"`
	Power           *bool        `json:"power"`
	Mode            *int         `json:"mode"`
	ModeAvailable   []int        `json:"mode_available"`
	SetpointAirCool *temperature `json:"setpoint_air_cool"`
	SetpointAirHeat *temperature `json:"setpoint_air_heat"`
	SetpointAirAuto *temperature `json:"setpoint_air_auto"`
	LocalTemp       *temperature `json:"local_temp"`
	RangeAirMin     *temperature `json:"range_air_min"`
	RangeAirMax     *temperature `json:"range_air_max"`
	SpeedValues     []int        `json:"speed_values"`
	PSpeed          *int         `json:"pspeed"`
}

// Status is one device snapshot. Values the document did not carry are
// nil.
type Status struct {
	Name          string
	Connected     bool
	Power         bool
	Mode          Mode
	ModeAvailable []Mode
	SetpointCool  *float64
	SetpointHeat  *float64
	SetpointAuto  *float64
	LocalTemp     *float64
	RangeMin      *float64
	RangeMax      *float64
	SpeedValues   []int
	PSpeed        *int
}

func parseStatus(data []byte) (*Status, error) {
	var raw rawStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: device status: %v", climate.ErrParse, err)
	}
	var missing []string
	if raw.Power == nil {
		missing = append(missing, "power")
	}
	if raw.Mode == nil {
		missing = append(missing, "mode")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: device status missing %s", climate.ErrParse, strings.Join(missing, ", "))
	}
	st := &Status{
		Name:         raw.Name,
		Connected:    raw.IsConnected == nil || *raw.IsConnected,
		Power:        *raw.Power,
		Mode:         Mode(*raw.Mode),
		SetpointCool: raw.SetpointAirCool.celsius(),
		SetpointHeat: raw.SetpointAirHeat.celsius(),
		SetpointAuto: raw.SetpointAirAuto.celsius(),
		LocalTemp:    raw.LocalTemp.celsius(),
		RangeMin:     raw.RangeAirMin.celsius(),
		RangeMax:     raw.RangeAirMax.celsius(),
		SpeedValues:  raw.SpeedValues,
		PSpeed:       raw.PSpeed,
	}
	for _, m := range raw.ModeAvailable {
		st.ModeAvailable = append(st.ModeAvailable, Mode(m))
	}
	return st, nil
}

// Setpoint returns the setpoint of the active mode, nil for modes without
// one.
func (s *Status) Setpoint() *float64 {
	switch s.Mode {
	case ModeCool:
		return s.SetpointCool
	case ModeHeat:
		return s.SetpointHeat
	case ModeAuto:
		return s.SetpointAuto
	}
	return nil
}

// SpeedSteps counts the selectable speeds, auto excluded.
func (s *Status) SpeedSteps() int {
	steps := 0
	for _, v := range s.SpeedValues {
		if v > 0 {
			steps++
		}
	}
	return steps
}

func (s *Status) String() string {
	f := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f", *v)
	}
	speed := "-"
	if s.PSpeed != nil {
		speed = fmt.Sprintf("%d", *s.PSpeed)
	}
	return fmt.Sprintf("power=%t mode=%d setpoint=%s temp=%s pspeed=%s", s.Power, s.Mode, f(s.Setpoint()), f(s.LocalTemp), speed)
}
