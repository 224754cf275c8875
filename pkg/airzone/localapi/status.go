package localapi

import (
	"fmt"
	"strings"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
)

// Mode is the native system mode of the local API.
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
	{ModeCool, climate.HVACModeCool},
	{ModeHeat, climate.HVACModeHeat},
	{ModeFan, climate.HVACModeFanOnly},
	{ModeDry, climate.HVACModeDry},
	{ModeAuto, climate.HVACModeAuto},
}

func (m Mode) HVACMode() (climate.HVACMode, error) {
	for _, e := range modeTable {
		if e.native == m {
			return e.canonical, nil
		}
	}
	return "", fmt.Errorf("%w: local api mode %d", climate.ErrUnknownMode, int(m))
}

func nativeMode(mode climate.HVACMode) (Mode, error) {
	for _, e := range modeTable {
		if e.canonical == mode {
			return e.native, nil
		}
	}
	return 0, fmt.Errorf("%w: hvac mode %q on local api", climate.ErrUnsupportedOperation, mode)
}

type Units int

const (
	UnitsCelsius    Units = 0
	UnitsFahrenheit Units = 1
)

func (u Units) TemperatureUnit() climate.TemperatureUnit {
	if u == UnitsFahrenheit {
		return climate.Fahrenheit
	}
	return climate.Celsius
}

// Zone is one decoded zone document. Fields the device may omit are
// pointers.
type Zone struct {
	SystemID    int
	ZoneID      int
	Name        string
	On          bool
	Mode        Mode
	Modes       []Mode
	Setpoint    float64
	RoomTemp    float64
	MinTemp     float64
	MaxTemp     float64
	Units       Units
	Speed       *int
	Speeds      *int
	AirDemand   *int
	FloorDemand *int
	HeatDemand  *int
	ColdDemand  *int
	Humidity    *float64
}

// rawZone mirrors Zone with every field optional so that missing
// mandatory fields can be told apart from zero values.
type rawZone struct {
	SystemID    *int     `json:"systemID"`
	ZoneID      *int     `json:"zoneID"`
	Name        string   `json:"name"`
	On          *int     `json:"on"`
	Mode        *int     `json:"mode"`
	Modes       []int    `json:"modes"`
	Setpoint    *float64 `json:"setpoint"`
	RoomTemp    *float64 `json:"roomTemp"`
	MinTemp     *float64 `json:"minTemp"`
	MaxTemp     *float64 `json:"maxTemp"`
	Units       *int     `json:"units"`
	Speed       *int     `json:"speed"`
	Speeds      *int     `json:"speeds"`
	AirDemand   *int     `json:"air_demand"`
	FloorDemand *int     `json:"floor_demand"`
	HeatDemand  *int     `json:"heat_demand"`
	ColdDemand  *int     `json:"cold_demand"`
	Humidity    *float64 `json:"humidity"`
}

func (r rawZone) zone() (Zone, error) {
	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check("systemID", r.SystemID != nil)
	check("zoneID", r.ZoneID != nil)
	check("on", r.On != nil)
	check("mode", r.Mode != nil)
	check("setpoint", r.Setpoint != nil)
	check("roomTemp", r.RoomTemp != nil)
	check("minTemp", r.MinTemp != nil)
	check("maxTemp", r.MaxTemp != nil)
	if len(missing) > 0 {
		return Zone{}, fmt.Errorf("%w: zone document missing %s", climate.ErrParse, strings.Join(missing, ", "))
	}

	z := Zone{
		SystemID:    *r.SystemID,
		ZoneID:      *r.ZoneID,
		Name:        r.Name,
		On:          *r.On != 0,
		Mode:        Mode(*r.Mode),
		Setpoint:    *r.Setpoint,
		RoomTemp:    *r.RoomTemp,
		MinTemp:     *r.MinTemp,
		MaxTemp:     *r.MaxTemp,
		Speed:       r.Speed,
		Speeds:      r.Speeds,
		AirDemand:   r.AirDemand,
		FloorDemand: r.FloorDemand,
		HeatDemand:  r.HeatDemand,
		ColdDemand:  r.ColdDemand,
		Humidity:    r.Humidity,
	}
	if r.Units != nil {
		z.Units = Units(*r.Units)
	}
	for _, m := range r.Modes {
		z.Modes = append(z.Modes, Mode(m))
	}
	if z.Name == "" {
		z.Name = fmt.Sprintf("Zone %d", z.ZoneID)
	}
	return z, nil
}

// IsMaster reports whether the zone drives the system mode.
func (z Zone) IsMaster() bool {
	return len(z.Modes) > 0
}

func (z Zone) demand(v *int) bool {
	return v != nil && *v > 0
}

func (z Zone) HVACAction() climate.HVACAction {
	switch {
	case !z.On:
		return climate.HVACActionOff
	case z.demand(z.HeatDemand) || z.demand(z.FloorDemand):
		return climate.HVACActionHeating
	case z.demand(z.ColdDemand):
		return climate.HVACActionCooling
	case z.demand(z.AirDemand):
		if z.Mode == ModeDry {
			return climate.HVACActionDrying
		}
		return climate.HVACActionFan
	}
	return climate.HVACActionIdle
}

// Status is one system-wide snapshot of every zone.
type Status struct {
	SystemID int
	Zones    []Zone
}

func (s *Status) Zone(zoneID int) (Zone, bool) {
	for _, z := range s.Zones {
		if z.ZoneID == zoneID {
			return z, true
		}
	}
	return Zone{}, false
}

// Master returns the zone holding the system mode, the first zone when no
// zone advertises the mode list.
func (s *Status) Master() Zone {
	for _, z := range s.Zones {
		if z.IsMaster() {
			return z
		}
	}
	return s.Zones[0]
}

func (s *Status) String() string {
	zones := make([]string, 0, len(s.Zones))
	for _, z := range s.Zones {
		zones = append(zones, fmt.Sprintf("z%d[on=%t mode=%d sp=%.1f temp=%.1f]", z.ZoneID, z.On, z.Mode, z.Setpoint, z.RoomTemp))
	}
	return fmt.Sprintf("system %d %s", s.SystemID, strings.Join(zones, " "))
}
