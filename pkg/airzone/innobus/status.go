package innobus

import (
	"fmt"
	"strings"
)

type OperationMode uint16

const (
	OperationModeStop    OperationMode = 0
	OperationModeCold    OperationMode = 1
	OperationModeHot     OperationMode = 2
	OperationModeAir     OperationMode = 3
	OperationModeHotAir  OperationMode = 4
	OperationModeHotPlus OperationMode = 5
)

func (m OperationMode) String() string {
	switch m {
	case OperationModeStop:
		return "STOP"
	case OperationModeCold:
		return "COLD"
	case OperationModeHot:
		return "HOT"
	case OperationModeAir:
		return "AIR"
	case OperationModeHotAir:
		return "HOT_AIR"
	case OperationModeHotPlus:
		return "HOTPLUS"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(m))
	}
}

type FancoilSpeed uint16

const (
	FancoilSpeedAuto FancoilSpeed = 0
	FancoilSpeed1    FancoilSpeed = 1
	FancoilSpeed2    FancoilSpeed = 2
	FancoilSpeed3    FancoilSpeed = 3
)

type ZoneFlags uint16

func (f ZoneFlags) has(bit uint16) bool {
	return uint16(f)&bit != 0
}

func (f ZoneFlags) TactoOn() bool            { return f.has(FLAG_TACTO_ON) }
func (f ZoneFlags) Automatic() bool          { return f.has(FLAG_AUTOMATIC) }
func (f ZoneFlags) Sleep() bool              { return f.has(FLAG_SLEEP) }
func (f ZoneFlags) FloorActive() bool        { return f.has(FLAG_FLOOR_ACTIVE) }
func (f ZoneFlags) RequestingAir() bool      { return f.has(FLAG_REQUESTING_AIR) }
func (f ZoneFlags) GridOpened() bool         { return f.has(FLAG_GRID_OPENED) }
func (f ZoneFlags) GridMotorActive() bool    { return f.has(FLAG_GRID_MOTOR_ACTIVE) }
func (f ZoneFlags) GridMotorRequested() bool { return f.has(FLAG_GRID_MOTOR_REQUESTED) }
func (f ZoneFlags) Occupied() bool           { return f.has(FLAG_OCCUPIED) }
func (f ZoneFlags) WindowOpened() bool       { return f.has(FLAG_WINDOW_OPENED) }
func (f ZoneFlags) TactoConnected() bool     { return f.has(FLAG_TACTO_CONNECTED) }
func (f ZoneFlags) LocalFancoil() bool       { return f.has(FLAG_LOCAL_FANCOIL) }

type ZoneStatus struct {
	ZoneID           int
	Flags            ZoneFlags
	Setpoint         float64
	LocalTemperature float64
	FanSpeed         FancoilSpeed
	MinSetpoint      float64
	MaxSetpoint      float64
	Aperture         uint16
}

// Status is one machine-wide snapshot: the machine registers and every
// zone block read in the same fetch. It is never mutated once published.
type Status struct {
	MachineID int
	Mode      OperationMode
	Zones     []ZoneStatus
}

func (s *Status) Zone(zoneID int) (ZoneStatus, bool) {
	for _, z := range s.Zones {
		if z.ZoneID == zoneID {
			return z, true
		}
	}
	return ZoneStatus{}, false
}

func (s *Status) String() string {
	zones := make([]string, 0, len(s.Zones))
	for _, z := range s.Zones {
		zones = append(zones, fmt.Sprintf("z%d[flags=%#04x sp=%.1f temp=%.1f fan=%d]",
			z.ZoneID, uint16(z.Flags), z.Setpoint, z.LocalTemperature, z.FanSpeed))
	}
	return fmt.Sprintf("machine %d mode=%s %s", s.MachineID, s.Mode, strings.Join(zones, " "))
}

func parseZone(zoneID int, regs []uint16) ZoneStatus {
	return ZoneStatus{
		ZoneID:           zoneID,
		Flags:            ZoneFlags(regs[REG_ZONE_FLAGS]),
		Setpoint:         decodeTemp(regs[REG_ZONE_SETPOINT]),
		LocalTemperature: decodeTemp(regs[REG_ZONE_LOCAL_TEMP]),
		FanSpeed:         FancoilSpeed(regs[REG_ZONE_FAN_SPEED]),
		MinSetpoint:      decodeTemp(regs[REG_ZONE_MIN_SP]),
		MaxSetpoint:      decodeTemp(regs[REG_ZONE_MAX_SP]),
		Aperture:         regs[REG_ZONE_APERTURE],
	}
}

func zonesFromPresence(mask uint16) []int {
	var zones []int
	for i := 0; i < MAX_ZONES; i++ {
		if mask&(1<<i) != 0 {
			zones = append(zones, i+1)
		}
	}
	return zones
}
