package innobus

import "math"

// Holding register map exposed by the Innobus Modbus gateway. The unit id
// is the machine id; every zone owns a 16-register block.
const (
	REG_MACHINE_MODE  = 0
	REG_ZONE_PRESENCE = 1

	MAX_ZONES      = 8
	ZONE_BLOCK_LEN = 16

	REG_ZONE_FLAGS      = 0
	REG_ZONE_SETPOINT   = 1
	REG_ZONE_LOCAL_TEMP = 2
	REG_ZONE_FAN_SPEED  = 3
	REG_ZONE_MIN_SP     = 4
	REG_ZONE_MAX_SP     = 5
	REG_ZONE_APERTURE   = 6
	ZONE_READ_LEN       = 7

	// write only
	REG_ZONE_TACTO_ON  = 8
	REG_ZONE_AUTOMATIC = 9
	REG_ZONE_SLEEP     = 10
)

// zone flag bits (REG_ZONE_FLAGS)
const (
	FLAG_TACTO_ON = 1 << iota
	FLAG_AUTOMATIC
	FLAG_SLEEP
	FLAG_FLOOR_ACTIVE
	FLAG_REQUESTING_AIR
	FLAG_GRID_OPENED
	FLAG_GRID_MOTOR_ACTIVE
	FLAG_GRID_MOTOR_REQUESTED
	FLAG_OCCUPIED
	FLAG_WINDOW_OPENED
	FLAG_TACTO_CONNECTED
	FLAG_LOCAL_FANCOIL
)

func zoneRegister(zoneID int, offset uint16) uint16 {
	return uint16(zoneID*ZONE_BLOCK_LEN) + offset
}

// tenths of a degree on the wire
func decodeTemp(raw uint16) float64 {
	return float64(int16(raw)) / 10
}

func encodeTemp(value float64) uint16 {
	return uint16(int16(math.Round(value * 10)))
}
