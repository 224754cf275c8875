package innobus

import (
	"errors"
	"sync"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type registerWrite struct {
	Addr  uint16
	Value uint16
}

// testBus emulates the gateway register file of a single machine. Writes
// to the write-only zone registers are reflected in the zone flags.
type testBus struct {
	mu        sync.Mutex
	regs      map[uint16]uint16
	writes    []registerWrite
	reads     int
	failReads bool
}

func newTestBus(mode OperationMode, zones ...int) *testBus {
	bus := &testBus{regs: map[uint16]uint16{}}
	bus.regs[REG_MACHINE_MODE] = uint16(mode)
	var mask uint16
	for _, z := range zones {
		mask |= 1 << (z - 1)
		bus.setZone(z, 0, 21.5, 20.0, FancoilSpeedAuto, 15, 30)
	}
	bus.regs[REG_ZONE_PRESENCE] = mask
	return bus
}

func (b *testBus) setZone(zoneID int, flags uint16, setpoint float64, temp float64, fan FancoilSpeed, lo float64, hi float64) {
	b.regs[zoneRegister(zoneID, REG_ZONE_FLAGS)] = flags
	b.regs[zoneRegister(zoneID, REG_ZONE_SETPOINT)] = encodeTemp(setpoint)
	b.regs[zoneRegister(zoneID, REG_ZONE_LOCAL_TEMP)] = encodeTemp(temp)
	b.regs[zoneRegister(zoneID, REG_ZONE_FAN_SPEED)] = uint16(fan)
	b.regs[zoneRegister(zoneID, REG_ZONE_MIN_SP)] = encodeTemp(lo)
	b.regs[zoneRegister(zoneID, REG_ZONE_MAX_SP)] = encodeTemp(hi)
	b.regs[zoneRegister(zoneID, REG_ZONE_APERTURE)] = 50
}

func (b *testBus) setFlags(zoneID int, flags uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[zoneRegister(zoneID, REG_ZONE_FLAGS)] = flags
}

func (b *testBus) setMode(mode OperationMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[REG_MACHINE_MODE] = uint16(mode)
}

func (b *testBus) writeLog() []registerWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]registerWrite(nil), b.writes...)
}

func (b *testBus) Open() error  { return nil }
func (b *testBus) Close() error { return nil }

func (b *testBus) ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.failReads {
		return nil, errors.New("connection reset by peer")
	}
	res := make([]uint16, quantity)
	for i := range res {
		res[i] = b.regs[addr+uint16(i)]
	}
	return res, nil
}

func (b *testBus) WriteRegister(addr uint16, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, registerWrite{Addr: addr, Value: value})
	b.regs[addr] = value

	if addr < ZONE_BLOCK_LEN {
		return nil
	}
	zoneID := int(addr / ZONE_BLOCK_LEN)
	var bit uint16
	switch addr % ZONE_BLOCK_LEN {
	case REG_ZONE_TACTO_ON:
		bit = FLAG_TACTO_ON
	case REG_ZONE_AUTOMATIC:
		bit = FLAG_AUTOMATIC
	case REG_ZONE_SLEEP:
		bit = FLAG_SLEEP
	default:
		return nil
	}
	flagsAddr := zoneRegister(zoneID, REG_ZONE_FLAGS)
	if value != 0 {
		b.regs[flagsAddr] |= bit
	} else {
		b.regs[flagsAddr] &^= bit
	}
	return nil
}

func openTestClient(bus *testBus) (*Client, error) {
	client := newClient(bus, 1, zap.NewNop(), nil)
	return client, client.Open(testContext())
}
