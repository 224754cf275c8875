package innobus

import (
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"github.com/simonvetter/modbus"
)

// registerBus is the subset of *modbus.ModbusClient the gateway needs.
type registerBus interface {
	Open() error
	Close() error
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error)
	WriteRegister(addr uint16, value uint16) error
}

type ModbusClient struct {
	bus        registerBus
	instrument []transport.Instrument
}

func (reader ModbusClient) readRegister(addr uint16) (uint16, error) {
	regs, err := reader.readRegisters(addr, 1)
	if err != nil {
		return 0, err
	}
	return regs[0], nil
}

func (reader ModbusClient) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer transport.RecordTimer("ReadRegisters", reader.instrument)()
	regs, err := reader.bus.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
	transport.RecordError("ReadRegisters", err, reader.instrument)
	return regs, err
}

func (reader ModbusClient) writeRegister(addr uint16, value uint16) error {
	defer transport.RecordTimer("WriteRegister", reader.instrument)()
	err := reader.bus.WriteRegister(addr, value)
	transport.RecordError("WriteRegister", err, reader.instrument)
	return err
}

func (reader ModbusClient) writeBool(addr uint16, value bool) error {
	if value {
		return reader.writeRegister(addr, 1)
	}
	return reader.writeRegister(addr, 0)
}
