package innobus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type Config struct {
	Host      string
	Port      uint
	MachineID uint8
	Timeout   time.Duration
}

// Client talks to one machine behind an Innobus Modbus gateway. Network
// calls are serialised; the published Status is replaced wholesale.
type Client struct {
	ModbusClient

	machineID int
	zoneIDs   []int
	logger    *zap.Logger

	mu     sync.Mutex
	status atomic.Pointer[Status]
}

// ZoneCommand holds the zone fields to change; nil fields are left alone.
// Automatic mode and sleep are written before the zone is switched on.
type ZoneCommand struct {
	Automatic *bool
	Sleep     *bool
	Setpoint  *float64
	FanSpeed  *FancoilSpeed
	On        *bool
}

func NewClient(cfg Config, logger *zap.Logger, instruments ...transport.Instrument) (*Client, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("%w: innobus requires host and port", climate.ErrConfiguration)
	}
	if cfg.MachineID == 0 {
		return nil, fmt.Errorf("%w: innobus requires a machine id", climate.ErrConfiguration)
	}
	client, err := newModbusBus(cfg)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", "innobus"), zap.Uint8("machine", cfg.MachineID))
	inst := append([]transport.Instrument{traceLoggerInstrumentation(logger)}, instruments...)

	return newClient(client, int(cfg.MachineID), logger, inst), nil
}

// newModbusBus builds the TCP client of a gateway; unit id = cfg.MachineID.
func newModbusBus(cfg Config) (*modbus.ModbusClient, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Second
	}
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port),
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", climate.ErrConfiguration, err)
	}
	if err := client.SetUnitId(cfg.MachineID); err != nil {
		return nil, fmt.Errorf("%w: %v", climate.ErrConfiguration, err)
	}
	return client, nil
}

func newClient(bus registerBus, machineID int, logger *zap.Logger, instruments []transport.Instrument) *Client {
	return &Client{
		ModbusClient: ModbusClient{
			bus:        bus,
			instrument: instruments,
		},
		machineID: machineID,
		logger:    logger,
	}
}

// Open connects to the gateway, discovers the zones of the machine and
// fetches the first snapshot.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bus.Open(); err != nil {
		return fmt.Errorf("%w: open gateway: %v", climate.ErrTransport, err)
	}
	mask, err := c.readRegister(REG_ZONE_PRESENCE)
	if err != nil {
		return fmt.Errorf("%w: read zone presence: %v", climate.ErrTransport, err)
	}
	c.zoneIDs = zonesFromPresence(mask)
	if len(c.zoneIDs) == 0 {
		return fmt.Errorf("%w: machine %d reports no zones", climate.ErrConfiguration, c.machineID)
	}
	c.logger.Info("innobus zones discovered", zap.Ints("zones", c.zoneIDs))

	_, err = c.fetchLocked(ctx)
	return err
}

func (c *Client) Close() error {
	return c.bus.Close()
}

func (c *Client) MachineID() int {
	return c.machineID
}

// ZoneIDs returns the zones discovered by Open.
func (c *Client) ZoneIDs() []int {
	return append([]int(nil), c.zoneIDs...)
}

// Status returns the latest published snapshot, nil before the first fetch.
func (c *Client) Status() *Status {
	return c.status.Load()
}

func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(ctx)
}

func (c *Client) SetOperationMode(ctx context.Context, mode OperationMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.writeRegister(REG_MACHINE_MODE, uint16(mode)); err != nil {
		return fmt.Errorf("%w: write operation mode: %v", climate.ErrTransport, err)
	}
	_, err := c.fetchLocked(ctx)
	return err
}

func (c *Client) SetZone(ctx context.Context, zoneID int, cmd ZoneCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasZone(zoneID) {
		return fmt.Errorf("%w: zone %d not found on machine %d", climate.ErrConfiguration, zoneID, c.machineID)
	}
	writes := []struct {
		name  string
		apply func() error
	}{
		{"automatic", func() error {
			if cmd.Automatic == nil {
				return nil
			}
			return c.writeBool(zoneRegister(zoneID, REG_ZONE_AUTOMATIC), *cmd.Automatic)
		}},
		{"sleep", func() error {
			if cmd.Sleep == nil {
				return nil
			}
			return c.writeBool(zoneRegister(zoneID, REG_ZONE_SLEEP), *cmd.Sleep)
		}},
		{"setpoint", func() error {
			if cmd.Setpoint == nil {
				return nil
			}
			return c.writeRegister(zoneRegister(zoneID, REG_ZONE_SETPOINT), encodeTemp(*cmd.Setpoint))
		}},
		{"fan speed", func() error {
			if cmd.FanSpeed == nil {
				return nil
			}
			return c.writeRegister(zoneRegister(zoneID, REG_ZONE_FAN_SPEED), uint16(*cmd.FanSpeed))
		}},
		{"tacto on", func() error {
			if cmd.On == nil {
				return nil
			}
			return c.writeBool(zoneRegister(zoneID, REG_ZONE_TACTO_ON), *cmd.On)
		}},
	}
	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.apply(); err != nil {
			return fmt.Errorf("%w: write zone %d %s: %v", climate.ErrTransport, zoneID, w.name, err)
		}
	}
	_, err := c.fetchLocked(ctx)
	return err
}

func (c *Client) fetchLocked(ctx context.Context) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mode, err := c.readRegister(REG_MACHINE_MODE)
	if err != nil {
		return nil, fmt.Errorf("%w: read machine %d: %v", climate.ErrTransport, c.machineID, err)
	}
	status := &Status{
		MachineID: c.machineID,
		Mode:      OperationMode(mode),
		Zones:     make([]ZoneStatus, 0, len(c.zoneIDs)),
	}
	for _, zoneID := range c.zoneIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		regs, err := c.readRegisters(zoneRegister(zoneID, REG_ZONE_FLAGS), ZONE_READ_LEN)
		if err != nil {
			return nil, fmt.Errorf("%w: read zone %d: %v", climate.ErrTransport, zoneID, err)
		}
		if len(regs) < ZONE_READ_LEN {
			return nil, fmt.Errorf("%w: zone %d: short read (%d registers)", climate.ErrParse, zoneID, len(regs))
		}
		status.Zones = append(status.Zones, parseZone(zoneID, regs))
	}
	c.status.Store(status)
	c.logger.Debug("innobus status", zap.Stringer("status", status))
	return status, nil
}

func (c *Client) hasZone(zoneID int) bool {
	for _, z := range c.zoneIDs {
		if z == zoneID {
			return true
		}
	}
	return false
}

func (c *Client) currentStatus() (*Status, error) {
	st := c.Status()
	if st == nil {
		return nil, errNoStatus
	}
	return st, nil
}

var errNoStatus = fmt.Errorf("%w: no status fetched yet", climate.ErrTransport)

func traceLoggerInstrumentation(logger *zap.Logger) transport.Instrument {
	return transport.Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
