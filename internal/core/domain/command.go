package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
)

type CommandKind string

const (
	COMMAND_MODE        CommandKind = "mode"
	COMMAND_TEMPERATURE CommandKind = "temperature"
	COMMAND_FAN_MODE    CommandKind = "fan_mode"
	COMMAND_PRESET_MODE CommandKind = "preset_mode"
	COMMAND_POWER       CommandKind = "power"

	PAYLOAD_ON  = "ON"
	PAYLOAD_OFF = "OFF"
)

var CommandKinds = []CommandKind{COMMAND_MODE, COMMAND_TEMPERATURE, COMMAND_FAN_MODE, COMMAND_PRESET_MODE, COMMAND_POWER}

func ParseCommandKind(s string) (CommandKind, error) {
	for _, k := range CommandKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: command %q", climate.ErrUnsupportedOperation, s)
}

// ClimateCommand targets the climate whose topic id is ClimateId.
type ClimateCommand struct {
	ClimateId string
	Kind      CommandKind
	Payload   string
}

func (c ClimateCommand) String() string {
	return fmt.Sprintf("%s/%s=%s", c.ClimateId, c.Kind, c.Payload)
}

// Apply parses the payload and runs the matching canonical command.
func (c ClimateCommand) Apply(ctx context.Context, target *climate.Climate) error {
	payload := strings.TrimSpace(c.Payload)
	switch c.Kind {
	case COMMAND_MODE:
		mode, err := climate.ParseHVACMode(strings.ToLower(payload))
		if err != nil {
			return err
		}
		return target.SetHVACMode(ctx, mode)
	case COMMAND_TEMPERATURE:
		value, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return fmt.Errorf("%w: temperature %q", climate.ErrRange, payload)
		}
		return target.SetTemperature(ctx, value)
	case COMMAND_FAN_MODE:
		return target.SetFanMode(ctx, climate.FanMode(strings.ToLower(payload)))
	case COMMAND_PRESET_MODE:
		preset, err := climate.ParsePreset(strings.ToLower(payload))
		if err != nil {
			return err
		}
		return target.SetPreset(ctx, preset)
	case COMMAND_POWER:
		switch strings.ToUpper(payload) {
		case PAYLOAD_ON:
			return target.TurnOn(ctx)
		case PAYLOAD_OFF:
			return target.TurnOff(ctx)
		}
		return fmt.Errorf("%w: power payload %q", climate.ErrUnsupportedOperation, payload)
	}
	return fmt.Errorf("%w: command %q", climate.ErrUnsupportedOperation, c.Kind)
}
