package mqtt

import (
	"fmt"

	"github.com/berfenger/airzone2mqtt/internal/core/domain"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
)

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

type HASensorDiscoveryConfig struct {
	Device           HADiscoveryDevice `json:"device"`
	StateTopic       string            `json:"state_topic"`
	DeviceClass      string            `json:"device_class,omitempty"`
	EntityCategory   string            `json:"entity_category,omitempty"`
	Name             string            `json:"name"`
	UniqueId         string            `json:"unique_id"`
	Platform         string            `json:"platform"`
	EnabledByDefault *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn        string            `json:"payload_on,omitempty"`
	PayloadOff       string            `json:"payload_off,omitempty"`
	Icon             string            `json:"icon,omitempty"`
}

// HAClimateDiscoveryConfig is the MQTT climate discovery payload. Every
// state template reads the JSON state topic of the climate.
type HAClimateDiscoveryConfig struct {
	Device                     HADiscoveryDevice `json:"device"`
	Name                       *string           `json:"name"`
	UniqueId                   string            `json:"unique_id"`
	ObjectId                   string            `json:"object_id"`
	Platform                   string            `json:"platform"`
	AvTopic                    string            `json:"availability_topic"`
	JSONAttributesTopic        string            `json:"json_attributes_topic"`
	JSONAttributesTemplate     string            `json:"json_attributes_template"`
	CurrentTemperatureTopic    string            `json:"current_temperature_topic"`
	CurrentTemperatureTemplate string            `json:"current_temperature_template"`
	ActionTopic                string            `json:"action_topic"`
	ActionTemplate             string            `json:"action_template"`
	ModeCommandTopic           string            `json:"mode_command_topic,omitempty"`
	ModeStateTopic             string            `json:"mode_state_topic"`
	ModeStateTemplate          string            `json:"mode_state_template"`
	Modes                      []string          `json:"modes"`
	PowerCommandTopic          string            `json:"power_command_topic,omitempty"`
	PayloadOn                  string            `json:"payload_on,omitempty"`
	PayloadOff                 string            `json:"payload_off,omitempty"`
	FanModeCommandTopic        string            `json:"fan_mode_command_topic,omitempty"`
	FanModeStateTopic          string            `json:"fan_mode_state_topic,omitempty"`
	FanModeStateTemplate       string            `json:"fan_mode_state_template,omitempty"`
	FanModes                   []string          `json:"fan_modes,omitempty"`
	PresetModeCommandTopic     string            `json:"preset_mode_command_topic,omitempty"`
	PresetModeStateTopic       string            `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate    string            `json:"preset_mode_value_template,omitempty"`
	PresetModes                []string          `json:"preset_modes,omitempty"`
	TemperatureCommandTopic    string            `json:"temperature_command_topic,omitempty"`
	TemperatureStateTopic      string            `json:"temperature_state_topic,omitempty"`
	TemperatureStateTemplate   string            `json:"temperature_state_template,omitempty"`
	MinTemp                    float64           `json:"min_temp,omitempty"`
	MaxTemp                    float64           `json:"max_temp,omitempty"`
	TempStep                   float64           `json:"temp_step,omitempty"`
	TemperatureUnit            string            `json:"temperature_unit,omitempty"`
}

func HADiscoverySensorTopic(discoveryTopic string, sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryTopic, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func HADiscoveryClimateTopic(discoveryTopic string, entity domain.ClimateEntity) string {
	return fmt.Sprintf("%s/climate/%s/%s/config", discoveryTopic, entity.Device.Id, entity.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HASensorDiscoveryConfig {
	disConfig := HASensorDiscoveryConfig{
		Device:           device(sensor.Device),
		StateTopic:       client.BridgeStateTopic(),
		DeviceClass:      sensor.DeviceClass,
		EntityCategory:   sensor.EntityCategory,
		Name:             sensor.Name,
		UniqueId:         sensor.UniqueId,
		Icon:             sensor.Icon,
		EnabledByDefault: sensor.EnabledByDefault,
		Platform:         "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	}
	return disConfig
}

// ClimateToHADiscoveryMessage only advertises command topics for the
// controls the climate supports.
func ClimateToHADiscoveryMessage(client *MQTTClient, entity domain.ClimateEntity) HAClimateDiscoveryConfig {
	stateTopic := client.ClimateStateTopic(entity.Id)
	disConfig := HAClimateDiscoveryConfig{
		Device:                     device(entity.Device),
		UniqueId:                   entity.UniqueId,
		ObjectId:                   entity.Id,
		Platform:                   "mqtt",
		AvTopic:                    client.BridgeStateTopic(),
		JSONAttributesTopic:        stateTopic,
		JSONAttributesTemplate:     "{{ value_json.attributes | tojson }}",
		CurrentTemperatureTopic:    stateTopic,
		CurrentTemperatureTemplate: "{{ value_json.current_temperature }}",
		ActionTopic:                stateTopic,
		ActionTemplate:             "{{ value_json.hvac_action }}",
		ModeStateTopic:             stateTopic,
		ModeStateTemplate:          "{{ value_json.hvac_mode }}",
		Modes:                      []string{string(climate.HVACModeOff)},
		MinTemp:                    entity.MinTemp,
		MaxTemp:                    entity.MaxTemp,
		TempStep:                   entity.TempStep,
		TemperatureUnit:            string(entity.Unit),
	}
	caps := entity.Capabilities
	if caps.Has(climate.CapMode) {
		disConfig.ModeCommandTopic = client.ClimateCommandTopic(entity.Id, domain.COMMAND_MODE)
		disConfig.Modes = stringList(entity.HVACModes)
	}
	if caps.Has(climate.CapPower) {
		disConfig.PowerCommandTopic = client.ClimateCommandTopic(entity.Id, domain.COMMAND_POWER)
		disConfig.PayloadOn = domain.PAYLOAD_ON
		disConfig.PayloadOff = domain.PAYLOAD_OFF
	}
	if caps.Has(climate.CapFan) {
		disConfig.FanModeCommandTopic = client.ClimateCommandTopic(entity.Id, domain.COMMAND_FAN_MODE)
		disConfig.FanModeStateTopic = stateTopic
		disConfig.FanModeStateTemplate = "{{ value_json.fan_mode }}"
		disConfig.FanModes = stringList(entity.FanModes)
	}
	if caps.Has(climate.CapPreset) {
		disConfig.PresetModeCommandTopic = client.ClimateCommandTopic(entity.Id, domain.COMMAND_PRESET_MODE)
		disConfig.PresetModeStateTopic = stateTopic
		disConfig.PresetModeValueTemplate = "{{ value_json.preset_mode }}"
		// none is implicit for Home Assistant
		for _, p := range entity.PresetModes {
			if p != climate.PresetNone {
				disConfig.PresetModes = append(disConfig.PresetModes, string(p))
			}
		}
	}
	if caps.Has(climate.CapTemperature) {
		disConfig.TemperatureCommandTopic = client.ClimateCommandTopic(entity.Id, domain.COMMAND_TEMPERATURE)
		disConfig.TemperatureStateTopic = stateTopic
		disConfig.TemperatureStateTemplate = "{{ value_json.temperature }}"
	}
	return disConfig
}

func stringList[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i := range values {
		out[i] = string(values[i])
	}
	return out
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
