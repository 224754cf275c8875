package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"

	TEMPERATURE_STEP = 0.5
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device           Device
	Id               string
	SensorType       string
	Name             string
	UniqueId         string
	DeviceClass      string
	EntityCategory   string
	EnabledByDefault *bool
	Icon             string
}

// ClimateEntity is everything discovery needs to describe one climate.
// Id is the topic safe form of UniqueId.
type ClimateEntity struct {
	Device       Device                  `json:"-"`
	Id           string                  `json:"id"`
	UniqueId     string                  `json:"unique_id"`
	Name         string                  `json:"name"`
	Capabilities climate.Capability      `json:"-"`
	HVACModes    []climate.HVACMode      `json:"hvac_modes,omitempty"`
	FanModes     []climate.FanMode       `json:"fan_modes,omitempty"`
	PresetModes  []climate.Preset        `json:"preset_modes,omitempty"`
	MinTemp      float64                 `json:"min_temp"`
	MaxTemp      float64                 `json:"max_temp"`
	TempStep     float64                 `json:"temp_step"`
	Unit         climate.TemperatureUnit `json:"temperature_unit"`
}

// ClimateSnapshot pairs an entity with the state read from the last
// device status. Error is set when the state could not be computed.
type ClimateSnapshot struct {
	Entity ClimateEntity  `json:"entity"`
	State  *climate.State `json:"state,omitempty"`
	Error  string         `json:"error,omitempty"`
}

var topicUnsafe = regexp.MustCompile("[^a-z0-9_-]+")

// TopicId maps a climate unique id to a string usable as a single MQTT
// topic level and as a Home Assistant object id.
func TopicId(uniqueId string) string {
	return topicUnsafe.ReplaceAllString(strings.ToLower(uniqueId), "_")
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("airzone_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Airzone2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Airzone2MQTT %s", md5HashShort(baseTopic)),
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     "binary_sensor",
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func ClimateDevice(backend string, c *climate.Climate, viaDevice string) Device {
	return Device{
		Id:           fmt.Sprintf("airzone_%s", TopicId(c.UniqueID())),
		Manufacturer: "Airzone",
		Model:        backend,
		Name:         c.Name(),
		ViaDevice:    viaDevice,
	}
}

// NewClimateSnapshot reads the adapter state once; it never calls the
// transport.
func NewClimateSnapshot(backend string, c *climate.Climate, viaDevice string) ClimateSnapshot {
	entity := ClimateEntity{
		Device:       ClimateDevice(backend, c, viaDevice),
		Id:           TopicId(c.UniqueID()),
		UniqueId:     c.UniqueID(),
		Name:         c.Name(),
		Capabilities: c.Capabilities(),
		HVACModes:    c.HVACModes(),
		FanModes:     c.FanModes(),
		PresetModes:  c.PresetModes(),
		TempStep:     TEMPERATURE_STEP,
		Unit:         climate.Celsius,
	}
	st, err := c.State()
	if err != nil {
		return ClimateSnapshot{Entity: entity, Error: err.Error()}
	}
	entity.MinTemp = st.MinTemp
	entity.MaxTemp = st.MaxTemp
	if st.Unit != "" {
		entity.Unit = st.Unit
	}
	return ClimateSnapshot{Entity: entity, State: &st}
}

func uniqueId(deviceId string, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}
