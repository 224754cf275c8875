package config

import (
	"testing"
	"time"

	"github.com/berfenger/airzone2mqtt/pkg/airzone"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Airzone: AirzoneConfig{
			Backend:  "localapi",
			Host:     "192.168.1.20",
			Port:     3000,
			DeviceId: 1,
		},
		MQTT: MQTTConfig{
			BaseTopic:        "Airzone",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: MonitorConfig{PollIntervalMillis: 5000},
	}
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("My_Topic1")
	assert.NoError(err)
	assert.Equal("my_topic1", topic)

	_, err = CheckMQTTTopic("my/topic")
	assert.Error(err)
	_, err = CheckMQTTTopic("")
	assert.Error(err)
}

func TestCheck(t *testing.T) {

	require := require.New(t)

	cfg := validConfig()
	require.NoError(cfg.Check())
	require.Equal("airzone", cfg.MQTT.BaseTopic)

	cfg = validConfig()
	cfg.Airzone.Backend = "zigbee"
	require.ErrorIs(cfg.Check(), climate.ErrConfiguration)

	cfg = validConfig()
	cfg.MonitorConfig.PollIntervalMillis = 500
	require.Error(cfg.Check())

	cfg = validConfig()
	cfg.MQTT.HADiscoveryTopic = "home assistant"
	require.Error(cfg.Check())
}

func TestConnectionParams(t *testing.T) {

	cfg := AirzoneConfig{
		Backend:       "cloud",
		Email:         "user@example.com",
		Password:      "secret",
		Installation:  1,
		Group:         2,
		Device:        3,
		TimeoutMillis: 1500,
	}
	backend, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, airzone.BackendCloud, backend)

	params := cfg.ConnectionParams()
	assert.Equal(t, 1500*time.Millisecond, params.Timeout)
	assert.Equal(t, "user@example.com", params.Email)
	assert.Equal(t, 2, params.Group)
	assert.Equal(t, 3, params.Device)

	cfg = AirzoneConfig{Backend: "aido", Host: "gateway.local", Port: 502, DeviceId: 4}
	backend, err = cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, airzone.BackendAidoo, backend)
	params = cfg.ConnectionParams()
	assert.Equal(t, "gateway.local", params.Host)
	assert.Equal(t, uint(502), params.Port)
	assert.Equal(t, 4, params.DeviceID)
}
