package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/airzone2mqtt/pkg/airzone"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel      zapcore.Level
	Airzone       AirzoneConfig `mapstructure:"airzone"`
	MQTT          MQTTConfig    `mapstructure:"mqtt"`
	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

// AirzoneConfig selects the backend and carries its connection settings.
type AirzoneConfig struct {
	Backend         string
	Host            string
	Port            uint
	DeviceId        int    `mapstructure:"device_id"`
	TimeoutMillis   uint32 `mapstructure:"timeout_millis"`
	CollapseOneZone bool   `mapstructure:"collapse_one_zone"`
	Email           string
	Password        string
	Installation    int
	Group           int
	Device          int
	BaseURL         string `mapstructure:"base_url"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	// every n polls all states are published even if unchanged
	FullPublishEvery uint32 `mapstructure:"full_publish_every"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c AirzoneConfig) BackendType() (airzone.BackendType, error) {
	return airzone.ParseBackendType(c.Backend)
}

func (c AirzoneConfig) ConnectionParams() airzone.ConnectionParams {
	return airzone.ConnectionParams{
		Host:            c.Host,
		Port:            c.Port,
		DeviceID:        c.DeviceId,
		Timeout:         time.Duration(c.TimeoutMillis) * time.Millisecond,
		CollapseOneZone: c.CollapseOneZone,
		Email:           c.Email,
		Password:        c.Password,
		Installation:    c.Installation,
		Group:           c.Group,
		Device:          c.Device,
		BaseURL:         c.BaseURL,
	}
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	if !topicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Check validates bounds and normalizes topics in place.
func (cfg *Config) Check() error {
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if _, err := cfg.Airzone.BackendType(); err != nil {
		return err
	}
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	return nil
}
