package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/berfenger/airzone2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Airzone: config.AirzoneConfig{
			Backend:         "localapi",
			Host:            "airzone.local",
			Port:            3000,
			DeviceId:        1,
			TimeoutMillis:   2000,
			CollapseOneZone: true,
		},
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "airzone",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 1000,
			FullPublishEvery:   0,
		},
		Port: 8080,
	}
}

// FakeLocalAPI serves a one zone Airzone local API system. PUT bodies are
// merged into the zone and recorded.
type FakeLocalAPI struct {
	Server *httptest.Server

	mu   sync.Mutex
	zone map[string]any
	puts []map[string]any
}

func NewFakeLocalAPI(t *testing.T) *FakeLocalAPI {
	f := &FakeLocalAPI{
		zone: map[string]any{
			"systemID": 1,
			"zoneID":   1,
			"name":     "Salon",
			"on":       1,
			"mode":     3,
			"modes":    []int{1, 2, 3},
			"setpoint": 21.0,
			"roomTemp": 20.5,
			"minTemp":  15.0,
			"maxTemp":  30.0,
			"units":    0,
			"speed":    0,
			"speeds":   3,
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeLocalAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.Method == http.MethodPut {
		f.puts = append(f.puts, body)
		for k, v := range body {
			if k != "systemID" && k != "zoneID" {
				f.zone[k] = v
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{f.zone}})
}

func (f *FakeLocalAPI) Puts() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.puts...)
}
