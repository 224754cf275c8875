package localapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"go.uber.org/zap"
)

const HVAC_PATH = "/api/v1/hvac"

type Config struct {
	Host     string
	Port     uint
	SystemID int
	// BaseURL overrides the address derived from Host and Port.
	BaseURL string
}

// Client talks to the HTTP API served by an Airzone webserver for one
// system. Requests are serialised; the published Status is replaced
// wholesale.
type Client struct {
	http     transport.JSONClient
	url      string
	host     string
	systemID int
	logger   *zap.Logger

	mu     sync.Mutex
	status atomic.Pointer[Status]
}

// ZoneCommand holds the zone fields to change; nil fields are left alone.
type ZoneCommand struct {
	On       *bool
	Mode     *Mode
	Setpoint *float64
	Speed    *int
}

type hvacQuery struct {
	SystemID int `json:"systemID"`
	ZoneID   int `json:"zoneID"`
}

type hvacResponse struct {
	Data []rawZone `json:"data"`
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger, instruments ...transport.Instrument) (*Client, error) {
	if cfg.BaseURL == "" && (cfg.Host == "" || cfg.Port == 0) {
		return nil, fmt.Errorf("%w: local api requires host and port", climate.ErrConfiguration)
	}
	if cfg.SystemID == 0 {
		cfg.SystemID = 1
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}
	host := cfg.Host
	if host == "" {
		host = base
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:     transport.JSONClient{HTTP: httpClient, Instruments: instruments},
		url:      base + HVAC_PATH,
		host:     host,
		systemID: cfg.SystemID,
		logger:   logger.With(zap.String("backend", "localapi"), zap.Int("system", cfg.SystemID)),
	}, nil
}

// Open fetches the first snapshot. A system without zones is rejected.
func (c *Client) Open(ctx context.Context) error {
	st, err := c.FetchStatus(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("local api zones discovered", zap.Int("zones", len(st.Zones)))
	return nil
}

func (c *Client) Host() string {
	return c.host
}

func (c *Client) SystemID() int {
	return c.systemID
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

func (c *Client) SetZone(ctx context.Context, zoneID int, cmd ZoneCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	body := map[string]any{
		"systemID": c.systemID,
		"zoneID":   zoneID,
	}
	if cmd.On != nil {
		on := 0
		if *cmd.On {
			on = 1
		}
		body["on"] = on
	}
	if cmd.Mode != nil {
		body["mode"] = int(*cmd.Mode)
	}
	if cmd.Setpoint != nil {
		body["setpoint"] = *cmd.Setpoint
	}
	if cmd.Speed != nil {
		body["speed"] = *cmd.Speed
	}
	if len(body) == 2 {
		return nil
	}

	err := c.http.Do(ctx, transport.Request{
		Name:   "localapi.SetZone",
		Method: http.MethodPut,
		URL:    c.url,
		Body:   body,
	}, nil)
	if err != nil {
		return err
	}
	_, err = c.fetchLocked(ctx)
	return err
}

func (c *Client) fetchLocked(ctx context.Context) (*Status, error) {
	var resp hvacResponse
	err := c.http.Do(ctx, transport.Request{
		Name:   "localapi.FetchStatus",
		Method: http.MethodPost,
		URL:    c.url,
		Body:   hvacQuery{SystemID: c.systemID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		// zones cannot disappear from a configured system; keep the last snapshot
		if c.Status() != nil {
			return nil, fmt.Errorf("%w: system %d reported no zones", climate.ErrParse, c.systemID)
		}
		return nil, fmt.Errorf("%w: system %d reports no zones", climate.ErrConfiguration, c.systemID)
	}
	status := &Status{SystemID: c.systemID, Zones: make([]Zone, 0, len(resp.Data))}
	for _, raw := range resp.Data {
		zone, err := raw.zone()
		if err != nil {
			return nil, err
		}
		status.Zones = append(status.Zones, zone)
	}
	c.status.Store(status)
	c.logger.Debug("local api status", zap.Stringer("status", status))
	return status, nil
}

func (c *Client) currentStatus() (*Status, error) {
	st := c.Status()
	if st == nil {
		return nil, fmt.Errorf("%w: no status fetched yet", climate.ErrTransport)
	}
	return st, nil
}
