package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	API_URL = "https://m.airzonecloud.com/api/v1"

	// used when the device does not list its speeds
	DEFAULT_SPEED_STEPS = 4
)

type Config struct {
	Email    string
	Password string
	// 1-based ordinals selecting the device
	Installation int
	Group        int
	Device       int
	BaseURL      string
}

func (cfg Config) Validate() error {
	if cfg.Email == "" || cfg.Password == "" {
		return fmt.Errorf("%w: cloud requires email and password", climate.ErrConfiguration)
	}
	if cfg.Installation < 1 || cfg.Group < 1 || cfg.Device < 1 {
		return fmt.Errorf("%w: cloud ordinals must be >= 1 (installation=%d group=%d device=%d)",
			climate.ErrConfiguration, cfg.Installation, cfg.Group, cfg.Device)
	}
	return nil
}

// Client is a session against the Airzone cloud for one device. Every
// call, including the token refresh and retry after a 401, runs under
// one mutex so no request goes out with a stale token.
type Client struct {
	cfg    Config
	http   transport.JSONClient
	base   string
	logger *zap.Logger

	mu             sync.Mutex
	token          *oauth2.Token
	installationID ID
	deviceID       ID
	status         atomic.Pointer[Status]
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type installationsResponse struct {
	Installations []struct {
		InstallationID ID `json:"installation_id"`
	} `json:"installations"`
}

type installationResponse struct {
	Groups []struct {
		Devices []struct {
			DeviceID ID `json:"device_id"`
		} `json:"devices"`
	} `json:"groups"`
}

type command struct {
	Params map[string]any `json:"params"`
	Opts   map[string]any `json:"opts,omitempty"`
}

// NewClient validates the configuration without touching the network.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger, instruments ...transport.Instrument) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := cfg.BaseURL
	if base == "" {
		base = API_URL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   transport.JSONClient{HTTP: httpClient, Instruments: instruments},
		base:   strings.TrimSuffix(base, "/"),
		logger: logger.With(zap.String("backend", "cloud")),
	}, nil
}

// Open logs in, resolves the configured device and fetches its status.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loginLocked(ctx); err != nil {
		return err
	}
	var installations installationsResponse
	if err := c.authorized(ctx, "cloud.Installations", http.MethodGet, c.base+"/installations", nil, &installations); err != nil {
		return err
	}
	if c.cfg.Installation > len(installations.Installations) {
		return fmt.Errorf("%w: installation %d not found (%d available)",
			climate.ErrConfiguration, c.cfg.Installation, len(installations.Installations))
	}
	c.installationID = installations.Installations[c.cfg.Installation-1].InstallationID

	var installation installationResponse
	if err := c.authorized(ctx, "cloud.Installation", http.MethodGet, c.installationURL(), nil, &installation); err != nil {
		return err
	}
	if c.cfg.Group > len(installation.Groups) {
		return fmt.Errorf("%w: group %d not found in installation %s (%d available)",
			climate.ErrConfiguration, c.cfg.Group, c.installationID, len(installation.Groups))
	}
	devices := installation.Groups[c.cfg.Group-1].Devices
	if c.cfg.Device > len(devices) {
		return fmt.Errorf("%w: device %d not found in group %d (%d available)",
			climate.ErrConfiguration, c.cfg.Device, c.cfg.Group, len(devices))
	}
	c.deviceID = devices[c.cfg.Device-1].DeviceID
	c.logger = c.logger.With(zap.String("installation", string(c.installationID)), zap.String("device", string(c.deviceID)))
	c.logger.Info("cloud device resolved")

	_, err := c.fetchLocked(ctx)
	return err
}

func (c *Client) InstallationID() ID {
	return c.installationID
}

func (c *Client) DeviceID() ID {
	return c.deviceID
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

func (c *Client) SetPower(ctx context.Context, on bool) error {
	return c.execute(ctx, command{Params: map[string]any{"power": on}})
}

func (c *Client) SetMode(ctx context.Context, mode Mode) error {
	return c.execute(ctx, command{Params: map[string]any{"mode": int(mode)}})
}

// SetSetpoint sends a setpoint in Celsius.
func (c *Client) SetSetpoint(ctx context.Context, value float64) error {
	return c.execute(ctx, command{
		Params: map[string]any{"setpoint": value},
		Opts:   map[string]any{"units": 0},
	})
}

// SetSpeed sends a speed on the 0-100 scale, 0 being auto.
func (c *Client) SetSpeed(ctx context.Context, speed int) error {
	return c.execute(ctx, command{Params: map[string]any{"speed": speed}})
}

func (c *Client) execute(ctx context.Context, cmd command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorized(ctx, "cloud.Command", http.MethodPut, c.installationURL(), cmd, nil); err != nil {
		return err
	}
	_, err := c.fetchLocked(ctx)
	return err
}

func (c *Client) installationURL() string {
	return fmt.Sprintf("%s/installations/%s", c.base, url.PathEscape(string(c.installationID)))
}

func (c *Client) fetchLocked(ctx context.Context) (*Status, error) {
	u := fmt.Sprintf("%s/devices/%s/status?installation_id=%s",
		c.base, url.PathEscape(string(c.deviceID)), url.QueryEscape(string(c.installationID)))
	var raw json.RawMessage
	if err := c.authorized(ctx, "cloud.Status", http.MethodGet, u, nil, &raw); err != nil {
		return nil, err
	}
	st, err := parseStatus(raw)
	if err != nil {
		return nil, err
	}
	c.status.Store(st)
	c.logger.Debug("cloud status", zap.Stringer("status", st))
	return st, nil
}

func (c *Client) loginLocked(ctx context.Context) error {
	var resp tokenResponse
	err := c.http.Do(ctx, transport.Request{
		Name:   "cloud.Login",
		Method: http.MethodPost,
		URL:    c.base + "/auth/login",
		Body: map[string]string{
			"email":    c.cfg.Email,
			"password": c.cfg.Password,
		},
	}, &resp)
	if err != nil {
		return fmt.Errorf("cloud login: %w", err)
	}
	return c.storeToken(resp)
}

func (c *Client) refreshLocked(ctx context.Context) error {
	var resp tokenResponse
	err := c.http.Do(ctx, transport.Request{
		Name:   "cloud.RefreshToken",
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/auth/refreshToken/%s", c.base, url.PathEscape(c.token.RefreshToken)),
	}, &resp)
	if err != nil {
		return fmt.Errorf("cloud token refresh: %w", err)
	}
	c.logger.Debug("cloud token refreshed")
	return c.storeToken(resp)
}

func (c *Client) storeToken(resp tokenResponse) error {
	if resp.Token == "" || resp.RefreshToken == "" {
		return fmt.Errorf("%w: token response without token", climate.ErrParse)
	}
	c.token = &oauth2.Token{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
	}
	return nil
}

// authorized runs one bearer-authenticated call. On 401 it refreshes the
// token once and retries once; the retry's outcome is returned as is.
func (c *Client) authorized(ctx context.Context, name string, method string, u string, body any, out any) error {
	req := transport.Request{
		Name:     name,
		Method:   method,
		URL:      u,
		Body:     body,
		Decorate: func(r *http.Request) { c.token.SetAuthHeader(r) },
	}
	err := c.http.Do(ctx, req, out)
	if transport.StatusCode(err) != http.StatusUnauthorized {
		return err
	}
	c.logger.Debug("cloud call unauthorized, refreshing token", zap.String("call", name))
	if err := c.refreshLocked(ctx); err != nil {
		return err
	}
	return c.http.Do(ctx, req, out)
}
