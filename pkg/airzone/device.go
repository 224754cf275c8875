// Package airzone builds the transport and climate graph of an Airzone
// installation from connection parameters.
package airzone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/cloud"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/innobus"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/localapi"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"go.uber.org/zap"
)

type BackendType string

const (
	BackendInnobus  BackendType = "innobus"
	BackendLocalAPI BackendType = "localapi"
	BackendCloud    BackendType = "cloud"
	BackendAidoo    BackendType = "aidoo"
)

func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "innobus":
		return BackendInnobus, nil
	case "localapi":
		return BackendLocalAPI, nil
	case "cloud":
		return BackendCloud, nil
	case "aido", "aidoo":
		return BackendAidoo, nil
	}
	return "", fmt.Errorf("%w: unknown backend %q", climate.ErrConfiguration, s)
}

// ConnectionParams carries the settings of every backend; each backend
// reads the fields it needs.
type ConnectionParams struct {
	Host string
	Port uint
	// innobus machine id, aidoo device id or local api system id
	DeviceID int
	Timeout  time.Duration

	// local api: one climate for single zone systems
	CollapseOneZone bool

	// cloud
	Email        string
	Password     string
	Installation int
	Group        int
	Device       int

	// overrides the API address of the http backends
	BaseURL string
}

type options struct {
	logger      *zap.Logger
	httpClient  *http.Client
	instruments []transport.Instrument
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func WithInstruments(instruments ...transport.Instrument) Option {
	return func(o *options) {
		o.instruments = append(o.instruments, instruments...)
	}
}

// Device is the client and climate graph of one backend connection.
type Device struct {
	Backend  BackendType
	Climates []*climate.Climate

	refresh func(ctx context.Context) error
	close   func() error
}

// NewDevice wraps an already connected climate graph. close may be nil.
func NewDevice(backend BackendType, climates []*climate.Climate, refresh func(ctx context.Context) error, close func() error) *Device {
	return &Device{
		Backend:  backend,
		Climates: climates,
		refresh:  refresh,
		close:    close,
	}
}

// Refresh fetches a new status once; every climate of the device reads
// the same snapshot afterwards.
func (d *Device) Refresh(ctx context.Context) error {
	return d.refresh(ctx)
}

func (d *Device) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

// Build validates params, connects the backend and builds its climates.
// Parameter errors are reported before any network activity.
func Build(ctx context.Context, params ConnectionParams, backend BackendType, opts ...Option) (*Device, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		timeout := params.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		o.httpClient = &http.Client{Timeout: timeout}
	}
	logger := o.logger.With(zap.String("backend", string(backend)))

	switch backend {
	case BackendInnobus:
		return buildInnobus(ctx, params, logger, o)
	case BackendLocalAPI:
		return buildLocalAPI(ctx, params, logger, o)
	case BackendCloud:
		return buildCloud(ctx, params, logger, o)
	case BackendAidoo:
		return buildAidoo(ctx, params, logger, o)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", climate.ErrConfiguration, backend)
}

func buildInnobus(ctx context.Context, params ConnectionParams, logger *zap.Logger, o options) (*Device, error) {
	if params.DeviceID < 1 || params.DeviceID > 255 {
		return nil, fmt.Errorf("%w: innobus machine id %d", climate.ErrConfiguration, params.DeviceID)
	}
	client, err := innobus.NewClient(innobus.Config{
		Host:      params.Host,
		Port:      params.Port,
		MachineID: uint8(params.DeviceID),
		Timeout:   params.Timeout,
	}, logger, o.instruments...)
	if err != nil {
		return nil, err
	}
	if err := client.Open(ctx); err != nil {
		return nil, errors.Join(err, client.Close())
	}
	return &Device{
		Backend:  BackendInnobus,
		Climates: innobus.NewClimates(client, logger),
		refresh: func(ctx context.Context) error {
			_, err := client.FetchStatus(ctx)
			return err
		},
		close: client.Close,
	}, nil
}

func buildAidoo(ctx context.Context, params ConnectionParams, logger *zap.Logger, o options) (*Device, error) {
	if params.DeviceID < 1 || params.DeviceID > 255 {
		return nil, fmt.Errorf("%w: aidoo device id %d", climate.ErrConfiguration, params.DeviceID)
	}
	client, err := innobus.NewAidooClient(innobus.Config{
		Host:      params.Host,
		Port:      params.Port,
		MachineID: uint8(params.DeviceID),
		Timeout:   params.Timeout,
	}, logger, o.instruments...)
	if err != nil {
		return nil, err
	}
	if err := client.Open(ctx); err != nil {
		return nil, errors.Join(err, client.Close())
	}
	c, err := innobus.NewAidooClimate(client, logger)
	if err != nil {
		return nil, errors.Join(err, client.Close())
	}
	return &Device{
		Backend:  BackendAidoo,
		Climates: []*climate.Climate{c},
		refresh: func(ctx context.Context) error {
			_, err := client.FetchStatus(ctx)
			return err
		},
		close: client.Close,
	}, nil
}

func buildLocalAPI(ctx context.Context, params ConnectionParams, logger *zap.Logger, o options) (*Device, error) {
	client, err := localapi.NewClient(localapi.Config{
		Host:     params.Host,
		Port:     params.Port,
		SystemID: params.DeviceID,
		BaseURL:  params.BaseURL,
	}, o.httpClient, logger, o.instruments...)
	if err != nil {
		return nil, err
	}
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	climates, err := localapi.NewClimates(client, params.CollapseOneZone, logger)
	if err != nil {
		return nil, err
	}
	return &Device{
		Backend:  BackendLocalAPI,
		Climates: climates,
		refresh: func(ctx context.Context) error {
			// the one zone view checks the zone count on refresh
			if len(climates) == 1 {
				return climates[0].Refresh(ctx)
			}
			_, err := client.FetchStatus(ctx)
			return err
		},
	}, nil
}

func buildCloud(ctx context.Context, params ConnectionParams, logger *zap.Logger, o options) (*Device, error) {
	client, err := cloud.NewClient(cloud.Config{
		Email:        params.Email,
		Password:     params.Password,
		Installation: params.Installation,
		Group:        params.Group,
		Device:       params.Device,
		BaseURL:      params.BaseURL,
	}, o.httpClient, logger, o.instruments...)
	if err != nil {
		return nil, err
	}
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	c, err := cloud.NewClimate(client, logger)
	if err != nil {
		return nil, err
	}
	return &Device{
		Backend:  BackendCloud,
		Climates: []*climate.Climate{c},
		refresh: func(ctx context.Context) error {
			_, err := client.FetchStatus(ctx)
			return err
		},
	}, nil
}
