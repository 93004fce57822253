package solarapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/resident-x/go-fronius/internal/datastore"
	"github.com/resident-x/go-fronius/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Solar API endpoints.
const (
	EndpointAPIVersion            = "/solar_api/GetAPIVersion.cgi"
	EndpointLoggerInfo            = "GetLoggerInfo.cgi"
	EndpointLoggerLEDInfo         = "GetLoggerLEDInfo.cgi"
	EndpointLoggerConnectionInfo  = "GetLoggerConnectionInfo.cgi"
	EndpointInverterInfo          = "GetInverterInfo.cgi"
	EndpointActiveDeviceInfo      = "GetActiveDeviceInfo.cgi"
	EndpointInverterRealtimeData  = "GetInverterRealtimeData.cgi"
	EndpointSensorRealtimeData    = "GetSensorRealtimeData.cgi"
	EndpointStringRealtimeData    = "GetStringRealtimeData.cgi"
	EndpointMeterRealtimeData     = "GetMeterRealtimeData.cgi"
	EndpointStorageRealtimeData   = "GetStorageRealtimeData.cgi"
	EndpointOhmPilotRealtimeData  = "GetOhmPilotRealtimeData.cgi"
	EndpointPowerFlowRealtimeData = "GetPowerFlowRealtimeData.fcgi"
)

// Fetcher performs an HTTP GET of an absolute URL and returns the JSON
// document. Implementations must accept mislabelled content types.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return f(ctx, endpoint, params)
}

// Outcome classifies a finished request for observers.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeStatus    Outcome = "status_error"
	OutcomeMalformed Outcome = "malformed"
	OutcomeTransport Outcome = "transport"
)

// Observer is notified after every API request.
type Observer interface {
	ObserveRequest(endpoint string, outcome Outcome, elapsed time.Duration)
}

// Dialect is the operation set of one Solar API version. A dialect is
// selected once per connection and is immutable afterwards.
type Dialect interface {
	Version() APIVersion
	BaseURL() *url.URL

	InverterRealtime(ctx context.Context, req RealtimeRequest) (*Response, error)
	SensorRealtime(ctx context.Context, req RealtimeRequest) (*Response, error)
	StringRealtime(ctx context.Context, req StringRequest) (*Response, error)
	MeterRealtime(ctx context.Context, req DeviceRequest) (*Response, error)
	StorageRealtime(ctx context.Context, req DeviceRequest) (*Response, error)
	OhmpilotRealtime(ctx context.Context, req DeviceRequest) (*Response, error)

	// ActiveDevices enumerates devices of the given classes keyed by
	// class/id. No classes means System.
	ActiveDevices(ctx context.Context, classes ...domain.DeviceClass) (map[string]domain.Device, error)
	InverterInfo(ctx context.Context) (map[string]InverterInfo, error)
	LoggerInfo(ctx context.Context) (*Response, error)
	LoggerLEDInfo(ctx context.Context) (*Response, error)
	LoggerConnectionInfo(ctx context.Context) (*Response, error)

	// PowerflowRealtime fetches the power flow and, on success, unpacks
	// it into the data store before returning.
	PowerflowRealtime(ctx context.Context) (*Response, error)
}

// Config binds a dialect to a connection.
type Config struct {
	Fetcher  Fetcher
	BaseURL  *url.URL
	Store    *datastore.Store
	Observer Observer
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// NewDialect returns the dialect for version.
func NewDialect(version APIVersion, cfg Config) (Dialect, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("solar api dialect requires a fetcher")
	}
	if cfg.BaseURL == nil {
		return nil, errors.New("solar api dialect requires a base URL")
	}

	c := newCommon(version, cfg)
	switch version {
	case V0:
		return &v0{common: c}, nil
	case V1:
		return &v1{common: c}, nil
	default:
		return nil, &VersionError{Version: string(version)}
	}
}

// InverterInfo is one decorated entry of GetInverterInfo.
type InverterInfo struct {
	DeviceType int     `json:"DT"`
	PVPower    float64 `json:"PVPower"`
	Show       int     `json:"Show"`
	UniqueID   string  `json:"UniqueID"`
	ErrorCode  int     `json:"ErrorCode"`
	StatusCode int     `json:"StatusCode"`
	CustomName string  `json:"CustomName"`
	ModelName  string  `json:"Model_Name"`
	StatusText string  `json:"Status_Text"`
}

// common holds the operations shared by V0 and V1.
type common struct {
	version  APIVersion
	fetcher  Fetcher
	base     *url.URL
	store    *datastore.Store
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

func newCommon(version APIVersion, cfg Config) common {
	logger := log.With().Str("component", "solarapi").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("api_version", string(version)).Str("api_base", cfg.BaseURL.String()).Logger()

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return common{
		version:  version,
		fetcher:  cfg.Fetcher,
		base:     cfg.BaseURL,
		store:    cfg.Store,
		observer: cfg.Observer,
		logger:   logger,
		now:      now,
	}
}

func (c *common) Version() APIVersion {
	return c.version
}

func (c *common) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// resolve joins an endpoint with the negotiated base URL.
func (c *common) resolve(endpoint string) (string, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// request fetches an endpoint and validates the envelope. A response with
// a non-success status is returned together with a StatusError.
func (c *common) request(ctx context.Context, endpoint string, p url.Values) (*Response, error) {
	start := time.Now()

	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("url", target).Str("params", p.Encode()).Msg("fetching")

	raw, err := c.fetcher.Fetch(ctx, target, p)
	if err != nil {
		c.observe(endpoint, OutcomeTransport, start)
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	resp, err := NewResponse(endpoint, raw)
	if err != nil {
		if errors.Is(err, ErrTransport) {
			c.observe(endpoint, OutcomeTransport, start)
		} else {
			c.observe(endpoint, OutcomeMalformed, start)
			c.logger.Error().Err(err).RawJSON("json", raw).Msg("response form not recognized")
		}
		return nil, err
	}

	if err := resp.Err(); err != nil {
		c.observe(endpoint, OutcomeStatus, start)
		status := resp.Status()
		c.logger.Error().
			Str("endpoint", endpoint).
			Int("code", status.Code).
			Str("status_text", status.Text).
			Str("reason", status.Reason).
			Str("msg", status.UserMessage).
			RawJSON("body", resp.Body).
			Msg("error response")
		return resp, err
	}

	c.observe(endpoint, OutcomeOK, start)
	return resp, nil
}

func (c *common) observe(endpoint string, outcome Outcome, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, outcome, time.Since(start))
	}
}

// LoggerInfo queries GetLoggerInfo.
func (c *common) LoggerInfo(ctx context.Context) (*Response, error) {
	return c.request(ctx, EndpointLoggerInfo, nil)
}

// InverterInfo queries GetInverterInfo and decorates every entry with its
// model name and status text. CustomName is HTML-unescaped because the
// firmware entity-encodes user-settable names.
func (c *common) InverterInfo(ctx context.Context) (map[string]InverterInfo, error) {
	resp, err := c.request(ctx, EndpointInverterInfo, nil)
	if err != nil {
		return nil, err
	}

	var data map[string]InverterInfo
	if err := resp.DecodeData(&data); err != nil {
		return nil, err
	}

	inverters := make(map[string]InverterInfo, len(data))
	for id, info := range data {
		info.ModelName = ModelName(info.DeviceType)
		info.StatusText = InverterStatusText(info.StatusCode)
		info.CustomName = html.UnescapeString(info.CustomName)
		inverters[domain.DeviceKey(domain.DeviceClassInverter, id)] = info
	}

	return inverters, nil
}

// PowerflowRealtime queries GetPowerFlowRealtimeData and unpacks it. Points
// are written only once the whole Data object has been decoded.
func (c *common) PowerflowRealtime(ctx context.Context) (*Response, error) {
	resp, err := c.request(ctx, EndpointPowerFlowRealtimeData, nil)
	if err != nil {
		return resp, err
	}

	data, err := resp.Data()
	if err != nil {
		return resp, err
	}

	entries, err := UnpackPowerflow(data, c.now())
	if err != nil {
		return resp, &EnvelopeError{Endpoint: resp.Endpoint, Reason: err.Error(), Raw: resp.Raw()}
	}

	if c.store != nil {
		c.store.PutAll(entries)
	}
	c.logger.Debug().Int("points", len(entries)).Msg("unpacked realtime powerflow")

	return resp, nil
}

// deviceEntry is one device in a GetActiveDeviceInfo response.
type deviceEntry struct {
	DT           int      `json:"DT"`
	Serial       string   `json:"Serial"`
	ChannelNames []string `json:"ChannelNames"`
}

func (e deviceEntry) device(class domain.DeviceClass, id string) domain.Device {
	return domain.Device{
		Class:        class,
		ID:           id,
		DeviceType:   e.DT,
		ModelName:    ModelName(e.DT),
		Serial:       e.Serial,
		ChannelNames: e.ChannelNames,
	}
}

func requestedClasses(classes []domain.DeviceClass) []domain.DeviceClass {
	if len(classes) == 0 {
		return []domain.DeviceClass{domain.DeviceClassSystem}
	}

	seen := make(map[domain.DeviceClass]bool, len(classes))
	unique := make([]domain.DeviceClass, 0, len(classes))
	for _, class := range classes {
		if !seen[class] {
			seen[class] = true
			unique = append(unique, class)
		}
	}
	return unique
}
