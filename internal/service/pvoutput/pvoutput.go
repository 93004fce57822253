// Package pvoutput provides the PVOutput.org monitoring service implementation.
package pvoutput

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/resident-x/go-fronius/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Reading paths the uploader consumes.
const (
	PathEnergyDay = "site/E_Day"
	PathPVPower   = "site/P_PV"
	PathLoadPower = "site/P_Load"
)

// NoopClient is a no-operation implementation of the MonitoringService interface.
type NoopClient struct{}

// NewNoopClient creates a new no-operation PVOutput client.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// Send is a no-op for the NoopClient.
func (c *NoopClient) Send(_ context.Context, _ map[string]interface{}) error {
	return nil
}

// Connect is a no-op for the NoopClient.
func (c *NoopClient) Connect() error {
	return nil
}

// Close is a no-op for the NoopClient.
func (c *NoopClient) Close() error {
	return nil
}

// Client implements the MonitoringService interface for PVOutput.org.
type Client struct {
	config     *config.Config
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger

	mutex      sync.Mutex
	lastUpdate time.Time
}

// NewClient creates a new PVOutput client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		logger:     log.With().Str("component", "pvoutput").Logger(),
	}
}

// Connect establishes a connection to the service.
// For PVOutput, this is a no-op as each request is independent.
func (c *Client) Connect() error {
	return nil
}

// Send uploads one status from the site readings. Calls inside the update
// limit window are skipped without error.
func (c *Client) Send(ctx context.Context, readings map[string]interface{}) error {
	if !c.config.PVOutput.Enabled {
		return nil
	}

	if c.config.PVOutput.APIKey == "" || c.config.PVOutput.SystemID == "" {
		return fmt.Errorf("PVOutput API key and/or System ID not configured")
	}

	if !c.canUpdate() {
		return nil
	}

	params := c.buildParams(readings)
	if !params.Has("v1") && !params.Has("v2") && !params.Has("v4") {
		c.logger.Debug().Msg("No site readings available, skipping PVOutput update")
		return nil
	}

	if err := c.makeRequest(ctx, params); err != nil {
		return err
	}

	c.updateTimestamp()
	return nil
}

// buildParams maps site readings onto addstatus parameters: daily energy
// (v1), generation power (v2) and consumption power (v4).
func (c *Client) buildParams(readings map[string]interface{}) url.Values {
	now := c.now()

	params := url.Values{}
	params.Set("d", now.Format("20060102"))
	params.Set("t", now.Format("15:04"))

	if energy, ok := number(readings[PathEnergyDay]); ok {
		params.Set("v1", strconv.FormatFloat(energy, 'f', 0, 64))
	}

	// Load power is negative while consuming.
	if load, ok := number(readings[PathLoadPower]); ok {
		params.Set("v4", strconv.FormatFloat(math.Abs(load), 'f', 0, 64))
	}

	// PV power is null, and so missing from a poll, at night. Generation
	// is then reported as zero alongside the other site readings.
	if pv, ok := number(readings[PathPVPower]); ok {
		params.Set("v2", strconv.FormatFloat(math.Max(pv, 0), 'f', 0, 64))
	} else if params.Has("v1") || params.Has("v4") {
		params.Set("v2", "0")
	}

	return params
}

// makeRequest makes an HTTP POST request to PVOutput API.
func (c *Client) makeRequest(ctx context.Context, params url.Values) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.config.PVOutput.Endpoint,
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return fmt.Errorf("failed to create PVOutput request: %w", err)
	}

	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("X-Pvoutput-Apikey", c.config.PVOutput.APIKey)
	req.Header.Add("X-Pvoutput-SystemId", c.config.PVOutput.SystemID)
	req.Header.Add("X-Rate-Limit", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("PVOutput request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // Closing response body in defer, error not critical
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("PVOutput returned status code %d", resp.StatusCode)
	}

	c.logger.Debug().Str("params", params.Encode()).Msg("PVOutput status uploaded")
	return nil
}

// number converts a reading to float64. Missing and null readings are not numbers.
func number(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Close terminates the connection to the service.
func (c *Client) Close() error {
	return nil
}

// canUpdate checks if an update is allowed based on rate limiting.
func (c *Client) canUpdate() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.lastUpdate.IsZero() {
		return true
	}

	updateInterval := time.Duration(c.config.PVOutput.UpdateLimitMinutes) * time.Minute
	return c.now().Sub(c.lastUpdate) >= updateInterval
}

// updateTimestamp records when an update was made.
func (c *Client) updateTimestamp() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lastUpdate = c.now()
}
