// Package service provides the bridge between a Fronius Datamanager and MQTT.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resident-x/go-fronius/internal/api"
	"github.com/resident-x/go-fronius/internal/config"
	"github.com/resident-x/go-fronius/internal/datamanager"
	"github.com/resident-x/go-fronius/internal/datastore"
	"github.com/resident-x/go-fronius/internal/domain"
	"github.com/resident-x/go-fronius/internal/metrics"
	"github.com/resident-x/go-fronius/internal/solarapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DiscoveryPublisher announces Home Assistant entities for data store paths.
type DiscoveryPublisher interface {
	PublishDiscovery(ctx context.Context, deviceID, model string, paths []string) error
}

// Bridge polls the Datamanager and republishes its data points.
type Bridge struct {
	config     *config.Config
	base       *url.URL
	publisher  domain.MessagePublisher
	monitoring domain.MonitoringService
	discovery  DiscoveryPublisher
	registry   domain.Registry
	store      *datastore.Store
	fetcher    solarapi.Fetcher
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	apiServer  *api.Server
	now        func() time.Time
	logger     zerolog.Logger

	mu     sync.RWMutex
	status domain.BridgeStatus

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures optional Bridge dependencies.
type Option func(*Bridge)

// WithFetcher replaces the HTTP transport to the Datamanager.
func WithFetcher(fetcher solarapi.Fetcher) Option {
	return func(b *Bridge) { b.fetcher = fetcher }
}

// WithDiscovery enables Home Assistant discovery after each poll.
func WithDiscovery(discovery DiscoveryPublisher) Option {
	return func(b *Bridge) { b.discovery = discovery }
}

// WithMetrics records bridge activity in m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(b *Bridge) {
		b.metrics = m
		b.gatherer = gatherer
	}
}

// WithRegistry replaces the device registry.
func WithRegistry(registry domain.Registry) Option {
	return func(b *Bridge) { b.registry = registry }
}

// NewBridge creates a bridge for the configured Datamanager.
func NewBridge(cfg *config.Config, publisher domain.MessagePublisher,
	monitoring domain.MonitoringService, opts ...Option) (*Bridge, error) {
	base, err := cfg.DatamanagerURL()
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		config:     cfg,
		base:       base,
		publisher:  publisher,
		monitoring: monitoring,
		registry:   domain.NewDeviceRegistry(),
		store:      datastore.New(),
		now:        time.Now,
		logger:     log.With().Str("component", "bridge").Logger(),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.fetcher == nil {
		b.fetcher = datamanager.NewTransport(cfg.RequestTimeout(),
			datamanager.WithMinInterval(cfg.MinRequestInterval()))
	}

	b.status.BaseURL = base.String()

	if cfg.API.Enabled {
		apiOpts := []api.Option{api.WithStatus(b)}
		if b.gatherer != nil {
			apiOpts = append(apiOpts, api.WithGatherer(b.gatherer))
		}
		b.apiServer = api.NewServer(cfg, b.registry, b.store, apiOpts...)
	}

	return b, nil
}

// Registry returns the device registry.
func (b *Bridge) Registry() domain.Registry {
	return b.registry
}

// Store returns the data store shared with the API.
func (b *Bridge) Store() *datastore.Store {
	return b.store
}

// Status implements domain.StatusProvider.
func (b *Bridge) Status() domain.BridgeStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Bridge) updateStatus(fn func(*domain.BridgeStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.status)
}

// Start launches the API server and the reconnect loop.
func (b *Bridge) Start(ctx context.Context) error {
	if b.apiServer != nil {
		if err := b.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		b.Run(runCtx)
	}()

	b.logger.Info().Str("datamanager", b.base.String()).Msg("Bridge started")
	return nil
}

// Stop cancels the reconnect loop and waits for it to finish.
func (b *Bridge) Stop(ctx context.Context) error {
	b.logger.Info().Msg("Stopping bridge")

	if b.cancel != nil {
		b.cancel()
		select {
		case <-b.done:
		case <-ctx.Done():
			return fmt.Errorf("bridge did not stop: %w", ctx.Err())
		}
	}

	if b.apiServer != nil {
		if err := b.apiServer.Stop(ctx); err != nil {
			b.logger.Error().Err(err).Msg("Failed to stop API server")
		}
	}

	return nil
}

// Run connects to the Datamanager and polls until ctx is cancelled. Any
// connection failure tears the connection down and reconnects after the
// configured, optionally fuzzed, delay.
func (b *Bridge) Run(ctx context.Context) {
	for {
		err := b.runConnection(ctx)
		if ctx.Err() != nil {
			return
		}

		b.logger.Error().Err(err).Msg("Datamanager connection ended")
		b.updateStatus(func(s *domain.BridgeStatus) {
			s.Connected = false
			if err != nil {
				s.LastError = err.Error()
			}
		})
		if b.metrics != nil {
			b.metrics.Reconnected()
		}

		delay := b.reconnectDelay()
		b.logger.Debug().Dur("delay", delay).Msg("Waiting for reconnect")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// reconnectDelay returns the configured delay, moved by up to 20% in
// either direction when fuzzing is enabled.
func (b *Bridge) reconnectDelay() time.Duration {
	delay := b.config.ReconnectDelay()
	if !b.config.Datamanager.FuzzReconnectDelay {
		return delay
	}
	fuzz := (rand.Float64()*2 - 1) / 5
	return delay + time.Duration(float64(delay)*fuzz)
}

// runConnection performs one connection lifecycle: negotiate, publish the
// logger and inverter descriptions, register devices, then poll.
func (b *Bridge) runConnection(ctx context.Context) error {
	base := b.base

	opts := []datamanager.Option{datamanager.WithStore(b.store), datamanager.WithClock(b.now)}
	if b.metrics != nil {
		opts = append(opts, datamanager.WithObserver(b.metrics))
	}

	client, err := datamanager.NewClient(base, b.fetcher, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	b.logger.Info().Str("datamanager", base.String()).Msg("Connecting to Datamanager")

	dialect, err := client.SolarAPI(ctx)
	if err != nil {
		return fmt.Errorf("solar api negotiation failed: %w", err)
	}

	negotiation, _ := client.Negotiation()
	b.updateStatus(func(s *domain.BridgeStatus) {
		s.Connected = true
		s.APIVersion = string(negotiation.Version)
		s.Fallback = negotiation.Fallback
		s.BaseURL = negotiation.BaseURL.String()
	})
	b.logger.Info().
		Str("api_version", string(negotiation.Version)).
		Bool("fallback", negotiation.Fallback).
		Str("api_base", negotiation.BaseURL.String()).
		Msg("Solar API negotiated")
	if lacksSolarAPIPath(negotiation) {
		b.logger.Warn().
			Str("datamanager", base.String()).
			Msg("Assuming Solar API V0, which is served below /solar_api/. Set datamanager.url to http://<host>/solar_api/ if requests fail with 404")
	}

	deviceID, model, err := b.publishLoggerInfo(ctx, dialect)
	if err != nil {
		return err
	}
	if deviceID == "" {
		deviceID = base.Hostname()
	}
	b.updateStatus(func(s *domain.BridgeStatus) { s.LoggerID = deviceID })

	if err := b.registerDevices(ctx, dialect); err != nil {
		return err
	}

	if err := b.publishInverterInfo(ctx, dialect); err != nil {
		return err
	}

	return b.pollLoop(ctx, dialect, deviceID, model)
}

// lacksSolarAPIPath reports a V0 fallback on a base URL that cannot serve
// the V0 endpoints, such as the default http://fronius/.
func lacksSolarAPIPath(n solarapi.Negotiation) bool {
	if !n.Fallback || n.BaseURL == nil {
		return false
	}
	return !strings.Contains(n.BaseURL.Path, "/solar_api")
}

// publishLoggerInfo publishes the LoggerInfo object and returns the logger
// unique id and product type for discovery.
func (b *Bridge) publishLoggerInfo(ctx context.Context, dialect solarapi.Dialect) (string, string, error) {
	resp, err := dialect.LoggerInfo(ctx)
	if err != nil {
		if !solarapi.IsSoft(err) {
			return "", "", fmt.Errorf("logger info: %w", err)
		}
		b.logger.Warn().Err(err).Msg("Logger info unavailable")
		return "", "", nil
	}

	body, err := resp.BodyObject()
	if err != nil {
		return "", "", fmt.Errorf("logger info: %w", err)
	}

	info, ok := body["LoggerInfo"].(map[string]interface{})
	if !ok {
		b.logger.Warn().Msg("Logger info response lacks LoggerInfo")
		return "", "", nil
	}

	b.logger.Debug().Interface("logger_info", info).Msg("Logger info")

	info["$ts"] = datastore.EpochSeconds(b.now())
	b.publish(ctx, "logger/info", info)

	deviceID, _ := info["UniqueID"].(string)
	model, _ := info["ProductID"].(string)
	return deviceID, model, nil
}

// registerDevices enumerates active devices into the registry.
func (b *Bridge) registerDevices(ctx context.Context, dialect solarapi.Dialect) error {
	devices, err := dialect.ActiveDevices(ctx)
	if err != nil {
		if !solarapi.IsSoft(err) {
			return fmt.Errorf("active devices: %w", err)
		}
		b.logger.Warn().Err(err).Msg("Some device classes could not be enumerated")
	}

	for key, device := range devices {
		if err := b.registry.RegisterDevice(device); err != nil {
			b.logger.Warn().Err(err).Str("device", key).Msg("Failed to register device")
		}
	}

	b.logger.Info().Int("devices", len(devices)).Msg("Active devices")
	return nil
}

type inverterInfoMessage struct {
	solarapi.InverterInfo
	Timestamp float64 `json:"$ts"`
}

// publishInverterInfo publishes the decorated GetInverterInfo entries.
func (b *Bridge) publishInverterInfo(ctx context.Context, dialect solarapi.Dialect) error {
	inverters, err := dialect.InverterInfo(ctx)
	if err != nil {
		if !solarapi.IsSoft(err) {
			return fmt.Errorf("inverter info: %w", err)
		}
		b.logger.Warn().Err(err).Msg("Inverter info unavailable")
		return nil
	}

	b.logger.Info().Int("inverters", len(inverters)).Msg("Inverter info")

	ts := datastore.EpochSeconds(b.now())
	for key, info := range inverters {
		b.publish(ctx, key+"/info", inverterInfoMessage{InverterInfo: info, Timestamp: ts})
	}
	return nil
}

// pollLoop polls the power flow until ctx is cancelled or a hard error occurs.
func (b *Bridge) pollLoop(ctx context.Context, dialect solarapi.Dialect, deviceID, model string) error {
	ticker := time.NewTicker(b.config.PollInterval())
	defer ticker.Stop()

	for {
		if err := b.poll(ctx, dialect, deviceID, model); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll runs one power flow cycle and fans the data store out.
func (b *Bridge) poll(ctx context.Context, dialect solarapi.Dialect, deviceID, model string) error {
	if _, err := dialect.PowerflowRealtime(ctx); err != nil {
		if !solarapi.IsSoft(err) {
			return fmt.Errorf("powerflow: %w", err)
		}
		b.logger.Warn().Err(err).Msg("Powerflow reported an error status")
		return nil
	}

	// Only the points of this poll are fanned out. Fields that turned null
	// since the last poll keep their old value in the store and must not be
	// republished.
	entries := b.store.Latest()
	paths := make([]string, 0, len(entries))
	readings := make(map[string]interface{}, len(entries))
	for _, entry := range entries {
		b.publish(ctx, entry.Path, entry.Point)
		paths = append(paths, entry.Path)
		readings[entry.Path] = entry.Point.Value
	}

	if b.discovery != nil {
		if err := b.discovery.PublishDiscovery(ctx, deviceID, model, paths); err != nil {
			b.logger.Warn().Err(err).Msg("Home Assistant discovery failed")
		}
	}

	if b.monitoring != nil {
		if err := b.monitoring.Send(ctx, readings); err != nil {
			b.logger.Warn().Err(err).Msg("Monitoring upload failed")
		}
	}

	if b.metrics != nil {
		b.metrics.SetPoints(b.store.Len())
	}

	b.updateStatus(func(s *domain.BridgeStatus) {
		s.LastPoll = b.now()
		s.Polls++
	})
	b.logger.Debug().Int("points", len(entries)).Msg("Poll published")

	return nil
}

// publish sends data below the configured base topic. Publish failures are
// logged; the broker client reconnects on its own.
func (b *Bridge) publish(ctx context.Context, subtopic string, data interface{}) {
	topic := strings.TrimSuffix(b.config.MQTT.Topic, "/") + "/" + subtopic
	if err := b.publisher.Publish(ctx, topic, data); err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Warn().Err(err).Str("topic", topic).Msg("Failed to publish")
	}
}
