// Package pubsub provides implementations of message publishers.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/resident-x/go-fronius/internal/config"
	"github.com/resident-x/go-fronius/internal/homeassistant"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// NoopPublisher is a no-operation implementation of the MessagePublisher interface.
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-operation publisher.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Connect is a no-op for the NoopPublisher.
func (p *NoopPublisher) Connect(_ context.Context) error {
	return nil
}

// Publish is a no-op for the NoopPublisher.
func (p *NoopPublisher) Publish(_ context.Context, _ string, _ interface{}) error {
	return nil
}

// Close is a no-op for the NoopPublisher.
func (p *NoopPublisher) Close() error {
	return nil
}

// PublishObserver is told about every publish attempt.
type PublishObserver interface {
	Published(err error)
}

// MQTTPublisher implements the MessagePublisher interface for MQTT.
type MQTTPublisher struct {
	config        *config.Config
	client        mqtt.Client
	clientFactory func(*config.Config, *MQTTPublisher) mqtt.Client
	logger        zerolog.Logger
	observer      PublishObserver

	mu                sync.RWMutex
	connected         bool
	haDiscovery       *homeassistant.AutoDiscovery
	haDeviceID        string
	haModel           string
	discoveredSensors map[string]bool
	announcedPaths    map[string]bool
	birthSubscribed   bool
}

// NewMQTTPublisher creates a new MQTT publisher.
func NewMQTTPublisher(cfg *config.Config) *MQTTPublisher {
	return &MQTTPublisher{
		config:            cfg,
		clientFactory:     createMQTTClient,
		discoveredSensors: make(map[string]bool),
		announcedPaths:    make(map[string]bool),
		logger:            log.With().Str("component", "mqtt").Logger(),
	}
}

// NewMQTTPublisherWithClient creates a new MQTT publisher with a custom client (for testing).
func NewMQTTPublisherWithClient(cfg *config.Config, client mqtt.Client) *MQTTPublisher {
	p := NewMQTTPublisher(cfg)
	p.client = client
	return p
}

// SetObserver registers an observer for publish results.
func (p *MQTTPublisher) SetObserver(o PublishObserver) {
	p.observer = o
}

// availabilityTopic is where the bridge announces itself online or offline.
func availabilityTopic(cfg *config.Config) string {
	return homeassistant.AvailabilityTopic(cfg.MQTT.Topic)
}

// createMQTTClient is the default factory function for creating MQTT clients.
func createMQTTClient(cfg *config.Config, p *MQTTPublisher) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)).
		SetClientID("go-fronius-" + uuid.NewString()).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout(cfg)).
		SetWriteTimeout(publishTimeout).
		SetKeepAlive(30 * time.Second).
		SetCleanSession(true).
		SetWill(availabilityTopic(cfg), homeassistant.AvailabilityPayload(false), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}

	return mqtt.NewClient(opts)
}

func connectTimeout(cfg *config.Config) time.Duration {
	if cfg.MQTT.ConnectionTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.MQTT.ConnectionTimeout) * time.Second
}

// onConnect runs on every (re)connection. The broker may have published the
// will since the last session, so availability is announced again, and
// retained discovery configs may have been lost, so they are sent again.
func (p *MQTTPublisher) onConnect(_ mqtt.Client) {
	p.logger.Info().Msg("MQTT connection established")

	p.mu.Lock()
	p.connected = true
	p.discoveredSensors = make(map[string]bool)
	p.birthSubscribed = false
	p.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		p.publishAvailability(ctx, true)
	}()

	if p.config.MQTT.HomeAssistantAutoDiscovery.Enabled {
		go p.subscribeToBirthMessage()
	}
}

func (p *MQTTPublisher) onConnectionLost(_ mqtt.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.birthSubscribed = false
	p.mu.Unlock()
	p.logger.Warn().Err(err).Msg("MQTT connection lost")
}

// Connect establishes a connection to the MQTT broker, retrying with
// exponential backoff up to the configured number of attempts.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	if !p.config.MQTT.Enabled {
		return nil
	}

	if p.client == nil {
		p.client = p.clientFactory(p.config, p)
	}

	attempts := p.config.MQTT.ConnectionRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(p.config.MQTT.ConnectionRetryBaseDelay) * time.Second

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = p.connectOnce(ctx); err == nil {
			break
		}

		p.logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("MQTT connection attempt failed")
		if attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to connect to MQTT broker: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.publishAvailability(ctx, true)

	return nil
}

func (p *MQTTPublisher) connectOnce(ctx context.Context) error {
	timeout := connectTimeout(p.config)
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	connToken := p.client.Connect()

	select {
	case <-connectCtx.Done():
		return fmt.Errorf("failed to connect to MQTT broker: timeout after %s", timeout)
	case <-connToken.Done():
		if connToken.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", connToken.Error())
		}
	}
	return nil
}

// IsConnected reports whether the publisher believes it is connected.
func (p *MQTTPublisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// subscribeToBirthMessage subscribes to Home Assistant birth messages.
func (p *MQTTPublisher) subscribeToBirthMessage() {
	p.mu.RLock()
	skip := p.birthSubscribed || !p.connected
	p.mu.RUnlock()
	if skip {
		return
	}

	birthTopic := fmt.Sprintf("%s/status", p.config.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix)

	token := p.client.Subscribe(birthTopic, 0, p.handleBirthMessage)
	if token.Wait() && token.Error() != nil {
		p.logger.Warn().Err(token.Error()).Str("topic", birthTopic).Msg("Failed to subscribe to birth message")
		return
	}

	p.mu.Lock()
	p.birthSubscribed = true
	p.mu.Unlock()
	p.logger.Info().Str("topic", birthTopic).Msg("Subscribed to Home Assistant birth messages")
}

// handleBirthMessage clears the discovery cache when Home Assistant comes
// online so the next poll republishes every entity.
func (p *MQTTPublisher) handleBirthMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := string(msg.Payload())

	p.logger.Debug().
		Str("topic", msg.Topic()).
		Str("payload", payload).
		Msg("Received Home Assistant birth message")

	if payload == homeassistant.PayloadAvailable {
		p.logger.Info().Msg("Home Assistant came online, triggering auto-discovery refresh")
		p.mu.Lock()
		p.discoveredSensors = make(map[string]bool)
		p.mu.Unlock()
	}
}

// Publish sends data to the specified topic. Byte slices, raw JSON and
// strings are sent as they are; anything else is JSON encoded.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, data interface{}) error {
	if !p.config.MQTT.Enabled || !p.IsConnected() {
		return nil
	}

	payload, err := encode(data)
	if err != nil {
		return err
	}

	err = p.publish(ctx, topic, p.config.MQTT.Retain, payload)
	if p.observer != nil {
		p.observer.Published(err)
	}
	return err
}

func encode(data interface{}) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data to JSON: %w", err)
		}
		return b, nil
	}
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, retain bool, payload []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	token := p.client.Publish(topic, byte(p.config.MQTT.QoS), retain, payload)

	select {
	case <-publishCtx.Done():
		return fmt.Errorf("publish to %s: timeout after %s", topic, publishTimeout)
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to publish message: %w", token.Error())
		}
	}

	return nil
}

// PublishDiscovery announces Home Assistant entities for the given data
// store paths. Paths already announced since the last (re)connect or
// birth message are skipped. When the Datamanager identity changes, the
// entities announced for the previous device are removed first.
func (p *MQTTPublisher) PublishDiscovery(ctx context.Context, deviceID, model string, paths []string) error {
	ha := p.config.MQTT.HomeAssistantAutoDiscovery
	if !p.config.MQTT.Enabled || !ha.Enabled || !p.IsConnected() {
		return nil
	}

	p.mu.Lock()
	var cleanup map[string]string
	if p.haDiscovery == nil || p.haDeviceID != deviceID || p.haModel != model {
		discovery, err := homeassistant.New(homeassistant.Config{
			Enabled:            ha.Enabled,
			DiscoveryPrefix:    ha.DiscoveryPrefix,
			DeviceName:         ha.DeviceName,
			DeviceManufacturer: ha.DeviceManufacturer,
			DeviceModel:        model,
			RetainDiscovery:    ha.RetainDiscovery,
		}, p.config.MQTT.Topic, deviceID)
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("failed to setup Home Assistant discovery: %w", err)
		}

		if p.haDiscovery != nil && p.haDeviceID != deviceID {
			cleanup = p.haDiscovery.CleanupDiscoveryMessages(sortedKeys(p.announcedPaths))
			p.announcedPaths = make(map[string]bool)
			p.logger.Info().
				Str("previous_device", p.haDeviceID).
				Str("device", deviceID).
				Int("entities", len(cleanup)).
				Msg("Datamanager identity changed, removing previous Home Assistant entities")
		}

		p.haDiscovery = discovery
		p.haDeviceID = deviceID
		p.haModel = model
		p.discoveredSensors = make(map[string]bool)
	}
	discovery := p.haDiscovery
	pending := make(map[string]homeassistant.DiscoveryMessage)
	for topic, message := range discovery.GenerateDiscoveryMessages(paths) {
		if !p.discoveredSensors[topic] {
			pending[topic] = message
		}
	}
	p.mu.Unlock()

	// An empty retained config removes the entity.
	for topic, payload := range cleanup {
		if err := p.publish(ctx, topic, true, []byte(payload)); err != nil {
			p.logger.Warn().Err(err).Str("topic", topic).Msg("Failed to remove Home Assistant entity")
		}
	}

	for topic, message := range pending {
		messageJSON, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery message: %w", err)
		}

		if err := p.publish(ctx, topic, ha.RetainDiscovery, messageJSON); err != nil {
			return fmt.Errorf("failed to publish discovery message to %s: %w", topic, err)
		}

		p.mu.Lock()
		p.discoveredSensors[topic] = true
		p.mu.Unlock()
	}

	p.mu.Lock()
	for _, path := range paths {
		p.announcedPaths[path] = true
	}
	p.mu.Unlock()

	if len(pending) > 0 {
		p.logger.Debug().Int("entities", len(pending)).Msg("Published Home Assistant discovery")
	}

	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// publishAvailability announces the bridge state on the availability topic.
func (p *MQTTPublisher) publishAvailability(ctx context.Context, online bool) {
	payload := homeassistant.AvailabilityPayload(online)

	if err := p.publish(ctx, availabilityTopic(p.config), true, []byte(payload)); err != nil {
		p.logger.Warn().Err(err).Bool("online", online).Msg("Failed to publish availability")
	}
}

// Close terminates the connection to the MQTT broker.
func (p *MQTTPublisher) Close() error {
	if p.client == nil || !p.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.publishAvailability(ctx, false)

	p.client.Disconnect(250)

	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}
