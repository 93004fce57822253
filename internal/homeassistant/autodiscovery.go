// Package homeassistant provides MQTT auto-discovery support for Home Assistant integration.
package homeassistant

import (
	_ "embed"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed layouts/fronius_sensors.yaml
var froniusSensorsYAML []byte

// Config holds the Home Assistant auto-discovery configuration.
type Config struct {
	Enabled            bool
	DiscoveryPrefix    string
	DeviceName         string
	DeviceManufacturer string
	DeviceModel        string
	SwVersion          string
	RetainDiscovery    bool
}

// SensorConfig represents a sensor configuration from the layouts YAML.
type SensorConfig struct {
	Name              string  `yaml:"name"`
	DeviceClass       string  `yaml:"device_class,omitempty"`
	UnitOfMeasurement string  `yaml:"unit_of_measurement,omitempty"`
	StateClass        string  `yaml:"state_class,omitempty"`
	Category          string  `yaml:"category"`
	Icon              string  `yaml:"icon,omitempty"`
	Scale             float64 `yaml:"scale,omitempty"`
}

// LayoutConfig represents the full layout configuration for Home Assistant sensors.
type LayoutConfig struct {
	Version     string                  `yaml:"version"`
	Description string                  `yaml:"description"`
	Sensors     map[string]SensorConfig `yaml:"sensors"`
}

// DiscoveryMessage represents a Home Assistant MQTT discovery message.
type DiscoveryMessage struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	StateTopic          string     `json:"state_topic"`
	ValueTemplate       string     `json:"value_template"`
	DeviceClass         string     `json:"device_class,omitempty"`
	UnitOfMeasurement   string     `json:"unit_of_measurement,omitempty"`
	StateClass          string     `json:"state_class,omitempty"`
	Icon                string     `json:"icon,omitempty"`
	EntityCategory      string     `json:"entity_category,omitempty"`
	Device              DeviceInfo `json:"device"`
	AvailabilityTopic   string     `json:"availability_topic,omitempty"`
	PayloadAvailable    string     `json:"payload_available,omitempty"`
	PayloadNotAvailable string     `json:"payload_not_available,omitempty"`
}

// DeviceInfo represents device information for Home Assistant.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SwVersion    string   `json:"sw_version,omitempty"`
}

// Availability payloads.
const (
	PayloadAvailable    = "online"
	PayloadNotAvailable = "offline"
)

// AutoDiscovery handles Home Assistant MQTT auto-discovery for one
// Datamanager. Entities are derived from data store paths.
type AutoDiscovery struct {
	config       Config
	layoutConfig *LayoutConfig
	baseTopic    string
	deviceID     string
}

var unsafeID = regexp.MustCompile(`[^a-z0-9_-]+`)

// New creates a new Home Assistant auto-discovery instance. baseTopic is
// the MQTT prefix data points are published under; deviceID identifies
// the Datamanager, typically its logger unique id.
func New(config Config, baseTopic, deviceID string) (*AutoDiscovery, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	ad := &AutoDiscovery{
		config:    config,
		baseTopic: strings.TrimSuffix(baseTopic, "/"),
		deviceID:  deviceID,
	}

	if err := ad.loadLayoutConfig(froniusSensorsYAML); err != nil {
		return nil, fmt.Errorf("failed to load layout config: %w", err)
	}

	return ad, nil
}

// loadLayoutConfig loads the Home Assistant sensor configuration from YAML.
func (ad *AutoDiscovery) loadLayoutConfig(data []byte) error {
	var config LayoutConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to unmarshal Home Assistant sensors config: %w", err)
	}

	ad.layoutConfig = &config
	log.Debug().
		Str("component", "homeassistant").
		Str("version", config.Version).
		Int("sensor_count", len(config.Sensors)).
		Msg("Home Assistant layout configuration loaded from YAML")

	return nil
}

// Sensor returns the layout entry for a data store path.
func (ad *AutoDiscovery) Sensor(storePath string) (SensorConfig, bool) {
	sc, ok := ad.layoutConfig.Sensors[path.Base(storePath)]
	return sc, ok
}

// GenerateDiscoveryMessages returns one discovery message per data store
// path the layout knows, keyed by discovery topic.
func (ad *AutoDiscovery) GenerateDiscoveryMessages(paths []string) map[string]DiscoveryMessage {
	messages := make(map[string]DiscoveryMessage)

	for _, p := range paths {
		sensorConfig, ok := ad.Sensor(p)
		if !ok {
			continue
		}
		messages[ad.getDiscoveryTopic(p)] = ad.createDiscoveryMessage(p, sensorConfig)
	}

	return messages
}

func (ad *AutoDiscovery) createDiscoveryMessage(storePath string, sensorConfig SensorConfig) DiscoveryMessage {
	var entityCategory string
	if sensorConfig.Category == "diagnostic" {
		entityCategory = "diagnostic"
	}

	swVersion := ad.config.SwVersion
	if swVersion == "" {
		swVersion = "go-fronius"
	}

	return DiscoveryMessage{
		Name:              entityName(storePath, sensorConfig.Name),
		UniqueID:          ad.nodeID() + "_" + objectID(storePath),
		StateTopic:        ad.baseTopic + "/" + storePath,
		ValueTemplate:     valueTemplate(sensorConfig.Scale),
		DeviceClass:       sensorConfig.DeviceClass,
		UnitOfMeasurement: sensorConfig.UnitOfMeasurement,
		StateClass:        sensorConfig.StateClass,
		Icon:              sensorConfig.Icon,
		EntityCategory:    entityCategory,
		Device: DeviceInfo{
			Identifiers:  []string{ad.nodeID()},
			Name:         ad.config.DeviceName,
			Manufacturer: ad.config.DeviceManufacturer,
			Model:        ad.config.DeviceModel,
			SwVersion:    swVersion,
		},
		AvailabilityTopic:   ad.GetAvailabilityTopic(),
		PayloadAvailable:    PayloadAvailable,
		PayloadNotAvailable: PayloadNotAvailable,
	}
}

// valueTemplate extracts the value from a {v,u,t} data point document.
func valueTemplate(scale float64) string {
	if scale == 0 || scale == 1 {
		return "{{ value_json.v }}"
	}
	return fmt.Sprintf("{{ (value_json.v * %g) | round(1) }}", scale)
}

// entityName prefixes the sensor name with the device a path belongs to,
// e.g. "Inverters/1/P" becomes "Inverter 1 Power".
func entityName(storePath, name string) string {
	parts := strings.Split(storePath, "/")
	switch {
	case len(parts) == 3 && parts[0] == "Inverters":
		return fmt.Sprintf("Inverter %s %s", parts[1], name)
	case len(parts) == 3 && parts[0] == "SecondaryMeters":
		return fmt.Sprintf("Secondary Meter %s %s", parts[1], name)
	case len(parts) == 4 && parts[0] == "Smartloads":
		return fmt.Sprintf("%s %s %s", strings.TrimSuffix(parts[1], "s"), parts[2], name)
	default:
		return name
	}
}

func objectID(storePath string) string {
	return strings.Trim(unsafeID.ReplaceAllString(strings.ToLower(storePath), "_"), "_")
}

func (ad *AutoDiscovery) nodeID() string {
	return "fronius_" + objectID(ad.deviceID)
}

// getDiscoveryTopic generates the MQTT discovery topic for a data store path:
// <discovery_prefix>/sensor/<node_id>/<object_id>/config
func (ad *AutoDiscovery) getDiscoveryTopic(storePath string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", ad.config.DiscoveryPrefix, ad.nodeID(), objectID(storePath))
}

// GetAvailabilityTopic returns the availability topic for the device.
func (ad *AutoDiscovery) GetAvailabilityTopic() string {
	return AvailabilityTopic(ad.baseTopic)
}

// AvailabilityTopic is the topic below baseTopic that carries the bridge
// availability payloads.
func AvailabilityTopic(baseTopic string) string {
	return strings.TrimSuffix(baseTopic, "/") + "/availability"
}

// AvailabilityPayload returns the availability payload.
func AvailabilityPayload(online bool) string {
	if online {
		return PayloadAvailable
	}
	return PayloadNotAvailable
}

// CleanupDiscoveryMessages generates empty messages that remove the
// entities of the given paths from Home Assistant.
func (ad *AutoDiscovery) CleanupDiscoveryMessages(paths []string) map[string]string {
	messages := make(map[string]string)
	for _, p := range paths {
		if _, ok := ad.Sensor(p); ok {
			messages[ad.getDiscoveryTopic(p)] = ""
		}
	}
	return messages
}
