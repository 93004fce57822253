// Package domain provides core domain models and interfaces for the go-fronius application.
package domain

import (
	"context"
	"encoding/json"
	"path"
	"time"
)

// DeviceClass identifies a family of devices attached to a Datamanager.
type DeviceClass string

// Device classes known to the Solar API.
const (
	DeviceClassSystem        DeviceClass = "System"
	DeviceClassInverter      DeviceClass = "Inverter"
	DeviceClassStorage       DeviceClass = "Storage"
	DeviceClassOhmpilot      DeviceClass = "Ohmpilot"
	DeviceClassSensorCard    DeviceClass = "SensorCard"
	DeviceClassStringControl DeviceClass = "StringControl"
	DeviceClassMeter         DeviceClass = "Meter"
)

// String returns the wire name of the device class.
func (c DeviceClass) String() string {
	return string(c)
}

// Known reports whether the class is one the Solar API documents.
func (c DeviceClass) Known() bool {
	switch c {
	case DeviceClassSystem, DeviceClassInverter, DeviceClassStorage, DeviceClassOhmpilot,
		DeviceClassSensorCard, DeviceClassStringControl, DeviceClassMeter:
		return true
	}
	return false
}

// Scope selects system-wide or single-device data.
type Scope string

const (
	ScopeSystem Scope = "System"
	ScopeDevice Scope = "Device"
)

// Device is one entry of an active device enumeration.
type Device struct {
	Class        DeviceClass `json:"device_class"`
	ID           string      `json:"id"`
	DeviceType   int         `json:"device_type"`
	ModelName    string      `json:"model_name"`
	Serial       string      `json:"serial,omitempty"`
	ChannelNames []string    `json:"channel_names,omitempty"`
}

// Key returns the class/id path under which the device is stored.
func (d Device) Key() string {
	return DeviceKey(d.Class, d.ID)
}

// String renders the device as compact JSON, mainly for logging.
func (d Device) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return d.Key()
	}
	return string(b)
}

// DeviceKey joins a device class and id into a path segment.
func DeviceKey(class DeviceClass, id string) string {
	return path.Join(string(class), id)
}

// MessagePublisher defines the interface for publishing telemetry.
type MessagePublisher interface {
	// Connect establishes a connection to the messaging system
	Connect(ctx context.Context) error

	// Publish sends data to the specified topic
	Publish(ctx context.Context, topic string, data interface{}) error

	// Close terminates the connection to the messaging system
	Close() error
}

// MonitoringService defines the interface for external monitoring services.
type MonitoringService interface {
	// Send forwards the latest site readings to the monitoring service
	Send(ctx context.Context, readings map[string]interface{}) error

	// Connect establishes a connection to the service
	Connect() error

	// Close terminates the connection to the service
	Close() error
}

// BridgeStatus summarises the Datamanager connection.
type BridgeStatus struct {
	Connected  bool      `json:"connected"`
	BaseURL    string    `json:"base_url"`
	APIVersion string    `json:"api_version,omitempty"`
	Fallback   bool      `json:"fallback"`
	LoggerID   string    `json:"logger_id,omitempty"`
	LastPoll   time.Time `json:"last_poll,omitempty"`
	Polls      uint64    `json:"polls"`
	LastError  string    `json:"last_error,omitempty"`
}

// StatusProvider reports the current bridge status.
type StatusProvider interface {
	Status() BridgeStatus
}

// Registry keeps track of devices discovered on the Datamanager.
type Registry interface {
	// RegisterDevice adds or updates a device in the registry
	RegisterDevice(device Device) error

	// GetDevice retrieves a device by its class/id key
	GetDevice(key string) (*DeviceInfo, bool)

	// GetAllDevices returns all known devices
	GetAllDevices() []*DeviceInfo

	// GetDevicesByClass returns all devices of one class
	GetDevicesByClass(class DeviceClass) []*DeviceInfo

	// Clear drops every registered device
	Clear()
}

// DeviceInfo contains a registered device and when it was last reported.
type DeviceInfo struct {
	Device
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
