// Package domain provides core domain implementations.
package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DeviceRegistry implements the Registry interface.
type DeviceRegistry struct {
	devices map[string]*DeviceInfo
	mutex   sync.RWMutex
}

// NewDeviceRegistry creates a new device registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[string]*DeviceInfo),
	}
}

// RegisterDevice adds or updates a device in the registry.
func (r *DeviceRegistry) RegisterDevice(device Device) error {
	if device.Class == "" || device.ID == "" {
		return fmt.Errorf("device class and id are required")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	key := device.Key()

	existing, exists := r.devices[key]
	if !exists {
		r.devices[key] = &DeviceInfo{
			Device:    device,
			FirstSeen: now,
			LastSeen:  now,
		}
		return nil
	}

	existing.Device = device
	existing.LastSeen = now
	return nil
}

// GetDevice retrieves a device by its class/id key.
func (r *DeviceRegistry) GetDevice(key string) (*DeviceInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	device, exists := r.devices[key]
	if !exists {
		return nil, false
	}

	copied := *device
	return &copied, true
}

// GetAllDevices returns all known devices ordered by key.
func (r *DeviceRegistry) GetAllDevices() []*DeviceInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	devices := make([]*DeviceInfo, 0, len(r.devices))
	for _, device := range r.devices {
		copied := *device
		devices = append(devices, &copied)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Key() < devices[j].Key()
	})

	return devices
}

// GetDevicesByClass returns all devices of one class ordered by key.
func (r *DeviceRegistry) GetDevicesByClass(class DeviceClass) []*DeviceInfo {
	all := r.GetAllDevices()

	devices := make([]*DeviceInfo, 0, len(all))
	for _, device := range all {
		if device.Class == class {
			devices = append(devices, device)
		}
	}

	return devices
}

// Clear drops every registered device.
func (r *DeviceRegistry) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.devices = make(map[string]*DeviceInfo)
}
