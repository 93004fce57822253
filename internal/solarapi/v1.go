package solarapi

import (
	"context"
	"errors"

	"github.com/resident-x/go-fronius/internal/domain"
)

// v1 speaks Solar API V1 (42,0410,2012). Devices are addressed by their
// opaque DeviceId.
type v1 struct {
	common
}

func (d *v1) realtime(ctx context.Context, op, endpoint string, req RealtimeRequest, collection string) (*Response, error) {
	scope, err := resolveScope(op, req.Scope, req.DeviceID)
	if err != nil {
		return nil, err
	}

	p := newParams().
		set("Scope", string(scope)).
		set("DataCollection", orDefault(req.Collection, collection))
	if scope == domain.ScopeDevice {
		p.set("DeviceId", req.DeviceID)
	}

	return d.request(ctx, endpoint, p.values())
}

func (d *v1) device(ctx context.Context, op, endpoint string, req DeviceRequest) (*Response, error) {
	scope, err := resolveScope(op, req.Scope, req.DeviceID)
	if err != nil {
		return nil, err
	}

	p := newParams().set("Scope", string(scope))
	if scope == domain.ScopeDevice {
		p.set("DeviceId", req.DeviceID)
	}

	return d.request(ctx, endpoint, p.values())
}

func (d *v1) InverterRealtime(ctx context.Context, req RealtimeRequest) (*Response, error) {
	return d.realtime(ctx, "InverterRealtime", EndpointInverterRealtimeData, req, CollectionCommonInverterData)
}

func (d *v1) SensorRealtime(ctx context.Context, req RealtimeRequest) (*Response, error) {
	return d.realtime(ctx, "SensorRealtime", EndpointSensorRealtimeData, req, CollectionNowSensorData)
}

// StringRealtime rejects TimePeriod, which V1 does not expose.
func (d *v1) StringRealtime(ctx context.Context, req StringRequest) (*Response, error) {
	if req.TimePeriod != "" {
		return nil, invalid("StringRealtime", "TimePeriod is not supported by V1")
	}

	return d.realtime(ctx, "StringRealtime", EndpointStringRealtimeData, RealtimeRequest{
		Scope:      req.Scope,
		DeviceID:   req.DeviceID,
		Collection: req.Collection,
	}, CollectionNowStringControlData)
}

func (d *v1) MeterRealtime(ctx context.Context, req DeviceRequest) (*Response, error) {
	return d.device(ctx, "MeterRealtime", EndpointMeterRealtimeData, req)
}

func (d *v1) StorageRealtime(ctx context.Context, req DeviceRequest) (*Response, error) {
	return d.device(ctx, "StorageRealtime", EndpointStorageRealtimeData, req)
}

func (d *v1) OhmpilotRealtime(ctx context.Context, req DeviceRequest) (*Response, error) {
	return d.device(ctx, "OhmpilotRealtime", EndpointOhmPilotRealtimeData, req)
}

func (d *v1) LoggerLEDInfo(ctx context.Context) (*Response, error) {
	return d.request(ctx, EndpointLoggerLEDInfo, nil)
}

// LoggerConnectionInfo is undocumented; it reports the WLAN, Solar Net and
// Solar.web connection states. A status of 2 appears to mean connected.
func (d *v1) LoggerConnectionInfo(ctx context.Context) (*Response, error) {
	return d.request(ctx, EndpointLoggerConnectionInfo, nil)
}

// ActiveDevices queries GetActiveDeviceInfo per class. The System class
// answers {class: {id: info}}; explicit classes answer {id: info}.
func (d *v1) ActiveDevices(ctx context.Context, classes ...domain.DeviceClass) (map[string]domain.Device, error) {
	devices := make(map[string]domain.Device)
	var softErr error

	for _, class := range requestedClasses(classes) {
		resp, err := d.request(ctx, EndpointActiveDeviceInfo, newParams().set("DeviceClass", string(class)).values())
		if err != nil {
			if resp != nil {
				softErr = errors.Join(softErr, err)
				continue
			}
			return nil, err
		}

		if class == domain.DeviceClassSystem {
			var data map[string]map[string]deviceEntry
			if err := resp.DecodeData(&data); err != nil {
				return nil, err
			}
			for className, entries := range data {
				nested := domain.DeviceClass(className)
				if !nested.Known() {
					d.logger.Debug().Str("device_class", className).Msg("unknown device class in system listing")
				}
				for id, entry := range entries {
					device := entry.device(nested, id)
					d.logger.Debug().Str("device_class", className).Str("device_id", id).Int("dt", entry.DT).Msg("discovered device")
					devices[device.Key()] = device
				}
			}
			continue
		}

		var data map[string]deviceEntry
		if err := resp.DecodeData(&data); err != nil {
			return nil, err
		}
		for id, entry := range data {
			device := entry.device(class, id)
			devices[device.Key()] = device
		}
	}

	return devices, softErr
}
