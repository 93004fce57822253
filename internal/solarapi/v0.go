package solarapi

import (
	"context"
	"errors"

	"github.com/resident-x/go-fronius/internal/domain"
)

// v0 speaks Solar API V0 (42,0410,2011). Devices are addressed by their
// numeric DeviceIndex.
type v0 struct {
	common
}

// v0Classes are the classes V0 can enumerate; System expands to them.
var v0Classes = []domain.DeviceClass{
	domain.DeviceClassInverter,
	domain.DeviceClassSensorCard,
	domain.DeviceClassStringControl,
}

func (d *v0) InverterRealtime(ctx context.Context, req RealtimeRequest) (*Response, error) {
	scope, err := resolveScope("InverterRealtime", req.Scope, req.DeviceID)
	if err != nil {
		return nil, err
	}

	p := newParams().
		set("Scope", string(scope)).
		set("DataCollection", orDefault(req.Collection, CollectionCommonInverterData))
	if scope == domain.ScopeDevice {
		p.set("DeviceIndex", req.DeviceID)
	}

	return d.request(ctx, EndpointInverterRealtimeData, p.values())
}

// SensorRealtime always addresses one sensor card; V0 has no system view.
func (d *v0) SensorRealtime(ctx context.Context, req RealtimeRequest) (*Response, error) {
	scope, err := resolveScope("SensorRealtime", req.Scope, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if scope != domain.ScopeDevice {
		return nil, invalid("SensorRealtime", "V0 requires a device index")
	}

	p := newParams().
		set("DeviceIndex", req.DeviceID).
		set("DataCollection", orDefault(req.Collection, CollectionNowSensorData))

	return d.request(ctx, EndpointSensorRealtimeData, p.values())
}

func (d *v0) StringRealtime(ctx context.Context, req StringRequest) (*Response, error) {
	scope, err := resolveScope("StringRealtime", req.Scope, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if scope != domain.ScopeDevice {
		return nil, invalid("StringRealtime", "V0 requires a device index")
	}

	p := newParams().
		set("Scope", string(domain.ScopeDevice)).
		set("DeviceIndex", req.DeviceID).
		set("DataCollection", orDefault(req.Collection, CollectionNowStringControlData)).
		setIf("TimePeriod", req.TimePeriod)

	return d.request(ctx, EndpointStringRealtimeData, p.values())
}

func (d *v0) MeterRealtime(context.Context, DeviceRequest) (*Response, error) {
	return nil, unsupported("MeterRealtime", d.version)
}

func (d *v0) StorageRealtime(context.Context, DeviceRequest) (*Response, error) {
	return nil, unsupported("StorageRealtime", d.version)
}

func (d *v0) OhmpilotRealtime(context.Context, DeviceRequest) (*Response, error) {
	return nil, unsupported("OhmpilotRealtime", d.version)
}

func (d *v0) LoggerLEDInfo(context.Context) (*Response, error) {
	return nil, unsupported("LoggerLEDInfo", d.version)
}

func (d *v0) LoggerConnectionInfo(context.Context) (*Response, error) {
	return nil, unsupported("LoggerConnectionInfo", d.version)
}

// ActiveDevices queries each class separately. System is not enumerable on
// V0 and is replaced by Inverter, SensorCard and StringControl.
func (d *v0) ActiveDevices(ctx context.Context, classes ...domain.DeviceClass) (map[string]domain.Device, error) {
	expanded := make([]domain.DeviceClass, 0, len(classes)+len(v0Classes))
	for _, class := range requestedClasses(classes) {
		if class == domain.DeviceClassSystem {
			expanded = append(expanded, v0Classes...)
			continue
		}
		expanded = append(expanded, class)
	}

	devices := make(map[string]domain.Device)
	var softErr error
	for _, class := range requestedClasses(expanded) {
		resp, err := d.request(ctx, EndpointActiveDeviceInfo, newParams().set("DeviceClass", string(class)).values())
		if err != nil {
			if resp != nil {
				softErr = errors.Join(softErr, err)
				continue
			}
			return nil, err
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
