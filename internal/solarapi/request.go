package solarapi

import (
	"net/url"

	"github.com/resident-x/go-fronius/internal/domain"
)

// Default DataCollection values per realtime request.
const (
	CollectionCommonInverterData   = "CommonInverterData"
	CollectionNowSensorData        = "NowSensorData"
	CollectionNowStringControlData = "NowStringControlData"
)

// RealtimeRequest addresses GetInverterRealtimeData and
// GetSensorRealtimeData. An empty Scope means Device when DeviceID is set
// and System otherwise.
type RealtimeRequest struct {
	Scope      domain.Scope
	DeviceID   string
	Collection string
}

// StringRequest addresses GetStringRealtimeData. TimePeriod is only
// understood by V0.
type StringRequest struct {
	Scope      domain.Scope
	DeviceID   string
	Collection string
	TimePeriod string
}

// DeviceRequest addresses the V1 meter, storage and Ohmpilot requests,
// which take no DataCollection.
type DeviceRequest struct {
	Scope    domain.Scope
	DeviceID string
}

// resolveScope applies the scope defaulting rule and checks that the
// device id is present exactly when the scope is Device.
func resolveScope(op string, scope domain.Scope, deviceID string) (domain.Scope, error) {
	if scope == "" {
		if deviceID != "" {
			return domain.ScopeDevice, nil
		}
		return domain.ScopeSystem, nil
	}

	switch scope {
	case domain.ScopeDevice:
		if deviceID == "" {
			return "", invalid(op, "device scope requires a device id")
		}
	case domain.ScopeSystem:
		if deviceID != "" {
			return "", invalid(op, "system scope does not take a device id")
		}
	default:
		return "", invalid(op, "unknown scope "+string(scope))
	}
	return scope, nil
}

// params is a small builder over url.Values.
type params url.Values

func newParams() params {
	return params(url.Values{})
}

func (p params) set(key, value string) params {
	url.Values(p).Set(key, value)
	return p
}

func (p params) setIf(key, value string) params {
	if value != "" {
		url.Values(p).Set(key, value)
	}
	return p
}

func (p params) values() url.Values {
	return url.Values(p)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
