package solarapi

import (
	"context"
	"errors"
	"testing"

	"github.com/resident-x/go-fronius/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDialect(t *testing.T) {
	fake := newFakeDatamanager()

	d0 := newTestDialect(t, V0, fake, nil)
	assert.Equal(t, V0, d0.Version())

	d1 := newTestDialect(t, V1, fake, nil)
	assert.Equal(t, V1, d1.Version())
	assert.Equal(t, "http://datamanager/solar_api/v1/", d1.BaseURL().String())

	_, err := NewDialect("7", Config{Fetcher: fake, BaseURL: mustURL(t, "http://datamanager/")})
	assert.ErrorIs(t, err, ErrUnsupportedAPIVersion)

	_, err = NewDialect(V1, Config{BaseURL: mustURL(t, "http://datamanager/")})
	assert.Error(t, err)

	_, err = NewDialect(V1, Config{Fetcher: fake})
	assert.Error(t, err)
}

func TestBaseURLIsACopy(t *testing.T) {
	d := newTestDialect(t, V1, newFakeDatamanager(), nil)

	u := d.BaseURL()
	u.Host = "elsewhere"

	assert.Equal(t, "datamanager", d.BaseURL().Host)
}

func TestInverterRealtimeAddressing(t *testing.T) {
	tests := []struct {
		name    string
		version APIVersion
		req     RealtimeRequest
		want    map[string]string
		absent  []string
	}{
		{
			name:    "v1 device",
			version: V1,
			req:     RealtimeRequest{DeviceID: "1"},
			want:    map[string]string{"Scope": "Device", "DeviceId": "1", "DataCollection": "CommonInverterData"},
			absent:  []string{"DeviceIndex"},
		},
		{
			name:    "v0 device",
			version: V0,
			req:     RealtimeRequest{Scope: domain.ScopeDevice, DeviceID: "3"},
			want:    map[string]string{"Scope": "Device", "DeviceIndex": "3", "DataCollection": "CommonInverterData"},
			absent:  []string{"DeviceId"},
		},
		{
			name:    "v1 system",
			version: V1,
			req:     RealtimeRequest{},
			want:    map[string]string{"Scope": "System", "DataCollection": "CommonInverterData"},
			absent:  []string{"DeviceId", "DeviceIndex"},
		},
		{
			name:    "custom collection",
			version: V1,
			req:     RealtimeRequest{DeviceID: "1", Collection: "MinMaxInverterData"},
			want:    map[string]string{"DataCollection": "MinMaxInverterData"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeDatamanager()
			fake.responses[EndpointInverterRealtimeData] = envelope(0, `{}`)
			d := newTestDialect(t, tt.version, fake, nil)

			resp, err := d.InverterRealtime(context.Background(), tt.req)
			require.NoError(t, err)
			require.NotNil(t, resp)

			req := fake.last(t)
			assert.Equal(t, "http://datamanager/solar_api/v1/GetInverterRealtimeData.cgi", req.URL)
			for k, v := range tt.want {
				assert.Equal(t, v, req.Params.Get(k), k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, req.Params, k)
			}
		})
	}
}

func TestScopeValidation(t *testing.T) {
	ctx := context.Background()

	for _, version := range []APIVersion{V0, V1} {
		t.Run("V"+string(version), func(t *testing.T) {
			fake := newFakeDatamanager()
			d := newTestDialect(t, version, fake, nil)

			_, err := d.InverterRealtime(ctx, RealtimeRequest{Scope: domain.ScopeDevice})
			assert.ErrorIs(t, err, ErrInvalidRequest)

			_, err = d.InverterRealtime(ctx, RealtimeRequest{Scope: domain.ScopeSystem, DeviceID: "1"})
			assert.ErrorIs(t, err, ErrInvalidRequest)

			_, err = d.InverterRealtime(ctx, RealtimeRequest{Scope: "Galaxy"})
			assert.ErrorIs(t, err, ErrInvalidRequest)

			assert.Zero(t, fake.count(), "invalid requests must not reach the device")
		})
	}
}

func TestV1DeviceRequests(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointMeterRealtimeData] = envelope(0, `{"0":{"PowerReal_P_Sum":-120.5}}`)
	fake.responses[EndpointStorageRealtimeData] = envelope(0, `{}`)
	fake.responses[EndpointOhmPilotRealtimeData] = envelope(0, `{}`)
	d := newTestDialect(t, V1, fake, nil)
	ctx := context.Background()

	_, err := d.MeterRealtime(ctx, DeviceRequest{})
	require.NoError(t, err)
	req := fake.last(t)
	assert.Equal(t, "System", req.Params.Get("Scope"))
	assert.NotContains(t, req.Params, "DataCollection")
	assert.NotContains(t, req.Params, "DeviceId")

	_, err = d.StorageRealtime(ctx, DeviceRequest{DeviceID: "0"})
	require.NoError(t, err)
	req = fake.last(t)
	assert.Equal(t, EndpointStorageRealtimeData, req.Endpoint)
	assert.Equal(t, "Device", req.Params.Get("Scope"))
	assert.Equal(t, "0", req.Params.Get("DeviceId"))

	_, err = d.OhmpilotRealtime(ctx, DeviceRequest{Scope: domain.ScopeDevice, DeviceID: "0"})
	require.NoError(t, err)
	assert.Equal(t, EndpointOhmPilotRealtimeData, fake.last(t).Endpoint)
}

func TestV0UnsupportedOperations(t *testing.T) {
	fake := newFakeDatamanager()
	d := newTestDialect(t, V0, fake, nil)
	ctx := context.Background()

	calls := map[string]func() (*Response, error){
		"meter":      func() (*Response, error) { return d.MeterRealtime(ctx, DeviceRequest{}) },
		"storage":    func() (*Response, error) { return d.StorageRealtime(ctx, DeviceRequest{}) },
		"ohmpilot":   func() (*Response, error) { return d.OhmpilotRealtime(ctx, DeviceRequest{}) },
		"led":        func() (*Response, error) { return d.LoggerLEDInfo(ctx) },
		"connection": func() (*Response, error) { return d.LoggerConnectionInfo(ctx) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			resp, err := call()
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrUnsupportedOperation)
		})
	}

	assert.Zero(t, fake.count())
}

func TestV0SensorAndStringRequireDevice(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointSensorRealtimeData] = envelope(0, `{}`)
	fake.responses[EndpointStringRealtimeData] = envelope(0, `{}`)
	d := newTestDialect(t, V0, fake, nil)
	ctx := context.Background()

	_, err := d.SensorRealtime(ctx, RealtimeRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = d.StringRealtime(ctx, StringRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, fake.count())

	_, err = d.SensorRealtime(ctx, RealtimeRequest{DeviceID: "2"})
	require.NoError(t, err)
	req := fake.last(t)
	assert.Equal(t, "2", req.Params.Get("DeviceIndex"))
	assert.Equal(t, CollectionNowSensorData, req.Params.Get("DataCollection"))
	assert.NotContains(t, req.Params, "Scope")

	_, err = d.StringRealtime(ctx, StringRequest{DeviceID: "1", TimePeriod: "Day"})
	require.NoError(t, err)
	req = fake.last(t)
	assert.Equal(t, "Device", req.Params.Get("Scope"))
	assert.Equal(t, "1", req.Params.Get("DeviceIndex"))
	assert.Equal(t, CollectionNowStringControlData, req.Params.Get("DataCollection"))
	assert.Equal(t, "Day", req.Params.Get("TimePeriod"))
}

func TestV1StringRealtimeRejectsTimePeriod(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointStringRealtimeData] = envelope(0, `{}`)
	d := newTestDialect(t, V1, fake, nil)

	_, err := d.StringRealtime(context.Background(), StringRequest{DeviceID: "1", TimePeriod: "Day"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, fake.count())

	_, err = d.StringRealtime(context.Background(), StringRequest{DeviceID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", fake.last(t).Params.Get("DeviceId"))
}

func TestRequestErrorPropagation(t *testing.T) {
	ctx := context.Background()

	t.Run("status error returns response", func(t *testing.T) {
		fake := newFakeDatamanager()
		fake.responses[EndpointLoggerInfo] = envelope(8, `{}`)
		d := newTestDialect(t, V1, fake, nil)

		resp, err := d.LoggerInfo(ctx)
		require.NotNil(t, resp)
		assert.ErrorIs(t, err, ErrAPIStatus)
		assert.True(t, IsSoft(err))
		assert.Equal(t, 8, resp.Status().Code)
	})

	t.Run("transport error", func(t *testing.T) {
		fake := newFakeDatamanager()
		boom := errors.New("no route to host")
		fake.errs[EndpointLoggerInfo] = boom
		d := newTestDialect(t, V1, fake, nil)

		resp, err := d.LoggerInfo(ctx)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, boom)
		assert.False(t, IsSoft(err))
	})

	t.Run("typed transport error passes through", func(t *testing.T) {
		fake := newFakeDatamanager()
		original := &TransportError{Endpoint: "x", Body: []byte("<html>"), Err: errors.New("not json")}
		fake.errs[EndpointLoggerInfo] = original
		d := newTestDialect(t, V1, fake, nil)

		_, err := d.LoggerInfo(ctx)
		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Same(t, original, te)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		fake := newFakeDatamanager()
		fake.responses[EndpointLoggerInfo] = `{"Head":{}}`
		d := newTestDialect(t, V1, fake, nil)

		resp, err := d.LoggerInfo(ctx)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})
}

func TestObserverOutcomes(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointLoggerInfo] = envelope(0, `{}`)
	fake.responses[EndpointLoggerLEDInfo] = envelope(12, `{}`)
	fake.responses[EndpointInverterInfo] = `not json`
	obs := &recordingObserver{}

	d, err := NewDialect(V1, Config{
		Fetcher:  fake,
		BaseURL:  mustURL(t, "http://datamanager/solar_api/v1/"),
		Observer: obs,
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = d.LoggerInfo(ctx)
	_, _ = d.LoggerLEDInfo(ctx)
	_, _ = d.InverterInfo(ctx)
	_, _ = d.LoggerConnectionInfo(ctx)

	assert.Equal(t, []Outcome{OutcomeOK, OutcomeStatus, OutcomeMalformed, OutcomeTransport}, obs.outcomes)
}

func TestActiveDevicesV1System(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointActiveDeviceInfo] = envelope(0, `{
		"Inverter": {"1": {"DT": 1}},
		"Meter": {"0": {"DT": 5, "Serial": "ABC"}},
		"SensorCard": {"2": {"DT": 254, "ChannelNames": ["Temp 1", "Irradiance"]}}
	}`)
	d := newTestDialect(t, V1, fake, nil)

	devices, err := d.ActiveDevices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "System", fake.last(t).Params.Get("DeviceClass"))
	require.Len(t, devices, 3)

	inverter := devices["Inverter/1"]
	assert.Equal(t, domain.DeviceClassInverter, inverter.Class)
	assert.Equal(t, "1", inverter.ID)
	assert.Equal(t, 1, inverter.DeviceType)
	assert.Equal(t, "Gateway", inverter.ModelName)

	meter := devices["Meter/0"]
	assert.Equal(t, 5, meter.DeviceType)
	assert.Equal(t, "ABC", meter.Serial)

	assert.Equal(t, []string{"Temp 1", "Irradiance"}, devices["SensorCard/2"].ChannelNames)
}

func TestActiveDevicesV1ExplicitClass(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointActiveDeviceInfo+"?DeviceClass=Meter"] = envelope(0, `{"0": {"DT": 5, "Serial": "ABC"}}`)
	d := newTestDialect(t, V1, fake, nil)

	devices, err := d.ActiveDevices(context.Background(), domain.DeviceClassMeter, domain.DeviceClassMeter)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.count(), "duplicate classes are queried once")
	require.Contains(t, devices, "Meter/0")
	assert.Equal(t, "ABC", devices["Meter/0"].Serial)
}

func TestActiveDevicesV0ExpandsSystem(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointActiveDeviceInfo+"?DeviceClass=Inverter"] = envelope(0, `{"1": {"DT": 67}}`)
	fake.responses[EndpointActiveDeviceInfo+"?DeviceClass=SensorCard"] = envelope(0, `{}`)
	fake.responses[EndpointActiveDeviceInfo+"?DeviceClass=StringControl"] = envelope(0, `{"4": {"DT": -1}}`)
	d := newTestDialect(t, V0, fake, nil)

	devices, err := d.ActiveDevices(context.Background(), domain.DeviceClassSystem)
	require.NoError(t, err)

	require.Equal(t, 3, fake.count())
	var classes []string
	for _, req := range fake.requests {
		classes = append(classes, req.Params.Get("DeviceClass"))
	}
	assert.Equal(t, []string{"Inverter", "SensorCard", "StringControl"}, classes)

	require.Len(t, devices, 2)
	assert.Equal(t, "Fronius IG 15", devices["Inverter/1"].ModelName)
	assert.Equal(t, domain.DeviceClassStringControl, devices["StringControl/4"].Class)
}

func TestActiveDevicesCollectsSoftErrors(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointActiveDeviceInfo+"?DeviceClass=Inverter"] = envelope(0, `{"1": {"DT": 1}}`)
	fake.responses[EndpointActiveDeviceInfo+"?DeviceClass=Storage"] = envelope(12, `{}`)
	d := newTestDialect(t, V1, fake, nil)

	devices, err := d.ActiveDevices(context.Background(), domain.DeviceClassInverter, domain.DeviceClassStorage)

	assert.ErrorIs(t, err, ErrAPIStatus)
	assert.Contains(t, devices, "Inverter/1")
}

func TestActiveDevicesHardErrorAborts(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointActiveDeviceInfo+"?DeviceClass=Inverter"] = `{"Head":{}}`
	d := newTestDialect(t, V1, fake, nil)

	devices, err := d.ActiveDevices(context.Background(), domain.DeviceClassInverter)

	assert.ErrorIs(t, err, ErrMalformedEnvelope)
	assert.Nil(t, devices)
}

func TestInverterInfoDecoration(t *testing.T) {
	fake := newFakeDatamanager()
	fake.responses[EndpointInverterInfo] = envelope(0, `{
		"1": {"DT": 1, "PVPower": 5000, "Show": 1, "UniqueID": "38183", "ErrorCode": 0,
		      "StatusCode": 7, "CustomName": "Garage &amp; Roof"}
	}`)
	d := newTestDialect(t, V1, fake, nil)

	inverters, err := d.InverterInfo(context.Background())
	require.NoError(t, err)

	require.Contains(t, inverters, "Inverter/1")
	info := inverters["Inverter/1"]
	assert.Equal(t, "Garage & Roof", info.CustomName)
	assert.Equal(t, "Gateway", info.ModelName)
	assert.Equal(t, "Running", info.StatusText)
	assert.Equal(t, "38183", info.UniqueID)
	assert.InDelta(t, 5000, info.PVPower, 0.001)
}

func TestLoggerInfoAvailableOnBothDialects(t *testing.T) {
	for _, version := range []APIVersion{V0, V1} {
		fake := newFakeDatamanager()
		fake.responses[EndpointLoggerInfo] = `{"Head":{"Status":{"Code":0}},"Body":{"LoggerInfo":{"UniqueID":"240.1"}}}`
		d := newTestDialect(t, version, fake, nil)

		resp, err := d.LoggerInfo(context.Background())
		require.NoError(t, err)

		body, err := resp.BodyObject()
		require.NoError(t, err)
		assert.Contains(t, body, "LoggerInfo")
	}
}
