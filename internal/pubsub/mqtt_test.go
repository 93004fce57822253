package pubsub

import (
	"context"
	"errors"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/resident-x/go-fronius/internal/config"
	"github.com/resident-x/go-fronius/internal/datastore"
	"github.com/resident-x/go-fronius/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.MQTT.Enabled = true
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.Topic = "fronius"
	cfg.MQTT.QoS = 1
	cfg.MQTT.Retain = true
	cfg.MQTT.ConnectionRetryAttempts = 1
	return cfg
}

// doneToken returns a token that has already completed with err.
func doneToken(t *testing.T, err error) *mocks.MockToken {
	token := mocks.NewMockToken(t)
	done := make(chan struct{})
	close(done)
	token.EXPECT().Done().Return(done).Maybe()
	token.EXPECT().Error().Return(err).Maybe()
	token.EXPECT().Wait().Return(true).Maybe()
	return token
}

type recordingObserver struct {
	results []error
}

func (o *recordingObserver) Published(err error) {
	o.results = append(o.results, err)
}

func TestNoopPublisher(t *testing.T) {
	publisher := NewNoopPublisher()
	ctx := context.Background()

	assert.NoError(t, publisher.Connect(ctx))
	assert.NoError(t, publisher.Publish(ctx, "fronius/site/P_PV", map[string]string{"test": "data"}))
	assert.NoError(t, publisher.Close())
}

func TestNewMQTTPublisher(t *testing.T) {
	cfg := testConfig()

	publisher := NewMQTTPublisher(cfg)
	assert.NotNil(t, publisher)
	assert.Equal(t, cfg, publisher.config)
	assert.False(t, publisher.IsConnected())
	assert.Nil(t, publisher.client)
}

func TestMQTTPublisher_Connect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.MQTT.Enabled = false

	publisher := NewMQTTPublisher(cfg)
	assert.NoError(t, publisher.Connect(context.Background()))
	assert.False(t, publisher.IsConnected())
	assert.Nil(t, publisher.client, "disabled publisher must not create a client")
}

func TestMQTTPublisher_Connect(t *testing.T) {
	cfg := testConfig()
	client := mocks.NewMockClient(t)

	client.EXPECT().Connect().Return(doneToken(t, nil)).Once()
	client.EXPECT().Publish("fronius/availability", byte(1), true, []byte("online")).
		Return(doneToken(t, nil)).Once()

	publisher := NewMQTTPublisherWithClient(cfg, client)
	require.NoError(t, publisher.Connect(context.Background()))
	assert.True(t, publisher.IsConnected())
}

func TestMQTTPublisher_Connect_Error(t *testing.T) {
	cfg := testConfig()
	client := mocks.NewMockClient(t)

	client.EXPECT().Connect().Return(doneToken(t, errors.New("connection refused"))).Once()

	publisher := NewMQTTPublisherWithClient(cfg, client)
	err := publisher.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, publisher.IsConnected())
}

func TestMQTTPublisher_Connect_RetriesUntilCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.MQTT.ConnectionRetryAttempts = 3
	cfg.MQTT.ConnectionRetryBaseDelay = 60
	client := mocks.NewMockClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	client.EXPECT().Connect().RunAndReturn(func() mqtt.Token {
		cancel()
		return doneToken(t, errors.New("connection refused"))
	}).Once()

	publisher := NewMQTTPublisherWithClient(cfg, client)
	err := publisher.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMQTTPublisher_Publish_NotConnected(t *testing.T) {
	publisher := NewMQTTPublisher(testConfig())

	point := datastore.DataPoint{Value: 1000.0, Unit: "W", Time: 1700000000}
	assert.NoError(t, publisher.Publish(context.Background(), "fronius/site/P_PV", point))
}

func TestMQTTPublisher_Publish_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.MQTT.Enabled = false

	publisher := NewMQTTPublisher(cfg)
	assert.NoError(t, publisher.Publish(context.Background(), "fronius/site/P_PV", map[string]string{"test": "data"}))
}

func TestMQTTPublisher_Publish_InvalidData(t *testing.T) {
	publisher := NewMQTTPublisher(testConfig())
	publisher.connected = true

	err := publisher.Publish(context.Background(), "fronius/site/P_PV", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestMQTTPublisher_Publish_DataPoint(t *testing.T) {
	cfg := testConfig()
	cfg.MQTT.QoS = 0
	cfg.MQTT.Retain = false
	client := mocks.NewMockClient(t)
	observer := &recordingObserver{}

	client.EXPECT().Publish("fronius/site/P_PV", byte(0), false, mock.Anything).
		Run(func(_ string, _ byte, _ bool, payload interface{}) {
			assert.JSONEq(t, `{"v":1234.5,"u":"W","t":1700000000}`, string(payload.([]byte)))
		}).
		Return(doneToken(t, nil)).Once()

	publisher := NewMQTTPublisherWithClient(cfg, client)
	publisher.SetObserver(observer)
	publisher.connected = true

	point := datastore.DataPoint{Value: 1234.5, Unit: "W", Time: 1700000000}
	require.NoError(t, publisher.Publish(context.Background(), "fronius/site/P_PV", point))
	assert.Equal(t, []error{nil}, observer.results)
}

func TestMQTTPublisher_Publish_RawPayloads(t *testing.T) {
	client := mocks.NewMockClient(t)

	client.EXPECT().Publish("fronius/raw", byte(1), true, []byte(`{"a":1}`)).Return(doneToken(t, nil)).Once()
	client.EXPECT().Publish("fronius/text", byte(1), true, []byte("online")).Return(doneToken(t, nil)).Once()

	publisher := NewMQTTPublisherWithClient(testConfig(), client)
	publisher.connected = true

	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, "fronius/raw", []byte(`{"a":1}`)))
	require.NoError(t, publisher.Publish(ctx, "fronius/text", "online"))
}

func TestMQTTPublisher_Publish_Error(t *testing.T) {
	client := mocks.NewMockClient(t)
	observer := &recordingObserver{}

	client.EXPECT().Publish("fronius/site/P_PV", byte(1), true, mock.Anything).
		Return(doneToken(t, errors.New("not connected"))).Once()

	publisher := NewMQTTPublisherWithClient(testConfig(), client)
	publisher.SetObserver(observer)
	publisher.connected = true

	err := publisher.Publish(context.Background(), "fronius/site/P_PV", 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish message")
	require.Len(t, observer.results, 1)
	assert.Error(t, observer.results[0])
}

func TestMQTTPublisher_Close(t *testing.T) {
	client := mocks.NewMockClient(t)

	client.EXPECT().Publish("fronius/availability", byte(1), true, []byte("offline")).
		Return(doneToken(t, nil)).Once()
	client.EXPECT().Disconnect(uint(250)).Return().Once()

	publisher := NewMQTTPublisherWithClient(testConfig(), client)
	publisher.connected = true

	require.NoError(t, publisher.Close())
	assert.False(t, publisher.IsConnected())
}

func TestMQTTPublisher_Close_NotConnected(t *testing.T) {
	client := mocks.NewMockClient(t)

	publisher := NewMQTTPublisherWithClient(testConfig(), client)
	assert.NoError(t, publisher.Close())
}
