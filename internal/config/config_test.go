package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)

	// Datamanager defaults
	assert.Equal(t, "http://fronius/", cfg.Datamanager.URL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.MinRequestInterval())
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.ReconnectDelay())
	assert.True(t, cfg.Datamanager.FuzzReconnectDelay)

	// API defaults
	assert.Equal(t, true, cfg.API.Enabled)
	assert.Equal(t, "0.0.0.0", cfg.API.Host)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, true, cfg.API.Metrics)

	// MQTT defaults
	assert.Equal(t, true, cfg.MQTT.Enabled)
	assert.Equal(t, "localhost", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "fronius", cfg.MQTT.Topic)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.Equal(t, true, cfg.MQTT.Retain)
	assert.Equal(t, 5, cfg.MQTT.ConnectionRetryAttempts)
	assert.Equal(t, 2, cfg.MQTT.ConnectionRetryBaseDelay)
	assert.Equal(t, 10, cfg.MQTT.ConnectionTimeout)
	assert.Equal(t, "homeassistant", cfg.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix)

	// PVOutput defaults
	assert.Equal(t, false, cfg.PVOutput.Enabled)
	assert.Equal(t, 5, cfg.PVOutput.UpdateLimitMinutes)
	assert.NotEmpty(t, cfg.PVOutput.Endpoint)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigWithNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent_config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config")
}

func TestLoadConfigWithValidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "fronius.yaml")

	configContent := `
log_level: debug
datamanager:
  url: http://192.168.1.20
  request_timeout_seconds: 5
  min_request_interval_ms: 100
  poll_interval_seconds: 2.5
  reconnect_delay_seconds: 60
  fuzz_reconnect_delay: false
api:
  enabled: false
  host: 10.0.0.5
  port: 9100
  metrics: false
mqtt:
  enabled: false
  host: broker.home.lan
  port: 8883
  username: testuser
  password: testpass
  topic: test/topic
  qos: 2
  retain: false
  connection_retry_attempts: 3
  connection_retry_base_delay_seconds: 5
  connection_timeout_seconds: 15
  homeassistant_autodiscovery:
    enabled: true
    discovery_prefix: ha
pvoutput:
  enabled: true
  api_key: pv-key-123
  system_id: "4711"
  update_limit_minutes: 10
`

	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "debug", cfg.LogLevel)

	// Datamanager config
	assert.Equal(t, "http://192.168.1.20", cfg.Datamanager.URL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.MinRequestInterval())
	assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, time.Minute, cfg.ReconnectDelay())
	assert.False(t, cfg.Datamanager.FuzzReconnectDelay)

	base, err := cfg.DatamanagerURL()
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20/", base.String())

	// API config
	assert.Equal(t, false, cfg.API.Enabled)
	assert.Equal(t, "10.0.0.5", cfg.API.Host)
	assert.Equal(t, 9100, cfg.API.Port)
	assert.Equal(t, false, cfg.API.Metrics)

	// MQTT config
	assert.Equal(t, false, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.home.lan", cfg.MQTT.Host)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, "testuser", cfg.MQTT.Username)
	assert.Equal(t, "testpass", cfg.MQTT.Password)
	assert.Equal(t, "test/topic", cfg.MQTT.Topic)
	assert.Equal(t, 2, cfg.MQTT.QoS)
	assert.Equal(t, false, cfg.MQTT.Retain)
	assert.Equal(t, 3, cfg.MQTT.ConnectionRetryAttempts)
	assert.Equal(t, 5, cfg.MQTT.ConnectionRetryBaseDelay)
	assert.Equal(t, 15, cfg.MQTT.ConnectionTimeout)
	assert.True(t, cfg.MQTT.HomeAssistantAutoDiscovery.Enabled)
	assert.Equal(t, "ha", cfg.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix)
	assert.Equal(t, "Fronius", cfg.MQTT.HomeAssistantAutoDiscovery.DeviceManufacturer, "unset keys keep defaults")

	// PVOutput config
	assert.Equal(t, true, cfg.PVOutput.Enabled)
	assert.Equal(t, "pv-key-123", cfg.PVOutput.APIKey)
	assert.Equal(t, "4711", cfg.PVOutput.SystemID)
	assert.Equal(t, 10, cfg.PVOutput.UpdateLimitMinutes)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("FRONIUS_DATAMANAGER_URL", "http://10.0.0.7/")
	t.Setenv("FRONIUS_MQTT_HOST", "broker.lan")
	t.Setenv("FRONIUS_MQTT_QOS", "0")
	t.Setenv("FRONIUS_DATAMANAGER_POLL_INTERVAL_SECONDS", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.7/", cfg.Datamanager.URL)
	assert.Equal(t, "broker.lan", cfg.MQTT.Host)
	assert.Equal(t, 0, cfg.MQTT.QoS)
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 1883, cfg.MQTT.Port)
}

func TestLoadConfigWithInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "invalid_config.yaml")

	invalidContent := `
invalid: yaml: content: [
`

	err := os.WriteFile(configFile, []byte(invalidContent), 0o644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.Datamanager.URL = "fronius" }},
		{"zero poll interval", func(c *Config) { c.Datamanager.PollIntervalSeconds = 0 }},
		{"negative reconnect delay", func(c *Config) { c.Datamanager.ReconnectDelaySeconds = -1 }},
		{"qos out of range", func(c *Config) { c.MQTT.QoS = 3 }},
		{"pvoutput without credentials", func(c *Config) { c.PVOutput.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("mqtt:\n  qos: 5\n"), 0o644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qos")
}

func TestPrint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.PVOutput.Enabled = true

	// This test mainly ensures Print() doesn't panic
	assert.NotPanics(t, func() {
		cfg.Print()
	})
}
