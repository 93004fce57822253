// Package config provides configuration management for the go-fronius application.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// FRONIUS_DATAMANAGER_URL or FRONIUS_MQTT_HOST.
const EnvPrefix = "FRONIUS"

// Config holds all application configuration.
type Config struct {
	// General settings
	LogLevel string `mapstructure:"log_level"`

	// Datamanager connection settings
	Datamanager struct {
		URL                   string  `mapstructure:"url"`
		RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
		MinRequestIntervalMS  int     `mapstructure:"min_request_interval_ms"`
		PollIntervalSeconds   float64 `mapstructure:"poll_interval_seconds"`
		ReconnectDelaySeconds float64 `mapstructure:"reconnect_delay_seconds"`
		FuzzReconnectDelay    bool    `mapstructure:"fuzz_reconnect_delay"`
	} `mapstructure:"datamanager"`

	// HTTP API settings
	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
		Metrics bool   `mapstructure:"metrics"`
	} `mapstructure:"api"`

	// MQTT settings
	MQTT struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Topic    string `mapstructure:"topic"`
		QoS      int    `mapstructure:"qos"`
		Retain   bool   `mapstructure:"retain"`

		ConnectionRetryAttempts  int `mapstructure:"connection_retry_attempts"`
		ConnectionRetryBaseDelay int `mapstructure:"connection_retry_base_delay_seconds"`
		ConnectionTimeout        int `mapstructure:"connection_timeout_seconds"`

		// Home Assistant Auto-Discovery settings
		HomeAssistantAutoDiscovery struct {
			Enabled            bool   `mapstructure:"enabled"`
			DiscoveryPrefix    string `mapstructure:"discovery_prefix"`
			DeviceName         string `mapstructure:"device_name"`
			DeviceManufacturer string `mapstructure:"device_manufacturer"`
			RetainDiscovery    bool   `mapstructure:"retain_discovery"`
		} `mapstructure:"homeassistant_autodiscovery"`
	} `mapstructure:"mqtt"`

	// PVOutput settings
	PVOutput struct {
		Enabled            bool   `mapstructure:"enabled"`
		APIKey             string `mapstructure:"api_key"`
		SystemID           string `mapstructure:"system_id"`
		UpdateLimitMinutes int    `mapstructure:"update_limit_minutes"`
		Endpoint           string `mapstructure:"endpoint"`
	} `mapstructure:"pvoutput"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
	}

	// Default datamanager settings
	// V1 devices are discovered below the host root. V0 firmware has no
	// discovery endpoint, so its URL must name the API directly, e.g.
	// http://fronius/solar_api/.
	cfg.Datamanager.URL = "http://fronius/"
	cfg.Datamanager.RequestTimeoutSeconds = 10
	cfg.Datamanager.MinRequestIntervalMS = 250
	cfg.Datamanager.PollIntervalSeconds = 1
	cfg.Datamanager.ReconnectDelaySeconds = 30
	cfg.Datamanager.FuzzReconnectDelay = true

	// Default API settings
	cfg.API.Enabled = true
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080
	cfg.API.Metrics = true

	// Default MQTT settings
	cfg.MQTT.Enabled = true
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.Topic = "fronius"
	cfg.MQTT.QoS = 1
	cfg.MQTT.Retain = true
	cfg.MQTT.ConnectionRetryAttempts = 5
	cfg.MQTT.ConnectionRetryBaseDelay = 2
	cfg.MQTT.ConnectionTimeout = 10

	// Default Home Assistant Auto-Discovery settings
	cfg.MQTT.HomeAssistantAutoDiscovery.Enabled = false
	cfg.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix = "homeassistant"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceName = "Fronius Datamanager"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceManufacturer = "Fronius"
	cfg.MQTT.HomeAssistantAutoDiscovery.RetainDiscovery = true

	// Default PVOutput settings
	cfg.PVOutput.Enabled = false
	cfg.PVOutput.UpdateLimitMinutes = 5
	cfg.PVOutput.Endpoint = "https://pvoutput.org/service/r2/addstatus.jsp"

	return cfg
}

// Load reads the configuration from a file and environment variables.
// Environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			log.Info().Str("component", "config").Msg("No configuration file found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Nested keys are only resolved from the environment when viper knows
	// them, so every key gets a default.
	registerDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func registerDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetDefault("datamanager.url", cfg.Datamanager.URL)
	v.SetDefault("datamanager.request_timeout_seconds", cfg.Datamanager.RequestTimeoutSeconds)
	v.SetDefault("datamanager.min_request_interval_ms", cfg.Datamanager.MinRequestIntervalMS)
	v.SetDefault("datamanager.poll_interval_seconds", cfg.Datamanager.PollIntervalSeconds)
	v.SetDefault("datamanager.reconnect_delay_seconds", cfg.Datamanager.ReconnectDelaySeconds)
	v.SetDefault("datamanager.fuzz_reconnect_delay", cfg.Datamanager.FuzzReconnectDelay)

	v.SetDefault("api.enabled", cfg.API.Enabled)
	v.SetDefault("api.host", cfg.API.Host)
	v.SetDefault("api.port", cfg.API.Port)
	v.SetDefault("api.metrics", cfg.API.Metrics)

	v.SetDefault("mqtt.enabled", cfg.MQTT.Enabled)
	v.SetDefault("mqtt.host", cfg.MQTT.Host)
	v.SetDefault("mqtt.port", cfg.MQTT.Port)
	v.SetDefault("mqtt.username", cfg.MQTT.Username)
	v.SetDefault("mqtt.password", cfg.MQTT.Password)
	v.SetDefault("mqtt.topic", cfg.MQTT.Topic)
	v.SetDefault("mqtt.qos", cfg.MQTT.QoS)
	v.SetDefault("mqtt.retain", cfg.MQTT.Retain)
	v.SetDefault("mqtt.connection_retry_attempts", cfg.MQTT.ConnectionRetryAttempts)
	v.SetDefault("mqtt.connection_retry_base_delay_seconds", cfg.MQTT.ConnectionRetryBaseDelay)
	v.SetDefault("mqtt.connection_timeout_seconds", cfg.MQTT.ConnectionTimeout)

	ha := cfg.MQTT.HomeAssistantAutoDiscovery
	v.SetDefault("mqtt.homeassistant_autodiscovery.enabled", ha.Enabled)
	v.SetDefault("mqtt.homeassistant_autodiscovery.discovery_prefix", ha.DiscoveryPrefix)
	v.SetDefault("mqtt.homeassistant_autodiscovery.device_name", ha.DeviceName)
	v.SetDefault("mqtt.homeassistant_autodiscovery.device_manufacturer", ha.DeviceManufacturer)
	v.SetDefault("mqtt.homeassistant_autodiscovery.retain_discovery", ha.RetainDiscovery)

	v.SetDefault("pvoutput.enabled", cfg.PVOutput.Enabled)
	v.SetDefault("pvoutput.api_key", cfg.PVOutput.APIKey)
	v.SetDefault("pvoutput.system_id", cfg.PVOutput.SystemID)
	v.SetDefault("pvoutput.update_limit_minutes", cfg.PVOutput.UpdateLimitMinutes)
	v.SetDefault("pvoutput.endpoint", cfg.PVOutput.Endpoint)
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Datamanager.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid datamanager url %q", c.Datamanager.URL)
	}
	if c.Datamanager.PollIntervalSeconds <= 0 {
		return fmt.Errorf("datamanager poll_interval_seconds must be positive, got %v", c.Datamanager.PollIntervalSeconds)
	}
	if c.Datamanager.ReconnectDelaySeconds < 0 {
		return fmt.Errorf("datamanager reconnect_delay_seconds must not be negative, got %v", c.Datamanager.ReconnectDelaySeconds)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.PVOutput.Enabled && (c.PVOutput.APIKey == "" || c.PVOutput.SystemID == "") {
		return errors.New("pvoutput requires api_key and system_id when enabled")
	}
	return nil
}

// DatamanagerURL returns the parsed datamanager base URL. A missing trailing
// slash is added so relative endpoints resolve below the path.
func (c *Config) DatamanagerURL() (*url.URL, error) {
	raw := c.Datamanager.URL
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return url.Parse(raw)
}

// PollInterval returns the delay between power flow polls.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Datamanager.PollIntervalSeconds)
}

// ReconnectDelay returns the base delay before reconnecting.
func (c *Config) ReconnectDelay() time.Duration {
	return seconds(c.Datamanager.ReconnectDelaySeconds)
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Datamanager.RequestTimeoutSeconds) * time.Second
}

// MinRequestInterval returns the minimum spacing between HTTP requests.
func (c *Config) MinRequestInterval() time.Duration {
	return time.Duration(c.Datamanager.MinRequestIntervalMS) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Print displays the current configuration.
func (c *Config) Print() {
	logger := log.With().Str("component", "config").Logger()
	logger.Info().Msg("go-fronius Configuration:")
	logger.Info().Msg("-----------------------------")
	logger.Info().Str("log_level", c.LogLevel).Msg("Log Level")

	logger.Info().
		Str("url", c.Datamanager.URL).
		Dur("poll_interval", c.PollInterval()).
		Dur("reconnect_delay", c.ReconnectDelay()).
		Bool("fuzz_reconnect_delay", c.Datamanager.FuzzReconnectDelay).
		Dur("request_timeout", c.RequestTimeout()).
		Dur("min_request_interval", c.MinRequestInterval()).
		Msg("Datamanager")

	logger.Info().Bool("enabled", c.API.Enabled).Msg("API Enabled")
	if c.API.Enabled {
		logger.Info().
			Str("host", c.API.Host).
			Int("port", c.API.Port).
			Bool("metrics", c.API.Metrics).
			Msg("API Server")
	}

	logger.Info().Bool("enabled", c.MQTT.Enabled).Msg("MQTT Enabled")
	if c.MQTT.Enabled {
		logger.Info().
			Str("host", c.MQTT.Host).
			Int("port", c.MQTT.Port).
			Str("topic", c.MQTT.Topic).
			Int("qos", c.MQTT.QoS).
			Bool("retain", c.MQTT.Retain).
			Bool("homeassistant_autodiscovery_enabled", c.MQTT.HomeAssistantAutoDiscovery.Enabled).
			Msg("MQTT Configuration")
	}

	logger.Info().Bool("enabled", c.PVOutput.Enabled).Msg("PVOutput Enabled")
	if c.PVOutput.Enabled {
		logger.Info().
			Str("system_id", c.PVOutput.SystemID).
			Int("update_limit_minutes", c.PVOutput.UpdateLimitMinutes).
			Msg("PVOutput Configuration")
	}

	logger.Info().Msg("-----------------------------")
}
