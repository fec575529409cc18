package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bridge configuration
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Topology         TopologyConfig `yaml:"topology"`
	ArtNet           ArtNetConfig   `yaml:"artnet"`
	Hardware         HardwareConfig `yaml:"hardware"`
	Renderer         RendererConfig `yaml:"renderer"`
	Health           HealthConfig   `yaml:"health"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
}

// TopologyConfig maps universes onto the strip. Fixed for the process lifetime.
type TopologyConfig struct {
	PixelsPerUniverse int `yaml:"pixels_per_universe"` // default 170
	UniverseCount     int `yaml:"universe_count"`      // default 3
}

// ArtNetConfig contains the UDP listener settings
type ArtNetConfig struct {
	Bind           string          `yaml:"bind"`             // listen host, empty = all interfaces
	Port           int             `yaml:"port"`             // default 6454
	PollIntervalMS int             `yaml:"poll_interval_ms"` // read deadline (default: 100)
	DecodeErrors   string          `yaml:"decode_errors"`    // skip, fatal
	Discovery      DiscoveryConfig `yaml:"discovery"`
}

// DiscoveryConfig controls the ArtPoll responder
type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ShortName string `yaml:"short_name"` // max 17 chars on the wire
	LongName  string `yaml:"long_name"`  // max 63 chars on the wire
}

// HardwareConfig selects the LED driver
type HardwareConfig struct {
	Driver      string `yaml:"driver"`      // ws281x, spi, memory
	ColorOrder  string `yaml:"color_order"` // rgb, bgr
	GPIOPin     int    `yaml:"gpio_pin"`
	FrequencyHz int    `yaml:"frequency_hz"`
	DMAChannel  int    `yaml:"dma_channel"`
	SPIPort     string `yaml:"spi_port"`
	SPIFreqHz   int    `yaml:"spi_freq_hz"`
	ClearOnExit bool   `yaml:"clear_on_exit"` // blank the strip on shutdown
}

// RendererConfig tunes the render loop
type RendererConfig struct {
	IdleIntervalMS int `yaml:"idle_interval_ms"` // sleep when no frame is pending (default: 20)
}

// HealthConfig contains the HTTP health/metrics/preview server settings
type HealthConfig struct {
	Addr    string `yaml:"addr"`    // default ":8080", empty disables the server
	Preview bool   `yaml:"preview"` // serve /preview websocket
}

// MQTTConfig contains MQTT broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker            string          `yaml:"broker"`
	Topics            MQTTTopics      `yaml:"topics"`
	QoS               map[string]byte `yaml:"qos"`
	StatusIntervalS   int             `yaml:"status_interval_s"`   // default 10
	PreviewIntervalMS int             `yaml:"preview_interval_ms"` // 0 disables frame preview
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Control string `yaml:"control"`
	Status  string `yaml:"status"`
	Preview string `yaml:"preview"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the built-in defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a valid configuration for running without a file.
func Default() *Config {
	cfg := defaults()
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: built-in defaults are invalid: %v", err))
	}
	return cfg
}

// defaults covers the fields whose zero value is meaningful (booleans that
// default to true). Everything else is filled by Validate.
func defaults() *Config {
	return &Config{
		ArtNet: ArtNetConfig{
			Discovery: DiscoveryConfig{Enabled: true},
		},
		Hardware: HardwareConfig{
			ClearOnExit: true,
		},
		Health: HealthConfig{
			Addr:    ":8080",
			Preview: true,
		},
	}
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// PollInterval returns the listener read deadline.
func (c *ArtNetConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ListenAddr returns the host:port the listener binds.
func (c *ArtNetConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// IdleInterval returns the renderer idle sleep.
func (c *RendererConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalMS) * time.Millisecond
}

// Enabled reports whether an MQTT broker is configured.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// StatusInterval returns the telemetry publish period.
func (c *MQTTConfig) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalS) * time.Second
}

// PreviewInterval returns the minimum gap between preview frames (0 = off).
func (c *MQTTConfig) PreviewInterval() time.Duration {
	return time.Duration(c.PreviewIntervalMS) * time.Millisecond
}
