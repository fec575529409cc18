package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Art-Net caps: 512 DMX bytes per universe, 15-bit port address.
const (
	maxPixelsPerUniverse = 170
	maxUniverse          = 0x7fff
)

// nrzled only drives the SPI bus at 2.5 MHz.
const spiFreqHz = 2500000

// Validate checks the configuration and fills defaults in place
func Validate(cfg *Config) error {
	// Generate instance_id if not provided
	if cfg.InstanceID == "" {
		cfg.InstanceID = "ledbridge-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateTopology(&cfg.Topology); err != nil {
		return err
	}
	if err := validateArtNet(&cfg.ArtNet); err != nil {
		return err
	}
	if err := validateHardware(&cfg.Hardware); err != nil {
		return err
	}

	if cfg.Renderer.IdleIntervalMS <= 0 {
		cfg.Renderer.IdleIntervalMS = 20
	}

	return validateMQTT(cfg)
}

func validateTopology(t *TopologyConfig) error {
	if t.PixelsPerUniverse == 0 {
		t.PixelsPerUniverse = 170
	}
	if t.UniverseCount == 0 {
		t.UniverseCount = 3
	}

	if t.PixelsPerUniverse < 1 || t.PixelsPerUniverse > maxPixelsPerUniverse {
		return fmt.Errorf("topology.pixels_per_universe must be 1..%d, got %d",
			maxPixelsPerUniverse, t.PixelsPerUniverse)
	}
	if t.UniverseCount < 1 || t.UniverseCount > maxUniverse {
		return fmt.Errorf("topology.universe_count must be 1..%d, got %d",
			maxUniverse, t.UniverseCount)
	}
	return nil
}

func validateArtNet(a *ArtNetConfig) error {
	if a.Port == 0 {
		a.Port = 6454
	}
	if a.Port < 0 || a.Port > 65535 {
		return fmt.Errorf("artnet.port must be 0..65535, got %d", a.Port)
	}
	if a.PollIntervalMS <= 0 {
		a.PollIntervalMS = 100
	}

	switch a.DecodeErrors {
	case "":
		a.DecodeErrors = "skip"
	case "skip", "fatal":
	default:
		return fmt.Errorf("artnet.decode_errors: unknown policy '%s' (must be 'skip' or 'fatal')", a.DecodeErrors)
	}

	if a.Discovery.ShortName == "" {
		a.Discovery.ShortName = "ws281x-artnet"
	}
	if a.Discovery.LongName == "" {
		a.Discovery.LongName = "Raspberry Pi WS281x Art-Net bridge"
	}
	return nil
}

func validateHardware(h *HardwareConfig) error {
	if h.Driver == "" {
		h.Driver = "ws281x"
	}
	switch h.Driver {
	case "ws281x", "spi", "memory":
	default:
		return fmt.Errorf("hardware.driver: unknown driver '%s' (must be 'ws281x', 'spi' or 'memory')", h.Driver)
	}

	h.ColorOrder = strings.ToLower(h.ColorOrder)
	switch h.ColorOrder {
	case "":
		h.ColorOrder = "rgb"
	case "rgb", "bgr":
	default:
		return fmt.Errorf("hardware.color_order: unknown order '%s' (must be 'rgb' or 'bgr')", h.ColorOrder)
	}

	// ws281x defaults match the wiring the bridge was built for: PWM0 on GPIO 12.
	if h.GPIOPin == 0 {
		h.GPIOPin = 12
	}
	if h.FrequencyHz == 0 {
		h.FrequencyHz = 800000
	}
	if h.DMAChannel == 0 {
		h.DMAChannel = 10
	}
	if h.SPIPort == "" {
		h.SPIPort = "/dev/spidev0.0"
	}
	switch h.SPIFreqHz {
	case 0:
		h.SPIFreqHz = spiFreqHz
	case spiFreqHz:
	default:
		return fmt.Errorf("hardware.spi_freq_hz: %d not supported (the spi driver runs at %d only)", h.SPIFreqHz, spiFreqHz)
	}
	return nil
}

func validateMQTT(cfg *Config) error {
	m := &cfg.MQTT
	if !m.Enabled() {
		return nil
	}

	// Set default topics if not provided
	if m.Topics.Control == "" {
		m.Topics.Control = fmt.Sprintf("ledbridge/control/%s", cfg.InstanceID)
	}
	if m.Topics.Status == "" {
		m.Topics.Status = fmt.Sprintf("ledbridge/status/%s", cfg.InstanceID)
	}
	if m.Topics.Preview == "" {
		m.Topics.Preview = fmt.Sprintf("ledbridge/preview/%s", cfg.InstanceID)
	}

	// Set default QoS if not provided
	if m.QoS == nil {
		m.QoS = map[string]byte{
			"control": 1,
			"status":  0,
			"preview": 0,
		}
	}
	for name, q := range m.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt.qos.%s must be 0, 1 or 2, got %d", name, q)
		}
	}

	if m.StatusIntervalS <= 0 {
		m.StatusIntervalS = 10
	}
	if m.PreviewIntervalMS < 0 {
		return fmt.Errorf("mqtt.preview_interval_ms must be >= 0, got %d", m.PreviewIntervalMS)
	}
	return nil
}
