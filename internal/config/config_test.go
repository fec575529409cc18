package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !strings.HasPrefix(cfg.InstanceID, "ledbridge-") {
		t.Errorf("InstanceID = %q, want ledbridge- prefix", cfg.InstanceID)
	}
	if cfg.Topology.PixelsPerUniverse != 170 || cfg.Topology.UniverseCount != 3 {
		t.Errorf("Topology = %+v, want 170x3", cfg.Topology)
	}
	if cfg.ArtNet.Port != 6454 {
		t.Errorf("ArtNet.Port = %d, want 6454", cfg.ArtNet.Port)
	}
	if cfg.ArtNet.DecodeErrors != "skip" {
		t.Errorf("DecodeErrors = %q, want skip", cfg.ArtNet.DecodeErrors)
	}
	if !cfg.ArtNet.Discovery.Enabled {
		t.Error("discovery disabled by default")
	}
	if cfg.Hardware.Driver != "ws281x" || cfg.Hardware.ColorOrder != "rgb" {
		t.Errorf("Hardware = %s/%s", cfg.Hardware.Driver, cfg.Hardware.ColorOrder)
	}
	if cfg.Hardware.GPIOPin != 12 || cfg.Hardware.FrequencyHz != 800000 || cfg.Hardware.DMAChannel != 10 {
		t.Errorf("ws281x wiring = pin %d, %d Hz, dma %d", cfg.Hardware.GPIOPin, cfg.Hardware.FrequencyHz, cfg.Hardware.DMAChannel)
	}
	if !cfg.Hardware.ClearOnExit {
		t.Error("clear_on_exit disabled by default")
	}
	if got := cfg.Renderer.IdleInterval(); got != 20*time.Millisecond {
		t.Errorf("IdleInterval() = %v, want 20ms", got)
	}
	if got := cfg.ShutdownTimeout(); got != 5*time.Second {
		t.Errorf("ShutdownTimeout() = %v, want 5s", got)
	}
	if cfg.MQTT.Enabled() {
		t.Error("MQTT enabled without a broker")
	}
	if got := cfg.ArtNet.ListenAddr(); got != ":6454" {
		t.Errorf("ListenAddr() = %q", got)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
instance_id: stage-left
topology:
  pixels_per_universe: 100
  universe_count: 4
artnet:
  bind: 127.0.0.1
  port: 6455
  decode_errors: fatal
  discovery:
    enabled: false
hardware:
  driver: memory
  color_order: BGR
  clear_on_exit: false
mqtt:
  broker: tcp://localhost:1883
  preview_interval_ms: 250
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Topology.PixelsPerUniverse != 100 || cfg.Topology.UniverseCount != 4 {
		t.Errorf("Topology = %+v", cfg.Topology)
	}
	if cfg.ArtNet.ListenAddr() != "127.0.0.1:6455" {
		t.Errorf("ListenAddr() = %q", cfg.ArtNet.ListenAddr())
	}
	if cfg.ArtNet.DecodeErrors != "fatal" || cfg.ArtNet.Discovery.Enabled {
		t.Errorf("ArtNet = %+v", cfg.ArtNet)
	}
	if cfg.Hardware.ColorOrder != "bgr" || cfg.Hardware.ClearOnExit {
		t.Errorf("Hardware = %+v", cfg.Hardware)
	}

	if !cfg.MQTT.Enabled() {
		t.Fatal("MQTT not enabled with broker set")
	}
	if cfg.MQTT.Topics.Control != "ledbridge/control/stage-left" {
		t.Errorf("Topics.Control = %q", cfg.MQTT.Topics.Control)
	}
	if cfg.MQTT.Topics.Status != "ledbridge/status/stage-left" {
		t.Errorf("Topics.Status = %q", cfg.MQTT.Topics.Status)
	}
	if cfg.MQTT.QoS["control"] != 1 {
		t.Errorf("QoS = %v", cfg.MQTT.QoS)
	}
	if cfg.MQTT.StatusInterval() != 10*time.Second {
		t.Errorf("StatusInterval() = %v", cfg.MQTT.StatusInterval())
	}
	if cfg.MQTT.PreviewInterval() != 250*time.Millisecond {
		t.Errorf("PreviewInterval() = %v", cfg.MQTT.PreviewInterval())
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad instance id", "instance_id: Stage_Left", "instance_id"},
		{"too many pixels", "topology: {pixels_per_universe: 171}", "pixels_per_universe"},
		{"negative universes", "topology: {universe_count: -1}", "universe_count"},
		{"bad port", "artnet: {port: 70000}", "artnet.port"},
		{"bad policy", "artnet: {decode_errors: panic}", "decode_errors"},
		{"bad driver", "hardware: {driver: dmx}", "hardware.driver"},
		{"bad order", "hardware: {color_order: grb}", "color_order"},
		{"unsupported spi freq", "hardware: {spi_freq_hz: 4000000}", "spi_freq_hz"},
		{"bad qos", `mqtt: {broker: "tcp://x:1883", qos: {control: 3}}`, "mqtt.qos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledbridge.yaml")
	if err := os.WriteFile(path, []byte("hardware:\n  driver: spi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hardware.Driver != "spi" || cfg.Hardware.SPIPort != "/dev/spidev0.0" || cfg.Hardware.SPIFreqHz != 2500000 {
		t.Errorf("Hardware = %+v", cfg.Hardware)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
