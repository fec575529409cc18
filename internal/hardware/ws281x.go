//go:build ws281x

package hardware

import (
	"fmt"
	"log/slog"

	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"

	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// WS281x drives a strip through the rpi_ws281x PWM/DMA engine.
// Color order and brightness are applied by the C library.
type WS281x struct {
	dev  *ws2811.WS2811
	leds []pixel.Color
}

func openWS281x(cfg Config) (Strip, error) {
	opt := ws281xOptions(cfg)
	dev, err := ws2811.MakeWS2811(&opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create ws281x device: %w", err)
	}
	if err := dev.Init(); err != nil {
		dev.Fini()
		return nil, fmt.Errorf("failed to initialise ws281x device: %w", err)
	}

	slog.Info("ws281x strip ready",
		"gpio_pin", cfg.GPIOPin,
		"frequency_hz", cfg.Frequency,
		"dma", cfg.DMAChannel,
		"count", cfg.Count,
		"color_order", cfg.ColorOrder,
	)

	return &WS281x{dev: dev, leds: make([]pixel.Color, cfg.Count)}, nil
}

// ws281xOptions builds library options for cfg. DefaultOptions is a package
// variable whose Channels slice must not be written through.
func ws281xOptions(cfg Config) ws2811.Option {
	opt := ws2811.DefaultOptions
	opt.Channels = append([]ws2811.ChannelOption(nil), ws2811.DefaultOptions.Channels...)
	opt.Frequency = cfg.Frequency
	opt.DmaNum = cfg.DMAChannel
	opt.Channels[0].GpioPin = cfg.GPIOPin
	opt.Channels[0].LedCount = cfg.Count
	opt.Channels[0].Brightness = 255

	switch cfg.ColorOrder {
	case OrderBGR:
		opt.Channels[0].StripeType = ws2811.WS2811StripBGR
	default:
		opt.Channels[0].StripeType = ws2811.WS2811StripRGB
	}
	return opt
}

func (s *WS281x) Len() int { return len(s.leds) }

func (s *WS281x) Leds() []pixel.Color { return s.leds }

func (s *WS281x) SetBrightness(b uint8) {
	s.dev.SetBrightness(0, int(b))
}

// Render packs colors as 0x00RRGGBB words; the library reorders for the strip type.
func (s *WS281x) Render() error {
	out := s.dev.Leds(0)
	n := len(out)
	if len(s.leds) < n {
		n = len(s.leds)
	}
	for i := 0; i < n; i++ {
		c := s.leds[i]
		out[i] = uint32(c.R())<<16 | uint32(c.G())<<8 | uint32(c.B())
	}
	return s.dev.Render()
}

func (s *WS281x) Wait() error {
	return s.dev.Wait()
}

func (s *WS281x) Close() error {
	s.dev.Fini()
	return nil
}
