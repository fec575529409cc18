package hardware

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// DefaultSPIFreq is the SPI clock nrzled needs for 800 kHz WS2812 timing.
const DefaultSPIFreq = 2500 * physic.KiloHertz

// pixelWriter is the part of nrzled.Dev the SPI strip uses.
type pixelWriter interface {
	Write(p []byte) (int, error)
	Halt() error
}

// SPI drives WS2812 pixels by encoding the NRZ bit-stream on SPI MOSI.
// Brightness and color order are applied in software.
type SPI struct {
	port spi.PortCloser
	dev  pixelWriter

	order      ColorOrder
	brightness uint8
	leds       []pixel.Color
	buf        []byte
}

func openSPI(cfg Config) (Strip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open spi port %q: %w", cfg.SPIPort, err)
	}

	freq := DefaultSPIFreq
	if cfg.SPIFreq > 0 {
		freq = physic.Frequency(cfg.SPIFreq) * physic.Hertz
	}

	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: cfg.Count,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to create nrzled device: %w", err)
	}

	slog.Info("spi strip ready",
		"port", cfg.SPIPort,
		"spi_freq", freq.String(),
		"count", cfg.Count,
		"color_order", cfg.ColorOrder,
	)

	s := newSPI(dev, cfg.Count, cfg.ColorOrder)
	s.port = port
	return s, nil
}

func newSPI(dev pixelWriter, n int, order ColorOrder) *SPI {
	return &SPI{
		dev:        dev,
		order:      order,
		brightness: 255,
		leds:       make([]pixel.Color, n),
		buf:        make([]byte, n*pixel.BytesPerPixel),
	}
}

func (s *SPI) Len() int { return len(s.leds) }

func (s *SPI) Leds() []pixel.Color { return s.leds }

func (s *SPI) SetBrightness(b uint8) { s.brightness = b }

// Render encodes and writes synchronously; nrzled has no async transfer.
func (s *SPI) Render() error {
	var tmp [3]byte
	for i, c := range s.leds {
		s.order.Put(tmp[:], c)
		o := i * pixel.BytesPerPixel
		s.buf[o] = scale(tmp[0], s.brightness)
		s.buf[o+1] = scale(tmp[1], s.brightness)
		s.buf[o+2] = scale(tmp[2], s.brightness)
	}
	if _, err := s.dev.Write(s.buf); err != nil {
		return fmt.Errorf("spi write failed: %w", err)
	}
	return nil
}

// Wait is a no-op: Render already blocks until the SPI transfer is done.
func (s *SPI) Wait() error { return nil }

func (s *SPI) Close() error {
	err := s.dev.Halt()
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
