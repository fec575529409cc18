// Package hardware drives the physical LED strip.
//
// The renderer only sees the Strip interface. Concrete drivers:
//
//   - ws281x: PWM/DMA on a Raspberry Pi GPIO (cgo, build tag "ws281x")
//   - spi:    WS2812 bit-stream over SPI MOSI via periph.io
//   - memory: in-process buffer for development and tests
package hardware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// Strip is a single LED output channel.
//
// Contract:
//   - Leds returns the driver-owned buffer of length Len; writes take effect on Render
//   - Render starts a transmission, Wait blocks until it completes
//   - Not safe for concurrent use: one renderer goroutine owns the strip
type Strip interface {
	Len() int
	SetBrightness(b uint8)
	Leds() []pixel.Color
	Render() error
	Wait() error
	Close() error
}

// ColorOrder is the byte order the strip expects on the wire.
type ColorOrder string

// Supported color orders.
const (
	OrderRGB ColorOrder = "rgb"
	OrderBGR ColorOrder = "bgr"
)

// ErrUnknownColorOrder is returned by ParseColorOrder.
var ErrUnknownColorOrder = errors.New("unknown color order")

// ParseColorOrder accepts "rgb" or "bgr", case-insensitively.
func ParseColorOrder(s string) (ColorOrder, error) {
	switch ColorOrder(strings.ToLower(strings.TrimSpace(s))) {
	case OrderRGB:
		return OrderRGB, nil
	case OrderBGR:
		return OrderBGR, nil
	default:
		return "", fmt.Errorf("%w: %q (must be 'rgb' or 'bgr')", ErrUnknownColorOrder, s)
	}
}

// Put writes c into dst (3 bytes) in the given order.
func (o ColorOrder) Put(dst []byte, c pixel.Color) {
	if o == OrderBGR {
		dst[0], dst[1], dst[2] = c.B(), c.G(), c.R()
		return
	}
	dst[0], dst[1], dst[2] = c.R(), c.G(), c.B()
}

// Config selects and parameterizes a driver.
type Config struct {
	Driver     string
	Count      int
	ColorOrder ColorOrder

	// ws281x
	GPIOPin    int
	Frequency  int
	DMAChannel int

	// spi
	SPIPort string
	SPIFreq int
}

// Driver names accepted by Open.
const (
	DriverWS281x = "ws281x"
	DriverSPI    = "spi"
	DriverMemory = "memory"
)

// ErrUnknownDriver is returned by Open for unsupported driver names.
var ErrUnknownDriver = errors.New("unknown hardware driver")

// Open constructs the configured driver. Failure here is fatal for the service.
func Open(cfg Config) (Strip, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("pixel count must be > 0, got %d", cfg.Count)
	}

	switch cfg.Driver {
	case DriverWS281x:
		return openWS281x(cfg)
	case DriverSPI:
		return openSPI(cfg)
	case DriverMemory:
		return NewMemory(cfg.Count), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Blank turns every LED off and waits for the transmission to finish.
func Blank(s Strip) error {
	leds := s.Leds()
	for i := range leds {
		leds[i] = pixel.EmptyColor
	}
	if err := s.Render(); err != nil {
		return err
	}
	return s.Wait()
}

// scale applies global brightness the way the ws281x library does in hardware.
func scale(v, brightness uint8) uint8 {
	return uint8((uint16(v) * (uint16(brightness) + 1)) >> 8)
}
