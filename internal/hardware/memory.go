package hardware

import (
	"sync"

	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// Memory is a Strip that keeps rendered output in memory.
//
// Leds/SetBrightness/Render follow the Strip single-owner contract; the
// accessor methods (Rendered, Renders, Brightness) are safe to call from
// other goroutines, which is what tests need.
type Memory struct {
	leds []pixel.Color

	mu         sync.Mutex
	brightness uint8
	rendered   []pixel.Color
	renders    int
	waits      int
	closed     bool
	renderErr  error
}

// NewMemory creates a strip of n pixels, all off.
func NewMemory(n int) *Memory {
	return &Memory{
		leds:       make([]pixel.Color, n),
		rendered:   make([]pixel.Color, n),
		brightness: 255,
	}
}

func (m *Memory) Len() int { return len(m.leds) }

func (m *Memory) Leds() []pixel.Color { return m.leds }

func (m *Memory) SetBrightness(b uint8) {
	m.mu.Lock()
	m.brightness = b
	m.mu.Unlock()
}

func (m *Memory) Render() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderErr != nil {
		err := m.renderErr
		m.renderErr = nil
		return err
	}
	copy(m.rendered, m.leds)
	m.renders++
	return nil
}

func (m *Memory) Wait() error {
	m.mu.Lock()
	m.waits++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// FailNextRender makes the next Render call return err.
func (m *Memory) FailNextRender(err error) {
	m.mu.Lock()
	m.renderErr = err
	m.mu.Unlock()
}

// Rendered returns a copy of the last transmitted pixels.
func (m *Memory) Rendered() []pixel.Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pixel.Color, len(m.rendered))
	copy(out, m.rendered)
	return out
}

// Renders returns how many transmissions completed.
func (m *Memory) Renders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

// Brightness returns the last brightness pushed to the strip.
func (m *Memory) Brightness() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
