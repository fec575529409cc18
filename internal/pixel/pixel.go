// Package pixel turns per-universe DMX payloads into strip colors.
//
// A universe carries up to 512 bytes. Each group of three bytes is one RGB
// pixel, so a universe addresses at most PixelsPerUniverse pixels starting
// at Offset(u) in the global frame. Universe 1 doubles as the control
// universe: when it arrives with the full 512 bytes its last byte sets the
// global brightness.
package pixel

const (
	// BytesPerPixel is the DMX footprint of one RGB pixel.
	BytesPerPixel = 3

	// PrimaryUniverse carries the brightness byte.
	PrimaryUniverse = 1

	// FullPayload is the DMX payload length that enables the brightness byte.
	FullPayload = 512

	// DefaultPixelsPerUniverse fits 170 RGB pixels in 510 of the 512 channels.
	DefaultPixelsPerUniverse = 170

	// DefaultUniverseCount is the number of universes mapped onto the strip.
	DefaultUniverseCount = 3
)

// Color is an RGB quadruple. The fourth channel is always 0 (no white/alpha).
type Color [4]byte

// EmptyColor fills slots that no universe has addressed yet.
var EmptyColor = Color{0, 0, 0, 0}

// RGB builds a Color with the fourth channel cleared.
func RGB(r, g, b uint8) Color {
	return Color{r, g, b, 0}
}

// R returns the red channel.
func (c Color) R() uint8 { return c[0] }

// G returns the green channel.
func (c Color) G() uint8 { return c[1] }

// B returns the blue channel.
func (c Color) B() uint8 { return c[2] }

// Topology fixes how universes map onto the strip.
// It is set once at startup and never changes at runtime.
type Topology struct {
	PixelsPerUniverse int
	UniverseCount     int
}

// DefaultTopology returns the 3 x 170 pixel layout.
func DefaultTopology() Topology {
	return Topology{
		PixelsPerUniverse: DefaultPixelsPerUniverse,
		UniverseCount:     DefaultUniverseCount,
	}
}

// PixelCount is the total number of pixels the topology can address.
func (t Topology) PixelCount() int {
	return t.PixelsPerUniverse * t.UniverseCount
}

// Contains reports whether universe u is mapped onto the strip.
func (t Topology) Contains(u int) bool {
	return u >= 1 && u <= t.UniverseCount
}

// Offset returns the first global pixel index addressed by universe u.
// ok is false for universes outside [1, UniverseCount].
func (t Topology) Offset(u int) (offset int, ok bool) {
	if !t.Contains(u) {
		return 0, false
	}
	return (u - 1) * t.PixelsPerUniverse, true
}

// PackRGB flattens colors to R,G,B bytes, dropping the unused fourth channel.
func PackRGB(colors []Color) []byte {
	out := make([]byte, len(colors)*BytesPerPixel)
	for i, c := range colors {
		o := i * BytesPerPixel
		out[o], out[o+1], out[o+2] = c.R(), c.G(), c.B()
	}
	return out
}
