package pixel

// Segment is the decoded content of one universe, ready to be merged into
// the frame at Offset(Universe).
//
// Pixels holds only the slots fully covered by the payload. A truncated
// payload yields fewer than PixelsPerUniverse entries and the remaining
// slots keep whatever the frame held before.
type Segment struct {
	Universe   int
	Pixels     []Color
	Brightness *uint8
}

// HasBrightness reports whether the segment overrides global brightness.
func (s Segment) HasBrightness() bool {
	return s.Brightness != nil
}

// Decode converts a universe payload into a Segment.
//
// ok is false when the universe is not part of the topology; such payloads
// are ignored without error. Decode has no side effects.
func Decode(topo Topology, universe int, payload []byte) (seg Segment, ok bool) {
	if !topo.Contains(universe) {
		return Segment{}, false
	}

	n := len(payload) / BytesPerPixel
	if n > topo.PixelsPerUniverse {
		n = topo.PixelsPerUniverse
	}

	seg = Segment{
		Universe: universe,
		Pixels:   make([]Color, n),
	}
	for i := 0; i < n; i++ {
		o := i * BytesPerPixel
		seg.Pixels[i] = RGB(payload[o], payload[o+1], payload[o+2])
	}

	if universe == PrimaryUniverse && len(payload) == FullPayload {
		b := payload[len(payload)-1]
		seg.Brightness = &b
	}

	return seg, true
}
