package framestore

import (
	"sync"
	"time"

	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// Frame is an immutable snapshot of the shared frame.
//
// IMMUTABILITY CONTRACT:
//   - Pixels is a private copy owned by the caller of TakeIfDirty
//   - Consumers that fan a Frame out (preview, telemetry) MUST NOT modify it
type Frame struct {
	// Seq is assigned by TakeIfDirty. Monotonically increasing, starts at 1.
	Seq uint64

	// Brightness is the global strip brightness (0-255).
	Brightness uint8

	// Pixels holds one color per global pixel index.
	Pixels []pixel.Color

	// TakenAt is when the snapshot was taken.
	TakenAt time.Time
}

// Stats is a snapshot of store operational state.
type Stats struct {
	// Merges counts accepted Merge calls.
	Merges uint64

	// Snapshots counts TakeIfDirty calls that returned a frame.
	Snapshots uint64

	// Coalesced counts merges that landed on an already-dirty frame.
	// Non-zero is normal whenever Art-Net arrives faster than the strip renders.
	Coalesced uint64

	// Ignored counts Merge calls for universes outside the topology.
	Ignored uint64

	PixelCount int
	Brightness uint8
	Dirty      bool
}

// Store is the shared-state handle passed to both workers at startup.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	topo pixel.Topology

	mu         sync.Mutex
	pixels     []pixel.Color
	brightness uint8
	dirty      bool

	seq       uint64
	merges    uint64
	snapshots uint64
	coalesced uint64
	ignored   uint64
}

// New creates an empty store. The frame starts dirty so the first renderer
// pass pushes the initial (empty) state to hardware.
func New(topo pixel.Topology) *Store {
	return &Store{
		topo:   topo,
		pixels: make([]pixel.Color, 0, topo.PixelCount()),
		dirty:  true,
	}
}

// Topology returns the universe layout the store was built with.
func (s *Store) Topology() pixel.Topology {
	return s.topo
}

// Merge writes a decoded universe segment into the frame.
//
// Algorithm:
//  1. Resolve offset(universe); out-of-range → return false, no mutation
//  2. Lock
//  3. Grow pixels with EmptyColor up to offset + PixelsPerUniverse
//  4. Copy segment colors into absolute slots (missing trailing slots untouched)
//  5. Apply brightness override if present
//  6. Mark dirty, unlock
//
// Latency: O(PixelsPerUniverse), no I/O under the lock.
func (s *Store) Merge(seg pixel.Segment) bool {
	offset, ok := s.topo.Offset(seg.Universe)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		s.ignored++
		return false
	}

	need := offset + s.topo.PixelsPerUniverse
	for len(s.pixels) < need {
		s.pixels = append(s.pixels, pixel.EmptyColor)
	}

	// Segment never exceeds PixelsPerUniverse when built by pixel.Decode,
	// but a hand-built one must not spill into the next universe.
	n := len(seg.Pixels)
	if n > s.topo.PixelsPerUniverse {
		n = s.topo.PixelsPerUniverse
	}
	copy(s.pixels[offset:offset+n], seg.Pixels[:n])

	if seg.Brightness != nil {
		s.brightness = *seg.Brightness
	}

	// The initial dirty flag only forces a first render; nothing is lost by
	// the first merge overwriting it.
	if s.dirty && (s.seq > 0 || s.merges > 0) {
		s.coalesced++
	}
	s.dirty = true
	s.merges++

	return true
}

// TakeIfDirty returns a deep copy of the frame and clears the dirty marker.
//
// Returns ok=false when nothing changed since the previous snapshot.
// The lock is released before returning, so callers are free to spend as
// long as they need on hardware transmission.
func (s *Store) TakeIfDirty() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return Frame{}, false
	}

	pixels := make([]pixel.Color, len(s.pixels))
	copy(pixels, s.pixels)

	s.dirty = false
	s.seq++
	s.snapshots++

	return Frame{
		Seq:        s.seq,
		Brightness: s.brightness,
		Pixels:     pixels,
		TakenAt:    time.Now(),
	}, true
}

// Stats returns a consistent snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Merges:     s.merges,
		Snapshots:  s.snapshots,
		Coalesced:  s.coalesced,
		Ignored:    s.ignored,
		PixelCount: len(s.pixels),
		Brightness: s.brightness,
		Dirty:      s.dirty,
	}
}
