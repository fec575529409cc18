// Package framestore holds the single "current" LED frame shared between
// the Art-Net listener and the hardware renderer.
//
// # Philosophy
//
// "Coalesce, never queue. Latest pixel wins."
//
// The listener merges universe segments as fast as they arrive. The renderer
// snapshots whatever the frame looks like when the strip is ready for the
// next transmission. Intermediate states between two snapshots are lost on
// purpose: the strip only ever shows the most recent data.
//
// # Design
//
//   - One mutex, two access patterns: Merge (listener) and TakeIfDirty (renderer)
//   - Dirty marker: set by Merge, cleared by TakeIfDirty
//   - Snapshot is a deep copy, so the renderer never holds the lock during I/O
//   - Pixel slice only grows, unaddressed slots are pixel.EmptyColor
//
// # Lock Scope
//
// Critical sections contain slice growth, slot copies and flag updates only.
// No network or hardware I/O ever happens under the lock:
//
//	listener:  recv (no lock) → decode (no lock) → Merge (lock)
//	renderer:  TakeIfDirty (lock) → render + wait (no lock)
//
// # Ordering
//
// A single Merge is atomic with respect to TakeIfDirty: a universe segment
// lands entirely before or entirely after a snapshot. Separate universes are
// not rendered atomically together; a snapshot may combine segments from
// different incoming updates.
//
// # Basic Usage
//
//	store := framestore.New(pixel.DefaultTopology())
//
//	// listener goroutine
//	if seg, ok := pixel.Decode(topo, universe, payload); ok {
//	    store.Merge(seg)
//	}
//
//	// renderer goroutine
//	if frame, ok := store.TakeIfDirty(); ok {
//	    push(frame)
//	}
package framestore
