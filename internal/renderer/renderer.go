// Package renderer pushes the shared frame to the LED strip.
//
// The loop is the single owner of the hardware.Strip:
//
//	for {
//	    frame, ok := store.TakeIfDirty()   // lock held only for the copy
//	    if !ok { sleep(idle); continue }
//	    strip.SetBrightness(frame.Brightness)
//	    copy(strip.Leds(), frame.Pixels)   // min(strip, frame) pixels
//	    strip.Render(); strip.Wait()       // synchronous transmission
//	}
//
// Frames produced while a transmission is in flight coalesce in the store,
// so the strip always shows the newest state and never falls behind.
package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Julusian/rpi-ws281x-artnet/internal/framestore"
	"github.com/Julusian/rpi-ws281x-artnet/internal/hardware"
)

// DefaultIdleInterval is how long the loop sleeps when no frame is pending.
const DefaultIdleInterval = 20 * time.Millisecond

// Options tunes a Renderer.
type Options struct {
	// IdleInterval defaults to DefaultIdleInterval.
	IdleInterval time.Duration

	// OnFrame, if set, is called after each frame reaches the strip.
	// It runs on the render goroutine and MUST NOT block.
	OnFrame func(framestore.Frame)

	Logger *slog.Logger
}

// Stats is a snapshot of renderer activity.
type Stats struct {
	FramesRendered uint64
	FramesSkipped  uint64 // taken while paused
	IdlePolls      uint64
	LastSeq        uint64
	LastRenderAt   time.Time
	LastRenderTime time.Duration
	Paused         bool
}

// Renderer moves dirty frames from a Store to a Strip.
type Renderer struct {
	store *framestore.Store
	strip hardware.Strip
	opts  Options
	log   *slog.Logger

	paused atomic.Bool
	blank  atomic.Bool

	framesRendered atomic.Uint64
	framesSkipped  atomic.Uint64
	idlePolls      atomic.Uint64

	mu             sync.Mutex
	lastSeq        uint64
	lastRenderAt   time.Time
	lastRenderTime time.Duration
}

// New creates a renderer. It does not start until Run is called.
func New(store *framestore.Store, strip hardware.Strip, opts Options) *Renderer {
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Renderer{
		store: store,
		strip: strip,
		opts:  opts,
		log:   opts.Logger.With("component", "renderer"),
	}
}

// Run renders until ctx is cancelled or the strip fails.
//
// A hardware error is returned wrapped and ends the loop; the caller
// decides whether that is fatal for the process.
func (r *Renderer) Run(ctx context.Context) error {
	r.log.Info("renderer started",
		"strip_len", r.strip.Len(),
		"idle_interval", r.opts.IdleInterval,
	)

	idle := time.NewTimer(r.opts.IdleInterval)
	defer idle.Stop()

	// held is the newest frame taken while paused, shown again on Resume.
	var held *framestore.Frame

	for {
		if err := ctx.Err(); err != nil {
			r.log.Info("renderer stopped", "frames_rendered", r.framesRendered.Load())
			return nil
		}

		if r.blank.Swap(false) {
			if err := hardware.Blank(r.strip); err != nil {
				return fmt.Errorf("blank strip: %w", err)
			}
			r.log.Info("strip blanked")
		}

		frame, ok := r.store.TakeIfDirty()
		paused := r.paused.Load()

		if ok && paused {
			r.framesSkipped.Add(1)
			held = &frame
			continue
		}
		if !ok && !paused && held != nil {
			frame, ok = *held, true
			held = nil
		}

		if !ok {
			r.idlePolls.Add(1)
			idle.Reset(r.opts.IdleInterval)
			select {
			case <-ctx.Done():
			case <-idle.C:
			}
			continue
		}
		held = nil

		if err := r.render(frame); err != nil {
			return err
		}

		if r.opts.OnFrame != nil {
			r.opts.OnFrame(frame)
		}
	}
}

func (r *Renderer) render(frame framestore.Frame) error {
	start := time.Now()

	r.strip.SetBrightness(frame.Brightness)

	// Excess strip pixels keep their previous color; excess frame pixels are dropped.
	copy(r.strip.Leds(), frame.Pixels)

	if err := r.strip.Render(); err != nil {
		return fmt.Errorf("render frame %d: %w", frame.Seq, err)
	}
	if err := r.strip.Wait(); err != nil {
		return fmt.Errorf("wait for frame %d: %w", frame.Seq, err)
	}

	elapsed := time.Since(start)
	r.framesRendered.Add(1)

	r.mu.Lock()
	r.lastSeq = frame.Seq
	r.lastRenderAt = start
	r.lastRenderTime = elapsed
	r.mu.Unlock()

	return nil
}

// Pause stops writing to the strip. Frames are still drained from the store;
// the newest one is rendered on Resume.
func (r *Renderer) Pause() {
	if !r.paused.Swap(true) {
		r.log.Info("output paused")
	}
}

// Resume re-enables output.
func (r *Renderer) Resume() {
	if r.paused.Swap(false) {
		r.log.Info("output resumed")
	}
}

// Blank turns every LED off on the next loop iteration. The next dirty
// frame (or Resume of a held one) paints over it.
func (r *Renderer) Blank() {
	r.blank.Store(true)
}

// Paused reports whether output is paused.
func (r *Renderer) Paused() bool {
	return r.paused.Load()
}

// Stats returns a snapshot. Safe to call from any goroutine.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		FramesRendered: r.framesRendered.Load(),
		FramesSkipped:  r.framesSkipped.Load(),
		IdlePolls:      r.idlePolls.Load(),
		LastSeq:        r.lastSeq,
		LastRenderAt:   r.lastRenderAt,
		LastRenderTime: r.lastRenderTime,
		Paused:         r.paused.Load(),
	}
}
