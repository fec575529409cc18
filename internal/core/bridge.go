package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Julusian/rpi-ws281x-artnet/internal/config"
	"github.com/Julusian/rpi-ws281x-artnet/internal/control"
	"github.com/Julusian/rpi-ws281x-artnet/internal/discovery"
	"github.com/Julusian/rpi-ws281x-artnet/internal/emitter"
	"github.com/Julusian/rpi-ws281x-artnet/internal/framestore"
	"github.com/Julusian/rpi-ws281x-artnet/internal/hardware"
	"github.com/Julusian/rpi-ws281x-artnet/internal/listener"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
	"github.com/Julusian/rpi-ws281x-artnet/internal/preview"
	"github.com/Julusian/rpi-ws281x-artnet/internal/renderer"
)

// Bridge is the main service orchestrator
type Bridge struct {
	cfg  *config.Config
	topo pixel.Topology

	// Core components
	store     *framestore.Store
	strip     hardware.Strip
	renderer  *renderer.Renderer
	listener  *listener.Listener
	responder *discovery.Responder // nil when discovery is disabled
	hub       *preview.Hub         // nil when preview is disabled

	// Optional MQTT plane (nil when no broker is configured)
	emitter        *emitter.MQTTEmitter
	controlHandler *control.Handler

	healthServer *http.Server
	healthAddr   net.Addr
	metrics      *prometheus.Registry

	// Lifecycle management
	started   time.Time
	mu        sync.RWMutex
	isRunning bool
	cancelCtx context.CancelFunc // For MQTT shutdown command
	done      chan struct{}      // closed when Run returns
	closeOnce sync.Once
}

// NewBridge wires every component from a validated configuration.
// Opening the strip happens here: a driver failure is fatal at startup.
func NewBridge(cfg *config.Config) (*Bridge, error) {
	topo := pixel.Topology{
		PixelsPerUniverse: cfg.Topology.PixelsPerUniverse,
		UniverseCount:     cfg.Topology.UniverseCount,
	}

	order, err := hardware.ParseColorOrder(cfg.Hardware.ColorOrder)
	if err != nil {
		return nil, err
	}

	strip, err := hardware.Open(hardware.Config{
		Driver:     cfg.Hardware.Driver,
		Count:      topo.PixelCount(),
		ColorOrder: order,
		GPIOPin:    cfg.Hardware.GPIOPin,
		Frequency:  cfg.Hardware.FrequencyHz,
		DMAChannel: cfg.Hardware.DMAChannel,
		SPIPort:    cfg.Hardware.SPIPort,
		SPIFreq:    cfg.Hardware.SPIFreqHz,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s strip: %w", cfg.Hardware.Driver, err)
	}

	slog.Info("strip opened",
		"driver", cfg.Hardware.Driver,
		"leds", strip.Len(),
		"color_order", order,
	)

	b := &Bridge{
		cfg:   cfg,
		topo:  topo,
		store: framestore.New(topo),
		strip: strip,
		done:  make(chan struct{}),
	}

	if cfg.Health.Preview {
		b.hub = preview.NewHub(slog.Default())
	}

	if cfg.MQTT.Enabled() {
		b.emitter = emitter.NewMQTTEmitter(cfg)
		b.emitter.StatusFunc = b.getStatus
		b.emitter.OnConnect = b.resubscribe
		b.controlHandler = control.NewHandler(cfg, b.emitter.Client, control.CommandCallbacks{
			OnGetStatus: b.getStatus,
			OnPause:     b.pauseOutput,
			OnResume:    b.resumeOutput,
			OnBlank:     b.blankOutput,
			OnShutdown:  b.shutdownViaControl,
		})
	}

	b.renderer = renderer.New(b.store, strip, renderer.Options{
		IdleInterval: cfg.Renderer.IdleInterval(),
		OnFrame:      b.fanOut,
	})

	lopts := listener.Options{
		Addr:         cfg.ArtNet.ListenAddr(),
		PollInterval: cfg.ArtNet.PollInterval(),
		DecodeErrors: listener.DecodePolicy(cfg.ArtNet.DecodeErrors),
	}
	if cfg.ArtNet.Discovery.Enabled {
		b.responder = discovery.NewResponder(topo, uint16(cfg.ArtNet.Port))
		b.responder.ShortName = cfg.ArtNet.Discovery.ShortName
		b.responder.LongName = cfg.ArtNet.Discovery.LongName
		lopts.Responder = b.responder
	}
	b.listener = listener.New(b.store, lopts)

	b.metrics = b.newMetricsRegistry()

	return b, nil
}

// fanOut hands a rendered frame to the preview consumers. Runs on the
// render goroutine; both sinks are non-blocking.
func (b *Bridge) fanOut(frame framestore.Frame) {
	if b.hub != nil {
		b.hub.Publish(frame)
	}
	if b.emitter != nil {
		b.emitter.OfferFrame(frame)
	}
}

// resubscribe restores the control subscription after an MQTT reconnect.
func (b *Bridge) resubscribe() {
	if b.controlHandler == nil {
		return
	}
	if err := b.controlHandler.Subscribe(); err != nil && !errors.Is(err, control.ErrStopped) {
		slog.Error("failed to resubscribe control plane", "error", err)
	}
}

// Run starts the bridge and blocks until ctx is cancelled or a worker fails.
//
// The listener and renderer are supervised together: the first one to fail
// cancels the other and its error is returned.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	b.isRunning = true
	b.started = time.Now()
	b.mu.Unlock()
	defer close(b.done)

	// Create cancellable context for MQTT shutdown command
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.mu.Lock()
	b.cancelCtx = cancel
	b.mu.Unlock()

	slog.Info("bridge service starting",
		"instance_id", b.cfg.InstanceID,
		"universes", b.topo.UniverseCount,
		"pixels_per_universe", b.topo.PixelsPerUniverse,
	)

	// Bind before anything else runs: no socket, no service.
	addr, err := b.listener.Listen()
	if err != nil {
		return err
	}
	if b.responder != nil {
		if udp, ok := addr.(*net.UDPAddr); ok {
			b.responder.Port = uint16(udp.Port)
		}
	}

	if b.emitter != nil {
		// MQTT is auxiliary: the strip keeps running while the client retries.
		if err := b.emitter.Connect(ctx); err != nil {
			slog.Warn("mqtt unavailable at startup, continuing without it",
				"error", err,
				"broker", b.cfg.MQTT.Broker,
			)
		}
		if err := b.controlHandler.Start(ctx); err != nil {
			slog.Warn("control plane not subscribed yet", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.listener.Run(gctx)
	})
	g.Go(func() error {
		return b.renderer.Run(gctx)
	})
	if b.emitter != nil {
		g.Go(func() error {
			return b.emitter.Run(gctx)
		})
	}

	slog.Info("bridge service running",
		"listen", addr.String(),
		"discovery", b.responder != nil,
		"mqtt", b.emitter != nil,
		"preview", b.hub != nil,
	)

	err = g.Wait()
	if err != nil {
		slog.Error("bridge worker failed", "error", err)
	}

	slog.Info("bridge service run loop exiting")
	return err
}

// Shutdown performs graceful shutdown of all components.
//
// It waits for Run to return before touching the strip, so the renderer
// goroutine is the only one that ever drives the hardware while running.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	running := b.isRunning
	cancel := b.cancelCtx
	b.mu.Unlock()

	slog.Info("shutting down bridge service")

	// Shutdown sequence (order is important!):
	// 1. Stop control plane (no new commands)
	if b.controlHandler != nil {
		slog.Info("stopping control handler")
		if err := b.controlHandler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	// 2. Stop workers and wait for Run to return
	if cancel != nil {
		cancel()
	}
	if running {
		select {
		case <-b.done:
			slog.Info("all workers finished")
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for workers: %w", ctx.Err())
		}
	}

	// 3. Disconnect preview clients and MQTT
	if b.hub != nil {
		b.hub.Close()
	}
	if b.emitter != nil {
		if err := b.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	// 4. Stop health server
	if b.healthServer != nil {
		if err := b.healthServer.Shutdown(ctx); err != nil {
			slog.Error("failed to stop health server", "error", err)
		}
	}

	// 5. Release the strip, blanking it first if configured
	var stripErr error
	b.closeOnce.Do(func() {
		if b.cfg.Hardware.ClearOnExit {
			if err := hardware.Blank(b.strip); err != nil {
				slog.Error("failed to blank strip", "error", err)
			}
		}
		stripErr = b.strip.Close()
	})
	if stripErr != nil {
		return fmt.Errorf("failed to close strip: %w", stripErr)
	}

	b.mu.Lock()
	uptime := time.Since(b.started)
	b.isRunning = false
	b.mu.Unlock()

	slog.Info("bridge service shutdown complete",
		"uptime", uptime,
	)

	return nil
}

// ListenAddr returns the bound Art-Net address, or nil before Run.
func (b *Bridge) ListenAddr() net.Addr {
	return b.listener.Addr()
}

// ShutdownTimeout returns the configured graceful shutdown budget.
func (b *Bridge) ShutdownTimeout() time.Duration {
	return b.cfg.ShutdownTimeout()
}
