package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// artnetIdleAfter marks Art-Net input as stale in the health report.
const artnetIdleAfter = 5 * time.Second

// HealthStatus represents the health state of the bridge
type HealthStatus struct {
	Status         string `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ArtNetActive   bool   `json:"artnet_active"`
	OutputPaused   bool   `json:"output_paused"`
	FramesRendered uint64 `json:"frames_rendered"`
	MQTTEnabled    bool   `json:"mqtt_enabled"`
	MQTTConnected  bool   `json:"mqtt_connected"`
	PreviewClients int    `json:"preview_clients"`
}

// HealthCheck returns the current health status of the service.
//
// Idle Art-Net input is reported but does not degrade health: a controller
// that stopped sending is a normal state for an LED bridge.
func (b *Bridge) HealthCheck() HealthStatus {
	b.mu.RLock()
	running := b.isRunning
	started := b.started
	b.mu.RUnlock()

	rs := b.renderer.Stats()
	ls := b.listener.Stats()

	status := HealthStatus{
		Status:         "healthy",
		OutputPaused:   rs.Paused,
		FramesRendered: rs.FramesRendered,
		MQTTEnabled:    b.emitter != nil,
	}
	if running {
		status.UptimeSeconds = int64(time.Since(started).Seconds())
	}
	if !ls.LastPacketAt.IsZero() && time.Since(ls.LastPacketAt) < artnetIdleAfter {
		status.ArtNetActive = true
	}
	if b.emitter != nil {
		status.MQTTConnected = b.emitter.Stats().Connected
	}
	if b.hub != nil {
		status.PreviewClients = b.hub.Stats().Clients
	}

	// Determine overall health status
	if !running {
		status.Status = "unhealthy"
	} else if status.OutputPaused || (status.MQTTEnabled && !status.MQTTConnected) {
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /health endpoint (simple liveness check)
// Returns 200 if the service process is alive
func (b *Bridge) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	b.mu.RLock()
	started := b.started
	b.mu.RUnlock()

	response := map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(started).Seconds()),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles /readiness endpoint (detailed readiness check)
// Returns 200 unless the service is unhealthy
func (b *Bridge) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := b.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// Handler returns the health mux: /health, /readiness, /metrics and,
// when enabled, the /preview WebSocket.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()

	// Register health check endpoints
	mux.HandleFunc("/health", b.LivenessHandler)
	mux.HandleFunc("/readiness", b.ReadinessHandler)
	mux.Handle("/metrics", b.MetricsHandler())
	if b.hub != nil {
		mux.Handle("/preview", b.hub)
	}
	return mux
}

// StartHealthServer binds the configured health address and serves it in
// a goroutine. An empty address disables the server.
func (b *Bridge) StartHealthServer() error {
	addr := b.cfg.Health.Addr
	if addr == "" {
		slog.Info("health check server disabled")
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind health server on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:      b.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	b.healthServer = server
	b.healthAddr = ln.Addr()

	endpoints := []string{"/health", "/readiness", "/metrics"}
	if b.hub != nil {
		endpoints = append(endpoints, "/preview")
	}
	slog.Info("starting health check server",
		"addr", ln.Addr().String(),
		"endpoints", endpoints,
	)

	// Start server in goroutine (non-blocking)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}

// HealthAddr returns the bound health server address, or nil.
func (b *Bridge) HealthAddr() net.Addr {
	return b.healthAddr
}
