package core

import (
	"log/slog"
	"time"
)

// getStatus returns the current service status
func (b *Bridge) getStatus() map[string]interface{} {
	b.mu.RLock()
	running := b.isRunning
	started := b.started
	b.mu.RUnlock()

	store := b.store.Stats()
	rs := b.renderer.Stats()
	ls := b.listener.Stats()

	status := map[string]interface{}{
		"instance_id":    b.cfg.InstanceID,
		"running":        running,
		"uptime_seconds": int64(time.Since(started).Seconds()),
		"topology": map[string]interface{}{
			"pixels_per_universe": b.topo.PixelsPerUniverse,
			"universe_count":      b.topo.UniverseCount,
			"pixel_count":         b.topo.PixelCount(),
		},
		"frame": map[string]interface{}{
			"brightness": store.Brightness,
			"pixels":     store.PixelCount,
			"merges":     store.Merges,
			"coalesced":  store.Coalesced,
		},
		"renderer": map[string]interface{}{
			"paused":          rs.Paused,
			"frames_rendered": rs.FramesRendered,
			"frames_skipped":  rs.FramesSkipped,
			"last_seq":        rs.LastSeq,
			"last_render_ms":  float64(rs.LastRenderTime.Microseconds()) / 1000,
		},
		"artnet": map[string]interface{}{
			"packets":       ls.Packets,
			"outputs":       ls.Outputs,
			"polls":         ls.Polls,
			"poll_replies":  ls.PollReplies,
			"ignored":       ls.Ignored,
			"decode_errors": ls.DecodeErrors,
			"unsupported":   ls.Unsupported,
		},
	}

	if !ls.LastPacketAt.IsZero() {
		status["artnet"].(map[string]interface{})["last_packet_at"] = ls.LastPacketAt.UTC().Format(time.RFC3339)
	}

	if b.hub != nil {
		hs := b.hub.Stats()
		status["preview"] = map[string]interface{}{
			"clients":   hs.Clients,
			"published": hs.Published,
			"drops":     hs.Drops,
		}
	}

	if b.emitter != nil {
		es := b.emitter.Stats()
		status["mqtt"] = map[string]interface{}{
			"connected":     es.Connected,
			"errors":        es.Errors,
			"frame_drops":   es.FrameDrops,
			"last_sent_seq": es.LastSentSeq,
		}
	}

	return status
}

// pauseOutput freezes the strip on its current frame. Art-Net input keeps
// merging; the newest frame is shown on resume.
func (b *Bridge) pauseOutput() error {
	b.renderer.Pause()
	slog.Info("output paused via control plane")
	return nil
}

func (b *Bridge) resumeOutput() error {
	b.renderer.Resume()
	slog.Info("output resumed via control plane")
	return nil
}

// blankOutput turns the strip off until the next frame arrives.
func (b *Bridge) blankOutput() error {
	b.renderer.Blank()
	slog.Info("output blank requested via control plane")
	return nil
}

// shutdownViaControl cancels the Run context. main then runs Shutdown.
func (b *Bridge) shutdownViaControl() error {
	b.mu.RLock()
	cancel := b.cancelCtx
	b.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	slog.Info("shutdown requested via control plane")
	cancel()
	return nil
}
