package core

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newMetricsRegistry exposes component stats as Prometheus collectors.
// Values are read from the Stats snapshots at scrape time; nothing on the
// hot path touches Prometheus.
func (b *Bridge) newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	labels := prometheus.Labels{"instance": b.cfg.InstanceID}
	counter := func(name, help string, fn func() uint64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "ledbridge",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(fn()) }))
	}
	gauge := func(name, help string, fn func() float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "ledbridge",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, fn))
	}

	// Art-Net input
	counter("artnet_packets_total", "Datagrams received on the Art-Net socket.",
		func() uint64 { return b.listener.Stats().Packets })
	counter("artnet_outputs_total", "ArtDmx packets decoded.",
		func() uint64 { return b.listener.Stats().Outputs })
	counter("artnet_ignored_total", "ArtDmx packets for universes outside the topology.",
		func() uint64 { return b.listener.Stats().Ignored })
	counter("artnet_decode_errors_total", "Malformed datagrams.",
		func() uint64 { return b.listener.Stats().DecodeErrors })
	counter("artnet_unsupported_total", "Datagrams with an unsupported opcode.",
		func() uint64 { return b.listener.Stats().Unsupported })
	counter("artnet_polls_total", "ArtPoll packets received.",
		func() uint64 { return b.listener.Stats().Polls })
	counter("artnet_poll_replies_total", "ArtPollReply packets sent.",
		func() uint64 { return b.listener.Stats().PollReplies })

	// Frame store
	counter("frame_merges_total", "Segments merged into the frame store.",
		func() uint64 { return b.store.Stats().Merges })
	counter("frame_coalesced_total", "Merges that landed on an unrendered frame.",
		func() uint64 { return b.store.Stats().Coalesced })
	gauge("brightness", "Current global brightness.",
		func() float64 { return float64(b.store.Stats().Brightness) })

	// Renderer
	counter("frames_rendered_total", "Frames written to the strip.",
		func() uint64 { return b.renderer.Stats().FramesRendered })
	counter("frames_skipped_total", "Frames taken while output was paused.",
		func() uint64 { return b.renderer.Stats().FramesSkipped })
	gauge("render_seconds", "Duration of the last strip render.",
		func() float64 { return b.renderer.Stats().LastRenderTime.Seconds() })
	gauge("output_paused", "1 while output is paused.",
		func() float64 { return boolGauge(b.renderer.Paused()) })

	if b.hub != nil {
		gauge("preview_clients", "Connected WebSocket preview clients.",
			func() float64 { return float64(b.hub.Stats().Clients) })
		counter("preview_drops_total", "Preview frames replaced before a client read them.",
			func() uint64 { return b.hub.Stats().Drops })
	}
	if b.emitter != nil {
		gauge("mqtt_connected", "1 while the MQTT client is connected.",
			func() float64 { return boolGauge(b.emitter.Stats().Connected) })
		counter("mqtt_errors_total", "Failed MQTT publishes.",
			func() uint64 { return b.emitter.Stats().Errors })
	}

	return reg
}

// MetricsHandler serves /metrics in the Prometheus exposition format.
func (b *Bridge) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(b.metrics, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
