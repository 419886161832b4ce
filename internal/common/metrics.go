package common

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide prometheus collectors. Registration
// mirrors the teacher's NewRelay: a gauge/counter set registered with
// a prometheus.Registerer and served from a background goroutine when
// the Metrics flag is set.
type Metrics struct {
	ActiveRooms           prometheus.Gauge
	ActivePeers           prometheus.Gauge
	TransportErrorsTotal  *prometheus.CounterVec
	DroppedVideoFrames    prometheus.Counter
	DroppedAudioSamples   prometheus.Counter
	IPCQueueDepth         *prometheus.GaugeVec
	StreamerStartsTotal   prometheus.Counter
	StreamerTerminalTotal *prometheus.CounterVec
}

var globalMetrics *Metrics

// NewMetrics registers a fresh collector set against reg. Production
// code passes prometheus.DefaultRegisterer (via InitMetricsServer);
// tests pass a throwaway prometheus.NewRegistry() so repeated calls
// don't collide on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "moonlight_gateway_active_rooms",
			Help: "Number of currently active rooms.",
		}),
		ActivePeers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "moonlight_gateway_active_peers",
			Help: "Number of currently connected peers across all rooms.",
		}),
		TransportErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moonlight_gateway_transport_errors_total",
			Help: "Transport send/setup errors, by transport kind.",
		}, []string{"kind"}),
		DroppedVideoFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "moonlight_gateway_dropped_video_frames_total",
			Help: "Video frames dropped due to a full per-peer queue.",
		}),
		DroppedAudioSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "moonlight_gateway_dropped_audio_samples_total",
			Help: "Audio samples dropped due to a full per-peer queue.",
		}),
		IPCQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "moonlight_gateway_ipc_queue_depth",
			Help: "Current depth of an IPC sender queue.",
		}, []string{"direction"}),
		StreamerStartsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "moonlight_gateway_streamer_starts_total",
			Help: "Number of times a streamer (re)started its upstream session.",
		}),
		StreamerTerminalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moonlight_gateway_streamer_terminations_total",
			Help: "Streamer terminations, by cause.",
		}, []string{"cause"}),
	}
}

// InitMetricsServer starts the metrics HTTP endpoint if enabled by
// flags, exactly where the teacher's NewRelay does: before anything
// else, on its own goroutine.
func InitMetricsServer() *Metrics {
	m := NewMetrics(prometheus.DefaultRegisterer)
	globalMetrics = m

	flags := GetFlags()
	if !flags.Metrics {
		return m
	}

	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", promhttp.Handler())

	go func() {
		slog.Info("starting prometheus metrics server", "port", flags.MetricsPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", flags.MetricsPort), mux); err != nil {
			slog.Error("metrics server exited", "err", err)
		}
	}()

	return m
}

// GlobalMetrics returns the process-wide metrics set, lazily creating
// a detached (unserved) instance if InitMetricsServer was never called
// -- useful for the streamer child, which reports metrics into its own
// collectors rather than serving an HTTP endpoint.
func GlobalMetrics() *Metrics {
	if globalMetrics == nil {
		globalMetrics = NewMetrics(prometheus.NewRegistry())
	}
	return globalMetrics
}
