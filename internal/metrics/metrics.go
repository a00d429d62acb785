// ABOUTME: Prometheus counters for the receive stream
// ABOUTME: Mirrors totals in atomics so the terminal UI can read them cheaply
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is a point-in-time copy of the totals
type Snapshot struct {
	Packets     uint64
	BytesMoved  uint64
	BytesLost   uint64
	Regressions uint64
}

// Stats holds stream statistics. A nil *Stats ignores all updates.
type Stats struct {
	reg *prometheus.Registry

	packets     *prometheus.CounterVec
	bytesMoved  prometheus.Counter
	bytesLost   prometheus.Counter
	regressions prometheus.Counter
	connects    *prometheus.CounterVec
	errors      prometheus.Counter
	connected   prometheus.Gauge

	packetsAtomic     atomic.Uint64
	bytesMovedAtomic  atomic.Uint64
	bytesLostAtomic   atomic.Uint64
	regressionsAtomic atomic.Uint64
}

// New creates stats backed by a fresh registry
func New() *Stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	return &Stats{
		reg: reg,

		packets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "androidmic_packets_received_total",
			Help: "Audio packets received, by transport",
		}, []string{"transport"}),
		bytesMoved: f.NewCounter(prometheus.CounterOpts{
			Name: "androidmic_bytes_moved_total",
			Help: "Bytes written into the playback queue",
		}),
		bytesLost: f.NewCounter(prometheus.CounterOpts{
			Name: "androidmic_bytes_lost_total",
			Help: "Bytes dropped because the playback queue was full",
		}),
		regressions: f.NewCounter(prometheus.CounterOpts{
			Name: "androidmic_sequence_regressions_total",
			Help: "UDP packets that arrived with an older sequence number",
		}),
		connects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "androidmic_connects_total",
			Help: "Connect attempts, by transport and result",
		}, []string{"transport", "result"}),
		errors: f.NewCounter(prometheus.CounterOpts{
			Name: "androidmic_stream_errors_total",
			Help: "Streams terminated by an error",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "androidmic_connected",
			Help: "1 while a phone is streaming",
		}),
	}
}

// Registry returns the underlying registry
func (s *Stats) Registry() *prometheus.Registry {
	return s.reg
}

// Handler serves the registry in the Prometheus text format
func (s *Stats) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(s.reg, promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
}

// PacketReceived counts one decoded packet
func (s *Stats) PacketReceived(transport string) {
	if s == nil {
		return
	}
	s.packets.WithLabelValues(transport).Inc()
	s.packetsAtomic.Add(1)
}

// BytesEnqueued records the outcome of one queue write
func (s *Stats) BytesEnqueued(moved, lost int) {
	if s == nil {
		return
	}
	if moved > 0 {
		s.bytesMoved.Add(float64(moved))
		s.bytesMovedAtomic.Add(uint64(moved))
	}
	if lost > 0 {
		s.bytesLost.Add(float64(lost))
		s.bytesLostAtomic.Add(uint64(lost))
	}
}

// SequenceRegression counts one out-of-order UDP packet
func (s *Stats) SequenceRegression() {
	if s == nil {
		return
	}
	s.regressions.Inc()
	s.regressionsAtomic.Add(1)
}

// ConnectAttempt records a connect result
func (s *Stats) ConnectAttempt(transport string, ok bool) {
	if s == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	s.connects.WithLabelValues(transport, result).Inc()
}

// StreamError counts a stream torn down by an error
func (s *Stats) StreamError() {
	if s == nil {
		return
	}
	s.errors.Inc()
}

// SetConnected updates the connected gauge
func (s *Stats) SetConnected(connected bool) {
	if s == nil {
		return
	}
	if connected {
		s.connected.Set(1)
	} else {
		s.connected.Set(0)
	}
}

// Snapshot returns the current totals
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		Packets:     s.packetsAtomic.Load(),
		BytesMoved:  s.bytesMovedAtomic.Load(),
		BytesLost:   s.bytesLostAtomic.Load(),
		Regressions: s.regressionsAtomic.Load(),
	}
}
