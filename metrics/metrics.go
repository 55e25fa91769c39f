// Package metrics exposes the relay's §3.5 counters as Prometheus
// collectors: bytes in/out, frames accepted/rejected by reason, and
// per-consumer drops.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bytesIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_bytes_in_total",
		Help: "Total bytes read from producer connections.",
	}, []string{"domain"})

	bytesOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_bytes_out_total",
		Help: "Total bytes written to consumer connections.",
	}, []string{"domain"})

	framesAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_frames_accepted_total",
		Help: "Frames that passed domain validation.",
	}, []string{"domain"})

	framesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_frames_rejected_total",
		Help: "Frames rejected by the validator, labeled by reason.",
	}, []string{"domain", "reason"})

	consumerDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_consumer_drops_total",
		Help: "Frames evicted from a consumer's outbound queue by drop-head overflow.",
	}, []string{"domain"})

	consumersActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "torq_relay_consumers_active",
		Help: "Currently connected consumer sessions.",
	}, []string{"domain"})
)

func init() {
	prometheus.MustRegister(bytesIn, bytesOut, framesAccepted, framesRejected, consumerDrops, consumersActive)
}

// BytesIn records n bytes read from a producer in domain.
func BytesIn(domain string, n int) { bytesIn.WithLabelValues(domain).Add(float64(n)) }

// BytesOut records n bytes written to a consumer in domain.
func BytesOut(domain string, n int) { bytesOut.WithLabelValues(domain).Add(float64(n)) }

// FrameAccepted increments the accepted counter for domain.
func FrameAccepted(domain string) { framesAccepted.WithLabelValues(domain).Inc() }

// FrameRejected increments the rejected counter for domain, labeled by reason.
func FrameRejected(domain, reason string) { framesRejected.WithLabelValues(domain, reason).Inc() }

// ConsumerDrop increments the drop-head eviction counter for domain.
func ConsumerDrop(domain string) { consumerDrops.WithLabelValues(domain).Inc() }

// ConsumerConnected adjusts the active-consumer gauge for domain by delta
// (+1 on connect, -1 on disconnect).
func ConsumerConnected(domain string, delta float64) {
	consumersActive.WithLabelValues(domain).Add(delta)
}

// StartServer exposes /metrics on addr in a background goroutine. Safe to
// call at most once per process; callers that don't want a standalone
// listener can instead mount promhttp.Handler() on their own mux.
func StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
