package hub

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the hub's Prometheus collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Sockets         prometheus.Gauge
	FramesReceived  prometheus.Counter
	FramesSent      prometheus.Counter
	MalformedFrames prometheus.Counter
	Subscribers     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg:             reg,
		Sockets:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "nsbus_hub_sockets", Help: "Open websocket connections"}),
		FramesReceived:  prometheus.NewCounter(prometheus.CounterOpts{Name: "nsbus_hub_frames_received_total", Help: "Frames read from sockets"}),
		FramesSent:      prometheus.NewCounter(prometheus.CounterOpts{Name: "nsbus_hub_frames_sent_total", Help: "Frames written to sockets"}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{Name: "nsbus_hub_malformed_frames_total", Help: "Inbound frames dropped as malformed"}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nsbus_hub_namespace_subscribers",
			Help: "Sockets subscribed per namespace",
		}, []string{"namespace"}),
	}
	reg.MustRegister(m.Sockets, m.FramesReceived, m.FramesSent, m.MalformedFrames, m.Subscribers)
	return m
}

func (m *Metrics) Handler() http.Handler { return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}) }
