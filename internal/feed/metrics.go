package feed

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Published   prometheus.Counter
	Dropped     prometheus.Counter
	Subscribers prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_feed_events_published_total",
			Help: "Change events published to the feed",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_feed_events_dropped_total",
			Help: "Change events dropped for lagging subscribers",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_feed_subscribers",
			Help: "Currently attached feed subscribers",
		}),
	}

	reg.MustRegister(m.Published, m.Dropped, m.Subscribers)
	return m
}

func (m *Metrics) published() {
	if m != nil {
		m.Published.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) subscribers(n int) {
	if m != nil {
		m.Subscribers.Set(float64(n))
	}
}
