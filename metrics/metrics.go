// Package metrics exports handle lifecycle events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/native-bridge/handle"
)

// Collector counts handle events. It is both a prometheus.Collector and a
// handle.Observer, so it can be passed to bridges, hosts and arenas and
// registered with a registry.
type Collector struct {
	events *prometheus.CounterVec
	errors *prometheus.CounterVec
	bound  *prometheus.GaugeVec
}

var (
	_ prometheus.Collector = (*Collector)(nil)
	_ handle.Observer      = (*Collector)(nil)
)

// NewCollector creates an unregistered collector.
func NewCollector() *Collector {
	return &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nativebridge",
			Name:      "handle_events_total",
			Help:      "Handle lifecycle events by component, entry point and event type.",
		}, []string{"component", "entry", "event"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nativebridge",
			Name:      "forward_errors_total",
			Help:      "Forwards whose native side returned an error.",
		}, []string{"component", "entry"}),
		bound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nativebridge",
			Name:      "bound_handles",
			Help:      "Handles currently bound, by component.",
		}, []string{"component"}),
	}
}

func (c *Collector) OnHandleEvent(e handle.Event) {
	c.events.WithLabelValues(e.Component, e.Entry, e.Type.String()).Inc()

	switch e.Type {
	case handle.EventBound:
		c.bound.WithLabelValues(e.Component).Inc()
	case handle.EventInvalidated, handle.EventReleased:
		c.bound.WithLabelValues(e.Component).Dec()
	case handle.EventForwarded:
		if e.Err != nil {
			c.errors.WithLabelValues(e.Component, e.Entry).Inc()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.events.Describe(ch)
	c.errors.Describe(ch)
	c.bound.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.events.Collect(ch)
	c.errors.Collect(ch)
	c.bound.Collect(ch)
}
