// Package metrics exports pawsync's operational state to Prometheus and
// feeds cycle outcomes to the adaptive polling controller.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/polling"
)

const namespace = "pawsync"

// Cycle outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Collector owns the polling controller and a private Prometheus registry.
// It implements cycle.MetricsCollector and is safe for concurrent use.
type Collector struct {
	controller *polling.Controller
	registry   *prometheus.Registry

	cycleDuration   *prometheus.HistogramVec
	cycles          *prometheus.CounterVec
	dogErrors       prometheus.Counter
	interval        prometheus.Gauge
	saturation      prometheus.Gauge
	changedDogs     prometheus.Counter
	changedEntities prometheus.Counter
	batchPending    prometheus.Gauge
	batchSize       prometheus.Gauge
	batches         prometheus.Counter
}

var _ cycle.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector around controller. Go runtime and
// process collectors are registered alongside the pawsync metrics.
func NewCollector(controller *polling.Controller) *Collector {
	c := &Collector{
		controller: controller,
		registry:   prometheus.NewRegistry(),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Polling cycle duration in seconds by outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Polling cycles by outcome.",
		}, []string{"outcome"}),
		dogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "dog_errors_total",
			Help:      "Dogs that failed to fetch within a cycle.",
		}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "polling",
			Name:      "interval_seconds",
			Help:      "Current adaptive polling interval.",
		}),
		saturation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "saturation_ratio",
			Help:      "Peak entity budget saturation fed to the controller.",
		}),
		changedDogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diff",
			Name:      "changed_dogs_total",
			Help:      "Dogs with changes detected across cycles.",
		}),
		changedEntities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diff",
			Name:      "changed_entities_total",
			Help:      "Entity keys notified as changed.",
		}),
		batchPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "pending",
			Help:      "Dogs waiting for a priority refresh.",
		}),
		batchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "max_size",
			Help:      "Current maximum refresh batch size.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "dispatched_total",
			Help:      "Priority refresh batches dispatched.",
		}),
	}

	c.registry.MustRegister(
		c.cycleDuration, c.cycles, c.dogErrors,
		c.interval, c.saturation,
		c.changedDogs, c.changedEntities,
		c.batchPending, c.batchSize, c.batches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.interval.Set(controller.Interval().Seconds())
	return c
}

// NextInterval records the cycle in the controller and returns the
// interval it chose.
func (c *Collector) NextInterval(duration time.Duration, success bool, errorRatio float64) time.Duration {
	next := c.controller.RecordCycle(duration, success, errorRatio)

	outcome := Outcome(success, errorRatio)
	c.cycleDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	c.cycles.WithLabelValues(outcome).Inc()
	c.interval.Set(next.Seconds())
	return next
}

// Outcome classifies a cycle for the outcome label.
func Outcome(success bool, errorRatio float64) string {
	switch {
	case success:
		return OutcomeSuccess
	case errorRatio >= 1:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// ObserveDogErrors counts dogs that failed in a cycle.
func (c *Collector) ObserveDogErrors(n int) {
	if n > 0 {
		c.dogErrors.Add(float64(n))
	}
}

// UpdateSaturation forwards the entity saturation to the controller.
func (c *Collector) UpdateSaturation(v float64) {
	c.controller.UpdateEntitySaturation(v)
	c.saturation.Set(c.controller.Diagnostics().EntitySaturation)
}

// ObserveChanges counts changed dogs and notified entity keys.
func (c *Collector) ObserveChanges(dogs, entities int) {
	c.changedDogs.Add(float64(max(dogs, 0)))
	c.changedEntities.Add(float64(max(entities, 0)))
}

// SetBatchState records the refresh queue depth and batch size.
func (c *Collector) SetBatchState(pending, maxSize int) {
	c.batchPending.Set(float64(pending))
	c.batchSize.Set(float64(maxSize))
}

// ObserveBatch counts one dispatched refresh batch.
func (c *Collector) ObserveBatch() {
	c.batches.Inc()
}

// Diagnostics returns the controller diagnostics.
func (c *Collector) Diagnostics() polling.Diagnostics {
	return c.controller.Diagnostics()
}

// Interval returns the controller's current interval.
func (c *Collector) Interval() time.Duration {
	return c.controller.Interval()
}

// Registry returns the private registry, for registering extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
