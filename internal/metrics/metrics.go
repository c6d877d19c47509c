package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "snapsentry"

// Pass results.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultInvalid = "invalid"
)

// Copy results.
const (
	CopyStarted  = "started"
	CopyDeferred = "deferred"
	CopyFailed   = "failed"
)

// Collector holds the reconciler's prometheus collectors on a private
// registry. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	snapshotsCreated *prometheus.CounterVec
	snapshotsDeleted *prometheus.CounterVec
	deleteFailures   *prometheus.CounterVec
	copies           *prometheus.CounterVec
	taggingFailures  prometheus.Counter
	passes           *prometheus.CounterVec
	managedVolumes   prometheus.Gauge
	completionTime   prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		snapshotsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_created_total",
			Help:      "Snapshots created in the primary location",
		}, []string{"provider"}),
		snapshotsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_deleted_total",
			Help:      "Snapshots deleted by retention pruning",
		}, []string{"location"}),
		deleteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_delete_failures_total",
			Help:      "Snapshot deletions that failed and will be retried next tick",
		}, []string{"location"}),
		copies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_copies_total",
			Help:      "Cross-region copy attempts by result",
		}, []string{"result"}),
		taggingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tagging_failures_total",
			Help:      "Tagging calls that failed on an existing snapshot",
		}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Per-volume reconciliation passes by result",
		}, []string{"result"}),
		managedVolumes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "managed_volumes",
			Help:      "Volumes in the policy set of the last tick",
		}),
		completionTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_completion_timestamp_seconds",
			Help:      "The timestamp of the last completed reconciliation tick",
		}),
	}

	c.registry.MustRegister(
		c.snapshotsCreated,
		c.snapshotsDeleted,
		c.deleteFailures,
		c.copies,
		c.taggingFailures,
		c.passes,
		c.managedVolumes,
		c.completionTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) SnapshotCreated(provider string) {
	if c == nil {
		return
	}
	c.snapshotsCreated.WithLabelValues(provider).Inc()
}

func (c *Collector) SnapshotDeleted(location string) {
	if c == nil {
		return
	}
	c.snapshotsDeleted.WithLabelValues(location).Inc()
}

func (c *Collector) DeleteFailed(location string) {
	if c == nil {
		return
	}
	c.deleteFailures.WithLabelValues(location).Inc()
}

func (c *Collector) CopyAttempted(result string) {
	if c == nil {
		return
	}
	c.copies.WithLabelValues(result).Inc()
}

func (c *Collector) TaggingFailed() {
	if c == nil {
		return
	}
	c.taggingFailures.Inc()
}

func (c *Collector) PassCompleted(result string) {
	if c == nil {
		return
	}
	c.passes.WithLabelValues(result).Inc()
}

// TickCompleted records the size of the tick's policy set and stamps the
// completion gauge with the current time.
func (c *Collector) TickCompleted(volumes int) {
	if c == nil {
		return
	}
	c.managedVolumes.Set(float64(volumes))
	c.completionTime.SetToCurrentTime()
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Push sends the registry to a prometheus pushgateway under job.
func (c *Collector) Push(url, job string) error {
	if c == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(c.registry).Add(); err != nil {
		return fmt.Errorf("cannot push metrics to pushgateway at %s: %w", url, err)
	}
	return nil
}
