// Package metrics exposes Prometheus collectors for the monitor.
package metrics

import (
	"net/http"

	"github.com/autobrr/botmon/pkg/task"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "botmon"

var statuses = []task.Status{
	task.Queued,
	task.Initializing,
	task.Started,
	task.Downloading,
	task.Completed,
	task.Cancelled,
	task.Failed,
}

type Metrics struct {
	registry *prometheus.Registry

	tasks         *prometheus.GaugeVec
	activeTasks   prometheus.Gauge
	logLines      prometheus.Counter
	logEvents     *prometheus.CounterVec
	eventsApplied *prometheus.CounterVec
	expired       prometheus.Counter
	streamSpeed   *prometheus.GaugeVec
	streamTotal   *prometheus.GaugeVec
	processUp     prometheus.Gauge
	sampleErrors  *prometheus.CounterVec
}

// New registers every collector on a private registry so several monitors
// (and tests) can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		tasks: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Number of tracked download tasks, labeled by status.",
		}, []string{"status"}),
		activeTasks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Number of tasks that have not reached a terminal status.",
		}),
		logLines: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Total number of worker log lines read.",
		}),
		logEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_events_total",
			Help:      "Total number of classified log events, labeled by kind.",
		}, []string{"kind"}),
		eventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_events_applied_total",
			Help:      "Total number of classified events that changed a task, labeled by kind.",
		}, []string{"kind"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_expired_total",
			Help:      "Total number of finished tasks removed after the expiry delay.",
		}),
		streamSpeed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_speed",
			Help:      "Current per-second rate of a sampled counter stream.",
		}, []string{"stream"}),
		streamTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_observed_total",
			Help:      "Cumulative amount observed on a sampled counter stream since start.",
		}, []string{"stream"}),
		processUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_up",
			Help:      "1 when the monitored worker process was found on the last sample.",
		}),
		sampleErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_errors_total",
			Help:      "Total number of failed counter readings, labeled by source.",
		}, []string{"source"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveLine(ev task.Event, classified bool, applied bool) {
	m.logLines.Inc()
	if !classified {
		return
	}
	m.logEvents.WithLabelValues(ev.Kind.String()).Inc()
	if applied {
		m.eventsApplied.WithLabelValues(ev.Kind.String()).Inc()
	}
}

// SetTasks replaces the per-status gauges with the counts of one snapshot.
func (m *Metrics) SetTasks(tasks []task.Task, active int) {
	counts := make(map[task.Status]int, len(statuses))
	for _, t := range tasks {
		counts[t.Status]++
	}
	for _, s := range statuses {
		m.tasks.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
	m.activeTasks.Set(float64(active))
}

func (m *Metrics) AddExpired(n int) {
	m.expired.Add(float64(n))
}

func (m *Metrics) SetStream(stream string, speed float64, total uint64) {
	m.streamSpeed.WithLabelValues(stream).Set(speed)
	m.streamTotal.WithLabelValues(stream).Set(float64(total))
}

func (m *Metrics) SetProcessUp(up bool) {
	if up {
		m.processUp.Set(1)
		return
	}
	m.processUp.Set(0)
}

func (m *Metrics) SampleError(source string) {
	m.sampleErrors.WithLabelValues(source).Inc()
}
