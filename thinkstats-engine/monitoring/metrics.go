package monitoring

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/data"
)

// Metrics holds all Prometheus metrics for a loader run.
type Metrics struct {
	// Load metrics
	LoadsTotal   prometheus.Counter
	RowsLoaded   prometheus.Counter
	LoadDuration prometheus.Histogram
	LoadErrors   *prometheus.CounterVec

	// Validation metrics
	ChecksTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with the given namespace,
// registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Total number of table loads attempted",
		}),
		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Total number of fixed-width records materialized",
		}),
		LoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time spent reading the dictionary and data file",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		LoadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Failed loads by error kind",
		}, []string{"kind"}),

		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Validation checks by result",
		}, []string{"result"}),
	}
}

// RecordLoad records a table load. rows is ignored when err is non-nil.
func (m *Metrics) RecordLoad(rows int64, duration time.Duration, err error) {
	m.LoadsTotal.Inc()
	m.LoadDuration.Observe(duration.Seconds())
	if err != nil {
		m.LoadErrors.WithLabelValues(errorKind(err)).Inc()
		return
	}
	m.RowsLoaded.Add(float64(rows))
}

// RecordCheck records the outcome of one validation check.
func (m *Metrics) RecordCheck(passed bool) {
	if passed {
		m.ChecksTotal.WithLabelValues("pass").Inc()
	} else {
		m.ChecksTotal.WithLabelValues("fail").Inc()
	}
}

func errorKind(err error) string {
	var rerr *data.ResourceError
	var perr *data.ParseError
	switch {
	case errors.As(err, &perr):
		return "parse"
	case errors.As(err, &rerr):
		return "resource"
	default:
		return "other"
	}
}

// WriteTextfile writes all metrics gathered from g to path in the text
// exposition format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
