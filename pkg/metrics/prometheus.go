package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes pattern application counters and the in-memory timing
// metrics to Prometheus. It owns its own registry so tests and multiple
// sessions never collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	applies     *prometheus.CounterVec
	stale       prometheus.Counter
	fetchErrors prometheus.Counter
	matches     *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

// NewCollector creates a collector with a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		applies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolepattern_applies_total",
				Help: "Pattern applications by level",
			},
			[]string{"level"},
		),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rolepattern_stale_applies_total",
			Help: "Applications discarded because a newer request superseded them",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rolepattern_fetch_errors_total",
			Help: "Data source fetches that failed and degraded to empty data",
		}),
		matches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rolepattern_matches",
				Help: "Match count per version from the latest application",
			},
			[]string{"version"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rolepattern_step_duration_seconds",
				Help:    "Duration of apply pipeline steps",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"step"},
		),
	}
	c.registry.MustRegister(c.applies, c.stale, c.fetchErrors, c.matches, c.duration)
	c.registry.MustRegister(timingCollector{})
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveApply records one completed application.
func (c *Collector) ObserveApply(level int, counts map[string]int) {
	if c == nil {
		return
	}
	c.applies.WithLabelValues(strconv.Itoa(level)).Inc()
	c.matches.Reset()
	for v, n := range counts {
		c.matches.WithLabelValues(v).Set(float64(n))
	}
}

// ObserveStale records a superseded application.
func (c *Collector) ObserveStale() {
	if c == nil {
		return
	}
	c.stale.Inc()
}

// ObserveFetchError records a failed fetch.
func (c *Collector) ObserveFetchError() {
	if c == nil {
		return
	}
	c.fetchErrors.Inc()
}

// ObserveStep records a pipeline step duration in seconds.
func (c *Collector) ObserveStep(step string, seconds float64) {
	if c == nil {
		return
	}
	c.duration.WithLabelValues(step).Observe(seconds)
}

// timingCollector mirrors the pipeline Steps as const metrics at scrape time.
type timingCollector struct{}

var (
	timingCountDesc = prometheus.NewDesc(
		"rolepattern_timing_count",
		"Number of recorded measurements",
		[]string{"name"}, nil,
	)
	timingAvgDesc = prometheus.NewDesc(
		"rolepattern_timing_avg_seconds",
		"Average recorded duration",
		[]string{"name"}, nil,
	)
	timingMaxDesc = prometheus.NewDesc(
		"rolepattern_timing_max_seconds",
		"Maximum recorded duration",
		[]string{"name"}, nil,
	)
)

func (timingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- timingCountDesc
	ch <- timingAvgDesc
	ch <- timingMaxDesc
}

func (timingCollector) Collect(ch chan<- prometheus.Metric) {
	for _, step := range Steps() {
		st := step.Stats()
		ch <- prometheus.MustNewConstMetric(timingCountDesc, prometheus.CounterValue, float64(st.Count), st.Name)
		ch <- prometheus.MustNewConstMetric(timingAvgDesc, prometheus.GaugeValue, st.AvgMs/1e3, st.Name)
		ch <- prometheus.MustNewConstMetric(timingMaxDesc, prometheus.GaugeValue, st.MaxMs/1e3, st.Name)
	}
}
