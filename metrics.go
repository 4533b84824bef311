package slotreg

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes registry diagnostics as prometheus metrics. It reads
// the published stats snapshot, so scrapes never contend with live
// counters.
//
//	reg := slotreg.NewRegistry()
//	prometheus.MustRegister(slotreg.NewCollector(reg))
type Collector struct {
	registry *Registry

	registered   *prometheus.Desc
	resolved     *prometheus.Desc
	dependencies *prometheus.Desc
	typeResolved *prometheus.Desc
}

var _ prometheus.Collector = new(Collector)

func NewCollector(r *Registry) *Collector {
	return &Collector{
		registry: r,
		registered: prometheus.NewDesc(
			"slotreg_registered_bindings",
			"Number of currently registered bindings across all scopes.",
			nil, nil,
		),
		resolved: prometheus.NewDesc(
			"slotreg_resolutions_total",
			"Total number of resolutions served.",
			nil, nil,
		),
		dependencies: prometheus.NewDesc(
			"slotreg_dependency_edges",
			"Number of recorded dependency edges.",
			nil, nil,
		),
		typeResolved: prometheus.NewDesc(
			"slotreg_type_resolutions_total",
			"Resolutions served per frequently used type.",
			[]string{"type"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.registered
	ch <- c.resolved
	ch <- c.dependencies
	ch <- c.typeResolved
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.registry.StatsSnapshot()

	ch <- prometheus.MustNewConstMetric(
		c.registered, prometheus.GaugeValue, float64(stats.Registered),
	)
	ch <- prometheus.MustNewConstMetric(
		c.resolved, prometheus.CounterValue, float64(stats.Resolved),
	)
	ch <- prometheus.MustNewConstMetric(
		c.dependencies, prometheus.GaugeValue, float64(stats.Dependencies),
	)

	for _, tc := range stats.FrequentlyUsed {
		ch <- prometheus.MustNewConstMetric(
			c.typeResolved, prometheus.CounterValue, float64(tc.Count), tc.TypeName,
		)
	}
}
