// Package metrics exposes supervisor state as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftops/craftwatch/internal/supervisor"
)

// Statuser supplies the snapshot the collector reads on every scrape.
// Snapshots are cached supervisor-side, so scraping is cheap.
type Statuser interface {
	Status() *supervisor.StatusSnapshot
}

// Collector translates a status snapshot into gauges at scrape time.
type Collector struct {
	source Statuser

	up       *prometheus.Desc
	state    *prometheus.Desc
	cpu      *prometheus.Desc
	memory   *prometheus.Desc
	uptime   *prometheus.Desc
	players  *prometheus.Desc
	capacity *prometheus.Desc
	degraded *prometheus.Desc
}

// NewCollector creates a collector over the status source.
func NewCollector(source Statuser) *Collector {
	return &Collector{
		source: source,
		up: prometheus.NewDesc("craftwatch_server_up",
			"Whether the server process exists", nil, nil),
		state: prometheus.NewDesc("craftwatch_server_state",
			"Current lifecycle state, 1 on the active label", []string{"state"}, nil),
		cpu: prometheus.NewDesc("craftwatch_server_cpu_percent",
			"Last sampled CPU usage percent", nil, nil),
		memory: prometheus.NewDesc("craftwatch_server_memory_mb",
			"Last sampled resident memory in MiB", nil, nil),
		uptime: prometheus.NewDesc("craftwatch_server_uptime_seconds",
			"Seconds since the server process started", nil, nil),
		players: prometheus.NewDesc("craftwatch_server_players_online",
			"Players currently online", nil, nil),
		capacity: prometheus.NewDesc("craftwatch_server_players_max",
			"Configured player capacity", nil, nil),
		degraded: prometheus.NewDesc("craftwatch_server_degraded",
			"Process alive but the readiness probe is failing", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.state
	ch <- c.cpu
	ch <- c.memory
	ch <- c.uptime
	ch <- c.players
	ch <- c.capacity
	ch <- c.degraded
}

// allStates enumerates the state label values so scrapes always report
// every series.
var allStates = []supervisor.State{
	supervisor.StateStopped,
	supervisor.StateStarting,
	supervisor.StateRunning,
	supervisor.StateReady,
	supervisor.StateStopping,
	supervisor.StateError,
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Status()

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, boolValue(snap.Running))
	for _, state := range allStates {
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue,
			boolValue(snap.State == state), string(state))
	}
	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, snap.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, snap.MemoryMB)
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, float64(snap.UptimeSeconds))
	ch <- prometheus.MustNewConstMetric(c.players, prometheus.GaugeValue, float64(snap.Players))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(snap.MaxPlayers))
	ch <- prometheus.MustNewConstMetric(c.degraded, prometheus.GaugeValue, boolValue(snap.Degraded))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
