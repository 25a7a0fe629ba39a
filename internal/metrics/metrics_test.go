package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/craftops/craftwatch/internal/supervisor"
)

type fixedStatus struct {
	snap *supervisor.StatusSnapshot
}

func (f fixedStatus) Status() *supervisor.StatusSnapshot { return f.snap }

func TestCollector(t *testing.T) {
	source := fixedStatus{snap: &supervisor.StatusSnapshot{
		Running:       true,
		State:         supervisor.StateRunning,
		PID:           4242,
		UptimeSeconds: 360,
		CPUPercent:    55.5,
		MemoryMB:      2048,
		Players:       3,
		MaxPlayers:    20,
	}}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		t.Fatalf("register: %v", err)
	}

	expected := `
# HELP craftwatch_server_up Whether the server process exists
# TYPE craftwatch_server_up gauge
craftwatch_server_up 1
# HELP craftwatch_server_cpu_percent Last sampled CPU usage percent
# TYPE craftwatch_server_cpu_percent gauge
craftwatch_server_cpu_percent 55.5
# HELP craftwatch_server_memory_mb Last sampled resident memory in MiB
# TYPE craftwatch_server_memory_mb gauge
craftwatch_server_memory_mb 2048
# HELP craftwatch_server_players_online Players currently online
# TYPE craftwatch_server_players_online gauge
craftwatch_server_players_online 3
# HELP craftwatch_server_players_max Configured player capacity
# TYPE craftwatch_server_players_max gauge
craftwatch_server_players_max 20
# HELP craftwatch_server_uptime_seconds Seconds since the server process started
# TYPE craftwatch_server_uptime_seconds gauge
craftwatch_server_uptime_seconds 360
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"craftwatch_server_up",
		"craftwatch_server_cpu_percent",
		"craftwatch_server_memory_mb",
		"craftwatch_server_players_online",
		"craftwatch_server_players_max",
		"craftwatch_server_uptime_seconds",
	)
	if err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestCollector_StateSeries(t *testing.T) {
	source := fixedStatus{snap: &supervisor.StatusSnapshot{
		Running: true,
		State:   supervisor.StateStarting,
	}}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		t.Fatalf("register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, fam := range families {
		if fam.GetName() != "craftwatch_server_state" {
			continue
		}
		if len(fam.GetMetric()) != 6 {
			t.Fatalf("state series = %d, want one per lifecycle state", len(fam.GetMetric()))
		}
		for _, m := range fam.GetMetric() {
			active := m.GetGauge().GetValue() == 1
			isStarting := m.GetLabel()[0].GetValue() == "starting"
			if active != isStarting {
				t.Errorf("state %s active=%v", m.GetLabel()[0].GetValue(), active)
			}
		}
		return
	}
	t.Fatal("craftwatch_server_state family missing")
}
