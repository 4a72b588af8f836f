package db

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedStats(s PoolStats) StatsFunc {
	return func() (PoolStats, bool) { return s, true }
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "test", "test-service")

	ch := make(chan *prometheus.Desc, 10)
	collector.Describe(ch)
	close(ch)

	var names []string
	for desc := range ch {
		names = append(names, desc.String())
	}
	require.Len(t, names, 4)

	expected := []string{
		"test_db_pool_total_conns",
		"test_db_pool_idle_conns",
		"test_db_pool_acquired_conns",
		"test_db_pool_max_conns",
	}
	for i, want := range expected {
		assert.Contains(t, names[i], want)
		assert.Contains(t, names[i], `service="test-service"`)
	}
}

func TestPoolStatsCollector_Collect_NoPool(t *testing.T) {
	for name, stats := range map[string]StatsFunc{
		"nil func": nil,
		"nil pool": PoolStatsFrom(nil),
	} {
		t.Run(name, func(t *testing.T) {
			collector := NewPoolStatsCollector(stats, "test", "test-service")
			assert.Equal(t, 0, testutil.CollectAndCount(collector))
		})
	}
}

func TestPoolStatsCollector_Collect(t *testing.T) {
	collector := NewPoolStatsCollector(fixedStats(PoolStats{Total: 4, Idle: 3, Acquired: 1, Max: 10}), "penf_transcripts", "serve")

	expected := `
# HELP penf_transcripts_db_pool_acquired_conns Number of connections currently acquired from the pool
# TYPE penf_transcripts_db_pool_acquired_conns gauge
penf_transcripts_db_pool_acquired_conns{service="serve"} 1
# HELP penf_transcripts_db_pool_idle_conns Number of idle connections in the pool
# TYPE penf_transcripts_db_pool_idle_conns gauge
penf_transcripts_db_pool_idle_conns{service="serve"} 3
# HELP penf_transcripts_db_pool_max_conns Maximum number of connections allowed in the pool
# TYPE penf_transcripts_db_pool_max_conns gauge
penf_transcripts_db_pool_max_conns{service="serve"} 10
# HELP penf_transcripts_db_pool_total_conns Total number of connections currently open in the pool
# TYPE penf_transcripts_db_pool_total_conns gauge
penf_transcripts_db_pool_total_conns{service="serve"} 4
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected)))
}

func TestRegisterPoolStatsCollector_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := RegisterPoolStatsCollector(nil, "test", "test-service", reg)
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = RegisterPoolStatsCollector(nil, "test", "test-service", reg)
	assert.NoError(t, err, "already registered should be ignored")

	_, err = reg.Gather()
	assert.NoError(t, err)
}

func TestPoolStatsCollector_Lint(t *testing.T) {
	collector := NewPoolStatsCollector(fixedStats(PoolStats{Max: 1}), "test", "test-service")

	problems, err := testutil.CollectAndLint(collector)
	require.NoError(t, err)
	for _, p := range problems {
		t.Errorf("lint problem: %s", p.Text)
	}
}
