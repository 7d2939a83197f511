package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := New()

	r.ObservePackage("block_tracking", true)
	r.ObservePackage("block_tracking", true)
	r.ObservePackage("block_tracking", false)
	r.ObserveCommand(true)
	r.ObserveCommand(false)
	r.ObserveApply(true)
	r.ObserveApply(false)
	r.ObserveApply(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.PackagesTotal.WithLabelValues("block_tracking", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PackagesTotal.WithLabelValues("block_tracking", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CommandsTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CommandsTotal.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RulesApplied.WithLabelValues("enforce")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.RulesApplied.WithLabelValues("revert")))
}

func TestRegistry_WriteTextfile(t *testing.T) {
	r := New()
	r.ObserveCommand(true)

	path := filepath.Join(t.TempDir(), "ifw.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `ifw_privileged_commands_total{success="true"} 1`))
}

func TestRegistry_GathererIsPrivate(t *testing.T) {
	a, b := New(), New()
	a.ObserveCommand(true)

	mfs, err := b.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			assert.Zero(t, m.GetCounter().GetValue(), "registries must not share counters")
		}
	}
}
