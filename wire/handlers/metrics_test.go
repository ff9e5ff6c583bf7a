package handlers

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitycache/graphwire/scene"
	"github.com/entitycache/graphwire/wire/core"
	"github.com/entitycache/graphwire/wire/metrics"
)

func TestRecorderSeesHandlerFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	engine := core.NewEngine(
		core.WithRegistry(core.NewRegistry(core.WithBuiltins(Builtin()...))),
		core.WithRecorder(rec))

	sun := scene.Demo().Find("Sun")
	scene.Destroy(sun)

	res := engine.Serialize(sun, core.DepthStandard)
	require.Equal(t, core.StatusFallback, res.Status)

	expected := `
# HELP graphwire_handler_failures_total Number of handler failures recovered by falling back to reflection.
# TYPE graphwire_handler_failures_total counter
graphwire_handler_failures_total{type="scene.GameObject"} 1
# HELP graphwire_serializations_total Number of top-level serializations by envelope status.
# TYPE graphwire_serializations_total counter
graphwire_serializations_total{status="fallback"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"graphwire_handler_failures_total", "graphwire_serializations_total"))

	count, err := testutil.GatherAndCount(reg, "graphwire_member_failures_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}
