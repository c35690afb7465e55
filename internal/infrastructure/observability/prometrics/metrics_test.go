package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRegistersOnceAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "minishop", "")

	c1 := r.Counter("usecase_requests_total", "help", "use_case", "outcome")
	c2 := r.Counter("usecase_requests_total", "help", "use_case", "outcome")

	c1.Add(1, observability.L("use_case", "order.place"), observability.L("outcome", "success"))
	c2.Add(2, observability.L("use_case", "order.place"), observability.L("outcome", "success"))

	cv := r.(*registry).counters["usecase_requests_total"]
	assert.Equal(t, 3.0, testutil.ToFloat64(cv.WithLabelValues("order.place", "success")))
}

func TestHistogramUsesDefaultBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "", "")

	h := r.Histogram("usecase_duration_seconds", "help", nil, "use_case")
	h.Observe(0.2, observability.L("use_case", "order.place"))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "usecase_duration_seconds", families[0].GetName())
	assert.Len(t, families[0].GetMetric()[0].GetHistogram().GetBucket(), len(prometheus.DefBuckets))
}
