package observability

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/stretchr/testify/assert"
)

type countingCounter struct{ total float64 }

func (c *countingCounter) Add(d float64, _ ...observability.Label) { c.total += d }

func TestNewResolvesRegisteredInstruments(t *testing.T) {
	c := &countingCounter{}
	tel := New(nil, nil,
		map[observability.MetricKey]observability.Counter{observability.MUsecaseRequests: c},
		nil,
	)

	tel.Metrics().Counter(observability.MUsecaseRequests).Add(2)
	tel.Metrics().Counter(observability.MHTTPRequests).Add(5)
	tel.Metrics().Histogram(observability.MUsecaseDuration).Observe(1)

	assert.Equal(t, 2.0, c.total)
	assert.NotNil(t, tel.Tracer())
	assert.NotNil(t, tel.Logger())
}
