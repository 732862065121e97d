package datadog

import (
	"testing"

	"medallion/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type recorder struct {
	sent   []sent
	closed bool
}

func (r *recorder) Count(name string, value int64, tags []string, _ float64) error {
	r.sent = append(r.sent, sent{"count", name, float64(value), tags})
	return nil
}

func (r *recorder) Histogram(name string, value float64, tags []string, _ float64) error {
	r.sent = append(r.sent, sent{"histogram", name, value, tags})
	return nil
}

func (r *recorder) Close() error { r.closed = true; return nil }

func TestBackend_ForwardsWithTags(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	b := &Backend{client: rec}

	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"kind": "read", "job": "cars"})
	b.ObserveHistogram(metrics.StageDuration, 0.25, metrics.Labels{"step": "silver_load"})
	require.NoError(t, b.Flush())

	require.Len(t, rec.sent, 2)
	assert.Equal(t, sent{"count", metrics.RowsTotal, 3, []string{"job:cars", "kind:read"}}, rec.sent[0])
	assert.Equal(t, sent{"histogram", metrics.StageDuration, 0.25, []string{"step:silver_load"}}, rec.sent[1])
	assert.True(t, rec.closed)
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewBackend(Config{})
	assert.Error(t, err)
}

func TestNilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	assert.NoError(t, b.Flush())
	assert.Nil(t, labelsToTags(nil))
}
