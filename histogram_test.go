package glowroot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyHistogramRecordsAndReportsPercentiles(t *testing.T) {
	h := NewLazyHistogram()
	h.Add(100)
	h.Add(200)
	h.Add(500)

	assert.Equal(t, int64(3), h.TotalCount())
	// At 2 significant figures 500 shares a bucket with 501, and Max
	// reports the highest value of that bucket.
	assert.Equal(t, int64(501), h.Max())
	assert.InDelta(t, 500, h.ValueAtPercentile(100), 10)
}

func TestLazyHistogramEncodeDecodeRoundTrip(t *testing.T) {
	h := NewLazyHistogram()
	h.Add(1000)
	h.Add(2000)

	data, err := h.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := DecodeLazyHistogram(data)
	require.NoError(t, err)
	assert.Equal(t, h.TotalCount(), decoded.TotalCount())
	assert.Equal(t, h.Max(), decoded.Max())
}

func TestLazyHistogramMerge(t *testing.T) {
	a := NewLazyHistogram()
	a.Add(100)
	b := NewLazyHistogram()
	b.Add(200)

	a.Merge(b)
	assert.Equal(t, int64(2), a.TotalCount())
}

func TestLazyHistogramClampsOutOfRangeSamples(t *testing.T) {
	h := NewLazyHistogram()
	h.Add(-5)
	h.Add(histogramHighestTrackableValue + 1000)
	assert.Equal(t, int64(2), h.TotalCount())
}
