package glowroot

import (
	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds chosen per spec §4.5's detail floor: microsecond
// samples up to 10^12 (roughly 11.6 days), with enough significant
// figures to keep relative error around 1% at every magnitude.
const (
	histogramLowestTrackableValue  = 1
	histogramHighestTrackableValue = 1_000_000_000_000
	histogramSignificantFigures    = 2
)

// LazyHistogram is a latency histogram over microsecond durations,
// backed by hdrhistogram's constant-memory, O(1)-update structure
// (spec §4.5: "HdrHistogram-style construction is an acceptable
// implementation").
type LazyHistogram struct {
	h *hdrhistogram.Histogram
}

// NewLazyHistogram returns an empty histogram.
func NewLazyHistogram() *LazyHistogram {
	return &LazyHistogram{
		h: hdrhistogram.New(histogramLowestTrackableValue, histogramHighestTrackableValue, histogramSignificantFigures),
	}
}

// Add records one sample in microseconds. Values above the trackable
// ceiling are clamped to it rather than dropped, since an over-range
// sample is still informative for the max/percentile view.
func (lh *LazyHistogram) Add(micros int64) {
	if micros < histogramLowestTrackableValue {
		micros = histogramLowestTrackableValue
	}
	if micros > histogramHighestTrackableValue {
		micros = histogramHighestTrackableValue
	}
	_ = lh.h.RecordValue(micros)
}

// Merge folds another histogram's samples into this one.
func (lh *LazyHistogram) Merge(other *LazyHistogram) {
	if other == nil {
		return
	}
	_ = lh.h.Merge(other.h)
}

// ValueAtPercentile returns the sample value at the given percentile
// (0-100].
func (lh *LazyHistogram) ValueAtPercentile(p float64) int64 {
	return lh.h.ValueAtPercentile(p)
}

// TotalCount returns the number of recorded samples.
func (lh *LazyHistogram) TotalCount() int64 { return lh.h.TotalCount() }

// Max returns the largest recorded sample at the histogram's precision:
// the highest value equivalent to it, which can exceed the exact sample.
func (lh *LazyHistogram) Max() int64 { return lh.h.Max() }

// histogramEncodingVersion selects hdrhistogram's V2 compressed
// encoding, the only version its Encode accepts.
const histogramEncodingVersion = hdrhistogram.V2CompressedEncodingCookieBase

// Encode serializes the histogram to hdrhistogram's compact
// byte-buffer format (spec §4.5: "serializable to a compact byte
// buffer").
func (lh *LazyHistogram) Encode() ([]byte, error) {
	return lh.h.Encode(histogramEncodingVersion)
}

// DecodeLazyHistogram reconstructs a histogram from bytes produced by
// Encode.
func DecodeLazyHistogram(data []byte) (*LazyHistogram, error) {
	h, err := hdrhistogram.Decode(data)
	if err != nil {
		return nil, err
	}
	return &LazyHistogram{h: h}, nil
}
