package glowroot

import "time"

// Ticker is a source of monotonic nanosecond ticks and wall-clock
// milliseconds, injected everywhere a Transaction or TraceEntry needs
// "now" so that tests can advance time deterministically instead of
// depending on the real clock.
type Ticker interface {
	// NanoTime returns a monotonic nanosecond reading. Only differences
	// between two NanoTime calls are meaningful; the absolute value
	// carries no wall-clock meaning.
	NanoTime() int64
	// MillisTime returns the current wall-clock time in milliseconds
	// since the Unix epoch.
	MillisTime() int64
}

// systemTicker is the default Ticker, backed by the runtime clock.
type systemTicker struct{}

// SystemTicker is the production Ticker, backed by time.Now(). The
// monotonic reading comes from time.Since's use of the monotonic
// component that time.Now embeds, by taking the duration from a fixed
// reference instant recorded at package initialization.
var SystemTicker Ticker = systemTicker{}

var processStart = time.Now()

func (systemTicker) NanoTime() int64 {
	return int64(time.Since(processStart))
}

func (systemTicker) MillisTime() int64 {
	return time.Now().UnixMilli()
}

// TestTicker is a Ticker with an explicit, advanceable reading, for use
// in deterministic tests.
type TestTicker struct {
	nanos  int64
	millis int64
}

// NewTestTicker returns a TestTicker starting at the given nanosecond
// tick and wall-clock millisecond time.
func NewTestTicker(startNanos, startMillis int64) *TestTicker {
	return &TestTicker{nanos: startNanos, millis: startMillis}
}

func (t *TestTicker) NanoTime() int64 {
	return t.nanos
}

func (t *TestTicker) MillisTime() int64 {
	return t.millis
}

// Advance moves the ticker forward by d, keeping the nanosecond and
// millisecond readings consistent with one another.
func (t *TestTicker) Advance(d time.Duration) {
	t.nanos += int64(d)
	t.millis += d.Milliseconds()
}
