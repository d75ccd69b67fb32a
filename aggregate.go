package glowroot

import (
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"go.elastic.co/fastjson"
)

// aggregateTimer is the builder's synthetic merged-timer node: timers
// from many transactions fold into it by name, not by tree position
// (spec §4.5 "Merging by name, not by position, is what allows many
// transactions to fold into one timer tree").
type aggregateTimer struct {
	name       string
	totalNanos int64
	count      int64
	childOrder []string
	children   map[string]*aggregateTimer
}

func newAggregateTimer(name string) *aggregateTimer {
	return &aggregateTimer{name: name, children: map[string]*aggregateTimer{}}
}

func (a *aggregateTimer) childFor(name string) *aggregateTimer {
	c, ok := a.children[name]
	if !ok {
		c = newAggregateTimer(name)
		a.children[name] = c
		a.childOrder = append(a.childOrder, name)
	}
	return c
}

// mergeFrom folds one transaction's real Timer subtree into a, by
// name at each level.
func (a *aggregateTimer) mergeFrom(t *Timer) {
	a.totalNanos += t.Total()
	a.count += t.Count()
	for _, child := range t.Children() {
		a.childFor(child.Name().Name()).mergeFrom(child)
	}
}

// nullableSum adds two optional int64s; nil propagates only if both
// sides are nil (spec §4.5 "null-aware addition").
func nullableSum(a, b *int64) *int64 {
	if a == nil && b == nil {
		return nil
	}
	var sum int64
	if a != nil {
		sum += *a
	}
	if b != nil {
		sum += *b
	}
	return &sum
}

// AggregateBuilder incrementally folds completed transactions into a
// per-bucket rollup: totals, a latency histogram, and a merged timer
// tree (spec §4.5). One builder corresponds to one (transactionType,
// transactionName?, interval) bucket key.
type AggregateBuilder struct {
	transactionType string
	transactionName string // empty for the per-type-overall bucket

	transactionCount int64
	errorCount       int64
	traceCount       int64

	totalMicros         int64
	totalCPUMicros      *int64
	totalBlockedMicros  *int64
	totalWaitedMicros   *int64
	totalAllocatedBytes *int64

	histogram *LazyHistogram
	rootTimer *aggregateTimer

	profileSampleCount int64
	profile            *profileNode
}

// NewAggregateBuilder returns an empty builder for the given bucket
// key. transactionName is "" for the per-type-overall bucket (spec
// §3 "Aggregate bucket key: (transactionType, transactionName?)").
func NewAggregateBuilder(transactionType, transactionName string) *AggregateBuilder {
	return &AggregateBuilder{
		transactionType: transactionType,
		transactionName: transactionName,
		histogram:       NewLazyHistogram(),
		rootTimer:       newAggregateTimer("root"),
	}
}

// Add folds one completed transaction's headline counters and
// histogram sample into the builder (spec §4.5 `add`). wouldBeStored
// indicates whether this transaction is slated for trace storage
// (incrementing traceCount); the engine's own storage-threshold
// policy lives outside this package.
func (b *AggregateBuilder) Add(tx *Transaction, wouldBeStored bool) {
	durationNanos := tx.EndTick() - tx.StartTick()
	durationMicros := durationNanos / 1000

	b.transactionCount++
	b.totalMicros += durationMicros
	if tx.Error() != "" {
		b.errorCount++
	}
	if wouldBeStored {
		b.traceCount++
	}
	b.histogram.Add(durationMicros)

	if ti := tx.ThreadInfo(); ti != nil {
		if cpu := ti.CPUMicros(); cpu != nil {
			b.totalCPUMicros = nullableSum(b.totalCPUMicros, cpu)
		}
		if blocked := ti.BlockedMicros(); blocked != nil {
			b.totalBlockedMicros = nullableSum(b.totalBlockedMicros, blocked)
		}
		if waited := ti.WaitedMicros(); waited != nil {
			b.totalWaitedMicros = nullableSum(b.totalWaitedMicros, waited)
		}
		if alloc := ti.AllocatedBytes(); alloc != nil {
			v := int64(*alloc)
			b.totalAllocatedBytes = nullableSum(b.totalAllocatedBytes, &v)
		}
	}
}

// AddToTimers merges one transaction's root timer into the builder's
// synthetic root aggregate-timer (spec §4.5 `addToTimers`).
func (b *AggregateBuilder) AddToTimers(rootTimer *Timer) {
	b.rootTimer.mergeFrom(rootTimer)
}

// profileNode is a stack-sampling tree node, merged by stack-frame
// identity (spec §4.5 `addToProfile`). The engine's profiler itself
// is out of scope (spec §1); this models only the merge target shape
// so a future sampler has somewhere to fold into.
type profileNode struct {
	stackFrame  string
	sampleCount int64
	childOrder  []string
	children    map[string]*profileNode
}

func newProfileNode(frame string) *profileNode {
	return &profileNode{stackFrame: frame, children: map[string]*profileNode{}}
}

func (p *profileNode) childFor(frame string) *profileNode {
	c, ok := p.children[frame]
	if !ok {
		c = newProfileNode(frame)
		p.children[frame] = c
		p.childOrder = append(p.childOrder, frame)
	}
	return c
}

// ProfileSample is one captured stack, innermost frame last, as a
// caller would receive it from a stack-sampling profiler.
type ProfileSample struct {
	Stack []string
}

// AddToProfile merges a sampled stack into the builder's aggregate
// profile tree by stack-frame identity and increments
// profileSampleCount (spec §4.5 `addToProfile`).
func (b *AggregateBuilder) AddToProfile(sample ProfileSample) {
	if len(sample.Stack) == 0 {
		return
	}
	if b.profile == nil {
		// synthetic root: each sample's outermost frame is a child of it
		b.profile = newProfileNode("")
	}
	node := b.profile
	node.sampleCount++
	for _, frame := range sample.Stack {
		node = node.childFor(frame)
		node.sampleCount++
	}
	b.profileSampleCount++
}

// Aggregate is the immutable record emitted by AggregateBuilder.Build
// (spec §4.5 `build(captureTime)`).
type Aggregate struct {
	TransactionType   string
	TransactionName   string
	CaptureTimeMillis int64

	TransactionCount int64
	ErrorCount       int64
	TraceCount       int64

	TotalMicros         int64
	TotalCPUMicros      *int64
	TotalBlockedMicros  *int64
	TotalWaitedMicros   *int64
	TotalAllocatedBytes *int64

	TimerJSON     []byte
	HistogramData []byte
	ProfileJSON   []byte

	ProfileSampleCount int64
}

// Build emits an immutable Aggregate, serializing the timer tree,
// encoding the histogram, and (if any samples were folded in)
// serializing the profile tree. Individual serialization failures are
// wrapped with call-site context and, if more than one fails,
// combined with go-multierror (spec §7 "Multi-cause internal
// failures ... combined with go-multierror").
func (b *AggregateBuilder) Build(captureTimeMillis int64) (*Aggregate, error) {
	var result *multierror.Error

	var timerW fastjson.Writer
	marshalTimerTree(&timerW, timerFromAggregate(b.rootTimer))
	timerJSON := append([]byte(nil), timerW.Bytes()...)

	histogramData, err := b.histogram.Encode()
	if err != nil {
		result = multierror.Append(result, errors.Wrap(err, "encode histogram"))
	}

	var profileJSON []byte
	if b.profile != nil {
		var profileW fastjson.Writer
		if err := marshalProfileTree(&profileW, b.profile); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "marshal profile tree"))
		} else {
			profileJSON = append([]byte(nil), profileW.Bytes()...)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Aggregate{
		TransactionType:     b.transactionType,
		TransactionName:     b.transactionName,
		CaptureTimeMillis:   captureTimeMillis,
		TransactionCount:    b.transactionCount,
		ErrorCount:          b.errorCount,
		TraceCount:          b.traceCount,
		TotalMicros:         b.totalMicros,
		TotalCPUMicros:      b.totalCPUMicros,
		TotalBlockedMicros:  b.totalBlockedMicros,
		TotalWaitedMicros:   b.totalWaitedMicros,
		TotalAllocatedBytes: b.totalAllocatedBytes,
		TimerJSON:           timerJSON,
		HistogramData:       histogramData,
		ProfileSampleCount:  b.profileSampleCount,
		ProfileJSON:         profileJSON,
	}, nil
}

// timerFromAggregate adapts an aggregateTimer back into the shape
// marshalTimerTree (snapshot.go) already knows how to write, so both
// the live-transaction snapshot and the aggregate rollup share one
// serialization routine.
func timerFromAggregate(a *aggregateTimer) *Timer {
	t := &Timer{name: TimerName{name: a.name}, total: a.totalNanos, count: a.count, children: map[string]*Timer{}}
	for _, name := range a.childOrder {
		child := timerFromAggregate(a.children[name])
		child.parent = t
		t.children[name] = child
		t.childOrder = append(t.childOrder, name)
	}
	return t
}

func marshalProfileTree(w *fastjson.Writer, p *profileNode) error {
	w.RawByte('{')
	w.String("stackFrame")
	w.RawByte(':')
	w.String(p.stackFrame)

	w.RawByte(',')
	w.String("sampleCount")
	w.RawByte(':')
	w.Int64(p.sampleCount)

	names := append([]string{}, p.childOrder...)
	sort.Strings(names)

	w.RawByte(',')
	w.String("childFrames")
	w.RawByte(':')
	w.RawByte('[')
	for i, name := range names {
		if i > 0 {
			w.RawByte(',')
		}
		if err := marshalProfileTree(w, p.children[name]); err != nil {
			return err
		}
	}
	w.RawByte(']')
	w.RawByte('}')
	return nil
}
