package glowroot

import (
	"sort"

	"go.elastic.co/fastjson"
)

// Existence mirrors the entries/profile "existence" enum from spec
// §4.4: YES/NO/EXPIRED. EXPIRED is reserved for a storage tier this
// engine does not implement (spec §9 open question) and is never
// emitted by TraceSnapshot or AggregateBuilder.
type Existence int

const (
	ExistenceNo Existence = iota
	ExistenceYes
	ExistenceExpired
)

// TraceSnapshot is an immutable capture of a transaction, normalized
// to a capture tick, produced without taking any lock that could
// block the instrumented thread (spec §4.4).
type TraceSnapshot struct {
	ID      TransactionID
	Active  bool
	Partial bool

	StartTimeMillis   int64
	CaptureTimeMillis int64
	DurationNanos     int64

	Type     string
	Name     string
	Headline string
	Error    string
	User     string

	CustomAttributes map[string][]string
	CustomDetail     map[string]interface{}

	ThreadInfo *ThreadInfoComponent
	GcInfo     *GcInfoComponent

	EntryCount         int64
	ProfileSampleCount int64

	EntriesExistence Existence
	ProfileExistence Existence

	rootTimer *Timer
}

// NewActiveSnapshot captures tx as still running, with timings
// normalized to captureTick (spec §4.4 "Active" variant).
func NewActiveSnapshot(tx *Transaction, captureTick, captureTimeMillis int64) *TraceSnapshot {
	return newSnapshot(tx, true, false, captureTick, captureTimeMillis)
}

// NewPartialSnapshot captures tx as an intermediate record for a
// long-running transaction (spec §4.4 "Partial" variant).
func NewPartialSnapshot(tx *Transaction, captureTick, captureTimeMillis int64) *TraceSnapshot {
	return newSnapshot(tx, true, true, captureTick, captureTimeMillis)
}

// NewCompletedSnapshot captures tx using its own end tick; the capture
// time is its start time plus the time elapsed up to its capture tick
// (spec §4.4 "Completed" variant). tx must already be completed.
func NewCompletedSnapshot(tx *Transaction) *TraceSnapshot {
	captureTimeMillis := tx.StartTimeMillis() + (tx.CaptureTick()-tx.StartTick())/1_000_000
	return newSnapshot(tx, false, false, tx.EndTick(), captureTimeMillis)
}

func newSnapshot(tx *Transaction, active, partial bool, captureTick, captureTimeMillis int64) *TraceSnapshot {
	entryCount := tx.EntryCount()
	entriesExistence := ExistenceNo
	if entryCount > 0 {
		entriesExistence = ExistenceYes
	}
	profileExistence := ExistenceNo
	if tx.ProfileSampleCount() > 0 {
		profileExistence = ExistenceYes
	}
	return &TraceSnapshot{
		ID:                 tx.ID(),
		Active:             active,
		Partial:            partial,
		StartTimeMillis:    tx.StartTimeMillis(),
		CaptureTimeMillis:  captureTimeMillis,
		DurationNanos:      captureTick - tx.StartTick(),
		Type:               tx.Type(),
		Name:               tx.Name(),
		Headline:           tx.Headline(),
		Error:              tx.Error(),
		User:               tx.User(),
		CustomAttributes:   tx.CustomAttributes(),
		CustomDetail:       tx.CustomDetail(),
		ThreadInfo:         tx.ThreadInfo(),
		GcInfo:             tx.GcInfo(),
		EntryCount:         entryCount,
		ProfileSampleCount: tx.ProfileSampleCount(),
		EntriesExistence:   entriesExistence,
		ProfileExistence:   profileExistence,
		rootTimer:          tx.RootTimer(),
	}
}

// MarshalFastJSON writes the snapshot as a JSON object, following the
// teacher's own `MarshalFastJSON(*fastjson.Writer)` convention
// (tracer.go's jsonRequestMetadata calls it on model.Process/System).
func (s *TraceSnapshot) MarshalFastJSON(w *fastjson.Writer) error {
	w.RawByte('{')
	w.String("id")
	w.RawByte(':')
	w.String(s.ID.String())

	w.RawByte(',')
	w.String("active")
	w.RawByte(':')
	w.RawString(boolJSON(s.Active))

	w.RawByte(',')
	w.String("partial")
	w.RawByte(':')
	w.RawString(boolJSON(s.Partial))

	w.RawByte(',')
	w.String("startTime")
	w.RawByte(':')
	w.Int64(s.StartTimeMillis)

	w.RawByte(',')
	w.String("captureTime")
	w.RawByte(':')
	w.Int64(s.CaptureTimeMillis)

	w.RawByte(',')
	w.String("duration")
	w.RawByte(':')
	w.Int64(s.DurationNanos)

	w.RawByte(',')
	w.String("type")
	w.RawByte(':')
	w.String(s.Type)

	w.RawByte(',')
	w.String("transactionName")
	w.RawByte(':')
	w.String(s.Name)

	w.RawByte(',')
	w.String("headline")
	w.RawByte(':')
	w.String(s.Headline)

	w.RawByte(',')
	w.String("error")
	w.RawByte(':')
	w.String(s.Error)

	w.RawByte(',')
	w.String("user")
	w.RawByte(':')
	w.String(s.User)

	w.RawByte(',')
	w.String("customAttributes")
	w.RawByte(':')
	marshalStringSliceMap(w, s.CustomAttributes)

	w.RawByte(',')
	w.String("timers")
	w.RawByte(':')
	marshalTimerTree(w, s.rootTimer)

	w.RawByte(',')
	w.String("entryCount")
	w.RawByte(':')
	w.Int64(s.EntryCount)

	w.RawByte(',')
	w.String("profileSampleCount")
	w.RawByte(':')
	w.Int64(s.ProfileSampleCount)

	w.RawByte('}')
	return nil
}

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// marshalStringSliceMap writes a multi-valued string map as a JSON
// object of arrays, with keys sorted for deterministic output (spec
// §8 round-trip property: equal logical content, not byte-identical
// encoding order).
func marshalStringSliceMap(w *fastjson.Writer, m map[string][]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.RawByte('{')
	for i, k := range keys {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(k)
		w.RawByte(':')
		w.RawByte('[')
		for j, v := range m[k] {
			if j > 0 {
				w.RawByte(',')
			}
			w.String(v)
		}
		w.RawByte(']')
	}
	w.RawByte('}')
}

// marshalTimerTree writes a Timer tree as nested JSON objects,
// following spec §4.4's "serialized timer tree" field.
func marshalTimerTree(w *fastjson.Writer, t *Timer) {
	if t == nil {
		w.RawString("null")
		return
	}
	w.RawByte('{')
	w.String("name")
	w.RawByte(':')
	w.String(t.Name().Name())

	w.RawByte(',')
	w.String("totalNanos")
	w.RawByte(':')
	w.Int64(t.Total())

	w.RawByte(',')
	w.String("count")
	w.RawByte(':')
	w.Int64(t.Count())

	children := t.Children()
	w.RawByte(',')
	w.String("childTimers")
	w.RawByte(':')
	w.RawByte('[')
	for i, c := range children {
		if i > 0 {
			w.RawByte(',')
		}
		marshalTimerTree(w, c)
	}
	w.RawByte(']')
	w.RawByte('}')
}
