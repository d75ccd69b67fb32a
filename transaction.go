package glowroot

import (
	"sync/atomic"

	"github.com/varsh009/glowroot/internal/tracelog"
)

// Transaction is the root aggregate of one traced unit of work: an
// entry tree rooted on the opening entry, a parallel timer tree, and
// the classification/attribute/probe state described by spec §3.
//
// A transaction is created on one goroutine and all entry/timer stack
// operations are assumed (not enforced, per spec §5) to happen on that
// same logical call chain. Fields that are also read by a snapshot or
// collector goroutine are published through atomics so that readers
// never block the owning goroutine.
type Transaction struct {
	id             TransactionID
	startTimeMilli int64
	startTick      int64
	ticker         Ticker
	logger         tracelog.Logger

	txType *atomic.Pointer[string]
	txName *atomic.Pointer[string]
	user   *atomic.Pointer[string]
	errMsg *atomic.Pointer[string]

	customAttributes *atomic.Pointer[map[string][]string]
	customDetail     *atomic.Pointer[map[string]interface{}]

	rootEntry    *TraceEntry
	entryStack   []*TraceEntry
	rootTimer    *Timer
	currentTimer *Timer

	entryCount         atomic.Int64
	profileSampleCount atomic.Int64
	completed          atomic.Bool
	captureTick        atomic.Int64
	endTick            atomic.Int64

	limitExceededMarkerAdded bool
	userAssigned             bool

	traceStoreThresholdOverrideMillis *atomic.Int64

	threadInfo *ThreadInfoComponent
	gcInfo     *GcInfoComponent

	cancelImmediateStoreTask func()
	cancelUserProfileTask    func()
}

func atomicPtr[T any](v T) *atomic.Pointer[T] {
	p := &atomic.Pointer[T]{}
	p.Store(&v)
	return p
}

// newTransaction creates a transaction rooted at startTick/startMilli,
// with its root entry and root timer already open.
func newTransaction(
	id TransactionID,
	txType, txName string,
	messageSupplier MessageSupplier,
	rootTimerName TimerName,
	ticker Ticker,
	logger tracelog.Logger,
	captureThreadInfo, captureGcInfo bool,
) *Transaction {
	startTick := ticker.NanoTime()
	startMilli := ticker.MillisTime()

	tx := &Transaction{
		id:                                id,
		startTimeMilli:                    startMilli,
		startTick:                         startTick,
		ticker:                            ticker,
		logger:                            logger,
		txType:                            atomicPtr(txType),
		txName:                            atomicPtr(txName),
		user:                              atomicPtr(""),
		errMsg:                            atomicPtr(""),
		customAttributes:                  atomicPtr(map[string][]string{}),
		customDetail:                      atomicPtr(map[string]interface{}{}),
		traceStoreThresholdOverrideMillis: &atomic.Int64{},
	}
	tx.traceStoreThresholdOverrideMillis.Store(-1)

	tx.rootTimer = newRootTimer(rootTimerName, ticker, startTick)
	tx.currentTimer = tx.rootTimer

	tx.rootEntry = &TraceEntry{
		tx:              tx,
		timer:           tx.rootTimer,
		startTick:       startTick,
		messageSupplier: messageSupplier,
	}
	tx.entryStack = append(tx.entryStack, tx.rootEntry)
	tx.entryCount.Store(1)

	if captureThreadInfo {
		tx.threadInfo = NewThreadInfoComponent()
	}
	if captureGcInfo {
		tx.gcInfo = NewGcInfoComponent()
	}
	return tx
}

// ID returns the transaction's stable identity.
func (tx *Transaction) ID() TransactionID { return tx.id }

// StartTick returns the transaction's start tick.
func (tx *Transaction) StartTick() int64 { return tx.startTick }

// StartTimeMillis returns the transaction's start wall-clock time.
func (tx *Transaction) StartTimeMillis() int64 { return tx.startTimeMilli }

// EndTick returns the tick at which the transaction completed, or 0 if
// still active.
func (tx *Transaction) EndTick() int64 { return tx.endTick.Load() }

// CaptureTick returns the tick at which the transaction's completion
// snapshot was normalized, or 0 if not yet completed.
func (tx *Transaction) CaptureTick() int64 { return tx.captureTick.Load() }

// Completed reports whether the root entry has been popped.
func (tx *Transaction) Completed() bool { return tx.completed.Load() }

// Type returns the transaction's current classification type.
func (tx *Transaction) Type() string { return *tx.txType.Load() }

// Name returns the transaction's current classification name.
func (tx *Transaction) Name() string { return *tx.txName.Load() }

// User returns the user associated with the transaction, or "".
func (tx *Transaction) User() string { return *tx.user.Load() }

// Error returns the short error string attached to the transaction, or
// "".
func (tx *Transaction) Error() string { return *tx.errMsg.Load() }

// Headline derives the transaction's display headline from the root
// entry's message supplier, evaluated lazily (never on the hot path).
func (tx *Transaction) Headline() string {
	if tx.rootEntry.messageSupplier == nil {
		return ""
	}
	return tx.rootEntry.messageSupplier().Text
}

// RootEntry returns the transaction's opening entry.
func (tx *Transaction) RootEntry() *TraceEntry { return tx.rootEntry }

// RootTimer returns the transaction's root timer.
func (tx *Transaction) RootTimer() *Timer { return tx.rootTimer }

// CurrentTimer returns the innermost live timer, independent of the
// entry stack (spec §3: timers nest more finely than entries).
func (tx *Transaction) CurrentTimer() *Timer { return tx.currentTimer }

// SetCurrentTimer updates the innermost-live-timer pointer.
func (tx *Transaction) SetCurrentTimer(t *Timer) { tx.currentTimer = t }

// EntryCount returns the total number of entries created, including
// ones suppressed by the cap. It is monotonically increasing and safe
// to read from any goroutine.
func (tx *Transaction) EntryCount() int64 { return tx.entryCount.Load() }

// IncrementEntryCount bumps the entry counter and returns the new
// value.
func (tx *Transaction) IncrementEntryCount() int64 { return tx.entryCount.Add(1) }

// ProfileSampleCount returns the number of stack-sampling profile
// samples folded into this transaction.
func (tx *Transaction) ProfileSampleCount() int64 { return tx.profileSampleCount.Load() }

// IncrementProfileSampleCount bumps the profile sample counter.
func (tx *Transaction) IncrementProfileSampleCount() { tx.profileSampleCount.Add(1) }

// TraceStoreThresholdOverrideMillis returns the per-transaction store
// threshold override in milliseconds, or -1 if unset.
func (tx *Transaction) TraceStoreThresholdOverrideMillis() int64 {
	return tx.traceStoreThresholdOverrideMillis.Load()
}

// SetTraceStoreThreshold sets a per-transaction override in
// milliseconds. Negative values are rejected by the caller (the
// facade); this setter assumes validation already happened.
func (tx *Transaction) SetTraceStoreThreshold(millis int64) {
	tx.traceStoreThresholdOverrideMillis.Store(millis)
}

// SetType sets the transaction's classification type. A no-op once
// completed.
func (tx *Transaction) SetType(t string) {
	if tx.Completed() {
		return
	}
	tx.txType.Store(&t)
}

// SetName sets the transaction's classification name. A no-op once
// completed.
func (tx *Transaction) SetName(n string) {
	if tx.Completed() {
		return
	}
	tx.txName.Store(&n)
}

// SetUser sets the transaction's user. Returns true the first time a
// non-empty user is set, so the caller can trigger
// UserProfileScheduler.MaybeScheduleUserProfiling exactly once.
func (tx *Transaction) SetUser(user string) (firstAssignment bool) {
	if tx.Completed() {
		return false
	}
	tx.user.Store(&user)
	if user == "" || tx.userAssigned {
		return false
	}
	tx.userAssigned = true
	return true
}

// SetError sets the transaction's short error string.
func (tx *Transaction) SetError(msg string) {
	if tx.Completed() {
		return
	}
	tx.errMsg.Store(&msg)
}

// AddCustomAttribute appends value to the multi-valued attribute map
// under key, for indexing.
func (tx *Transaction) AddCustomAttribute(key, value string) {
	if tx.Completed() {
		return
	}
	old := *tx.customAttributes.Load()
	next := make(map[string][]string, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[key] = append(append([]string{}, next[key]...), value)
	tx.customAttributes.Store(&next)
}

// CustomAttributes returns a snapshot of the attribute map.
func (tx *Transaction) CustomAttributes() map[string][]string { return *tx.customAttributes.Load() }

// SetCustomDetail replaces the arbitrary nested detail map used for
// display.
func (tx *Transaction) SetCustomDetail(detail map[string]interface{}) {
	if tx.Completed() {
		return
	}
	tx.customDetail.Store(&detail)
}

// CustomDetail returns the current detail map.
func (tx *Transaction) CustomDetail() map[string]interface{} { return *tx.customDetail.Load() }

// ThreadInfo returns the transaction's thread-info probe, or nil if
// not captured.
func (tx *Transaction) ThreadInfo() *ThreadInfoComponent { return tx.threadInfo }

// GcInfo returns the transaction's GC-info probe, or nil if not
// captured.
func (tx *Transaction) GcInfo() *GcInfoComponent { return tx.gcInfo }

// SetImmediateStoreTaskCanceler registers the cancel function for an
// immediate trace-store scheduled task, invoked by the completion
// cascade.
func (tx *Transaction) SetImmediateStoreTaskCanceler(cancel func()) {
	tx.cancelImmediateStoreTask = cancel
}

// SetUserProfileTaskCanceler registers the cancel function for a
// user-profile scheduled task, invoked by the completion cascade.
func (tx *Transaction) SetUserProfileTaskCanceler(cancel func()) {
	tx.cancelUserProfileTask = cancel
}

// PushEntry creates a new TraceEntry as a child of the innermost
// currently-open entry, pushes it onto the open-entry stack, and
// records timer as the entry's owning timer (spec §4.2).
func (tx *Transaction) PushEntry(startTick int64, messageSupplier MessageSupplier, timer *Timer) *TraceEntry {
	if timer == nil {
		tx.logger.Warnf("glowroot: current timer was nil at entry push, falling back to no-op timer")
		timer = noopTimer()
	}
	parent := tx.entryStack[len(tx.entryStack)-1]
	entry := &TraceEntry{
		tx:              tx,
		parent:          parent,
		timer:           timer,
		startTick:       startTick,
		messageSupplier: messageSupplier,
	}
	parent.children = append(parent.children, entry)
	tx.entryStack = append(tx.entryStack, entry)
	tx.entryCount.Add(1)
	return entry
}

// PopEntry ends entry at endTick with an optional error, and removes
// it (and, if entry was not the innermost open entry, every entry
// above it) from the open-entry stack.
//
// Strict LIFO pop order is not enforced by instrumentation (spec §9
// open question); this implementation logs a warning and fixes up the
// stack by force-ending every entry above the target before popping
// it, rather than leaving the stack corrupted.
func (tx *Transaction) PopEntry(entry *TraceEntry, endTick int64, errMsg *ErrorMessage) {
	idx := -1
	for i := len(tx.entryStack) - 1; i >= 0; i-- {
		if tx.entryStack[i] == entry {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Already popped or not a stack entry (e.g. a dummy handle);
		// just end it in place.
		entry.end(endTick, errMsg)
		entry.timer.Stop(endTick)
		return
	}
	if idx != len(tx.entryStack)-1 {
		tx.logger.Warnf("glowroot: out-of-order popEntry for %q, force-ending %d enclosed entries",
			entry.messageSupplierText(), len(tx.entryStack)-1-idx)
		for i := len(tx.entryStack) - 1; i > idx; i-- {
			stale := tx.entryStack[i]
			if !stale.ended {
				stale.end(endTick, nil)
				stale.timer.Stop(endTick)
			}
		}
	}
	entry.end(endTick, errMsg)
	entry.timer.Stop(endTick)
	tx.entryStack = tx.entryStack[:idx]

	if parent := entry.timer.Parent(); parent != nil {
		tx.currentTimer = parent
	} else {
		tx.currentTimer = tx.rootTimer
	}

	if entry == tx.rootEntry {
		tx.finish(endTick)
	}
}

func (e *TraceEntry) messageSupplierText() string {
	if e.messageSupplier == nil {
		return ""
	}
	return e.messageSupplier().Text
}

// AddEntry appends a flat entry that bypasses the open-entry stack
// (used for addTraceEntry and for overflow entries past the cap). The
// new entry is attached as a child of the currently innermost open
// entry but never itself pushed onto the stack.
func (tx *Transaction) AddEntry(startTick, endTick int64, messageSupplier MessageSupplier, errMsg *ErrorMessage) *TraceEntry {
	parent := tx.entryStack[len(tx.entryStack)-1]
	entry := &TraceEntry{
		tx:              tx,
		parent:          parent,
		timer:           noopTimer(),
		startTick:       startTick,
		endTick:         endTick,
		ended:           true,
		messageSupplier: messageSupplier,
		errorMessage:    errMsg,
	}
	parent.children = append(parent.children, entry)
	tx.entryCount.Add(1)
	return entry
}

// AddEntryLimitExceededMarkerIfNeeded appends the synthetic
// limit-exceeded marker entry exactly once per transaction.
func (tx *Transaction) AddEntryLimitExceededMarkerIfNeeded() {
	if tx.limitExceededMarkerAdded {
		return
	}
	tx.limitExceededMarkerAdded = true
	tick := tx.ticker.NanoTime()
	parent := tx.entryStack[len(tx.entryStack)-1]
	marker := &TraceEntry{
		tx:                  tx,
		parent:              parent,
		timer:               noopTimer(),
		startTick:           tick,
		endTick:             tick,
		ended:               true,
		messageSupplier:     StringMessage("this trace entry limit exceeded"),
		limitExceededMarker: true,
	}
	parent.children = append(parent.children, marker)
}

// finish marks the transaction completed and normalizes its end tick
// and capture tick. Called once, when the root entry is popped.
func (tx *Transaction) finish(endTick int64) {
	tx.endTick.Store(endTick)
	tx.captureTick.Store(endTick)
	if tx.threadInfo != nil {
		tx.threadInfo.Finish()
	}
	if tx.gcInfo != nil {
		tx.gcInfo.Finish()
	}
	tx.completed.Store(true)
}
