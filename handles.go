package glowroot

import "time"

// TraceEntryHandle is the capability PluginServices hands back from
// StartTraceEntry/StartTransaction (a live, dummy or no-op variant)
// and from AddTraceEntry (an already-ended variant or the no-op one),
// all sharing the same surface, so instrumentation code never has to
// branch on which one it holds (spec §9).
type TraceEntryHandle interface {
	End()
	EndWithStackTrace(threshold time.Duration)
	EndWithError(errMsg ErrorMessage)
	MessageSupplier() MessageSupplier
}

// TimerHandle is the capability PluginServices hands back from
// StartTimer: live or no-op.
type TimerHandle interface {
	Stop()
}

// --- live entry: backed by a real TraceEntry on the open-entry stack ---

type liveEntryHandle struct {
	svc   *PluginServices
	tx    *Transaction
	entry *TraceEntry
}

func (h *liveEntryHandle) End() {
	h.svc.endLiveEntry(h.tx, h.entry, h.svc.ticker.NanoTime(), nil)
}

func (h *liveEntryHandle) EndWithStackTrace(threshold time.Duration) {
	tick := h.svc.ticker.NanoTime()
	elapsed := time.Duration(tick - h.entry.startTick)
	if elapsed >= threshold {
		h.svc.captureStackTraceOnto(h.entry)
	}
	h.svc.endLiveEntry(h.tx, h.entry, tick, nil)
}

func (h *liveEntryHandle) EndWithError(errMsg ErrorMessage) {
	tick := h.svc.ticker.NanoTime()
	if errMsg.Err == nil {
		h.svc.captureStackTraceOnto(h.entry)
	}
	h.svc.endLiveEntry(h.tx, h.entry, tick, &errMsg)
}

func (h *liveEntryHandle) MessageSupplier() MessageSupplier { return h.entry.messageSupplier }

// --- dummy entry: cap was exceeded; only the timer is real ---

type dummyEntryHandle struct {
	svc             *PluginServices
	tx              *Transaction
	timer           *Timer
	startTick       int64
	messageSupplier MessageSupplier
}

// restoreParent stops h.timer at tick and, if it was still the
// transaction's current timer, restores the pointer to its parent —
// the same discipline liveTimerHandle.Stop applies, so an over-cap
// entry/timer that ends leaves the next sibling nesting under the
// transaction's real current timer instead of under this now-stopped
// node.
func (h *dummyEntryHandle) restoreParent(tick int64) {
	h.timer.Stop(tick)
	if parent := h.timer.Parent(); parent != nil && h.tx.CurrentTimer() == h.timer {
		h.tx.SetCurrentTimer(parent)
	}
}

func (h *dummyEntryHandle) End() {
	h.restoreParent(h.svc.ticker.NanoTime())
}

func (h *dummyEntryHandle) EndWithStackTrace(threshold time.Duration) {
	tick := h.svc.ticker.NanoTime()
	h.restoreParent(tick)
	if time.Duration(tick-h.startTick) < threshold {
		return
	}
	if h.tx.EntryCount() >= int64(2*h.svc.maxTraceEntriesPerTransaction()) {
		return
	}
	frames, ok := h.svc.stackTraceFrames()
	if !ok {
		h.svc.logger.Warnf("glowroot: stack trace capture found no caller frame outside the facade")
	}
	entry := h.tx.AddEntry(h.startTick, tick, h.messageSupplier, nil)
	entry.stackTrace = frames
}

func (h *dummyEntryHandle) EndWithError(errMsg ErrorMessage) {
	tick := h.svc.ticker.NanoTime()
	h.restoreParent(tick)
	if h.tx.EntryCount() >= int64(2*h.svc.maxTraceEntriesPerTransaction()) {
		return
	}
	entry := h.tx.AddEntry(h.startTick, tick, h.messageSupplier, &errMsg)
	if errMsg.Err == nil {
		if frames, ok := h.svc.stackTraceFrames(); ok {
			entry.stackTrace = frames
		} else {
			h.svc.logger.Warnf("glowroot: stack trace capture found no caller frame outside the facade")
		}
	}
}

func (h *dummyEntryHandle) MessageSupplier() MessageSupplier { return h.messageSupplier }

// --- no-op entry: disabled, invalid argument, or no current transaction ---

type noopEntryHandle struct{}

var noopEntry TraceEntryHandle = noopEntryHandle{}

func (noopEntryHandle) End()                            {}
func (noopEntryHandle) EndWithStackTrace(time.Duration) {}
func (noopEntryHandle) EndWithError(ErrorMessage)       {}
func (noopEntryHandle) MessageSupplier() MessageSupplier { return nil }

// --- live timer ---

type liveTimerHandle struct {
	svc   *PluginServices
	tx    *Transaction
	timer *Timer
}

func (h *liveTimerHandle) Stop() {
	tick := h.svc.ticker.NanoTime()
	h.timer.Stop(tick)
	if parent := h.timer.Parent(); parent != nil && h.tx.CurrentTimer() == h.timer {
		h.tx.SetCurrentTimer(parent)
	}
}

// --- no-op timer ---

type noopTimerHandle struct{}

var noopTimerHandleSingleton TimerHandle = noopTimerHandle{}

func (noopTimerHandle) Stop() {}
