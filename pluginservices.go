package glowroot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/varsh009/glowroot/internal/stacktrace"
	"github.com/varsh009/glowroot/internal/tracelog"
)

// PluginServices is the instrumentation-facing facade (spec §4.1).
// Every operation validates its inputs and consults cached
// configuration; a rejected call logs and returns a no-op sentinel —
// it never panics or returns an error into instrumented code.
type PluginServices struct {
	pluginID string

	config               ConfigService
	collector            TransactionCollector
	userProfileScheduler UserProfileScheduler
	registry             *TransactionRegistry
	timerNames           *TimerNameCache
	ticker               Ticker
	logger               tracelog.Logger

	enabled           atomic.Bool
	captureThreadInfo atomic.Bool
	captureGcInfo     atomic.Bool
	maxTraceEntries   atomic.Int64
	pluginConfig      atomic.Pointer[PluginConfig]
	pluginBound       atomic.Bool
}

// NewPluginServices wires a facade against the given collaborators. If
// pluginID is non-empty but unknown to config at construction time,
// the facade downgrades to the "no plugin bound" mode (spec §7
// configuration faults): plugin-specific properties return
// empty/false/null but every other operation still works.
func NewPluginServices(
	pluginID string,
	config ConfigService,
	collector TransactionCollector,
	userProfileScheduler UserProfileScheduler,
	registry *TransactionRegistry,
	timerNames *TimerNameCache,
	ticker Ticker,
	logger tracelog.Logger,
) *PluginServices {
	if logger == nil {
		logger = tracelog.Default()
	}
	if userProfileScheduler == nil {
		userProfileScheduler = NoopUserProfileScheduler{}
	}
	s := &PluginServices{
		pluginID:             pluginID,
		config:               config,
		collector:            collector,
		userProfileScheduler: userProfileScheduler,
		registry:             registry,
		timerNames:           timerNames,
		ticker:               ticker,
		logger:               logger,
	}
	s.refreshCache()
	config.AddConfigListener(ConfigListenerFunc(s.refreshCache))
	if pluginID != "" {
		if pc, ok := config.PluginConfig(pluginID); ok {
			s.setPluginConfig(pc)
			config.AddPluginConfigListener(pluginID, ConfigListenerFunc(func() {
				if pc, ok := config.PluginConfig(pluginID); ok {
					s.setPluginConfig(pc)
				}
			}))
		} else {
			logger.Warnf("glowroot: plugin %q not known to config at construction, downgrading to no-plugin-bound mode", pluginID)
		}
	}
	return s
}

func (s *PluginServices) setPluginConfig(pc PluginConfig) {
	s.pluginConfig.Store(&pc)
	s.pluginBound.Store(true)
	s.refreshCache()
}

// refreshCache re-reads the ConfigService into the facade's atomics.
// It is invoked once at construction and again synchronously on every
// ConfigListener.OnChange, per spec §5's "volatile-equivalent
// publication" requirement.
func (s *PluginServices) refreshCache() {
	general := s.config.GeneralConfig()
	advanced := s.config.AdvancedConfig()

	pluginEnabled := true
	if s.pluginBound.Load() {
		if pc := s.pluginConfig.Load(); pc != nil {
			pluginEnabled = (*pc).Enabled()
		}
	}
	s.enabled.Store(general.Enabled() && pluginEnabled)
	s.captureThreadInfo.Store(advanced.CaptureThreadInfo())
	s.captureGcInfo.Store(advanced.CaptureGcInfo())
	s.maxTraceEntries.Store(int64(advanced.MaxTraceEntriesPerTransaction()))
}

func (s *PluginServices) maxTraceEntriesPerTransaction() int {
	return int(s.maxTraceEntries.Load())
}

// IsEnabled returns the cached `general.enabled ∧ (pluginId == nil ∨
// plugin.enabled)` flag.
func (s *PluginServices) IsEnabled() bool { return s.enabled.Load() }

// StringProperty returns the current value from cached plugin config,
// or "" if no plugin is bound.
func (s *PluginServices) StringProperty(name string) string {
	pc := s.pluginConfig.Load()
	if !s.pluginBound.Load() || pc == nil {
		return ""
	}
	return (*pc).StringProperty(name)
}

// BooleanProperty returns the current value from cached plugin config,
// or false if no plugin is bound.
func (s *PluginServices) BooleanProperty(name string) bool {
	pc := s.pluginConfig.Load()
	if !s.pluginBound.Load() || pc == nil {
		return false
	}
	return (*pc).BooleanProperty(name)
}

// DoubleProperty returns the current value from cached plugin config,
// or (0, false) if no plugin is bound or the property is unset.
func (s *PluginServices) DoubleProperty(name string) (float64, bool) {
	pc := s.pluginConfig.Load()
	if !s.pluginBound.Load() || pc == nil {
		return 0, false
	}
	return (*pc).DoubleProperty(name)
}

// RegisterConfigListener routes plugin-config changes to listener; a
// no-op if no plugin is bound.
func (s *PluginServices) RegisterConfigListener(listener ConfigListener) {
	if !s.pluginBound.Load() || s.pluginID == "" {
		return
	}
	s.config.AddPluginConfigListener(s.pluginID, listener)
}

// GetTimerName returns the interned TimerName for adviceKey.
func (s *PluginServices) GetTimerName(adviceKey interface{}, name string) TimerName {
	return s.timerNames.Intern(adviceKey, name)
}

// IsInTransaction reports whether ctx carries a current transaction.
func (s *PluginServices) IsInTransaction(ctx context.Context) bool {
	return TransactionFromContext(ctx) != nil
}

// StartTransaction starts a new transaction if ctx carries none, or
// otherwise behaves exactly like StartTraceEntry (transactions do not
// nest, spec §4.1).
func (s *PluginServices) StartTransaction(
	ctx context.Context, txType, name string, messageSupplier MessageSupplier, rootTimer TimerName,
) (context.Context, TraceEntryHandle) {
	if !s.enabled.Load() {
		return ctx, noopEntry
	}
	if existing := TransactionFromContext(ctx); existing != nil {
		return s.StartTraceEntry(ctx, messageSupplier, rootTimer)
	}
	if txType == "" || name == "" {
		s.logger.Errorf("glowroot: StartTransaction called with empty type or name")
		return ctx, noopEntry
	}

	tx := newTransaction(
		NewTransactionID(), txType, name, messageSupplier, rootTimer,
		s.ticker, s.logger, s.captureThreadInfo.Load(), s.captureGcInfo.Load(),
	)
	s.registry.Add(tx)
	newCtx := ContextWithTransaction(ctx, tx)
	return newCtx, &liveEntryHandle{svc: s, tx: tx, entry: tx.RootEntry()}
}

// StartTraceEntry requires a current transaction; if none exists it
// returns a no-op handle (spec §4.1). Once the per-transaction cap is
// hit, it still times the operation via a dummy handle but stops
// adding it to the entry tree.
func (s *PluginServices) StartTraceEntry(
	ctx context.Context, messageSupplier MessageSupplier, timerName TimerName,
) (context.Context, TraceEntryHandle) {
	tx := TransactionFromContext(ctx)
	if tx == nil {
		return ctx, noopEntry
	}
	tick := s.ticker.NanoTime()
	if tx.EntryCount() < int64(s.maxTraceEntriesPerTransaction()) {
		timer := tx.CurrentTimer().Start(timerName, tick)
		tx.SetCurrentTimer(timer)
		entry := tx.PushEntry(tick, messageSupplier, timer)
		return ctx, &liveEntryHandle{svc: s, tx: tx, entry: entry}
	}

	tx.IncrementEntryCount()
	tx.AddEntryLimitExceededMarkerIfNeeded()
	timer := tx.CurrentTimer().Start(timerName, tick)
	tx.SetCurrentTimer(timer)
	return ctx, &dummyEntryHandle{svc: s, tx: tx, timer: timer, startTick: tick, messageSupplier: messageSupplier}
}

// StartTimer is like StartTraceEntry but never adds an entry: it only
// starts a nested timer on the current timer.
func (s *PluginServices) StartTimer(ctx context.Context, timerName TimerName) TimerHandle {
	tx := TransactionFromContext(ctx)
	if tx == nil {
		return noopTimerHandleSingleton
	}
	tick := s.ticker.NanoTime()
	timer := tx.CurrentTimer().Start(timerName, tick)
	tx.SetCurrentTimer(timer)
	return &liveTimerHandle{svc: s, tx: tx, timer: timer}
}

// AddTraceEntry appends a zero-duration error entry iff entryCount <
// 2×maxTraceEntriesPerTransaction. If the error carries no exception,
// a stack trace is captured, stripped of facade frames.
func (s *PluginServices) AddTraceEntry(ctx context.Context, errMsg ErrorMessage) TraceEntryHandle {
	tx := TransactionFromContext(ctx)
	if tx == nil {
		return noopEntry
	}
	if tx.EntryCount() >= int64(2*s.maxTraceEntriesPerTransaction()) {
		return noopEntry
	}
	tick := s.ticker.NanoTime()
	var frames []stacktrace.Frame
	if errMsg.Err == nil {
		f, ok := s.stackTraceFrames()
		if !ok {
			s.logger.Warnf("glowroot: stack trace capture found no caller frame outside the facade")
		}
		frames = f
	}
	entry := tx.AddEntry(tick, tick, nil, &errMsg)
	entry.stackTrace = frames
	return &addedEntryHandle{entry: entry}
}

// addedEntryHandle wraps an already-ended flat entry (from
// AddTraceEntry) so callers that hold onto the returned handle can
// still read its message supplier; End* calls on it are no-ops since
// the entry is already complete.
type addedEntryHandle struct{ entry *TraceEntry }

func (h *addedEntryHandle) End()                            {}
func (h *addedEntryHandle) EndWithStackTrace(time.Duration) {}
func (h *addedEntryHandle) EndWithError(ErrorMessage)       {}
func (h *addedEntryHandle) MessageSupplier() MessageSupplier { return h.entry.messageSupplier }

// SetTransactionType mutates the current transaction's type, if any.
func (s *PluginServices) SetTransactionType(ctx context.Context, txType string) {
	if tx := TransactionFromContext(ctx); tx != nil && txType != "" {
		tx.SetType(txType)
	}
}

// SetTransactionName mutates the current transaction's name, if any.
func (s *PluginServices) SetTransactionName(ctx context.Context, name string) {
	if tx := TransactionFromContext(ctx); tx != nil && name != "" {
		tx.SetName(name)
	}
}

// SetTransactionError mutates the current transaction's error, if any.
func (s *PluginServices) SetTransactionError(ctx context.Context, msg string) {
	if tx := TransactionFromContext(ctx); tx != nil {
		tx.SetError(msg)
	}
}

// SetTransactionUser mutates the current transaction's user, if any,
// and triggers UserProfileScheduler.MaybeScheduleUserProfiling on the
// first assignment.
func (s *PluginServices) SetTransactionUser(ctx context.Context, user string) {
	tx := TransactionFromContext(ctx)
	if tx == nil {
		return
	}
	if tx.SetUser(user) {
		s.userProfileScheduler.MaybeScheduleUserProfiling(tx, user)
	}
}

// SetTransactionCustomAttribute appends value under key to the current
// transaction's custom attribute map, if any.
func (s *PluginServices) SetTransactionCustomAttribute(ctx context.Context, key, value string) {
	if key == "" {
		s.logger.Errorf("glowroot: SetTransactionCustomAttribute called with empty key")
		return
	}
	if tx := TransactionFromContext(ctx); tx != nil {
		tx.AddCustomAttribute(key, value)
	}
}

// SetTraceStoreThreshold sets a per-transaction override in
// milliseconds; negative durations are rejected.
func (s *PluginServices) SetTraceStoreThreshold(ctx context.Context, d time.Duration) {
	if d < 0 {
		s.logger.Errorf("glowroot: SetTraceStoreThreshold called with negative duration")
		return
	}
	if tx := TransactionFromContext(ctx); tx != nil {
		tx.SetTraceStoreThreshold(d.Milliseconds())
	}
}

// captureStackTraceOnto captures a stack trace (skipping the facade's
// own frames already by convention) and stores it on entry, logging a
// warning if no application frame was found.
func (s *PluginServices) captureStackTraceOnto(entry *TraceEntry) {
	frames, ok := s.stackTraceFrames()
	if !ok {
		s.logger.Warnf("glowroot: stack trace capture found no caller frame outside the facade")
		return
	}
	entry.stackTrace = frames
}

func (s *PluginServices) stackTraceFrames() ([]stacktrace.Frame, bool) {
	return stacktrace.CaptureApplicationStack(2, 50)
}

// endLiveEntry pops entry and, iff this pop just completed the
// transaction (entry was the root), runs the completion cascade
// exactly once (spec §4.1): cancel scheduled tasks, hand the
// transaction to the collector, then remove it from the registry —
// in that order, so a collector enumerating pending traces can never
// miss a completed-but-not-yet-stored transaction.
func (s *PluginServices) endLiveEntry(tx *Transaction, entry *TraceEntry, tick int64, errMsg *ErrorMessage) {
	wasCompleted := tx.Completed()
	tx.PopEntry(entry, tick, errMsg)
	if !wasCompleted && tx.Completed() {
		s.completionCascade(tx)
	}
}

func (s *PluginServices) completionCascade(tx *Transaction) {
	if tx.cancelImmediateStoreTask != nil {
		tx.cancelImmediateStoreTask()
	}
	if tx.cancelUserProfileTask != nil {
		tx.cancelUserProfileTask()
	}
	s.collector.OnCompletedTransaction(tx)
	s.registry.Remove(tx)
}
