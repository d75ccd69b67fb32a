package glowroot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsh009/glowroot/internal/tracelog"
)

func newTestServices(t *testing.T, tk *TestTicker) (*PluginServices, *MemConfigService, *MemTransactionCollector, *tracelog.Recording) {
	t.Helper()
	cfg := NewMemConfigService()
	collector := NewMemTransactionCollector()
	registry := NewTransactionRegistry()
	rec := &tracelog.Recording{}
	svc := NewPluginServices("", cfg, collector, nil, registry, NewTimerNameCache(), tk, rec)
	return svc, cfg, collector, rec
}

func TestPluginServicesSingleEntryUnderCap(t *testing.T) {
	tk := NewTestTicker(0, 0)
	svc, _, collector, _ := newTestServices(t, tk)

	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	tk.Advance(10)
	_, child := svc.StartTraceEntry(ctx, StringMessage("query"), svc.GetTimerName("query", "query"))
	tk.Advance(5)
	child.End()
	tk.Advance(1)
	root.End()

	require.Len(t, collector.Received(), 1)
	tx := collector.Received()[0]
	assert.True(t, tx.Completed())
	assert.Equal(t, int64(2), tx.EntryCount())
	assert.Len(t, tx.RootEntry().Children(), 1)
}

func TestPluginServicesNestedEntries(t *testing.T) {
	tk := NewTestTicker(0, 0)
	svc, _, collector, _ := newTestServices(t, tk)

	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	ctx, outer := svc.StartTraceEntry(ctx, StringMessage("outer"), svc.GetTimerName("outer", "outer"))
	_, inner := svc.StartTraceEntry(ctx, StringMessage("inner"), svc.GetTimerName("inner", "inner"))
	tk.Advance(3)
	inner.End()
	tk.Advance(2)
	outer.End()
	root.End()

	tx := collector.Received()[0]
	require.Len(t, tx.RootEntry().Children(), 1)
	require.Len(t, tx.RootEntry().Children()[0].Children(), 1)
	assert.Equal(t, int64(3), tx.EntryCount())
}

func TestPluginServicesEntryCapExceeded(t *testing.T) {
	tk := NewTestTicker(0, 0)
	cfg := NewMemConfigService()
	cfg.AdvancedConfig().(*MemAdvancedConfig).SetMaxTraceEntriesPerTransaction(2)
	collector := NewMemTransactionCollector()
	registry := NewTransactionRegistry()
	svc := NewPluginServices("", cfg, collector, nil, registry, NewTimerNameCache(), tk, &tracelog.Recording{})

	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	for i := 0; i < 5; i++ {
		_, e := svc.StartTraceEntry(ctx, StringMessage("e"), svc.GetTimerName("e", "e"))
		e.End()
	}
	root.End()

	tx := collector.Received()[0]
	markers := 0
	for _, c := range tx.RootEntry().Children() {
		if c.IsLimitExceededMarker() {
			markers++
		}
	}
	assert.Equal(t, 1, markers)
	assert.Equal(t, int64(6), tx.EntryCount())
}

func TestPluginServicesErrorEntryWithoutException(t *testing.T) {
	tk := NewTestTicker(0, 0)
	svc, _, collector, rec := newTestServices(t, tk)

	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	handle := svc.AddTraceEntry(ctx, ErrorMessage{Message: "boom"})
	assert.NotNil(t, handle)
	root.End()

	tx := collector.Received()[0]
	var found *TraceEntry
	for _, c := range tx.RootEntry().Children() {
		if c.ErrorMessage() != nil {
			found = c
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "boom", found.ErrorMessage().Message)
	assert.NotEmpty(t, found.StackTrace())
	assert.Equal(t, 0, rec.WarnCount())

	wrapped := errors.New("wrapped")
	ctx2, root2 := svc.StartTransaction(context.Background(), "Web", "GET /2", StringMessage("GET /2"), svc.GetTimerName("root", "root"))
	svc.AddTraceEntry(ctx2, ErrorMessage{Message: "boom2", Err: wrapped})
	root2.End()
	tx2 := collector.Received()[1]
	for _, c := range tx2.RootEntry().Children() {
		if c.ErrorMessage() != nil {
			assert.Empty(t, c.StackTrace())
		}
	}
}

func TestPluginServicesTransactionReentryActsAsTraceEntry(t *testing.T) {
	tk := NewTestTicker(0, 0)
	svc, _, collector, _ := newTestServices(t, tk)

	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	ctx2, nested := svc.StartTransaction(ctx, "Web", "should-be-ignored", StringMessage("nested"), svc.GetTimerName("nested", "nested"))
	assert.Equal(t, ctx, ctx2)
	nested.End()
	root.End()

	require.Len(t, collector.Received(), 1)
	tx := collector.Received()[0]
	assert.Equal(t, "GET /", tx.Name())
	assert.Len(t, tx.RootEntry().Children(), 1)
}

func TestPluginServicesDisabledReturnsNoop(t *testing.T) {
	tk := NewTestTicker(0, 0)
	cfg := NewMemConfigService()
	cfg.GeneralConfig().(*MemGeneralConfig).SetEnabled(false)
	collector := NewMemTransactionCollector()
	registry := NewTransactionRegistry()
	svc := NewPluginServices("", cfg, collector, nil, registry, NewTimerNameCache(), tk, &tracelog.Recording{})

	ctx, handle := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	assert.Equal(t, noopEntry, handle)
	assert.Nil(t, TransactionFromContext(ctx))
	handle.End()
	assert.Empty(t, collector.Received())
}

func TestPluginServicesCustomAttributeEmptyKeyRejected(t *testing.T) {
	tk := NewTestTicker(0, 0)
	svc, _, _, rec := newTestServices(t, tk)
	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	svc.SetTransactionCustomAttribute(ctx, "", "value")
	root.End()
	assert.Equal(t, 1, rec.ErrorCount())
}

func TestPluginServicesSetUserTriggersProfilingOnce(t *testing.T) {
	tk := NewTestTicker(0, 0)
	cfg := NewMemConfigService()
	collector := NewMemTransactionCollector()
	registry := NewTransactionRegistry()
	sched := &countingUserProfileScheduler{}
	svc := NewPluginServices("", cfg, collector, sched, registry, NewTimerNameCache(), tk, &tracelog.Recording{})

	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	svc.SetTransactionUser(ctx, "alice")
	svc.SetTransactionUser(ctx, "bob")
	root.End()

	assert.Equal(t, 1, sched.calls)
}

type countingUserProfileScheduler struct{ calls int }

func (s *countingUserProfileScheduler) MaybeScheduleUserProfiling(*Transaction, string) { s.calls++ }

func TestPluginServicesSetTraceStoreThresholdRejectsNegative(t *testing.T) {
	tk := NewTestTicker(0, 0)
	svc, _, _, rec := newTestServices(t, tk)
	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	svc.SetTraceStoreThreshold(ctx, -1*time.Millisecond)
	root.End()
	assert.Equal(t, 1, rec.ErrorCount())
}

func TestPluginServicesCompletionCascade(t *testing.T) {
	tk := NewTestTicker(0, 0)
	cfg := NewMemConfigService()
	collector := NewMemTransactionCollector()
	registry := NewTransactionRegistry()
	svc := NewPluginServices("", cfg, collector, nil, registry, NewTimerNameCache(), tk, &tracelog.Recording{})

	ctx, root := svc.StartTransaction(context.Background(), "Web", "GET /", StringMessage("GET /"), svc.GetTimerName("root", "root"))
	tx := TransactionFromContext(ctx)
	require.NotNil(t, tx)
	assert.Equal(t, 1, registry.Len())

	canceled := false
	tx.SetImmediateStoreTaskCanceler(func() { canceled = true })

	root.End()

	assert.True(t, canceled)
	assert.Equal(t, 0, registry.Len())
	require.Len(t, collector.Received(), 1)
	assert.Same(t, tx, collector.Received()[0])
}
