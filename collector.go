package glowroot

import "sync"

// TransactionCollector receives completed transactions, exactly once
// each, before the transaction is removed from the TransactionRegistry
// (spec §4.1 completion cascade, §6). PendingCompleteTraces lets an
// external enumerator bridge the window between "collector received
// it" and "registry removed it".
type TransactionCollector interface {
	OnCompletedTransaction(tx *Transaction)
	PendingCompleteTraces() []*Transaction
}

// UserProfileScheduler may install a cancellable, periodic
// stack-sampling task against a transaction's thread the first time a
// user is assigned to it (spec §6). MaybeScheduleUserProfiling must be
// idempotent: PluginServices only calls it on the first user
// assignment, but implementations should tolerate repeat calls too.
type UserProfileScheduler interface {
	MaybeScheduleUserProfiling(tx *Transaction, user string)
}

// NoopUserProfileScheduler never schedules anything; it is the default
// when no profiling is configured.
type NoopUserProfileScheduler struct{}

func (NoopUserProfileScheduler) MaybeScheduleUserProfiling(*Transaction, string) {}

// MemTransactionCollector is an in-memory TransactionCollector: it
// keeps completed transactions in a pending slice until Drain clears
// it (PendingCompleteTraces returns a copy and does not clear), and
// Received lists every transaction handed over, for tests that only
// care about call count/ordering.
type MemTransactionCollector struct {
	mu       sync.Mutex
	pending  []*Transaction
	received []*Transaction
}

// NewMemTransactionCollector returns an empty collector.
func NewMemTransactionCollector() *MemTransactionCollector {
	return &MemTransactionCollector{}
}

func (c *MemTransactionCollector) OnCompletedTransaction(tx *Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, tx)
	c.received = append(c.received, tx)
}

func (c *MemTransactionCollector) PendingCompleteTraces() []*Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]*Transaction{}, c.pending...)
	return out
}

// Drain clears the pending set, simulating storage having persisted
// everything currently queued.
func (c *MemTransactionCollector) Drain() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// Received returns every transaction ever handed to
// OnCompletedTransaction, in order, regardless of draining.
func (c *MemTransactionCollector) Received() []*Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Transaction{}, c.received...)
}
