package glowroot

import (
	"context"
	"sync"
)

type txContextKey struct{}

// ContextWithTransaction returns a copy of ctx carrying tx as the
// "current transaction". This is the context.Context-based stand-in
// for the thread-local slot described in spec §4.3: since Go has no
// weaver-guaranteed OS-thread identity inside a goroutine, the current
// transaction is threaded explicitly through the call chain the way
// the teacher's own span/transaction APIs do.
func ContextWithTransaction(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TransactionFromContext returns the transaction attached to ctx, or
// nil if none is present (spec invariant 5: "null iff the thread is
// not inside any transaction").
func TransactionFromContext(ctx context.Context) *Transaction {
	tx, _ := ctx.Value(txContextKey{}).(*Transaction)
	return tx
}

// TransactionRegistry holds the process-wide set of live transactions,
// for enumeration by snapshot and collector goroutines. Registration
// happens at transaction start/end only, so a narrow mutex is
// sufficient (spec §4.3: "a lock-free concurrent set or a sharded set
// suffices").
type TransactionRegistry struct {
	mu   sync.Mutex
	byID map[TransactionID]*Transaction
}

// NewTransactionRegistry returns an empty registry.
func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{byID: make(map[TransactionID]*Transaction)}
}

// Add registers tx as live.
func (r *TransactionRegistry) Add(tx *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[tx.id] = tx
}

// Remove deregisters tx.
func (r *TransactionRegistry) Remove(tx *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, tx.id)
}

// Len returns the number of currently-live transactions.
func (r *TransactionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// All returns a snapshot slice of all currently-live transactions,
// safe to iterate without further synchronization.
func (r *TransactionRegistry) All() []*Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Transaction, 0, len(r.byID))
	for _, tx := range r.byID {
		out = append(out, tx)
	}
	return out
}
