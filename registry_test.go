package glowroot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varsh009/glowroot/internal/tracelog"
)

func TestContextWithTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, TransactionFromContext(ctx))

	tk := NewTestTicker(0, 0)
	tx := newTransaction(NewTransactionID(), "Web", "GET /", nil, TimerName{name: "root"}, tk, &tracelog.Recording{}, false, false)
	ctx = ContextWithTransaction(ctx, tx)
	assert.Same(t, tx, TransactionFromContext(ctx))
}

func TestTransactionRegistryAddRemove(t *testing.T) {
	reg := NewTransactionRegistry()
	tk := NewTestTicker(0, 0)
	tx := newTransaction(NewTransactionID(), "Web", "GET /", nil, TimerName{name: "root"}, tk, &tracelog.Recording{}, false, false)

	reg.Add(tx)
	assert.Equal(t, 1, reg.Len())
	assert.Len(t, reg.All(), 1)

	reg.Remove(tx)
	assert.Equal(t, 0, reg.Len())
}
