package glowroot

import "github.com/google/uuid"

// TransactionID is the 128-bit transaction identity (spec §3). It is
// generated once at StartTransaction and is stable for the life of the
// transaction.
type TransactionID uuid.UUID

// NewTransactionID generates a fresh random transaction id.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.New())
}

// String returns the stable string form of the id.
func (id TransactionID) String() string {
	return uuid.UUID(id).String()
}
