package glowroot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.elastic.co/fastjson"
)

func TestActiveSnapshotNormalizesToCaptureTick(t *testing.T) {
	tk := NewTestTicker(0, 1000)
	tx := newTestTransaction(tk)
	tk.Advance(50)

	snap := NewActiveSnapshot(tx, tk.NanoTime(), tk.MillisTime())
	assert.True(t, snap.Active)
	assert.False(t, snap.Partial)
	assert.Equal(t, int64(50), snap.DurationNanos)
}

func TestPartialSnapshotFlags(t *testing.T) {
	tk := NewTestTicker(0, 0)
	tx := newTestTransaction(tk)
	tk.Advance(10)

	snap := NewPartialSnapshot(tx, tk.NanoTime(), tk.MillisTime())
	assert.True(t, snap.Active)
	assert.True(t, snap.Partial)
}

func TestCompletedSnapshotUsesTransactionEndTick(t *testing.T) {
	tk := NewTestTicker(0, 0)
	tx := newTestTransaction(tk)
	tk.Advance(30)
	tx.PopEntry(tx.RootEntry(), tk.NanoTime(), nil)

	snap := NewCompletedSnapshot(tx)
	assert.False(t, snap.Active)
	assert.False(t, snap.Partial)
	assert.Equal(t, int64(30), snap.DurationNanos)
	assert.Equal(t, ExistenceYes, snap.EntriesExistence)
	assert.Equal(t, ExistenceNo, snap.ProfileExistence)
}

func TestSnapshotMarshalFastJSONProducesValidObject(t *testing.T) {
	tk := NewTestTicker(0, 0)
	tx := newTestTransaction(tk)
	tx.AddCustomAttribute("tag", "a")
	tk.Advance(10)
	tx.PopEntry(tx.RootEntry(), tk.NanoTime(), nil)

	snap := NewCompletedSnapshot(tx)
	var w fastjson.Writer
	require.NoError(t, snap.MarshalFastJSON(&w))
	out := string(w.Bytes())
	assert.Contains(t, out, `"id"`)
	assert.Contains(t, out, `"tag"`)
	assert.Contains(t, out, `"duration":10`)
}
