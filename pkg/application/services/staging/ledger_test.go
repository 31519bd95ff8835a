package staging

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

func scan(detailID entities.DetailID, mode entities.EntryMode) UpsertRequest {
	return UpsertRequest{
		DetailID:     detailID,
		Delta:        1,
		UnitPrice:    decimal.NewFromInt(100),
		Mode:         mode,
		SourceLineID: "SL-" + string(detailID),
		Origin:       entities.OriginScan,
	}
}

func TestLedger_CombineMergesSameDetail(t *testing.T) {
	ledger := NewLedger()

	first := ledger.Upsert(scan("FR-100", entities.Combine))
	second := ledger.Upsert(scan("FR-100", entities.Combine))

	assert.Equal(t, first, second)
	assert.Equal(t, entities.EntryKey("FR-100"), first)
	assert.Equal(t, 1, ledger.Size())
	assert.Equal(t, entities.Quantity(2), ledger.TotalFor("FR-100"))
	assert.Equal(t, entities.Quantity(2), ledger.CurrentQuantity(first))
}

func TestLedger_SeparateKeepsDistinctEntries(t *testing.T) {
	ledger := NewLedger()

	first := ledger.Upsert(scan("FR-100", entities.Separate))
	second := ledger.Upsert(scan("FR-100", entities.Separate))

	assert.NotEqual(t, first, second)
	assert.Equal(t, entities.EntryKey("FR-100#1"), first)
	assert.Equal(t, entities.EntryKey("FR-100#2"), second)
	assert.Equal(t, 2, ledger.Size())
	assert.Equal(t, entities.Quantity(1), ledger.CurrentQuantity(first))
	assert.Equal(t, entities.Quantity(1), ledger.CurrentQuantity(second))
	assert.Equal(t, entities.Quantity(2), ledger.TotalFor("FR-100"))
}

func TestLedger_SeparateKeysAreNeverReused(t *testing.T) {
	ledger := NewLedger()

	first := ledger.Upsert(scan("LN-1", entities.Separate))
	ledger.Upsert(scan("LN-1", entities.Separate))
	require.NoError(t, ledger.Remove(first))

	third := ledger.Upsert(scan("LN-1", entities.Separate))
	assert.Equal(t, entities.EntryKey("LN-1#3"), third)
}

func TestLedger_BatchAddUsesCallerDelta(t *testing.T) {
	ledger := NewLedger()
	req := scan("AC-7", entities.Combine)
	req.Delta = 5

	key := ledger.Upsert(req)
	ledger.Upsert(scan("AC-7", entities.Combine))

	assert.Equal(t, entities.Quantity(6), ledger.CurrentQuantity(key))
}

func TestLedger_NextKey(t *testing.T) {
	ledger := NewLedger()

	key, exists := ledger.NextKey("FR-1", entities.Combine)
	assert.Equal(t, entities.EntryKey("FR-1"), key)
	assert.False(t, exists)

	ledger.Upsert(scan("FR-1", entities.Combine))
	key, exists = ledger.NextKey("FR-1", entities.Combine)
	assert.Equal(t, entities.EntryKey("FR-1"), key)
	assert.True(t, exists)

	key, exists = ledger.NextKey("FR-1", entities.Separate)
	assert.Equal(t, entities.EntryKey("FR-1#1"), key)
	assert.False(t, exists)
}

func TestLedger_SetQuantityAndPrice(t *testing.T) {
	ledger := NewLedger()
	key := ledger.Upsert(scan("FR-100", entities.Combine))

	require.NoError(t, ledger.SetQuantity(key, 4))
	require.NoError(t, ledger.SetUnitPrice(key, decimal.RequireFromString("95.50")))

	line, ok := ledger.Get(key)
	require.True(t, ok)
	assert.Equal(t, entities.Quantity(4), line.ProposedQuantity)
	assert.Equal(t, "95.50", line.UnitTransferPrice.StringFixed(2))

	assert.ErrorIs(t, ledger.SetQuantity("missing", 1), entities.ErrUnknownEntry)
	assert.ErrorIs(t, ledger.SetUnitPrice("missing", decimal.Zero), entities.ErrUnknownEntry)
}

func TestLedger_RemoveReleasesQuantity(t *testing.T) {
	ledger := NewLedger()
	first := ledger.Upsert(scan("FR-100", entities.Separate))
	ledger.Upsert(scan("FR-100", entities.Separate))

	require.NoError(t, ledger.Remove(first))
	assert.Equal(t, entities.Quantity(1), ledger.TotalFor("FR-100"))
	assert.False(t, ledger.Has(first))
	assert.ErrorIs(t, ledger.Remove(first), entities.ErrUnknownEntry)
}

func TestLedger_OrderingAndQueries(t *testing.T) {
	ledger := NewLedger()
	ledger.Upsert(scan("B", entities.Combine))
	ledger.Upsert(scan("A", entities.Separate))
	ledger.Upsert(scan("B", entities.Combine))
	ledger.Upsert(scan("A", entities.Separate))

	entries := ledger.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, entities.EntryKey("B"), entries[0].Key)
	assert.Equal(t, entities.EntryKey("A#1"), entries[1].Key)
	assert.Equal(t, entities.EntryKey("A#2"), entries[2].Key)

	assert.Equal(t, []entities.DetailID{"B", "A"}, ledger.Details())
	assert.Len(t, ledger.EntriesFor("A"), 2)
	assert.Equal(t, entities.Quantity(4), ledger.Total())

	entries[0].ProposedQuantity = 99
	assert.Equal(t, entities.Quantity(2), ledger.CurrentQuantity("B"), "entries must be copies")

	assert.Contains(t, ledger.String(), "A#2: detail=A, qty=1, price=100.00")

	ledger.Clear()
	assert.Equal(t, 0, ledger.Size())
	assert.Equal(t, "Ledger{empty}", ledger.String())
	assert.Equal(t, entities.Quantity(0), ledger.CurrentQuantity("B"))
}
