package assembly

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/domain/services"
)

func fixedAssembler() *Assembler {
	a := NewAssembler(services.NewTaxResolver())
	a.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	a.newID = func() string { return "BATCH-1" }
	return a
}

func frameSource(detailID entities.DetailID, authorized, confirmed entities.Quantity) entities.SourceTransferLine {
	return entities.SourceTransferLine{
		ID:                  "SL-" + string(detailID),
		TransferOutID:       "TO-1",
		Location:            "STORE-2",
		DetailID:            detailID,
		QuantityAuthorized:  authorized,
		QuantityConfirmedIn: confirmed,
		UnitTransferPrice:   decimal.NewFromInt(100),
		TaxTable:            entities.NewFlatRateTable("FLAT-12", "GST12", decimal.NewFromInt(12)),
		InJurisdiction:      true,
	}
}

func staged(key entities.EntryKey, detailID entities.DetailID, qty entities.Quantity, price string) entities.StagedLine {
	return entities.StagedLine{
		Key:               key,
		DetailID:          detailID,
		ProposedQuantity:  qty,
		UnitTransferPrice: decimal.RequireFromString(price),
	}
}

func TestAssembler_SingleLineFlatRate(t *testing.T) {
	payload, err := fixedAssembler().Assemble(Request{
		SessionID:     "S-1",
		TransferOutID: "TO-1",
		Location:      "STORE-2",
		Entries:       []entities.StagedLine{staged("X", "X", 4, "100")},
		Sources:       []entities.SourceTransferLine{frameSource("X", 10, 0)},
	})
	require.NoError(t, err)
	require.Len(t, payload.Lines, 1)

	line := payload.Lines[0]
	assert.Equal(t, entities.DetailID("X"), line.DetailID)
	assert.Equal(t, entities.Quantity(4), line.Quantity)
	assert.True(t, line.TaxPercent.Equal(decimal.NewFromInt(12)))
	assert.True(t, line.TaxAmount.Equal(decimal.NewFromInt(12)))
	assert.True(t, line.LineTax.Equal(decimal.NewFromInt(48)))
	assert.True(t, line.LineTotal.Equal(decimal.NewFromInt(448)), "line total %s", line.LineTotal)
	assert.Equal(t, "SL-X", line.SourceLineID)
	assert.Equal(t, "GST12", line.TaxBracketID)

	assert.Equal(t, "BATCH-1", payload.BatchID)
	assert.Equal(t, "S-1", payload.SessionID)
	assert.Equal(t, entities.Quantity(4), payload.TotalQuantity)
	assert.True(t, payload.TotalTax.Equal(decimal.NewFromInt(48)))
	assert.True(t, payload.TotalAmount.Equal(decimal.NewFromInt(448)))

	require.Len(t, payload.Observed, 1)
	assert.Equal(t, entities.Quantity(4), payload.Observed[0].QuantityReceived)
	assert.Equal(t, entities.Quantity(0), payload.Observed[0].QuantityConfirmedIn)
}

func TestAssembler_MixedTablesAndJurisdictions(t *testing.T) {
	end := decimal.NewFromInt(1000)
	slabTable, err := entities.NewTaxBracketTable("GST-FRAMES",
		entities.TaxBracket{BracketID: "LOW", SlabEndInclusive: &end, PurchaseTaxPercent: decimal.NewFromInt(12), SalesTaxPercent: decimal.NewFromInt(18)},
		entities.TaxBracket{BracketID: "HIGH", PurchaseTaxPercent: decimal.NewFromInt(18), SalesTaxPercent: decimal.NewFromInt(18)},
	)
	require.NoError(t, err)

	premium := frameSource("FR-PREMIUM", 5, 1)
	premium.TaxTable = slabTable
	outOfState := frameSource("AC-CASE", 10, 0)
	outOfState.InJurisdiction = false

	payload, err := fixedAssembler().Assemble(Request{
		Entries: []entities.StagedLine{
			staged("FR-PREMIUM#1", "FR-PREMIUM", 1, "900"),
			staged("FR-PREMIUM#2", "FR-PREMIUM", 2, "500"),
			staged("AC-CASE", "AC-CASE", 3, "50"),
		},
		Sources: []entities.SourceTransferLine{premium, outOfState},
	})
	require.NoError(t, err)
	require.Len(t, payload.Lines, 3)

	assert.Equal(t, "HIGH", payload.Lines[0].TaxBracketID)
	assert.Equal(t, "162.00", payload.Lines[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "LOW", payload.Lines[1].TaxBracketID)
	assert.Equal(t, "120.00", payload.Lines[1].LineTax.StringFixed(2))
	assert.True(t, payload.Lines[2].TaxAmount.IsZero())

	// 1062 + 2*560 + 3*50
	assert.Equal(t, "2332.00", payload.TotalAmount.StringFixed(2))
	assert.Equal(t, "282.00", payload.TotalTax.StringFixed(2))
	assert.Equal(t, entities.Quantity(6), payload.TotalQuantity)
	assert.Equal(t, entities.Quantity(3), payload.QuantityFor("FR-PREMIUM"))

	require.Len(t, payload.Observed, 2)
	assert.Equal(t, entities.Quantity(1), payload.Observed[0].QuantityConfirmedIn)
	assert.Equal(t, entities.Quantity(3), payload.Observed[0].QuantityReceived)
}

func TestAssembler_RefusesBadLines(t *testing.T) {
	noTable := frameSource("LN-1", 5, 0)
	noTable.TaxTable = &entities.TaxBracketTable{ID: "EMPTY"}

	_, err := fixedAssembler().Assemble(Request{
		Entries: []entities.StagedLine{
			staged("X", "X", 0, "100"),
			staged("GHOST", "GHOST", 1, "100"),
			staged("LN-1", "LN-1", 1, "100"),
			staged("Y", "Y", 1, "-1"),
			staged("OK", "OK", 1, "10"),
		},
		Sources: []entities.SourceTransferLine{
			frameSource("X", 5, 0),
			frameSource("Y", 5, 0),
			frameSource("OK", 5, 0),
			noTable,
		},
	})
	require.Error(t, err)

	var assemblyErr *AssemblyError
	require.True(t, errors.As(err, &assemblyErr))
	require.Len(t, assemblyErr.Problems, 4)
	assert.ErrorIs(t, assemblyErr.Problems[0].Err, entities.ErrInvalidQuantity)
	assert.ErrorIs(t, assemblyErr.Problems[1].Err, entities.ErrUnknownDetail)
	assert.ErrorIs(t, assemblyErr.Problems[2].Err, entities.ErrUnknownBracketTable)
	assert.ErrorIs(t, assemblyErr.Problems[3].Err, entities.ErrPriceOutOfBounds)

	assert.ErrorIs(t, err, entities.ErrUnknownBracketTable)
	assert.ErrorIs(t, err, entities.ErrUnknownDetail)
	assert.Contains(t, err.Error(), "GHOST (GHOST): detail is not part of this transfer")
}

func TestAssembler_RefusesOverAllocatedBatch(t *testing.T) {
	_, err := fixedAssembler().Assemble(Request{
		Entries: []entities.StagedLine{
			staged("X#1", "X", 2, "100"),
			staged("X#2", "X", 2, "100"),
		},
		Sources: []entities.SourceTransferLine{frameSource("X", 5, 2)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrOverAllocation)

	var allocErr *entities.AllocationError
	require.True(t, errors.As(err, &allocErr))
	assert.Equal(t, entities.Quantity(3), allocErr.AllowedMax)
	assert.Equal(t, entities.Quantity(4), allocErr.Requested)
}

func TestAssembler_EmptyBatch(t *testing.T) {
	_, err := fixedAssembler().Assemble(Request{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}
