package services

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func twoSlabTable(t *testing.T) *entities.TaxBracketTable {
	t.Helper()
	table, err := entities.NewTaxBracketTable("GST-FRAMES",
		entities.TaxBracket{
			BracketID:          "LOW",
			SlabEndInclusive:   decPtr("1000"),
			PurchaseTaxPercent: dec("12"),
			SalesTaxPercent:    dec("18"),
		},
		entities.TaxBracket{
			BracketID:          "HIGH",
			PurchaseTaxPercent: dec("18"),
			SalesTaxPercent:    dec("18"),
		},
	)
	require.NoError(t, err)
	return table
}

func TestTaxResolver_FlatRate(t *testing.T) {
	resolver := NewTaxResolver()
	table := entities.NewFlatRateTable("FLAT-12", "GST12", dec("12"))

	prices := []string{"0", "0.01", "99.99", "100", "847.47", "1000000"}
	for _, p := range prices {
		t.Run(p, func(t *testing.T) {
			result, err := resolver.Resolve(dec(p), table, true)
			require.NoError(t, err)
			assert.True(t, result.Percentage.Equal(dec("12")), "percentage %s", result.Percentage)
			assert.Equal(t, "GST12", result.BracketID)
			assert.True(t, result.Amount.Equal(TaxAmount(dec(p), dec("12"))))
		})
	}
}

func TestTaxResolver_FlatRateIgnoresSlabEnd(t *testing.T) {
	table := &entities.TaxBracketTable{
		ID: "FLAT-5",
		Brackets: []entities.TaxBracket{{
			BracketID:          "GST5",
			SlabEndInclusive:   decPtr("10"),
			PurchaseTaxPercent: dec("5"),
			SalesTaxPercent:    dec("5"),
		}},
	}

	result, err := NewTaxResolver().Resolve(dec("5000"), table, true)
	require.NoError(t, err)
	assert.Equal(t, "GST5", result.BracketID)
	assert.Equal(t, "250", result.Amount.String())
}

func TestTaxResolver_BoundaryInversion(t *testing.T) {
	resolver := NewTaxResolver()
	table := twoSlabTable(t)

	tests := []struct {
		name        string
		price       string
		wantBracket string
		wantPercent string
	}{
		{"well below boundary", "100", "LOW", "12"},
		{"exactly at adjusted boundary", "847.46", "LOW", "12"},
		{"one cent above adjusted boundary", "847.47", "HIGH", "18"},
		{"above raw slab end", "1200", "HIGH", "18"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := resolver.Resolve(dec(tt.price), table, true)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBracket, result.BracketID)
			assert.True(t, result.Percentage.Equal(dec(tt.wantPercent)))
		})
	}
}

func TestTaxResolver_AdjustedBoundary(t *testing.T) {
	table := twoSlabTable(t)
	assert.Equal(t, "847.46", AdjustedBoundary(table.Brackets[0]).StringFixed(2))
	assert.True(t, AdjustedBoundary(table.Brackets[1]).IsZero())
}

func TestTaxResolver_FallbackIsLastBracketRegardlessOfBoundary(t *testing.T) {
	table, err := entities.NewTaxBracketTable("THREE",
		entities.TaxBracket{BracketID: "A", SlabEndInclusive: decPtr("100"), PurchaseTaxPercent: dec("5"), SalesTaxPercent: dec("0")},
		entities.TaxBracket{BracketID: "B", SlabEndInclusive: decPtr("500"), PurchaseTaxPercent: dec("12"), SalesTaxPercent: dec("0")},
		entities.TaxBracket{BracketID: "C", SlabEndInclusive: decPtr("200"), PurchaseTaxPercent: dec("28"), SalesTaxPercent: dec("0")},
	)
	require.NoError(t, err)

	resolver := NewTaxResolver()

	result, err := resolver.Resolve(dec("300"), table, true)
	require.NoError(t, err)
	assert.Equal(t, "B", result.BracketID)

	result, err = resolver.Resolve(dec("900"), table, true)
	require.NoError(t, err)
	assert.Equal(t, "C", result.BracketID)
	assert.Equal(t, "252", result.Amount.String())
}

func TestTaxResolver_CrossJurisdictionIsZeroRated(t *testing.T) {
	resolver := NewTaxResolver()
	tables := []*entities.TaxBracketTable{
		twoSlabTable(t),
		entities.NewFlatRateTable("FLAT-28", "GST28", dec("28")),
	}

	for _, table := range tables {
		for _, p := range []string{"-5", "0", "500", "900", "10000"} {
			result, err := resolver.Resolve(dec(p), table, false)
			require.NoError(t, err)
			assert.True(t, result.Percentage.IsZero())
			assert.True(t, result.Amount.IsZero())
			assert.Equal(t, table.Brackets[0].BracketID, result.BracketID)
		}
	}
}

func TestTaxResolver_NegativeAndNaNPrices(t *testing.T) {
	resolver := NewTaxResolver()
	table := twoSlabTable(t)

	result, err := resolver.Resolve(dec("-10"), table, true)
	require.NoError(t, err)
	assert.True(t, result.Amount.IsZero())
	assert.Equal(t, "LOW", result.BracketID)
	assert.True(t, result.Percentage.Equal(dec("12")))

	result, err = resolver.ResolveFloat(math.NaN(), table, true)
	require.NoError(t, err)
	assert.True(t, result.Amount.IsZero())
	assert.Equal(t, "LOW", result.BracketID)

	result, err = resolver.ResolveFloat(900.5, table, true)
	require.NoError(t, err)
	assert.Equal(t, "HIGH", result.BracketID)
	assert.Equal(t, "162.09", result.Amount.StringFixed(2))
}

func TestTaxResolver_EmptyTable(t *testing.T) {
	resolver := NewTaxResolver()

	_, err := resolver.Resolve(dec("100"), &entities.TaxBracketTable{ID: "EMPTY"}, true)
	assert.ErrorIs(t, err, entities.ErrUnknownBracketTable)

	_, err = resolver.Resolve(dec("100"), nil, false)
	assert.ErrorIs(t, err, entities.ErrUnknownBracketTable)
}

func TestCachedTaxResolver(t *testing.T) {
	calls := 0
	inner := ResolverFunc(func(p decimal.Decimal, table *entities.TaxBracketTable, in bool) (entities.TaxResult, error) {
		calls++
		return NewTaxResolver().Resolve(p, table, in)
	})
	cached := NewCachedTaxResolver(inner)
	table := twoSlabTable(t)

	first, err := cached.Resolve(dec("500"), table, true)
	require.NoError(t, err)
	second, err := cached.Resolve(dec("500.00"), table, true)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = cached.Resolve(dec("500"), table, false)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, cached.Size())

	anonymous := entities.NewFlatRateTable("", "GST5", dec("5"))
	_, _ = cached.Resolve(dec("10"), anonymous, true)
	_, _ = cached.Resolve(dec("10"), anonymous, true)
	assert.Equal(t, 4, calls)

	_, err = cached.Resolve(dec("10"), &entities.TaxBracketTable{ID: "EMPTY"}, true)
	assert.ErrorIs(t, err, entities.ErrUnknownBracketTable)
	assert.Equal(t, 2, cached.Size())
}

func TestCachedTaxResolver_ResetForgetsReplacedTable(t *testing.T) {
	cached := NewCachedTaxResolver(nil)

	before, err := cached.Resolve(dec("500"), twoSlabTable(t), true)
	require.NoError(t, err)
	assert.Equal(t, "LOW", before.BracketID)

	// Same id, new brackets
	replaced := entities.NewFlatRateTable("GST-FRAMES", "FLAT", dec("5"))
	stale, err := cached.Resolve(dec("500"), replaced, true)
	require.NoError(t, err)
	assert.Equal(t, "LOW", stale.BracketID, "cache is keyed by table id")

	cached.Reset()
	assert.Equal(t, 0, cached.Size())

	after, err := cached.Resolve(dec("500"), replaced, true)
	require.NoError(t, err)
	assert.Equal(t, "FLAT", after.BracketID)
	assert.True(t, after.Percentage.Equal(dec("5")))
}
