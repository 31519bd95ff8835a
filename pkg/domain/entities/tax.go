package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxBracket is one slab of a tax bracket table. A nil SlabEndInclusive marks
// the open-ended catch-all slab.
type TaxBracket struct {
	BracketID          string           `json:"bracket_id"`
	SlabEndInclusive   *decimal.Decimal `json:"slab_end_inclusive,omitempty"`
	PurchaseTaxPercent decimal.Decimal  `json:"purchase_tax_percent"`
	SalesTaxPercent    decimal.Decimal  `json:"sales_tax_percent"`
}

// IsOpenEnded reports whether the bracket has no upper boundary
func (b TaxBracket) IsOpenEnded() bool {
	return b.SlabEndInclusive == nil
}

// TaxBracketTable is an ordered sequence of brackets. The last bracket is the
// fallback when no earlier slab matches.
type TaxBracketTable struct {
	ID       string       `json:"id"`
	Brackets []TaxBracket `json:"brackets"`
}

// NewTaxBracketTable creates a validated TaxBracketTable
func NewTaxBracketTable(id string, brackets ...TaxBracket) (*TaxBracketTable, error) {
	table := &TaxBracketTable{ID: id, Brackets: brackets}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// NewFlatRateTable creates a single-bracket table with one purchase rate
func NewFlatRateTable(id, bracketID string, purchaseTaxPercent decimal.Decimal) *TaxBracketTable {
	return &TaxBracketTable{
		ID: id,
		Brackets: []TaxBracket{{
			BracketID:          bracketID,
			PurchaseTaxPercent: purchaseTaxPercent,
			SalesTaxPercent:    purchaseTaxPercent,
		}},
	}
}

// Validate checks the table invariants: at least one bracket, non-negative
// rates, and only the last bracket may be open-ended.
func (t *TaxBracketTable) Validate() error {
	if t == nil || len(t.Brackets) == 0 {
		return ErrUnknownBracketTable
	}
	last := len(t.Brackets) - 1
	for i, b := range t.Brackets {
		if b.BracketID == "" {
			return fmt.Errorf("%w: bracket %d of table %s has no id", ErrMalformedBracketTable, i, t.ID)
		}
		if b.PurchaseTaxPercent.IsNegative() || b.SalesTaxPercent.IsNegative() {
			return fmt.Errorf("%w: bracket %s has a negative rate", ErrMalformedBracketTable, b.BracketID)
		}
		if b.IsOpenEnded() && i != last {
			return fmt.Errorf("%w: only the last bracket may be open-ended, bracket %s is not last", ErrMalformedBracketTable, b.BracketID)
		}
		if last > 0 && !b.IsOpenEnded() && !b.SlabEndInclusive.IsPositive() {
			return fmt.Errorf("%w: bracket %s has a non-positive slab end", ErrMalformedBracketTable, b.BracketID)
		}
	}
	return nil
}

// IsFlatRate reports whether the table has exactly one bracket
func (t *TaxBracketTable) IsFlatRate() bool {
	return t != nil && len(t.Brackets) == 1
}

// Bracket returns the bracket with the given id
func (t *TaxBracketTable) Bracket(bracketID string) (TaxBracket, bool) {
	if t == nil {
		return TaxBracket{}, false
	}
	for _, b := range t.Brackets {
		if b.BracketID == bracketID {
			return b, true
		}
	}
	return TaxBracket{}, false
}

// TaxResult is the outcome of resolving tax for one unit price
type TaxResult struct {
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
	BracketID  string          `json:"bracket_id"`
}
