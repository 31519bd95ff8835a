package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

// CommitPayload is the batch handed to the persistence boundary when a
// transfer-in session commits
type CommitPayload struct {
	BatchID       string            `json:"batch_id"`
	SessionID     string            `json:"session_id"`
	TransferOutID string            `json:"transfer_out_id"`
	Location      string            `json:"location"`
	Lines         []CommitLine      `json:"lines"`
	Observed      []ObservedSource  `json:"observed"`
	TotalQuantity entities.Quantity `json:"total_quantity"`
	TotalTax      decimal.Decimal   `json:"total_tax"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	AssembledAt   time.Time         `json:"assembled_at"`
}

// CommitLine is one flat staged line with its resolved tax.
// TaxAmount is per unit; LineTax and LineTotal cover the whole quantity.
type CommitLine struct {
	EntryKey     entities.EntryKey `json:"entry_key"`
	SourceLineID string            `json:"source_line_id"`
	DetailID     entities.DetailID `json:"detail_id"`
	Quantity     entities.Quantity `json:"quantity"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	TaxBracketID string            `json:"tax_bracket_id"`
	TaxPercent   decimal.Decimal   `json:"tax_percent"`
	TaxAmount    decimal.Decimal   `json:"tax_amount"`
	LineTax      decimal.Decimal   `json:"line_tax"`
	LineTotal    decimal.Decimal   `json:"line_total"`
}

// ObservedSource records the confirmed-in quantity a batch was reconciled
// against, so the committer can detect a concurrent commit
type ObservedSource struct {
	SourceLineID        string            `json:"source_line_id"`
	DetailID            entities.DetailID `json:"detail_id"`
	QuantityConfirmedIn entities.Quantity `json:"quantity_confirmed_in"`
	QuantityReceived    entities.Quantity `json:"quantity_received"`
}

// QuantityFor sums the committed quantity of one detail across lines
func (p *CommitPayload) QuantityFor(detailID entities.DetailID) entities.Quantity {
	var total entities.Quantity
	for _, line := range p.Lines {
		if line.DetailID == detailID {
			total += line.Quantity
		}
	}
	return total
}
