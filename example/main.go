package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/application/services"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/repositories/memory"
)

func main() {
	ctx := context.Background()

	// Create repository
	repo := memory.NewSourceLineRepository()
	if err := setupFrameTransfer(repo); err != nil {
		fmt.Printf("❌ Setup failed: %v\n", err)
		return
	}

	session, err := services.NewTransferInSession(ctx, services.SessionConfig{
		TransferOutID: "TO-2024-17",
		Location:      "STORE-PUNE-01",
	}, repo)
	if err != nil {
		fmt.Printf("❌ Could not open session: %v\n", err)
		return
	}

	fmt.Println("📦 Receiving transfer TO-2024-17 at STORE-PUNE-01...")
	fmt.Println()

	// Two scans of the same frame merge into one line
	for i := 0; i < 2; i++ {
		decision, err := session.Scan("8901000000017", entities.Combine)
		if err != nil {
			fmt.Printf("❌ Scan failed: %v\n", err)
			return
		}
		remaining, _ := session.Remaining("FR-100")
		fmt.Printf("  scan FR-100 -> %s (remaining %d)\n", decision.Key, remaining)
	}

	// Picking more than is pending is refused without touching the ledger
	decision, err := session.Select("FR-100", 6, entities.Combine)
	if err != nil {
		fmt.Printf("❌ Select failed: %v\n", err)
		return
	}
	if !decision.Accepted {
		fmt.Printf("  select 6 x FR-100 refused: %v\n", decision.Err())
	}

	if _, err := session.Select("FR-PREMIUM", 2, entities.Separate); err != nil {
		fmt.Printf("❌ Select failed: %v\n", err)
		return
	}
	fmt.Println()

	payload, err := session.Commit(ctx, repo)
	if err != nil {
		var assemblyErr interface{ Unwrap() []error }
		if errors.As(err, &assemblyErr) {
			for _, lineErr := range assemblyErr.Unwrap() {
				fmt.Printf("  ⚠️  %v\n", lineErr)
			}
		}
		fmt.Printf("❌ Commit failed: %v\n", err)
		return
	}

	fmt.Println("🧾 Committed batch:")
	for _, line := range payload.Lines {
		fmt.Printf("  %s: %d x %s + %s tax (%s) = %s\n",
			line.DetailID,
			line.Quantity,
			line.UnitPrice.StringFixed(2),
			line.TaxAmount.StringFixed(2),
			line.TaxBracketID,
			line.LineTotal.StringFixed(2))
	}
	fmt.Printf("  Total: %s (tax %s)\n", payload.TotalAmount.StringFixed(2), payload.TotalTax.StringFixed(2))
	fmt.Println()

	fmt.Println("📊 Pending after commit:")
	for _, source := range session.Sources() {
		remaining, _ := session.Remaining(source.DetailID)
		fmt.Printf("  %s: %d of %d received, %d pending\n",
			source.DetailID, source.QuantityConfirmedIn, source.QuantityAuthorized, remaining)
	}
}

func setupFrameTransfer(repo *memory.SourceLineRepository) error {
	flat := entities.NewFlatRateTable("FLAT-12", "GST12", decimal.NewFromInt(12))

	// Frames up to 1000 inclusive of 18% sales tax fall in the 12% slab
	slabEnd := decimal.NewFromInt(1000)
	frames, err := entities.NewTaxBracketTable("GST-FRAMES",
		entities.TaxBracket{
			BracketID:          "FRAME-LOW",
			SlabEndInclusive:   &slabEnd,
			PurchaseTaxPercent: decimal.NewFromInt(12),
			SalesTaxPercent:    decimal.NewFromInt(18),
		},
		entities.TaxBracket{
			BracketID:          "FRAME-HIGH",
			PurchaseTaxPercent: decimal.NewFromInt(18),
			SalesTaxPercent:    decimal.NewFromInt(18),
		},
	)
	if err != nil {
		return err
	}

	basic, err := entities.NewSourceTransferLine("SL-1", "FR-100", 10, 3, decimal.NewFromInt(100), flat, true)
	if err != nil {
		return err
	}
	basic.Barcode = "8901000000017"

	premium, err := entities.NewSourceTransferLine("SL-2", "FR-PREMIUM", 5, 1, decimal.NewFromInt(900), frames, true)
	if err != nil {
		return err
	}

	for _, line := range []*entities.SourceTransferLine{basic, premium} {
		line.TransferOutID = "TO-2024-17"
		line.Location = "STORE-PUNE-01"
		line.Kind = entities.KindFrame
	}
	return repo.LoadSourceLines([]*entities.SourceTransferLine{basic, premium})
}
