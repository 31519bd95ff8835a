package testing

import (
	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/repositories/memory"
)

const (
	TransferOutID = "TO-1001"
	Location      = "STORE-BLR-02"
)

// TaxTables returns the bracket tables used by the optical store scenario:
// a flat 12% table, a flat 5% lens table and a two-slab frame table whose
// first slab ends at 1000 inclusive of 18% sales tax
func TaxTables() []*entities.TaxBracketTable {
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
		panic(err)
	}

	return []*entities.TaxBracketTable{
		entities.NewFlatRateTable("FLAT-12", "GST12", decimal.NewFromInt(12)),
		entities.NewFlatRateTable("FLAT-5", "GST5", decimal.NewFromInt(5)),
		frames,
	}
}

// SourceLines returns the outgoing lines of transfer TO-1001 to STORE-BLR-02
func SourceLines() []*entities.SourceTransferLine {
	tables := make(map[string]*entities.TaxBracketTable)
	for _, table := range TaxTables() {
		tables[table.ID] = table
	}

	power := func(sph, cyl string, axis int) *entities.LensPower {
		return &entities.LensPower{
			Sphere:   decimal.RequireFromString(sph),
			Cylinder: decimal.RequireFromString(cyl),
			Axis:     axis,
			Addition: decimal.Zero,
		}
	}

	return []*entities.SourceTransferLine{
		{
			ID:                   "SL-1",
			DetailID:             "FR-100",
			Barcode:              "8901000000017",
			Description:          "Acetate full-rim frame",
			Kind:                 entities.KindFrame,
			QuantityAuthorized:   10,
			QuantityConfirmedIn:  3,
			UnitTransferPrice:    decimal.NewFromInt(100),
			RetailReferencePrice: decimal.NewFromInt(150),
			TaxTable:             tables["FLAT-12"],
			InJurisdiction:       true,
		},
		{
			ID:                   "SL-2",
			DetailID:             "FR-PREMIUM",
			Barcode:              "8901000000024",
			Description:          "Titanium rimless frame",
			Kind:                 entities.KindFrame,
			QuantityAuthorized:   5,
			QuantityConfirmedIn:  1,
			UnitTransferPrice:    decimal.NewFromInt(900),
			RetailReferencePrice: decimal.NewFromInt(1200),
			TaxTable:             tables["GST-FRAMES"],
			InJurisdiction:       true,
		},
		{
			ID:                 "SL-3",
			DetailID:           "AC-CASE",
			Barcode:            "8901000000031",
			Description:        "Hard shell spectacle case",
			Kind:               entities.KindAccessory,
			QuantityAuthorized: 20,
			UnitTransferPrice:  decimal.NewFromInt(50),
			TaxTable:           tables["FLAT-12"],
			InJurisdiction:     false,
		},
		{
			ID:                 "SL-4",
			DetailID:           "LN-1",
			Description:        "Single vision 1.56 lens",
			Kind:               entities.KindLens,
			LensPower:          power("-1.25", "-0.50", 180),
			QuantityAuthorized: 2,
			UnitTransferPrice:  decimal.NewFromInt(400),
			TaxTable:           tables["FLAT-5"],
			InJurisdiction:     true,
		},
		{
			ID:                  "SL-5",
			DetailID:            "LN-2",
			Description:         "Single vision 1.56 lens",
			Kind:                entities.KindLens,
			LensPower:           power("-1.25", "-0.50", 90),
			QuantityAuthorized:  4,
			QuantityConfirmedIn: 4,
			UnitTransferPrice:   decimal.NewFromInt(400),
			TaxTable:            tables["FLAT-5"],
			InJurisdiction:      true,
		},
	}
}

// BuildOpticalStoreTestData builds repositories holding the optical store
// transfer scenario
func BuildOpticalStoreTestData() (*memory.SourceLineRepository, *memory.TaxTableRepository) {
	sourceRepo := memory.NewSourceLineRepository()
	taxRepo := memory.NewTaxTableRepository()

	lines := SourceLines()
	for _, line := range lines {
		line.TransferOutID = TransferOutID
		line.Location = Location
	}

	if err := taxRepo.LoadTaxTables(TaxTables()); err != nil {
		panic(err)
	}
	if err := sourceRepo.LoadSourceLines(lines); err != nil {
		panic(err)
	}
	return sourceRepo, taxRepo
}
