package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

type sourceLineModel struct {
	ID                   string `gorm:"primaryKey"`
	TransferOutID        string `gorm:"index:idx_transfer_location;not null"`
	Location             string `gorm:"index:idx_transfer_location"`
	Position             int    `gorm:"not null"`
	DetailID             string `gorm:"not null"`
	Barcode              string
	Description          string
	Kind                 string
	HasLensPower         bool
	LensSphere           decimal.Decimal `gorm:"type:text"`
	LensCylinder         decimal.Decimal `gorm:"type:text"`
	LensAxis             int
	LensAddition         decimal.Decimal `gorm:"type:text"`
	QuantityAuthorized   int64           `gorm:"not null"`
	QuantityConfirmedIn  int64           `gorm:"not null"`
	UnitTransferPrice    decimal.Decimal `gorm:"type:text;not null"`
	RetailReferencePrice decimal.Decimal `gorm:"type:text"`
	TaxTableID           string
	InJurisdiction       bool
	UpdatedAt            time.Time
}

func (sourceLineModel) TableName() string { return "source_transfer_lines" }

type taxBracketModel struct {
	ID                 uint                `gorm:"primaryKey"`
	TableID            string              `gorm:"uniqueIndex:idx_table_position;not null"`
	Position           int                 `gorm:"uniqueIndex:idx_table_position"`
	BracketID          string              `gorm:"not null"`
	SlabEndInclusive   decimal.NullDecimal `gorm:"type:text"`
	PurchaseTaxPercent decimal.Decimal     `gorm:"type:text;not null"`
	SalesTaxPercent    decimal.Decimal     `gorm:"type:text;not null"`
}

func (taxBracketModel) TableName() string { return "tax_brackets" }

type transferInBatchModel struct {
	BatchID       string `gorm:"primaryKey"`
	SessionID     string
	TransferOutID string `gorm:"index"`
	Location      string
	TotalQuantity int64
	TotalTax      decimal.Decimal `gorm:"type:text"`
	TotalAmount   decimal.Decimal `gorm:"type:text"`
	AssembledAt   time.Time
	CommittedAt   time.Time
	Lines         []transferInLineModel `gorm:"foreignKey:BatchID;references:BatchID"`
}

func (transferInBatchModel) TableName() string { return "transfer_in_batches" }

type transferInLineModel struct {
	ID           uint            `gorm:"primaryKey"`
	BatchID      string          `gorm:"index;not null"`
	EntryKey     string          `gorm:"not null"`
	SourceLineID string          `gorm:"not null"`
	DetailID     string          `gorm:"not null"`
	Quantity     int64           `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:text"`
	TaxBracketID string
	TaxPercent   decimal.Decimal `gorm:"type:text"`
	TaxAmount    decimal.Decimal `gorm:"type:text"`
	LineTax      decimal.Decimal `gorm:"type:text"`
	LineTotal    decimal.Decimal `gorm:"type:text"`
}

func (transferInLineModel) TableName() string { return "transfer_in_lines" }

func toSourceLineModel(line *entities.SourceTransferLine, position int) sourceLineModel {
	m := sourceLineModel{
		ID:                   line.ID,
		TransferOutID:        line.TransferOutID,
		Location:             line.Location,
		Position:             position,
		DetailID:             string(line.DetailID),
		Barcode:              line.Barcode,
		Description:          line.Description,
		Kind:                 line.Kind.String(),
		QuantityAuthorized:   int64(line.QuantityAuthorized),
		QuantityConfirmedIn:  int64(line.QuantityConfirmedIn),
		UnitTransferPrice:    line.UnitTransferPrice,
		RetailReferencePrice: line.RetailReferencePrice,
		InJurisdiction:       line.InJurisdiction,
	}
	if line.TaxTable != nil {
		m.TaxTableID = line.TaxTable.ID
	}
	if line.LensPower != nil {
		m.HasLensPower = true
		m.LensSphere = line.LensPower.Sphere
		m.LensCylinder = line.LensPower.Cylinder
		m.LensAxis = line.LensPower.Axis
		m.LensAddition = line.LensPower.Addition
	}
	return m
}

func (m sourceLineModel) toEntity(table *entities.TaxBracketTable) (entities.SourceTransferLine, error) {
	kind, err := entities.ParseItemKind(m.Kind)
	if err != nil {
		return entities.SourceTransferLine{}, err
	}
	line := entities.SourceTransferLine{
		ID:                   m.ID,
		TransferOutID:        m.TransferOutID,
		Location:             m.Location,
		DetailID:             entities.DetailID(m.DetailID),
		Barcode:              m.Barcode,
		Description:          m.Description,
		Kind:                 kind,
		QuantityAuthorized:   entities.Quantity(m.QuantityAuthorized),
		QuantityConfirmedIn:  entities.Quantity(m.QuantityConfirmedIn),
		UnitTransferPrice:    m.UnitTransferPrice,
		RetailReferencePrice: m.RetailReferencePrice,
		TaxTable:             table,
		InJurisdiction:       m.InJurisdiction,
	}
	if m.HasLensPower {
		line.LensPower = &entities.LensPower{
			Sphere:   m.LensSphere,
			Cylinder: m.LensCylinder,
			Axis:     m.LensAxis,
			Addition: m.LensAddition,
		}
	}
	return line, nil
}

func toBracketModels(table *entities.TaxBracketTable) []taxBracketModel {
	models := make([]taxBracketModel, 0, len(table.Brackets))
	for i, b := range table.Brackets {
		m := taxBracketModel{
			TableID:            table.ID,
			Position:           i,
			BracketID:          b.BracketID,
			PurchaseTaxPercent: b.PurchaseTaxPercent,
			SalesTaxPercent:    b.SalesTaxPercent,
		}
		if b.SlabEndInclusive != nil {
			m.SlabEndInclusive = decimal.NewNullDecimal(*b.SlabEndInclusive)
		}
		models = append(models, m)
	}
	return models
}

func toTable(tableID string, models []taxBracketModel) *entities.TaxBracketTable {
	table := &entities.TaxBracketTable{ID: tableID, Brackets: make([]entities.TaxBracket, 0, len(models))}
	for _, m := range models {
		b := entities.TaxBracket{
			BracketID:          m.BracketID,
			PurchaseTaxPercent: m.PurchaseTaxPercent,
			SalesTaxPercent:    m.SalesTaxPercent,
		}
		if m.SlabEndInclusive.Valid {
			end := m.SlabEndInclusive.Decimal
			b.SlabEndInclusive = &end
		}
		table.Brackets = append(table.Brackets, b)
	}
	return table
}

func toBatchModel(payload *dto.CommitPayload, committedAt time.Time) transferInBatchModel {
	batch := transferInBatchModel{
		BatchID:       payload.BatchID,
		SessionID:     payload.SessionID,
		TransferOutID: payload.TransferOutID,
		Location:      payload.Location,
		TotalQuantity: int64(payload.TotalQuantity),
		TotalTax:      payload.TotalTax,
		TotalAmount:   payload.TotalAmount,
		AssembledAt:   payload.AssembledAt,
		CommittedAt:   committedAt,
		Lines:         make([]transferInLineModel, 0, len(payload.Lines)),
	}
	for _, line := range payload.Lines {
		batch.Lines = append(batch.Lines, transferInLineModel{
			BatchID:      payload.BatchID,
			EntryKey:     string(line.EntryKey),
			SourceLineID: line.SourceLineID,
			DetailID:     string(line.DetailID),
			Quantity:     int64(line.Quantity),
			UnitPrice:    line.UnitPrice,
			TaxBracketID: line.TaxBracketID,
			TaxPercent:   line.TaxPercent,
			TaxAmount:    line.TaxAmount,
			LineTax:      line.LineTax,
			LineTotal:    line.LineTotal,
		})
	}
	return batch
}
