package repositories

import (
	"context"

	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

// TaxTableRepository provides access to bracket tables by id
type TaxTableRepository interface {
	GetTaxTable(ctx context.Context, tableID string) (*entities.TaxBracketTable, error)
	LoadTaxTables(tables []*entities.TaxBracketTable) error
}
