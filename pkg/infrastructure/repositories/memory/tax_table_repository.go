package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/domain/repositories"
)

// TaxTableRepository provides in-memory bracket tables
type TaxTableRepository struct {
	mu     sync.RWMutex
	tables map[string]*entities.TaxBracketTable
}

// NewTaxTableRepository creates a new in-memory tax table repository
func NewTaxTableRepository() *TaxTableRepository {
	return &TaxTableRepository{tables: make(map[string]*entities.TaxBracketTable)}
}

var _ repositories.TaxTableRepository = (*TaxTableRepository)(nil)

func (r *TaxTableRepository) LoadTaxTables(tables []*entities.TaxBracketTable) error {
	for _, table := range tables {
		if err := table.Validate(); err != nil {
			return fmt.Errorf("tax table %s: %w", table.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, table := range tables {
		r.tables[table.ID] = table
	}
	return nil
}

func (r *TaxTableRepository) GetTaxTable(_ context.Context, tableID string) (*entities.TaxBracketTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, exists := r.tables[tableID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", entities.ErrUnknownBracketTable, tableID)
	}
	return table, nil
}
