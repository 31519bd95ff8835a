package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/domain/repositories"
)

// SourceLineRepository provides in-memory source transfer lines and commits
// transfer-in batches against them
type SourceLineRepository struct {
	mu        sync.RWMutex
	lines     []entities.SourceTransferLine
	linesByID map[string]int
	committed []dto.CommitPayload
	batches   map[string]struct{}
}

// NewSourceLineRepository creates a new in-memory source line repository
func NewSourceLineRepository() *SourceLineRepository {
	return &SourceLineRepository{
		linesByID: make(map[string]int),
		batches:   make(map[string]struct{}),
	}
}

// Verify interface compliance
var (
	_ repositories.SourceLineRepository = (*SourceLineRepository)(nil)
	_ repositories.TransferCommitter    = (*SourceLineRepository)(nil)
)

// LoadSourceLines validates and stores source lines, replacing any line with
// the same id. A replaced line keeps its confirmed-in quantity.
func (r *SourceLineRepository) LoadSourceLines(lines []*entities.SourceTransferLine) error {
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range lines {
		if index, exists := r.linesByID[line.ID]; exists {
			confirmed := r.lines[index].QuantityConfirmedIn
			r.lines[index] = *line
			r.lines[index].QuantityConfirmedIn = confirmed
			continue
		}
		r.linesByID[line.ID] = len(r.lines)
		r.lines = append(r.lines, *line)
	}
	return nil
}

// GetSourceLines returns copies of the lines of a transfer-out for a
// receiving location in load order. An empty location matches every location.
func (r *SourceLineRepository) GetSourceLines(ctx context.Context, transferOutID, location string) ([]entities.SourceTransferLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []entities.SourceTransferLine
	for _, line := range r.lines {
		if line.TransferOutID != transferOutID {
			continue
		}
		if location != "" && line.Location != location {
			continue
		}
		result = append(result, line)
	}
	return result, nil
}

// GetSourceLine returns one source line by id
func (r *SourceLineRepository) GetSourceLine(id string) (entities.SourceTransferLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	index, exists := r.linesByID[id]
	if !exists {
		return entities.SourceTransferLine{}, fmt.Errorf("source line not found: %s", id)
	}
	return r.lines[index], nil
}

// CommitTransferIn applies the batch atomically. Nothing is written unless
// every observed source line still has the confirmed-in quantity the batch
// was reconciled against and stays within its authorized quantity.
func (r *SourceLineRepository) CommitTransferIn(ctx context.Context, payload *dto.CommitPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if payload == nil || len(payload.Observed) == 0 {
		return fmt.Errorf("%w: empty commit payload", entities.ErrInvalidQuantity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.batches[payload.BatchID]; exists {
		return fmt.Errorf("%w: %s", repositories.ErrBatchAlreadyCommitted, payload.BatchID)
	}

	for _, observed := range payload.Observed {
		index, exists := r.linesByID[observed.SourceLineID]
		if !exists {
			return fmt.Errorf("%w: source line %s no longer exists", entities.ErrStaleSourceLine, observed.SourceLineID)
		}
		line := r.lines[index]
		if line.QuantityConfirmedIn != observed.QuantityConfirmedIn {
			return fmt.Errorf("%w: source line %s confirmed %d, batch observed %d",
				entities.ErrStaleSourceLine, line.ID, line.QuantityConfirmedIn, observed.QuantityConfirmedIn)
		}
		if line.QuantityConfirmedIn+observed.QuantityReceived > line.QuantityAuthorized {
			return &entities.AllocationError{
				DetailID:   line.DetailID,
				Requested:  observed.QuantityReceived,
				AllowedMax: line.Outstanding(),
				Err:        entities.ErrOverAllocation,
			}
		}
	}

	for _, observed := range payload.Observed {
		index := r.linesByID[observed.SourceLineID]
		r.lines[index].QuantityConfirmedIn += observed.QuantityReceived
	}
	r.batches[payload.BatchID] = struct{}{}
	r.committed = append(r.committed, *payload)
	return nil
}

// CommittedBatches returns every batch committed so far in commit order
func (r *SourceLineRepository) CommittedBatches() []dto.CommitPayload {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]dto.CommitPayload, len(r.committed))
	copy(result, r.committed)
	return result
}
