package repositories

import (
	"context"
	"errors"

	"github.com/vsinha/stocktransfer/pkg/application/dto"
)

// ErrBatchAlreadyCommitted is returned when a batch id is committed twice
var ErrBatchAlreadyCommitted = errors.New("batch already committed")

// TransferCommitter persists an assembled transfer-in batch.
//
// Implementations apply every line atomically: each observed source line's
// confirmed-in quantity is increased by the quantity received, and the whole
// batch fails with entities.ErrStaleSourceLine if any observed confirmed-in
// value no longer matches what is stored.
type TransferCommitter interface {
	CommitTransferIn(ctx context.Context, payload *dto.CommitPayload) error
}
