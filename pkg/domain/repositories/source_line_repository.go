package repositories

import (
	"context"

	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

// SourceLineRepository provides access to the outgoing transfer lines a
// receiving location reconciles against
type SourceLineRepository interface {
	GetSourceLines(ctx context.Context, transferOutID, location string) ([]entities.SourceTransferLine, error)
	LoadSourceLines(lines []*entities.SourceTransferLine) error
}
