package assembly

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/domain/services"
)

// ErrEmptyBatch is returned when there is nothing staged to assemble
var ErrEmptyBatch = errors.New("no staged lines to commit")

// LineProblem is one reason a staged line could not be assembled
type LineProblem struct {
	Key      entities.EntryKey
	DetailID entities.DetailID
	Err      error
}

// AssemblyError lists every staged line that blocked assembly
type AssemblyError struct {
	Problems []LineProblem
}

func (e *AssemblyError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Key != "" {
			parts = append(parts, fmt.Sprintf("%s (%s): %v", p.Key, p.DetailID, p.Err))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %v", p.DetailID, p.Err))
		}
	}
	return fmt.Sprintf("cannot assemble batch: %s", strings.Join(parts, "; "))
}

// Unwrap exposes every line error to errors.Is and errors.As
func (e *AssemblyError) Unwrap() []error {
	errs := make([]error, 0, len(e.Problems))
	for _, p := range e.Problems {
		errs = append(errs, p.Err)
	}
	return errs
}

// Request carries everything needed to build one commit payload
type Request struct {
	SessionID     string
	TransferOutID string
	Location      string
	Entries       []entities.StagedLine
	Sources       []entities.SourceTransferLine
}

// Assembler turns staged lines into a commit payload. It has no side effects
// beyond generating a batch id.
type Assembler struct {
	resolver services.Resolver
	now      func() time.Time
	newID    func() string
}

// NewAssembler creates an assembler resolving tax with resolver
func NewAssembler(resolver services.Resolver) *Assembler {
	if resolver == nil {
		resolver = services.NewTaxResolver()
	}
	return &Assembler{
		resolver: resolver,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Assemble resolves tax for every staged line against its own source line's
// bracket table and emits the flat payload with batch totals. Lines with a
// non-positive quantity, an unknown detail, a negative price or an empty
// bracket table are all reported together in an *AssemblyError.
func (a *Assembler) Assemble(req Request) (*dto.CommitPayload, error) {
	if len(req.Entries) == 0 {
		return nil, ErrEmptyBatch
	}

	sources := make(map[entities.DetailID]entities.SourceTransferLine, len(req.Sources))
	for _, source := range req.Sources {
		sources[source.DetailID] = source
	}

	payload := &dto.CommitPayload{
		BatchID:       a.newID(),
		SessionID:     req.SessionID,
		TransferOutID: req.TransferOutID,
		Location:      req.Location,
		Lines:         make([]dto.CommitLine, 0, len(req.Entries)),
		TotalTax:      decimal.Zero,
		TotalAmount:   decimal.Zero,
		AssembledAt:   a.now(),
	}

	var problems []LineProblem
	received := make(map[entities.DetailID]entities.Quantity)
	var detailOrder []entities.DetailID

	for _, entry := range req.Entries {
		source, known := sources[entry.DetailID]
		if !known {
			problems = append(problems, LineProblem{Key: entry.Key, DetailID: entry.DetailID, Err: entities.ErrUnknownDetail})
			continue
		}
		if entry.ProposedQuantity <= 0 {
			problems = append(problems, LineProblem{
				Key:      entry.Key,
				DetailID: entry.DetailID,
				Err:      fmt.Errorf("%w: quantity must be positive, got %d", entities.ErrInvalidQuantity, entry.ProposedQuantity),
			})
			continue
		}
		if entry.UnitTransferPrice.IsNegative() {
			problems = append(problems, LineProblem{
				Key:      entry.Key,
				DetailID: entry.DetailID,
				Err:      fmt.Errorf("%w: negative unit price %s", entities.ErrPriceOutOfBounds, entry.UnitTransferPrice),
			})
			continue
		}

		tax, err := a.resolver.Resolve(entry.UnitTransferPrice, source.TaxTable, source.InJurisdiction)
		if err != nil {
			problems = append(problems, LineProblem{Key: entry.Key, DetailID: entry.DetailID, Err: err})
			continue
		}

		qty := decimal.NewFromInt(int64(entry.ProposedQuantity))
		lineTax := qty.Mul(tax.Amount)
		lineTotal := qty.Mul(entry.UnitTransferPrice.Add(tax.Amount))

		sourceLineID := entry.OriginSourceLineID
		if sourceLineID == "" {
			sourceLineID = source.ID
		}

		payload.Lines = append(payload.Lines, dto.CommitLine{
			EntryKey:     entry.Key,
			SourceLineID: sourceLineID,
			DetailID:     entry.DetailID,
			Quantity:     entry.ProposedQuantity,
			UnitPrice:    entry.UnitTransferPrice,
			TaxBracketID: tax.BracketID,
			TaxPercent:   tax.Percentage,
			TaxAmount:    tax.Amount,
			LineTax:      lineTax,
			LineTotal:    lineTotal,
		})

		if _, seen := received[entry.DetailID]; !seen {
			detailOrder = append(detailOrder, entry.DetailID)
		}
		received[entry.DetailID] += entry.ProposedQuantity

		payload.TotalQuantity += entry.ProposedQuantity
		payload.TotalTax = payload.TotalTax.Add(lineTax)
		payload.TotalAmount = payload.TotalAmount.Add(lineTotal)
	}

	for _, detailID := range detailOrder {
		source := sources[detailID]
		if received[detailID]+source.QuantityConfirmedIn > source.QuantityAuthorized {
			problems = append(problems, LineProblem{
				DetailID: detailID,
				Err: &entities.AllocationError{
					DetailID:   detailID,
					Requested:  received[detailID],
					AllowedMax: source.Outstanding(),
					Err:        entities.ErrOverAllocation,
				},
			})
			continue
		}
		payload.Observed = append(payload.Observed, dto.ObservedSource{
			SourceLineID:        source.ID,
			DetailID:            detailID,
			QuantityConfirmedIn: source.QuantityConfirmedIn,
			QuantityReceived:    received[detailID],
		})
	}

	if len(problems) > 0 {
		return nil, &AssemblyError{Problems: problems}
	}
	return payload, nil
}
