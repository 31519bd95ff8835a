// Package reconcile guards the pending quantity of source transfer lines
// against what a session stages locally.
//
// For every detail the following must hold before commit:
//
//	ledger.TotalFor(detail) + confirmedIn <= authorized
//
// Every check recomputes the allowance from the current ledger totals, so an
// edit to one separate-mode entry is always validated against the live sum of
// its siblings.
package reconcile

import (
	"fmt"

	"github.com/vsinha/stocktransfer/pkg/application/services/staging"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

// Decision is the outcome of a reconciliation check. Rejections never
// mutate the ledger.
type Decision struct {
	DetailID   entities.DetailID
	Key        entities.EntryKey
	Requested  entities.Quantity
	Current    entities.Quantity
	Remaining  entities.Quantity
	AllowedMax entities.Quantity
	Accepted   bool
	Reason     error
}

// AdditionalAllowed returns how many more units the entry could take
func (d Decision) AdditionalAllowed() entities.Quantity {
	if d.AllowedMax <= d.Current {
		return 0
	}
	return d.AllowedMax - d.Current
}

// Err converts a rejection into an *entities.AllocationError, nil when accepted
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &entities.AllocationError{
		DetailID:   d.DetailID,
		Requested:  d.Requested,
		AllowedMax: d.AllowedMax,
		Err:        d.Reason,
	}
}

// Reconciler computes remaining allowances. It holds no state; the entry
// mode is supplied by the caller on each addition.
type Reconciler struct{}

// NewReconciler creates a new reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Check evaluates setting entry key to an absolute requested quantity without
// touching the ledger. A key that is not in the ledger counts as a new entry.
func (r *Reconciler) Check(
	source entities.SourceTransferLine,
	ledger *staging.Ledger,
	key entities.EntryKey,
	requested entities.Quantity,
) (Decision, error) {
	if entry, ok := ledger.Get(key); ok && entry.DetailID != source.DetailID {
		return Decision{}, fmt.Errorf("%w: entry %s is %s, source line is %s",
			entities.ErrDetailMismatch, key, entry.DetailID, source.DetailID)
	}
	return r.evaluate(source, ledger, key, ledger.CurrentQuantity(key), requested), nil
}

// CheckAndReserve validates and, when accepted, applies an absolute quantity
// to an existing entry. Reserving zero always succeeds and releases the entry;
// for a key that is not in the ledger it is accepted as a no-op. A non-zero
// quantity needs an existing entry, new entries come from StageAddition.
func (r *Reconciler) CheckAndReserve(
	source entities.SourceTransferLine,
	ledger *staging.Ledger,
	key entities.EntryKey,
	requested entities.Quantity,
) (Decision, error) {
	if !ledger.Has(key) {
		if requested == 0 {
			return r.evaluate(source, ledger, key, 0, 0), nil
		}
		return Decision{}, fmt.Errorf("%w: %s", entities.ErrUnknownEntry, key)
	}

	decision, err := r.Check(source, ledger, key, requested)
	if err != nil || !decision.Accepted {
		return decision, err
	}

	if requested == 0 {
		return decision, ledger.Remove(key)
	}
	return decision, ledger.SetQuantity(key, requested)
}

// StageAddition validates adding req.Delta units of the source line's detail
// and applies it through ledger.Upsert when accepted. In combine mode the
// check covers the merged quantity of the existing entry.
func (r *Reconciler) StageAddition(
	source entities.SourceTransferLine,
	ledger *staging.Ledger,
	req staging.UpsertRequest,
) (Decision, error) {
	if req.DetailID == "" {
		req.DetailID = source.DetailID
	}
	if req.DetailID != source.DetailID {
		return Decision{}, fmt.Errorf("%w: adding %s against source line of %s",
			entities.ErrDetailMismatch, req.DetailID, source.DetailID)
	}
	if req.SourceLineID == "" {
		req.SourceLineID = source.ID
	}

	key, exists := ledger.NextKey(req.DetailID, req.Mode)
	var current entities.Quantity
	if exists {
		current = ledger.CurrentQuantity(key)
	}

	decision := r.evaluate(source, ledger, key, current, current+req.Delta)
	if req.Delta <= 0 {
		decision.Accepted = false
		decision.Reason = entities.ErrInvalidQuantity
		return decision, nil
	}
	if !decision.Accepted {
		return decision, nil
	}

	decision.Key = ledger.Upsert(req)
	return decision, nil
}

// Remaining returns the quantity of the source line that can still be
// staged given everything currently in the ledger, floored at zero
func (r *Reconciler) Remaining(source entities.SourceTransferLine, ledger *staging.Ledger) entities.Quantity {
	remaining := source.Outstanding() - ledger.TotalFor(source.DetailID)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (r *Reconciler) evaluate(
	source entities.SourceTransferLine,
	ledger *staging.Ledger,
	key entities.EntryKey,
	current, requested entities.Quantity,
) Decision {
	others := ledger.TotalFor(source.DetailID) - current
	remaining := source.QuantityAuthorized - source.QuantityConfirmedIn - others

	allowedMax := remaining
	if allowedMax < 0 {
		allowedMax = 0
	}

	decision := Decision{
		DetailID:   source.DetailID,
		Key:        key,
		Requested:  requested,
		Current:    current,
		Remaining:  remaining,
		AllowedMax: allowedMax,
	}

	switch {
	case requested < 0:
		decision.Reason = entities.ErrInvalidQuantity
	case requested == 0:
		decision.Accepted = true
	case requested <= remaining:
		decision.Accepted = true
	default:
		decision.Reason = entities.ErrOverAllocation
	}
	return decision
}

// Violation describes a detail whose staged total breaks the allocation invariant
type Violation struct {
	DetailID   entities.DetailID
	Staged     entities.Quantity
	Authorized entities.Quantity
	Confirmed  entities.Quantity
}

// Verify checks the allocation invariant for every detail in the ledger.
// Details absent from sources are reported with zero authorization.
func Verify(sources map[entities.DetailID]entities.SourceTransferLine, ledger *staging.Ledger) []Violation {
	var violations []Violation
	for _, detailID := range ledger.Details() {
		source := sources[detailID]
		staged := ledger.TotalFor(detailID)
		if staged+source.QuantityConfirmedIn > source.QuantityAuthorized {
			violations = append(violations, Violation{
				DetailID:   detailID,
				Staged:     staged,
				Authorized: source.QuantityAuthorized,
				Confirmed:  source.QuantityConfirmedIn,
			})
		}
	}
	return violations
}
