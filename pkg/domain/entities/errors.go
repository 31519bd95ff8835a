package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrOverAllocation is returned when a staged quantity would exceed the
	// remaining allowance of a source line.
	ErrOverAllocation = errors.New("requested quantity exceeds pending quantity")

	// ErrInvalidQuantity covers negative, zero-where-positive-required and
	// non-numeric quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrUnknownBracketTable is returned for a tax table with no brackets.
	ErrUnknownBracketTable = errors.New("tax bracket table has no brackets")

	// ErrMalformedBracketTable is returned when a table breaks the ordering rules.
	ErrMalformedBracketTable = errors.New("malformed tax bracket table")

	// ErrStaleSourceLine is reported by a committer when the confirmed-in
	// quantity a batch was reconciled against has changed since.
	ErrStaleSourceLine = errors.New("source transfer line changed since it was fetched")

	ErrUnknownDetail    = errors.New("detail is not part of this transfer")
	ErrUnknownEntry     = errors.New("no staged entry with this key")
	ErrDetailMismatch   = errors.New("staged entry belongs to a different detail")
	ErrPriceOutOfBounds = errors.New("unit price outside permitted range")
)

// AllocationError carries the computed allowance of a rejected staging request
type AllocationError struct {
	DetailID   DetailID
	Requested  Quantity
	AllowedMax Quantity
	Err        error
}

func (e *AllocationError) Error() string {
	if e.AllowedMax <= 0 && errors.Is(e.Err, ErrOverAllocation) {
		return fmt.Sprintf("%s: no pending quantity left for %s", e.Err, e.DetailID)
	}
	return fmt.Sprintf("%s: requested %d of %s, at most %d allowed", e.Err, e.Requested, e.DetailID, e.AllowedMax)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}
