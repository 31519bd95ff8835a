package entities

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LensPower describes the optical power of a lens variant
type LensPower struct {
	Sphere   decimal.Decimal `json:"sphere"`
	Cylinder decimal.Decimal `json:"cylinder"`
	Axis     int             `json:"axis"`
	Addition decimal.Decimal `json:"addition"`
}

// Matches compares two powers value by value, ignoring decimal scale
func (p LensPower) Matches(other LensPower) bool {
	return p.Sphere.Equal(other.Sphere) &&
		p.Cylinder.Equal(other.Cylinder) &&
		p.Axis == other.Axis &&
		p.Addition.Equal(other.Addition)
}

func (p LensPower) String() string {
	return fmt.Sprintf("SPH %s CYL %s AX %d ADD %s",
		p.Sphere.StringFixed(2), p.Cylinder.StringFixed(2), p.Axis, p.Addition.StringFixed(2))
}

// ParseLensPower parses "sphere/cylinder/axis[/addition]", e.g. "-1.25/-0.50/180"
func ParseLensPower(s string) (LensPower, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) < 3 || len(parts) > 4 {
		return LensPower{}, fmt.Errorf("invalid lens power %q: expected sphere/cylinder/axis[/addition]", s)
	}

	sphere, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return LensPower{}, fmt.Errorf("invalid sphere %q: %w", parts[0], err)
	}
	cylinder, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return LensPower{}, fmt.Errorf("invalid cylinder %q: %w", parts[1], err)
	}
	axis, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || axis < 0 || axis > 180 {
		return LensPower{}, fmt.Errorf("invalid axis %q: expected 0-180", parts[2])
	}

	power := LensPower{Sphere: sphere, Cylinder: cylinder, Axis: axis, Addition: decimal.Zero}
	if len(parts) == 4 {
		power.Addition, err = decimal.NewFromString(strings.TrimSpace(parts[3]))
		if err != nil {
			return LensPower{}, fmt.Errorf("invalid addition %q: %w", parts[3], err)
		}
	}
	return power, nil
}

// SourceTransferLine is one inventory unit leaving the source location on a
// transfer-out record. Only QuantityConfirmedIn ever changes, and only
// through a successful commit.
type SourceTransferLine struct {
	ID                   string           `json:"id"`
	TransferOutID        string           `json:"transfer_out_id"`
	Location             string           `json:"location"`
	DetailID             DetailID         `json:"detail_id"`
	Barcode              string           `json:"barcode,omitempty"`
	Description          string           `json:"description,omitempty"`
	Kind                 ItemKind         `json:"kind"`
	LensPower            *LensPower       `json:"lens_power,omitempty"`
	QuantityAuthorized   Quantity         `json:"quantity_authorized"`
	QuantityConfirmedIn  Quantity         `json:"quantity_confirmed_in"`
	UnitTransferPrice    decimal.Decimal  `json:"unit_transfer_price"`
	RetailReferencePrice decimal.Decimal  `json:"retail_reference_price"`
	TaxTable             *TaxBracketTable `json:"tax_table"`
	InJurisdiction       bool             `json:"in_jurisdiction"`
}

// NewSourceTransferLine creates a validated SourceTransferLine
func NewSourceTransferLine(
	id string,
	detailID DetailID,
	authorized, confirmedIn Quantity,
	unitPrice decimal.Decimal,
	table *TaxBracketTable,
	inJurisdiction bool,
) (*SourceTransferLine, error) {
	line := &SourceTransferLine{
		ID:                  id,
		DetailID:            detailID,
		QuantityAuthorized:  authorized,
		QuantityConfirmedIn: confirmedIn,
		UnitTransferPrice:   unitPrice,
		TaxTable:            table,
		InJurisdiction:      inJurisdiction,
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}
	return line, nil
}

// Validate checks the structural rules of a source line
func (l *SourceTransferLine) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("source line id cannot be empty")
	}
	if l.DetailID == "" {
		return fmt.Errorf("detail id cannot be empty")
	}
	if l.QuantityAuthorized < 0 {
		return fmt.Errorf("authorized quantity cannot be negative, got %d", l.QuantityAuthorized)
	}
	if l.QuantityConfirmedIn < 0 {
		return fmt.Errorf("confirmed quantity cannot be negative, got %d", l.QuantityConfirmedIn)
	}
	if l.QuantityConfirmedIn > l.QuantityAuthorized {
		return fmt.Errorf("confirmed quantity %d exceeds authorized quantity %d", l.QuantityConfirmedIn, l.QuantityAuthorized)
	}
	if l.UnitTransferPrice.IsNegative() {
		return fmt.Errorf("unit transfer price cannot be negative, got %s", l.UnitTransferPrice)
	}
	return nil
}

// Outstanding returns the quantity still pending receipt, ignoring anything
// staged locally
func (l SourceTransferLine) Outstanding() Quantity {
	outstanding := l.QuantityAuthorized - l.QuantityConfirmedIn
	if outstanding < 0 {
		return 0
	}
	return outstanding
}
