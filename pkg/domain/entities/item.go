package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// DetailID identifies one specific sellable inventory variant (a frame colour,
// an accessory SKU, a lens power combination). It is not a quantity bucket.
type DetailID string

// Quantity represents an integer quantity of discrete units
type Quantity int64

// ItemKind represents the catalog family of a transferred unit
type ItemKind int

const (
	KindOther ItemKind = iota
	KindFrame
	KindAccessory
	KindLens
)

// String method for ItemKind enum
func (k ItemKind) String() string {
	switch k {
	case KindFrame:
		return "Frame"
	case KindAccessory:
		return "Accessory"
	case KindLens:
		return "Lens"
	case KindOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// ParseItemKind converts a case-insensitive kind name into an ItemKind
func ParseItemKind(s string) (ItemKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "other":
		return KindOther, nil
	case "frame":
		return KindFrame, nil
	case "accessory":
		return KindAccessory, nil
	case "lens":
		return KindLens, nil
	default:
		return KindOther, fmt.Errorf("unknown item kind: %s", s)
	}
}

// ParseQuantity parses a user-entered quantity. Non-numeric, fractional and
// negative input is reported as ErrInvalidQuantity.
func ParseQuantity(s string) (Quantity, error) {
	trimmed := strings.TrimSpace(s)
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidQuantity, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: quantity cannot be negative, got %d", ErrInvalidQuantity, n)
	}
	return Quantity(n), nil
}
