package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryMode selects how repeated additions of the same detail are staged
type EntryMode int

const (
	// Combine merges additions of one detail into a single staged line
	Combine EntryMode = iota
	// Separate stages every addition as its own line
	Separate
)

// String method for EntryMode enum
func (m EntryMode) String() string {
	switch m {
	case Combine:
		return "Combine"
	case Separate:
		return "Separate"
	default:
		return "Unknown"
	}
}

// ParseEntryMode converts "combine" or "separate" into an EntryMode
func ParseEntryMode(s string) (EntryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "combine":
		return Combine, nil
	case "separate":
		return Separate, nil
	default:
		return Combine, fmt.Errorf("unknown entry mode: %s", s)
	}
}

// StagingOrigin records which user action produced a staged line
type StagingOrigin int

const (
	OriginManual StagingOrigin = iota
	OriginScan
	OriginSearch
	OriginLensPower
)

// String method for StagingOrigin enum
func (o StagingOrigin) String() string {
	switch o {
	case OriginManual:
		return "manual"
	case OriginScan:
		return "scan"
	case OriginSearch:
		return "search"
	case OriginLensPower:
		return "lens_power"
	default:
		return "unknown"
	}
}

// EntryKey identifies one staged line inside a ledger
type EntryKey string

// CombinedKey is the key of the single combine-mode entry for a detail
func CombinedKey(detailID DetailID) EntryKey {
	return EntryKey(detailID)
}

// SeparateKey is the key of the n-th separate-mode entry for a detail
func SeparateKey(detailID DetailID, seq int) EntryKey {
	return EntryKey(fmt.Sprintf("%s#%d", detailID, seq))
}

// StagedLine is a locally pending proposal to receive a quantity of a detail
type StagedLine struct {
	Key                EntryKey        `json:"key"`
	DetailID           DetailID        `json:"detail_id"`
	ProposedQuantity   Quantity        `json:"proposed_quantity"`
	UnitTransferPrice  decimal.Decimal `json:"unit_transfer_price"`
	OriginSourceLineID string          `json:"origin_source_line_id"`
	Origin             StagingOrigin   `json:"origin"`
	StagedAt           time.Time       `json:"staged_at"`
}
