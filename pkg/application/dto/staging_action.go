package dto

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

// ActionKind is one user action replayed against a transfer-in session
type ActionKind string

const (
	ActionScan   ActionKind = "scan"
	ActionSelect ActionKind = "select"
	ActionLens   ActionKind = "lens"
	ActionEdit   ActionKind = "edit"
	ActionPrice  ActionKind = "price"
	ActionRemove ActionKind = "remove"
)

// ParseActionKind converts a case-insensitive action name into an ActionKind
func ParseActionKind(s string) (ActionKind, error) {
	kind := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case ActionScan, ActionSelect, ActionLens, ActionEdit, ActionPrice, ActionRemove:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown action: %s", s)
	}
}

// StagingAction is a scripted user action. Target is a barcode for scan, a
// detail id for select, a lens power for lens and an entry key otherwise.
// A nil Mode uses the session default.
type StagingAction struct {
	Kind     ActionKind
	Target   string
	Quantity entities.Quantity
	Price    decimal.Decimal
	Mode     *entities.EntryMode
}

// ActionOutcome is the recorded result of replaying one StagingAction
type ActionOutcome struct {
	Action     StagingAction     `json:"-"`
	Kind       ActionKind        `json:"action"`
	Target     string            `json:"target"`
	Key        entities.EntryKey `json:"key,omitempty"`
	Accepted   bool              `json:"accepted"`
	Quantity   entities.Quantity `json:"quantity"`
	AllowedMax entities.Quantity `json:"allowed_max"`
	Remaining  entities.Quantity `json:"remaining"`
	Message    string            `json:"message,omitempty"`
}
