package events

import (
	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

const (
	LineStagedEvent      = "staging.line.staged"
	StagingRejectedEvent = "staging.rejected"
	QuantityEditedEvent  = "staging.quantity.edited"
	PriceEditedEvent     = "staging.price.edited"
	LineRemovedEvent     = "staging.line.removed"
	BatchAssembledEvent  = "batch.assembled"
	BatchCommittedEvent  = "batch.committed"
	BatchConflictedEvent = "batch.conflicted"
	SourceRefreshedEvent = "source.refreshed"
)

type LineStaged struct {
	Key      entities.EntryKey      `json:"key"`
	DetailID entities.DetailID      `json:"detail_id"`
	Delta    entities.Quantity      `json:"delta"`
	Quantity entities.Quantity      `json:"quantity"`
	Mode     entities.EntryMode     `json:"mode"`
	Origin   entities.StagingOrigin `json:"origin"`
}

type StagingRejected struct {
	Key        entities.EntryKey      `json:"key,omitempty"`
	DetailID   entities.DetailID      `json:"detail_id"`
	Requested  entities.Quantity      `json:"requested"`
	AllowedMax entities.Quantity      `json:"allowed_max"`
	Origin     entities.StagingOrigin `json:"origin"`
	Reason     string                 `json:"reason"`
}

type QuantityEdited struct {
	Key         entities.EntryKey `json:"key"`
	DetailID    entities.DetailID `json:"detail_id"`
	OldQuantity entities.Quantity `json:"old_quantity"`
	NewQuantity entities.Quantity `json:"new_quantity"`
}

type PriceEdited struct {
	Key      entities.EntryKey `json:"key"`
	DetailID entities.DetailID `json:"detail_id"`
	OldPrice decimal.Decimal   `json:"old_price"`
	NewPrice decimal.Decimal   `json:"new_price"`
}

type LineRemoved struct {
	Line entities.StagedLine `json:"line"`
}

type BatchAssembled struct {
	BatchID       string            `json:"batch_id"`
	Lines         int               `json:"lines"`
	TotalQuantity entities.Quantity `json:"total_quantity"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
}

type BatchCommitted struct {
	BatchID       string            `json:"batch_id"`
	TotalQuantity entities.Quantity `json:"total_quantity"`
}

type BatchConflicted struct {
	BatchID string `json:"batch_id"`
	Reason  string `json:"reason"`
}

type SourceRefreshed struct {
	TransferOutID string `json:"transfer_out_id"`
	Location      string `json:"location"`
	Lines         int    `json:"lines"`
}

func NewLineStagedEvent(sessionID string, data LineStaged) Event {
	return NewEvent(LineStagedEvent, sessionID, data)
}

func NewStagingRejectedEvent(sessionID string, data StagingRejected) Event {
	return NewEvent(StagingRejectedEvent, sessionID, data)
}

func NewQuantityEditedEvent(sessionID string, data QuantityEdited) Event {
	return NewEvent(QuantityEditedEvent, sessionID, data)
}

func NewPriceEditedEvent(sessionID string, data PriceEdited) Event {
	return NewEvent(PriceEditedEvent, sessionID, data)
}

func NewLineRemovedEvent(sessionID string, line entities.StagedLine) Event {
	return NewEvent(LineRemovedEvent, sessionID, LineRemoved{Line: line})
}

func NewBatchAssembledEvent(sessionID string, data BatchAssembled) Event {
	return NewEvent(BatchAssembledEvent, sessionID, data)
}

func NewBatchCommittedEvent(sessionID string, data BatchCommitted) Event {
	return NewEvent(BatchCommittedEvent, sessionID, data)
}

func NewBatchConflictedEvent(sessionID, batchID string, reason error) Event {
	return NewEvent(BatchConflictedEvent, sessionID, BatchConflicted{BatchID: batchID, Reason: reason.Error()})
}

func NewSourceRefreshedEvent(sessionID string, data SourceRefreshed) Event {
	return NewEvent(SourceRefreshedEvent, sessionID, data)
}
