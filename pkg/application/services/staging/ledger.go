package staging

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

// UpsertRequest describes one staging addition
type UpsertRequest struct {
	DetailID     entities.DetailID
	Delta        entities.Quantity
	UnitPrice    decimal.Decimal
	Mode         entities.EntryMode
	SourceLineID string
	Origin       entities.StagingOrigin
}

// Ledger holds the staged lines of one transfer-in session in insertion
// order. It performs no bounds checking: callers reconcile before mutating.
// A Ledger is owned by a single session and is not safe for concurrent use.
type Ledger struct {
	entries map[entities.EntryKey]*entities.StagedLine
	order   []entities.EntryKey
	seq     map[entities.DetailID]int
	now     func() time.Time
}

// NewLedger creates a new empty staging ledger
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[entities.EntryKey]*entities.StagedLine),
		seq:     make(map[entities.DetailID]int),
		now:     time.Now,
	}
}

// NextKey returns the key an Upsert with the given detail and mode would
// touch, and whether that entry already exists
func (l *Ledger) NextKey(detailID entities.DetailID, mode entities.EntryMode) (entities.EntryKey, bool) {
	if mode == entities.Combine {
		if existing, ok := l.firstFor(detailID); ok {
			return existing.Key, true
		}
		key := entities.CombinedKey(detailID)
		if _, taken := l.entries[key]; !taken {
			return key, false
		}
	}
	key, _ := l.nextSeparateKey(detailID)
	return key, false
}

func (l *Ledger) nextSeparateKey(detailID entities.DetailID) (entities.EntryKey, int) {
	n := l.seq[detailID] + 1
	for {
		key := entities.SeparateKey(detailID, n)
		if _, taken := l.entries[key]; !taken {
			return key, n
		}
		n++
	}
}

// Upsert adds req.Delta to the combine-mode entry of the detail, or creates
// a new entry. It returns the key of the entry that was touched.
func (l *Ledger) Upsert(req UpsertRequest) entities.EntryKey {
	key, exists := l.NextKey(req.DetailID, req.Mode)
	if exists {
		l.entries[key].ProposedQuantity += req.Delta
		return key
	}

	if key != entities.CombinedKey(req.DetailID) {
		_, n := l.nextSeparateKey(req.DetailID)
		l.seq[req.DetailID] = n
	}

	l.entries[key] = &entities.StagedLine{
		Key:                key,
		DetailID:           req.DetailID,
		ProposedQuantity:   req.Delta,
		UnitTransferPrice:  req.UnitPrice,
		OriginSourceLineID: req.SourceLineID,
		Origin:             req.Origin,
		StagedAt:           l.now(),
	}
	l.order = append(l.order, key)
	return key
}

// SetQuantity overwrites the proposed quantity of an existing entry
func (l *Ledger) SetQuantity(key entities.EntryKey, quantity entities.Quantity) error {
	entry, ok := l.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", entities.ErrUnknownEntry, key)
	}
	entry.ProposedQuantity = quantity
	return nil
}

// SetUnitPrice overwrites the unit transfer price of an existing entry
func (l *Ledger) SetUnitPrice(key entities.EntryKey, price decimal.Decimal) error {
	entry, ok := l.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", entities.ErrUnknownEntry, key)
	}
	entry.UnitTransferPrice = price
	return nil
}

// Remove deletes an entry, releasing its quantity
func (l *Ledger) Remove(key entities.EntryKey) error {
	if _, ok := l.entries[key]; !ok {
		return fmt.Errorf("%w: %s", entities.ErrUnknownEntry, key)
	}
	delete(l.entries, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a copy of the entry with the given key
func (l *Ledger) Get(key entities.EntryKey) (entities.StagedLine, bool) {
	entry, ok := l.entries[key]
	if !ok {
		return entities.StagedLine{}, false
	}
	return *entry, true
}

// Has checks if an entry exists
func (l *Ledger) Has(key entities.EntryKey) bool {
	_, ok := l.entries[key]
	return ok
}

// CurrentQuantity returns the proposed quantity of an entry, 0 if absent
func (l *Ledger) CurrentQuantity(key entities.EntryKey) entities.Quantity {
	if entry, ok := l.entries[key]; ok {
		return entry.ProposedQuantity
	}
	return 0
}

// TotalFor sums the proposed quantity of every entry for a detail,
// regardless of entry mode
func (l *Ledger) TotalFor(detailID entities.DetailID) entities.Quantity {
	var total entities.Quantity
	for _, entry := range l.entries {
		if entry.DetailID == detailID {
			total += entry.ProposedQuantity
		}
	}
	return total
}

// Total sums the proposed quantity across all entries
func (l *Ledger) Total() entities.Quantity {
	var total entities.Quantity
	for _, entry := range l.entries {
		total += entry.ProposedQuantity
	}
	return total
}

// Entries returns copies of all entries in insertion order
func (l *Ledger) Entries() []entities.StagedLine {
	lines := make([]entities.StagedLine, 0, len(l.order))
	for _, key := range l.order {
		lines = append(lines, *l.entries[key])
	}
	return lines
}

// EntriesFor returns copies of the entries of one detail in insertion order
func (l *Ledger) EntriesFor(detailID entities.DetailID) []entities.StagedLine {
	var lines []entities.StagedLine
	for _, key := range l.order {
		if entry := l.entries[key]; entry.DetailID == detailID {
			lines = append(lines, *entry)
		}
	}
	return lines
}

// Details returns the distinct details staged, in first-staged order
func (l *Ledger) Details() []entities.DetailID {
	seen := make(map[entities.DetailID]bool)
	var details []entities.DetailID
	for _, key := range l.order {
		detailID := l.entries[key].DetailID
		if !seen[detailID] {
			seen[detailID] = true
			details = append(details, detailID)
		}
	}
	return details
}

// Size returns the number of entries
func (l *Ledger) Size() int {
	return len(l.entries)
}

// Clear discards every entry
func (l *Ledger) Clear() {
	l.entries = make(map[entities.EntryKey]*entities.StagedLine)
	l.order = nil
	l.seq = make(map[entities.DetailID]int)
}

func (l *Ledger) firstFor(detailID entities.DetailID) (*entities.StagedLine, bool) {
	for _, key := range l.order {
		if entry := l.entries[key]; entry.DetailID == detailID {
			return entry, true
		}
	}
	return nil, false
}

// String returns a string representation of the ledger for debugging
func (l *Ledger) String() string {
	if len(l.entries) == 0 {
		return "Ledger{empty}"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ledger{%d entries:\n", len(l.entries))
	for _, key := range l.order {
		entry := l.entries[key]
		fmt.Fprintf(&b, "  %s: detail=%s, qty=%d, price=%s\n",
			key, entry.DetailID, entry.ProposedQuantity, entry.UnitTransferPrice.StringFixed(2))
	}
	b.WriteString("}")
	return b.String()
}
