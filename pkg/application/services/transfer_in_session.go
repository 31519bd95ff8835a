package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/application/services/assembly"
	"github.com/vsinha/stocktransfer/pkg/application/services/reconcile"
	"github.com/vsinha/stocktransfer/pkg/application/services/staging"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/domain/repositories"
	domainservices "github.com/vsinha/stocktransfer/pkg/domain/services"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/events"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/logging"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/metrics"
	"go.uber.org/zap"
)

// ErrRefreshRequired is returned when a session tries to assemble after a
// commit was rejected as stale and the source lines were not re-read
var ErrRefreshRequired = errors.New("source lines are stale, refresh before committing")

// SessionConfig identifies the transfer a session receives
type SessionConfig struct {
	TransferOutID string
	Location      string
}

// SessionOption customizes a TransferInSession
type SessionOption func(*TransferInSession)

func WithSessionID(id string) SessionOption {
	return func(s *TransferInSession) { s.id = id }
}

func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *TransferInSession) { s.log = logging.OrNop(logger) }
}

func WithEventStore(store events.EventStore) SessionOption {
	return func(s *TransferInSession) { s.events = store }
}

func WithMetrics(recorder *metrics.Recorder) SessionOption {
	return func(s *TransferInSession) { s.metrics = recorder }
}

func WithResolver(resolver domainservices.Resolver) SessionOption {
	return func(s *TransferInSession) { s.resolver = resolver }
}

// WithTaxTables makes the repository the authority for bracket tables: every
// source line's table is re-read from it by id on open and on Refresh.
func WithTaxTables(tables repositories.TaxTableRepository) SessionOption {
	return func(s *TransferInSession) { s.tables = tables }
}

// TransferInSession is the workflow around one receiving screen: it owns one
// staging ledger for one transfer-out at one location and reconciles every
// scan, search selection, lens lookup and cell edit against the source lines.
// A session is not safe for concurrent use.
type TransferInSession struct {
	id       string
	config   SessionConfig
	repo     repositories.SourceLineRepository
	tables   repositories.TaxTableRepository
	sources  []entities.SourceTransferLine
	byDetail map[entities.DetailID]int

	ledger     *staging.Ledger
	reconciler *reconcile.Reconciler
	resolver   domainservices.Resolver
	assembler  *assembly.Assembler
	stale      bool

	events  events.EventStore
	metrics *metrics.Recorder
	log     *zap.Logger
}

// NewTransferInSession reads the source lines of the configured transfer and
// returns an empty session over them
func NewTransferInSession(
	ctx context.Context,
	config SessionConfig,
	repo repositories.SourceLineRepository,
	opts ...SessionOption,
) (*TransferInSession, error) {
	s := &TransferInSession{
		id:         uuid.NewString(),
		config:     config,
		repo:       repo,
		ledger:     staging.NewLedger(),
		reconciler: reconcile.NewReconciler(),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = domainservices.NewCachedTaxResolver(domainservices.NewTaxResolver())
	}
	s.assembler = assembly.NewAssembler(s.resolver)
	s.log = s.log.Named("session").With(
		zap.String("session_id", s.id),
		zap.String("transfer_out_id", config.TransferOutID),
		zap.String("location", config.Location),
	)

	if err := s.loadSources(ctx); err != nil {
		return nil, err
	}
	s.log.Info("transfer-in session opened", zap.Int("source_lines", len(s.sources)))
	return s, nil
}

func (s *TransferInSession) loadSources(ctx context.Context) error {
	lines, err := s.repo.GetSourceLines(ctx, s.config.TransferOutID, s.config.Location)
	if err != nil {
		return fmt.Errorf("failed to read source lines of %s: %w", s.config.TransferOutID, err)
	}
	if len(lines) == 0 {
		return fmt.Errorf("no source lines for transfer %s at %s", s.config.TransferOutID, s.config.Location)
	}

	if err := s.attachTaxTables(ctx, lines); err != nil {
		return err
	}

	byDetail := make(map[entities.DetailID]int, len(lines))
	for i, line := range lines {
		if _, dup := byDetail[line.DetailID]; dup {
			return fmt.Errorf("detail %s appears on more than one source line of transfer %s", line.DetailID, s.config.TransferOutID)
		}
		byDetail[line.DetailID] = i
	}
	s.sources = lines
	s.byDetail = byDetail
	return nil
}

// attachTaxTables swaps each line's table for the repository's copy. A table
// the repository does not know keeps the line's own table, so a missing one
// still surfaces as entities.ErrUnknownBracketTable at assembly.
func (s *TransferInSession) attachTaxTables(ctx context.Context, lines []entities.SourceTransferLine) error {
	if s.tables == nil {
		return nil
	}
	found := make(map[string]*entities.TaxBracketTable)
	for i := range lines {
		if lines[i].TaxTable == nil || lines[i].TaxTable.ID == "" {
			continue
		}
		id := lines[i].TaxTable.ID
		table, seen := found[id]
		if !seen {
			var err error
			table, err = s.tables.GetTaxTable(ctx, id)
			switch {
			case errors.Is(err, entities.ErrUnknownBracketTable):
				s.log.Warn("tax table not in repository", zap.String("tax_table_id", id))
				table = nil
			case err != nil:
				return fmt.Errorf("failed to read tax table %s: %w", id, err)
			}
			found[id] = table
		}
		if table != nil {
			lines[i].TaxTable = table
		}
	}
	return nil
}

func (s *TransferInSession) ID() string { return s.id }

func (s *TransferInSession) TransferOutID() string { return s.config.TransferOutID }

func (s *TransferInSession) Location() string { return s.config.Location }

// Sources returns a copy of the source lines the session reconciles against
func (s *TransferInSession) Sources() []entities.SourceTransferLine {
	result := make([]entities.SourceTransferLine, len(s.sources))
	copy(result, s.sources)
	return result
}

// Source returns the source line of a detail
func (s *TransferInSession) Source(detailID entities.DetailID) (entities.SourceTransferLine, error) {
	index, ok := s.byDetail[detailID]
	if !ok {
		return entities.SourceTransferLine{}, fmt.Errorf("%w: %s", entities.ErrUnknownDetail, detailID)
	}
	return s.sources[index], nil
}

// Scan stages one unit of the source line carrying barcode
func (s *TransferInSession) Scan(barcode string, mode entities.EntryMode) (reconcile.Decision, error) {
	for _, source := range s.sources {
		if source.Barcode != "" && source.Barcode == barcode {
			return s.stage(source, 1, mode, entities.OriginScan)
		}
	}
	return reconcile.Decision{}, fmt.Errorf("%w: no line with barcode %s", entities.ErrUnknownDetail, barcode)
}

// Select stages quantity units of a detail picked from a catalog search
func (s *TransferInSession) Select(detailID entities.DetailID, quantity entities.Quantity, mode entities.EntryMode) (reconcile.Decision, error) {
	source, err := s.Source(detailID)
	if err != nil {
		return reconcile.Decision{}, err
	}
	return s.stage(source, quantity, mode, entities.OriginSearch)
}

// StageLensPower stages quantity units of the lens line matching power. When
// several lens lines share the power, the first one with quantity left wins.
func (s *TransferInSession) StageLensPower(power entities.LensPower, quantity entities.Quantity, mode entities.EntryMode) (reconcile.Decision, error) {
	var match *entities.SourceTransferLine
	for i := range s.sources {
		source := &s.sources[i]
		if source.Kind != entities.KindLens || source.LensPower == nil || !source.LensPower.Matches(power) {
			continue
		}
		if match == nil {
			match = source
		}
		if s.reconciler.Remaining(*source, s.ledger) > 0 {
			match = source
			break
		}
	}
	if match == nil {
		return reconcile.Decision{}, fmt.Errorf("%w: no lens with power %s", entities.ErrUnknownDetail, power)
	}
	return s.stage(*match, quantity, mode, entities.OriginLensPower)
}

func (s *TransferInSession) stage(
	source entities.SourceTransferLine,
	quantity entities.Quantity,
	mode entities.EntryMode,
	origin entities.StagingOrigin,
) (reconcile.Decision, error) {
	decision, err := s.reconciler.StageAddition(source, s.ledger, staging.UpsertRequest{
		DetailID:     source.DetailID,
		Delta:        quantity,
		UnitPrice:    source.UnitTransferPrice,
		Mode:         mode,
		SourceLineID: source.ID,
		Origin:       origin,
	})
	if err != nil {
		return decision, err
	}

	s.metrics.ObserveDecision(origin.String(), decision.Accepted)
	if !decision.Accepted {
		s.reject(decision, origin)
		return decision, nil
	}

	staged := s.ledger.CurrentQuantity(decision.Key)
	s.metrics.SetStaged(int64(s.ledger.Total()))
	s.log.Debug("line staged",
		zap.String("key", string(decision.Key)),
		zap.String("detail_id", string(source.DetailID)),
		zap.Int64("delta", int64(quantity)),
		zap.Int64("quantity", int64(staged)),
		zap.Stringer("origin", origin),
	)
	s.publish(events.NewLineStagedEvent(s.id, events.LineStaged{
		Key:      decision.Key,
		DetailID: source.DetailID,
		Delta:    quantity,
		Quantity: staged,
		Mode:     mode,
		Origin:   origin,
	}))
	return decision, nil
}

func (s *TransferInSession) reject(decision reconcile.Decision, origin entities.StagingOrigin) {
	reason := decision.Err()
	s.log.Info("staging rejected",
		zap.String("key", string(decision.Key)),
		zap.String("detail_id", string(decision.DetailID)),
		zap.Int64("requested", int64(decision.Requested)),
		zap.Int64("allowed_max", int64(decision.AllowedMax)),
		zap.Error(reason),
	)
	s.publish(events.NewStagingRejectedEvent(s.id, events.StagingRejected{
		Key:        decision.Key,
		DetailID:   decision.DetailID,
		Requested:  decision.Requested,
		AllowedMax: decision.AllowedMax,
		Origin:     origin,
		Reason:     reason.Error(),
	}))
}

// EditQuantity sets a staged entry to an absolute quantity. Zero releases
// the entry.
func (s *TransferInSession) EditQuantity(key entities.EntryKey, quantity entities.Quantity) (reconcile.Decision, error) {
	entry, ok := s.ledger.Get(key)
	if !ok {
		return reconcile.Decision{}, fmt.Errorf("%w: %s", entities.ErrUnknownEntry, key)
	}
	source, err := s.Source(entry.DetailID)
	if err != nil {
		return reconcile.Decision{}, err
	}

	decision, err := s.reconciler.CheckAndReserve(source, s.ledger, key, quantity)
	if err != nil {
		return decision, err
	}

	s.metrics.ObserveDecision(entities.OriginManual.String(), decision.Accepted)
	if !decision.Accepted {
		s.reject(decision, entities.OriginManual)
		return decision, nil
	}

	s.metrics.SetStaged(int64(s.ledger.Total()))
	s.log.Debug("quantity edited",
		zap.String("key", string(key)),
		zap.Int64("old_quantity", int64(entry.ProposedQuantity)),
		zap.Int64("new_quantity", int64(quantity)),
	)
	s.publish(events.NewQuantityEditedEvent(s.id, events.QuantityEdited{
		Key:         key,
		DetailID:    entry.DetailID,
		OldQuantity: entry.ProposedQuantity,
		NewQuantity: quantity,
	}))
	if quantity == 0 {
		s.publish(events.NewLineRemovedEvent(s.id, entry))
	}
	return decision, nil
}

// EditPrice changes the unit transfer price of a staged entry. The price may
// not be negative, nor exceed the retail reference price when one is set.
func (s *TransferInSession) EditPrice(key entities.EntryKey, price decimal.Decimal) error {
	entry, ok := s.ledger.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", entities.ErrUnknownEntry, key)
	}
	source, err := s.Source(entry.DetailID)
	if err != nil {
		return err
	}

	if price.IsNegative() {
		return fmt.Errorf("%w: %s is negative", entities.ErrPriceOutOfBounds, price)
	}
	if source.RetailReferencePrice.IsPositive() && price.GreaterThan(source.RetailReferencePrice) {
		return fmt.Errorf("%w: %s exceeds retail reference price %s",
			entities.ErrPriceOutOfBounds, price, source.RetailReferencePrice)
	}

	if err := s.ledger.SetUnitPrice(key, price); err != nil {
		return err
	}
	s.publish(events.NewPriceEditedEvent(s.id, events.PriceEdited{
		Key:      key,
		DetailID: entry.DetailID,
		OldPrice: entry.UnitTransferPrice,
		NewPrice: price,
	}))
	return nil
}

// Remove deletes a staged entry
func (s *TransferInSession) Remove(key entities.EntryKey) error {
	entry, ok := s.ledger.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", entities.ErrUnknownEntry, key)
	}
	if err := s.ledger.Remove(key); err != nil {
		return err
	}
	s.metrics.SetStaged(int64(s.ledger.Total()))
	s.publish(events.NewLineRemovedEvent(s.id, entry))
	return nil
}

// Remaining returns how many more units of a detail can be staged
func (s *TransferInSession) Remaining(detailID entities.DetailID) (entities.Quantity, error) {
	source, err := s.Source(detailID)
	if err != nil {
		return 0, err
	}
	return s.reconciler.Remaining(source, s.ledger), nil
}

// Lines returns the staged lines in staging order
func (s *TransferInSession) Lines() []entities.StagedLine {
	return s.ledger.Entries()
}

// Staged returns the total staged quantity of a detail
func (s *TransferInSession) Staged(detailID entities.DetailID) entities.Quantity {
	return s.ledger.TotalFor(detailID)
}

// Violations lists details whose staged total no longer fits the source
// lines, which can happen after Refresh picks up another session's commit
func (s *TransferInSession) Violations() []reconcile.Violation {
	sources := make(map[entities.DetailID]entities.SourceTransferLine, len(s.sources))
	for _, source := range s.sources {
		sources[source.DetailID] = source
	}
	return reconcile.Verify(sources, s.ledger)
}

// Stale reports whether the last commit was rejected as stale
func (s *TransferInSession) Stale() bool { return s.stale }

// Assemble builds the commit payload for everything staged
func (s *TransferInSession) Assemble() (*dto.CommitPayload, error) {
	if s.stale {
		return nil, ErrRefreshRequired
	}

	payload, err := s.assembler.Assemble(assembly.Request{
		SessionID:     s.id,
		TransferOutID: s.config.TransferOutID,
		Location:      s.config.Location,
		Entries:       s.ledger.Entries(),
		Sources:       s.sources,
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.NewBatchAssembledEvent(s.id, events.BatchAssembled{
		BatchID:       payload.BatchID,
		Lines:         len(payload.Lines),
		TotalQuantity: payload.TotalQuantity,
		TotalAmount:   payload.TotalAmount,
	}))
	return payload, nil
}

// Commit assembles and hands the batch to committer. On success the ledger
// is discarded and the source lines are re-read. When the committer reports
// entities.ErrStaleSourceLine the ledger is kept and Refresh must be called
// before the next commit.
func (s *TransferInSession) Commit(ctx context.Context, committer repositories.TransferCommitter) (*dto.CommitPayload, error) {
	payload, err := s.Assemble()
	if err != nil {
		s.metrics.ObserveCommit(metrics.CommitResultRejected)
		return nil, err
	}

	if err := committer.CommitTransferIn(ctx, payload); err != nil {
		if errors.Is(err, entities.ErrStaleSourceLine) {
			s.stale = true
			s.metrics.ObserveCommit(metrics.CommitResultStale)
			s.log.Warn("commit conflicted", zap.String("batch_id", payload.BatchID), zap.Error(err))
			s.publish(events.NewBatchConflictedEvent(s.id, payload.BatchID, err))
			return nil, err
		}
		s.metrics.ObserveCommit(metrics.CommitResultError)
		s.log.Error("commit failed", zap.String("batch_id", payload.BatchID), zap.Error(err))
		return nil, fmt.Errorf("failed to commit batch %s: %w", payload.BatchID, err)
	}

	s.metrics.ObserveCommit(metrics.CommitResultOK)
	s.log.Info("batch committed",
		zap.String("batch_id", payload.BatchID),
		zap.Int("lines", len(payload.Lines)),
		zap.Int64("total_quantity", int64(payload.TotalQuantity)),
		zap.String("total_amount", payload.TotalAmount.StringFixed(2)),
	)
	s.publish(events.NewBatchCommittedEvent(s.id, events.BatchCommitted{
		BatchID:       payload.BatchID,
		TotalQuantity: payload.TotalQuantity,
	}))

	s.ledger.Clear()
	s.metrics.SetStaged(0)
	if err := s.Refresh(ctx); err != nil {
		return payload, fmt.Errorf("batch %s committed but source lines could not be re-read: %w", payload.BatchID, err)
	}
	return payload, nil
}

// Refresh re-reads the source lines and their tax tables and drops memoized
// tax results. Staged lines are kept; use Violations to find entries that no
// longer fit.
func (s *TransferInSession) Refresh(ctx context.Context) error {
	if err := s.loadSources(ctx); err != nil {
		return err
	}
	if cache, ok := s.resolver.(interface{ Reset() }); ok {
		cache.Reset()
	}
	s.stale = false
	s.publish(events.NewSourceRefreshedEvent(s.id, events.SourceRefreshed{
		TransferOutID: s.config.TransferOutID,
		Location:      s.config.Location,
		Lines:         len(s.sources),
	}))
	return nil
}

func (s *TransferInSession) publish(event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendEvent(s.id, event); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", event.Type()), zap.Error(err))
	}
}
