// Package sqlstore persists source transfer lines, bracket tables and
// committed transfer-in batches with gorm on SQLite.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/domain/repositories"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Store is a gorm-backed source line repository, tax table repository and
// transfer committer
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

var (
	_ repositories.SourceLineRepository = (*Store)(nil)
	_ repositories.TaxTableRepository   = (*Store)(nil)
	_ repositories.TransferCommitter    = (*Store)(nil)
)

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. An empty path opens a private in-memory database.
func Open(path string, log *zap.Logger) (*Store, error) {
	log = logging.OrNop(log)
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(log, gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a second connection to :memory: would see an empty database
	sqlDB.SetMaxOpenConns(1)

	return New(db, log)
}

// New wraps an existing gorm connection and migrates the schema
func New(db *gorm.DB, log *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(
		&sourceLineModel{},
		&taxBracketModel{},
		&transferInBatchModel{},
		&transferInLineModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db, log: logging.OrNop(log).Named("sqlstore"), now: time.Now}, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// reloadSourceLine refreshes the descriptive columns of a line that is
// already stored. quantity_confirmed_in only moves through CommitTransferIn.
var reloadSourceLine = clause.OnConflict{
	Columns: []clause.Column{{Name: "id"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"transfer_out_id", "location", "position", "detail_id", "barcode",
		"description", "kind", "has_lens_power", "lens_sphere", "lens_cylinder",
		"lens_axis", "lens_addition", "quantity_authorized", "unit_transfer_price",
		"retail_reference_price", "tax_table_id", "in_jurisdiction", "updated_at",
	}),
}

// LoadSourceLines validates and upserts source lines by id. Bracket tables
// referenced by the lines are stored as well. Reloading a stored line keeps
// the confirmed-in quantity earlier commits wrote.
func (s *Store) LoadSourceLines(lines []*entities.SourceTransferLine) error {
	tables := make(map[string]*entities.TaxBracketTable)
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
		if line.TaxTable != nil && len(line.TaxTable.Brackets) > 0 {
			tables[line.TaxTable.ID] = line.TaxTable
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := saveTable(tx, table); err != nil {
				return err
			}
		}
		for i, line := range lines {
			model := toSourceLineModel(line, i)
			if err := tx.Clauses(reloadSourceLine).Create(&model).Error; err != nil {
				return fmt.Errorf("failed to save source line %s: %w", line.ID, err)
			}
		}
		return nil
	})
}

// LoadTaxTables validates and replaces bracket tables by id
func (s *Store) LoadTaxTables(tables []*entities.TaxBracketTable) error {
	for _, table := range tables {
		if err := table.Validate(); err != nil {
			return fmt.Errorf("tax table %s: %w", table.ID, err)
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := saveTable(tx, table); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveTable(tx *gorm.DB, table *entities.TaxBracketTable) error {
	if err := tx.Where("table_id = ?", table.ID).Delete(&taxBracketModel{}).Error; err != nil {
		return fmt.Errorf("failed to replace tax table %s: %w", table.ID, err)
	}
	models := toBracketModels(table)
	if err := tx.Create(&models).Error; err != nil {
		return fmt.Errorf("failed to save tax table %s: %w", table.ID, err)
	}
	return nil
}

// GetTaxTable returns the brackets of one table in slab order
func (s *Store) GetTaxTable(ctx context.Context, tableID string) (*entities.TaxBracketTable, error) {
	var models []taxBracketModel
	err := s.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Order("position").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: %s", entities.ErrUnknownBracketTable, tableID)
	}
	return toTable(tableID, models), nil
}

// GetSourceLines returns the lines of a transfer-out for a receiving location
// in load order. An empty location matches every location. A line whose
// bracket table is missing carries an empty table so tax resolution reports
// it instead of silently applying no tax.
func (s *Store) GetSourceLines(ctx context.Context, transferOutID, location string) ([]entities.SourceTransferLine, error) {
	query := s.db.WithContext(ctx).Where("transfer_out_id = ?", transferOutID)
	if location != "" {
		query = query.Where("location = ?", location)
	}

	var models []sourceLineModel
	if err := query.Order("position").Order("id").Find(&models).Error; err != nil {
		return nil, err
	}

	tableIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range models {
		if m.TaxTableID != "" && !seen[m.TaxTableID] {
			seen[m.TaxTableID] = true
			tableIDs = append(tableIDs, m.TaxTableID)
		}
	}

	tables := make(map[string]*entities.TaxBracketTable, len(tableIDs))
	if len(tableIDs) > 0 {
		var brackets []taxBracketModel
		err := s.db.WithContext(ctx).
			Where("table_id IN ?", tableIDs).
			Order("table_id").Order("position").
			Find(&brackets).Error
		if err != nil {
			return nil, err
		}
		grouped := make(map[string][]taxBracketModel)
		for _, b := range brackets {
			grouped[b.TableID] = append(grouped[b.TableID], b)
		}
		for _, id := range tableIDs {
			tables[id] = toTable(id, grouped[id])
		}
	}

	lines := make([]entities.SourceTransferLine, 0, len(models))
	for _, m := range models {
		line, err := m.toEntity(tables[m.TaxTableID])
		if err != nil {
			return nil, fmt.Errorf("source line %s: %w", m.ID, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// CommitTransferIn applies a batch in one transaction. Every observed source
// line is advanced with a conditional update on the confirmed-in quantity the
// batch was reconciled against, so a concurrent commit rolls the whole batch
// back with entities.ErrStaleSourceLine.
func (s *Store) CommitTransferIn(ctx context.Context, payload *dto.CommitPayload) error {
	if payload == nil || len(payload.Observed) == 0 {
		return fmt.Errorf("%w: empty commit payload", entities.ErrInvalidQuantity)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&transferInBatchModel{}).Where("batch_id = ?", payload.BatchID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", repositories.ErrBatchAlreadyCommitted, payload.BatchID)
		}

		for _, observed := range payload.Observed {
			result := tx.Model(&sourceLineModel{}).
				Where("id = ? AND quantity_confirmed_in = ?", observed.SourceLineID, int64(observed.QuantityConfirmedIn)).
				Where("quantity_confirmed_in + ? <= quantity_authorized", int64(observed.QuantityReceived)).
				Update("quantity_confirmed_in", gorm.Expr("quantity_confirmed_in + ?", int64(observed.QuantityReceived)))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return rejection(tx, observed)
			}
		}

		batch := toBatchModel(payload, s.now())
		return tx.Create(&batch).Error
	})
	if err != nil {
		s.log.Warn("transfer-in commit rejected",
			zap.String("batch_id", payload.BatchID),
			zap.Error(err),
		)
		return err
	}

	s.log.Info("transfer-in committed",
		zap.String("batch_id", payload.BatchID),
		zap.String("transfer_out_id", payload.TransferOutID),
		zap.Int64("total_quantity", int64(payload.TotalQuantity)),
	)
	return nil
}

func rejection(tx *gorm.DB, observed dto.ObservedSource) error {
	var line sourceLineModel
	err := tx.Where("id = ?", observed.SourceLineID).First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: source line %s no longer exists", entities.ErrStaleSourceLine, observed.SourceLineID)
	}
	if err != nil {
		return err
	}
	if entities.Quantity(line.QuantityConfirmedIn) != observed.QuantityConfirmedIn {
		return fmt.Errorf("%w: source line %s confirmed %d, batch observed %d",
			entities.ErrStaleSourceLine, line.ID, line.QuantityConfirmedIn, observed.QuantityConfirmedIn)
	}
	outstanding := entities.Quantity(line.QuantityAuthorized - line.QuantityConfirmedIn)
	if outstanding < 0 {
		outstanding = 0
	}
	return &entities.AllocationError{
		DetailID:   entities.DetailID(line.DetailID),
		Requested:  observed.QuantityReceived,
		AllowedMax: outstanding,
		Err:        entities.ErrOverAllocation,
	}
}

// GetBatch returns a committed batch with its lines
func (s *Store) GetBatch(ctx context.Context, batchID string) (*dto.CommitPayload, error) {
	var batch transferInBatchModel
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("batch_id = ?", batchID).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("batch not found: %s", batchID)
	}
	if err != nil {
		return nil, err
	}

	payload := &dto.CommitPayload{
		BatchID:       batch.BatchID,
		SessionID:     batch.SessionID,
		TransferOutID: batch.TransferOutID,
		Location:      batch.Location,
		TotalQuantity: entities.Quantity(batch.TotalQuantity),
		TotalTax:      batch.TotalTax,
		TotalAmount:   batch.TotalAmount,
		AssembledAt:   batch.AssembledAt,
	}
	for _, line := range batch.Lines {
		payload.Lines = append(payload.Lines, dto.CommitLine{
			EntryKey:     entities.EntryKey(line.EntryKey),
			SourceLineID: line.SourceLineID,
			DetailID:     entities.DetailID(line.DetailID),
			Quantity:     entities.Quantity(line.Quantity),
			UnitPrice:    line.UnitPrice,
			TaxBracketID: line.TaxBracketID,
			TaxPercent:   line.TaxPercent,
			TaxAmount:    line.TaxAmount,
			LineTax:      line.LineTax,
			LineTotal:    line.LineTotal,
		})
	}
	return payload, nil
}
