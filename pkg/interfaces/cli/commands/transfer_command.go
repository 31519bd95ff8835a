package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/application/services"
	"github.com/vsinha/stocktransfer/pkg/application/services/assembly"
	"github.com/vsinha/stocktransfer/pkg/application/services/reconcile"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
	"github.com/vsinha/stocktransfer/pkg/domain/repositories"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/events"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/metrics"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/repositories/sqlstore"
	"github.com/vsinha/stocktransfer/pkg/interfaces/cli/output"
	"go.uber.org/zap"
)

// Config holds configuration for the transfer command
type Config struct {
	ScenarioDir   string
	SourcesFile   string
	BracketsFile  string
	ActionsFile   string
	TransferOutID string
	Location      string
	Mode          entities.EntryMode
	DBPath        string
	Commit        bool
	OutputDir     string
	Format        string
	Verbose       bool
	Help          bool
}

// TransferCommand replays a scripted receiving session against a transfer
type TransferCommand struct {
	config  Config
	log     *zap.Logger
	metrics *metrics.Recorder
	out     io.Writer
}

// NewTransferCommand creates a new transfer command with the given configuration
func NewTransferCommand(config Config, log *zap.Logger, recorder *metrics.Recorder) *TransferCommand {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransferCommand{
		config:  config,
		log:     log,
		metrics: recorder,
		out:     os.Stdout,
	}
}

// SetOutput redirects the report, stdout by default
func (c *TransferCommand) SetOutput(w io.Writer) {
	c.out = w
}

type backend struct {
	lines     repositories.SourceLineRepository
	tables    repositories.TaxTableRepository
	committer repositories.TransferCommitter
	close     func() error
}

// Execute runs the transfer command
func (c *TransferCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}

	if err := c.validateInputs(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	files, err := c.resolveInputFiles()
	if err != nil {
		return fmt.Errorf("failed to resolve input files: %w", err)
	}
	c.log.Debug("input files resolved",
		zap.String("sources", files["Sources"]),
		zap.String("brackets", files["Brackets"]),
		zap.String("actions", files["Actions"]),
	)

	loader := csv.NewLoader()
	tables, err := loader.LoadTaxTables(files["Brackets"])
	if err != nil {
		return fmt.Errorf("error loading tax brackets: %w", err)
	}
	lines, err := loader.LoadSourceLines(files["Sources"], tables)
	if err != nil {
		return fmt.Errorf("error loading source lines: %w", err)
	}
	actions, err := loader.LoadActions(files["Actions"])
	if err != nil {
		return fmt.Errorf("error loading actions: %w", err)
	}
	c.log.Info("data loaded",
		zap.Int("tax_tables", len(tables)),
		zap.Int("source_lines", len(lines)),
		zap.Int("actions", len(actions)),
	)

	store, err := c.openBackend()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			c.log.Warn("failed to close store", zap.Error(err))
		}
	}()

	if err := store.tables.LoadTaxTables(tables); err != nil {
		return fmt.Errorf("failed to load tax tables into store: %w", err)
	}
	if err := store.lines.LoadSourceLines(lines); err != nil {
		return fmt.Errorf("failed to load source lines into store: %w", err)
	}

	transferOutID, location := c.config.TransferOutID, c.config.Location
	if transferOutID == "" {
		transferOutID = lines[0].TransferOutID
	}
	if location == "" {
		location = lines[0].Location
	}

	session, err := services.NewTransferInSession(ctx, services.SessionConfig{
		TransferOutID: transferOutID,
		Location:      location,
	}, store.lines,
		services.WithLogger(c.log),
		services.WithMetrics(c.metrics),
		services.WithTaxTables(store.tables),
		services.WithEventStore(events.NewInMemoryEventStore().WithLogger(c.log)),
	)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	startTime := time.Now()
	outcomes := make([]dto.ActionOutcome, 0, len(actions))
	for _, action := range actions {
		outcomes = append(outcomes, c.apply(session, action))
	}

	report := &output.Report{
		SessionID:     session.ID(),
		TransferOutID: transferOutID,
		Location:      location,
		Outcomes:      outcomes,
	}

	var batchErr error
	if c.config.Commit {
		report.Payload, batchErr = session.Commit(ctx, store.committer)
		report.Committed = batchErr == nil
	} else {
		report.Payload, batchErr = session.Assemble()
	}
	report.ReplayTime = time.Since(startTime)

	if errors.Is(batchErr, assembly.ErrEmptyBatch) {
		batchErr = nil
	}

	outputConfig := output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Writer:    c.out,
	}
	if err := output.Generate(report, outputConfig); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}

	if batchErr != nil {
		return fmt.Errorf("batch not accepted: %w", batchErr)
	}
	return nil
}

func (c *TransferCommand) openBackend() (*backend, error) {
	if c.config.DBPath == "" {
		lines := memory.NewSourceLineRepository()
		return &backend{
			lines:     lines,
			tables:    memory.NewTaxTableRepository(),
			committer: lines,
			close:     func() error { return nil },
		}, nil
	}

	store, err := sqlstore.Open(c.config.DBPath, c.log)
	if err != nil {
		return nil, err
	}
	return &backend{lines: store, tables: store, committer: store, close: store.Close}, nil
}

// apply replays one action and records the outcome. Programming errors such
// as an unknown detail are reported as rejected outcomes.
func (c *TransferCommand) apply(session *services.TransferInSession, action dto.StagingAction) dto.ActionOutcome {
	outcome := dto.ActionOutcome{
		Action:   action,
		Kind:     action.Kind,
		Target:   action.Target,
		Quantity: action.Quantity,
	}

	mode := c.config.Mode
	if action.Mode != nil {
		mode = *action.Mode
	}

	var (
		decision reconcile.Decision
		err      error
	)
	switch action.Kind {
	case dto.ActionScan:
		decision, err = session.Scan(action.Target, mode)
	case dto.ActionSelect:
		decision, err = session.Select(entities.DetailID(action.Target), action.Quantity, mode)
	case dto.ActionLens:
		var power entities.LensPower
		power, err = entities.ParseLensPower(action.Target)
		if err == nil {
			decision, err = session.StageLensPower(power, action.Quantity, mode)
		}
	case dto.ActionEdit:
		decision, err = session.EditQuantity(entities.EntryKey(action.Target), action.Quantity)
	case dto.ActionPrice:
		outcome.Key = entities.EntryKey(action.Target)
		err = session.EditPrice(outcome.Key, action.Price)
		decision = reconcile.Decision{Accepted: err == nil}
	case dto.ActionRemove:
		outcome.Key = entities.EntryKey(action.Target)
		err = session.Remove(outcome.Key)
		decision = reconcile.Decision{Accepted: err == nil}
	default:
		err = fmt.Errorf("unknown action: %s", action.Kind)
	}

	if err != nil {
		outcome.Message = err.Error()
		return outcome
	}

	if decision.Key != "" {
		outcome.Key = decision.Key
	}
	outcome.Accepted = decision.Accepted
	outcome.AllowedMax = decision.AllowedMax
	if !decision.Accepted {
		outcome.Message = decision.Err().Error()
	}
	if decision.DetailID != "" {
		outcome.Remaining, _ = session.Remaining(decision.DetailID)
	}
	return outcome
}

// validateInputs validates the command configuration
func (c *TransferCommand) validateInputs() error {
	if c.config.ScenarioDir == "" &&
		(c.config.SourcesFile == "" || c.config.BracketsFile == "" || c.config.ActionsFile == "") {
		return fmt.Errorf("must specify either -scenario directory or -sources, -brackets and -actions files")
	}
	return nil
}

// resolveInputFiles determines the actual file paths to use
func (c *TransferCommand) resolveInputFiles() (map[string]string, error) {
	var sourcesPath, bracketsPath, actionsPath string

	if c.config.ScenarioDir != "" {
		sourcesPath = filepath.Join(c.config.ScenarioDir, "sources.csv")
		bracketsPath = filepath.Join(c.config.ScenarioDir, "brackets.csv")
		actionsPath = filepath.Join(c.config.ScenarioDir, "actions.csv")
	} else {
		sourcesPath = c.config.SourcesFile
		bracketsPath = c.config.BracketsFile
		actionsPath = c.config.ActionsFile
	}

	files := map[string]string{
		"Sources":  sourcesPath,
		"Brackets": bracketsPath,
		"Actions":  actionsPath,
	}

	for name, path := range files {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s file not found: %s", name, path)
		}
	}

	return files, nil
}

// showHelp displays the help message
func (c *TransferCommand) showHelp() {
	fmt.Fprintf(c.out, `Transfer CLI - reconcile a store's transfer-in against its transfer-out

USAGE:
    transfer -scenario <directory>                         # Use scenario directory with CSV files
    transfer -sources <file> -brackets <file> -actions <file>

OPTIONS:
    -scenario <dir>     Path to scenario directory containing CSV files
    -sources <file>     Path to source transfer lines CSV file
    -brackets <file>    Path to tax brackets CSV file
    -actions <file>     Path to staging actions CSV file
    -transfer <id>      Transfer-out id (default: first source line)
    -location <code>    Receiving location (default: first source line)
    -mode <mode>        Entry mode: combine, separate (default: combine)
    -commit             Commit the assembled batch
    -db <file>          SQLite database to commit into (default: in-memory)
    -config <file>      YAML configuration file
    -output <dir>       Output directory for results (optional)
    -format <fmt>       Output format: text, json, csv (default: text)
    -metrics            Print session metrics after the run
    -verbose            Enable verbose output
    -help               Show this help message

SCENARIO DIRECTORY STRUCTURE:
    scenario_name/
    ├── sources.csv     # Source transfer lines
    ├── brackets.csv    # Tax bracket tables
    └── actions.csv     # Scans, selections and edits to replay

CSV FILE FORMATS:

brackets.csv:
    table_id,bracket_id,slab_end_inclusive,purchase_tax_percent,sales_tax_percent
    GST-FRAMES,FRAME-LOW,1000,12,18
    GST-FRAMES,FRAME-HIGH,,18,18

sources.csv:
    source_line_id,transfer_out_id,location,detail_id,barcode,description,kind,quantity_authorized,quantity_confirmed_in,unit_transfer_price,retail_reference_price,tax_table_id,in_jurisdiction,lens_power
    SL-1,TO-1001,STORE-BLR-02,FR-100,8901000000017,Acetate frame,frame,10,3,100,150,GST-FRAMES,true,

actions.csv:
    action,target,quantity,price,mode
    scan,8901000000017,,,
    select,FR-100,5,,separate
    lens,-1.25/-0.50/180,2,,
    edit,FR-100#1,3,,
    price,FR-100,,120,
    remove,FR-100#1,,,

EXAMPLES:
    # Replay a scenario
    transfer -scenario pkg/interfaces/cli/commands/testdata/optical_store -verbose

    # Commit into a SQLite file
    transfer -scenario pkg/interfaces/cli/commands/testdata/optical_store -commit -db transfer.db

    # JSON output
    transfer -scenario pkg/interfaces/cli/commands/testdata/optical_store -format json -output results/
`)
}
