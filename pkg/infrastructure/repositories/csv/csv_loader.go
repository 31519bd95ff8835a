package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

var (
	taxBracketHeader = []string{"table_id", "bracket_id", "slab_end_inclusive", "purchase_tax_percent", "sales_tax_percent"}
	sourceLineHeader = []string{
		"source_line_id", "transfer_out_id", "location", "detail_id", "barcode", "description", "kind",
		"quantity_authorized", "quantity_confirmed_in", "unit_transfer_price", "retail_reference_price",
		"tax_table_id", "in_jurisdiction", "lens_power",
	}
	actionHeader = []string{"action", "target", "quantity", "price", "mode"}
)

// Loader handles loading transfer data from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadTaxTables loads bracket tables from a CSV file. Rows of one table are
// kept in file order; an empty slab_end_inclusive marks the open-ended slab.
func (l *Loader) LoadTaxTables(filename string) ([]*entities.TaxBracketTable, error) {
	records, err := readRecords(filename, "tax brackets", taxBracketHeader)
	if err != nil {
		return nil, err
	}

	var order []string
	brackets := make(map[string][]entities.TaxBracket)
	for i, record := range records {
		bracket, err := parseTaxBracket(record)
		if err != nil {
			return nil, fmt.Errorf("tax brackets CSV row %d: %w", i+2, err)
		}
		tableID := strings.TrimSpace(record[0])
		if _, seen := brackets[tableID]; !seen {
			order = append(order, tableID)
		}
		brackets[tableID] = append(brackets[tableID], bracket)
	}

	tables := make([]*entities.TaxBracketTable, 0, len(order))
	for _, tableID := range order {
		table, err := entities.NewTaxBracketTable(tableID, brackets[tableID]...)
		if err != nil {
			return nil, fmt.Errorf("tax table %s: %w", tableID, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// LoadSourceLines loads source transfer lines from a CSV file, attaching the
// bracket table named by tax_table_id. An unknown table id is attached as an
// empty table so tax resolution reports it when the line is assembled.
func (l *Loader) LoadSourceLines(filename string, tables []*entities.TaxBracketTable) ([]*entities.SourceTransferLine, error) {
	records, err := readRecords(filename, "source lines", sourceLineHeader)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.TaxBracketTable, len(tables))
	for _, table := range tables {
		byID[table.ID] = table
	}

	var lines []*entities.SourceTransferLine
	for i, record := range records {
		line, err := parseSourceLine(record, byID)
		if err != nil {
			return nil, fmt.Errorf("source lines CSV row %d: %w", i+2, err)
		}
		if err := line.Validate(); err != nil {
			return nil, fmt.Errorf("source lines CSV row %d: %w", i+2, err)
		}
		lines = append(lines, &line)
	}
	return lines, nil
}

// LoadActions loads a staging action script from a CSV file
func (l *Loader) LoadActions(filename string) ([]dto.StagingAction, error) {
	records, err := readRecords(filename, "actions", actionHeader)
	if err != nil {
		return nil, err
	}

	var actions []dto.StagingAction
	for i, record := range records {
		action, err := parseAction(record)
		if err != nil {
			return nil, fmt.Errorf("actions CSV row %d: %w", i+2, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// Helper functions for parsing CSV records

func readRecords(filename, what string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", what, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", what, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", what)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", what, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", what, i+2, len(expectedHeader), len(record))
		}
	}
	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseTaxBracket(record []string) (entities.TaxBracket, error) {
	bracket := entities.TaxBracket{BracketID: strings.TrimSpace(record[1])}

	if slabEnd := strings.TrimSpace(record[2]); slabEnd != "" {
		end, err := decimal.NewFromString(slabEnd)
		if err != nil {
			return entities.TaxBracket{}, fmt.Errorf("invalid slab_end_inclusive: %s", record[2])
		}
		bracket.SlabEndInclusive = &end
	}

	purchase, err := parseDecimal(record[3], "purchase_tax_percent")
	if err != nil {
		return entities.TaxBracket{}, err
	}
	sales, err := parseDecimal(record[4], "sales_tax_percent")
	if err != nil {
		return entities.TaxBracket{}, err
	}
	bracket.PurchaseTaxPercent = purchase
	bracket.SalesTaxPercent = sales
	return bracket, nil
}

func parseSourceLine(record []string, tables map[string]*entities.TaxBracketTable) (entities.SourceTransferLine, error) {
	kind, err := entities.ParseItemKind(record[6])
	if err != nil {
		return entities.SourceTransferLine{}, err
	}

	authorized, err := strconv.ParseInt(strings.TrimSpace(record[7]), 10, 64)
	if err != nil {
		return entities.SourceTransferLine{}, fmt.Errorf("invalid quantity_authorized: %s", record[7])
	}
	confirmed, err := strconv.ParseInt(strings.TrimSpace(record[8]), 10, 64)
	if err != nil {
		return entities.SourceTransferLine{}, fmt.Errorf("invalid quantity_confirmed_in: %s", record[8])
	}

	unitPrice, err := parseDecimal(record[9], "unit_transfer_price")
	if err != nil {
		return entities.SourceTransferLine{}, err
	}
	retailPrice := decimal.Zero
	if strings.TrimSpace(record[10]) != "" {
		retailPrice, err = parseDecimal(record[10], "retail_reference_price")
		if err != nil {
			return entities.SourceTransferLine{}, err
		}
	}

	var table *entities.TaxBracketTable
	if tableID := strings.TrimSpace(record[11]); tableID != "" {
		table = tables[tableID]
		if table == nil {
			table = &entities.TaxBracketTable{ID: tableID}
		}
	}

	inJurisdiction, err := strconv.ParseBool(strings.TrimSpace(record[12]))
	if err != nil {
		return entities.SourceTransferLine{}, fmt.Errorf("invalid in_jurisdiction: %s (expected true or false)", record[12])
	}

	line := entities.SourceTransferLine{
		ID:                   strings.TrimSpace(record[0]),
		TransferOutID:        strings.TrimSpace(record[1]),
		Location:             strings.TrimSpace(record[2]),
		DetailID:             entities.DetailID(strings.TrimSpace(record[3])),
		Barcode:              strings.TrimSpace(record[4]),
		Description:          record[5],
		Kind:                 kind,
		QuantityAuthorized:   entities.Quantity(authorized),
		QuantityConfirmedIn:  entities.Quantity(confirmed),
		UnitTransferPrice:    unitPrice,
		RetailReferencePrice: retailPrice,
		TaxTable:             table,
		InJurisdiction:       inJurisdiction,
	}

	if power := strings.TrimSpace(record[13]); power != "" {
		parsed, err := entities.ParseLensPower(power)
		if err != nil {
			return entities.SourceTransferLine{}, err
		}
		line.LensPower = &parsed
	}
	return line, nil
}

func parseAction(record []string) (dto.StagingAction, error) {
	kind, err := dto.ParseActionKind(record[0])
	if err != nil {
		return dto.StagingAction{}, err
	}

	action := dto.StagingAction{Kind: kind, Target: strings.TrimSpace(record[1])}
	if action.Target == "" {
		return dto.StagingAction{}, fmt.Errorf("%s action needs a target", kind)
	}

	switch qty := strings.TrimSpace(record[2]); {
	case qty != "":
		// negative quantities are kept so the session can reject them
		n, err := strconv.ParseInt(qty, 10, 64)
		if err != nil {
			return dto.StagingAction{}, fmt.Errorf("%w: %q is not a whole number", entities.ErrInvalidQuantity, qty)
		}
		action.Quantity = entities.Quantity(n)
	case kind == dto.ActionScan:
		action.Quantity = 1
	case kind == dto.ActionSelect || kind == dto.ActionLens || kind == dto.ActionEdit:
		return dto.StagingAction{}, fmt.Errorf("%s action needs a quantity", kind)
	}

	if price := strings.TrimSpace(record[3]); price != "" {
		action.Price, err = parseDecimal(price, "price")
		if err != nil {
			return dto.StagingAction{}, err
		}
	} else if kind == dto.ActionPrice {
		return dto.StagingAction{}, fmt.Errorf("price action needs a price")
	}

	if mode := strings.TrimSpace(record[4]); mode != "" {
		parsed, err := entities.ParseEntryMode(mode)
		if err != nil {
			return dto.StagingAction{}, err
		}
		action.Mode = &parsed
	}
	return action, nil
}

func parseDecimal(s, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", column, s)
	}
	return d, nil
}
