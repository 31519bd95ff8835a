package csv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsinha/stocktransfer/pkg/application/dto"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

const bracketsCSV = `
table_id,bracket_id,slab_end_inclusive,purchase_tax_percent,sales_tax_percent
GST-FRAMES,FRAME-LOW,1000,12,18
GST-FRAMES,FRAME-HIGH,,18,18
FLAT-12,GST12,,12,0
`

const sourcesCSV = `
source_line_id,transfer_out_id,location,detail_id,barcode,description,kind,quantity_authorized,quantity_confirmed_in,unit_transfer_price,retail_reference_price,tax_table_id,in_jurisdiction,lens_power
SL-1,TO-1,STORE-A,FR-PREMIUM,8901000000024,Titanium frame,frame,5,1,900,1200,GST-FRAMES,true,
SL-2,TO-1,STORE-A,LN-1,,Single vision lens,lens,2,0,400.50,,FLAT-12,false,-1.25/-0.50/180
SL-3,TO-1,STORE-A,AC-CASE,8901000000031,Case,accessory,3,0,50,,NO-SUCH-TABLE,true,
`

func TestLoader_LoadTaxTables(t *testing.T) {
	tables, err := NewLoader().LoadTaxTables(writeFile(t, "brackets.csv", bracketsCSV))
	if err != nil {
		t.Fatalf("Failed to load tax tables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("Expected 2 tables, got %d", len(tables))
	}

	frames := tables[0]
	if frames.ID != "GST-FRAMES" || len(frames.Brackets) != 2 {
		t.Fatalf("Unexpected first table: %+v", frames)
	}
	if frames.Brackets[0].SlabEndInclusive == nil || frames.Brackets[0].SlabEndInclusive.String() != "1000" {
		t.Errorf("Expected slab end 1000, got %v", frames.Brackets[0].SlabEndInclusive)
	}
	if !frames.Brackets[1].IsOpenEnded() {
		t.Error("Expected last bracket to be open-ended")
	}
	if !tables[1].IsFlatRate() {
		t.Error("Expected FLAT-12 to be a flat rate table")
	}
}

func TestLoader_LoadTaxTablesRejectsOpenSlabBeforeLast(t *testing.T) {
	path := writeFile(t, "brackets.csv", `
table_id,bracket_id,slab_end_inclusive,purchase_tax_percent,sales_tax_percent
T,A,,12,18
T,B,1000,18,18
`)
	_, err := NewLoader().LoadTaxTables(path)
	if !errors.Is(err, entities.ErrMalformedBracketTable) {
		t.Errorf("Expected ErrMalformedBracketTable, got %v", err)
	}
}

func TestLoader_LoadSourceLines(t *testing.T) {
	loader := NewLoader()
	tables, err := loader.LoadTaxTables(writeFile(t, "brackets.csv", bracketsCSV))
	if err != nil {
		t.Fatalf("Failed to load tax tables: %v", err)
	}

	lines, err := loader.LoadSourceLines(writeFile(t, "sources.csv", sourcesCSV), tables)
	if err != nil {
		t.Fatalf("Failed to load source lines: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}

	frame := lines[0]
	if frame.Kind != entities.KindFrame || frame.QuantityAuthorized != 5 || frame.QuantityConfirmedIn != 1 {
		t.Errorf("Unexpected frame line: %+v", frame)
	}
	if frame.TaxTable != tables[0] {
		t.Error("Expected frame line to reference the GST-FRAMES table")
	}
	if !frame.InJurisdiction {
		t.Error("Expected frame line to be in jurisdiction")
	}

	lens := lines[1]
	if lens.LensPower == nil || lens.LensPower.Axis != 180 {
		t.Errorf("Expected lens power with axis 180, got %v", lens.LensPower)
	}
	if lens.UnitTransferPrice.String() != "400.5" || !lens.RetailReferencePrice.IsZero() {
		t.Errorf("Unexpected lens prices: %s / %s", lens.UnitTransferPrice, lens.RetailReferencePrice)
	}

	unknown := lines[2].TaxTable
	if unknown == nil || unknown.ID != "NO-SUCH-TABLE" || len(unknown.Brackets) != 0 {
		t.Errorf("Expected empty placeholder table, got %+v", unknown)
	}
}

func TestLoader_LoadSourceLinesErrors(t *testing.T) {
	header := "source_line_id,transfer_out_id,location,detail_id,barcode,description,kind,quantity_authorized,quantity_confirmed_in,unit_transfer_price,retail_reference_price,tax_table_id,in_jurisdiction,lens_power\n"
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad header", "id,detail\nSL-1,X\n", "header mismatch"},
		{"no rows", header, "at least one data row"},
		{"bad quantity", header + "SL-1,TO-1,S,X,,,frame,ten,0,1,,,true,\n", "invalid quantity_authorized"},
		{"bad jurisdiction", header + "SL-1,TO-1,S,X,,,frame,1,0,1,,,maybe,\n", "invalid in_jurisdiction"},
		{"confirmed above authorized", header + "SL-1,TO-1,S,X,,,frame,1,2,1,,,true,\n", "exceeds authorized"},
		{"bad kind", header + "SL-1,TO-1,S,X,,,widget,1,0,1,,,true,\n", "unknown item kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadSourceLines(writeFile(t, "sources.csv", tt.content), nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := NewLoader().LoadSourceLines(filepath.Join(t.TempDir(), "missing.csv"), nil); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoader_LoadActions(t *testing.T) {
	path := writeFile(t, "actions.csv", `
action,target,quantity,price,mode
scan,8901000000024,,,
select,FR-PREMIUM,2,,separate
lens,-1.25/-0.50/180,1,,
edit,FR-PREMIUM#1,3,,
price,FR-PREMIUM#1,,850.00,
remove,FR-PREMIUM#1,,,
`)
	actions, err := NewLoader().LoadActions(path)
	if err != nil {
		t.Fatalf("Failed to load actions: %v", err)
	}
	if len(actions) != 6 {
		t.Fatalf("Expected 6 actions, got %d", len(actions))
	}

	if actions[0].Kind != dto.ActionScan || actions[0].Quantity != 1 || actions[0].Mode != nil {
		t.Errorf("Unexpected scan action: %+v", actions[0])
	}
	if actions[1].Mode == nil || *actions[1].Mode != entities.Separate || actions[1].Quantity != 2 {
		t.Errorf("Unexpected select action: %+v", actions[1])
	}
	if actions[4].Kind != dto.ActionPrice || actions[4].Price.StringFixed(2) != "850.00" {
		t.Errorf("Unexpected price action: %+v", actions[4])
	}
	if actions[5].Kind != dto.ActionRemove || actions[5].Target != "FR-PREMIUM#1" {
		t.Errorf("Unexpected remove action: %+v", actions[5])
	}
}

func TestLoader_LoadActionsErrors(t *testing.T) {
	header := "action,target,quantity,price,mode\n"
	tests := []struct {
		name    string
		row     string
		wantErr string
	}{
		{"unknown action", "merge,X,1,,\n", "unknown action"},
		{"missing target", "scan,,,,\n", "needs a target"},
		{"select without quantity", "select,X,,,\n", "needs a quantity"},
		{"price without price", "price,X,,,\n", "needs a price"},
		{"bad mode", "select,X,1,,merge\n", "unknown entry mode"},
		{"fractional quantity", "select,X,1.5,,\n", "not a whole number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadActions(writeFile(t, "actions.csv", header+tt.row))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
