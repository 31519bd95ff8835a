package entities

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSourceTransferLine_Validation(t *testing.T) {
	table := NewFlatRateTable("FLAT-12", "GST12", decimal.NewFromInt(12))

	line, err := NewSourceTransferLine("SL-1", "FR-100", 10, 3, decimal.NewFromInt(100), table, true)
	if err != nil {
		t.Fatalf("Expected valid source line creation to succeed: %v", err)
	}
	if line.Outstanding() != 7 {
		t.Errorf("Expected outstanding 7, got %d", line.Outstanding())
	}

	testCases := []struct {
		name        string
		id          string
		detailID    DetailID
		authorized  Quantity
		confirmed   Quantity
		price       decimal.Decimal
		expectError string
	}{
		{"empty id", "", "FR-100", 10, 0, decimal.NewFromInt(1), "source line id cannot be empty"},
		{"empty detail", "SL-1", "", 10, 0, decimal.NewFromInt(1), "detail id cannot be empty"},
		{"negative authorized", "SL-1", "FR-100", -1, 0, decimal.NewFromInt(1), "authorized quantity cannot be negative, got -1"},
		{"negative confirmed", "SL-1", "FR-100", 1, -2, decimal.NewFromInt(1), "confirmed quantity cannot be negative, got -2"},
		{"over confirmed", "SL-1", "FR-100", 4, 5, decimal.NewFromInt(1), "confirmed quantity 5 exceeds authorized quantity 4"},
		{"negative price", "SL-1", "FR-100", 4, 0, decimal.NewFromInt(-1), "unit transfer price cannot be negative, got -1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSourceTransferLine(tc.id, tc.detailID, tc.authorized, tc.confirmed, tc.price, table, true)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestLensPower_Matches(t *testing.T) {
	a := LensPower{
		Sphere:   decimal.RequireFromString("-1.25"),
		Cylinder: decimal.RequireFromString("-0.50"),
		Axis:     90,
	}
	b := LensPower{
		Sphere:   decimal.RequireFromString("-1.250"),
		Cylinder: decimal.RequireFromString("-0.5"),
		Axis:     90,
	}
	if !a.Matches(b) {
		t.Errorf("Expected %s to match %s", a, b)
	}

	b.Axis = 180
	if a.Matches(b) {
		t.Error("Expected powers with different axis not to match")
	}
	if got := a.String(); got != "SPH -1.25 CYL -0.50 AX 90 ADD 0.00" {
		t.Errorf("Unexpected power string: %s", got)
	}
}

func TestParseLensPower(t *testing.T) {
	power, err := ParseLensPower(" -1.25/-0.50/180 ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := LensPower{Sphere: decimal.RequireFromString("-1.25"), Cylinder: decimal.RequireFromString("-0.5"), Axis: 180}
	if !power.Matches(want) {
		t.Errorf("Expected %s, got %s", want, power)
	}

	power, err = ParseLensPower("2.00/0/0/1.50")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if power.Addition.String() != "1.5" {
		t.Errorf("Expected addition 1.5, got %s", power.Addition)
	}

	for _, bad := range []string{"", "-1.25/-0.50", "x/0/90", "-1/0/181", "-1/0/90/1/2"} {
		if _, err := ParseLensPower(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestTaxBracketTable_Validation(t *testing.T) {
	end := decimal.NewFromInt(1000)
	zero := decimal.Zero

	testCases := []struct {
		name     string
		brackets []TaxBracket
		wantErr  error
	}{
		{"no brackets", nil, ErrUnknownBracketTable},
		{
			"open-ended bracket before the last",
			[]TaxBracket{
				{BracketID: "A", PurchaseTaxPercent: decimal.NewFromInt(5)},
				{BracketID: "B", SlabEndInclusive: &end, PurchaseTaxPercent: decimal.NewFromInt(12)},
			},
			ErrMalformedBracketTable,
		},
		{
			"missing bracket id",
			[]TaxBracket{{PurchaseTaxPercent: decimal.NewFromInt(5)}},
			ErrMalformedBracketTable,
		},
		{
			"negative rate",
			[]TaxBracket{{BracketID: "A", PurchaseTaxPercent: decimal.NewFromInt(-5)}},
			ErrMalformedBracketTable,
		},
		{
			"zero slab end in a slab table",
			[]TaxBracket{
				{BracketID: "A", SlabEndInclusive: &zero, PurchaseTaxPercent: decimal.NewFromInt(5)},
				{BracketID: "B", PurchaseTaxPercent: decimal.NewFromInt(12)},
			},
			ErrMalformedBracketTable,
		},
		{
			"valid slab table",
			[]TaxBracket{
				{BracketID: "A", SlabEndInclusive: &end, PurchaseTaxPercent: decimal.NewFromInt(5)},
				{BracketID: "B", PurchaseTaxPercent: decimal.NewFromInt(12)},
			},
			nil,
		},
		{
			"flat table with any slab end",
			[]TaxBracket{{BracketID: "A", SlabEndInclusive: &zero, PurchaseTaxPercent: decimal.NewFromInt(5)}},
			nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := NewTaxBracketTable("T", tc.brackets...)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if _, ok := table.Bracket("A"); !ok {
					t.Error("Expected bracket A to be found")
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAllocationError(t *testing.T) {
	err := &AllocationError{DetailID: "FR-100", Requested: 3, AllowedMax: 2, Err: ErrOverAllocation}
	if !errors.Is(err, ErrOverAllocation) {
		t.Error("Expected AllocationError to unwrap to ErrOverAllocation")
	}
	expected := "requested quantity exceeds pending quantity: requested 3 of FR-100, at most 2 allowed"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}

	exhausted := &AllocationError{DetailID: "FR-100", Requested: 1, AllowedMax: 0, Err: ErrOverAllocation}
	expected = "requested quantity exceeds pending quantity: no pending quantity left for FR-100"
	if exhausted.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, exhausted.Error())
	}
}
