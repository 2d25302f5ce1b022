package cart

import (
	"testing"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

func TestNormalizePrefersItemCodeOverBarcode(t *testing.T) {
	lines := Normalize([]map[string]any{
		{"itemCode": "X1", "barcode": "X2"},
	})
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0].Barcode != "X1" {
		t.Fatalf("expected item code X1 to win, got %s", lines[0].Barcode)
	}
	if lines[0].Qty != 1 {
		t.Fatalf("expected default qty 1, got %v", lines[0].Qty)
	}
}

func TestNormalizeResolvesEveryCodeAlias(t *testing.T) {
	rows := []map[string]any{
		{"itemcode": "A", "qty": 2},
		{"barcode": "B", "quantity": 3.0},
		{"code": "C", "qtyOrdered": "4"},
		{"id": 5566.0, "qty_ordered": 5},
	}
	lines := Normalize(rows)
	want := []domain.SaleLine{
		{Barcode: "A", Qty: 2},
		{Barcode: "B", Qty: 3},
		{Barcode: "C", Qty: 4},
		{Barcode: "5566", Qty: 5},
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %+v, got %+v", i, want[i], lines[i])
		}
	}
}

func TestNormalizeDropsRowsWithoutCode(t *testing.T) {
	lines := Normalize([]map[string]any{
		{"name": "no code", "qty": 1},
		{"barcode": "   ", "qty": 1},
		{"barcode": "", "itemCode": nil},
		{"barcode": "KEEP", "qty": 1},
	})
	if len(lines) != 1 || lines[0].Barcode != "KEEP" {
		t.Fatalf("expected only KEEP to survive, got %+v", lines)
	}
}

func TestNormalizeClampsNonPositiveQuantity(t *testing.T) {
	lines := Normalize([]map[string]any{
		{"barcode": "Z", "qty": 0},
		{"barcode": "Y", "qty": -3},
		{"barcode": "X", "qty": "abc"},
	})
	for _, line := range lines {
		if line.Qty != 1 {
			t.Fatalf("expected qty clamped to 1 for %s, got %v", line.Barcode, line.Qty)
		}
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}

func TestNormalizeFallsThroughToNextQtyAlias(t *testing.T) {
	lines := Normalize([]map[string]any{
		{"barcode": "Q", "qty": "", "quantity": 6},
	})
	if lines[0].Qty != 6 {
		t.Fatalf("expected blank qty to fall through to quantity, got %v", lines[0].Qty)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize([]map[string]any{
		{"itemCode": "ABC123", "qty": 2},
		{"barcode": "DEF", "quantity": 1.5},
	})

	asRows := make([]map[string]any, 0, len(first))
	for _, line := range first {
		asRows = append(asRows, map[string]any{"barcode": line.Barcode, "qty": line.Qty})
	}
	second := Normalize(asRows)

	if len(first) != len(second) {
		t.Fatalf("expected same length, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("line %d changed on second pass: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestFromRawCapturesPricesAndName(t *testing.T) {
	line, ok := FromRaw(map[string]any{
		"barcode":      "ABC123",
		"qty":          2,
		"sellingPrice": 50.0,
		"mrp":          "60",
		"name":         "Linen Shirt",
	})
	if !ok {
		t.Fatalf("expected row to be accepted")
	}
	if line.DisplayName != "Linen Shirt" {
		t.Fatalf("expected display name, got %q", line.DisplayName)
	}
	if line.UnitMRP.String() != "60" {
		t.Fatalf("expected mrp 60, got %s", line.UnitMRP)
	}
	if line.Identifier == "" {
		t.Fatalf("expected generated identifier")
	}
	if got := BaseAmount([]domain.CartLine{line}); got.String() != "100" {
		t.Fatalf("expected base amount 100, got %s", got)
	}
}

func TestFromRawKeepsExistingIdentifier(t *testing.T) {
	line, _ := FromRaw(map[string]any{"barcode": "A", "identifier": "row-7"})
	if line.Identifier != "row-7" {
		t.Fatalf("expected identifier row-7, got %s", line.Identifier)
	}
}
