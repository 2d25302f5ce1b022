package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

// Field aliases seen on cart rows coming from the POS screens and held bills,
// in priority order.
var (
	codeKeys       = []string{"itemCode", "itemcode", "barcode", "code", "id"}
	qtyKeys        = []string{"qty", "quantity", "qtyOrdered", "qty_ordered"}
	nameKeys       = []string{"displayName", "display_name", "name", "productName", "product_name", "itemName"}
	sellingKeys    = []string{"unitSellingPrice", "unit_selling_price", "sellingPrice", "selling_price", "price"}
	mrpKeys        = []string{"unitMrp", "unit_mrp", "mrp"}
	identifierKeys = []string{"identifier", "uuid"}
)

// FromRaw resolves a loosely shaped cart row into a canonical CartLine.
// It reports false when no usable item code is present.
func FromRaw(row map[string]any) (domain.CartLine, bool) {
	code := firstString(row, codeKeys)
	if code == "" {
		return domain.CartLine{}, false
	}

	identifier := firstString(row, identifierKeys)
	if identifier == "" {
		identifier = uuid.NewString()
	}

	return domain.CartLine{
		Identifier:       identifier,
		Code:             code,
		DisplayName:      firstString(row, nameKeys),
		UnitMRP:          firstPrice(row, mrpKeys),
		UnitSellingPrice: firstPrice(row, sellingKeys),
		Qty:              clampQty(firstQty(row)),
	}, true
}

// Ingest converts raw rows into canonical lines, keeping order and silently
// dropping rows without an item code.
func Ingest(rows []map[string]any) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		line, ok := FromRaw(row)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Lines maps canonical cart lines to the {barcode, qty} shape the sale API accepts.
func Lines(cart []domain.CartLine) []domain.SaleLine {
	out := make([]domain.SaleLine, 0, len(cart))
	for _, line := range cart {
		code := strings.TrimSpace(line.Code)
		if code == "" {
			continue
		}
		out = append(out, domain.SaleLine{Barcode: code, Qty: clampQty(line.Qty)})
	}
	return out
}

func Normalize(rows []map[string]any) []domain.SaleLine {
	return Lines(Ingest(rows))
}

func BaseAmount(cart []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range cart {
		total = total.Add(line.LineTotal())
	}
	return total
}

func clampQty(qty float64) float64 {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty <= 0 {
		return 1
	}
	return qty
}

func firstQty(row map[string]any) float64 {
	for _, key := range qtyKeys {
		if n, ok := numberValue(row[key]); ok {
			return n
		}
	}
	return 1
}

func firstString(row map[string]any, keys []string) string {
	for _, key := range keys {
		if s := stringValue(row[key]); s != "" {
			return s
		}
	}
	return ""
}

func firstPrice(row map[string]any, keys []string) decimal.Decimal {
	for _, key := range keys {
		n, ok := numberValue(row[key])
		if !ok {
			continue
		}
		if n < 0 {
			return decimal.Zero
		}
		return decimal.NewFromFloat(n)
	}
	return decimal.Zero
}

// stringValue treats nil, empty strings, zero and booleans as absent.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return stringValue(f)
		}
		return ""
	case float64:
		if t == 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if t == 0 {
			return ""
		}
		return strconv.Itoa(t)
	case int64:
		if t == 0 {
			return ""
		}
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func numberValue(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
