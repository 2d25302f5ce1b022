package payment

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

var testDefaults = Defaults{
	Banks:   []string{"HDFC", "ICICI"},
	UPIApps: []string{"GPay", "PhonePe"},
}

func methodPtr(m domain.PaymentMethod) *domain.PaymentMethod { return &m }
func strPtr(s string) *string                                 { return &s }
func amountPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestNewRowsSeedsSingleEntry(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCard)
	entries := rows.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one seeded entry, got %d", len(entries))
	}
	if entries[0].ID != 1 || entries[0].Method != domain.MethodCard {
		t.Fatalf("unexpected seed entry: %+v", entries[0])
	}
	if entries[0].CustomerBank != "HDFC" {
		t.Fatalf("expected default bank on card entry, got %q", entries[0].CustomerBank)
	}
}

func TestAddUsesMaxIDPlusOne(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCash)
	rows.Add()
	third := rows.Add()
	if err := rows.Remove(2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	fourth := rows.Add()
	if third.ID != 3 || fourth.ID != 4 {
		t.Fatalf("expected ids 3 and 4, got %d and %d", third.ID, fourth.ID)
	}
}

func TestRemoveRefusesLastEntry(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCash)
	err := rows.Remove(1)
	if !errors.Is(err, ErrLastEntry) {
		t.Fatalf("expected ErrLastEntry, got %v", err)
	}
	if rows.Len() != 1 {
		t.Fatalf("expected entry to remain, got %d", rows.Len())
	}
	if err := rows.Remove(42); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestUpdateMethodChangeResetsMethodFields(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCard)
	if _, err := rows.Update(1, Patch{
		CardHolder:      strPtr("Asha"),
		CardHolderPhone: strPtr("9876543210"),
		CustomerBank:    strPtr("ICICI"),
		Amount:          amountPtr("100"),
	}); err != nil {
		t.Fatalf("update card fields: %v", err)
	}

	entry, err := rows.Update(1, Patch{Method: methodPtr("upi")})
	if err != nil {
		t.Fatalf("switch to upi: %v", err)
	}
	if entry.Method != domain.MethodUPI {
		t.Fatalf("expected UPI, got %s", entry.Method)
	}
	if entry.CardHolder != "" || entry.CardHolderPhone != "" || entry.CustomerBank != "" {
		t.Fatalf("expected card fields cleared, got %+v", entry)
	}
	if entry.Account != "GPay" {
		t.Fatalf("expected default UPI app, got %q", entry.Account)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected amount kept, got %s", entry.Amount)
	}
}

func TestUpdateAppliesPatchAfterMethodReset(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCash)
	entry, err := rows.Update(1, Patch{Method: methodPtr(domain.MethodCard), CustomerBank: strPtr("ICICI")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if entry.CustomerBank != "ICICI" {
		t.Fatalf("expected explicit bank to win over default, got %q", entry.CustomerBank)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCash)
	if _, err := rows.Update(1, Patch{Method: methodPtr("CHEQUE")}); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
	if _, err := rows.Update(1, Patch{Amount: amountPtr("-5")}); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	if _, err := rows.Update(9, Patch{}); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestUpdateRejectsSubCentAmount(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCash)
	if _, err := rows.Update(1, Patch{Amount: amountPtr("100.005")}); !errors.Is(err, ErrAmountPrecision) {
		t.Fatalf("expected ErrAmountPrecision, got %v", err)
	}
	if !rows.Entries()[0].Amount.IsZero() {
		t.Fatalf("expected rejected amount to leave the row untouched, got %s", rows.Entries()[0].Amount)
	}
	entry, err := rows.Update(1, Patch{Amount: amountPtr("149.950")})
	if err != nil {
		t.Fatalf("expected trailing zero amount to be accepted, got %v", err)
	}
	if !entry.Amount.Equal(decimal.RequireFromString("149.95")) {
		t.Fatalf("unexpected amount %s", entry.Amount)
	}
}

func TestDuplicateMethodsAllowed(t *testing.T) {
	rows := NewRows(testDefaults, domain.MethodCard)
	second := rows.Add()
	if second.Method != domain.MethodCard {
		t.Fatalf("expected second card row, got %s", second.Method)
	}
	if rows.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", rows.Len())
	}
}

func TestParseAmountTreatsGarbageAsZero(t *testing.T) {
	cases := map[string]any{
		"blank":   "",
		"spaces":  "   ",
		"letters": "abc",
		"nil":     nil,
		"bool":    true,
	}
	for name, input := range cases {
		if got := ParseAmount(input); !got.IsZero() {
			t.Fatalf("%s: expected zero, got %s", name, got)
		}
	}
	if got := ParseAmount("12.50"); got.String() != "12.5" {
		t.Fatalf("expected 12.5, got %s", got)
	}
	if got := ParseAmount(40.0); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected 40, got %s", got)
	}
}
