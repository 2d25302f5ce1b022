package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

var (
	ErrLastEntry         = errors.New("at least one payment row is required")
	ErrEntryNotFound     = errors.New("payment row not found")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrNegativeAmount    = errors.New("payment amount cannot be negative")
	ErrAmountPrecision   = errors.New("payment amount cannot have more than two decimal places")
)

// Defaults seeds method-specific fields when a row is created or switches method.
type Defaults struct {
	Banks   []string
	UPIApps []string
}

func (d Defaults) bank() string {
	if len(d.Banks) == 0 {
		return ""
	}
	return d.Banks[0]
}

func (d Defaults) upiApp() string {
	if len(d.UPIApps) == 0 {
		return ""
	}
	return d.UPIApps[0]
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Method          *domain.PaymentMethod
	Amount          *decimal.Decimal
	Reference       *string
	CardHolder      *string
	CardHolderPhone *string
	CustomerBank    *string
	Account         *string
}

// Rows is the ordered list of payment entries of one payment screen.
// It always holds at least one entry. Rows is not safe for concurrent use;
// the owning session serializes access.
type Rows struct {
	defaults      Defaults
	defaultMethod domain.PaymentMethod
	entries       []domain.PaymentEntry
}

func NewRows(defaults Defaults, method domain.PaymentMethod) *Rows {
	if !method.Supported() {
		method = domain.MethodCash
	}
	r := &Rows{defaults: defaults, defaultMethod: method}
	r.Add()
	return r
}

func (r *Rows) Add() domain.PaymentEntry {
	nextID := 1
	for _, entry := range r.entries {
		if entry.ID >= nextID {
			nextID = entry.ID + 1
		}
	}
	entry := domain.PaymentEntry{ID: nextID, Amount: decimal.Zero}
	r.applyMethod(&entry, r.defaultMethod)
	r.entries = append(r.entries, entry)
	return entry
}

func (r *Rows) Remove(id int) error {
	idx := r.indexOf(id)
	if idx < 0 {
		return ErrEntryNotFound
	}
	if len(r.entries) <= 1 {
		return ErrLastEntry
	}
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	return nil
}

func (r *Rows) Update(id int, patch Patch) (domain.PaymentEntry, error) {
	idx := r.indexOf(id)
	if idx < 0 {
		return domain.PaymentEntry{}, ErrEntryNotFound
	}
	entry := r.entries[idx]

	if patch.Method != nil {
		method := domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(*patch.Method))))
		if !method.Supported() {
			return domain.PaymentEntry{}, fmt.Errorf("%w: %s", ErrUnsupportedMethod, *patch.Method)
		}
		if method != entry.Method {
			r.applyMethod(&entry, method)
		}
	}
	if patch.Amount != nil {
		if patch.Amount.IsNegative() {
			return domain.PaymentEntry{}, ErrNegativeAmount
		}
		if !patch.Amount.Equal(patch.Amount.Round(2)) {
			return domain.PaymentEntry{}, fmt.Errorf("%w: %s", ErrAmountPrecision, patch.Amount)
		}
		entry.Amount = *patch.Amount
	}
	if patch.Reference != nil {
		entry.Reference = strings.TrimSpace(*patch.Reference)
	}
	if patch.CardHolder != nil {
		entry.CardHolder = strings.TrimSpace(*patch.CardHolder)
	}
	if patch.CardHolderPhone != nil {
		entry.CardHolderPhone = strings.TrimSpace(*patch.CardHolderPhone)
	}
	if patch.CustomerBank != nil {
		entry.CustomerBank = strings.TrimSpace(*patch.CustomerBank)
	}
	if patch.Account != nil {
		entry.Account = strings.TrimSpace(*patch.Account)
	}

	r.entries[idx] = entry
	return entry, nil
}

func (r *Rows) Entries() []domain.PaymentEntry {
	out := make([]domain.PaymentEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Rows) Amounts() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Amount)
	}
	return out
}

func (r *Rows) Len() int {
	return len(r.entries)
}

func (r *Rows) indexOf(id int) int {
	for i, entry := range r.entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}

// applyMethod switches the entry to method and resets fields that belong to
// the previous method.
func (r *Rows) applyMethod(entry *domain.PaymentEntry, method domain.PaymentMethod) {
	entry.Method = method
	entry.CardHolder = ""
	entry.CardHolderPhone = ""
	entry.CustomerBank = ""
	entry.Account = ""
	switch method {
	case domain.MethodCard:
		entry.CustomerBank = r.defaults.bank()
	case domain.MethodUPI:
		entry.Account = r.defaults.upiApp()
	}
}

// ParseAmount reads an amount from loosely typed input. Blank or non-numeric
// values count as zero.
func ParseAmount(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		return ParseAmount(t.String())
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
