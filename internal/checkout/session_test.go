package checkout

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/cart"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/payment"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/reconcile"
)

var testConfig = Config{
	StoreLabel:    "Wabi Sabi",
	Defaults:      payment.Defaults{Banks: []string{"HDFC"}, UPIApps: []string{"GPay"}},
	QuickRounding: reconcile.RoundWhole,
	MultiRounding: reconcile.RoundCents,
}

func sampleLines() []domain.CartLine {
	return cart.Ingest([]map[string]any{
		{"barcode": "ABC123", "qty": 2, "sellingPrice": 50},
	})
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestQuickSessionBuildsSinglePaymentForDueAmount(t *testing.T) {
	s := New("ps-1", Params{
		TerminalID: "T1",
		Mode:       domain.ModeQuick,
		Lines:      sampleLines(),
		Discount:   &domain.Discount{Kind: domain.DiscountPercent, Value: decimal.NewFromInt(10)},
	}, testConfig)

	if err := s.BeginValidation(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	sub, err := s.Prepare(nil, amount("100"))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if s.State() != StateSubmitting {
		t.Fatalf("expected submitting, got %s", s.State())
	}
	if sub.Payload.Customer.Name != "Guest" {
		t.Fatalf("expected Guest customer, got %+v", sub.Payload.Customer)
	}
	if len(sub.Payload.Lines) != 1 || sub.Payload.Lines[0] != (domain.SaleLine{Barcode: "ABC123", Qty: 2}) {
		t.Fatalf("unexpected lines: %+v", sub.Payload.Lines)
	}
	if len(sub.Payload.Payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(sub.Payload.Payments))
	}
	p := sub.Payload.Payments[0]
	if p.Method != "CASH" || !p.Amount.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected CASH 90, got %s %s", p.Method, p.Amount)
	}
	if !sub.Charge.Change.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected change 10, got %s", sub.Charge.Change)
	}
	if !strings.Contains(p.Reference, "Tendered 100.00") {
		t.Fatalf("expected tender note in reference, got %q", p.Reference)
	}
	if sub.Payload.Store != "Wabi Sabi" {
		t.Fatalf("expected store label, got %q", sub.Payload.Store)
	}
	if sub.IdempotencyKey != "ps-1-1" {
		t.Fatalf("unexpected idempotency key %q", sub.IdempotencyKey)
	}
}

func TestPrepareRejectsEmptyCart(t *testing.T) {
	s := New("ps-empty", Params{Mode: domain.ModeQuick}, testConfig)
	_ = s.BeginValidation()
	_, err := s.Prepare(nil, nil)
	if !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected back to idle, got %s", s.State())
	}
}

func TestMultiPayRequiresCustomer(t *testing.T) {
	s := New("ps-m", Params{Mode: domain.ModeMulti, Lines: sampleLines()}, testConfig)
	_, _ = s.UpdatePayment(1, payment.Patch{Amount: amount("100")})

	_ = s.BeginValidation()
	if _, err := s.Prepare(&domain.Customer{}, nil); !errors.Is(err, ErrNoCustomer) {
		t.Fatalf("expected ErrNoCustomer, got %v", err)
	}

	_ = s.BeginValidation()
	if _, err := s.Prepare(&domain.Customer{Phone: "9876543210"}, nil); err != nil {
		t.Fatalf("expected phone-only customer to pass, got %v", err)
	}
}

func TestMultiPayRequiresExactTotal(t *testing.T) {
	s := New("ps-m2", Params{Mode: domain.ModeMulti, Lines: sampleLines()}, testConfig)
	_, _ = s.UpdatePayment(1, payment.Patch{Amount: amount("60")})
	second, _ := s.AddPayment()
	_, _ = s.UpdatePayment(second.ID, payment.Patch{Amount: amount("50")})

	customer := &domain.Customer{ID: "C1", Name: "Asha"}
	_ = s.BeginValidation()
	_, err := s.Prepare(customer, nil)
	if !errors.Is(err, reconcile.ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}
	if summary := s.Summary(); !summary.Overpay.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected overpay 10, got %s", summary.Overpay)
	}

	_, _ = s.UpdatePayment(second.ID, payment.Patch{Amount: amount("40")})
	_ = s.BeginValidation()
	sub, err := s.Prepare(customer, nil)
	if err != nil {
		t.Fatalf("expected exact split to pass, got %v", err)
	}
	if len(sub.Payload.Payments) != 2 {
		t.Fatalf("expected two payments, got %d", len(sub.Payload.Payments))
	}
	if sub.Payload.Payments[0].CustomerBank != "HDFC" {
		t.Fatalf("expected card bank default carried, got %+v", sub.Payload.Payments[0])
	}
	if sub.Payload.Customer.Name != "Asha" {
		t.Fatalf("expected selected customer, got %+v", sub.Payload.Customer)
	}
}

func TestBeginValidationIsSingleFlight(t *testing.T) {
	s := New("ps-race", Params{Mode: domain.ModeQuick, Lines: sampleLines()}, testConfig)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.BeginValidation(); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one submitter, got %d", wins)
	}
}

func TestEditsBlockedWhileSubmitting(t *testing.T) {
	s := New("ps-lock", Params{Mode: domain.ModeMulti, Lines: sampleLines()}, testConfig)
	_, _ = s.UpdatePayment(1, payment.Patch{Amount: amount("100")})
	_ = s.BeginValidation()
	if _, err := s.Prepare(&domain.Customer{Name: "Asha"}, nil); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if _, err := s.AddPayment(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy on add, got %v", err)
	}
	if err := s.RemovePayment(1); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy on remove, got %v", err)
	}
	if err := s.BeginValidation(); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}
}

func TestFailureKeepsStateForManualRetry(t *testing.T) {
	s := New("ps-fail", Params{Mode: domain.ModeMulti, Lines: sampleLines()}, testConfig)
	_, _ = s.UpdatePayment(1, payment.Patch{Amount: amount("100")})
	_ = s.BeginValidation()
	_, _ = s.Prepare(&domain.Customer{Name: "Asha"}, nil)
	s.Fail(errors.New("Insufficient stock"))

	view := s.View()
	if view.State != string(StateFailed) || view.LastError != "Insufficient stock" {
		t.Fatalf("unexpected view after failure: %+v", view)
	}
	if len(view.Lines) != 1 || !view.Payments[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected cart and rows intact, got %+v", view)
	}

	if err := s.BeginValidation(); err != nil {
		t.Fatalf("expected manual retry to be allowed, got %v", err)
	}
	sub, err := s.Prepare(&domain.Customer{Name: "Asha"}, nil)
	if err != nil {
		t.Fatalf("retry prepare: %v", err)
	}
	if sub.IdempotencyKey != "ps-fail-1" {
		t.Fatalf("expected unchanged retry to reuse the first key, got %q", sub.IdempotencyKey)
	}
	s.Complete(domain.SaleResponse{InvoiceNo: "INV-2"})
	if err := s.BeginValidation(); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestTakePrintIntentClears(t *testing.T) {
	s := New("ps-print", Params{Mode: domain.ModeQuick, Lines: sampleLines(), Print: true}, testConfig)
	if !s.TakePrintIntent() {
		t.Fatalf("expected print intent set")
	}
	if s.TakePrintIntent() {
		t.Fatalf("expected print intent cleared after take")
	}
}

func TestSetDiscountResyncsQuickRow(t *testing.T) {
	s := New("ps-disc", Params{Mode: domain.ModeQuick, Lines: sampleLines()}, testConfig)
	if err := s.SetDiscount(&domain.Discount{Kind: domain.DiscountFlat, Value: decimal.NewFromInt(25)}); err != nil {
		t.Fatalf("set discount: %v", err)
	}
	view := s.View()
	if !view.Summary.Payable.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected payable 75, got %s", view.Summary.Payable)
	}
	if !view.Payments[0].Amount.Equal(decimal.NewFromInt(75)) || !view.Summary.Remaining.IsZero() {
		t.Fatalf("expected quick row to follow payable, got %+v", view.Payments[0])
	}
}

func TestQuickPayRejectsShortTender(t *testing.T) {
	s := New("ps-short", Params{TerminalID: "T1", Mode: domain.ModeCash, Lines: sampleLines()}, testConfig)
	if err := s.BeginValidation(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err := s.Prepare(nil, amount("60"))
	if !errors.Is(err, reconcile.ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch for short tender, got %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle after rejected tender, got %s", s.State())
	}
}

func TestRetryKeyChangesOnlyWithPayload(t *testing.T) {
	s := New("ps-key", Params{Mode: domain.ModeMulti, Lines: sampleLines()}, testConfig)
	_, _ = s.UpdatePayment(1, payment.Patch{Amount: amount("100")})
	customer := &domain.Customer{Name: "Asha"}

	keys := make([]string, 0, 4)
	submit := func() {
		t.Helper()
		if err := s.BeginValidation(); err != nil {
			t.Fatalf("begin: %v", err)
		}
		sub, err := s.Prepare(customer, nil)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		keys = append(keys, sub.IdempotencyKey)
		s.Fail(errors.New("gateway timeout"))
	}

	submit()
	submit()
	if keys[0] != "ps-key-1" || keys[1] != keys[0] {
		t.Fatalf("expected retry without edits to reuse key, got %v", keys)
	}

	ref := "UTR-9"
	if _, err := s.UpdatePayment(1, payment.Patch{Reference: &ref}); err != nil {
		t.Fatalf("update: %v", err)
	}
	submit()
	if keys[2] != "ps-key-2" {
		t.Fatalf("expected edited payload to get a new key, got %v", keys)
	}

	customer = &domain.Customer{Name: "Ravi"}
	submit()
	if keys[3] != "ps-key-3" {
		t.Fatalf("expected a different customer to get a new key, got %v", keys)
	}
}

func TestMultiPayPayloadMatchesPayableToTheCent(t *testing.T) {
	s := New("ps-cents", Params{Mode: domain.ModeMulti, Lines: sampleLines()}, testConfig)
	second, _ := s.AddPayment()

	if _, err := s.UpdatePayment(1, payment.Patch{Amount: amount("50.005")}); !errors.Is(err, payment.ErrAmountPrecision) {
		t.Fatalf("expected ErrAmountPrecision, got %v", err)
	}
	if _, err := s.UpdatePayment(1, payment.Patch{Amount: amount("50.01")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.UpdatePayment(second.ID, payment.Patch{Amount: amount("49.99")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	_ = s.BeginValidation()
	sub, err := s.Prepare(&domain.Customer{Name: "Asha"}, nil)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	sum := decimal.Zero
	for _, p := range sub.Payload.Payments {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(sub.Payable) {
		t.Fatalf("expected payload payments %s to equal payable %s", sum, sub.Payable)
	}
}

func TestSingleMethodScreensRefuseExtraRows(t *testing.T) {
	for _, mode := range []domain.PaymentMode{domain.ModeQuick, domain.ModeCash} {
		s := New("ps-single", Params{Mode: mode, Lines: sampleLines()}, testConfig)
		if _, err := s.AddPayment(); !errors.Is(err, ErrSingleMethodMode) {
			t.Fatalf("%s: expected ErrSingleMethodMode, got %v", mode, err)
		}
		view := s.View()
		if len(view.Payments) != 1 || !view.Summary.Overpay.IsZero() {
			t.Fatalf("%s: expected one row and no overpay, got %+v", mode, view)
		}
	}

	s := New("ps-split", Params{Mode: domain.ModeMulti, Lines: sampleLines()}, testConfig)
	if _, err := s.AddPayment(); err != nil {
		t.Fatalf("expected split screen to accept rows, got %v", err)
	}
}
