package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/store"
)

func TestSaleJournalRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("POS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	storeID := fmt.Sprintf("it-store-%d", stamp)
	invoice := fmt.Sprintf("INV-IT-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE store_id = $1`, storeID)
	})

	sale := domain.SaleRecord{
		InvoiceNo:  invoice,
		StoreID:    storeID,
		TerminalID: "T1",
		Cashier:    "cashier",
		Mode:       domain.ModeMulti,
		Customer:   domain.SaleCustomer{Name: "Asha", Phone: "9999999999"},
		Lines:      []domain.CartLine{{Identifier: "l1", Code: "ABC123", Qty: 2, UnitSellingPrice: decimal.NewFromInt(50)}},
		Payments: []domain.SalePayment{
			{Method: "CARD", Amount: decimal.RequireFromString("60.50"), CustomerBank: "HDFC"},
			{Method: "UPI", Amount: decimal.RequireFromString("29.50"), Account: "GPay"},
		},
		Base:      decimal.NewFromInt(100),
		Payable:   decimal.NewFromInt(90),
		Tendered:  decimal.NewFromInt(90),
		Change:    decimal.Zero,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.SaveSale(ctx, sale); err != nil {
		t.Fatalf("save sale: %v", err)
	}
	if err := s.SaveSale(ctx, sale); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	got, err := s.FindSaleByInvoice(ctx, storeID, invoice)
	if err != nil {
		t.Fatalf("find sale: %v", err)
	}
	if got.Mode != domain.ModeMulti || len(got.Payments) != 2 || got.Payments[1].Account != "GPay" {
		t.Fatalf("unexpected sale %+v", got)
	}
	if !got.Payments[0].Amount.Equal(decimal.RequireFromString("60.5")) || !got.Payable.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("unexpected amounts %+v", got)
	}

	list, err := s.ListSales(ctx, storeID, sale.CreatedAt.Add(-time.Minute), sale.CreatedAt.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(list) != 1 || list[0].InvoiceNo != invoice {
		t.Fatalf("unexpected list %+v", list)
	}
}
