package receipt

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

func sampleRecord() domain.SaleRecord {
	return domain.SaleRecord{
		InvoiceNo:  "INV-1001",
		TerminalID: "T1",
		Mode:       domain.ModeQuick,
		Customer:   domain.SaleCustomer{Name: "Asha", Phone: "9999999999"},
		Lines: []domain.CartLine{{
			Code:             "ABC123",
			DisplayName:      "Linen Shirt",
			UnitSellingPrice: decimal.NewFromInt(50),
			Qty:              2,
		}},
		Payments:  []domain.SalePayment{{Method: "CASH", Amount: decimal.NewFromInt(90)}},
		Base:      decimal.NewFromInt(100),
		Payable:   decimal.NewFromInt(90),
		Tendered:  decimal.NewFromInt(100),
		Change:    decimal.NewFromInt(10),
		CreatedAt: time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	}
}

func TestESCPOSReceiptContainsTotals(t *testing.T) {
	data, preview := NewRenderer("Wabi Sabi", 32).ESCPOS(sampleRecord())

	if !bytes.HasPrefix(data, []byte{esc, '@'}) {
		t.Fatalf("expected receipt to start with printer init")
	}
	if !bytes.HasSuffix(data, []byte{gs, 'V', 'A', 0x10}) {
		t.Fatalf("expected receipt to end with a cut command")
	}
	for _, want := range []string{"Wabi Sabi", "Invoice: INV-1001", "Linen Shirt x2", "100.00", "-10.00", "90.00", "Change", "Thank you"} {
		if !strings.Contains(preview, want) {
			t.Fatalf("expected preview to contain %q, got:\n%s", want, preview)
		}
	}
	for _, line := range strings.Split(preview, "\n") {
		if len(line) > 32 {
			t.Fatalf("line exceeds printer width: %q", line)
		}
	}
}

func TestESCPOSReceiptOmitsChangeWhenExact(t *testing.T) {
	rec := sampleRecord()
	rec.Tendered = rec.Payable
	rec.Change = decimal.Zero

	_, preview := NewRenderer("", 0).ESCPOS(rec)
	if strings.Contains(preview, "Change") {
		t.Fatalf("expected no change line for exact payment")
	}
	if !strings.HasPrefix(preview, "POS") {
		t.Fatalf("expected default store label, got %q", preview)
	}
}

func TestPDFReceipt(t *testing.T) {
	data, err := NewRenderer("Wabi Sabi", 48).PDF(sampleRecord())
	if err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("expected pdf header, got %q", data[:min(8, len(data))])
	}
	if got := FileName(sampleRecord(), "pdf"); got != "receipt-INV-1001.pdf" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestNetworkPrinterWritesBytes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(conn)
		received <- buf.Bytes()
	}()

	p, err := NewPrinter("network", ln.Addr().String(), "")
	if err != nil {
		t.Fatalf("new printer: %v", err)
	}
	if err := p.Print(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("print: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "hello" {
			t.Fatalf("expected printer to receive hello, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("printer never received data")
	}
}

func TestUSBPrinterWritesDeviceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lp0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("create device file: %v", err)
	}
	p, err := NewPrinter("usb", "", path)
	if err != nil {
		t.Fatalf("new printer: %v", err)
	}
	if err := p.Print(context.Background(), []byte{esc, '@'}); err != nil {
		t.Fatalf("print: %v", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, []byte{esc, '@'}) {
		t.Fatalf("unexpected device contents %v", got)
	}
}

func TestNewPrinterRejectsIncompleteConfig(t *testing.T) {
	if _, err := NewPrinter("network", "", ""); err == nil {
		t.Fatalf("expected error without address")
	}
	if _, err := NewPrinter("usb", "", ""); err == nil {
		t.Fatalf("expected error without device path")
	}
	if _, err := NewPrinter("bluetooth", "", ""); err == nil {
		t.Fatalf("expected error for unknown printer type")
	}
	p, err := NewPrinter("", "", "")
	if err != nil {
		t.Fatalf("expected null printer, got %v", err)
	}
	if _, ok := p.(NullPrinter); !ok {
		t.Fatalf("expected NullPrinter, got %T", p)
	}
}

func TestTruncateKeepsWholeRunes(t *testing.T) {
	name := "Chai मसाला Premium"
	got := truncate(name, 7)
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got %q", got)
	}
	if got != "Chai मस" {
		t.Fatalf("expected first seven runes, got %q", got)
	}
	if truncate("Tea", 7) != "Tea" {
		t.Fatalf("expected short names to be kept")
	}
}

func TestPairPadsByRunes(t *testing.T) {
	d := newDocument(20)
	d.pair("मसाला", "10.00")
	line := d.preview[0]
	if utf8.RuneCountInString(line) != 20 {
		t.Fatalf("expected 20 columns, got %d in %q", utf8.RuneCountInString(line), line)
	}
}
