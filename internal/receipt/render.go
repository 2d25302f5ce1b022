package receipt

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

type Renderer struct {
	StoreLabel string
	Width      int
}

func NewRenderer(storeLabel string, width int) Renderer {
	if storeLabel == "" {
		storeLabel = "POS"
	}
	if width <= 0 {
		width = 48
	}
	return Renderer{StoreLabel: storeLabel, Width: width}
}

// ESCPOS renders a thermal receipt and returns the raw bytes with a text preview.
func (r Renderer) ESCPOS(rec domain.SaleRecord) ([]byte, string) {
	d := newDocument(r.Width)

	d.align(alignCenter).bold(true).line(r.StoreLabel).bold(false)
	d.line("Invoice: " + rec.InvoiceNo)
	d.line(rec.CreatedAt.Format("2006-01-02 15:04:05"))
	d.align(alignLeft).separator("=")

	d.pair("Customer", rec.Customer.Name)
	if rec.Customer.Phone != "" {
		d.pair("Phone", rec.Customer.Phone)
	}
	if rec.TerminalID != "" {
		d.pair("Terminal", rec.TerminalID)
	}
	d.separator("-")

	for _, line := range rec.Lines {
		label := line.Code
		if line.DisplayName != "" {
			label = line.DisplayName
		}
		d.line(fmt.Sprintf("%s x%s", label, formatQty(line.Qty)))
		d.pair("  "+line.Code, money(line.LineTotal()))
	}
	d.separator("-")

	d.pair("Subtotal", money(rec.Base))
	if discount := rec.Base.Sub(rec.Payable); discount.IsPositive() {
		d.pair("Discount", "-"+money(discount))
	}
	d.bold(true).pair("Total", money(rec.Payable)).bold(false)
	for _, p := range rec.Payments {
		d.pair(p.Method, money(p.Amount))
		if p.Reference != "" {
			d.line("  Ref: " + p.Reference)
		}
	}
	if rec.Change.IsPositive() {
		d.pair("Tendered", money(rec.Tendered))
		d.pair("Change", money(rec.Change))
	}
	d.separator("=")
	d.align(alignCenter).line("Thank you").cut()

	return d.bytes(), d.text()
}

func (r Renderer) PDF(rec domain.SaleRecord) ([]byte, error) {
	height := 110.0 + 10.0*float64(len(rec.Lines)) + 6.0*float64(len(rec.Payments))
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()

	const w = 72.0
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(w, 6, r.StoreLabel, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(w, 4, "Invoice: "+rec.InvoiceNo, "", 1, "C", false, 0, "")
	pdf.CellFormat(w, 4, rec.CreatedAt.Format("02-Jan-2006 03:04 PM"), "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.CellFormat(w, 4, "Customer: "+rec.Customer.Name, "B", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(40, 5, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(12, 5, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(20, 5, "Amount", "B", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	for _, line := range rec.Lines {
		label := line.Code
		if line.DisplayName != "" {
			label = line.DisplayName
		}
		pdf.CellFormat(40, 5, truncate(label, 26), "", 0, "L", false, 0, "")
		pdf.CellFormat(12, 5, formatQty(line.Qty), "", 0, "R", false, 0, "")
		pdf.CellFormat(20, 5, money(line.LineTotal()), "", 1, "R", false, 0, "")
	}
	pdf.Ln(1)

	row := func(label, value string) {
		pdf.CellFormat(52, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 5, value, "", 1, "R", false, 0, "")
	}
	row("Subtotal", money(rec.Base))
	if discount := rec.Base.Sub(rec.Payable); discount.IsPositive() {
		row("Discount", "-"+money(discount))
	}
	pdf.SetFont("Arial", "B", 9)
	row("Total", money(rec.Payable))
	pdf.SetFont("Arial", "", 8)
	for _, p := range rec.Payments {
		row(p.Method, money(p.Amount))
	}
	if rec.Change.IsPositive() {
		row("Tendered", money(rec.Tendered))
		row("Change", money(rec.Change))
	}
	pdf.Ln(3)
	pdf.CellFormat(w, 4, "Thank you", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func FileName(rec domain.SaleRecord, ext string) string {
	return fmt.Sprintf("receipt-%s.%s", rec.InvoiceNo, ext)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
