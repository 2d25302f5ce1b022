package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as JSON numbers on every wire this service speaks.
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentMethod string

const (
	MethodCash PaymentMethod = "CASH"
	MethodCard PaymentMethod = "CARD"
	MethodUPI  PaymentMethod = "UPI"
)

func (m PaymentMethod) Supported() bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI:
		return true
	default:
		return false
	}
}

// PaymentMode identifies which payment screen opened the session.
type PaymentMode string

const (
	ModeQuick PaymentMode = "quick"
	ModeCash  PaymentMode = "cash"
	ModeMulti PaymentMode = "multi"
)

func (m PaymentMode) Valid() bool {
	return m == ModeQuick || m == ModeCash || m == ModeMulti
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// CartLine is the canonical in-memory cart row. Alias resolution happens once
// when a raw row is ingested, never again downstream.
type CartLine struct {
	Identifier       string          `json:"identifier"`
	Code             string          `json:"code"`
	DisplayName      string          `json:"display_name,omitempty"`
	UnitMRP          decimal.Decimal `json:"unit_mrp"`
	UnitSellingPrice decimal.Decimal `json:"unit_selling_price"`
	Qty              float64         `json:"qty"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitSellingPrice.Mul(decimal.NewFromFloat(l.Qty))
}

type SaleLine struct {
	Barcode string  `json:"barcode"`
	Qty     float64 `json:"qty"`
}

type Customer struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Identified reports whether the customer carries at least one of id, phone or name.
func (c *Customer) Identified() bool {
	if c == nil {
		return false
	}
	return strings.TrimSpace(c.ID) != "" || strings.TrimSpace(c.Phone) != "" || strings.TrimSpace(c.Name) != ""
}

type SaleCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type PaymentEntry struct {
	ID              int             `json:"id"`
	Method          PaymentMethod   `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference"`
	CardHolder      string          `json:"card_holder,omitempty"`
	CardHolderPhone string          `json:"card_holder_phone,omitempty"`
	CustomerBank    string          `json:"customer_bank,omitempty"`
	Account         string          `json:"account,omitempty"`
}

type SalePayment struct {
	Method          string          `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference"`
	CardHolder      string          `json:"card_holder"`
	CardHolderPhone string          `json:"card_holder_phone"`
	CustomerBank    string          `json:"customer_bank"`
	Account         string          `json:"account"`
}

type SalePayload struct {
	Customer SaleCustomer  `json:"customer"`
	Lines    []SaleLine    `json:"lines"`
	Payments []SalePayment `json:"payments"`
	Store    string        `json:"store"`
	Note     string        `json:"note,omitempty"`
}

type SaleResponse struct {
	InvoiceNo string        `json:"invoice_no"`
	Payments  []SalePayment `json:"payments,omitempty"`
}

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFlat    DiscountKind = "flat"
)

type Discount struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

type PaymentSummary struct {
	Payable       decimal.Decimal `json:"payable"`
	TotalReceived decimal.Decimal `json:"total_received"`
	Remaining     decimal.Decimal `json:"remaining"`
	Overpay       decimal.Decimal `json:"overpay"`
}

// HeldBill is a parked cart as the sale backend returns it. Rows keep their
// original shape until the line normalizer ingests them.
type HeldBill struct {
	ID       string           `json:"id"`
	Customer *Customer        `json:"customer,omitempty"`
	Items    []map[string]any `json:"items,omitempty"`
	Lines    []map[string]any `json:"lines,omitempty"`
	Discount *Discount        `json:"discount,omitempty"`
	Note     string           `json:"note,omitempty"`
}

func (h HeldBill) Rows() []map[string]any {
	rows := make([]map[string]any, 0, len(h.Items)+len(h.Lines))
	rows = append(rows, h.Items...)
	rows = append(rows, h.Lines...)
	return rows
}

type OpenSessionRequest struct {
	TerminalID string           `json:"terminal_id"`
	Mode       PaymentMode      `json:"mode"`
	CartItems  []map[string]any `json:"cart_items"`
	Discount   *Discount        `json:"discount,omitempty"`
	Note       string           `json:"note,omitempty"`
	Print      bool             `json:"print"`
}

type OpenHeldSessionRequest struct {
	TerminalID string      `json:"terminal_id"`
	Mode       PaymentMode `json:"mode"`
	Print      bool        `json:"print"`
}

type DiscountRequest struct {
	Discount *Discount `json:"discount"`
}

// PaymentPatchRequest is a partial payment row update. Amount accepts a
// number or a string; blank or non-numeric input counts as zero.
type PaymentPatchRequest struct {
	Method          *string `json:"method,omitempty"`
	Amount          any     `json:"amount,omitempty"`
	Reference       *string `json:"reference,omitempty"`
	CardHolder      *string `json:"card_holder,omitempty"`
	CardHolderPhone *string `json:"card_holder_phone,omitempty"`
	CustomerBank    *string `json:"customer_bank,omitempty"`
	Account         *string `json:"account,omitempty"`
}

type FinalizeRequest struct {
	Print    *bool `json:"print,omitempty"`
	Tendered any   `json:"tendered,omitempty"`
}

type PaymentSessionView struct {
	ID             string          `json:"id"`
	TerminalID     string          `json:"terminal_id"`
	Mode           PaymentMode     `json:"mode"`
	State          string          `json:"state"`
	Lines          []CartLine      `json:"lines"`
	Base           decimal.Decimal `json:"base"`
	Discount       *Discount       `json:"discount,omitempty"`
	Summary        PaymentSummary  `json:"summary"`
	Payments       []PaymentEntry  `json:"payments"`
	Note           string          `json:"note,omitempty"`
	PrintOnSuccess bool            `json:"print_on_success"`
	LastError      string          `json:"last_error,omitempty"`
	InvoiceNo      string          `json:"invoice_no,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type FinalizeResponse struct {
	SessionID       string          `json:"session_id"`
	State           string          `json:"state"`
	Message         string          `json:"message"`
	InvoiceNo       string          `json:"invoice_no,omitempty"`
	RedirectPath    string          `json:"redirect_path,omitempty"`
	RedirectDelayMS int64           `json:"redirect_delay_ms"`
	DismissAfterMS  int64           `json:"dismiss_after_ms"`
	Printed         bool            `json:"printed"`
	Charged         decimal.Decimal `json:"charged"`
	Change          decimal.Decimal `json:"change"`
	Payments        []SalePayment   `json:"payments,omitempty"`
}

type FlashResponse struct {
	TerminalID string `json:"terminal_id"`
	Message    string `json:"message,omitempty"`
	Found      bool   `json:"found"`
}

// SaleRecord is the local journal entry for a sale the backend accepted.
type SaleRecord struct {
	InvoiceNo  string          `json:"invoice_no"`
	StoreID    string          `json:"store_id"`
	TerminalID string          `json:"terminal_id"`
	Cashier    string          `json:"cashier"`
	Mode       PaymentMode     `json:"mode"`
	Customer   SaleCustomer    `json:"customer"`
	Lines      []CartLine      `json:"lines"`
	Payments   []SalePayment   `json:"payments"`
	Base       decimal.Decimal `json:"base"`
	Payable    decimal.Decimal `json:"payable"`
	Tendered   decimal.Decimal `json:"tendered"`
	Change     decimal.Decimal `json:"change"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type HardwareReceiptResponse struct {
	InvoiceNo    string `json:"invoice_no"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

// TerminalEvent is pushed to the POS screen of a terminal after a finalize attempt.
type TerminalEvent struct {
	Type            string    `json:"type"`
	TerminalID      string    `json:"terminal_id"`
	Message         string    `json:"message"`
	InvoiceNo       string    `json:"invoice_no,omitempty"`
	RedirectPath    string    `json:"redirect_path,omitempty"`
	RedirectDelayMS int64     `json:"redirect_delay_ms"`
	DismissAfterMS  int64     `json:"dismiss_after_ms"`
	At              time.Time `json:"at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
