package checkout

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/cart"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/payment"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/reconcile"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	ErrNoItems            = errors.New("no items in cart")
	ErrNoCustomer         = errors.New("select a customer before taking a split payment")
	ErrSubmissionInFlight = errors.New("a submission for this sale is already in progress")
	ErrAlreadyFinalized   = errors.New("this sale has already been finalized")
	ErrSessionBusy        = errors.New("payments cannot be edited while the sale is submitting")
	ErrSingleMethodMode   = errors.New("this payment screen takes a single payment; use split payment for more rows")
)

const guestName = "Guest"

type Config struct {
	StoreLabel    string
	Defaults      payment.Defaults
	QuickRounding reconcile.RoundingPolicy
	MultiRounding reconcile.RoundingPolicy
}

type Params struct {
	TerminalID string
	Mode       domain.PaymentMode
	Lines      []domain.CartLine
	Discount   *domain.Discount
	Note       string
	Print      bool
}

// Submission is everything needed to call the sale backend once.
type Submission struct {
	Payload        domain.SalePayload
	IdempotencyKey string
	Charge         reconcile.Charge
	Lines          []domain.CartLine
	Base           decimal.Decimal
	Payable        decimal.Decimal
	Mode           domain.PaymentMode
}

// Session is one open payment screen. All transitions go through the
// session mutex, so a second finalize on the same session is refused rather
// than queued.
type Session struct {
	mu sync.Mutex

	id         string
	terminalID string
	mode       domain.PaymentMode
	storeLabel string
	rounding   reconcile.RoundingPolicy

	lines    []domain.CartLine
	base     decimal.Decimal
	discount *domain.Discount
	payable  decimal.Decimal
	rows     *payment.Rows
	note     string

	printOnSuccess bool
	state          State
	lastError      string
	invoiceNo      string
	updatedAt      time.Time

	// revision numbers distinct payloads; a retry of an unchanged payload
	// reuses the previous idempotency key.
	revision      int
	payloadDigest [sha256.Size]byte
}

func New(id string, params Params, cfg Config) *Session {
	mode := params.Mode
	if !mode.Valid() {
		mode = domain.ModeQuick
	}

	rounding := cfg.QuickRounding
	method := domain.MethodCash
	if mode == domain.ModeMulti {
		rounding = cfg.MultiRounding
		method = domain.MethodCard
	}
	if rounding == "" {
		rounding = reconcile.RoundCents
	}

	lines := make([]domain.CartLine, len(params.Lines))
	copy(lines, params.Lines)

	s := &Session{
		id:             id,
		terminalID:     strings.TrimSpace(params.TerminalID),
		mode:           mode,
		storeLabel:     cfg.StoreLabel,
		rounding:       rounding,
		lines:          lines,
		base:           cart.BaseAmount(lines),
		discount:       params.Discount,
		rows:           payment.NewRows(cfg.Defaults, method),
		note:           strings.TrimSpace(params.Note),
		printOnSuccess: params.Print,
		state:          StateIdle,
		updatedAt:      time.Now().UTC(),
	}
	s.recomputeLocked()
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) TerminalID() string {
	return s.terminalID
}

func (s *Session) Mode() domain.PaymentMode {
	return s.mode
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) AddPayment() (domain.PaymentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return domain.PaymentEntry{}, err
	}
	if s.mode != domain.ModeMulti {
		return domain.PaymentEntry{}, ErrSingleMethodMode
	}
	return s.rows.Add(), nil
}

func (s *Session) UpdatePayment(id int, patch payment.Patch) (domain.PaymentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return domain.PaymentEntry{}, err
	}
	return s.rows.Update(id, patch)
}

func (s *Session) RemovePayment(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	return s.rows.Remove(id)
}

func (s *Session) SetDiscount(discount *domain.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.discount = discount
	s.recomputeLocked()
	return nil
}

func (s *Session) SetPrint(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printOnSuccess = enabled
}

// TakePrintIntent returns the print intent and clears it.
func (s *Session) TakePrintIntent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent := s.printOnSuccess
	s.printOnSuccess = false
	return intent
}

// BeginValidation is the only way into the submit path. It succeeds from
// idle or failed and refuses every other state.
func (s *Session) BeginValidation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle, StateFailed:
		s.state = StateValidating
		s.lastError = ""
		s.updatedAt = time.Now().UTC()
		return nil
	case StateSucceeded:
		return ErrAlreadyFinalized
	default:
		return ErrSubmissionInFlight
	}
}

// Prepare validates the session and builds the sale payload. On success the
// session moves to submitting; on failure it returns to idle untouched.
func (s *Session) Prepare(customer *domain.Customer, tendered *decimal.Decimal) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateValidating {
		return Submission{}, fmt.Errorf("prepare called in state %s", s.state)
	}

	sub, err := s.buildLocked(customer, tendered)
	if err != nil {
		s.state = StateIdle
		s.lastError = err.Error()
		return Submission{}, err
	}
	sub.IdempotencyKey = s.idempotencyKeyLocked(sub.Payload)
	s.state = StateSubmitting
	return sub, nil
}

func (s *Session) Complete(resp domain.SaleResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSucceeded
	s.invoiceNo = resp.InvoiceNo
	s.lastError = ""
	s.updatedAt = time.Now().UTC()
}

// Fail records a submission failure. Cart, rows and discount are kept so the
// cashier can correct and retry by hand.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	if err != nil {
		s.lastError = err.Error()
	}
	s.updatedAt = time.Now().UTC()
}

// Abort returns a session stuck in validating back to idle.
func (s *Session) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateValidating {
		s.state = StateIdle
	}
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *Session) Summary() domain.PaymentSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reconcile.Summarize(s.payable, s.rows.Amounts())
}

func (s *Session) View() domain.PaymentSessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.CartLine, len(s.lines))
	copy(lines, s.lines)

	return domain.PaymentSessionView{
		ID:             s.id,
		TerminalID:     s.terminalID,
		Mode:           s.mode,
		State:          string(s.state),
		Lines:          lines,
		Base:           s.base,
		Discount:       s.discount,
		Summary:        reconcile.Summarize(s.payable, s.rows.Amounts()),
		Payments:       s.rows.Entries(),
		Note:           s.note,
		PrintOnSuccess: s.printOnSuccess,
		LastError:      s.lastError,
		InvoiceNo:      s.invoiceNo,
		UpdatedAt:      s.updatedAt,
	}
}

func (s *Session) editableLocked() error {
	switch s.state {
	case StateValidating, StateSubmitting:
		return ErrSessionBusy
	case StateSucceeded:
		return ErrAlreadyFinalized
	case StateFailed:
		s.state = StateIdle
	}
	s.updatedAt = time.Now().UTC()
	return nil
}

// recomputeLocked refreshes payable. Single-payment screens keep their one
// row in step with the due amount.
func (s *Session) recomputeLocked() {
	s.payable = reconcile.Payable(s.base, s.discount, s.rounding)
	if s.mode == domain.ModeMulti {
		return
	}
	entries := s.rows.Entries()
	due := s.payable
	_, _ = s.rows.Update(entries[0].ID, payment.Patch{Amount: &due})
}

func (s *Session) buildLocked(customer *domain.Customer, tendered *decimal.Decimal) (Submission, error) {
	lines := cart.Lines(s.lines)
	if len(lines) == 0 {
		return Submission{}, ErrNoItems
	}

	var payments []domain.SalePayment
	var charge reconcile.Charge

	entries := s.rows.Entries()
	if s.mode == domain.ModeMulti {
		if !customer.Identified() {
			return Submission{}, ErrNoCustomer
		}
		payments = make([]domain.SalePayment, 0, len(entries))
		sent := make([]decimal.Decimal, 0, len(entries))
		for _, entry := range entries {
			amt := entry.Amount.Round(2)
			sent = append(sent, amt)
			payments = append(payments, toSalePayment(entry, amt))
		}
		// the gate checks exactly what goes on the wire
		received := reconcile.TotalReceived(sent)
		if err := reconcile.RequireExact(s.payable, received); err != nil {
			return Submission{}, err
		}
		charge = reconcile.Charge{Amount: received, Tendered: received, Change: decimal.Zero}
	} else {
		if tendered != nil && tendered.LessThan(s.payable) {
			return Submission{}, &reconcile.AmountMismatchError{Payable: s.payable, Received: *tendered}
		}
		charge = reconcile.QuickCharge(s.payable, tendered)
		first := entries[0]
		p := toSalePayment(first, charge.Amount)
		if tendered != nil {
			p.Reference = joinReference(p.Reference, fmt.Sprintf("Tendered %s, Change %s", charge.Tendered.StringFixed(2), charge.Change.StringFixed(2)))
		}
		payments = []domain.SalePayment{p}
	}

	saleLines := make([]domain.CartLine, len(s.lines))
	copy(saleLines, s.lines)

	return Submission{
		Payload: domain.SalePayload{
			Customer: toSaleCustomer(customer),
			Lines:    lines,
			Payments: payments,
			Store:    s.storeLabel,
			Note:     s.note,
		},
		Charge:  charge,
		Lines:   saleLines,
		Base:    s.base,
		Payable: s.payable,
		Mode:    s.mode,
	}, nil
}

func (s *Session) idempotencyKeyLocked(payload domain.SalePayload) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", payload))
	}
	digest := sha256.Sum256(raw)
	if s.revision == 0 || digest != s.payloadDigest {
		s.revision++
		s.payloadDigest = digest
	}
	return fmt.Sprintf("%s-%d", s.id, s.revision)
}

func toSalePayment(entry domain.PaymentEntry, amount decimal.Decimal) domain.SalePayment {
	return domain.SalePayment{
		Method:          string(entry.Method),
		Amount:          amount,
		Reference:       entry.Reference,
		CardHolder:      entry.CardHolder,
		CardHolderPhone: entry.CardHolderPhone,
		CustomerBank:    entry.CustomerBank,
		Account:         entry.Account,
	}
}

func toSaleCustomer(c *domain.Customer) domain.SaleCustomer {
	if c == nil {
		return domain.SaleCustomer{Name: guestName}
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = guestName
	}
	return domain.SaleCustomer{
		Name:  name,
		Phone: strings.TrimSpace(c.Phone),
		Email: strings.TrimSpace(c.Email),
	}
}

func joinReference(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}
