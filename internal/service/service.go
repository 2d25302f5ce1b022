package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/archive"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/cache"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/cart"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/checkout"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/metrics"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/outcome"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/payment"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/receipt"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/store"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/xid"
)

var (
	ErrSessionNotFound = fmt.Errorf("payment session %w", store.ErrNotFound)
	ErrTerminalMissing = fmt.Errorf("%w: terminal_id is required", store.ErrInvalidInput)
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// SaleBackend is the remote system of record for sales and held bills.
type SaleBackend interface {
	CreateSale(ctx context.Context, payload domain.SalePayload, idempotencyKey string) (domain.SaleResponse, error)
	FetchHeldBill(ctx context.Context, holdID string) (domain.HeldBill, error)
}

type Options struct {
	StoreID     string
	Checkout    checkout.Config
	SessionTTL  time.Duration
	CustomerTTL time.Duration
}

type Service struct {
	repo      store.Repository
	backend   SaleBackend
	terminals cache.TerminalCache
	presenter *outcome.Presenter
	renderer  receipt.Renderer
	archive   archive.Archive
	metrics   *metrics.Metrics
	opts      Options

	mu       sync.Mutex
	sessions map[string]*checkout.Session
	now      func() time.Time
}

func New(
	repo store.Repository,
	backend SaleBackend,
	terminals cache.TerminalCache,
	presenter *outcome.Presenter,
	renderer receipt.Renderer,
	receiptArchive archive.Archive,
	m *metrics.Metrics,
	opts Options,
) *Service {
	if opts.StoreID == "" {
		opts.StoreID = "main-store"
	}
	if opts.Checkout.StoreLabel == "" {
		opts.Checkout.StoreLabel = opts.StoreID
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.CustomerTTL <= 0 {
		opts.CustomerTTL = 4 * time.Hour
	}
	if receiptArchive == nil {
		receiptArchive = archive.Noop{}
	}
	if m == nil {
		m = metrics.New()
	}

	return &Service{
		repo:      repo,
		backend:   backend,
		terminals: terminals,
		presenter: presenter,
		renderer:  renderer,
		archive:   receiptArchive,
		metrics:   m,
		opts:      opts,
		sessions:  make(map[string]*checkout.Session),
		now:       time.Now,
	}
}

func (s *Service) StoreID() string {
	return s.opts.StoreID
}

func (s *Service) OpenSession(ctx context.Context, req domain.OpenSessionRequest) (domain.PaymentSessionView, error) {
	mode, err := parseMode(req.Mode)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	terminalID := strings.TrimSpace(req.TerminalID)
	if terminalID == "" {
		return domain.PaymentSessionView{}, ErrTerminalMissing
	}
	if err := validateDiscount(req.Discount); err != nil {
		return domain.PaymentSessionView{}, err
	}

	sess := s.register(checkout.Params{
		TerminalID: terminalID,
		Mode:       mode,
		Lines:      cart.Ingest(req.CartItems),
		Discount:   req.Discount,
		Note:       req.Note,
		Print:      req.Print,
	})
	view := sess.View()
	s.logAudit(ctx, "", "session_open", "payment_session", view.ID, fmt.Sprintf("terminal=%s,mode=%s,lines=%d", terminalID, mode, len(view.Lines)))
	return view, nil
}

// OpenSessionFromHeldBill resumes a parked bill from the sale backend. A
// customer attached to the bill becomes the terminal's selected customer.
func (s *Service) OpenSessionFromHeldBill(ctx context.Context, holdID string, req domain.OpenHeldSessionRequest) (domain.PaymentSessionView, error) {
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return domain.PaymentSessionView{}, fmt.Errorf("%w: hold id is required", store.ErrInvalidInput)
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	terminalID := strings.TrimSpace(req.TerminalID)
	if terminalID == "" {
		return domain.PaymentSessionView{}, ErrTerminalMissing
	}

	bill, err := s.backend.FetchHeldBill(ctx, holdID)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	if bill.Customer.Identified() {
		if err := s.terminals.SetCustomer(ctx, terminalID, *bill.Customer, s.opts.CustomerTTL); err != nil {
			log.Printf("[service] WARN: failed to select held bill customer terminal=%s: %v", terminalID, err)
		}
	}

	sess := s.register(checkout.Params{
		TerminalID: terminalID,
		Mode:       mode,
		Lines:      cart.Ingest(bill.Rows()),
		Discount:   bill.Discount,
		Note:       bill.Note,
		Print:      req.Print,
	})
	view := sess.View()
	s.logAudit(ctx, "", "session_resume", "payment_session", view.ID, "hold="+holdID)
	return view, nil
}

func (s *Service) GetSession(_ context.Context, id string) (domain.PaymentSessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	return sess.View(), nil
}

// CloseSession drops a session whose modal was dismissed. A session that is
// mid-submission cannot be closed.
func (s *Service) CloseSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	switch sess.State() {
	case checkout.StateValidating, checkout.StateSubmitting:
		return checkout.ErrSessionBusy
	}
	delete(s.sessions, id)
	return nil
}

func (s *Service) SetDiscount(_ context.Context, id string, discount *domain.Discount) (domain.PaymentSessionView, error) {
	if err := validateDiscount(discount); err != nil {
		return domain.PaymentSessionView{}, err
	}
	sess, err := s.session(id)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	if err := sess.SetDiscount(discount); err != nil {
		return domain.PaymentSessionView{}, err
	}
	return sess.View(), nil
}

func (s *Service) AddPayment(_ context.Context, id string) (domain.PaymentSessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	if _, err := sess.AddPayment(); err != nil {
		return domain.PaymentSessionView{}, err
	}
	return sess.View(), nil
}

func (s *Service) UpdatePayment(_ context.Context, id string, rowID int, req domain.PaymentPatchRequest) (domain.PaymentSessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	if _, err := sess.UpdatePayment(rowID, toPatch(req)); err != nil {
		return domain.PaymentSessionView{}, err
	}
	return sess.View(), nil
}

func (s *Service) RemovePayment(_ context.Context, id string, rowID int) (domain.PaymentSessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.PaymentSessionView{}, err
	}
	if err := sess.RemovePayment(rowID); err != nil {
		return domain.PaymentSessionView{}, err
	}
	return sess.View(), nil
}

func (s *Service) SelectCustomer(ctx context.Context, terminalID string, customer domain.Customer) (domain.Customer, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return domain.Customer{}, ErrTerminalMissing
	}
	customer.ID = strings.TrimSpace(customer.ID)
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Email = strings.TrimSpace(customer.Email)
	if !customer.Identified() {
		return domain.Customer{}, fmt.Errorf("%w: customer needs an id, phone or name", store.ErrInvalidInput)
	}
	if err := s.terminals.SetCustomer(ctx, terminalID, customer, s.opts.CustomerTTL); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, terminalID string) (*domain.Customer, error) {
	customer, ok, err := s.terminals.GetCustomer(ctx, strings.TrimSpace(terminalID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return customer, nil
}

func (s *Service) ClearCustomer(ctx context.Context, terminalID string) error {
	return s.terminals.ClearCustomer(ctx, strings.TrimSpace(terminalID))
}

// TakeFlash returns the one-shot message left for the terminal and consumes it.
func (s *Service) TakeFlash(ctx context.Context, terminalID string) (domain.FlashResponse, error) {
	terminalID = strings.TrimSpace(terminalID)
	msg, ok, err := s.terminals.TakeFlash(ctx, terminalID)
	if err != nil {
		return domain.FlashResponse{}, err
	}
	return domain.FlashResponse{TerminalID: terminalID, Message: msg, Found: ok}, nil
}

// Finalize validates the session, submits the sale once and presents the
// outcome. On error the returned response still carries the message shown
// to the cashier.
func (s *Service) Finalize(ctx context.Context, id string, req domain.FinalizeRequest) (domain.FinalizeResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.FinalizeResponse{}, err
	}
	mode := string(sess.Mode())

	if err := sess.BeginValidation(); err != nil {
		s.metrics.ObserveFinalize(mode, "refused")
		return domain.FinalizeResponse{SessionID: id, State: string(sess.State()), Message: outcome.Message(err)}, err
	}
	if req.Print != nil {
		sess.SetPrint(*req.Print)
	}
	printIntent := sess.TakePrintIntent()

	var tendered *decimal.Decimal
	if req.Tendered != nil {
		amount := payment.ParseAmount(req.Tendered)
		tendered = &amount
	}

	customer, _, err := s.terminals.GetCustomer(ctx, sess.TerminalID())
	if err != nil {
		log.Printf("[service] WARN: failed to read selected customer terminal=%s: %v", sess.TerminalID(), err)
		customer = nil
	}

	sub, err := sess.Prepare(customer, tendered)
	if err != nil {
		res := s.presenter.Failure(sess.TerminalID(), err)
		s.metrics.ObserveFinalize(mode, "rejected")
		s.logAudit(ctx, "", "finalize_rejected", "payment_session", id, err.Error())
		return domain.FinalizeResponse{SessionID: id, State: string(sess.State()), Message: res.Message}, err
	}

	// The backend may commit even if the caller goes away; the client timeout bounds the call.
	started := s.now()
	resp, err := s.backend.CreateSale(context.WithoutCancel(ctx), sub.Payload, sub.IdempotencyKey)
	s.metrics.ObserveSubmission(s.now().Sub(started))
	if err != nil {
		sess.Fail(err)
		res := s.presenter.Failure(sess.TerminalID(), err)
		s.metrics.ObserveFinalize(mode, "failed")
		s.logAudit(ctx, "", "finalize_failed", "payment_session", id, fmt.Sprintf("key=%s,err=%v", sub.IdempotencyKey, err))
		return domain.FinalizeResponse{SessionID: id, State: string(sess.State()), Message: res.Message}, err
	}
	sess.Complete(resp)

	record := s.saleRecord(ctx, sess.TerminalID(), sub, resp)
	if err := s.repo.SaveSale(ctx, record); err != nil {
		log.Printf("[service] WARN: failed to journal sale invoice=%s: %v", record.InvoiceNo, err)
	}
	s.archiveReceipt(ctx, record)

	res := s.presenter.Success(ctx, record, resp, printIntent)
	s.metrics.ObserveFinalize(mode, "succeeded")
	s.logAudit(ctx, "", "finalize_ok", "sale", record.InvoiceNo, fmt.Sprintf("session=%s,mode=%s,payable=%s", id, mode, record.Payable.StringFixed(2)))

	return domain.FinalizeResponse{
		SessionID:       id,
		State:           string(sess.State()),
		Message:         res.Message,
		InvoiceNo:       res.InvoiceNo,
		RedirectPath:    res.RedirectPath,
		RedirectDelayMS: res.RedirectDelayMS,
		DismissAfterMS:  res.DismissAfterMS,
		Printed:         res.Printed,
		Charged:         sub.Charge.Amount,
		Change:          sub.Charge.Change,
		Payments:        record.Payments,
	}, nil
}

func (s *Service) ReceiptESCPOS(ctx context.Context, invoiceNo string) (domain.HardwareReceiptResponse, error) {
	record, err := s.findSale(ctx, invoiceNo)
	if err != nil {
		return domain.HardwareReceiptResponse{}, err
	}
	data, preview := s.renderer.ESCPOS(*record)
	return domain.HardwareReceiptResponse{
		InvoiceNo:    record.InvoiceNo,
		EscposBase64: base64.StdEncoding.EncodeToString(data),
		PreviewText:  preview,
		FileName:     receipt.FileName(*record, "bin"),
	}, nil
}

func (s *Service) ReceiptPDF(ctx context.Context, invoiceNo string) ([]byte, string, error) {
	record, err := s.findSale(ctx, invoiceNo)
	if err != nil {
		return nil, "", err
	}
	data, err := s.renderer.PDF(*record)
	if err != nil {
		return nil, "", err
	}
	return data, receipt.FileName(*record, "pdf"), nil
}

func (s *Service) ListSales(ctx context.Context, date string, limit int) ([]domain.SaleRecord, error) {
	from, to, err := dayWindow(date, s.now())
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListSales(ctx, s.opts.StoreID, from, to, limit)
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if storeID == "" {
		storeID = s.opts.StoreID
	}
	if limit < 1 {
		limit = 100
	}
	from, to, err := dayWindow(date, s.now())
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

// SweepExpired drops idle sessions older than the session TTL. Sessions that
// are mid-submission are kept.
func (s *Service) SweepExpired() int {
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		switch sess.State() {
		case checkout.StateValidating, checkout.StateSubmitting:
			continue
		}
		if sess.UpdatedAt().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				log.Printf("[service] swept %d expired payment sessions", n)
			}
		}
	}
}

func (s *Service) register(params checkout.Params) *checkout.Session {
	sess := checkout.New(xid.New("ps"), params, s.opts.Checkout)
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	return sess
}

func (s *Service) session(id string) (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) findSale(ctx context.Context, invoiceNo string) (*domain.SaleRecord, error) {
	invoiceNo = strings.TrimSpace(invoiceNo)
	if invoiceNo == "" {
		return nil, fmt.Errorf("%w: invoice number is required", store.ErrInvalidInput)
	}
	return s.repo.FindSaleByInvoice(ctx, s.opts.StoreID, invoiceNo)
}

func (s *Service) saleRecord(ctx context.Context, terminalID string, sub checkout.Submission, resp domain.SaleResponse) domain.SaleRecord {
	cashier := "system"
	if actor, ok := ActorFromContext(ctx); ok {
		cashier = actor.Username
	}
	return domain.SaleRecord{
		InvoiceNo:  resp.InvoiceNo,
		StoreID:    s.opts.StoreID,
		TerminalID: terminalID,
		Cashier:    cashier,
		Mode:       sub.Mode,
		Customer:   sub.Payload.Customer,
		Lines:      sub.Lines,
		Payments:   sub.Payload.Payments,
		Base:       sub.Base,
		Payable:    sub.Payable,
		Tendered:   sub.Charge.Tendered,
		Change:     sub.Charge.Change,
		Note:       sub.Payload.Note,
		CreatedAt:  s.now().UTC(),
	}
}

func (s *Service) archiveReceipt(ctx context.Context, record domain.SaleRecord) {
	if _, ok := s.archive.(archive.Noop); ok {
		return
	}
	data, err := s.renderer.PDF(record)
	if err != nil {
		log.Printf("[archive] WARN: failed to render receipt invoice=%s: %v", record.InvoiceNo, err)
		return
	}
	key := archive.ReceiptKey(record.StoreID, record.InvoiceNo, record.CreatedAt)
	if err := s.archive.Put(ctx, key, data, "application/pdf"); err != nil {
		log.Printf("[archive] WARN: failed to upload receipt invoice=%s: %v", record.InvoiceNo, err)
	}
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.opts.StoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func parseMode(mode domain.PaymentMode) (domain.PaymentMode, error) {
	mode = domain.PaymentMode(strings.ToLower(strings.TrimSpace(string(mode))))
	if mode == "" {
		return domain.ModeQuick, nil
	}
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unknown payment mode %q", store.ErrInvalidInput, mode)
	}
	return mode, nil
}

func validateDiscount(discount *domain.Discount) error {
	if discount == nil {
		return nil
	}
	switch discount.Kind {
	case domain.DiscountPercent:
		if discount.Value.IsNegative() || discount.Value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: percent discount must be between 0 and 100", store.ErrInvalidInput)
		}
	case domain.DiscountFlat:
		if discount.Value.IsNegative() {
			return fmt.Errorf("%w: flat discount cannot be negative", store.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown discount kind %q", store.ErrInvalidInput, discount.Kind)
	}
	return nil
}

func toPatch(req domain.PaymentPatchRequest) payment.Patch {
	patch := payment.Patch{
		Reference:       req.Reference,
		CardHolder:      req.CardHolder,
		CardHolderPhone: req.CardHolderPhone,
		CustomerBank:    req.CustomerBank,
		Account:         req.Account,
	}
	if req.Method != nil {
		method := domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(*req.Method)))
		patch.Method = &method
	}
	if req.Amount != nil {
		amount := payment.ParseAmount(req.Amount)
		patch.Amount = &amount
	}
	return patch
}

func dayWindow(date string, now time.Time) (time.Time, time.Time, error) {
	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = now.UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		from = parsed.UTC()
	}
	return from, from.Add(24 * time.Hour), nil
}
