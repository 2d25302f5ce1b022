package outcome

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/cache"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/checkout"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/receipt"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/reconcile"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/saleapi"
)

const (
	EventSucceeded = "payment_succeeded"
	EventFailed    = "payment_failed"
)

const (
	msgNoItems        = "No items in cart"
	msgNoCustomer     = "Select a customer before taking a split payment"
	msgAmountMismatch = "Payments total must equal payable amount."
)

// Publisher receives terminal events for the POS screen.
type Publisher interface {
	Publish(evt domain.TerminalEvent)
}

type Config struct {
	RedirectPath       string
	DismissAfter       time.Duration
	MultiRedirectDelay time.Duration
	FlashTTL           time.Duration
}

type Presenter struct {
	cache     cache.TerminalCache
	printer   receipt.Printer
	renderer  receipt.Renderer
	publisher Publisher
	cfg       Config
	now       func() time.Time
}

func NewPresenter(terminals cache.TerminalCache, printer receipt.Printer, renderer receipt.Renderer, publisher Publisher, cfg Config) *Presenter {
	if cfg.RedirectPath == "" {
		cfg.RedirectPath = "/pos"
	}
	if cfg.DismissAfter <= 0 {
		cfg.DismissAfter = 2 * time.Second
	}
	if cfg.FlashTTL <= 0 {
		cfg.FlashTTL = time.Minute
	}
	if printer == nil {
		printer = receipt.NullPrinter{}
	}
	return &Presenter{
		cache:     terminals,
		printer:   printer,
		renderer:  renderer,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

type Result struct {
	Message         string
	InvoiceNo       string
	RedirectPath    string
	RedirectDelayMS int64
	DismissAfterMS  int64
	Printed         bool
}

// Success reports an accepted sale: prints when asked, deselects the
// customer, leaves a one-shot flash for the redirect target and notifies the
// terminal. Side-effect failures are logged and never undo the sale.
func (p *Presenter) Success(ctx context.Context, record domain.SaleRecord, resp domain.SaleResponse, printReceipt bool) Result {
	message := SuccessMessage(resp)
	res := Result{
		Message:        message,
		InvoiceNo:      resp.InvoiceNo,
		RedirectPath:   p.cfg.RedirectPath,
		DismissAfterMS: p.cfg.DismissAfter.Milliseconds(),
	}
	if record.Mode == domain.ModeMulti {
		res.RedirectDelayMS = p.cfg.MultiRedirectDelay.Milliseconds()
	}

	if printReceipt {
		data, _ := p.renderer.ESCPOS(record)
		if err := p.printer.Print(ctx, data); err != nil {
			log.Printf("[outcome] WARN: receipt print failed for %s: %v", resp.InvoiceNo, err)
			res.Message = message + " (receipt not printed: " + err.Error() + ")"
		} else {
			res.Printed = true
		}
	}

	if err := p.cache.ClearCustomer(ctx, record.TerminalID); err != nil {
		log.Printf("[outcome] WARN: clear customer for terminal %s: %v", record.TerminalID, err)
	}
	if err := p.cache.SetFlash(ctx, record.TerminalID, res.Message, p.cfg.FlashTTL); err != nil {
		log.Printf("[outcome] WARN: set flash for terminal %s: %v", record.TerminalID, err)
	}

	p.publish(domain.TerminalEvent{
		Type:            EventSucceeded,
		TerminalID:      record.TerminalID,
		Message:         res.Message,
		InvoiceNo:       res.InvoiceNo,
		RedirectPath:    res.RedirectPath,
		RedirectDelayMS: res.RedirectDelayMS,
		DismissAfterMS:  res.DismissAfterMS,
	})
	return res
}

// Failure reports a blocked or rejected finalize. Nothing is cleared so the
// cashier can correct the sale and retry.
func (p *Presenter) Failure(terminalID string, err error) Result {
	res := Result{Message: Message(err)}
	p.publish(domain.TerminalEvent{
		Type:       EventFailed,
		TerminalID: terminalID,
		Message:    res.Message,
	})
	return res
}

func (p *Presenter) publish(evt domain.TerminalEvent) {
	if p.publisher == nil || evt.TerminalID == "" {
		return
	}
	evt.At = p.now().UTC()
	p.publisher.Publish(evt)
}

func SuccessMessage(resp domain.SaleResponse) string {
	message := "Payment successful. Invoice No: " + resp.InvoiceNo
	for _, payment := range resp.Payments {
		if ref := strings.TrimSpace(payment.Reference); ref != "" {
			return fmt.Sprintf("%s (Ref: %s)", message, ref)
		}
	}
	return message
}

// Message turns a finalize error into the text shown to the cashier.
func Message(err error) string {
	var submission *saleapi.SubmissionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, checkout.ErrNoItems):
		return msgNoItems
	case errors.Is(err, checkout.ErrNoCustomer):
		return msgNoCustomer
	case errors.Is(err, reconcile.ErrAmountMismatch):
		return msgAmountMismatch
	case errors.As(err, &submission):
		if submission.Message != "" {
			return submission.Message
		}
		return saleapi.GenericFailureMessage
	case errors.Is(err, checkout.ErrSubmissionInFlight), errors.Is(err, checkout.ErrAlreadyFinalized):
		return err.Error()
	default:
		return saleapi.GenericFailureMessage
	}
}
