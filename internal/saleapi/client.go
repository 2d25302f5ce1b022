package saleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

const GenericFailureMessage = "payment failed: could not update the database. Please try again."

const unreachableMessage = "could not reach the sale backend. Please try again."

const maxBodyBytes = 1 << 20

var (
	ErrSubmissionFailed = errors.New("sale submission failed")
	ErrHeldBillNotFound = errors.New("held bill not found")
	ErrBackendFailed    = errors.New("sale backend request failed")
)

// messageKeys lists where the sale backend puts a human-readable reason, in priority order.
var messageKeys = []string{"detail", "non_field_errors", "payments", "lines", "error"}

// SubmissionError is a rejected or failed create-sale call. Message is safe
// to show to the cashier.
type SubmissionError struct {
	Status  int
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

// BackendError is a failed read from the sale backend. Message is safe to
// show to the cashier.
type BackendError struct {
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendFailed
}

type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

func New(baseURL string, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
	}
}

// CreateSale posts a sale and returns the backend's invoice. It never retries.
func (c *Client) CreateSale(ctx context.Context, payload domain.SalePayload, idempotencyKey string) (domain.SaleResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SaleResponse{}, fmt.Errorf("encode sale payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sales/", bytes.NewReader(body))
	if err != nil {
		return domain.SaleResponse{}, &SubmissionError{Message: GenericFailureMessage, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.SaleResponse{}, &SubmissionError{Message: GenericFailureMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.SaleResponse{}, &SubmissionError{Status: resp.StatusCode, Message: GenericFailureMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ExtractMessage(raw)
		if msg == "" {
			msg = GenericFailureMessage
		}
		return domain.SaleResponse{}, &SubmissionError{
			Status:  resp.StatusCode,
			Message: msg,
			Err:     fmt.Errorf("sale backend responded %d", resp.StatusCode),
		}
	}

	var out domain.SaleResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.SaleResponse{}, &SubmissionError{Status: resp.StatusCode, Message: GenericFailureMessage, Err: err}
	}
	out.InvoiceNo = strings.TrimSpace(out.InvoiceNo)
	if out.InvoiceNo == "" {
		return domain.SaleResponse{}, &SubmissionError{
			Status:  resp.StatusCode,
			Message: GenericFailureMessage,
			Err:     errors.New("sale backend response has no invoice number"),
		}
	}
	return out, nil
}

func (c *Client) FetchHeldBill(ctx context.Context, holdID string) (domain.HeldBill, error) {
	holdID = strings.TrimSpace(holdID)
	if holdID == "" {
		return domain.HeldBill{}, ErrHeldBillNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/held-bills/"+url.PathEscape(holdID)+"/", nil)
	if err != nil {
		return domain.HeldBill{}, err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.HeldBill{}, &BackendError{Message: unreachableMessage, Err: fmt.Errorf("fetch held bill %s: %w", holdID, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.HeldBill{}, ErrHeldBillNotFound
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.HeldBill{}, &BackendError{Status: resp.StatusCode, Message: unreachableMessage, Err: fmt.Errorf("read held bill %s: %w", holdID, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ExtractMessage(raw)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domain.HeldBill{}, &BackendError{Status: resp.StatusCode, Message: msg, Err: fmt.Errorf("fetch held bill %s: status %d", holdID, resp.StatusCode)}
	}

	var bill domain.HeldBill
	if err := json.Unmarshal(raw, &bill); err != nil {
		return domain.HeldBill{}, &BackendError{Status: resp.StatusCode, Message: "the sale backend returned an unreadable held bill", Err: fmt.Errorf("decode held bill %s: %w", holdID, err)}
	}
	if bill.ID == "" {
		bill.ID = holdID
	}
	return bill, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// ExtractMessage pulls the first human-readable reason out of an error body.
// It returns "" when the body carries none.
func ExtractMessage(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, key := range messageKeys {
		if msg := firstMessage(parsed[key]); msg != "" {
			return msg
		}
	}
	return ""
}

func firstMessage(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) == 0 {
			return ""
		}
		return firstMessage(t[0])
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if msg := firstMessage(t[k]); msg != "" {
				return msg
			}
		}
	}
	return ""
}
