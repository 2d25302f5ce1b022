package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

var ErrAmountMismatch = errors.New("amount mismatch")

var hundred = decimal.NewFromInt(100)

type AmountMismatchError struct {
	Payable  decimal.Decimal
	Received decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("total received (%s) must equal the payable amount (%s)", e.Received.StringFixed(2), e.Payable.StringFixed(2))
}

func (e *AmountMismatchError) Unwrap() error {
	return ErrAmountMismatch
}

// RoundingPolicy decides how a payable amount is rounded after discount.
type RoundingPolicy string

const (
	RoundWhole RoundingPolicy = "whole"
	RoundCents RoundingPolicy = "cents"
)

func ParseRoundingPolicy(raw string) (RoundingPolicy, error) {
	switch RoundingPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case RoundWhole:
		return RoundWhole, nil
	case RoundCents:
		return RoundCents, nil
	default:
		return "", fmt.Errorf("unknown rounding policy %q", raw)
	}
}

func (p RoundingPolicy) Apply(amount decimal.Decimal) decimal.Decimal {
	if p == RoundWhole {
		return amount.Round(0)
	}
	return amount.Round(2)
}

// Payable applies a percent or flat discount to base. The discount is capped
// to [0, base] and the result is rounded per policy.
func Payable(base decimal.Decimal, discount *domain.Discount, policy RoundingPolicy) decimal.Decimal {
	if base.IsNegative() {
		base = decimal.Zero
	}
	return policy.Apply(base.Sub(DiscountAmount(base, discount)))
}

func DiscountAmount(base decimal.Decimal, discount *domain.Discount) decimal.Decimal {
	if discount == nil || base.Sign() <= 0 {
		return decimal.Zero
	}
	amount := decimal.Zero
	switch discount.Kind {
	case domain.DiscountPercent:
		amount = base.Mul(discount.Value).Div(hundred)
	case domain.DiscountFlat:
		amount = discount.Value
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(base) {
		return base
	}
	return amount
}

func TotalReceived(amounts []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, amounts...)
}

// Summarize reports what has been received against payable. Remaining never
// goes negative; any excess is reported as overpay.
func Summarize(payable decimal.Decimal, amounts []decimal.Decimal) domain.PaymentSummary {
	received := TotalReceived(amounts)
	remaining := payable.Sub(received).Round(2)
	overpay := decimal.Zero
	if remaining.IsNegative() {
		overpay = remaining.Neg()
		remaining = decimal.Zero
	}
	return domain.PaymentSummary{
		Payable:       payable,
		TotalReceived: received,
		Remaining:     remaining,
		Overpay:       overpay,
	}
}

// RequireExact succeeds only when received matches payable to the cent.
func RequireExact(payable decimal.Decimal, received decimal.Decimal) error {
	if payable.Round(2).Equal(received.Round(2)) {
		return nil
	}
	return &AmountMismatchError{Payable: payable, Received: received}
}

type Charge struct {
	Amount   decimal.Decimal
	Tendered decimal.Decimal
	Change   decimal.Decimal
}

// QuickCharge always charges the due amount. Tendered cash only drives the
// change shown to the cashier. A nil tendered means exact payment.
func QuickCharge(due decimal.Decimal, tendered *decimal.Decimal) Charge {
	if tendered == nil {
		return Charge{Amount: due, Tendered: due, Change: decimal.Zero}
	}
	change := tendered.Sub(due)
	if change.IsNegative() {
		change = decimal.Zero
	}
	return Charge{Amount: due, Tendered: *tendered, Change: change}
}
