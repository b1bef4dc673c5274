// Package payments implements the payment ledger embedded in a
// verification: fee derivation from the urgency tier, append-only payment
// history, and the derived ledger status. All functions are pure state
// transforms; persistence belongs to the caller.
package payments

import (
	"fmt"
	"time"

	"land-registry/verification-portal/verification-portal-backend/internal/apperr"
)

// Status is the derived payment status of a ledger. It is never set
// directly: paid iff the cumulative amount covers the total, partial iff
// something but not everything was paid, pending otherwise. Waived and
// refunded are explicit administrative outcomes.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPartial  Status = "partial"
	StatusPaid     Status = "paid"
	StatusRefunded Status = "refunded"
	StatusWaived   Status = "waived"
)

// Method enumerates accepted payment methods.
type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodOnline       Method = "online"
	MethodCash         Method = "cash"
	MethodCheck        Method = "check"
	MethodMobileMoney  Method = "mobile_money"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodBankTransfer, MethodOnline, MethodCash, MethodCheck, MethodMobileMoney:
		return true
	}
	return false
}

// Fee schedule. The base fee applies to every verification; express and
// urgent requests carry a surcharge.
const (
	BaseFee          int64 = 5000
	ExpressSurcharge int64 = 10000
	UrgentSurcharge  int64 = 25000
)

// Entry is one payment in the append-only history.
type Entry struct {
	Amount    int64     `json:"amount"`
	Date      time.Time `json:"date"`
	Method    Method    `json:"method"`
	Reference string    `json:"reference"`
}

// Ledger is the payment sub-record of a verification.
type Ledger struct {
	VerificationFee int64      `json:"verification_fee"`
	ExpressCharge   int64      `json:"express_charge"`
	TotalAmount     int64      `json:"total_amount"`
	Status          Status     `json:"status"`
	History         []Entry    `json:"history"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	RefundAmount    int64      `json:"refund_amount,omitempty"`
	RefundReason    string     `json:"refund_reason,omitempty"`
	RefundDate      *time.Time `json:"refund_date,omitempty"`
	WaiveReason     string     `json:"waive_reason,omitempty"`
}

// SurchargeFor returns the urgency surcharge on top of the base fee.
func SurchargeFor(urgency string) int64 {
	switch urgency {
	case "express":
		return ExpressSurcharge
	case "urgent":
		return UrgentSurcharge
	default:
		return 0
	}
}

// NewLedger builds the ledger for a new verification, with the total
// fixed at creation from the urgency tier.
func NewLedger(urgency string) Ledger {
	surcharge := SurchargeFor(urgency)
	return Ledger{
		VerificationFee: BaseFee,
		ExpressCharge:   surcharge,
		TotalAmount:     BaseFee + surcharge,
		Status:          StatusPending,
	}
}

// CumulativePaid sums the payment history.
func (l *Ledger) CumulativePaid() int64 {
	var total int64
	for _, e := range l.History {
		total += e.Amount
	}
	return total
}

// Record appends a payment entry and recomputes the derived status.
// It reports whether this payment settled the ledger (pending or partial
// before, paid after), which is the caller's cue to start the SLA clock.
func (l *Ledger) Record(amount int64, method Method, reference string, now time.Time) (settled bool, err error) {
	if amount <= 0 {
		return false, fmt.Errorf("payment of %d: %w", amount, apperr.ErrInvalidAmount)
	}
	if l.Status == StatusRefunded || l.Status == StatusWaived {
		return false, fmt.Errorf("ledger is %s: %w", l.Status, apperr.ErrInvalidState)
	}

	wasPaid := l.Status == StatusPaid
	l.History = append(l.History, Entry{
		Amount:    amount,
		Date:      now,
		Method:    method,
		Reference: reference,
	})
	l.derive()

	if l.Status == StatusPaid && l.PaidAt == nil {
		l.PaidAt = &now
	}
	return !wasPaid && l.Status == StatusPaid, nil
}

// Refund marks a fully paid ledger refunded. Any other state is illegal.
func (l *Ledger) Refund(amount int64, reason string, now time.Time) error {
	if l.Status != StatusPaid {
		return fmt.Errorf("refund on %s ledger: %w", l.Status, apperr.ErrInvalidState)
	}
	l.Status = StatusRefunded
	l.RefundAmount = amount
	l.RefundReason = reason
	l.RefundDate = &now
	return nil
}

// Waive marks the fee waived. Only legal before any payment was taken.
func (l *Ledger) Waive(reason string) error {
	if l.Status != StatusPending || len(l.History) > 0 {
		return fmt.Errorf("waive on %s ledger: %w", l.Status, apperr.ErrInvalidState)
	}
	l.Status = StatusWaived
	l.WaiveReason = reason
	return nil
}

// derive recomputes Status from the history. Refunded and waived are
// sticky and never recomputed.
func (l *Ledger) derive() {
	if l.Status == StatusRefunded || l.Status == StatusWaived {
		return
	}
	paid := l.CumulativePaid()
	switch {
	case paid >= l.TotalAmount:
		l.Status = StatusPaid
	case paid > 0:
		l.Status = StatusPartial
	default:
		l.Status = StatusPending
	}
}
