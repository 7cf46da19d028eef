// Package ledger holds the quantity arithmetic shared by requisition and quotation lines.
// Every function is pure; callers reject negative quantities before calling in.
package ledger

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
)

// ErrOverReceipt is the sentinel behind OverReceiptError.
var ErrOverReceipt = errors.New("over receipt")

// OverReceiptError reports a receipt that would push the received quantity past its limit
// (ordered quantity for requisition lines, requested quantity for quotation lines).
type OverReceiptError struct {
	Limit    int `json:"limit"`
	Received int `json:"received"`
	Quantity int `json:"quantity"`
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("receiving %d would exceed limit %d (already received %d)", e.Quantity, e.Limit, e.Received)
}

func (e *OverReceiptError) Unwrap() error {
	return ErrOverReceipt
}

// Remaining returns requested-received, clamped at zero.
func Remaining(requested, received int) int {
	if received >= requested {
		return 0
	}
	return requested - received
}

// IsOverReceipt reports whether received exceeds limit.
func IsOverReceipt(limit, received int) bool {
	return received > limit
}

// ReceivePercentage returns received/requested*100, or 0 when nothing was requested.
func ReceivePercentage(requested, received int) float64 {
	if requested <= 0 {
		return 0
	}
	return float64(received) / float64(requested) * 100
}

// DeriveLineStatus maps ordered/received quantities to a line status.
func DeriveLineStatus(ordered, received int) string {
	switch {
	case ordered <= 0:
		return entity.LineStatusPending
	case received >= ordered:
		return entity.LineStatusReceived
	case received > 0:
		return entity.LineStatusPartiallyReceived
	default:
		return entity.LineStatusOrdered
	}
}

// Receive adds qty to received and returns the new total, or an *OverReceiptError
// when the result would exceed limit.
func Receive(limit, received, qty int) (int, error) {
	next := received + qty
	if IsOverReceipt(limit, next) {
		return received, &OverReceiptError{Limit: limit, Received: received, Quantity: qty}
	}
	return next, nil
}

// Clamp returns how much of qty fits under limit and whether the rest was cut off.
func Clamp(limit, received, qty int) (applied int, over bool) {
	room := Remaining(limit, received)
	if qty > room {
		return room, true
	}
	return qty, false
}
