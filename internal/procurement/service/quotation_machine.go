package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/ledger"
	"github.com/shopspring/decimal"
)

const (
	entityQuotation     = "quotation"
	entityQuotationLine = "quotation line"
)

// Quotation actions.
const (
	ActionQuote        = "quote"
	ActionForceStatus  = "status_forced"
	ActionCancel       = "cancel"
	ActionUpdate       = "update"
	ActionAutoAdvance  = "auto_advance"
	ActionAutoComplete = "auto_complete"
)

// lineReceipt is the part of a receipt applied to one quotation line.
type lineReceipt struct {
	Line     *entity.QRLine
	Quantity int
}

// distributeReceipt spreads qty over the lines of partID in line order. The whole
// receipt is refused when it exceeds what those lines still expect.
func distributeReceipt(qr *entity.QuotationRequest, partID string, qty int) ([]lineReceipt, error) {
	if qty <= 0 {
		return nil, validation("quantity", "must be positive, got %d", qty)
	}
	var idx []int
	requested, received := 0, 0
	for i := range qr.Lines {
		if qr.Lines[i].PartID != partID {
			continue
		}
		idx = append(idx, i)
		requested += qr.Lines[i].QuantityRequested
		received += qr.Lines[i].QuantityReceived
	}
	if len(idx) == 0 {
		return nil, &NotFoundError{Entity: entityQuotationLine, ID: partID}
	}
	if _, err := ledger.Receive(requested, received, qty); err != nil {
		return nil, err
	}

	var out []lineReceipt
	left := qty
	for _, i := range idx {
		if left == 0 {
			break
		}
		line := &qr.Lines[i]
		applied, _ := ledger.Clamp(line.QuantityRequested, line.QuantityReceived, left)
		if applied == 0 {
			continue
		}
		line.QuantityReceived += applied
		left -= applied
		out = append(out, lineReceipt{Line: line, Quantity: applied})
	}
	return out, nil
}

// settleAfterReceipt derives the system status after a receipt: a fully received
// quotation completes with today's delivery date, otherwise a CREATED one advances
// to SENT. It returns the action taken, or "".
func settleAfterReceipt(qr *entity.QuotationRequest, now time.Time) string {
	if qr.FullyReceived() {
		if qr.Status == entity.QRStatusCompleted {
			return ""
		}
		today := truncateDay(now)
		qr.Status = entity.QRStatusCompleted
		qr.ActualDeliveryDate = &today
		qr.StatusOrigin = entity.StatusOriginSystem
		return ActionAutoComplete
	}
	if qr.Status == entity.QRStatusCreated {
		qr.Status = entity.QRStatusSent
		qr.StatusOrigin = entity.StatusOriginSystem
		return ActionAutoAdvance
	}
	return ""
}

// recalcTotalAmount sums the known line totals into the header.
func recalcTotalAmount(qr *entity.QuotationRequest) {
	total := decimal.Zero
	for _, l := range qr.Lines {
		if l.TotalPrice.Valid {
			total = total.Add(l.TotalPrice.Decimal)
		}
	}
	qr.TotalAmount = total
}

func appendNote(notes string, at time.Time, text string) string {
	entry := fmt.Sprintf("[%s] %s", at.Format("2006-01-02 15:04"), text)
	if strings.TrimSpace(notes) == "" {
		return entry
	}
	return notes + "\n" + entry
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
