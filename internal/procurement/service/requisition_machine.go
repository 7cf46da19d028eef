package service

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/ledger"
)

const (
	entityRequisition     = "requisition"
	entityRequisitionLine = "requisition line"
)

// Requisition actions, as recorded in the activity log and reported in transition errors.
const (
	ActionCreate         = "create"
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionEdit           = "edit"
	ActionSendToPurchase = "send_to_purchase"
	ActionComplete       = "complete"
	ActionDelete         = "delete"
	ActionOrder          = "order"
	ActionReceive        = "receive"
)

func requireSubmitted(pr *entity.PurchaseRequisition, action string) error {
	if pr.Status != entity.PRStatusSubmitted {
		return invalidTransition(entityRequisition, pr.Status, action, entity.PRStatusSubmitted)
	}
	return nil
}

// applyReview records a decision on a SUBMITTED requisition. Approval moves it to
// APPROVED; rejection leaves it SUBMITTED so it can be edited and resubmitted.
func applyReview(pr *entity.PurchaseRequisition, outcome string, reviewer *entity.User, notes string, at time.Time) error {
	action := ActionApprove
	if outcome == entity.ApprovalOutcomeRejected {
		action = ActionReject
	}
	if err := requireSubmitted(pr, action); err != nil {
		return err
	}
	reviewerID := reviewer.ID
	pr.ApprovalOutcome = outcome
	pr.ReviewerID = &reviewerID
	pr.ReviewerName = reviewer.Name
	pr.ReviewNotes = notes
	pr.ReviewedAt = &at
	if outcome == entity.ApprovalOutcomeApproved {
		pr.Status = entity.PRStatusApproved
	}
	return nil
}

// clearReview puts an edited requisition back into the unreviewed state.
func clearReview(pr *entity.PurchaseRequisition) {
	pr.ApprovalOutcome = entity.ApprovalOutcomeUnset
	pr.ReviewerID = nil
	pr.ReviewerName = ""
	pr.ReviewNotes = ""
	pr.ReviewedAt = nil
}

func sendToPurchase(pr *entity.PurchaseRequisition) error {
	if pr.Status != entity.PRStatusApproved {
		return invalidTransition(entityRequisition, pr.Status, ActionSendToPurchase, entity.PRStatusApproved)
	}
	if pr.ApprovalOutcome != entity.ApprovalOutcomeApproved {
		e := invalidTransition(entityRequisition, pr.Status, ActionSendToPurchase, entity.PRStatusApproved)
		e.Reason = fmt.Sprintf("approval outcome is %q", pr.ApprovalOutcome)
		return e
	}
	pr.Status = entity.PRStatusSentToPurchase
	return nil
}

// complete closes a requisition whose lines are all received. A requisition
// without lines completes immediately.
func complete(pr *entity.PurchaseRequisition) error {
	if pr.Status != entity.PRStatusSentToPurchase {
		return invalidTransition(entityRequisition, pr.Status, ActionComplete, entity.PRStatusSentToPurchase)
	}
	for _, l := range pr.Lines {
		if l.Status != entity.LineStatusReceived {
			e := invalidTransition(entityRequisition, pr.Status, ActionComplete, entity.PRStatusSentToPurchase)
			e.Reason = fmt.Sprintf("line %s is %s", l.ID, l.Status)
			return e
		}
	}
	pr.Status = entity.PRStatusCompleted
	return nil
}

// orderLine records the ordering event of a PENDING line.
func orderLine(line *entity.PRLine, quotationNumber string, qty int) error {
	if line.Status != entity.LineStatusPending {
		return invalidTransition(entityRequisitionLine, line.Status, ActionOrder, entity.LineStatusPending)
	}
	if qty <= 0 {
		return validation("quantity", "must be positive, got %d", qty)
	}
	if quotationNumber == "" {
		return validation("quotation_number", "is required")
	}
	qn := quotationNumber
	line.QuantityOrdered = qty
	line.QuotationNumber = &qn
	line.Status = ledger.DeriveLineStatus(line.QuantityOrdered, line.QuantityReceived)
	return nil
}

// receiveLine adds qty to an ordered line, refusing receipts beyond the ordered quantity.
func receiveLine(line *entity.PRLine, qty int, at time.Time) error {
	if line.Status != entity.LineStatusOrdered && line.Status != entity.LineStatusPartiallyReceived {
		return invalidTransition(entityRequisitionLine, line.Status, ActionReceive,
			entity.LineStatusOrdered, entity.LineStatusPartiallyReceived)
	}
	if qty <= 0 {
		return validation("quantity", "must be positive, got %d", qty)
	}
	received, err := ledger.Receive(line.QuantityOrdered, line.QuantityReceived, qty)
	if err != nil {
		return err
	}
	line.QuantityReceived = received
	line.ReceivedAt = &at
	line.Status = ledger.DeriveLineStatus(line.QuantityOrdered, line.QuantityReceived)
	return nil
}
