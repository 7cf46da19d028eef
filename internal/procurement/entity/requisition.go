package entity

import "time"

// PurchaseRequisition 采购申请单: a request for parts that must be approved before sourcing.
type PurchaseRequisition struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	Code        string     `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Title       string     `json:"title" gorm:"size:200;not null"`
	Description string     `json:"description" gorm:"type:text"`
	RequestorID string     `json:"requestor_id" gorm:"size:32;not null;index"`
	DateNeeded  time.Time  `json:"date_needed"`
	EquipmentID *string    `json:"equipment_id" gorm:"size:32"`
	Status      string     `json:"status" gorm:"size:20;not null;index"` // SUBMITTED/APPROVED/SENT_TO_PURCHASE/COMPLETED

	// Review
	ApprovalOutcome string     `json:"approval_outcome" gorm:"size:20"` // ""/approved/rejected
	ReviewerID      *string    `json:"reviewer_id" gorm:"size:32"`
	ReviewerName    string     `json:"reviewer_name" gorm:"size:100"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	ReviewNotes     string     `json:"review_notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []PRLine `json:"lines,omitempty" gorm:"foreignKey:PRID"`
}

func (PurchaseRequisition) TableName() string {
	return "mro_purchase_requisitions"
}

// PR状态
const (
	PRStatusSubmitted      = "SUBMITTED"
	PRStatusApproved       = "APPROVED"
	PRStatusSentToPurchase = "SENT_TO_PURCHASE"
	PRStatusCompleted      = "COMPLETED"
)

// Approval outcomes. The zero value means the PR has not been reviewed.
const (
	ApprovalOutcomeUnset    = ""
	ApprovalOutcomeApproved = "approved"
	ApprovalOutcomeRejected = "rejected"
)

// IsApproved reports whether the PR carries an approved review outcome.
func (pr *PurchaseRequisition) IsApproved() bool {
	return pr.Status == PRStatusApproved && pr.ApprovalOutcome == ApprovalOutcomeApproved
}

// Reviewed reports whether any review outcome is recorded.
func (pr *PurchaseRequisition) Reviewed() bool {
	return pr.ApprovalOutcome != ApprovalOutcomeUnset
}

// PRLine 采购申请行项: one requested part inside a requisition.
type PRLine struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	PRID   string `json:"pr_id" gorm:"size:32;not null;index"`
	PartID string `json:"part_id" gorm:"size:32;not null;index"`

	QuantityRequested int    `json:"quantity_requested" gorm:"not null"`
	Criticality       string `json:"criticality" gorm:"size:20;default:MEDIUM"`
	Notes             string `json:"notes" gorm:"type:text"`

	// Ordering and receipt progress
	Status           string     `json:"status" gorm:"size:20;not null;index"` // PENDING/ORDERED/PARTIALLY_RECEIVED/RECEIVED
	QuantityOrdered  int        `json:"quantity_ordered" gorm:"default:0"`
	QuantityReceived int        `json:"quantity_received" gorm:"default:0"`
	QuotationNumber  *string    `json:"quotation_number" gorm:"size:32;index"`
	ReceivedAt       *time.Time `json:"received_at"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}

func (PRLine) TableName() string {
	return "mro_pr_lines"
}

// PR行项状态
const (
	LineStatusPending           = "PENDING"
	LineStatusOrdered           = "ORDERED"
	LineStatusPartiallyReceived = "PARTIALLY_RECEIVED"
	LineStatusReceived          = "RECEIVED"
)

// 紧急程度
const (
	CriticalityLow      = "LOW"
	CriticalityMedium   = "MEDIUM"
	CriticalityHigh     = "HIGH"
	CriticalityCritical = "CRITICAL"
)

// ValidCriticality reports whether c is a known criticality level.
func ValidCriticality(c string) bool {
	switch c {
	case CriticalityLow, CriticalityMedium, CriticalityHigh, CriticalityCritical:
		return true
	}
	return false
}
