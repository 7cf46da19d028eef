package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationRequest 询价单: supplier-facing document consolidating approved PR lines for one supplier.
type QuotationRequest struct {
	ID              string          `json:"id" gorm:"primaryKey;size:32"`
	QuotationNumber string          `json:"quotation_number" gorm:"size:32;uniqueIndex;not null"`
	SupplierName    string          `json:"supplier_name" gorm:"size:200;not null;index"`
	SupplierContact string          `json:"supplier_contact" gorm:"size:200"`
	Currency        string          `json:"currency" gorm:"size:10"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2);default:0"`

	// 交期
	RequestDate          time.Time  `json:"request_date"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time `json:"actual_delivery_date"`

	Status       string `json:"status" gorm:"size:20;not null;index"` // CREATED/SENT/CONFIRMED/DELIVERED/COMPLETED
	StatusOrigin string `json:"status_origin" gorm:"size:20"`         // system/manual

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []QRLine `json:"lines,omitempty" gorm:"foreignKey:QRID"`
}

func (QuotationRequest) TableName() string {
	return "mro_quotation_requests"
}

// QR状态
const (
	QRStatusCreated   = "CREATED"
	QRStatusSent      = "SENT"
	QRStatusConfirmed = "CONFIRMED"
	QRStatusDelivered = "DELIVERED"
	QRStatusCompleted = "COMPLETED"
)

// Status origins distinguish derived transitions from forced ones.
const (
	StatusOriginSystem = "system"
	StatusOriginManual = "manual"
)

// ValidQRStatus reports whether s is a known quotation status.
func ValidQRStatus(s string) bool {
	switch s {
	case QRStatusCreated, QRStatusSent, QRStatusConfirmed, QRStatusDelivered, QRStatusCompleted:
		return true
	}
	return false
}

// FullyReceived reports whether every line has received at least what was requested.
// A quotation without lines is never fully received.
func (qr *QuotationRequest) FullyReceived() bool {
	if len(qr.Lines) == 0 {
		return false
	}
	for _, l := range qr.Lines {
		if l.QuantityReceived < l.QuantityRequested {
			return false
		}
	}
	return true
}

// QRLine 询价单行项
type QRLine struct {
	ID       string  `json:"id" gorm:"primaryKey;size:32"`
	QRID     string  `json:"qr_id" gorm:"size:32;not null;index"`
	PartID   string  `json:"part_id" gorm:"size:32;not null"`
	PRLineID *string `json:"pr_line_id" gorm:"size:32;index"`

	QuantityRequested int                 `json:"quantity_requested" gorm:"not null"`
	UnitPrice         decimal.NullDecimal `json:"unit_price" gorm:"type:decimal(12,4)"`
	TotalPrice        decimal.NullDecimal `json:"total_price" gorm:"type:decimal(15,2)"`
	QuantityReceived  int                 `json:"quantity_received" gorm:"default:0"`

	Notes     string    `json:"notes" gorm:"type:text"`
	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}

func (QRLine) TableName() string {
	return "mro_qr_lines"
}

// RecalculateTotal sets TotalPrice from UnitPrice and QuantityRequested.
func (l *QRLine) RecalculateTotal() {
	if !l.UnitPrice.Valid {
		l.TotalPrice = decimal.NullDecimal{}
		return
	}
	l.TotalPrice = decimal.NewNullDecimal(l.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(l.QuantityRequested))))
}
