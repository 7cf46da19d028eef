package entity

import "time"

// ActivityLog 操作日志
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // pr/pr_line/qr
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	EntityCode string `json:"entity_code" gorm:"size:50"`

	Action     string `json:"action" gorm:"size:50;not null"` // create/approve/reject/order/receive/status_forced...
	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`
	Content    string `json:"content" gorm:"type:text"`

	OperatorID string    `json:"operator_id" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "mro_activity_logs"
}

const (
	EntityTypePR     = "pr"
	EntityTypePRLine = "pr_line"
	EntityTypeQR     = "qr"
)

// Sequence backs the database counter used for document numbers.
type Sequence struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (Sequence) TableName() string {
	return "mro_sequences"
}

// AllModels lists every table owned by the engine, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&PurchaseRequisition{},
		&PRLine{},
		&QuotationRequest{},
		&QRLine{},
		&ActivityLog{},
		&Sequence{},
	}
}
