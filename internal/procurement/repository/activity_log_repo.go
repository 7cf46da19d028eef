package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogRepository 操作日志仓库
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Append writes the entries of one operation in a single insert.
func (r *ActivityLogRepository) Append(ctx context.Context, logs []entity.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.New().String()[:32]
		}
	}
	return translate(r.db.WithContext(ctx).Create(&logs).Error)
}

// FindByEntity 查询某实体的操作日志，最新在前
func (r *ActivityLogRepository) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	var items []entity.ActivityLog
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	}
	if err := r.db.WithContext(ctx).Model(&entity.ActivityLog{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []entity.ActivityLog{}, 0, nil
	}

	err := r.db.WithContext(ctx).Scopes(scope).
		Order("created_at DESC").
		Offset(offset(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}
