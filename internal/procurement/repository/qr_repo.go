package repository

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QRRepository 询价单仓库
type QRRepository struct {
	db *gorm.DB
}

func NewQRRepository(db *gorm.DB) *QRRepository {
	return &QRRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *QRRepository) WithTx(tx *gorm.DB) *QRRepository {
	return &QRRepository{db: tx}
}

// FindAll 查询询价单列表
func (r *QRRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.QuotationRequest, int64, error) {
	var items []entity.QuotationRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.QuotationRequest{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if supplier := filters["supplier"]; supplier != "" {
		query = query.Where("supplier_name = ?", supplier)
	}
	if search := filters["search"]; search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(quotation_number) LIKE ? OR LOWER(supplier_name) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Order("created_at DESC").
		Offset(offset(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找询价单（含行项）
func (r *QRRepository) FindByID(ctx context.Context, id string) (*entity.QuotationRequest, error) {
	return r.find(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate loads the aggregate and locks its header row.
func (r *QRRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.QuotationRequest, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// FindByNumber 根据询价单号查找
func (r *QRRepository) FindByNumber(ctx context.Context, number string) (*entity.QuotationRequest, error) {
	return r.find(r.db.WithContext(ctx).Where("quotation_number = ?", number))
}

func (r *QRRepository) find(db *gorm.DB) (*entity.QuotationRequest, error) {
	var qr entity.QuotationRequest
	err := db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Lines.Part").
		First(&qr).Error
	if err != nil {
		return nil, translate(err)
	}
	return &qr, nil
}

// Create 创建询价单（含行项）
func (r *QRRepository) Create(ctx context.Context, qr *entity.QuotationRequest) error {
	return translate(r.db.WithContext(ctx).Create(qr).Error)
}

// Update saves the header only.
func (r *QRRepository) Update(ctx context.Context, qr *entity.QuotationRequest) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(qr).Error)
}

// UpdateLine 更新询价单行项
func (r *QRRepository) UpdateLine(ctx context.Context, line *entity.QRLine) error {
	return r.db.WithContext(ctx).Omit("Part").Save(line).Error
}

// Delete 删除询价单及行项
func (r *QRRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("qr_id = ?", id).Delete(&entity.QRLine{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.QuotationRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CountByStatus 按状态统计询价单
func (r *QRRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&entity.QuotationRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

// CountOpenLines counts quotation lines still awaiting delivery.
func (r *QRRepository) CountOpenLines(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.QRLine{}).
		Where("quantity_received < quantity_requested").
		Count(&n).Error
	return n, err
}
