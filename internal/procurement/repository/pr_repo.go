package repository

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PRRepository 采购申请仓库
type PRRepository struct {
	db *gorm.DB
}

func NewPRRepository(db *gorm.DB) *PRRepository {
	return &PRRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *PRRepository) WithTx(tx *gorm.DB) *PRRepository {
	return &PRRepository{db: tx}
}

// FindAll 查询采购申请列表
func (r *PRRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequisition, int64, error) {
	var items []entity.PurchaseRequisition
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseRequisition{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if requestor := filters["requestor_id"]; requestor != "" {
		query = query.Where("requestor_id = ?", requestor)
	}
	if search := filters["search"]; search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(code) LIKE ?", like, like)
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

// FindByID 根据ID查找采购申请（含行项）
func (r *PRRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseRequisition, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads the aggregate and locks its header row until the transaction ends.
func (r *PRRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.PurchaseRequisition, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *PRRepository) find(db *gorm.DB, id string) (*entity.PurchaseRequisition, error) {
	var pr entity.PurchaseRequisition
	err := db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Lines.Part").
		Where("id = ?", id).
		First(&pr).Error
	if err != nil {
		return nil, translate(err)
	}
	return &pr, nil
}

// FindByIDs loads requisition headers without lines.
func (r *PRRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.PurchaseRequisition, error) {
	var prs []entity.PurchaseRequisition
	if len(ids) == 0 {
		return prs, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&prs).Error
	return prs, err
}

// Create 创建采购申请（含行项）
func (r *PRRepository) Create(ctx context.Context, pr *entity.PurchaseRequisition) error {
	return translate(r.db.WithContext(ctx).Create(pr).Error)
}

// Update saves the header only; lines are written through UpdateLine.
func (r *PRRepository) Update(ctx context.Context, pr *entity.PurchaseRequisition) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(pr).Error)
}

// ReplaceLines deletes the current lines of prID and inserts lines.
func (r *PRRepository) ReplaceLines(ctx context.Context, prID string, lines []entity.PRLine) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("pr_id = ?", prID).Delete(&entity.PRLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return translate(db.Omit("Part").Create(&lines).Error)
}

// Delete 删除采购申请及行项
func (r *PRRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("pr_id = ?", id).Delete(&entity.PRLine{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&entity.PurchaseRequisition{}).Error
}

// FindLineByID 查找PR行项
func (r *PRRepository) FindLineByID(ctx context.Context, lineID string) (*entity.PRLine, error) {
	var line entity.PRLine
	err := r.db.WithContext(ctx).Preload("Part").Where("id = ?", lineID).First(&line).Error
	if err != nil {
		return nil, translate(err)
	}
	return &line, nil
}

// FindLineByIDForUpdate locks a single line row.
func (r *PRRepository) FindLineByIDForUpdate(ctx context.Context, lineID string) (*entity.PRLine, error) {
	var line entity.PRLine
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", lineID).First(&line).Error
	if err != nil {
		return nil, translate(err)
	}
	return &line, nil
}

// FindLinesByIDs returns the lines that exist among ids, parts preloaded.
func (r *PRRepository) FindLinesByIDs(ctx context.Context, ids []string) ([]entity.PRLine, error) {
	var lines []entity.PRLine
	if len(ids) == 0 {
		return lines, nil
	}
	err := r.db.WithContext(ctx).Preload("Part").Where("id IN ?", ids).Find(&lines).Error
	return lines, err
}

// UpdateLine 更新PR行项
func (r *PRRepository) UpdateLine(ctx context.Context, line *entity.PRLine) error {
	return r.db.WithContext(ctx).Omit("Part").Save(line).Error
}

// FindReadyLines returns PENDING lines of approved requisitions, optionally for one supplier.
func (r *PRRepository) FindReadyLines(ctx context.Context, supplier string) ([]entity.PRLine, error) {
	var lines []entity.PRLine
	query := r.readyLines(ctx)
	if supplier != "" {
		query = query.Where("p.supplier_name = ?", supplier)
	}
	err := query.
		Preload("Part").
		Order("pr.date_needed ASC, mro_pr_lines.sort_order ASC").
		Find(&lines).Error
	return lines, err
}

// SupplierPending aggregates ready lines per supplier.
type SupplierPending struct {
	SupplierName  string `json:"supplier_name"`
	LineCount     int64  `json:"line_count"`
	TotalQuantity int64  `json:"total_quantity"`
}

// FindSuppliersWithPending lists distinct suppliers among the ready lines.
func (r *PRRepository) FindSuppliersWithPending(ctx context.Context) ([]SupplierPending, error) {
	var rows []SupplierPending
	err := r.readyLines(ctx).
		Select("p.supplier_name AS supplier_name, COUNT(*) AS line_count, CAST(SUM(mro_pr_lines.quantity_requested) AS BIGINT) AS total_quantity").
		Group("p.supplier_name").
		Order("p.supplier_name ASC").
		Scan(&rows).Error
	return rows, err
}

// CountReadyLines counts lines waiting for a quotation.
func (r *PRRepository) CountReadyLines(ctx context.Context) (int64, error) {
	var n int64
	err := r.readyLines(ctx).Count(&n).Error
	return n, err
}

func (r *PRRepository) readyLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&entity.PRLine{}).
		Joins("JOIN mro_purchase_requisitions pr ON pr.id = mro_pr_lines.pr_id").
		Joins("JOIN parts p ON p.id = mro_pr_lines.part_id").
		Where("mro_pr_lines.status = ?", entity.LineStatusPending).
		Where("pr.status = ? AND pr.approval_outcome = ?", entity.PRStatusApproved, entity.ApprovalOutcomeApproved)
}

// CountByStatus 按状态统计采购申请
func (r *PRRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&entity.PurchaseRequisition{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}
