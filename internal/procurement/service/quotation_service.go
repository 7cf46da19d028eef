package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"github.com/bitfantasy/nimo-mro/internal/procurement/sse"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "CNY"

// TxHook runs inside a quotation's transaction after the quotation was written.
// Returning an error rolls the whole unit of work back.
type TxHook func(tx *gorm.DB, qr *entity.QuotationRequest) error

// QuotationService 询价单服务. It is the only writer of quotations and their lines.
type QuotationService struct {
	db       *gorm.DB
	qrRepo   *repository.QRRepository
	codes    CodeGenerator
	journal  *journal
	logger   *zap.Logger
	now      func() time.Time
	currency string
}

func NewQuotationService(db *gorm.DB, repos *repository.Repositories, codes CodeGenerator, events EventPublisher, logger *zap.Logger, currency string) *QuotationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	logger = logger.Named("quotation")
	return &QuotationService{
		db:       db,
		qrRepo:   repos.QR,
		codes:    codes,
		journal:  &journal{logs: repos.ActivityLog, events: events, codes: codes, logger: logger},
		logger:   logger,
		now:      time.Now,
		currency: currency,
	}
}

// UpdateQuotationRequest 更新询价单请求. Nil fields are left unchanged.
type UpdateQuotationRequest struct {
	SupplierName         *string               `json:"supplier_name"`
	SupplierContact      *string               `json:"supplier_contact"`
	Currency             *string               `json:"currency"`
	Notes                *string               `json:"notes"`
	ExpectedDeliveryDate *time.Time            `json:"expected_delivery_date"`
	Lines                []UpdateQuotationLine `json:"lines"`
}

// UpdateQuotationLine targets LineID when set, otherwise every line of PartID.
type UpdateQuotationLine struct {
	LineID    string           `json:"line_id"`
	PartID    string           `json:"part_id"`
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Notes     *string          `json:"notes"`
}

// List 获取询价单列表
func (s *QuotationService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.QuotationRequest, int64, error) {
	return s.qrRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 获取询价单详情
func (s *QuotationService) Get(ctx context.Context, id string) (*entity.QuotationRequest, error) {
	qr, err := s.qrRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(entityQuotation, id, err)
	}
	return qr, nil
}

// GetByNumber 根据询价单号获取
func (s *QuotationService) GetByNumber(ctx context.Context, number string) (*entity.QuotationRequest, error) {
	qr, err := s.qrRepo.FindByNumber(ctx, number)
	if err != nil {
		return nil, lookupErr(entityQuotation, number, err)
	}
	return qr, nil
}

// Activities 获取询价单操作日志
func (s *QuotationService) Activities(ctx context.Context, id string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	return s.journal.logs.FindByEntity(ctx, entity.EntityTypeQR, id, page, pageSize)
}

// CreateForGroup creates one CREATED quotation holding a line per requisition line
// of group. hook, if any, runs in the same transaction.
func (s *QuotationService) CreateForGroup(ctx context.Context, group SupplierGroup, creatorID, notes string, hook TxHook) (*entity.QuotationRequest, error) {
	if strings.TrimSpace(group.SupplierName) == "" {
		return nil, validation("supplier_name", "parts without a supplier cannot be quoted")
	}
	if len(group.Lines) == 0 {
		return nil, validation("lines", "at least one line is required")
	}

	number, err := s.codes.NextSequentialCode(ctx, CodePrefixQR)
	if err != nil {
		return nil, fmt.Errorf("生成询价单号失败: %w", err)
	}

	qr := &entity.QuotationRequest{
		ID:              s.codes.NewID(),
		QuotationNumber: number,
		SupplierName:    group.SupplierName,
		Currency:        s.currency,
		RequestDate:     s.now(),
		Status:          entity.QRStatusCreated,
		StatusOrigin:    entity.StatusOriginSystem,
		CreatedBy:       creatorID,
		Notes:           notes,
	}
	for i, l := range group.Lines {
		prLineID := l.ID
		qr.Lines = append(qr.Lines, entity.QRLine{
			ID:                s.codes.NewID(),
			QRID:              qr.ID,
			PartID:            l.PartID,
			PRLineID:          &prLineID,
			QuantityRequested: l.QuantityRequested,
			SortOrder:         i + 1,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.qrRepo.WithTx(tx).Create(ctx, qr); err != nil {
			return conflictErr(entityQuotation, number, err)
		}
		if hook != nil {
			return hook(tx, qr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quotation created",
		zap.String("quotation_number", number),
		zap.String("supplier", group.SupplierName),
		zap.Int("lines", len(qr.Lines)),
		zap.Int("quantity", group.TotalQuantity()))
	s.journal.record(ctx, qrEntry(qr, ActionCreate, "", creatorID, fmt.Sprintf("%d lines for %s", len(qr.Lines), qr.SupplierName)))
	s.publish(qr, ActionCreate)
	return s.Get(ctx, qr.ID)
}

// ForceStatus overwrites the status with no guard. The change is marked manual and
// noted on the quotation.
func (s *QuotationService) ForceStatus(ctx context.Context, id, status, notes, operatorID string) (*entity.QuotationRequest, error) {
	return s.forceStatus(ctx, id, status, notes, operatorID, nil)
}

func (s *QuotationService) forceStatus(ctx context.Context, id, status, notes, operatorID string, hook TxHook) (*entity.QuotationRequest, error) {
	if !entity.ValidQRStatus(status) {
		return nil, validation("status", "unknown status %q", status)
	}
	var from string
	qr, err := s.mutate(ctx, id, func(tx *gorm.DB, qr *entity.QuotationRequest) error {
		from = qr.Status
		qr.Status = status
		qr.StatusOrigin = entity.StatusOriginManual
		text := fmt.Sprintf("status %s -> %s", from, status)
		if notes != "" {
			text += ": " + notes
		}
		qr.Notes = appendNote(qr.Notes, s.now(), text)
		if hook != nil {
			return hook(tx, qr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("quotation status forced",
		zap.String("quotation_number", qr.QuotationNumber),
		zap.String("from", from),
		zap.String("to", status))
	s.journal.record(ctx, qrEntry(qr, ActionForceStatus, from, operatorID, notes))
	s.publish(qr, ActionForceStatus)
	return s.Get(ctx, id)
}

// receiptResult describes a committed receipt.
type receiptResult struct {
	QR       *entity.QuotationRequest
	From     string
	Settled  string
	Receipts []lineReceipt
}

// ReceiveLine records qty received for partID and derives the status.
func (s *QuotationService) ReceiveLine(ctx context.Context, id, partID string, qty int, notes, operatorID string) (*entity.QuotationRequest, error) {
	var res *receiptResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.receiveTx(ctx, tx, id, partID, qty, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterReceive(ctx, res, partID, qty, operatorID)
	return s.Get(ctx, id)
}

func (s *QuotationService) receiveTx(ctx context.Context, tx *gorm.DB, id, partID string, qty int, notes string) (*receiptResult, error) {
	repo := s.qrRepo.WithTx(tx)
	qr, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(entityQuotation, id, err)
	}
	from := qr.Status

	receipts, err := distributeReceipt(qr, partID, qty)
	if err != nil {
		return nil, err
	}
	for _, r := range receipts {
		if err := repo.UpdateLine(ctx, r.Line); err != nil {
			return nil, fmt.Errorf("更新询价单行项失败: %w", err)
		}
	}

	now := s.now()
	if notes != "" {
		qr.Notes = appendNote(qr.Notes, now, fmt.Sprintf("received %d of part %s: %s", qty, partID, notes))
	}
	settled := settleAfterReceipt(qr, now)
	if err := repo.Update(ctx, qr); err != nil {
		return nil, fmt.Errorf("保存询价单失败: %w", err)
	}
	return &receiptResult{QR: qr, From: from, Settled: settled, Receipts: receipts}, nil
}

func (s *QuotationService) afterReceive(ctx context.Context, res *receiptResult, partID string, qty int, operatorID string) {
	qr := res.QR
	s.logger.Info("quotation line received",
		zap.String("quotation_number", qr.QuotationNumber),
		zap.String("part_id", partID),
		zap.Int("quantity", qty),
		zap.String("status", qr.Status))
	entries := []entity.ActivityLog{
		qrEntry(qr, ActionReceive, res.From, operatorID, fmt.Sprintf("received %d of part %s", qty, partID)),
	}
	if res.Settled != "" {
		entries = append(entries, qrEntry(qr, res.Settled, res.From, "", ""))
	}
	s.journal.record(ctx, entries...)
	s.publish(qr, ActionReceive)
}

// Complete 手动完成询价单, regardless of line receipts.
func (s *QuotationService) Complete(ctx context.Context, id, operatorID string) (*entity.QuotationRequest, error) {
	var from string
	qr, err := s.mutate(ctx, id, func(_ *gorm.DB, qr *entity.QuotationRequest) error {
		from = qr.Status
		today := truncateDay(s.now())
		qr.Status = entity.QRStatusCompleted
		qr.StatusOrigin = entity.StatusOriginManual
		qr.ActualDeliveryDate = &today
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("quotation completed", zap.String("quotation_number", qr.QuotationNumber))
	s.journal.record(ctx, qrEntry(qr, ActionComplete, from, operatorID, ""))
	s.publish(qr, ActionComplete)
	return s.Get(ctx, id)
}

// Cancel 取消询价单. There is no cancelled state: the quotation returns to CREATED
// and the reason is kept in its notes.
func (s *QuotationService) Cancel(ctx context.Context, id, reason, operatorID string) (*entity.QuotationRequest, error) {
	var from string
	qr, err := s.mutate(ctx, id, func(_ *gorm.DB, qr *entity.QuotationRequest) error {
		from = qr.Status
		text := "cancelled"
		if reason != "" {
			text += ": " + reason
		}
		qr.Notes = appendNote(qr.Notes, s.now(), text)
		qr.Status = entity.QRStatusCreated
		qr.StatusOrigin = entity.StatusOriginManual
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("quotation cancelled",
		zap.String("quotation_number", qr.QuotationNumber),
		zap.String("reason", reason))
	s.journal.record(ctx, qrEntry(qr, ActionCancel, from, operatorID, reason))
	s.publish(qr, ActionCancel)
	return s.Get(ctx, id)
}

// Update 更新询价单, recomputing line totals and the total amount.
func (s *QuotationService) Update(ctx context.Context, id, operatorID string, req *UpdateQuotationRequest) (*entity.QuotationRequest, error) {
	if req.SupplierName != nil && strings.TrimSpace(*req.SupplierName) == "" {
		return nil, validation("supplier_name", "must not be empty")
	}
	for i, in := range req.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if in.LineID == "" && in.PartID == "" {
			return nil, validation(field, "line_id or part_id is required")
		}
		if in.Quantity != nil && *in.Quantity <= 0 {
			return nil, validation(field+".quantity", "must be positive, got %d", *in.Quantity)
		}
		if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
			return nil, validation(field+".unit_price", "must not be negative")
		}
	}

	var from string
	qr, err := s.mutate(ctx, id, func(tx *gorm.DB, qr *entity.QuotationRequest) error {
		from = qr.Status
		if req.SupplierName != nil {
			qr.SupplierName = strings.TrimSpace(*req.SupplierName)
		}
		if req.SupplierContact != nil {
			qr.SupplierContact = *req.SupplierContact
		}
		if req.Currency != nil && *req.Currency != "" {
			qr.Currency = *req.Currency
		}
		if req.Notes != nil {
			qr.Notes = *req.Notes
		}
		if req.ExpectedDeliveryDate != nil {
			qr.ExpectedDeliveryDate = req.ExpectedDeliveryDate
		}

		repo := s.qrRepo.WithTx(tx)
		for _, in := range req.Lines {
			matched := false
			for i := range qr.Lines {
				line := &qr.Lines[i]
				if in.LineID != "" && line.ID != in.LineID {
					continue
				}
				if in.LineID == "" && line.PartID != in.PartID {
					continue
				}
				matched = true
				if err := applyLineUpdate(line, in); err != nil {
					return err
				}
				if err := repo.UpdateLine(ctx, line); err != nil {
					return fmt.Errorf("更新询价单行项失败: %w", err)
				}
			}
			if !matched {
				key := in.LineID
				if key == "" {
					key = in.PartID
				}
				return &NotFoundError{Entity: entityQuotationLine, ID: key}
			}
		}
		recalcTotalAmount(qr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.journal.record(ctx, qrEntry(qr, ActionUpdate, from, operatorID, ""))
	s.publish(qr, ActionUpdate)
	return s.Get(ctx, id)
}

func applyLineUpdate(line *entity.QRLine, in UpdateQuotationLine) error {
	if in.Quantity != nil {
		if *in.Quantity < line.QuantityReceived {
			return validation("quantity", "line %s already received %d", line.ID, line.QuantityReceived)
		}
		line.QuantityRequested = *in.Quantity
	}
	if in.UnitPrice != nil {
		line.UnitPrice = decimal.NewNullDecimal(*in.UnitPrice)
	}
	if in.Notes != nil {
		line.Notes = *in.Notes
	}
	line.RecalculateTotal()
	return nil
}

// Delete 删除询价单. Unlike requisitions there is no status guard.
func (s *QuotationService) Delete(ctx context.Context, id, operatorID string) error {
	qr, err := s.qrRepo.FindByID(ctx, id)
	if err != nil {
		return lookupErr(entityQuotation, id, err)
	}
	if err := s.qrRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Entity: entityQuotation, ID: id}
		}
		return fmt.Errorf("删除询价单失败: %w", err)
	}
	s.logger.Info("quotation deleted", zap.String("quotation_number", qr.QuotationNumber))
	s.journal.record(ctx, qrEntry(qr, ActionDelete, qr.Status, operatorID, ""))
	s.publish(qr, ActionDelete)
	return nil
}

// mutate loads the quotation FOR UPDATE, applies fn and saves the header in one transaction.
func (s *QuotationService) mutate(ctx context.Context, id string, fn func(tx *gorm.DB, qr *entity.QuotationRequest) error) (*entity.QuotationRequest, error) {
	var out *entity.QuotationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.qrRepo.WithTx(tx)
		qr, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(entityQuotation, id, err)
		}
		if err := fn(tx, qr); err != nil {
			return err
		}
		if err := repo.Update(ctx, qr); err != nil {
			return fmt.Errorf("保存询价单失败: %w", err)
		}
		out = qr
		return nil
	})
	return out, err
}

func (s *QuotationService) publish(qr *entity.QuotationRequest, action string) {
	s.journal.publish(sse.EventQuotationUpdate, sse.ChangePayload{
		ID: qr.ID, Code: qr.QuotationNumber, Action: action, Status: qr.Status,
	})
}
