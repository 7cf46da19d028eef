package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/ledger"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"github.com/bitfantasy/nimo-mro/internal/procurement/sse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequisitionService 采购申请服务. It is the only writer of requisitions and their lines.
type RequisitionService struct {
	db      *gorm.DB
	prRepo  *repository.PRRepository
	users   UserLookup
	parts   PartLookup
	codes   CodeGenerator
	journal *journal
	logger  *zap.Logger
	now     func() time.Time
}

func NewRequisitionService(db *gorm.DB, repos *repository.Repositories, codes CodeGenerator, events EventPublisher, logger *zap.Logger) *RequisitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("requisition")
	return &RequisitionService{
		db:      db,
		prRepo:  repos.PR,
		users:   repos.User,
		parts:   repos.Part,
		codes:   codes,
		journal: &journal{logs: repos.ActivityLog, events: events, codes: codes, logger: logger},
		logger:  logger,
		now:     time.Now,
	}
}

// RequisitionLineInput 申请行项输入
type RequisitionLineInput struct {
	PartID      string `json:"part_id"`
	Quantity    int    `json:"quantity"`
	Criticality string `json:"criticality"`
	Notes       string `json:"notes"`
}

// CreateRequisitionRequest 创建采购申请请求
type CreateRequisitionRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	DateNeeded  *time.Time             `json:"date_needed"`
	EquipmentID *string                `json:"equipment_id"`
	Lines       []RequisitionLineInput `json:"lines"`
}

// EditRequisitionRequest 编辑采购申请请求. Nil fields are left unchanged; a non-nil
// Lines replaces every line.
type EditRequisitionRequest struct {
	Title       *string                 `json:"title"`
	Description *string                 `json:"description"`
	DateNeeded  *time.Time              `json:"date_needed"`
	EquipmentID *string                 `json:"equipment_id"`
	Lines       *[]RequisitionLineInput `json:"lines"`
}

// List 获取采购申请列表
func (s *RequisitionService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequisition, int64, error) {
	return s.prRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 获取采购申请详情
func (s *RequisitionService) Get(ctx context.Context, id string) (*entity.PurchaseRequisition, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(entityRequisition, id, err)
	}
	return pr, nil
}

// GetLine 获取申请行项
func (s *RequisitionService) GetLine(ctx context.Context, lineID string) (*entity.PRLine, error) {
	line, err := s.prRepo.FindLineByID(ctx, lineID)
	if err != nil {
		return nil, lookupErr(entityRequisitionLine, lineID, err)
	}
	return line, nil
}

// Activities 获取采购申请操作日志
func (s *RequisitionService) Activities(ctx context.Context, id string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	return s.journal.logs.FindByEntity(ctx, entity.EntityTypePR, id, page, pageSize)
}

// Create 创建采购申请
func (s *RequisitionService) Create(ctx context.Context, requestorID string, req *CreateRequisitionRequest) (*entity.PurchaseRequisition, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validation("title", "is required")
	}
	if req.DateNeeded == nil || req.DateNeeded.IsZero() {
		return nil, validation("date_needed", "is required")
	}
	if requestorID == "" {
		return nil, validation("requestor_id", "is required")
	}
	if _, err := s.users.FindByID(ctx, requestorID); err != nil {
		return nil, lookupErr("user", requestorID, err)
	}
	if err := s.checkLines(ctx, req.Lines); err != nil {
		return nil, err
	}

	code, err := s.codes.NextSequentialCode(ctx, CodePrefixPR)
	if err != nil {
		return nil, fmt.Errorf("生成PR编码失败: %w", err)
	}

	pr := &entity.PurchaseRequisition{
		ID:          s.codes.NewID(),
		Code:        code,
		Title:       title,
		Description: req.Description,
		RequestorID: requestorID,
		DateNeeded:  *req.DateNeeded,
		EquipmentID: req.EquipmentID,
		Status:      entity.PRStatusSubmitted,
	}
	pr.Lines = s.buildLines(pr.ID, req.Lines)

	if err := s.prRepo.Create(ctx, pr); err != nil {
		return nil, conflictErr(entityRequisition, code, err)
	}

	s.logger.Info("requisition created",
		zap.String("code", pr.Code),
		zap.String("requestor_id", requestorID),
		zap.Int("lines", len(pr.Lines)))
	s.journal.record(ctx, prEntry(pr, ActionCreate, "", requestorID, pr.Title))
	s.publish(pr, ActionCreate)
	return s.Get(ctx, pr.ID)
}

// Approve 审批通过
func (s *RequisitionService) Approve(ctx context.Context, id, reviewerID, notes string) (*entity.PurchaseRequisition, error) {
	return s.review(ctx, id, reviewerID, notes, entity.ApprovalOutcomeApproved)
}

// Reject 驳回; the requisition stays SUBMITTED and can be edited and resubmitted.
func (s *RequisitionService) Reject(ctx context.Context, id, reviewerID, notes string) (*entity.PurchaseRequisition, error) {
	return s.review(ctx, id, reviewerID, notes, entity.ApprovalOutcomeRejected)
}

func (s *RequisitionService) review(ctx context.Context, id, reviewerID, notes, outcome string) (*entity.PurchaseRequisition, error) {
	if reviewerID == "" {
		return nil, validation("reviewer_id", "is required")
	}
	reviewer, err := s.users.FindByID(ctx, reviewerID)
	if err != nil {
		return nil, lookupErr("user", reviewerID, err)
	}

	var from string
	pr, err := s.mutate(ctx, id, func(_ *repository.PRRepository, pr *entity.PurchaseRequisition) error {
		from = pr.Status
		return applyReview(pr, outcome, reviewer, notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	action := ActionApprove
	if outcome == entity.ApprovalOutcomeRejected {
		action = ActionReject
	}
	s.logger.Info("requisition reviewed",
		zap.String("code", pr.Code),
		zap.String("outcome", outcome),
		zap.String("reviewer_id", reviewerID))
	s.journal.record(ctx, prEntry(pr, action, from, reviewerID, notes))
	s.publish(pr, action)
	s.journal.notify(pr.RequestorID, sse.EventRequisitionReviewed, sse.ChangePayload{
		ID: pr.ID, Code: pr.Code, Action: action, Status: pr.Status,
	})
	return pr, nil
}

// Edit 编辑采购申请. Editing a reviewed requisition clears the review.
func (s *RequisitionService) Edit(ctx context.Context, id, operatorID string, req *EditRequisitionRequest) (*entity.PurchaseRequisition, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, validation("title", "must not be empty")
	}
	if req.DateNeeded != nil && req.DateNeeded.IsZero() {
		return nil, validation("date_needed", "must not be zero")
	}
	if req.Lines != nil {
		if err := s.checkLines(ctx, *req.Lines); err != nil {
			return nil, err
		}
	}

	var from string
	var clearedReview bool
	pr, err := s.mutate(ctx, id, func(repo *repository.PRRepository, pr *entity.PurchaseRequisition) error {
		from = pr.Status
		if err := requireSubmitted(pr, ActionEdit); err != nil {
			return err
		}
		if req.Title != nil {
			pr.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			pr.Description = *req.Description
		}
		if req.DateNeeded != nil {
			pr.DateNeeded = *req.DateNeeded
		}
		if req.EquipmentID != nil {
			if *req.EquipmentID == "" {
				pr.EquipmentID = nil
			} else {
				pr.EquipmentID = req.EquipmentID
			}
		}
		if pr.Reviewed() {
			clearReview(pr)
			clearedReview = true
		}
		if req.Lines != nil {
			lines := s.buildLines(pr.ID, *req.Lines)
			if err := repo.ReplaceLines(ctx, pr.ID, lines); err != nil {
				return fmt.Errorf("替换申请行项失败: %w", err)
			}
			pr.Lines = lines
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	content := ""
	if clearedReview {
		content = "review cleared"
	}
	s.journal.record(ctx, prEntry(pr, ActionEdit, from, operatorID, content))
	s.publish(pr, ActionEdit)
	return s.Get(ctx, pr.ID)
}

// SendToPurchase 提交采购
func (s *RequisitionService) SendToPurchase(ctx context.Context, id, operatorID string) (*entity.PurchaseRequisition, error) {
	var from string
	pr, err := s.mutate(ctx, id, func(_ *repository.PRRepository, pr *entity.PurchaseRequisition) error {
		from = pr.Status
		return sendToPurchase(pr)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("requisition sent to purchase", zap.String("code", pr.Code))
	s.journal.record(ctx, prEntry(pr, ActionSendToPurchase, from, operatorID, ""))
	s.publish(pr, ActionSendToPurchase)
	return pr, nil
}

// Complete 完成采购申请
func (s *RequisitionService) Complete(ctx context.Context, id, operatorID string) (*entity.PurchaseRequisition, error) {
	var from string
	pr, err := s.mutate(ctx, id, func(_ *repository.PRRepository, pr *entity.PurchaseRequisition) error {
		from = pr.Status
		return complete(pr)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("requisition completed", zap.String("code", pr.Code))
	s.journal.record(ctx, prEntry(pr, ActionComplete, from, operatorID, ""))
	s.publish(pr, ActionComplete)
	return pr, nil
}

// Delete 删除采购申请（仅SUBMITTED）
func (s *RequisitionService) Delete(ctx context.Context, id, operatorID string) error {
	var deleted *entity.PurchaseRequisition
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.prRepo.WithTx(tx)
		pr, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(entityRequisition, id, err)
		}
		if err := requireSubmitted(pr, ActionDelete); err != nil {
			return err
		}
		deleted = pr
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("requisition deleted", zap.String("code", deleted.Code))
	s.journal.record(ctx, prEntry(deleted, ActionDelete, deleted.Status, operatorID, ""))
	s.publish(deleted, ActionDelete)
	return nil
}

// MarkLineOrdered records that a PENDING line was ordered on quotationNumber.
func (s *RequisitionService) MarkLineOrdered(ctx context.Context, lineID, quotationNumber string, qty int, operatorID string) (*entity.PRLine, error) {
	var line *entity.PRLine
	var from string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		line, from, err = s.orderLineTx(ctx, s.prRepo.WithTx(tx), lineID, quotationNumber, qty)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.journal.record(ctx, prLineEntry(line, ActionOrder, from, operatorID, fmt.Sprintf("ordered %d", qty)))
	s.publishLine(line, ActionOrder)
	return s.GetLine(ctx, lineID)
}

// MarkLineReceived adds qty to the received quantity of an ordered line.
func (s *RequisitionService) MarkLineReceived(ctx context.Context, lineID string, qty int, operatorID string) (*entity.PRLine, error) {
	var line *entity.PRLine
	var from string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.prRepo.WithTx(tx)
		l, err := repo.FindLineByIDForUpdate(ctx, lineID)
		if err != nil {
			return lookupErr(entityRequisitionLine, lineID, err)
		}
		from = l.Status
		if err := receiveLine(l, qty, s.now()); err != nil {
			return err
		}
		line = l
		return repo.UpdateLine(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	s.journal.record(ctx, prLineEntry(line, ActionReceive, from, operatorID, fmt.Sprintf("received %d", qty)))
	s.publishLine(line, ActionReceive)
	return s.GetLine(ctx, lineID)
}

// orderLineTx marks a line ordered using repo, which must be bound to the caller's transaction.
func (s *RequisitionService) orderLineTx(ctx context.Context, repo *repository.PRRepository, lineID, quotationNumber string, qty int) (*entity.PRLine, string, error) {
	line, err := repo.FindLineByIDForUpdate(ctx, lineID)
	if err != nil {
		return nil, "", lookupErr(entityRequisitionLine, lineID, err)
	}
	from := line.Status
	if err := orderLine(line, quotationNumber, qty); err != nil {
		return nil, from, err
	}
	if qty > line.QuantityRequested {
		s.logger.Warn("line ordered above requested quantity",
			zap.String("line_id", line.ID),
			zap.Int("requested", line.QuantityRequested),
			zap.Int("ordered", qty))
	}
	if err := repo.UpdateLine(ctx, line); err != nil {
		return nil, from, err
	}
	return line, from, nil
}

// propagateReceiptTx applies a receipt recorded on a quotation to its source line.
// A PENDING line is first ordered against quotationNumber. Quantities beyond the
// ordered amount are cut off and logged.
func (s *RequisitionService) propagateReceiptTx(ctx context.Context, repo *repository.PRRepository, lineID, quotationNumber string, orderQty, qty int) (*entity.PRLine, string, error) {
	line, err := repo.FindLineByIDForUpdate(ctx, lineID)
	if err != nil {
		return nil, "", lookupErr(entityRequisitionLine, lineID, err)
	}
	from := line.Status
	if line.Status == entity.LineStatusPending {
		if err := orderLine(line, quotationNumber, orderQty); err != nil {
			return nil, from, err
		}
	}

	applied, over := ledger.Clamp(line.QuantityOrdered, line.QuantityReceived, qty)
	if over {
		s.logger.Warn("over-receipt on requisition line",
			zap.String("line_id", line.ID),
			zap.String("quotation_number", quotationNumber),
			zap.Int("ordered", line.QuantityOrdered),
			zap.Int("received", line.QuantityReceived),
			zap.Int("quantity", qty),
			zap.Int("applied", applied))
	}
	if applied > 0 {
		if err := receiveLine(line, applied, s.now()); err != nil {
			return nil, from, err
		}
	}
	if err := repo.UpdateLine(ctx, line); err != nil {
		return nil, from, err
	}
	return line, from, nil
}

// mutate loads the requisition FOR UPDATE, applies fn and saves the header in one transaction.
func (s *RequisitionService) mutate(ctx context.Context, id string, fn func(repo *repository.PRRepository, pr *entity.PurchaseRequisition) error) (*entity.PurchaseRequisition, error) {
	var out *entity.PurchaseRequisition
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.prRepo.WithTx(tx)
		pr, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(entityRequisition, id, err)
		}
		if err := fn(repo, pr); err != nil {
			return err
		}
		if err := repo.Update(ctx, pr); err != nil {
			return fmt.Errorf("保存采购申请失败: %w", err)
		}
		out = pr
		return nil
	})
	return out, err
}

func (s *RequisitionService) checkLines(ctx context.Context, lines []RequisitionLineInput) error {
	for i, in := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if in.PartID == "" {
			return validation(field+".part_id", "is required")
		}
		if in.Quantity <= 0 {
			return validation(field+".quantity", "must be positive, got %d", in.Quantity)
		}
		if in.Criticality != "" && !entity.ValidCriticality(in.Criticality) {
			return validation(field+".criticality", "unknown level %q", in.Criticality)
		}
		if _, err := s.parts.FindByID(ctx, in.PartID); err != nil {
			return lookupErr("part", in.PartID, err)
		}
	}
	return nil
}

func (s *RequisitionService) buildLines(prID string, inputs []RequisitionLineInput) []entity.PRLine {
	lines := make([]entity.PRLine, 0, len(inputs))
	for i, in := range inputs {
		criticality := in.Criticality
		if criticality == "" {
			criticality = entity.CriticalityMedium
		}
		lines = append(lines, entity.PRLine{
			ID:                s.codes.NewID(),
			PRID:              prID,
			PartID:            in.PartID,
			QuantityRequested: in.Quantity,
			Criticality:       criticality,
			Notes:             in.Notes,
			Status:            entity.LineStatusPending,
			SortOrder:         i + 1,
		})
	}
	return lines
}

func (s *RequisitionService) publish(pr *entity.PurchaseRequisition, action string) {
	s.journal.publish(sse.EventRequisitionUpdate, sse.ChangePayload{
		ID: pr.ID, Code: pr.Code, Action: action, Status: pr.Status,
	})
}

func (s *RequisitionService) publishLine(line *entity.PRLine, action string) {
	s.journal.publish(sse.EventRequisitionUpdate, sse.ChangePayload{
		ID: line.PRID, Action: action, Status: line.Status,
	})
}

// orderPendingTx orders a PENDING line against quotationNumber and leaves lines in
// any other status untouched. ordered reports whether the line changed.
func (s *RequisitionService) orderPendingTx(ctx context.Context, repo *repository.PRRepository, lineID, quotationNumber string, qty int) (line *entity.PRLine, ordered bool, err error) {
	line, err = repo.FindLineByIDForUpdate(ctx, lineID)
	if err != nil {
		return nil, false, lookupErr(entityRequisitionLine, lineID, err)
	}
	if line.Status != entity.LineStatusPending {
		return line, false, nil
	}
	if err := orderLine(line, quotationNumber, qty); err != nil {
		return nil, false, err
	}
	if err := repo.UpdateLine(ctx, line); err != nil {
		return nil, false, err
	}
	return line, true, nil
}
