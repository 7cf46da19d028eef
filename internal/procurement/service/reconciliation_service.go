package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconciliationService is the only component that changes requisitions and
// quotations in one operation.
type ReconciliationService struct {
	db           *gorm.DB
	prRepo       *repository.PRRepository
	parts        PartLookup
	requisitions *RequisitionService
	quotations   *QuotationService
	logger       *zap.Logger

	// reconcileReceipts propagates quotation receipts to their source requisition lines.
	reconcileReceipts bool
}

func NewReconciliationService(db *gorm.DB, repos *repository.Repositories, requisitions *RequisitionService, quotations *QuotationService, logger *zap.Logger, reconcileReceipts bool) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		db:                db,
		prRepo:            repos.PR,
		parts:             repos.Part,
		requisitions:      requisitions,
		quotations:        quotations,
		logger:            logger.Named("reconciliation"),
		reconcileReceipts: reconcileReceipts,
	}
}

// SplitResult is the outcome of a multi-supplier creation. Primary is the first
// quotation; Quotations holds every committed one.
type SplitResult struct {
	Primary    *entity.QuotationRequest  `json:"primary"`
	Quotations []entity.QuotationRequest `json:"quotations"`
}

type lineChange struct {
	line *entity.PRLine
	from string
}

// OrderPart 标记申请行项已下单
func (s *ReconciliationService) OrderPart(ctx context.Context, prLineID, quotationNumber string, qty int, operatorID string) (*entity.PRLine, error) {
	return s.requisitions.MarkLineOrdered(ctx, prLineID, quotationNumber, qty, operatorID)
}

// ReceivePart records a delivery on a quotation. With receipt reconciliation on,
// the source requisition lines receive the same quantities in the same transaction.
func (s *ReconciliationService) ReceivePart(ctx context.Context, qrID, partID string, qty int, notes, operatorID string) (*entity.QuotationRequest, error) {
	if !s.reconcileReceipts {
		return s.quotations.ReceiveLine(ctx, qrID, partID, qty, notes, operatorID)
	}

	var res *receiptResult
	var changes []lineChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.quotations.receiveTx(ctx, tx, qrID, partID, qty, notes)
		if err != nil {
			return err
		}
		repo := s.prRepo.WithTx(tx)
		for _, r := range res.Receipts {
			if r.Line.PRLineID == nil {
				continue
			}
			line, from, err := s.requisitions.propagateReceiptTx(ctx, repo, *r.Line.PRLineID,
				res.QR.QuotationNumber, r.Line.QuantityRequested, r.Quantity)
			if errors.Is(err, ErrNotFound) {
				s.logger.Warn("source requisition line missing",
					zap.String("quotation_number", res.QR.QuotationNumber),
					zap.String("pr_line_id", *r.Line.PRLineID))
				continue
			}
			if err != nil {
				return fmt.Errorf("同步申请行项收货失败: %w", err)
			}
			changes = append(changes, lineChange{line: line, from: from})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.quotations.afterReceive(ctx, res, partID, qty, operatorID)
	s.recordLineChanges(ctx, changes, ActionReceive, operatorID, "received via "+res.QR.QuotationNumber)
	return s.quotations.Get(ctx, qrID)
}

// CreateQuotationFromParts creates one quotation for supplier from the selected
// lines and marks them ORDERED with its number in the same transaction.
func (s *ReconciliationService) CreateQuotationFromParts(ctx context.Context, supplier string, lineIDs []string, creatorID, notes string) (*entity.QuotationRequest, error) {
	supplier = strings.TrimSpace(supplier)
	if supplier == "" {
		return nil, validation("supplier_name", "is required")
	}
	lines, err := s.resolveLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if got := supplierOf(l); got != supplier {
			return nil, validation("line_ids", "line %s belongs to supplier %q, not %q", l.ID, got, supplier)
		}
	}

	var changes []lineChange
	qr, err := s.quotations.CreateForGroup(ctx, SupplierGroup{SupplierName: supplier, Lines: lines}, creatorID, notes,
		func(tx *gorm.DB, qr *entity.QuotationRequest) error {
			repo := s.prRepo.WithTx(tx)
			for _, l := range lines {
				line, from, err := s.requisitions.orderLineTx(ctx, repo, l.ID, qr.QuotationNumber, l.QuantityRequested)
				if err != nil {
					return err
				}
				changes = append(changes, lineChange{line: line, from: from})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.recordLineChanges(ctx, changes, ActionOrder, creatorID, "ordered via "+qr.QuotationNumber)
	return qr, nil
}

// CreateQuotationsFromSelection splits the selected lines by supplier and creates
// one quotation per supplier. Lines stay PENDING. Each quotation commits on its own:
// when a later group fails, the result still carries the quotations already created.
func (s *ReconciliationService) CreateQuotationsFromSelection(ctx context.Context, lineIDs []string, creatorID, notes string) (*SplitResult, error) {
	lines, err := s.resolveLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	groups := GroupBySupplier(lines)
	for _, g := range groups {
		if strings.TrimSpace(g.SupplierName) == "" {
			return nil, validation("line_ids", "line %s has a part without supplier", g.Lines[0].ID)
		}
	}

	result := &SplitResult{}
	for _, g := range groups {
		qr, err := s.quotations.CreateForGroup(ctx, g, creatorID, notes, nil)
		if err != nil {
			s.logger.Error("supplier split stopped",
				zap.String("supplier", g.SupplierName),
				zap.Int("committed", len(result.Quotations)),
				zap.Int("groups", len(groups)),
				zap.Error(err))
			result.setPrimary()
			return result, fmt.Errorf("create quotation for %s: %w", g.SupplierName, err)
		}
		result.Quotations = append(result.Quotations, *qr)
	}
	result.setPrimary()

	s.logger.Info("supplier split done",
		zap.Int("lines", len(lines)),
		zap.Int("quotations", len(result.Quotations)))
	return result, nil
}

func (r *SplitResult) setPrimary() {
	if len(r.Quotations) > 0 {
		r.Primary = &r.Quotations[0]
	}
}

// UpdateQuotationStatus forces the quotation status. Moving to SENT or CONFIRMED
// orders the still PENDING source lines against the quotation.
func (s *ReconciliationService) UpdateQuotationStatus(ctx context.Context, qrID, status, notes, operatorID string) (*entity.QuotationRequest, error) {
	var changes []lineChange
	var hook TxHook
	if status == entity.QRStatusSent || status == entity.QRStatusConfirmed {
		hook = func(tx *gorm.DB, qr *entity.QuotationRequest) error {
			repo := s.prRepo.WithTx(tx)
			for _, l := range qr.Lines {
				if l.PRLineID == nil {
					continue
				}
				line, ordered, err := s.requisitions.orderPendingTx(ctx, repo, *l.PRLineID, qr.QuotationNumber, l.QuantityRequested)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if ordered {
					changes = append(changes, lineChange{line: line, from: entity.LineStatusPending})
				}
			}
			return nil
		}
	}

	qr, err := s.quotations.forceStatus(ctx, qrID, status, notes, operatorID, hook)
	if err != nil {
		return nil, err
	}
	s.recordLineChanges(ctx, changes, ActionOrder, operatorID, "ordered via "+qr.QuotationNumber)
	return qr, nil
}

// PartsReadyForQuotation 待询价物料: PENDING lines of approved requisitions.
func (s *ReconciliationService) PartsReadyForQuotation(ctx context.Context, supplier string) ([]entity.PRLine, error) {
	return s.prRepo.FindReadyLines(ctx, supplier)
}

// SuppliersWithPendingParts 有待询价物料的供应商
func (s *ReconciliationService) SuppliersWithPendingParts(ctx context.Context) ([]repository.SupplierPending, error) {
	return s.prRepo.FindSuppliersWithPending(ctx)
}

// resolveLines loads the selected lines in selection order, resolves their parts
// and checks they can be quoted. Any failure rejects the whole selection.
func (s *ReconciliationService) resolveLines(ctx context.Context, lineIDs []string) ([]entity.PRLine, error) {
	ids := dedupe(lineIDs)
	if len(ids) == 0 {
		return nil, validation("line_ids", "at least one line is required")
	}

	found, err := s.prRepo.FindLinesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("查询申请行项失败: %w", err)
	}
	byID := make(map[string]entity.PRLine, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}

	lines := make([]entity.PRLine, 0, len(ids))
	var prIDs []string
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, &NotFoundError{Entity: entityRequisitionLine, ID: id}
		}
		part, err := s.parts.FindByID(ctx, l.PartID)
		if err != nil {
			return nil, lookupErr("part", l.PartID, err)
		}
		l.Part = part
		lines = append(lines, l)
		prIDs = append(prIDs, l.PRID)
	}

	prs, err := s.prRepo.FindByIDs(ctx, dedupe(prIDs))
	if err != nil {
		return nil, fmt.Errorf("查询采购申请失败: %w", err)
	}
	prByID := make(map[string]entity.PurchaseRequisition, len(prs))
	for _, pr := range prs {
		prByID[pr.ID] = pr
	}

	for _, l := range lines {
		pr, ok := prByID[l.PRID]
		if !ok {
			return nil, &NotFoundError{Entity: entityRequisition, ID: l.PRID}
		}
		if !pr.IsApproved() {
			e := invalidTransition(entityRequisition, pr.Status, ActionQuote, entity.PRStatusApproved)
			if pr.Status == entity.PRStatusApproved {
				e.Reason = fmt.Sprintf("approval outcome is %q", pr.ApprovalOutcome)
			} else {
				e.Reason = "requisition " + pr.Code
			}
			return nil, e
		}
		if l.Status != entity.LineStatusPending {
			return nil, invalidTransition(entityRequisitionLine, l.Status, ActionQuote, entity.LineStatusPending)
		}
	}
	return lines, nil
}

func (s *ReconciliationService) recordLineChanges(ctx context.Context, changes []lineChange, action, operatorID, content string) {
	if len(changes) == 0 {
		return
	}
	entries := make([]entity.ActivityLog, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, prLineEntry(c.line, action, c.from, operatorID, content))
	}
	s.requisitions.journal.record(ctx, entries...)
	for _, c := range changes {
		s.requisitions.publishLine(c.line, action)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
