package service

import (
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options tune the procurement engine.
type Options struct {
	Currency          string
	ReconcileReceipts bool
}

// Services 采购引擎服务集合
type Services struct {
	Requisition    *RequisitionService
	Quotation      *QuotationService
	Reconciliation *ReconciliationService
	Dashboard      *DashboardService
}

// NewServices wires the engine over repos. events may be nil.
func NewServices(db *gorm.DB, repos *repository.Repositories, events EventPublisher, logger *zap.Logger, opts Options) *Services {
	codes := NewSequentialCodeGenerator(repos.Sequence)
	requisitions := NewRequisitionService(db, repos, codes, events, logger)
	quotations := NewQuotationService(db, repos, codes, events, logger, opts.Currency)
	return &Services{
		Requisition:    requisitions,
		Quotation:      quotations,
		Reconciliation: NewReconciliationService(db, repos, requisitions, quotations, logger, opts.ReconcileReceipts),
		Dashboard:      NewDashboardService(repos),
	}
}
