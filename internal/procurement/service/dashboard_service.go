package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mro/internal/procurement/ledger"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
)

// DashboardService 采购看板服务
type DashboardService struct {
	prRepo *repository.PRRepository
	qrRepo *repository.QRRepository
}

func NewDashboardService(repos *repository.Repositories) *DashboardService {
	return &DashboardService{prRepo: repos.PR, qrRepo: repos.QR}
}

// Summary 看板汇总
type Summary struct {
	Requisitions      map[string]int64 `json:"requisitions"`
	Quotations        map[string]int64 `json:"quotations"`
	ReadyForQuotation int64            `json:"ready_for_quotation"`
	AwaitingDelivery  int64            `json:"awaiting_delivery"`
}

// Summary counts documents by status and the lines still in flight.
func (s *DashboardService) Summary(ctx context.Context) (*Summary, error) {
	prCounts, err := s.prRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计采购申请失败: %w", err)
	}
	qrCounts, err := s.qrRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计询价单失败: %w", err)
	}
	ready, err := s.prRepo.CountReadyLines(ctx)
	if err != nil {
		return nil, err
	}
	open, err := s.qrRepo.CountOpenLines(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Requisitions:      toMap(prCounts),
		Quotations:        toMap(qrCounts),
		ReadyForQuotation: ready,
		AwaitingDelivery:  open,
	}, nil
}

// LineProgress 行项收货进度
type LineProgress struct {
	LineID    string  `json:"line_id"`
	PartID    string  `json:"part_id"`
	Requested int     `json:"requested"`
	Received  int     `json:"received"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"percent"`
}

// QuotationProgress 询价单收货进度
type QuotationProgress struct {
	QuotationNumber string         `json:"quotation_number"`
	Status          string         `json:"status"`
	Requested       int            `json:"requested"`
	Received        int            `json:"received"`
	Percent         float64        `json:"percent"`
	Lines           []LineProgress `json:"lines"`
}

// QuotationProgress reports receipt progress of one quotation.
func (s *DashboardService) QuotationProgress(ctx context.Context, id string) (*QuotationProgress, error) {
	qr, err := s.qrRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(entityQuotation, id, err)
	}
	p := &QuotationProgress{QuotationNumber: qr.QuotationNumber, Status: qr.Status}
	for _, l := range qr.Lines {
		p.Requested += l.QuantityRequested
		p.Received += l.QuantityReceived
		p.Lines = append(p.Lines, LineProgress{
			LineID:    l.ID,
			PartID:    l.PartID,
			Requested: l.QuantityRequested,
			Received:  l.QuantityReceived,
			Remaining: ledger.Remaining(l.QuantityRequested, l.QuantityReceived),
			Percent:   ledger.ReceivePercentage(l.QuantityRequested, l.QuantityReceived),
		})
	}
	p.Percent = ledger.ReceivePercentage(p.Requested, p.Received)
	return p, nil
}

func toMap(rows []repository.StatusCount) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Status] = r.Count
	}
	return m
}
