package service

import (
	"context"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"github.com/bitfantasy/nimo-mro/internal/procurement/sse"
	"go.uber.org/zap"
)

// journal writes audit entries and change events once a transaction has committed.
// Failures are logged and never undo the committed change.
type journal struct {
	logs   *repository.ActivityLogRepository
	events EventPublisher
	codes  CodeGenerator
	logger *zap.Logger
}

func (j *journal) record(ctx context.Context, entries ...entity.ActivityLog) {
	if j.logs == nil || len(entries) == 0 {
		return
	}
	if j.codes != nil {
		for i := range entries {
			if entries[i].ID == "" {
				entries[i].ID = j.codes.NewID()
			}
		}
	}
	if err := j.logs.Append(ctx, entries); err != nil {
		j.logger.Warn("write activity log failed",
			zap.String("entity_type", entries[0].EntityType),
			zap.String("entity_id", entries[0].EntityID),
			zap.String("action", entries[0].Action),
			zap.Int("entries", len(entries)),
			zap.Error(err))
	}
}

func (j *journal) publish(eventType string, payload sse.ChangePayload) {
	if j.events == nil {
		return
	}
	j.events.Publish(sse.NewEvent(eventType, payload))
}

func (j *journal) notify(userID, eventType string, payload sse.ChangePayload) {
	if j.events == nil || userID == "" {
		return
	}
	j.events.SendToUser(userID, sse.NewEvent(eventType, payload))
}

func prEntry(pr *entity.PurchaseRequisition, action, from, operatorID, content string) entity.ActivityLog {
	return entity.ActivityLog{
		EntityType: entity.EntityTypePR,
		EntityID:   pr.ID,
		EntityCode: pr.Code,
		Action:     action,
		FromStatus: from,
		ToStatus:   pr.Status,
		Content:    content,
		OperatorID: operatorID,
	}
}

func prLineEntry(line *entity.PRLine, action, from, operatorID, content string) entity.ActivityLog {
	code := ""
	if line.QuotationNumber != nil {
		code = *line.QuotationNumber
	}
	return entity.ActivityLog{
		EntityType: entity.EntityTypePRLine,
		EntityID:   line.ID,
		EntityCode: code,
		Action:     action,
		FromStatus: from,
		ToStatus:   line.Status,
		Content:    content,
		OperatorID: operatorID,
	}
}

func qrEntry(qr *entity.QuotationRequest, action, from, operatorID, content string) entity.ActivityLog {
	return entity.ActivityLog{
		EntityType: entity.EntityTypeQR,
		EntityID:   qr.ID,
		EntityCode: qr.QuotationNumber,
		Action:     action,
		FromStatus: from,
		ToStatus:   qr.Status,
		Content:    content,
		OperatorID: operatorID,
	}
}
