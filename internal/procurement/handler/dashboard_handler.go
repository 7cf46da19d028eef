package handler

import (
	"github.com/bitfantasy/nimo-mro/internal/procurement/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler 看板处理器
type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Summary 采购看板
// GET /api/v1/procurement/dashboard
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		InternalError(c, "获取看板数据失败: "+err.Error())
		return
	}
	Success(c, summary)
}

// QuotationProgress 询价单收货进度
// GET /api/v1/procurement/quotations/:id/progress
func (h *DashboardHandler) QuotationProgress(c *gin.Context) {
	progress, err := h.svc.QuotationProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, progress)
}
