package handler

import (
	"github.com/bitfantasy/nimo-mro/internal/procurement/service"
	"github.com/gin-gonic/gin"
)

// QuotationHandler 询价单处理器
type QuotationHandler struct {
	svc *service.QuotationService
}

func NewQuotationHandler(svc *service.QuotationService) *QuotationHandler {
	return &QuotationHandler{svc: svc}
}

// List 询价单列表
// GET /api/v1/procurement/quotations?status=xxx&supplier=xxx&search=xxx
func (h *QuotationHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":   c.Query("status"),
		"supplier": c.Query("supplier"),
		"search":   c.Query("search"),
	}
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取询价单列表失败: "+err.Error())
		return
	}
	List(c, items, total, page, pageSize)
}

// Get 询价单详情
// GET /api/v1/procurement/quotations/:id
func (h *QuotationHandler) Get(c *gin.Context) {
	qr, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, qr)
}

// GetByNumber 按询价单号查询
// GET /api/v1/procurement/quotation-numbers/:number
func (h *QuotationHandler) GetByNumber(c *gin.Context) {
	qr, err := h.svc.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, qr)
}

// Update 更新询价单
// PUT /api/v1/procurement/quotations/:id
func (h *QuotationHandler) Update(c *gin.Context) {
	var req service.UpdateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	qr, err := h.svc.Update(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, qr)
}

// Delete 删除询价单
// DELETE /api/v1/procurement/quotations/:id
func (h *QuotationHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, nil)
}

// Complete 手动完成询价单
// POST /api/v1/procurement/quotations/:id/complete
func (h *QuotationHandler) Complete(c *gin.Context) {
	qr, err := h.svc.Complete(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, qr)
}

// Cancel 取消询价单
// POST /api/v1/procurement/quotations/:id/cancel
func (h *QuotationHandler) Cancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	qr, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, qr)
}

// Activities 操作日志
// GET /api/v1/procurement/quotations/:id/activities
func (h *QuotationHandler) Activities(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.Activities(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}
	List(c, items, total, page, pageSize)
}
