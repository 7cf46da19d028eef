package handler

import (
	"github.com/bitfantasy/nimo-mro/internal/procurement/service"
	"github.com/gin-gonic/gin"
)

// RequisitionHandler 采购申请处理器
type RequisitionHandler struct {
	svc *service.RequisitionService
}

func NewRequisitionHandler(svc *service.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{svc: svc}
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

// List 采购申请列表
// GET /api/v1/procurement/requisitions?status=xxx&requestor_id=xxx&search=xxx
func (h *RequisitionHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":       c.Query("status"),
		"requestor_id": c.Query("requestor_id"),
		"search":       c.Query("search"),
	}
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取采购申请列表失败: "+err.Error())
		return
	}
	List(c, items, total, page, pageSize)
}

// Get 采购申请详情
// GET /api/v1/procurement/requisitions/:id
func (h *RequisitionHandler) Get(c *gin.Context) {
	pr, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// Create 创建采购申请
// POST /api/v1/procurement/requisitions
func (h *RequisitionHandler) Create(c *gin.Context) {
	var req service.CreateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	pr, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, pr)
}

// Edit 编辑采购申请
// PUT /api/v1/procurement/requisitions/:id
func (h *RequisitionHandler) Edit(c *gin.Context) {
	var req service.EditRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	pr, err := h.svc.Edit(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// Delete 删除采购申请
// DELETE /api/v1/procurement/requisitions/:id
func (h *RequisitionHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, nil)
}

// Approve 审批通过
// POST /api/v1/procurement/requisitions/:id/approve
func (h *RequisitionHandler) Approve(c *gin.Context) {
	var req reviewRequest
	_ = c.ShouldBindJSON(&req)
	pr, err := h.svc.Approve(c.Request.Context(), c.Param("id"), GetUserID(c), req.Notes)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// Reject 驳回
// POST /api/v1/procurement/requisitions/:id/reject
func (h *RequisitionHandler) Reject(c *gin.Context) {
	var req reviewRequest
	_ = c.ShouldBindJSON(&req)
	pr, err := h.svc.Reject(c.Request.Context(), c.Param("id"), GetUserID(c), req.Notes)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// SendToPurchase 提交采购
// POST /api/v1/procurement/requisitions/:id/send-to-purchase
func (h *RequisitionHandler) SendToPurchase(c *gin.Context) {
	pr, err := h.svc.SendToPurchase(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// Complete 完成采购申请
// POST /api/v1/procurement/requisitions/:id/complete
func (h *RequisitionHandler) Complete(c *gin.Context) {
	pr, err := h.svc.Complete(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pr)
}

// Activities 操作日志
// GET /api/v1/procurement/requisitions/:id/activities
func (h *RequisitionHandler) Activities(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.Activities(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}
	List(c, items, total, page, pageSize)
}

// GetLine 申请行项详情
// GET /api/v1/procurement/requisition-lines/:lineId
func (h *RequisitionHandler) GetLine(c *gin.Context) {
	line, err := h.svc.GetLine(c.Request.Context(), c.Param("lineId"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, line)
}

// ReceiveLine 申请行项收货
// POST /api/v1/procurement/requisition-lines/:lineId/receive
func (h *RequisitionHandler) ReceiveLine(c *gin.Context) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	line, err := h.svc.MarkLineReceived(c.Request.Context(), c.Param("lineId"), req.Quantity, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, line)
}
