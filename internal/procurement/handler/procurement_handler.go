package handler

import (
	"github.com/bitfantasy/nimo-mro/internal/procurement/service"
	"github.com/gin-gonic/gin"
)

// ProcurementHandler exposes the operations spanning requisitions and quotations.
type ProcurementHandler struct {
	svc *service.ReconciliationService
}

func NewProcurementHandler(svc *service.ReconciliationService) *ProcurementHandler {
	return &ProcurementHandler{svc: svc}
}

// OrderPart 申请行项下单
// POST /api/v1/procurement/requisition-lines/:lineId/order
func (h *ProcurementHandler) OrderPart(c *gin.Context) {
	var req struct {
		QuotationNumber string `json:"quotation_number" binding:"required"`
		Quantity        int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	line, err := h.svc.OrderPart(c.Request.Context(), c.Param("lineId"), req.QuotationNumber, req.Quantity, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, line)
}

// CreateFromParts 按供应商创建询价单
// POST /api/v1/procurement/quotations/from-parts
func (h *ProcurementHandler) CreateFromParts(c *gin.Context) {
	var req struct {
		SupplierName string   `json:"supplier_name" binding:"required"`
		LineIDs      []string `json:"line_ids" binding:"required"`
		Notes        string   `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	qr, err := h.svc.CreateQuotationFromParts(c.Request.Context(), req.SupplierName, req.LineIDs, GetUserID(c), req.Notes)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, qr)
}

// CreateFromSelection 勾选物料按供应商拆分询价单
// POST /api/v1/procurement/quotations/from-selection
func (h *ProcurementHandler) CreateFromSelection(c *gin.Context) {
	var req struct {
		LineIDs []string `json:"line_ids" binding:"required"`
		Notes   string   `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	res, err := h.svc.CreateQuotationsFromSelection(c.Request.Context(), req.LineIDs, GetUserID(c), req.Notes)
	if err != nil {
		if res != nil && len(res.Quotations) > 0 {
			ServiceErrorWithData(c, err, res)
			return
		}
		ServiceError(c, err)
		return
	}
	Created(c, res)
}

// UpdateStatus 更新询价单状态
// PUT /api/v1/procurement/quotations/:id/status
func (h *ProcurementHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	qr, err := h.svc.UpdateQuotationStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, qr)
}

// ReceivePart 询价单收货
// POST /api/v1/procurement/quotations/:id/receive
func (h *ProcurementHandler) ReceivePart(c *gin.Context) {
	var req struct {
		PartID   string `json:"part_id" binding:"required"`
		Quantity int    `json:"quantity"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	qr, err := h.svc.ReceivePart(c.Request.Context(), c.Param("id"), req.PartID, req.Quantity, req.Notes, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, qr)
}

// ReadyParts 待询价物料
// GET /api/v1/procurement/ready-parts?supplier=xxx
func (h *ProcurementHandler) ReadyParts(c *gin.Context) {
	lines, err := h.svc.PartsReadyForQuotation(c.Request.Context(), c.Query("supplier"))
	if err != nil {
		InternalError(c, "获取待询价物料失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": lines})
}

// PendingSuppliers 有待询价物料的供应商
// GET /api/v1/procurement/suppliers/pending
func (h *ProcurementHandler) PendingSuppliers(c *gin.Context) {
	rows, err := h.svc.SuppliersWithPendingParts(c.Request.Context())
	if err != nil {
		InternalError(c, "获取供应商列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": rows})
}
