package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-mro/internal/middleware"
	"github.com/bitfantasy/nimo-mro/internal/procurement/ledger"
	"github.com/bitfantasy/nimo-mro/internal/procurement/service"
	"github.com/bitfantasy/nimo-mro/internal/procurement/sse"
	"github.com/gin-gonic/gin"
)

// 业务错误码; the HTTP status is code/100.
const (
	CodeBadRequest        = 40000
	CodeValidation        = 40001
	CodeInvalidTransition = 40002
	CodeOverReceipt       = 40003
	CodeNotFound          = 40400
	CodeConflict          = 40900
	CodeInternal          = 50000
)

// Handlers 采购处理器集合
type Handlers struct {
	Requisition *RequisitionHandler
	Quotation   *QuotationHandler
	Procurement *ProcurementHandler
	Dashboard   *DashboardHandler
	SSE         *SSEHandler
}

// NewHandlers 创建采购处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Requisition: NewRequisitionHandler(svc.Requisition),
		Quotation:   NewQuotationHandler(svc.Quotation),
		Procurement: NewProcurementHandler(svc.Reconciliation),
		Dashboard:   NewDashboardHandler(svc.Dashboard),
		SSE:         NewSSEHandler(hub),
	}
}

// RegisterRoutes mounts the procurement API under api.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	prs := api.Group("/requisitions")
	{
		prs.GET("", h.Requisition.List)
		prs.POST("", h.Requisition.Create)
		prs.GET("/:id", h.Requisition.Get)
		prs.PUT("/:id", h.Requisition.Edit)
		prs.DELETE("/:id", h.Requisition.Delete)
		prs.POST("/:id/approve", h.Requisition.Approve)
		prs.POST("/:id/reject", h.Requisition.Reject)
		prs.POST("/:id/send-to-purchase", h.Requisition.SendToPurchase)
		prs.POST("/:id/complete", h.Requisition.Complete)
		prs.GET("/:id/activities", h.Requisition.Activities)
	}

	lines := api.Group("/requisition-lines")
	{
		lines.GET("/:lineId", h.Requisition.GetLine)
		lines.POST("/:lineId/order", h.Procurement.OrderPart)
		lines.POST("/:lineId/receive", h.Requisition.ReceiveLine)
	}

	qrs := api.Group("/quotations")
	{
		qrs.GET("", h.Quotation.List)
		qrs.POST("/from-parts", h.Procurement.CreateFromParts)
		qrs.POST("/from-selection", h.Procurement.CreateFromSelection)
		qrs.GET("/:id", h.Quotation.Get)
		qrs.PUT("/:id", h.Quotation.Update)
		qrs.DELETE("/:id", h.Quotation.Delete)
		qrs.PUT("/:id/status", h.Procurement.UpdateStatus)
		qrs.POST("/:id/receive", h.Procurement.ReceivePart)
		qrs.POST("/:id/complete", h.Quotation.Complete)
		qrs.POST("/:id/cancel", h.Quotation.Cancel)
		qrs.GET("/:id/activities", h.Quotation.Activities)
		qrs.GET("/:id/progress", h.Dashboard.QuotationProgress)
	}
	api.GET("/quotation-numbers/:number", h.Quotation.GetByNumber)

	api.GET("/ready-parts", h.Procurement.ReadyParts)
	api.GET("/suppliers/pending", h.Procurement.PendingSuppliers)
	api.GET("/dashboard", h.Dashboard.Summary)
	api.GET("/events", h.SSE.Stream)
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func List(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, CodeBadRequest, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, CodeInternal, message)
}

// ServiceError maps an engine error onto the response envelope.
func ServiceError(c *gin.Context, err error) {
	ServiceErrorWithData(c, err, nil)
}

// ServiceErrorWithData is ServiceError with a payload for partially applied operations.
func ServiceErrorWithData(c *gin.Context, err error, data interface{}) {
	var te *service.InvalidTransitionError
	var oe *ledger.OverReceiptError
	switch {
	case errors.As(err, &te):
		if data == nil {
			data = te
		}
		ErrorWithData(c, CodeInvalidTransition, err.Error(), data)
	case errors.As(err, &oe):
		if data == nil {
			data = oe
		}
		ErrorWithData(c, CodeOverReceipt, err.Error(), data)
	case errors.Is(err, service.ErrValidation):
		ErrorWithData(c, CodeValidation, err.Error(), data)
	case errors.Is(err, service.ErrNotFound):
		ErrorWithData(c, CodeNotFound, err.Error(), data)
	case errors.Is(err, service.ErrConflict):
		ErrorWithData(c, CodeConflict, err.Error(), data)
	default:
		_ = c.Error(err)
		ErrorWithData(c, CodeInternal, "服务器内部错误: "+err.Error(), data)
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.KeyUserID)
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
