package handlers

import (
	"github.com/gin-gonic/gin"

	"apotheca/internal/core/apperror"
	"apotheca/internal/domain/documents/adjustment"
	"apotheca/internal/domain/documents/purchase"
	"apotheca/internal/domain/documents/sale"
	"apotheca/internal/domain/documents/transfer"
	"apotheca/internal/infrastructure/http/v1/dto"
)

// DocumentHandler serves the four posting document kinds. Create with
// postImmediately makes draft-and-post a single request, which is how
// the POS clients use it.
type DocumentHandler struct {
	*BaseHandler
	purchases   *purchase.Service
	sales       *sale.Service
	adjustments *adjustment.Service
	transfers   *transfer.Service
}

func NewDocumentHandler(base *BaseHandler, purchases *purchase.Service, sales *sale.Service, adjustments *adjustment.Service, transfers *transfer.Service) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		purchases:   purchases,
		sales:       sales,
		adjustments: adjustments,
		transfers:   transfers,
	}
}

func (h *DocumentHandler) CreatePurchase(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.CreatePurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := req.ToEntity(companyID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid document payload").WithDetail("error", err.Error()))
		return
	}
	if !h.RequireBranchAccess(c, inv.BranchID) {
		return
	}

	ctx := c.Request.Context()
	invID, err := h.purchases.Create(ctx, inv)
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.PostImmediately {
		if err := h.purchases.Post(ctx, companyID, invID); err != nil {
			h.Error(c, err)
			return
		}
	}
	h.Created(c, invID)
}

func (h *DocumentHandler) PostPurchase(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.purchases.Post(c.Request.Context(), companyID, invID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "purchase invoice posted")
}

func (h *DocumentHandler) GetPurchase(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	inv, err := h.purchases.GetByID(c.Request.Context(), companyID, invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

func (h *DocumentHandler) CreateSale(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := req.ToEntity(companyID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid document payload").WithDetail("error", err.Error()))
		return
	}
	if !h.RequireBranchAccess(c, inv.BranchID) {
		return
	}

	ctx := c.Request.Context()
	invID, err := h.sales.Create(ctx, inv)
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.PostImmediately {
		if err := h.sales.Post(ctx, companyID, invID); err != nil {
			h.Error(c, err)
			return
		}
	}
	h.Created(c, invID)
}

func (h *DocumentHandler) PostSale(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.sales.Post(c.Request.Context(), companyID, invID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "sales invoice posted")
}

func (h *DocumentHandler) GetSale(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	invID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	inv, err := h.sales.GetByID(c.Request.Context(), companyID, invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

func (h *DocumentHandler) CreateAdjustment(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.CreateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	adj, err := req.ToEntity(companyID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid document payload").WithDetail("error", err.Error()))
		return
	}
	if !h.RequireBranchAccess(c, adj.BranchID) {
		return
	}

	ctx := c.Request.Context()
	adjID, err := h.adjustments.Create(ctx, adj)
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.PostImmediately {
		if err := h.adjustments.Post(ctx, companyID, adjID); err != nil {
			h.Error(c, err)
			return
		}
	}
	h.Created(c, adjID)
}

func (h *DocumentHandler) PostAdjustment(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	adjID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.adjustments.Post(c.Request.Context(), companyID, adjID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "adjustment posted")
}

func (h *DocumentHandler) CreateTransfer(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := req.ToEntity(companyID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid document payload").WithDetail("error", err.Error()))
		return
	}
	if !h.RequireBranchAccess(c, t.SourceBranch) {
		return
	}

	ctx := c.Request.Context()
	tID, err := h.transfers.Create(ctx, t)
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.PostImmediately {
		if err := h.transfers.Post(ctx, companyID, tID); err != nil {
			h.Error(c, err)
			return
		}
	}
	h.Created(c, tID)
}

func (h *DocumentHandler) PostTransfer(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	tID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.transfers.Post(c.Request.Context(), companyID, tID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "transfer posted")
}
