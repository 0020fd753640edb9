package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/domain/catalogs/company"
	"apotheca/internal/domain/catalogs/item"
	"apotheca/internal/infrastructure/http/v1/dto"
)

// ItemHandler serves item catalog edits. Updates that touch pricing
// fields refresh the item's snapshots synchronously before returning.
type ItemHandler struct {
	*BaseHandler
	items     *item.Service
	companies *company.Service
}

func NewItemHandler(base *BaseHandler, items *item.Service, companies *company.Service) *ItemHandler {
	return &ItemHandler{BaseHandler: base, items: items, companies: companies}
}

func (h *ItemHandler) Create(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it, err := req.ToEntity(companyID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item payload").WithDetail("error", err.Error()))
		return
	}
	if err := h.items.Create(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, it.ID)
}

func (h *ItemHandler) Get(c *gin.Context) {
	if _, ok := h.CompanyID(c); !ok {
		return
	}
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	it, err := h.items.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

func (h *ItemHandler) Update(c *gin.Context) {
	if _, ok := h.CompanyID(c); !ok {
		return
	}
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it, err := h.items.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.ApplyTo(it); err != nil {
		h.Error(c, apperror.NewValidation("invalid item payload").WithDetail("error", err.Error()))
		return
	}
	if err := h.items.Update(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

// UpdateCompanyMargin changes the company default margin and queues
// branch-wide reprices.
func (h *ItemHandler) UpdateCompanyMargin(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.UpdateMarginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	margin, err := decimal.NewFromString(req.DefaultMarginPercent)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid margin percent"))
		return
	}
	if err := h.companies.UpdateDefaultMargin(c.Request.Context(), companyID, &margin); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "margin updated, branch refreshes queued")
}
