package handlers

import (
	"github.com/gin-gonic/gin"

	"apotheca/internal/core/apperror"
	"apotheca/internal/domain/openingbalance"
	"apotheca/internal/infrastructure/http/v1/dto"
)

// OpeningBalanceHandler serves the go-live maintenance surface: loading
// initial stock positions and rewriting a mistyped one.
type OpeningBalanceHandler struct {
	*BaseHandler
	openings *openingbalance.Service
}

func NewOpeningBalanceHandler(base *BaseHandler, openings *openingbalance.Service) *OpeningBalanceHandler {
	return &OpeningBalanceHandler{BaseHandler: base, openings: openings}
}

func (h *OpeningBalanceHandler) Set(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.SetOpeningBalanceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := req.ToEntity(companyID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid opening balance payload").WithDetail("error", err.Error()))
		return
	}
	if !h.RequireBranchAccess(c, o.BranchID) {
		return
	}

	entryID, err := h.openings.Set(c.Request.Context(), o)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, entryID)
}

func (h *OpeningBalanceHandler) Correct(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.CorrectOpeningBalanceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	qty, cost, err := req.Parse()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid opening balance payload").WithDetail("error", err.Error()))
		return
	}

	delta, err := h.openings.Correct(c.Request.Context(), companyID, entryID, qty, cost)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, delta)
}
