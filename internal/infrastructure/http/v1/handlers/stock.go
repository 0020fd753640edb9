package handlers

import (
	"github.com/gin-gonic/gin"

	"apotheca/internal/domain/snapshot"
	"apotheca/internal/infrastructure/http/v1/dto"
)

// StockHandler serves snapshot reads: item search and branch stock.
// Everything here comes from the denormalized rows; the ledger is
// never consulted on these paths.
type StockHandler struct {
	*BaseHandler
	snapshots snapshot.Repository
}

func NewStockHandler(base *BaseHandler, snapshots snapshot.Repository) *StockHandler {
	return &StockHandler{BaseHandler: base, snapshots: snapshots}
}

// Search matches query words against the precomputed search text.
// GET /stock/search?branch_id=...&q=paracetamol+500
func (h *StockHandler) Search(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	branchID, ok := h.QueryID(c, "branch_id")
	if !ok {
		return
	}

	query := c.Query("q")
	limit := h.ParseIntQuery(c, "limit", 50)
	if limit > 200 {
		limit = 200
	}

	rows, err := h.snapshots.Search(c.Request.Context(), companyID, branchID, query, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(rows))
}

// ListByBranch pages the full stock of a branch.
func (h *StockHandler) ListByBranch(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	branchID, ok := h.ParamID(c, "branch_id")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 100)
	offset := h.ParseIntQuery(c, "offset", 0)

	rows, err := h.snapshots.ListByBranch(c.Request.Context(), companyID, branchID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(rows))
}

// GetPair returns the snapshot row for one (item, branch) pair.
func (h *StockHandler) GetPair(c *gin.Context) {
	if _, ok := h.CompanyID(c); !ok {
		return
	}
	branchID, ok := h.ParamID(c, "branch_id")
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "item_id")
	if !ok {
		return
	}

	row, err := h.snapshots.Get(c.Request.Context(), itemID, branchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if row == nil {
		h.OK(c, gin.H{"exists": false})
		return
	}
	h.OK(c, row)
}
