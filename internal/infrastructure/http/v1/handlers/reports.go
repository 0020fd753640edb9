package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"apotheca/internal/core/apperror"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/reports"
	"apotheca/internal/infrastructure/http/v1/dto"
)

type ReportHandler struct {
	*BaseHandler
	reports *reports.Service
}

func NewReportHandler(base *BaseHandler, reports *reports.Service) *ReportHandler {
	return &ReportHandler{BaseHandler: base, reports: reports}
}

// Movement returns the ledger history for one pair with running
// balance. GET /reports/movement?item_id=&branch_id=&from=&to=
func (h *ReportHandler) Movement(c *gin.Context) {
	if _, ok := h.CompanyID(c); !ok {
		return
	}
	itemID, ok := h.QueryID(c, "item_id")
	if !ok {
		return
	}
	branchID, ok := h.QueryID(c, "branch_id")
	if !ok {
		return
	}

	filter := ledger.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 500),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from timestamp"))
			return
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to timestamp"))
			return
		}
		filter.To = &t
	}

	report, err := h.reports.Movement(c.Request.Context(), itemID, branchID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Expiry lists batches expiring within the horizon (days).
func (h *ReportHandler) Expiry(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	branchID, ok := h.QueryID(c, "branch_id")
	if !ok {
		return
	}

	days := h.ParseIntQuery(c, "days", 90)
	limit := h.ParseIntQuery(c, "limit", 100)

	rows, err := h.reports.Expiry(c.Request.Context(), companyID, branchID,
		time.Duration(days)*24*time.Hour, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(rows))
}

// Valuation returns per-branch stock value from the snapshots.
func (h *ReportHandler) Valuation(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	rows, err := h.reports.Valuation(c.Request.Context(), companyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(rows))
}

// Reconcile compares ledger pairs against snapshot rows per branch.
func (h *ReportHandler) Reconcile(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	rows, err := h.reports.Reconcile(c.Request.Context(), companyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(rows))
}
