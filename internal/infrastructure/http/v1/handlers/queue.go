package handlers

import (
	"github.com/gin-gonic/gin"

	"apotheca/internal/domain/refreshqueue"
	"apotheca/internal/domain/snapshot"
)

// QueueHandler exposes refresh queue maintenance: depth stats and a
// manual branch-wide refresh trigger for operators.
type QueueHandler struct {
	*BaseHandler
	queue     *refreshqueue.Service
	refresher *snapshot.Refresher
}

func NewQueueHandler(base *BaseHandler, queue *refreshqueue.Service, refresher *snapshot.Refresher) *QueueHandler {
	return &QueueHandler{BaseHandler: base, queue: queue, refresher: refresher}
}

// Stats reports pending, claimed and stale job counts.
func (h *QueueHandler) Stats(c *gin.Context) {
	if _, ok := h.CompanyID(c); !ok {
		return
	}

	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, stats)
}

// RefreshBranch queues a branch-wide snapshot rebuild.
// POST /queue/refresh/:branch_id
func (h *QueueHandler) RefreshBranch(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	branchID, ok := h.ParamID(c, "branch_id")
	if !ok {
		return
	}
	if !h.RequireBranchAccess(c, branchID) {
		return
	}

	err := h.refresher.ScheduleRefresh(c.Request.Context(), companyID, branchID, snapshot.Scope{})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "branch refresh queued")
}
