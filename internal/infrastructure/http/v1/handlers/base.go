// Package handlers implements the v1 HTTP handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/appctx"
	"apotheca/internal/core/id"
	"apotheca/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates the JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers the error on the gin context and aborts. The JSON
// response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// CompanyID returns the authenticated company scope. A missing or
// malformed scope aborts with 401 and returns false.
func (h *BaseHandler) CompanyID(c *gin.Context) (id.ID, bool) {
	raw := appctx.GetCompanyID(c.Request.Context())
	companyID, err := id.Parse(raw)
	if err != nil || id.IsNil(companyID) {
		h.Error(c, apperror.NewUnauthorized("missing company scope"))
		return id.Nil(), false
	}
	return companyID, true
}

// ParamID parses a path parameter as an ID.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+name+" format"))
		return id.Nil(), false
	}
	return parsed, true
}

// QueryID parses a required query parameter as an ID.
func (h *BaseHandler) QueryID(c *gin.Context, name string) (id.ID, bool) {
	parsed, err := id.Parse(c.Query(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid or missing "+name))
		return id.Nil(), false
	}
	return parsed, true
}

// ParseIntQuery parses an integer query parameter with a default.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// RequireBranchAccess rejects requests against branches outside the
// user's scope.
func (h *BaseHandler) RequireBranchAccess(c *gin.Context, branchID id.ID) bool {
	if !appctx.HasBranchAccess(c.Request.Context(), branchID.String()) {
		h.Error(c, apperror.NewForbidden("no access to branch").
			WithDetail("branch_id", branchID.String()))
		return false
	}
	return true
}

// Created sends 201 with the new entity's ID.
func (h *BaseHandler) Created(c *gin.Context, entityID id.ID) {
	c.JSON(http.StatusCreated, dto.IDResponse{ID: entityID.String()})
}

// OK sends 200 with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Success sends a 200 acknowledgement.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}
