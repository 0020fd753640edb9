package appctx

import (
	"context"
)

// UserContext contains the authenticated user's identity and scope.
// CompanyID scopes every query; BranchIDs limits which branches the
// user may post documents against (empty means all branches).
type UserContext struct {
	UserID    string
	CompanyID string
	Email     string
	Roles     []string
	BranchIDs []string
	IsAdmin   bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetCompanyID returns the scoped company ID from context or empty string.
func GetCompanyID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.CompanyID
	}
	return ""
}

// HasBranchAccess checks if user may operate on the branch.
func HasBranchAccess(ctx context.Context, branchID string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.IsAdmin || len(u.BranchIDs) == 0 {
		return true
	}
	for _, id := range u.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}
