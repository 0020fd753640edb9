package company

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/domain/catalogs/branch"
	"apotheca/pkg/logger"
)

// Enqueuer is the slice of the refresh queue the company service needs.
// A company-wide pricing change cannot be recomputed synchronously; it
// enqueues one branch-wide job per active branch.
type Enqueuer interface {
	EnqueueBranch(ctx context.Context, companyID, branchID id.ID, reason string) error
}

// Service provides business operations for the company catalog.
type Service struct {
	repo     Repository
	branches branch.Repository
	queue    Enqueuer
}

// NewService creates a new company service.
func NewService(repo Repository, branches branch.Repository, queue Enqueuer) *Service {
	return &Service{repo: repo, branches: branches, queue: queue}
}

// GetByID retrieves a company.
func (s *Service) GetByID(ctx context.Context, companyID id.ID) (*Company, error) {
	c, err := s.repo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.NewNotFound("company", companyID)
	}
	return c, nil
}

// UpdateDefaultMargin changes the company-wide default margin and enqueues
// a branch-wide snapshot refresh for every active branch. The jobs run in
// the background; until they drain, snapshot selling prices lag the new
// margin (accepted eventual consistency for bulk pricing changes).
func (s *Service) UpdateDefaultMargin(ctx context.Context, companyID id.ID, margin *decimal.Decimal) error {
	c, err := s.GetByID(ctx, companyID)
	if err != nil {
		return err
	}

	c.DefaultMarginPercent = margin
	c.UpdatedAt = time.Now().UTC()
	if err := c.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return fmt.Errorf("update company: %w", err)
	}

	branches, err := s.branches.ListActive(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list active branches: %w", err)
	}
	for _, b := range branches {
		if err := s.queue.EnqueueBranch(ctx, companyID, b.ID, "company margin change"); err != nil {
			return fmt.Errorf("enqueue branch %s: %w", b.ID, err)
		}
	}

	logger.Info(ctx, "company default margin updated",
		"company_id", companyID,
		"branches_enqueued", len(branches),
	)
	return nil
}
