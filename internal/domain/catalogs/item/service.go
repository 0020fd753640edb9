package item

import (
	"context"
	"fmt"
	"time"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/pkg/logger"
)

// Refresher is the slice of the snapshot refresher the item service needs:
// after an item edit, its snapshot row in every active branch is stale
// (name, margin, vat all live denormalized there).
type Refresher interface {
	RefreshItemAllBranches(ctx context.Context, companyID, itemID id.ID) error
	SeedItemBranches(ctx context.Context, companyID, itemID id.ID) error
}

// Service provides business operations for the item catalog.
type Service struct {
	repo      Repository
	refresher Refresher
}

// NewService creates a new item service.
func NewService(repo Repository, refresher Refresher) *Service {
	return &Service{repo: repo, refresher: refresher}
}

// Create creates a new item.
func (s *Service) Create(ctx context.Context, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	if existing, err := s.repo.GetBySKU(ctx, it.CompanyID, it.SKU); err != nil {
		return fmt.Errorf("check sku: %w", err)
	} else if existing != nil {
		return apperror.NewDuplicate("item", "sku", it.SKU)
	}

	if err := s.repo.Create(ctx, it); err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	// Seed zero-stock rows so the item is searchable at once. Lenient:
	// a missed branch heals on the first posting touching it.
	if err := s.refresher.SeedItemBranches(ctx, it.CompanyID, it.ID); err != nil {
		logger.Warn(ctx, "seed item snapshots", "id", it.ID, "error", err)
	}

	logger.Info(ctx, "item created", "id", it.ID, "sku", it.SKU)
	return nil
}

// Update saves an edited item and synchronously refreshes its snapshot row
// in every active branch. Branch count is assumed small, so this is not
// queued.
func (s *Service) Update(ctx context.Context, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}
	it.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, it); err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	if err := s.refresher.RefreshItemAllBranches(ctx, it.CompanyID, it.ID); err != nil {
		return fmt.Errorf("refresh item snapshots: %w", err)
	}

	logger.Info(ctx, "item updated", "id", it.ID, "sku", it.SKU)
	return nil
}

// GetByID retrieves an item.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	it, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, apperror.NewNotFound("item", itemID)
	}
	return it, nil
}
