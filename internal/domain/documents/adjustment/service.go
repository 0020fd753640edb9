package adjustment

import (
	"context"
	"fmt"
	"time"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/tx"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/snapshot"
)

type Ledger interface {
	AppendBatch(ctx context.Context, entries []ledger.Entry) error
}

type Refresher interface {
	ScheduleRefresh(ctx context.Context, companyID, branchID id.ID, scope snapshot.Scope) error
}

type Auditor interface {
	LogPost(ctx context.Context, companyID id.ID, entityType string, entityID id.ID, payload any) error
}

type Service struct {
	repo      Repository
	ledger    Ledger
	refresher Refresher
	audit     Auditor
	txManager tx.Manager
}

func NewService(repo Repository, ledger Ledger, refresher Refresher, audit Auditor, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		refresher: refresher,
		audit:     audit,
		txManager: txManager,
	}
}

func (s *Service) Create(ctx context.Context, adj *Adjustment) (id.ID, error) {
	if err := adj.Validate(); err != nil {
		return id.Nil(), err
	}
	adj.ID = id.New()
	adj.Posted = false
	adj.CreatedAt = time.Now().UTC()
	for i := range adj.Lines {
		adj.Lines[i].ID = id.New()
		adj.Lines[i].AdjustmentID = adj.ID
	}
	if err := s.repo.Create(ctx, adj); err != nil {
		return id.Nil(), fmt.Errorf("create adjustment: %w", err)
	}
	return adj.ID, nil
}

func (s *Service) GetByID(ctx context.Context, companyID, adjID id.ID) (*Adjustment, error) {
	adj, err := s.repo.GetByID(ctx, companyID, adjID)
	if err != nil {
		return nil, fmt.Errorf("get adjustment: %w", err)
	}
	if adj == nil {
		return nil, apperror.NewNotFound("adjustment", adjID)
	}
	return adj, nil
}

func (s *Service) Post(ctx context.Context, companyID, adjID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		adj, err := s.GetByID(ctx, companyID, adjID)
		if err != nil {
			return err
		}
		if adj.Posted {
			return apperror.NewDocumentPosted("adjustment", adjID)
		}

		entries := make([]ledger.Entry, 0, len(adj.Lines))
		itemIDs := make([]id.ID, 0, len(adj.Lines))
		seen := make(map[id.ID]struct{}, len(adj.Lines))
		for i := range adj.Lines {
			l := &adj.Lines[i]
			entries = append(entries, ledger.Entry{
				CompanyID:     adj.CompanyID,
				BranchID:      adj.BranchID,
				ItemID:        l.ItemID,
				TxnType:       ledger.TxnAdjustment,
				QuantityDelta: l.QuantityDelta,
				UnitCost:      l.UnitCost,
				BatchNumber:   l.BatchNumber,
				ExpiryDate:    l.ExpiryDate,
				Reference: ledger.Reference{
					Kind: ledger.RefStockAdjustment,
					ID:   adj.ID,
				},
			})
			if _, ok := seen[l.ItemID]; !ok {
				seen[l.ItemID] = struct{}{}
				itemIDs = append(itemIDs, l.ItemID)
			}
		}
		if err := s.ledger.AppendBatch(ctx, entries); err != nil {
			return err
		}
		if err := s.repo.MarkPosted(ctx, adjID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark adjustment posted: %w", err)
		}
		if err := s.audit.LogPost(ctx, companyID, "stock_adjustment", adjID, adj); err != nil {
			return err
		}

		scope := snapshot.Scope{ItemIDs: itemIDs}
		if len(itemIDs) == 1 {
			scope = snapshot.Scope{ItemID: &itemIDs[0]}
		}
		return s.refresher.ScheduleRefresh(ctx, companyID, adj.BranchID, scope)
	})
}

func (s *Service) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Adjustment, error) {
	return s.repo.ListByBranch(ctx, companyID, branchID, limit, offset)
}
