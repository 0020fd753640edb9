package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/tx"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/snapshot"
)

type Ledger interface {
	AppendBatch(ctx context.Context, entries []ledger.Entry) error
	SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error)
}

// Coster resolves the source branch's cost for the moved stock, so the
// destination books the incoming quantity at what it was worth where
// it came from.
type Coster interface {
	BestAvailableCost(ctx context.Context, itemID, branchID, companyID id.ID) (decimal.Decimal, error)
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
	coster    Coster
	refresher Refresher
	audit     Auditor
	txManager tx.Manager
}

func NewService(repo Repository, ledger Ledger, coster Coster, refresher Refresher, audit Auditor, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		coster:    coster,
		refresher: refresher,
		audit:     audit,
		txManager: txManager,
	}
}

func (s *Service) Create(ctx context.Context, t *Transfer) (id.ID, error) {
	if err := t.Validate(); err != nil {
		return id.Nil(), err
	}
	t.ID = id.New()
	t.Posted = false
	t.CreatedAt = time.Now().UTC()
	for i := range t.Lines {
		t.Lines[i].ID = id.New()
		t.Lines[i].TransferID = t.ID
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return id.Nil(), fmt.Errorf("create transfer: %w", err)
	}
	return t.ID, nil
}

func (s *Service) GetByID(ctx context.Context, companyID, transferID id.ID) (*Transfer, error) {
	t, err := s.repo.GetByID(ctx, companyID, transferID)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if t == nil {
		return nil, apperror.NewNotFound("transfer", transferID)
	}
	return t, nil
}

// Post moves stock between branches in one transaction and refreshes
// the touched items at both ends.
func (s *Service) Post(ctx context.Context, companyID, transferID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.GetByID(ctx, companyID, transferID)
		if err != nil {
			return err
		}
		if t.Posted {
			return apperror.NewDocumentPosted("transfer", transferID)
		}

		wanted := make(map[id.ID]types.Quantity, len(t.Lines))
		itemIDs := make([]id.ID, 0, len(t.Lines))
		for i := range t.Lines {
			l := &t.Lines[i]
			if _, ok := wanted[l.ItemID]; !ok {
				itemIDs = append(itemIDs, l.ItemID)
			}
			wanted[l.ItemID] += l.Quantity
		}
		for _, itemID := range itemIDs {
			available, err := s.ledger.SumQuantity(ctx, itemID, t.SourceBranch, nil)
			if err != nil {
				return fmt.Errorf("check source stock: %w", err)
			}
			if available < wanted[itemID] {
				return apperror.NewInsufficientStock(itemID.String(),
					wanted[itemID].Float64(), available.Float64())
			}
		}

		entries := make([]ledger.Entry, 0, 2*len(t.Lines))
		for i := range t.Lines {
			l := &t.Lines[i]
			cost, err := s.coster.BestAvailableCost(ctx, l.ItemID, t.SourceBranch, companyID)
			if err != nil {
				return fmt.Errorf("resolve transfer cost: %w", err)
			}
			ref := ledger.Reference{Kind: ledger.RefStockTransfer, ID: t.ID}
			outCost := cost
			entries = append(entries,
				ledger.Entry{
					CompanyID:     t.CompanyID,
					BranchID:      t.SourceBranch,
					ItemID:        l.ItemID,
					TxnType:       ledger.TxnTransferOut,
					QuantityDelta: l.Quantity.Neg(),
					Reference:     ref,
				},
				ledger.Entry{
					CompanyID:     t.CompanyID,
					BranchID:      t.DestBranch,
					ItemID:        l.ItemID,
					TxnType:       ledger.TxnTransferIn,
					QuantityDelta: l.Quantity,
					UnitCost:      &outCost,
					Reference:     ref,
				})
		}
		if err := s.ledger.AppendBatch(ctx, entries); err != nil {
			return err
		}
		if err := s.repo.MarkPosted(ctx, transferID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark transfer posted: %w", err)
		}
		if err := s.audit.LogPost(ctx, companyID, "stock_transfer", transferID, t); err != nil {
			return err
		}

		scope := snapshot.Scope{ItemIDs: itemIDs}
		if len(itemIDs) == 1 {
			scope = snapshot.Scope{ItemID: &itemIDs[0]}
		}
		if err := s.refresher.ScheduleRefresh(ctx, companyID, t.SourceBranch, scope); err != nil {
			return err
		}
		return s.refresher.ScheduleRefresh(ctx, companyID, t.DestBranch, scope)
	})
}

func (s *Service) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Transfer, error) {
	return s.repo.ListByBranch(ctx, companyID, branchID, limit, offset)
}
