package sale

import (
	"context"
	"fmt"
	"time"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/tx"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/snapshot"
)

// Ledger is the slice of the ledger service posting needs. SumQuantity
// backs the availability check; it reads inside the posting
// transaction so concurrent sales serialize on the ledger rows.
type Ledger interface {
	AppendBatch(ctx context.Context, entries []ledger.Entry) error
	SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error)
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

func (s *Service) Create(ctx context.Context, inv *Invoice) (id.ID, error) {
	if err := inv.Validate(); err != nil {
		return id.Nil(), err
	}
	inv.ID = id.New()
	inv.Posted = false
	inv.CreatedAt = time.Now().UTC()
	for i := range inv.Lines {
		inv.Lines[i].ID = id.New()
		inv.Lines[i].InvoiceID = inv.ID
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return id.Nil(), fmt.Errorf("create sales invoice: %w", err)
	}
	return inv.ID, nil
}

func (s *Service) GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, companyID, invID)
	if err != nil {
		return nil, fmt.Errorf("get sales invoice: %w", err)
	}
	if inv == nil {
		return nil, apperror.NewNotFound("sales invoice", invID)
	}
	return inv, nil
}

// Post verifies availability against the ledger (never against the
// snapshot, which may lag), appends SALE entries and refreshes the
// touched rows in the same transaction.
func (s *Service) Post(ctx context.Context, companyID, invID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.GetByID(ctx, companyID, invID)
		if err != nil {
			return err
		}
		if inv.Posted {
			return apperror.NewDocumentPosted("sales invoice", invID)
		}

		// Lines for the same item sum up against one availability check.
		wanted := make(map[id.ID]types.Quantity, len(inv.Lines))
		order := make([]id.ID, 0, len(inv.Lines))
		for i := range inv.Lines {
			l := &inv.Lines[i]
			if _, ok := wanted[l.ItemID]; !ok {
				order = append(order, l.ItemID)
			}
			wanted[l.ItemID] += l.Quantity
		}
		for _, itemID := range order {
			available, err := s.ledger.SumQuantity(ctx, itemID, inv.BranchID, nil)
			if err != nil {
				return fmt.Errorf("check stock: %w", err)
			}
			if available < wanted[itemID] {
				return apperror.NewInsufficientStock(itemID.String(),
					wanted[itemID].Float64(), available.Float64())
			}
		}

		entries := make([]ledger.Entry, 0, len(inv.Lines))
		for i := range inv.Lines {
			l := &inv.Lines[i]
			entries = append(entries, ledger.Entry{
				CompanyID:     inv.CompanyID,
				BranchID:      inv.BranchID,
				ItemID:        l.ItemID,
				TxnType:       ledger.TxnSale,
				QuantityDelta: l.Quantity.Neg(),
				Reference: ledger.Reference{
					Kind: ledger.RefSalesInvoice,
					ID:   inv.ID,
				},
			})
		}
		if err := s.ledger.AppendBatch(ctx, entries); err != nil {
			return err
		}
		if err := s.repo.MarkPosted(ctx, invID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark sales invoice posted: %w", err)
		}
		if err := s.audit.LogPost(ctx, companyID, "sales_invoice", invID, inv); err != nil {
			return err
		}
		return s.refresher.ScheduleRefresh(ctx, companyID, inv.BranchID, refreshScope(order))
	})
}

func refreshScope(itemIDs []id.ID) snapshot.Scope {
	if len(itemIDs) == 1 {
		itemID := itemIDs[0]
		return snapshot.Scope{ItemID: &itemID}
	}
	return snapshot.Scope{ItemIDs: itemIDs}
}

func (s *Service) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Invoice, error) {
	return s.repo.ListByBranch(ctx, companyID, branchID, limit, offset)
}
