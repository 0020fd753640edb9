package purchase

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

// Ledger is the slice of the ledger service posting needs.
type Ledger interface {
	AppendBatch(ctx context.Context, entries []ledger.Entry) error
}

// Refresher schedules snapshot refreshes after posting.
type Refresher interface {
	ScheduleRefresh(ctx context.Context, companyID, branchID id.ID, scope snapshot.Scope) error
}

// Auditor records posted documents.
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

// Create saves a draft invoice.
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
		return id.Nil(), fmt.Errorf("create purchase invoice: %w", err)
	}
	return inv.ID, nil
}

func (s *Service) GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, companyID, invID)
	if err != nil {
		return nil, fmt.Errorf("get purchase invoice: %w", err)
	}
	if inv == nil {
		return nil, apperror.NewNotFound("purchase invoice", invID)
	}
	return inv, nil
}

// Post appends the ledger entries, records the audit trail and brings
// the touched snapshots up to date, all in one transaction. A failed
// refresh rolls the posting back.
func (s *Service) Post(ctx context.Context, companyID, invID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.GetByID(ctx, companyID, invID)
		if err != nil {
			return err
		}
		if inv.Posted {
			return apperror.NewDocumentPosted("purchase invoice", invID)
		}

		entries := make([]ledger.Entry, 0, len(inv.Lines))
		for i := range inv.Lines {
			l := &inv.Lines[i]
			cost := l.UnitCost
			entries = append(entries, ledger.Entry{
				CompanyID:     inv.CompanyID,
				BranchID:      inv.BranchID,
				ItemID:        l.ItemID,
				TxnType:       ledger.TxnPurchase,
				QuantityDelta: l.Quantity,
				UnitCost:      &cost,
				BatchNumber:   l.BatchNumber,
				ExpiryDate:    l.ExpiryDate,
				Reference: ledger.Reference{
					Kind: ledger.RefPurchaseInvoice,
					ID:   inv.ID,
				},
			})
		}
		if err := s.ledger.AppendBatch(ctx, entries); err != nil {
			return err
		}
		if err := s.repo.MarkPosted(ctx, invID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark purchase invoice posted: %w", err)
		}
		if err := s.audit.LogPost(ctx, companyID, "purchase_invoice", invID, inv); err != nil {
			return err
		}
		return s.refresher.ScheduleRefresh(ctx, companyID, inv.BranchID, refreshScope(inv.Lines))
	})
}

// refreshScope picks item scope for single-line invoices and item_ids
// scope otherwise, so multi-line postings stay off the hot path.
func refreshScope(lines []Line) snapshot.Scope {
	if len(lines) == 1 {
		itemID := lines[0].ItemID
		return snapshot.Scope{ItemID: &itemID}
	}
	ids := make([]id.ID, 0, len(lines))
	seen := make(map[id.ID]struct{}, len(lines))
	for i := range lines {
		if _, ok := seen[lines[i].ItemID]; ok {
			continue
		}
		seen[lines[i].ItemID] = struct{}{}
		ids = append(ids, lines[i].ItemID)
	}
	return snapshot.Scope{ItemIDs: ids}
}

func (s *Service) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Invoice, error) {
	return s.repo.ListByBranch(ctx, companyID, branchID, limit, offset)
}
