// Package pricing computes item costs and selling prices.
//
// Cost resolution is a fixed fallback cascade over the ledger: the most
// recent purchase wins, then the opening balance, then the weighted
// average of all receipts, then the item master's default, then zero.
// Each level is consulted only when every prior level had no data.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/catalogs/item"
)

// CostSource is the slice of the ledger the resolver reads.
type CostSource interface {
	LastPurchaseCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)
	OpeningBalanceCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)
	WeightedAverageCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)
}

// ItemSource supplies item master defaults.
type ItemSource interface {
	GetByID(ctx context.Context, itemID id.ID) (*item.Item, error)
}

// Resolver resolves costs and selling prices.
type Resolver struct {
	costs CostSource
	items ItemSource
}

// NewResolver creates a pricing resolver.
func NewResolver(costs CostSource, items ItemSource) *Resolver {
	return &Resolver{costs: costs, items: items}
}

// BestAvailableCost returns the best cost for an item at a branch.
// It never fails for lack of data; the final fallback is zero.
// Persistence errors propagate.
func (r *Resolver) BestAvailableCost(ctx context.Context, itemID, branchID, companyID id.ID) (decimal.Decimal, error) {
	// 1. Most recent purchase
	cost, err := r.costs.LastPurchaseCost(ctx, itemID, branchID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("last purchase cost: %w", err)
	}
	if cost != nil {
		return *cost, nil
	}

	// 2. Opening balance
	cost, err = r.costs.OpeningBalanceCost(ctx, itemID, branchID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("opening balance cost: %w", err)
	}
	if cost != nil {
		return *cost, nil
	}

	// 3. Weighted average over all receipts
	cost, err = r.costs.WeightedAverageCost(ctx, itemID, branchID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("weighted average cost: %w", err)
	}
	if cost != nil {
		return *cost, nil
	}

	// 4. Item master default
	it, err := r.items.GetByID(ctx, itemID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("item default cost: %w", err)
	}
	if it != nil && it.DefaultCost != nil {
		return *it.DefaultCost, nil
	}

	// 5. Zero
	return decimal.Zero, nil
}

// SellingPrice computes cost * (1 + margin/100).
// Returns nil when margin is undefined: an absent selling price means
// "not computable", which callers must not collapse to zero.
func SellingPrice(cost decimal.Decimal, marginPercent *decimal.Decimal) *decimal.Decimal {
	if marginPercent == nil {
		return nil
	}
	hundred := decimal.NewFromInt(100)
	price := cost.Mul(hundred.Add(*marginPercent)).Div(hundred)
	return &price
}
