package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/openingbalance"
)

type SetOpeningBalanceRequest struct {
	BranchID    string     `json:"branchId" binding:"required"`
	ItemID      string     `json:"itemId" binding:"required"`
	Quantity    string     `json:"quantity" binding:"required"`
	UnitCost    string     `json:"unitCost" binding:"required"`
	BatchNumber *string    `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

func (r *SetOpeningBalanceRequest) ToEntity(companyID id.ID) (*openingbalance.Opening, error) {
	branchID, err := id.Parse(r.BranchID)
	if err != nil {
		return nil, err
	}
	itemID, err := id.Parse(r.ItemID)
	if err != nil {
		return nil, err
	}
	qty, err := types.ParseQuantity(r.Quantity)
	if err != nil {
		return nil, err
	}
	cost, err := decimal.NewFromString(r.UnitCost)
	if err != nil {
		return nil, err
	}
	return &openingbalance.Opening{
		CompanyID:   companyID,
		BranchID:    branchID,
		ItemID:      itemID,
		Quantity:    qty,
		UnitCost:    cost,
		BatchNumber: r.BatchNumber,
		ExpiryDate:  r.ExpiryDate,
	}, nil
}

type CorrectOpeningBalanceRequest struct {
	Quantity string `json:"quantity" binding:"required"`
	UnitCost string `json:"unitCost" binding:"required"`
}

func (r *CorrectOpeningBalanceRequest) Parse() (types.Quantity, decimal.Decimal, error) {
	qty, err := types.ParseQuantity(r.Quantity)
	if err != nil {
		return 0, decimal.Zero, err
	}
	cost, err := decimal.NewFromString(r.UnitCost)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return qty, cost, nil
}
