package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/documents/adjustment"
	"apotheca/internal/domain/documents/purchase"
	"apotheca/internal/domain/documents/sale"
	"apotheca/internal/domain/documents/transfer"
)

// Quantities come in as strings ("12.5") so clients never round in
// binary floating point.

type PurchaseLineRequest struct {
	ItemID      string     `json:"itemId" binding:"required"`
	Quantity    string     `json:"quantity" binding:"required"`
	UnitCost    string     `json:"unitCost" binding:"required"`
	BatchNumber *string    `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

type CreatePurchaseRequest struct {
	BranchID        string                `json:"branchId" binding:"required"`
	SupplierName    string                `json:"supplierName" binding:"required"`
	InvoiceDate     time.Time             `json:"invoiceDate" binding:"required"`
	Lines           []PurchaseLineRequest `json:"lines" binding:"required,min=1"`
	PostImmediately bool                  `json:"postImmediately"`
}

func (r *CreatePurchaseRequest) ToEntity(companyID id.ID) (*purchase.Invoice, error) {
	branchID, err := id.Parse(r.BranchID)
	if err != nil {
		return nil, err
	}
	inv := &purchase.Invoice{
		CompanyID:    companyID,
		BranchID:     branchID,
		SupplierName: r.SupplierName,
		InvoiceDate:  r.InvoiceDate,
		Lines:        make([]purchase.Line, 0, len(r.Lines)),
	}
	for _, lr := range r.Lines {
		itemID, err := id.Parse(lr.ItemID)
		if err != nil {
			return nil, err
		}
		qty, err := types.ParseQuantity(lr.Quantity)
		if err != nil {
			return nil, err
		}
		cost, err := decimal.NewFromString(lr.UnitCost)
		if err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, purchase.Line{
			ItemID:      itemID,
			Quantity:    qty,
			UnitCost:    cost,
			BatchNumber: lr.BatchNumber,
			ExpiryDate:  lr.ExpiryDate,
		})
	}
	return inv, nil
}

type SaleLineRequest struct {
	ItemID    string `json:"itemId" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`
	UnitPrice string `json:"unitPrice" binding:"required"`
}

type CreateSaleRequest struct {
	BranchID        string            `json:"branchId" binding:"required"`
	CustomerName    *string           `json:"customerName,omitempty"`
	InvoiceDate     time.Time         `json:"invoiceDate" binding:"required"`
	Lines           []SaleLineRequest `json:"lines" binding:"required,min=1"`
	PostImmediately bool              `json:"postImmediately"`
}

func (r *CreateSaleRequest) ToEntity(companyID id.ID) (*sale.Invoice, error) {
	branchID, err := id.Parse(r.BranchID)
	if err != nil {
		return nil, err
	}
	inv := &sale.Invoice{
		CompanyID:    companyID,
		BranchID:     branchID,
		CustomerName: r.CustomerName,
		InvoiceDate:  r.InvoiceDate,
		Lines:        make([]sale.Line, 0, len(r.Lines)),
	}
	for _, lr := range r.Lines {
		itemID, err := id.Parse(lr.ItemID)
		if err != nil {
			return nil, err
		}
		qty, err := types.ParseQuantity(lr.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(lr.UnitPrice)
		if err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, sale.Line{
			ItemID:    itemID,
			Quantity:  qty,
			UnitPrice: price,
		})
	}
	return inv, nil
}

type AdjustmentLineRequest struct {
	ItemID        string     `json:"itemId" binding:"required"`
	QuantityDelta string     `json:"quantityDelta" binding:"required"`
	UnitCost      *string    `json:"unitCost,omitempty"`
	BatchNumber   *string    `json:"batchNumber,omitempty"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
}

type CreateAdjustmentRequest struct {
	BranchID        string                  `json:"branchId" binding:"required"`
	Reason          string                  `json:"reason" binding:"required"`
	Lines           []AdjustmentLineRequest `json:"lines" binding:"required,min=1"`
	PostImmediately bool                    `json:"postImmediately"`
}

func (r *CreateAdjustmentRequest) ToEntity(companyID id.ID) (*adjustment.Adjustment, error) {
	branchID, err := id.Parse(r.BranchID)
	if err != nil {
		return nil, err
	}
	adj := &adjustment.Adjustment{
		CompanyID: companyID,
		BranchID:  branchID,
		Reason:    r.Reason,
		Lines:     make([]adjustment.Line, 0, len(r.Lines)),
	}
	for _, lr := range r.Lines {
		itemID, err := id.Parse(lr.ItemID)
		if err != nil {
			return nil, err
		}
		delta, err := types.ParseQuantity(lr.QuantityDelta)
		if err != nil {
			return nil, err
		}
		var cost *decimal.Decimal
		if lr.UnitCost != nil {
			parsed, err := decimal.NewFromString(*lr.UnitCost)
			if err != nil {
				return nil, err
			}
			cost = &parsed
		}
		adj.Lines = append(adj.Lines, adjustment.Line{
			ItemID:        itemID,
			QuantityDelta: delta,
			UnitCost:      cost,
			BatchNumber:   lr.BatchNumber,
			ExpiryDate:    lr.ExpiryDate,
		})
	}
	return adj, nil
}

type TransferLineRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
}

type CreateTransferRequest struct {
	SourceBranchID  string                `json:"sourceBranchId" binding:"required"`
	DestBranchID    string                `json:"destBranchId" binding:"required"`
	Lines           []TransferLineRequest `json:"lines" binding:"required,min=1"`
	PostImmediately bool                  `json:"postImmediately"`
}

func (r *CreateTransferRequest) ToEntity(companyID id.ID) (*transfer.Transfer, error) {
	sourceID, err := id.Parse(r.SourceBranchID)
	if err != nil {
		return nil, err
	}
	destID, err := id.Parse(r.DestBranchID)
	if err != nil {
		return nil, err
	}
	t := &transfer.Transfer{
		CompanyID:    companyID,
		SourceBranch: sourceID,
		DestBranch:   destID,
		Lines:        make([]transfer.Line, 0, len(r.Lines)),
	}
	for _, lr := range r.Lines {
		itemID, err := id.Parse(lr.ItemID)
		if err != nil {
			return nil, err
		}
		qty, err := types.ParseQuantity(lr.Quantity)
		if err != nil {
			return nil, err
		}
		t.Lines = append(t.Lines, transfer.Line{
			ItemID:   itemID,
			Quantity: qty,
		})
	}
	return t, nil
}
