package dto

import (
	"strconv"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/catalogs/item"
)

type CreateItemRequest struct {
	Name          string  `json:"name" binding:"required"`
	SKU           string  `json:"sku" binding:"required"`
	Barcode       *string `json:"barcode,omitempty"`
	PackSize      int     `json:"packSize"`
	BaseUnit      string  `json:"baseUnit" binding:"required"`
	VATRate       int     `json:"vatRate"`
	DefaultCost   *string `json:"defaultCost,omitempty"`
	MarginPercent *string `json:"marginPercent,omitempty"`
	Description   *string `json:"description,omitempty"`
}

func (r *CreateItemRequest) ToEntity(companyID id.ID) (*item.Item, error) {
	defaultCost, err := parseOptionalDecimal(r.DefaultCost)
	if err != nil {
		return nil, err
	}
	margin, err := parseOptionalDecimal(r.MarginPercent)
	if err != nil {
		return nil, err
	}
	return &item.Item{
		CompanyID:     companyID,
		Name:          r.Name,
		SKU:           r.SKU,
		Barcode:       r.Barcode,
		PackSize:      r.PackSize,
		BaseUnit:      r.BaseUnit,
		VATRate:       item.VATRate(strconv.Itoa(r.VATRate)),
		DefaultCost:   defaultCost,
		MarginPercent: margin,
		Description:   r.Description,
		Active:        true,
	}, nil
}

type UpdateItemRequest struct {
	Name          *string `json:"name,omitempty"`
	Barcode       *string `json:"barcode,omitempty"`
	PackSize      *int    `json:"packSize,omitempty"`
	BaseUnit      *string `json:"baseUnit,omitempty"`
	VATRate       *int    `json:"vatRate,omitempty"`
	DefaultCost   *string `json:"defaultCost,omitempty"`
	MarginPercent *string `json:"marginPercent,omitempty"`
	Description   *string `json:"description,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

// ApplyTo overlays the set fields onto an existing item.
func (r *UpdateItemRequest) ApplyTo(it *item.Item) error {
	if r.Name != nil {
		it.Name = *r.Name
	}
	if r.Barcode != nil {
		it.Barcode = r.Barcode
	}
	if r.PackSize != nil {
		it.PackSize = *r.PackSize
	}
	if r.BaseUnit != nil {
		it.BaseUnit = *r.BaseUnit
	}
	if r.VATRate != nil {
		it.VATRate = item.VATRate(strconv.Itoa(*r.VATRate))
	}
	if r.DefaultCost != nil {
		parsed, err := parseOptionalDecimal(r.DefaultCost)
		if err != nil {
			return err
		}
		it.DefaultCost = parsed
	}
	if r.MarginPercent != nil {
		parsed, err := parseOptionalDecimal(r.MarginPercent)
		if err != nil {
			return err
		}
		it.MarginPercent = parsed
	}
	if r.Description != nil {
		it.Description = r.Description
	}
	if r.Active != nil {
		it.Active = *r.Active
	}
	return nil
}

type UpdateMarginRequest struct {
	DefaultMarginPercent string `json:"defaultMarginPercent" binding:"required"`
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
