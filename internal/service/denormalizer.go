package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// Denormalizer keeps derived vendor and pricing fields on a request
// consistent, so downstream consumers (PDF generation, reporting) never need
// joins. It runs inside the workflow whenever vendor selection or
// adjudication acceptance touches pricing, not as an after-the-fact repair
// script.
type Denormalizer struct {
	vendors VendorStore
	log     zerolog.Logger
}

// NewDenormalizer creates a new Denormalizer.
func NewDenormalizer(vendors VendorStore, log zerolog.Logger) *Denormalizer {
	return &Denormalizer{vendors: vendors, log: log}
}

// SyncVendorAndPricing resolves the vendor code onto the request and repairs
// per-item pricing from the aggregate total where it is missing. A selected
// vendor that cannot be resolved fails loudly; a request must never complete
// with a null vendor code.
func (d *Denormalizer) SyncVendorAndPricing(ctx context.Context, req *model.Request) error {
	if req.SelectedVendorID == nil && req.SelectedVendorName == nil {
		return apperrors.New(apperrors.CodeMissingVendorData,
			"request has no selected vendor")
	}

	vendor, err := d.resolveVendor(ctx, req)
	if err != nil {
		return err
	}

	req.SelectedVendorID = &vendor.ID
	req.SelectedVendorName = &vendor.Name
	req.VendorCode = &vendor.Code

	if req.TotalCost != nil && req.TotalCost.IsPositive() {
		d.distributePricing(req)
	}
	return nil
}

// ApplyAdjudication copies an accepted recommendation onto the request's
// pricing fields. The recommended vendor is resolved to its id here, at
// acceptance time, so the by-name path in resolveVendor stays reserved for
// legacy rows.
func (d *Denormalizer) ApplyAdjudication(ctx context.Context, req *model.Request, adj *model.Adjudication) error {
	vendor, err := d.vendors.GetByName(ctx, adj.RecommendedVendor)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeMissingVendorData,
			"recommended vendor does not resolve")
	}

	req.SelectedVendorID = &vendor.ID
	req.SelectedVendorName = &vendor.Name
	amount := adj.RecommendedAmount
	req.TotalCost = &amount
	req.VendorCurrency = &adj.Currency
	return d.SyncVendorAndPricing(ctx, req)
}

func (d *Denormalizer) resolveVendor(ctx context.Context, req *model.Request) (*model.Vendor, error) {
	if req.SelectedVendorID != nil {
		vendor, err := d.vendors.GetByID(ctx, *req.SelectedVendorID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeMissingVendorData,
				"selected vendor id does not resolve")
		}
		return vendor, nil
	}

	// Degraded path: requests created before vendor ids were stamped carry
	// only a name. A rename orphans them, which is why id is the only
	// steady-state key.
	vendor, err := d.vendors.GetByName(ctx, *req.SelectedVendorName)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMissingVendorData,
			"selected vendor name does not resolve")
	}

	d.log.Warn().
		Str("request_id", req.ID).
		Str("vendor_name", vendor.Name).
		Msg("Vendor resolved by name fallback; request predates vendor id stamping")
	return vendor, nil
}

// distributePricing fills missing per-item prices from the aggregate total:
// unit_price = total_cost / sum(quantity), item total = unit_price * quantity.
// This is a recovery action, not an error; it is logged when it fires.
func (d *Denormalizer) distributePricing(req *model.Request) {
	needsRepair := false
	totalQty := decimal.Zero
	for _, item := range req.Items {
		totalQty = totalQty.Add(item.Quantity)
		if item.UnitPrice.IsZero() {
			needsRepair = true
		}
	}
	if !needsRepair || totalQty.IsZero() {
		return
	}

	unitPrice := req.TotalCost.Div(totalQty)
	for _, item := range req.Items {
		if !item.UnitPrice.IsZero() {
			continue
		}
		item.UnitPrice = unitPrice
		item.TotalPrice = unitPrice.Mul(item.Quantity)
	}

	d.log.Info().
		Str("request_id", req.ID).
		Str("total_cost", req.TotalCost.String()).
		Str("unit_price", unitPrice.String()).
		Msg("Repaired missing per-item pricing from aggregate total")
}
