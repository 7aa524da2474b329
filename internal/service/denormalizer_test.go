package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

func testVendors() *fakeVendors {
	return &fakeVendors{vendors: []*model.Vendor{
		{ID: "v1", Name: "Acme Supplies", Code: "ACM-001", Status: "active"},
		{ID: "v2", Name: "Zambia Hardware", Code: "ZHW-014", Status: "active"},
	}}
}

func TestSyncResolvesVendorCodeByID(t *testing.T) {
	d := NewDenormalizer(testVendors(), zerolog.Nop())

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	vendorID := "v1"
	req.SelectedVendorID = &vendorID

	require.NoError(t, d.SyncVendorAndPricing(context.Background(), req))
	require.NotNil(t, req.VendorCode)
	assert.Equal(t, "ACM-001", *req.VendorCode)
	assert.Equal(t, "Acme Supplies", *req.SelectedVendorName)
}

func TestSyncNameFallbackStampsID(t *testing.T) {
	d := NewDenormalizer(testVendors(), zerolog.Nop())

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	name := "Zambia Hardware"
	req.SelectedVendorName = &name

	require.NoError(t, d.SyncVendorAndPricing(context.Background(), req))
	require.NotNil(t, req.SelectedVendorID)
	assert.Equal(t, "v2", *req.SelectedVendorID)
	assert.Equal(t, "ZHW-014", *req.VendorCode)
}

func TestSyncFailsLoudlyOnUnknownVendor(t *testing.T) {
	d := NewDenormalizer(testVendors(), zerolog.Nop())

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	name := "Renamed Vendor Ltd"
	req.SelectedVendorName = &name

	err := d.SyncVendorAndPricing(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingVendorData, apperrors.CodeOf(err))
	assert.Nil(t, req.VendorCode)
}

func TestSyncFailsWithoutSelectedVendor(t *testing.T) {
	d := NewDenormalizer(testVendors(), zerolog.Nop())

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)

	err := d.SyncVendorAndPricing(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingVendorData, apperrors.CodeOf(err))
}

func TestApplyAdjudicationResolvesVendorID(t *testing.T) {
	var buf bytes.Buffer
	d := NewDenormalizer(testVendors(), zerolog.New(&buf))

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	req.Items = []*model.RequestItem{item(2), item(3)}

	adj := &model.Adjudication{
		RecommendedVendor: "Acme Supplies",
		RecommendedAmount: decimal.NewFromInt(1000),
		Currency:          "ZMW",
	}
	require.NoError(t, d.ApplyAdjudication(context.Background(), req, adj))

	require.NotNil(t, req.SelectedVendorID)
	assert.Equal(t, "v1", *req.SelectedVendorID)
	assert.Equal(t, "ACM-001", *req.VendorCode)
	require.NotNil(t, req.TotalCost)
	assert.True(t, req.TotalCost.Equal(decimal.NewFromInt(1000)))
	// The id was stamped before syncing, so the legacy name-fallback warning
	// must not fire.
	assert.NotContains(t, buf.String(), "fallback")
}

func TestApplyAdjudicationUnknownVendorFails(t *testing.T) {
	d := NewDenormalizer(testVendors(), zerolog.Nop())

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	adj := &model.Adjudication{
		RecommendedVendor: "Ghost Traders",
		RecommendedAmount: decimal.NewFromInt(100),
		Currency:          "ZMW",
	}

	err := d.ApplyAdjudication(context.Background(), req, adj)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingVendorData, apperrors.CodeOf(err))
	assert.Nil(t, req.VendorCode)
}

func TestSyncDistributesTotalProportionallyByQuantity(t *testing.T) {
	d := NewDenormalizer(testVendors(), zerolog.Nop())

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	vendorID := "v1"
	req.SelectedVendorID = &vendorID
	total := decimal.NewFromInt(1000)
	req.TotalCost = &total
	req.Items = []*model.RequestItem{item(2), item(3)}

	require.NoError(t, d.SyncVendorAndPricing(context.Background(), req))

	// 1000 across 5 units: unit price 200, item totals 400 and 600.
	assert.True(t, req.Items[0].UnitPrice.Equal(decimal.NewFromInt(200)),
		"unit price = %s", req.Items[0].UnitPrice)
	assert.True(t, req.Items[0].TotalPrice.Equal(decimal.NewFromInt(400)))
	assert.True(t, req.Items[1].UnitPrice.Equal(decimal.NewFromInt(200)))
	assert.True(t, req.Items[1].TotalPrice.Equal(decimal.NewFromInt(600)))
}

func TestSyncLeavesExistingPricingAlone(t *testing.T) {
	d := NewDenormalizer(testVendors(), zerolog.Nop())

	req := request("r1", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	vendorID := "v1"
	req.SelectedVendorID = &vendorID
	total := decimal.NewFromInt(1000)
	req.TotalCost = &total

	priced := item(2)
	priced.UnitPrice = decimal.NewFromInt(75)
	priced.TotalPrice = decimal.NewFromInt(150)
	req.Items = []*model.RequestItem{priced}

	require.NoError(t, d.SyncVendorAndPricing(context.Background(), req))
	assert.True(t, priced.UnitPrice.Equal(decimal.NewFromInt(75)))
	assert.True(t, priced.TotalPrice.Equal(decimal.NewFromInt(150)))
}
