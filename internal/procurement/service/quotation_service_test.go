package service

import (
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) quotation(t *testing.T, lines ...RequisitionLineInput) *entity.QuotationRequest {
	t.Helper()
	pr := f.approvedPR(t, lines...)
	res, err := f.svc.Reconciliation.CreateQuotationsFromSelection(f.ctx, lineIDs(pr), "u1", "")
	require.NoError(t, err)
	return res.Primary
}

func TestQuotationCompleteManually(t *testing.T) {
	f := setup(t, reconcileOn())
	qr := f.quotation(t, line("p-bolt", 50))

	qr, err := f.svc.Quotation.Complete(f.ctx, qr.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.QRStatusCompleted, qr.Status)
	assert.Equal(t, entity.StatusOriginManual, qr.StatusOrigin)
	require.NotNil(t, qr.ActualDeliveryDate)
	assert.Zero(t, qr.Lines[0].QuantityReceived, "manual completion ignores receipts")
}

func TestQuotationCancelReturnsToCreated(t *testing.T) {
	f := setup(t, reconcileOn())
	qr := f.quotation(t, line("p-bolt", 50))
	qr, err := f.svc.Quotation.ForceStatus(f.ctx, qr.ID, entity.QRStatusConfirmed, "", "u1")
	require.NoError(t, err)

	qr, err = f.svc.Quotation.Cancel(f.ctx, qr.ID, "supplier out of stock", "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.QRStatusCreated, qr.Status)
	assert.Contains(t, qr.Notes, "cancelled: supplier out of stock")

	logs, _, err := f.svc.Quotation.Activities(f.ctx, qr.ID, 1, 10)
	require.NoError(t, err)
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, ActionCancel)
	assert.Contains(t, actions, ActionForceStatus)
}

func TestQuotationUpdatePrices(t *testing.T) {
	f := setup(t, reconcileOn())
	qr := f.quotation(t, line("p-bolt", 50), line("p-nut", 10))

	unit := decimal.RequireFromString("1.20")
	nutUnit := decimal.RequireFromString("0.35")
	qty := 40
	contact := "sales@acme.example"
	expected := fixedNow.Add(10 * 24 * time.Hour)

	qr, err := f.svc.Quotation.Update(f.ctx, qr.ID, "u1", &UpdateQuotationRequest{
		SupplierContact:      &contact,
		ExpectedDeliveryDate: &expected,
		Lines: []UpdateQuotationLine{
			{PartID: "p-bolt", UnitPrice: &unit, Quantity: &qty},
			{PartID: "p-nut", UnitPrice: &nutUnit},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contact, qr.SupplierContact)
	require.NotNil(t, qr.ExpectedDeliveryDate)

	bolt, nut := qr.Lines[0], qr.Lines[1]
	assert.Equal(t, 40, bolt.QuantityRequested)
	require.True(t, bolt.TotalPrice.Valid)
	assert.True(t, decimal.RequireFromString("48").Equal(bolt.TotalPrice.Decimal), bolt.TotalPrice.Decimal.String())
	assert.True(t, decimal.RequireFromString("3.5").Equal(nut.TotalPrice.Decimal), nut.TotalPrice.Decimal.String())
	assert.True(t, decimal.RequireFromString("51.5").Equal(qr.TotalAmount), qr.TotalAmount.String())
}

func TestQuotationUpdateRejects(t *testing.T) {
	f := setup(t, reconcileOn())
	qr := f.quotation(t, line("p-bolt", 50))
	_, err := f.svc.Quotation.ReceiveLine(f.ctx, qr.ID, "p-bolt", 30, "", "u1")
	require.NoError(t, err)

	low := 20
	_, err = f.svc.Quotation.Update(f.ctx, qr.ID, "u1", &UpdateQuotationRequest{
		Lines: []UpdateQuotationLine{{PartID: "p-bolt", Quantity: &low}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	neg := decimal.NewFromInt(-1)
	_, err = f.svc.Quotation.Update(f.ctx, qr.ID, "u1", &UpdateQuotationRequest{
		Lines: []UpdateQuotationLine{{PartID: "p-bolt", UnitPrice: &neg}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Quotation.Update(f.ctx, qr.ID, "u1", &UpdateQuotationRequest{
		Lines: []UpdateQuotationLine{{PartID: "p-belt", Quantity: &low}},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	empty := " "
	_, err = f.svc.Quotation.Update(f.ctx, qr.ID, "u1", &UpdateQuotationRequest{SupplierName: &empty})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQuotationDeleteIsUnconditional(t *testing.T) {
	f := setup(t, reconcileOn())
	qr := f.quotation(t, line("p-bolt", 50))
	_, err := f.svc.Quotation.Complete(f.ctx, qr.ID, "u1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Quotation.Delete(f.ctx, qr.ID, "u1"))
	_, err = f.svc.Quotation.Get(f.ctx, qr.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Quotation.Delete(f.ctx, qr.ID, "u1"), ErrNotFound)
}

func TestDashboardSummary(t *testing.T) {
	f := setup(t, reconcileOn())
	f.submitPR(t, line("p-bolt", 1))
	qr := f.quotation(t, line("p-belt", 4))
	f.approvedPR(t, line("p-nut", 2))
	_, err := f.svc.Quotation.ReceiveLine(f.ctx, qr.ID, "p-belt", 1, "", "u1")
	require.NoError(t, err)

	s, err := f.svc.Dashboard.Summary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Requisitions[entity.PRStatusSubmitted])
	assert.Equal(t, int64(2), s.Requisitions[entity.PRStatusApproved])
	assert.Equal(t, int64(1), s.Quotations[entity.QRStatusSent])
	assert.Equal(t, int64(2), s.ReadyForQuotation, "split-flow lines stay pending")
	assert.Equal(t, int64(1), s.AwaitingDelivery)

	p, err := f.svc.Dashboard.QuotationProgress(f.ctx, qr.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Requested)
	assert.Equal(t, 1, p.Received)
	assert.InDelta(t, 25.0, p.Percent, 0.001)
	require.Len(t, p.Lines, 1)
	assert.Equal(t, 3, p.Lines[0].Remaining)
}
