package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"github.com/bitfantasy/nimo-mro/internal/procurement/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *Services
	ctx   context.Context
}

func setup(t *testing.T, opts Options) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db, nil)
	svc := NewServices(db, repos, nil, zaptest.NewLogger(t), opts)

	clock := func() time.Time { return fixedNow }
	svc.Requisition.now = clock
	svc.Quotation.now = clock
	svc.Requisition.codes.(*SequentialCodeGenerator).now = clock

	testutil.SeedUser(t, db, "u1", "Alice Chen")
	testutil.SeedUser(t, db, "rev", "Bob Li")
	testutil.SeedPart(t, db, "p-bolt", "BOLT-10", "Acme")
	testutil.SeedPart(t, db, "p-nut", "NUT-10", "Acme")
	testutil.SeedPart(t, db, "p-belt", "BELT-3", "Beta")
	testutil.SeedPart(t, db, "p-loose", "LOOSE-1", "")

	return &fixture{db: db, repos: repos, svc: svc, ctx: context.Background()}
}

func reconcileOn() Options { return Options{ReconcileReceipts: true} }

func line(partID string, qty int) RequisitionLineInput {
	return RequisitionLineInput{PartID: partID, Quantity: qty}
}

func (f *fixture) submitPR(t *testing.T, lines ...RequisitionLineInput) *entity.PurchaseRequisition {
	t.Helper()
	needed := fixedNow.Add(7 * 24 * time.Hour)
	pr, err := f.svc.Requisition.Create(f.ctx, "u1", &CreateRequisitionRequest{
		Title:      "Conveyor overhaul",
		DateNeeded: &needed,
		Lines:      lines,
	})
	require.NoError(t, err)
	return pr
}

func (f *fixture) approvedPR(t *testing.T, lines ...RequisitionLineInput) *entity.PurchaseRequisition {
	t.Helper()
	pr := f.submitPR(t, lines...)
	pr, err := f.svc.Requisition.Approve(f.ctx, pr.ID, "rev", "ok")
	require.NoError(t, err)
	pr, err = f.svc.Requisition.Get(f.ctx, pr.ID)
	require.NoError(t, err)
	return pr
}

func lineIDs(pr *entity.PurchaseRequisition) []string {
	ids := make([]string, 0, len(pr.Lines))
	for _, l := range pr.Lines {
		ids = append(ids, l.ID)
	}
	return ids
}
