package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedPR(t *testing.T, db *gorm.DB, id, code, status, outcome string, lines ...entity.PRLine) *entity.PurchaseRequisition {
	t.Helper()
	pr := &entity.PurchaseRequisition{
		ID:              id,
		Code:            code,
		Title:           "Spare parts " + code,
		RequestorID:     "u1",
		DateNeeded:      time.Now().Add(72 * time.Hour),
		Status:          status,
		ApprovalOutcome: outcome,
	}
	for i := range lines {
		lines[i].PRID = id
		lines[i].SortOrder = i + 1
		if lines[i].Status == "" {
			lines[i].Status = entity.LineStatusPending
		}
	}
	pr.Lines = lines
	require.NoError(t, db.Create(pr).Error)
	return pr
}

func TestPRRepository_FindAllFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPRRepository(db)
	ctx := context.Background()

	seedPR(t, db, "pr1", "PR-2026-0001", entity.PRStatusSubmitted, "")
	seedPR(t, db, "pr2", "PR-2026-0002", entity.PRStatusApproved, entity.ApprovalOutcomeApproved)
	seedPR(t, db, "pr3", "PR-2026-0003", entity.PRStatusApproved, entity.ApprovalOutcomeApproved)

	items, total, err := repo.FindAll(ctx, 1, 10, map[string]string{"status": entity.PRStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = repo.FindAll(ctx, 1, 10, map[string]string{"search": "pr-2026-0001"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "pr1", items[0].ID)

	items, total, err = repo.FindAll(ctx, 2, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 1)
}

func TestPRRepository_FindByIDNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, err := NewPRRepository(db).FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPRRepository_DuplicateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPRRepository(db)
	seedPR(t, db, "pr1", "PR-2026-0001", entity.PRStatusSubmitted, "")

	err := repo.Create(context.Background(), &entity.PurchaseRequisition{
		ID: "pr2", Code: "PR-2026-0001", Title: "dup", RequestorID: "u1", Status: entity.PRStatusSubmitted,
	})
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
}

func TestPRRepository_ReadyLinesAndSuppliers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPRRepository(db)
	ctx := context.Background()

	testutil.SeedPart(t, db, "p-bolt", "BOLT-10", "Acme")
	testutil.SeedPart(t, db, "p-nut", "NUT-10", "Acme")
	testutil.SeedPart(t, db, "p-belt", "BELT-3", "Beta")

	seedPR(t, db, "pr1", "PR-2026-0001", entity.PRStatusApproved, entity.ApprovalOutcomeApproved,
		entity.PRLine{ID: "l1", PartID: "p-bolt", QuantityRequested: 50},
		entity.PRLine{ID: "l2", PartID: "p-belt", QuantityRequested: 2},
		entity.PRLine{ID: "l3", PartID: "p-nut", QuantityRequested: 10, Status: entity.LineStatusOrdered, QuantityOrdered: 10},
	)
	seedPR(t, db, "pr2", "PR-2026-0002", entity.PRStatusSubmitted, entity.ApprovalOutcomeRejected,
		entity.PRLine{ID: "l4", PartID: "p-nut", QuantityRequested: 5},
	)
	seedPR(t, db, "pr3", "PR-2026-0003", entity.PRStatusApproved, entity.ApprovalOutcomeApproved,
		entity.PRLine{ID: "l5", PartID: "p-nut", QuantityRequested: 7},
	)

	lines, err := repo.FindReadyLines(ctx, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
		require.NotNil(t, l.Part)
	}
	assert.ElementsMatch(t, []string{"l1", "l2", "l5"}, ids)

	lines, err = repo.FindReadyLines(ctx, "Beta")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "l2", lines[0].ID)

	suppliers, err := repo.FindSuppliersWithPending(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 2)
	assert.Equal(t, SupplierPending{SupplierName: "Acme", LineCount: 2, TotalQuantity: 57}, suppliers[0])
	assert.Equal(t, SupplierPending{SupplierName: "Beta", LineCount: 1, TotalQuantity: 2}, suppliers[1])

	n, err := repo.CountReadyLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPRRepository_ReplaceLinesAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewPRRepository(db)
	ctx := context.Background()
	testutil.SeedPart(t, db, "p-bolt", "BOLT-10", "Acme")

	seedPR(t, db, "pr1", "PR-2026-0001", entity.PRStatusSubmitted, "",
		entity.PRLine{ID: "l1", PartID: "p-bolt", QuantityRequested: 1},
		entity.PRLine{ID: "l2", PartID: "p-bolt", QuantityRequested: 2},
	)

	require.NoError(t, repo.ReplaceLines(ctx, "pr1", []entity.PRLine{
		{ID: "l9", PRID: "pr1", PartID: "p-bolt", QuantityRequested: 9, Status: entity.LineStatusPending, SortOrder: 1},
	}))
	pr, err := repo.FindByID(ctx, "pr1")
	require.NoError(t, err)
	require.Len(t, pr.Lines, 1)
	assert.Equal(t, "l9", pr.Lines[0].ID)
	assert.Equal(t, "BOLT-10", pr.Lines[0].Part.Code)

	require.NoError(t, repo.Delete(ctx, "pr1"))
	_, err = repo.FindByID(ctx, "pr1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindLineByID(ctx, "l9")
	assert.ErrorIs(t, err, ErrNotFound)
}
