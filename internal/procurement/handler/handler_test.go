package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
	"github.com/bitfantasy/nimo-mro/internal/procurement/service"
	"github.com/bitfantasy/nimo-mro/internal/procurement/sse"
	"github.com/bitfantasy/nimo-mro/internal/procurement/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const base = "/api/v1/procurement"

func setupProcurementTest(t *testing.T) (*testutil.TestEnv, *sse.Hub) {
	t.Helper()
	return setupProcurementTestWithSequence(t, nil)
}

// setupProcurementTestWithSequence replaces the document counter when seq is non-nil.
func setupProcurementTestWithSequence(t *testing.T, seq repository.Sequencer) (*testutil.TestEnv, *sse.Hub) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zaptest.NewLogger(t)

	hub := sse.NewHub(logger)
	repos := repository.NewRepositories(db, nil)
	if seq != nil {
		repos.Sequence = seq
	}
	svc := service.NewServices(db, repos, hub, logger, service.Options{ReconcileReceipts: true})

	router := testutil.SetupRouter()
	NewHandlers(svc, hub).RegisterRoutes(testutil.OperatorGroup(router, base))

	testutil.SeedUser(t, db, "u1", "Alice Chen")
	testutil.SeedUser(t, db, "rev", "Bob Li")
	testutil.SeedPart(t, db, "p-bolt", "BOLT-10", "Acme")
	testutil.SeedPart(t, db, "p-belt", "BELT-3", "Beta")

	return &testutil.TestEnv{DB: db, Router: router, T: t}, hub
}

func createApprovedPR(t *testing.T, env *testutil.TestEnv, lines ...map[string]interface{}) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"title":       "Line 3 maintenance",
		"date_needed": time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"lines":       lines,
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/requisitions", body, "u1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pr := testutil.Data(t, w)

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/requisitions/"+pr["id"].(string)+"/approve",
		map[string]interface{}{"notes": "ok"}, "rev")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return testutil.Data(t, w)
}

func lineIDsOf(pr map[string]interface{}) []string {
	var ids []string
	for _, l := range pr["lines"].([]interface{}) {
		ids = append(ids, l.(map[string]interface{})["id"].(string))
	}
	return ids
}

func TestRequisitionToCompletedQuotation(t *testing.T) {
	env, _ := setupProcurementTest(t)
	pr := createApprovedPR(t, env, map[string]interface{}{"part_id": "p-bolt", "quantity": 50})
	assert.Equal(t, "APPROVED", pr["status"])
	assert.Equal(t, "approved", pr["approval_outcome"])

	// approving twice reports the current state and the attempted action
	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/requisitions/"+pr["id"].(string)+"/approve", nil, "rev")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.ParseResponse(w)
	assert.Equal(t, float64(CodeInvalidTransition), resp["code"])
	detail := resp["data"].(map[string]interface{})
	assert.Equal(t, "APPROVED", detail["from"])
	assert.Equal(t, "approve", detail["action"])

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/from-parts", map[string]interface{}{
		"supplier_name": "Acme",
		"line_ids":      lineIDsOf(pr),
	}, "u1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	qr := testutil.Data(t, w)
	assert.Equal(t, "CREATED", qr["status"])
	assert.Equal(t, "Acme", qr["supplier_name"])
	qrID := qr["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/"+qrID+"/receive",
		map[string]interface{}{"part_id": "p-bolt", "quantity": 20}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "SENT", testutil.Data(t, w)["status"])

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/"+qrID+"/receive",
		map[string]interface{}{"part_id": "p-bolt", "quantity": 31}, "u1")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(CodeOverReceipt), testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/"+qrID+"/receive",
		map[string]interface{}{"part_id": "p-bolt", "quantity": 30}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := testutil.Data(t, w)
	assert.Equal(t, "COMPLETED", done["status"])
	assert.NotNil(t, done["actual_delivery_date"])

	lineID := lineIDsOf(pr)[0]
	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/requisition-lines/"+lineID, nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RECEIVED", testutil.Data(t, w)["status"])

	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/quotations/"+qrID+"/progress", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), testutil.Data(t, w)["percent"])

	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/quotations/"+qrID+"/activities", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	items := testutil.Data(t, w)["items"].([]interface{})
	assert.GreaterOrEqual(t, len(items), 3)
}

func TestQuotationsFromSelection(t *testing.T) {
	env, _ := setupProcurementTest(t)
	pr := createApprovedPR(t, env,
		map[string]interface{}{"part_id": "p-bolt", "quantity": 50},
		map[string]interface{}{"part_id": "p-belt", "quantity": 2},
	)

	w := testutil.DoRequest(env.Router, http.MethodGet, base+"/suppliers/pending", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.Data(t, w)["items"], 2)

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/from-selection",
		map[string]interface{}{"line_ids": lineIDsOf(pr)}, "u1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := testutil.Data(t, w)
	quotations := data["quotations"].([]interface{})
	require.Len(t, quotations, 2)
	primary := data["primary"].(map[string]interface{})
	assert.Equal(t, quotations[0].(map[string]interface{})["id"], primary["id"])

	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/quotation-numbers/"+primary["quotation_number"].(string), nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/quotations/"+primary["id"].(string)+"/status",
		map[string]interface{}{"status": "CONFIRMED", "notes": "phone"}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := testutil.Data(t, w)
	assert.Equal(t, "CONFIRMED", updated["status"])
	assert.Equal(t, "manual", updated["status_origin"])

	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/quotations?supplier=Beta", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	pagination := testutil.Data(t, w)["pagination"].(map[string]interface{})
	assert.Equal(t, float64(1), pagination["total"])
}

func TestErrorMapping(t *testing.T) {
	env, _ := setupProcurementTest(t)

	w := testutil.DoRequest(env.Router, http.MethodGet, base+"/requisitions/missing", nil, "u1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(CodeNotFound), testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/requisitions",
		map[string]interface{}{"title": "", "date_needed": time.Now().UTC().Format(time.RFC3339)}, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(CodeValidation), testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/from-parts",
		map[string]interface{}{"line_ids": []string{"x"}}, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(CodeBadRequest), testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(env.Router, http.MethodDelete, base+"/quotations/missing", nil, "u1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectThenEditHTTP(t *testing.T) {
	env, _ := setupProcurementTest(t)
	body := map[string]interface{}{
		"title":       "Pump seals",
		"date_needed": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"lines":       []map[string]interface{}{{"part_id": "p-bolt", "quantity": 4}},
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/requisitions", body, "u1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := testutil.Data(t, w)["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/requisitions/"+id+"/reject",
		map[string]interface{}{"notes": "wrong part"}, "rev")
	require.Equal(t, http.StatusOK, w.Code)
	rejected := testutil.Data(t, w)
	assert.Equal(t, "SUBMITTED", rejected["status"])
	assert.Equal(t, "rejected", rejected["approval_outcome"])

	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/requisitions/"+id,
		map[string]interface{}{"description": "use the viton seals"}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := testutil.Data(t, w)
	assert.Equal(t, "", edited["approval_outcome"])
	assert.Equal(t, "use the viton seals", edited["description"])

	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/requisitions?status=SUBMITTED", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.Data(t, w)["items"], 1)

	w = testutil.DoRequest(env.Router, http.MethodDelete, base+"/requisitions/"+id, nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestChangesArePublished(t *testing.T) {
	env, hub := setupProcurementTest(t)
	client := &sse.Client{ID: "watcher", Events: make(chan sse.Event, 16)}
	hub.Register(client)

	createApprovedPR(t, env, map[string]interface{}{"part_id": "p-bolt", "quantity": 1})

	var actions []string
	for len(client.Events) > 0 {
		ev := <-client.Events
		assert.Equal(t, sse.EventRequisitionUpdate, ev.EventType)
		var payload sse.ChangePayload
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &payload))
		actions = append(actions, payload.Action)
	}
	assert.Equal(t, []string{"create", "approve"}, actions)
}

func TestReviewIsSentToRequestor(t *testing.T) {
	env, hub := setupProcurementTest(t)
	requestor := &sse.Client{ID: "c-u1", UserID: "u1", Events: make(chan sse.Event, 16)}
	other := &sse.Client{ID: "c-u9", UserID: "u9", Events: make(chan sse.Event, 16)}
	hub.Register(requestor)
	hub.Register(other)

	createApprovedPR(t, env, map[string]interface{}{"part_id": "p-bolt", "quantity": 1})

	countReviewed := func(c *sse.Client) int {
		n := 0
		for len(c.Events) > 0 {
			if ev := <-c.Events; ev.EventType == sse.EventRequisitionReviewed {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, countReviewed(requestor))
	assert.Equal(t, 0, countReviewed(other))
}

// stuckSequence always returns the same counter value.
type stuckSequence struct{}

func (stuckSequence) Next(ctx context.Context, key string) (int64, error) {
	return 1, nil
}

func TestQuotationsFromSelection_PartialCommitOnConflict(t *testing.T) {
	env, _ := setupProcurementTestWithSequence(t, stuckSequence{})
	pr := createApprovedPR(t, env,
		map[string]interface{}{"part_id": "p-bolt", "quantity": 50},
		map[string]interface{}{"part_id": "p-belt", "quantity": 2},
	)

	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/from-selection",
		map[string]interface{}{"line_ids": lineIDsOf(pr)}, "u1")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	resp := testutil.ParseResponse(w)
	assert.Equal(t, float64(CodeConflict), resp["code"])

	data := resp["data"].(map[string]interface{})
	quotations := data["quotations"].([]interface{})
	require.Len(t, quotations, 1)
	committed := quotations[0].(map[string]interface{})
	assert.Equal(t, "Acme", committed["supplier_name"])
	require.NotNil(t, data["primary"])
	assert.Equal(t, committed["id"], data["primary"].(map[string]interface{})["id"])

	var persisted int64
	require.NoError(t, env.DB.Model(&entity.QuotationRequest{}).Count(&persisted).Error)
	assert.Equal(t, int64(1), persisted)

	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/quotations/"+committed["id"].(string), nil, "u1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestZeroQuantityIsValidationError(t *testing.T) {
	env, _ := setupProcurementTest(t)
	pr := createApprovedPR(t, env, map[string]interface{}{"part_id": "p-bolt", "quantity": 5})
	lineID := lineIDsOf(pr)[0]

	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/requisition-lines/"+lineID+"/order",
		map[string]interface{}{"quotation_number": "QR-202603-0009", "quantity": 0}, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(CodeValidation), testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/requisition-lines/"+lineID+"/order",
		map[string]interface{}{"quotation_number": "QR-202603-0009", "quantity": 5}, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, qty := range []int{0, -3} {
		w = testutil.DoRequest(env.Router, http.MethodPost, base+"/requisition-lines/"+lineID+"/receive",
			map[string]interface{}{"quantity": qty}, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, float64(CodeValidation), testutil.ParseResponse(w)["code"], "quantity %d", qty)
	}

	second := createApprovedPR(t, env, map[string]interface{}{"part_id": "p-bolt", "quantity": 4})
	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/from-parts", map[string]interface{}{
		"supplier_name": "Acme",
		"line_ids":      lineIDsOf(second),
	}, "u1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	qrID := testutil.Data(t, w)["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/quotations/"+qrID+"/receive",
		map[string]interface{}{"part_id": "p-bolt", "quantity": 0}, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(CodeValidation), testutil.ParseResponse(w)["code"])
}
