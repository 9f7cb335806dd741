package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/adapters/memstore"
	"github.com/caseflow/caseflow/server"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	graph := caseflow.ClaimWorkflow()
	engine := caseflow.New(graph, memstore.New())

	return server.New(engine, graph).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		jtest.RequireNil(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type stateResponse struct {
	InstanceID string                 `json:"instance_id"`
	State      *caseflow.ProcessState `json:"state"`
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()

	var resp stateResponse
	jtest.RequireNil(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStartAndEarlyCancelOverHTTP(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/workflows", map[string]any{
		"customer_id": "C1",
		"started_by":  "user_a",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	started := decodeState(t, w)
	require.NotEmpty(t, started.InstanceID)
	require.Equal(t, caseflow.StatusPaused, started.State.Status)
	require.Equal(t, caseflow.NodeValidateRequest, started.State.LastNode)
	require.Equal(t, "Validate request? (yes/no)", started.State.Prompt)

	w = do(t, h, http.MethodPost, "/api/v1/workflows/"+started.InstanceID+"/resume", map[string]any{
		"actor":      "user_b",
		"user_input": "no",
	})
	require.Equal(t, http.StatusOK, w.Code)

	resumed := decodeState(t, w)
	require.Equal(t, caseflow.StatusAborted, resumed.State.Status)
	require.Equal(t, caseflow.NodeCancelRequest, resumed.State.LastNode)
	require.Equal(t, "Workflow aborted.", resumed.State.Result)

	w = do(t, h, http.MethodGet, "/api/v1/workflows/"+started.InstanceID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, caseflow.StatusAborted, decodeState(t, w).State.Status)
}

func TestStartValidatesRequest(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/workflows", map[string]any{
		"customer_id": "C1",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResumeConflictingInputs(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/workflows", map[string]any{
		"customer_id": "C1",
		"started_by":  "user_a",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	started := decodeState(t, w)

	w = do(t, h, http.MethodPost, "/api/v1/workflows/"+started.InstanceID+"/resume", map[string]any{
		"actor":          "user_b",
		"user_input":     "yes",
		"control_action": "abort",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownInstanceIsNotFound(t *testing.T) {
	h := newTestServer(t)

	for _, target := range []string{
		"/api/v1/workflows/nope",
		"/api/v1/workflows/nope/summary",
		"/api/v1/workflows/nope/history",
		"/api/v1/workflows/nope/diagram",
	} {
		w := do(t, h, http.MethodGet, target, nil)
		require.Equal(t, http.StatusNotFound, w.Code, "target %s", target)
	}

	w := do(t, h, http.MethodPost, "/api/v1/workflows/nope/resume", map[string]any{
		"actor": "user_b",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummaryOmitsInternals(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/workflows", map[string]any{
		"customer_id": "C1",
		"started_by":  "user_a",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	started := decodeState(t, w)

	w = do(t, h, http.MethodGet, "/api/v1/workflows/"+started.InstanceID+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary map[string]any
	jtest.RequireNil(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.Equal(t, string(caseflow.StatusPaused), summary["status"])
	require.NotContains(t, summary, "decisions")
	require.NotContains(t, summary, "pending_input")
}

func TestHistoryOverHTTP(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/workflows", map[string]any{
		"customer_id": "C1",
		"started_by":  "user_a",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	started := decodeState(t, w)

	w = do(t, h, http.MethodGet, "/api/v1/workflows/"+started.InstanceID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []*caseflow.AuditEvent `json:"events"`
	}
	jtest.RequireNil(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	require.Equal(t, caseflow.EventCreated, resp.Events[0].Kind)
	require.Equal(t, caseflow.EventPaused, resp.Events[1].Kind)
}

func TestListOverHTTP(t *testing.T) {
	h := newTestServer(t)

	for _, customerID := range []string{"C1", "C2"} {
		w := do(t, h, http.MethodPost, "/api/v1/workflows", map[string]any{
			"customer_id": customerID,
			"started_by":  "user_a",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(t, h, http.MethodGet, "/api/v1/workflows?customer_id=C2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		States []*caseflow.ProcessState `json:"states"`
	}
	jtest.RequireNil(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.States, 1)
	require.Equal(t, "C2", resp.States[0].CustomerID)
}

func TestDiagramHighlightsCurrentNode(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/workflows", map[string]any{
		"customer_id": "C1",
		"started_by":  "user_a",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	started := decodeState(t, w)

	w = do(t, h, http.MethodGet, "/api/v1/workflows/"+started.InstanceID+"/diagram", nil)
	require.Equal(t, http.StatusOK, w.Code)

	out := w.Body.String()
	require.True(t, strings.Contains(out, "stateDiagram-v2"))
	require.True(t, strings.Contains(out, "class ValidateRequest current"))
}
