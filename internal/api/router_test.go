package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/uncertainty-goals/internal/model"
	"github.com/sells-group/uncertainty-goals/internal/scenario"
	"github.com/sells-group/uncertainty-goals/internal/store"
)

const planBody = `
patient_id: P9
course_id: C1
plan_id: PlanZ
prescription: {number_of_fractions: 1, dose_per_fraction: 60}
structures:
  - {id: PTV, volume_cc: 10}
clinical_goals:
  - structure_id: PTV
    measure_type: dmax
    objective: {value: 0, value_unit: absolute, limit: 60, limit_unit: absolute, operator: "<"}
nominal:
  dvh:
    PTV:
      curve: [{dose: 0, volume: 10}, {dose: 59, volume: 0}]
      max_dose: 59
scenarios:
  - name: S1
    dose:
      dvh:
        PTV:
          curve: [{dose: 0, volume: 10}, {dose: 62, volume: 0}]
          max_dose: 62
`

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestRouter(st store.Store, opts Options) http.Handler {
	return NewRouter(scenario.New(scenario.Options{Workers: 2}), st, opts)
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	rr := do(newTestRouter(nil, Options{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_CreateEvaluation(t *testing.T) {
	rr := do(newTestRouter(nil, Options{}), http.MethodPost, "/v1/evaluations", planBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Empty(t, rr.Header().Get(RunIDHeader))

	var c model.UncertaintyGoalListContainer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	assert.Equal(t, "P9", c.PatientID)
	require.Len(t, c.Lists, 1)
	goals := c.Lists[0].Goals
	require.Len(t, goals, 2)
	assert.Equal(t, "Nominal", goals[0].Name)
	assert.InDelta(t, 59, goals[0].Value, 1e-9)
	assert.Equal(t, model.VerdictPassed, goals[0].Result)
	assert.Equal(t, "S1", goals[1].Name)
	assert.Equal(t, model.VerdictFailed, goals[1].Result)
}

func TestRouter_CreateEvaluation_Persisted(t *testing.T) {
	st := newTestStore(t)
	h := newTestRouter(st, Options{})

	rr := do(h, http.MethodPost, "/v1/evaluations", planBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	runID := rr.Header().Get(RunIDHeader)
	require.NotEmpty(t, runID)

	rr = do(h, http.MethodGet, "/v1/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, model.RunKindGoals, run.Kind)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "PlanZ", run.Plan.PlanID)
	require.NotNil(t, run.Result)
	require.NotNil(t, run.Result.Goals)
	assert.Len(t, run.Result.Goals.Lists, 1)

	rr = do(h, http.MethodGet, "/v1/runs?kind=goals&patient_id=P9", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
}

func TestRouter_CreateEvaluation_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{"not yaml", "patient_id: [", http.StatusBadRequest, "invalid plan bundle"},
		{"no goals", "patient_id: P1\nplan_id: A\n", http.StatusUnprocessableEntity, "plan contains no clinical goals"},
		{
			"unknown structure",
			strings.Replace(planBody, "structure_id: PTV", "structure_id: Bladder", 1),
			http.StatusUnprocessableEntity,
			"Bladder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(newTestRouter(nil, Options{}), http.MethodPost, "/v1/evaluations", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}

func TestRouter_FailedEvaluationRecorded(t *testing.T) {
	st := newTestStore(t)
	h := newTestRouter(st, Options{})

	body := strings.Replace(planBody, "structure_id: PTV", "structure_id: Bladder", 1)
	rr := do(h, http.MethodPost, "/v1/evaluations", body)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	runID := rr.Header().Get(RunIDHeader)
	require.NotEmpty(t, runID)

	run, err := st.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Result.Error, "structure not found")
}

func TestRouter_GetRun_NotFound(t *testing.T) {
	rr := do(newTestRouter(newTestStore(t), Options{}), http.MethodGet, "/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "run not found")
}

func TestRouter_ListRuns(t *testing.T) {
	h := newTestRouter(newTestStore(t), Options{})

	rr := do(h, http.MethodGet, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = do(h, http.MethodGet, "/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(h, http.MethodGet, "/v1/runs?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_RunsWithoutStore(t *testing.T) {
	h := newTestRouter(nil, Options{})

	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/v1/runs", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/v1/runs/abc", "").Code)
}

func TestRouter_RateLimit(t *testing.T) {
	h := newTestRouter(nil, Options{RateLimit: 0.001, RateBurst: 2})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)

	rr := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "rate limit exceeded")
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(nil, Options{AllowedOrigins: []string{"https://planning.example"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://planning.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://planning.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
