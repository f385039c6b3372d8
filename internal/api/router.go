// Package api serves clinical goal evaluations and run history over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/uncertainty-goals/internal/model"
	"github.com/sells-group/uncertainty-goals/internal/plan"
	"github.com/sells-group/uncertainty-goals/internal/scenario"
	"github.com/sells-group/uncertainty-goals/internal/store"
)

// RunIDHeader carries the id of a persisted evaluation run.
const RunIDHeader = "X-Run-ID"

const defaultMaxBodyBytes = 32 << 20

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	MaxBodyBytes   int64
}

// Server holds the dependencies of the HTTP handlers. Store may be nil, in
// which case evaluations are not persisted and run history is unavailable.
type Server struct {
	evaluator *scenario.Evaluator
	store     store.Store
	maxBody   int64
}

// NewRouter builds the HTTP handler.
func NewRouter(ev *scenario.Evaluator, st store.Store, opts Options) http.Handler {
	s := &Server{evaluator: ev, store: st, maxBody: opts.MaxBodyBytes}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{RunIDHeader},
		MaxAge:         300,
	}))
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		r.Use(RateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), burst)))
	}

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluations", s.createEvaluation)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
	})
	return r
}

// RateLimit rejects requests with 429 once the limiter's bucket is empty.
func RateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type issuesResponse struct {
	Error    string   `json:"error"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) createEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := plan.Decode(http.MaxBytesReader(w, r.Body, s.maxBody), "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan bundle")
		return
	}

	issues := plan.Validate(b, false)
	if len(issues.Errors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, issuesResponse{
			Error:    "plan is not valid",
			Errors:   issues.Errors,
			Warnings: issues.Warnings,
		})
		return
	}

	var run *model.Run
	if s.store != nil {
		run, err = s.store.CreateRun(ctx, model.RunKindGoals, b.Ref())
		if err != nil {
			zap.L().Error("api: create run", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not record run")
			return
		}
		if err := s.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			zap.L().Warn("api: mark run running", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	container, evalErr := s.evaluator.Evaluate(ctx, b)

	if run != nil {
		result := &model.RunResult{Goals: container}
		if evalErr != nil {
			result = &model.RunResult{Error: evalErr.Error()}
		}
		if err := s.store.UpdateRunResult(ctx, run.ID, result); err != nil {
			zap.L().Error("api: store run result", zap.String("run_id", run.ID), zap.Error(err))
		}
		w.Header().Set(RunIDHeader, run.ID)
	}

	if evalErr != nil {
		status := http.StatusInternalServerError
		if errors.Is(evalErr, scenario.ErrStructureNotFound) {
			status = http.StatusUnprocessableEntity
		}
		zap.L().Warn("api: evaluation failed",
			zap.String("plan_id", b.PlanID),
			zap.Error(evalErr),
		)
		writeError(w, status, evalErr.Error())
		return
	}

	zap.L().Info("api: evaluation complete",
		zap.String("patient_id", b.PatientID),
		zap.String("plan_id", b.PlanID),
		zap.Int("goals", len(container.Lists)),
	)
	writeJSON(w, http.StatusOK, container)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Status:    model.RunStatus(q.Get("status")),
		Kind:      model.RunKind(q.Get("kind")),
		PatientID: q.Get("patient_id"),
		PlanID:    q.Get("plan_id"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func intParam(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
