// Package server exposes the manual trigger and run status over HTTP.
//
// Routes:
//
//	POST /runs        start a manual run (202, or 409 while one is in flight)
//	GET  /runs        recent runs, newest first (?limit=N)
//	GET  /runs/{id}   one run with its posting log
//	GET  /jobs        stored jobs (?verdict=&group=&company=&from=&to=&limit=)
//	GET  /status      whether a run is in flight and the last finished run
//	GET  /healthz     liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/pipeline"
	"github.com/amishk599/jobsift/internal/store"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
	defaultJobsLimit = 50
	maxJobsLimit     = 500
)

// Runner starts background runs and reports the gate state.
type Runner interface {
	Trigger(ctx context.Context, trigger model.Trigger) error
	State() *pipeline.RunState
}

// Reader reads the run ledger and the job store.
type Reader interface {
	GetRun(ctx context.Context, id string) (model.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]model.Run, error)
	RunLog(ctx context.Context, runID string) ([]model.RunJobLogEntry, error)
	QueryJobs(ctx context.Context, q model.JobQuery) ([]model.StoredJob, error)
}

// Server serves the trigger API.
type Server struct {
	runner Runner
	runs   Reader
	logger *slog.Logger
}

// New creates a Server.
func New(runner Runner, runs Reader, logger *slog.Logger) *Server {
	return &Server{runner: runner, runs: runs, logger: logger}
}

// Handler builds the router. Runs started through it live on runCtx, not on
// the request context.
func (s *Server) Handler(runCtx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Get("/jobs", s.handleQueryJobs)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			s.handleTrigger(runCtx, w, req)
		})
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleTrigger(runCtx context.Context, w http.ResponseWriter, _ *http.Request) {
	err := s.runner.Trigger(runCtx, model.TriggerManual)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, pipeline.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("manual trigger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not start run")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.runner.State().Snapshot()
	resp := statusResponse{Running: st.Running}
	if st.Running {
		since := st.Since
		resp.Since = &since
	}
	if st.LastRun != nil {
		v := toRunView(*st.LastRun)
		resp.LastRun = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	views := make([]runView, len(runs))
	for i, run := range runs {
		views[i] = toRunView(run)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("loading run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load run")
		return
	}

	entries, err := s.runs.RunLog(r.Context(), id)
	if err != nil {
		s.logger.Error("loading run log", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load run log")
		return
	}

	resp := runDetail{Run: toRunView(run), Log: make([]entryView, len(entries))}
	for i, e := range entries {
		resp.Log[i] = toEntryView(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueryJobs(w http.ResponseWriter, r *http.Request) {
	q, err := parseJobQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := s.runs.QueryJobs(r.Context(), q)
	if err != nil {
		s.logger.Error("querying jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "could not query jobs")
		return
	}
	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = toJobView(j)
	}
	writeJSON(w, http.StatusOK, views)
}

func parseJobQuery(v url.Values) (model.JobQuery, error) {
	q := model.JobQuery{
		Verdict: model.Verdict(strings.ToUpper(v.Get("verdict"))),
		GroupID: v.Get("group"),
		Company: v.Get("company"),
		Limit:   defaultJobsLimit,
	}
	if q.Verdict != "" && !q.Verdict.Valid() {
		return q, fmt.Errorf("unknown verdict %q", v.Get("verdict"))
	}

	var err error
	if q.From, err = parseDate(v.Get("from")); err != nil {
		return q, fmt.Errorf("from: %w", err)
	}
	if q.To, err = parseDate(v.Get("to")); err != nil {
		return q, fmt.Errorf("to: %w", err)
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = min(n, maxJobsLimit)
	}
	return q, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
