package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/service"
)

const defaultRunListLimit = 20

// Server exposes the read-only HTTP API over the analytics store
type Server struct {
	analytics *service.AnalyticsService
	loans     service.LoanRepository
	runs      service.PipelineRunRepository
	httpSrv   *http.Server
}

// New creates a server listening on the given port
func New(port string, analytics *service.AnalyticsService, loans service.LoanRepository, runs service.PipelineRunRepository) *Server {
	s := &Server{
		analytics: analytics,
		loans:     loans,
		runs:      runs,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/kpis", s.handlePortfolioKPIs).Methods("GET")
	r.HandleFunc("/api/kpis/history", s.handleKpiHistory).Methods("GET")
	r.HandleFunc("/api/performance/monthly", s.handleMonthlyPerformance).Methods("GET")
	r.HandleFunc("/api/distribution/geographic", s.handleStateDistribution).Methods("GET")
	r.HandleFunc("/api/loans/{id:[0-9]+}", s.handleGetLoan).Methods("GET")
	r.HandleFunc("/api/runs", s.handleListRuns).Methods("GET")
	r.HandleFunc("/api/runs/latest", s.handleLatestRun).Methods("GET")
	r.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods("GET")

	s.httpSrv = &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start blocks serving HTTP until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.httpSrv.Addr).Info("Starting HTTP API")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePortfolioKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.analytics.PortfolioKPIs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (s *Server) handleKpiHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name query parameter is required"})
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -3, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from date, expected YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to date, expected YYYY-MM-DD"})
			return
		}
		to = parsed
	}

	history, err := s.analytics.KpiHistory(r.Context(), name, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleMonthlyPerformance(w http.ResponseWriter, r *http.Request) {
	rows, err := s.analytics.MonthlyPerformance(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleStateDistribution(w http.ResponseWriter, r *http.Request) {
	rows, err := s.analytics.StateDistribution(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid loan id"})
		return
	}

	loan, err := s.loans.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if loan == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "loan not found"})
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetLatest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.WithError(err).Error("Request failed")
	writeJSON(w, status, map[string]string{"error": "internal error"})
}
