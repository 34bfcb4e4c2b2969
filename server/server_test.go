package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestServer(analytics *service.MockAnalyticsRepository, loans *service.MockLoanRepository, runs *service.MockPipelineRunRepository) *Server {
	svc := service.NewAnalyticsService(analytics, new(service.MockKpiRepository), nil)
	return New("0", svc, loans, runs)
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(new(service.MockAnalyticsRepository), new(service.MockLoanRepository), new(service.MockPipelineRunRepository))

	rec := doRequest(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestServer_PortfolioKPIs(t *testing.T) {
	analytics := new(service.MockAnalyticsRepository)
	srv := newTestServer(analytics, new(service.MockLoanRepository), new(service.MockPipelineRunRepository))

	t.Run("returns aggregates", func(t *testing.T) {
		analytics.On("PortfolioKPIs", mock.Anything).Return(&models.PortfolioKPIs{
			TotalLoans:  500,
			TotalAmount: 6000000,
			DefaultRate: 14.2,
		}, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/kpis")
		require.Equal(t, http.StatusOK, rec.Code)

		var body models.PortfolioKPIs
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(500), body.TotalLoans)
		assert.Equal(t, 14.2, body.DefaultRate)
	})

	t.Run("store failure maps to 500 without leaking details", func(t *testing.T) {
		analytics.On("PortfolioKPIs", mock.Anything).Return(nil, errors.New("pq: relation missing")).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/kpis")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation missing")
	})
}

func TestServer_KpiHistory(t *testing.T) {
	srv := newTestServer(new(service.MockAnalyticsRepository), new(service.MockLoanRepository), new(service.MockPipelineRunRepository))

	t.Run("name is required", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/kpis/history")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid dates are rejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/kpis/history?name=Taux+D%C3%A9faut&from=yesterday")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_Loans(t *testing.T) {
	loans := new(service.MockLoanRepository)
	srv := newTestServer(new(service.MockAnalyticsRepository), loans, new(service.MockPipelineRunRepository))

	t.Run("found", func(t *testing.T) {
		grade := "B"
		loans.On("GetByID", mock.Anything, int64(12345)).Return(&models.EnrichedLoan{
			ID:    12345,
			Grade: &grade,
		}, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/loans/12345")
		require.Equal(t, http.StatusOK, rec.Code)

		var body models.EnrichedLoan
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(12345), body.ID)
	})

	t.Run("not found", func(t *testing.T) {
		loans.On("GetByID", mock.Anything, int64(999)).Return(nil, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/loans/999")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-numeric id never reaches the repository", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/loans/abc")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		loans.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestServer_Runs(t *testing.T) {
	runs := new(service.MockPipelineRunRepository)
	srv := newTestServer(new(service.MockAnalyticsRepository), new(service.MockLoanRepository), runs)

	t.Run("latest", func(t *testing.T) {
		runs.On("GetLatest", mock.Anything).Return(&models.PipelineRun{
			ExecutionID:   "abc-123",
			Status:        models.RunStatusSuccess,
			RowsProcessed: 4200,
			StartedAt:     time.Now().UTC(),
		}, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/runs/latest")
		require.Equal(t, http.StatusOK, rec.Code)

		var body models.PipelineRun
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "abc-123", body.ExecutionID)
		assert.Equal(t, int64(4200), body.RowsProcessed)
	})

	t.Run("latest with no runs", func(t *testing.T) {
		runs.On("GetLatest", mock.Anything).Return(nil, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/runs/latest")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("by execution id", func(t *testing.T) {
		runs.On("GetByID", mock.Anything, "run-42").Return(&models.PipelineRun{
			ExecutionID: "run-42",
			Status:      models.RunStatusFailed,
		}, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/runs/run-42")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "failed")
	})

	t.Run("list respects the limit parameter", func(t *testing.T) {
		runs.On("ListRecent", mock.Anything, 5).Return([]*models.PipelineRun{}, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/runs?limit=5")
		assert.Equal(t, http.StatusOK, rec.Code)
		runs.AssertExpectations(t)
	})

	t.Run("list default limit", func(t *testing.T) {
		runs.On("ListRecent", mock.Anything, defaultRunListLimit).Return([]*models.PipelineRun{}, nil).Once()

		rec := doRequest(t, srv, http.MethodGet, "/api/runs")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
