package service

import (
	"context"
	"time"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"

	"github.com/stretchr/testify/mock"
)

// MockLoanRepository is a mock implementation of LoanRepository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) UpsertBatch(ctx context.Context, loans []*models.EnrichedLoan) (int64, int64, error) {
	args := m.Called(ctx, loans)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id int64) (*models.EnrichedLoan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EnrichedLoan), args.Error(1)
}

func (m *MockLoanRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockPipelineRunRepository is a mock implementation of PipelineRunRepository
type MockPipelineRunRepository struct {
	mock.Mock
}

func (m *MockPipelineRunRepository) Create(ctx context.Context, run *models.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockPipelineRunRepository) Finalize(ctx context.Context, executionID string, status models.RunStatus, rowsProcessed int64, errorMessage *string) error {
	args := m.Called(ctx, executionID, status, rowsProcessed, errorMessage)
	return args.Error(0)
}

func (m *MockPipelineRunRepository) GetByID(ctx context.Context, executionID string) (*models.PipelineRun, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PipelineRun), args.Error(1)
}

func (m *MockPipelineRunRepository) GetLatest(ctx context.Context) (*models.PipelineRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PipelineRun), args.Error(1)
}

func (m *MockPipelineRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PipelineRun), args.Error(1)
}

// MockKpiRepository is a mock implementation of KpiRepository
type MockKpiRepository struct {
	mock.Mock
}

func (m *MockKpiRepository) Upsert(ctx context.Context, kpi *models.HistoricalKpi) error {
	args := m.Called(ctx, kpi)
	return args.Error(0)
}

func (m *MockKpiRepository) GetHistory(ctx context.Context, name string, from, to time.Time) ([]*models.HistoricalKpi, error) {
	args := m.Called(ctx, name, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HistoricalKpi), args.Error(1)
}

// MockAnalyticsRepository is a mock implementation of AnalyticsRepository
type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) PortfolioKPIs(ctx context.Context) (*models.PortfolioKPIs, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PortfolioKPIs), args.Error(1)
}

func (m *MockAnalyticsRepository) MonthlyPerformance(ctx context.Context) ([]*models.MonthlyPerformance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MonthlyPerformance), args.Error(1)
}

func (m *MockAnalyticsRepository) StateDistribution(ctx context.Context) ([]*models.StateBreakdown, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StateBreakdown), args.Error(1)
}
