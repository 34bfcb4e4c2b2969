package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/events"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
)

const (
	cacheKeyPortfolioKPIs      = "analytics:portfolio_kpis"
	cacheKeyMonthlyPerformance = "analytics:monthly_performance"
	cacheKeyStateDistribution  = "analytics:state_distribution"

	cacheTTL = 10 * time.Minute
)

// AnalyticsService serves the read-only projections over the store and writes
// the daily historical KPI snapshot. It never touches loan rows directly and
// never feeds results back into the derivation rules.
type AnalyticsService struct {
	analytics AnalyticsRepository
	kpis      KpiRepository
	cache     *redis.Client
}

// NewAnalyticsService creates a new analytics service. cache may be nil, in
// which case every read goes to the database.
func NewAnalyticsService(analytics AnalyticsRepository, kpis KpiRepository, cache *redis.Client) *AnalyticsService {
	return &AnalyticsService{
		analytics: analytics,
		kpis:      kpis,
		cache:     cache,
	}
}

// SubscribeToPipelineEvents refreshes the KPI snapshot and invalidates cached
// projections after every successful pipeline run.
func (s *AnalyticsService) SubscribeToPipelineEvents(bus *events.Bus) {
	bus.Subscribe(events.EventTypePipelineCompleted, func(ctx context.Context, event events.Event) {
		completed, ok := event.(events.PipelineCompletedEvent)
		if !ok {
			return
		}
		s.invalidateCache(ctx)
		day := time.Now().UTC()
		if err := s.SnapshotKPIs(ctx, day); err != nil {
			log.WithFields(log.Fields{
				"executionId": completed.ExecutionID,
				"error":       err,
			}).Error("Failed to snapshot KPIs after pipeline run")
			return
		}
		bus.Emit(ctx, events.KpiSnapshotEvent{
			CalculationDate: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Period:          "daily",
			KpiCount:        6,
		})
	})
}

// PortfolioKPIs returns the portfolio-wide aggregates
func (s *AnalyticsService) PortfolioKPIs(ctx context.Context) (*models.PortfolioKPIs, error) {
	var cached models.PortfolioKPIs
	if s.readCache(ctx, cacheKeyPortfolioKPIs, &cached) {
		return &cached, nil
	}

	kpis, err := s.analytics.PortfolioKPIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio KPIs: %w", err)
	}

	s.writeCache(ctx, cacheKeyPortfolioKPIs, kpis)
	return kpis, nil
}

// MonthlyPerformance returns the issuance time series
func (s *AnalyticsService) MonthlyPerformance(ctx context.Context) ([]*models.MonthlyPerformance, error) {
	var cached []*models.MonthlyPerformance
	if s.readCache(ctx, cacheKeyMonthlyPerformance, &cached) {
		return cached, nil
	}

	rows, err := s.analytics.MonthlyPerformance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read monthly performance: %w", err)
	}

	s.writeCache(ctx, cacheKeyMonthlyPerformance, rows)
	return rows, nil
}

// StateDistribution returns the geographic breakdown
func (s *AnalyticsService) StateDistribution(ctx context.Context) ([]*models.StateBreakdown, error) {
	var cached []*models.StateBreakdown
	if s.readCache(ctx, cacheKeyStateDistribution, &cached) {
		return cached, nil
	}

	rows, err := s.analytics.StateDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read state distribution: %w", err)
	}

	s.writeCache(ctx, cacheKeyStateDistribution, rows)
	return rows, nil
}

// KpiHistory returns stored snapshots for one KPI name within a date range
func (s *AnalyticsService) KpiHistory(ctx context.Context, name string, from, to time.Time) ([]*models.HistoricalKpi, error) {
	return s.kpis.GetHistory(ctx, name, from, to)
}

// SnapshotKPIs computes the current portfolio KPIs and upserts one historical
// snapshot row per metric, keyed on (date, name, period). Re-running on the
// same day overwrites that day's values.
func (s *AnalyticsService) SnapshotKPIs(ctx context.Context, date time.Time) error {
	kpis, err := s.analytics.PortfolioKPIs(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute KPIs for snapshot: %w", err)
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	snapshots := []*models.HistoricalKpi{
		{Name: "Portfolio Total", Value: float64(kpis.TotalLoans), Description: "Nombre de prêts"},
		{Name: "Montant Total", Value: kpis.TotalAmount, Description: "Montant total du portefeuille ($)"},
		{Name: "Taux Défaut", Value: kpis.DefaultRate, Description: "Pourcentage de prêts en défaut (%)"},
		{Name: "Taux Remboursement", Value: kpis.FullyPaidRate, Description: "Pourcentage de prêts soldés (%)"},
		{Name: "Taux Intérêt Moyen", Value: kpis.AvgInterestRate, Description: "Taux d'intérêt moyen (%)"},
		{Name: "Revenu Moyen", Value: kpis.AvgAnnualIncome, Description: "Revenu annuel moyen des emprunteurs ($)"},
	}

	for _, snapshot := range snapshots {
		snapshot.CalculationDate = day
		snapshot.Period = "daily"
		if err := s.kpis.Upsert(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to store KPI snapshot %q: %w", snapshot.Name, err)
		}
	}

	log.WithFields(log.Fields{
		"date":     day.Format("2006-01-02"),
		"kpiCount": len(snapshots),
	}).Info("KPI snapshot stored")

	return nil
}

// readCache loads a cached projection; a miss or any cache failure returns
// false so reads fall through to the database.
func (s *AnalyticsService) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithFields(log.Fields{"key": key, "error": err}).Warn("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("Cache entry unreadable")
		return false
	}
	return true
}

func (s *AnalyticsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err}).Warn("Cache write failed")
	}
}

func (s *AnalyticsService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := []string{cacheKeyPortfolioKPIs, cacheKeyMonthlyPerformance, cacheKeyStateDistribution}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		log.WithField("error", err).Warn("Cache invalidation failed")
	}
}
