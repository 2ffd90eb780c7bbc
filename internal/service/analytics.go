package service

import (
	"context"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/events"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/repository"
	"github.com/google/uuid"
)

// AnalyticsService is the read-only reporting surface. It aggregates from
// the durable decision logs and the event streams only, never from counter
// buckets directly.
type AnalyticsService struct {
	repository *repository.RequestLogRepository
	events     *events.Log
}

func NewAnalyticsService(repo *repository.RequestLogRepository, eventLog *events.Log) *AnalyticsService {
	return &AnalyticsService{
		repository: repo,
		events:     eventLog,
	}
}

// Holds analytics summary data
type AnalyticsSummary struct {
	TotalChecks       int64                    `json:"total_checks"`
	AdmittedCount     int64                    `json:"admitted_count"`
	BlockedCount      int64                    `json:"blocked_count"`
	UnauthorizedCount int64                    `json:"unauthorized_count"`
	DisabledCount     int64                    `json:"disabled_count"`
	BlockRate         float64                  `json:"block_rate"`
	AvgDecisionTimeMs float64                  `json:"avg_decision_time_ms"`
	TopEndpoints      []map[string]interface{} `json:"top_endpoints"`
}

// Retrieves the decision summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{}

	total, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalChecks = total

	if total == 0 {
		return summary, nil
	}

	admitted, err := s.repository.CountByOutcome(ctx, events.OutcomeSuccess, from, to)
	if err != nil {
		return nil, err
	}
	summary.AdmittedCount = admitted

	blocked, err := s.repository.CountByOutcome(ctx, events.OutcomeBlocked, from, to)
	if err != nil {
		return nil, err
	}
	summary.BlockedCount = blocked

	unauthorized, err := s.repository.CountByOutcome(ctx, events.OutcomeUnauthorized, from, to)
	if err != nil {
		return nil, err
	}
	summary.UnauthorizedCount = unauthorized

	disabled, err := s.repository.CountByOutcome(ctx, events.OutcomeDisabled, from, to)
	if err != nil {
		return nil, err
	}
	summary.DisabledCount = disabled

	summary.BlockRate = (float64(blocked) / float64(total)) * 100

	avg, err := s.repository.GetAverageResponseTime(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgDecisionTimeMs = avg

	topEndpoints, err := s.repository.GetTopEndpoints(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopEndpoints = topEndpoints

	return summary, nil
}

// Retrieves the durable decision history for one API key
func (s *AnalyticsService) GetKeyHistory(ctx context.Context, apiKeyID uuid.UUID, from, to time.Time, limit, offset int) ([]interface{}, error) {
	logs, err := s.repository.FindByAPIKey(ctx, apiKeyID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}

	results := make([]interface{}, 0, len(logs))
	for _, entry := range logs {
		results = append(results, entry)
	}

	return results, nil
}

// RecentActivity reads the tail of the global event stream
func (s *AnalyticsService) RecentActivity(ctx context.Context, count int) ([]events.Event, error) {
	return s.events.Recent(ctx, "", count)
}
