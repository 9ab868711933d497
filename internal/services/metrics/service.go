// Package metrics computes per-organization progress summaries. Nothing is
// cached; every call reads current counts.
package metrics

import (
	"context"
	"math"

	"voterfield/internal/domain"
	"voterfield/internal/ports"
)

type Summary struct {
	TotalVoters          int                             `json:"total_voters"`
	TotalInteractions    int                             `json:"total_interactions"`
	ContactedCount       int                             `json:"contacted_count"`
	CompletionPercentage float64                         `json:"completion_percentage"`
	ResultsByCode        map[domain.ResultCode]int       `json:"results_by_code"`
	AssignmentsByStatus  map[domain.AssignmentStatus]int `json:"assignments_by_status"`
}

type Service struct {
	repo ports.MetricsRepository
}

func New(repo ports.MetricsRepository) *Service { return &Service{repo: repo} }

// Summary is admin-only.
func (s *Service) Summary(ctx context.Context, caller domain.Caller) (Summary, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Summary{}, err
	}
	c, err := s.repo.OrgCounts(ctx, caller.OrgID)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		TotalVoters:         c.Voters,
		TotalInteractions:   c.Interactions,
		ContactedCount:      c.ResultsByCode[domain.ResultContacted],
		ResultsByCode:       map[domain.ResultCode]int{},
		AssignmentsByStatus: map[domain.AssignmentStatus]int{},
	}
	for _, code := range domain.ResultCodes {
		out.ResultsByCode[code] = c.ResultsByCode[code]
	}
	for _, st := range []domain.AssignmentStatus{domain.AssignmentAssigned, domain.AssignmentInProgress, domain.AssignmentCompleted} {
		out.AssignmentsByStatus[st] = c.AssignmentsByStatus[st]
	}
	out.CompletionPercentage = CompletionPercentage(out.ContactedCount, out.TotalVoters)
	return out, nil
}

// CompletionPercentage is contacted/voters as a percentage rounded to one
// decimal, or 0 when there are no voters.
func CompletionPercentage(contacted, voters int) float64 {
	if voters <= 0 {
		return 0
	}
	return math.Round(float64(contacted)/float64(voters)*1000) / 10
}
