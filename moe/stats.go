package moe

import (
	"sync"
	"time"
)

// Stats tracks mixture usage across concurrent queries. The zero value is
// ready to use.
type Stats struct {
	mu                 sync.Mutex
	totalQueries       int
	successful         int
	failed             int
	expertUsage        map[string]int
	averageConfidence  float64
	averageDuration    time.Duration
	averageExpertsUsed float64
}

// StatsSnapshot is a copy of the counters at one point in time.
type StatsSnapshot struct {
	TotalQueries       int            `json:"total_queries"`
	Successful         int            `json:"successful_queries"`
	Failed             int            `json:"failed_queries"`
	SuccessRate        float64        `json:"success_rate"`
	ExpertUsage        map[string]int `json:"expert_usage"`
	AverageConfidence  float64        `json:"average_confidence"`
	AverageDuration    time.Duration  `json:"average_duration"`
	AverageExpertsUsed float64        `json:"average_experts_used"`
}

func (s *Stats) recordQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalQueries++
}

func (s *Stats) recordSuccess(selected []WeightedExpert, scores map[string]float64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.successful++
	if s.expertUsage == nil {
		s.expertUsage = make(map[string]int)
	}
	for _, sel := range selected {
		s.expertUsage[sel.Expert]++
	}

	n := float64(s.totalQueries)
	if n == 0 {
		return
	}

	if len(scores) > 0 {
		var sum float64
		for _, score := range scores {
			sum += score
		}
		avg := sum / float64(len(scores))
		s.averageConfidence = (s.averageConfidence*(n-1) + avg) / n
	}

	s.averageDuration = (s.averageDuration*time.Duration(n-1) + duration) / time.Duration(n)
	s.averageExpertsUsed = (s.averageExpertsUsed*(n-1) + float64(len(selected))) / n
}

func (s *Stats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

func (s *Stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage := make(map[string]int, len(s.expertUsage))
	for id, count := range s.expertUsage {
		usage[id] = count
	}

	var successRate float64
	if s.totalQueries > 0 {
		successRate = float64(s.successful) / float64(s.totalQueries)
	}

	return StatsSnapshot{
		TotalQueries:       s.totalQueries,
		Successful:         s.successful,
		Failed:             s.failed,
		SuccessRate:        successRate,
		ExpertUsage:        usage,
		AverageConfidence:  s.averageConfidence,
		AverageDuration:    s.averageDuration,
		AverageExpertsUsed: s.averageExpertsUsed,
	}
}

func (s *Stats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalQueries = 0
	s.successful = 0
	s.failed = 0
	s.expertUsage = nil
	s.averageConfidence = 0
	s.averageDuration = 0
	s.averageExpertsUsed = 0
}
