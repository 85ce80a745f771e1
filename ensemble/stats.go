package ensemble

import (
	"sync"
	"time"
)

// Stats tracks ensemble usage across concurrent queries. The zero value is
// ready to use.
type Stats struct {
	mu              sync.Mutex
	totalQueries    int
	successful      int
	failed          int
	expertUsage     map[string]int
	averageDuration time.Duration
}

// StatsSnapshot is a copy of the counters at one point in time.
type StatsSnapshot struct {
	TotalQueries    int            `json:"total_queries"`
	Successful      int            `json:"successful_queries"`
	Failed          int            `json:"failed_queries"`
	SuccessRate     float64        `json:"success_rate"`
	ExpertUsage     map[string]int `json:"expert_usage"`
	AverageDuration time.Duration  `json:"average_duration"`
}

func (s *Stats) recordQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalQueries++
}

func (s *Stats) recordSuccess(responses map[string]string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.successful++
	if s.expertUsage == nil {
		s.expertUsage = make(map[string]int)
	}
	for id := range responses {
		s.expertUsage[id]++
	}

	// Running average over all recorded queries.
	n := time.Duration(s.totalQueries)
	if n > 0 {
		s.averageDuration = (s.averageDuration*(n-1) + duration) / n
	}
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
		TotalQueries:    s.totalQueries,
		Successful:      s.successful,
		Failed:          s.failed,
		SuccessRate:     successRate,
		ExpertUsage:     usage,
		AverageDuration: s.averageDuration,
	}
}

func (s *Stats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalQueries = 0
	s.successful = 0
	s.failed = 0
	s.expertUsage = nil
	s.averageDuration = 0
}
