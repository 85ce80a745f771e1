package orchestrator

import (
	"sync"
	"time"
)

// RollingStats tracks orchestrator usage across concurrent queries. The zero
// value is ready to use.
type RollingStats struct {
	mu              sync.Mutex
	totalQueries    int
	successful      int
	failed          int
	strategyUsage   map[Strategy]int
	averageDuration time.Duration
}

// StatsSnapshot is a copy of the counters at one point in time.
type StatsSnapshot struct {
	TotalQueries    int              `json:"total_queries"`
	Successful      int              `json:"successful_queries"`
	Failed          int              `json:"failed_queries"`
	SuccessRate     float64          `json:"success_rate"`
	StrategyUsage   map[Strategy]int `json:"strategy_usage"`
	AverageDuration time.Duration    `json:"average_duration"`
}

func (s *RollingStats) record(strategy Strategy, duration time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalQueries++
	if success {
		s.successful++
	} else {
		s.failed++
	}

	if s.strategyUsage == nil {
		s.strategyUsage = make(map[Strategy]int)
	}
	s.strategyUsage[strategy]++

	n := time.Duration(s.totalQueries)
	s.averageDuration = (s.averageDuration*(n-1) + duration) / n
}

func (s *RollingStats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage := make(map[Strategy]int, len(s.strategyUsage))
	for strategy, count := range s.strategyUsage {
		usage[strategy] = count
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
		StrategyUsage:   usage,
		AverageDuration: s.averageDuration,
	}
}

func (s *RollingStats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalQueries = 0
	s.successful = 0
	s.failed = 0
	s.strategyUsage = nil
	s.averageDuration = 0
}

// ResetStats clears the rolling statistics.
func (o *Orchestrator) ResetStats() {
	o.stats.reset()
}
