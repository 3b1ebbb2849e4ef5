package queue

import (
	"time"

	"github.com/sievefin/tradesift/internal/model"
)

// Stats is a read-only snapshot of queue state for dashboards.
type Stats struct {
	OldestPending    *time.Time
	ByStatus         map[model.ReviewStatus]int
	ByPriority       map[model.ReviewPriority]int
	ByEscalation     map[int]int
	Size             int
	Capacity         int
	AvgReviewLatency time.Duration
	HealthScore      float64
}

// Health score penalties.
const (
	sizePenaltyMax      = 50.0
	stalePenaltyMax     = 30.0
	escalatedPenaltyMax = 20.0
)

// Stats computes queue statistics under a consistent snapshot.
func (q *ReviewQueue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	now := q.now()
	stats := Stats{
		Size:         len(q.items),
		Capacity:     q.config.Capacity,
		ByStatus:     make(map[model.ReviewStatus]int),
		ByPriority:   make(map[model.ReviewPriority]int),
		ByEscalation: make(map[int]int),
	}

	var latencySum time.Duration
	latencyCount := 0
	stalePending := 0
	pendingTotal := 0
	escalated := 0

	for _, item := range q.items {
		stats.ByStatus[item.Status]++
		stats.ByPriority[item.Priority]++
		stats.ByEscalation[item.EscalationLevel]++

		if item.EscalationLevel > 0 {
			escalated++
		}

		if item.Status == model.StatusPending {
			pendingTotal++
			if stats.OldestPending == nil || item.QueuedAt.Before(*stats.OldestPending) {
				queuedAt := item.QueuedAt
				stats.OldestPending = &queuedAt
			}
			if now.Sub(item.QueuedAt) >= q.config.EscalationAge {
				stalePending++
			}
		}

		if item.Review.DecidedAt != nil {
			latencySum += item.Review.DecidedAt.Sub(item.QueuedAt)
			latencyCount++
		}
	}

	if latencyCount > 0 {
		stats.AvgReviewLatency = latencySum / time.Duration(latencyCount)
	}
	stats.HealthScore = healthScore(len(q.items), q.config.Capacity, stalePending, pendingTotal, escalated)
	return stats
}

// healthScore grades queue health in [0,100]: full marks minus penalties for
// size pressure, stale pending items, and escalated items.
func healthScore(size, capacity, stalePending, pendingTotal, escalated int) float64 {
	score := 100.0

	if capacity > 0 {
		score -= sizePenaltyMax * float64(size) / float64(capacity)
	}
	if pendingTotal > 0 {
		score -= stalePenaltyMax * float64(stalePending) / float64(pendingTotal)
	}
	if size > 0 {
		score -= escalatedPenaltyMax * float64(escalated) / float64(size)
	}

	if score < 0 {
		score = 0
	}
	return score
}
