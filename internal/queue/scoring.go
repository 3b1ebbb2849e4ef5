package queue

import (
	"fmt"

	"github.com/sievefin/tradesift/internal/model"
)

// Priority formula weights. Priority is a pure function of the detection
// result; recomputing it on identical input yields identical output.
const (
	confidenceWeight = 0.4

	urgentThreshold = 0.8
	highThreshold   = 0.6
	mediumThreshold = 0.4
)

// riskConstant is the per-risk-level contribution to priority.
func riskConstant(r model.RiskLevel) float64 {
	switch r {
	case model.RiskCritical:
		return 0.4
	case model.RiskHigh:
		return 0.3
	case model.RiskMedium:
		return 0.2
	default:
		return 0.1
	}
}

// timePriorityConstant is the per-time-risk contribution to priority.
func timePriorityConstant(r model.RiskLevel) float64 {
	switch r {
	case model.RiskCritical:
		return 0.2
	case model.RiskHigh:
		return 0.15
	case model.RiskMedium:
		return 0.1
	default:
		return 0.05
	}
}

// timeRiskConstant is the per-time-risk contribution to the risk score.
func timeRiskConstant(r model.RiskLevel) float64 {
	switch r {
	case model.RiskCritical:
		return 0.4
	case model.RiskHigh:
		return 0.3
	case model.RiskMedium:
		return 0.2
	default:
		return 0.1
	}
}

// priorityFor maps detection evidence to a review priority.
func priorityFor(confidence float64, risk model.RiskLevel, timeRisk *model.RiskLevel) model.ReviewPriority {
	score := confidenceWeight*confidence + riskConstant(risk)
	if timeRisk != nil {
		score += timePriorityConstant(*timeRisk)
	}

	switch {
	case score >= urgentThreshold:
		return model.PriorityUrgent
	case score >= highThreshold:
		return model.PriorityHigh
	case score >= mediumThreshold:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// riskScoreFor computes the item risk score in [0,1]. Without time-window
// data only confidence contributes.
func riskScoreFor(confidence float64, timeRisk *model.RiskLevel) float64 {
	score := 0.6 * confidence
	if timeRisk != nil {
		score += 0.4 * timeRiskConstant(*timeRisk)
	}
	if score > 1 {
		score = 1
	}
	return score
}

// tagsFor derives descriptive tags for filtering and dashboards. Tags never
// drive queue logic.
func tagsFor(txn *model.ParsedTransaction, ident *model.Identification, detection *model.DetectionResult) []string {
	tags := []string{
		fmt.Sprintf("symbol:%s", txn.Symbol),
		fmt.Sprintf("kind:%s", txn.Kind),
		fmt.Sprintf("risk:%s", detection.Risk),
	}
	if detection.TimeRisk != nil {
		tags = append(tags, fmt.Sprintf("time-risk:%s", *detection.TimeRisk))
	}
	if ident.ExtractionMethod != "" {
		tags = append(tags, fmt.Sprintf("method:%s", ident.ExtractionMethod))
	}
	if len(ident.OrderIDs) == 0 {
		tags = append(tags, "no-order-ids")
	}
	return tags
}
