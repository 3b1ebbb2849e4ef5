package model

import "time"

// DetectionLevel identifies one of the three independent duplicate-detection
// strategies.
type DetectionLevel int

const (
	// LevelEmailIdentity matches on message-id or content hash.
	LevelEmailIdentity DetectionLevel = 1
	// LevelOrderIdentity matches on order and confirmation number overlap.
	LevelOrderIdentity DetectionLevel = 2
	// LevelFingerprint matches on transaction fields plus time proximity.
	LevelFingerprint DetectionLevel = 3
)

// Weight returns the fixed aggregation weight for a detection level.
func (l DetectionLevel) Weight() float64 {
	switch l {
	case LevelEmailIdentity:
		return 0.9
	case LevelOrderIdentity:
		return 0.8
	case LevelFingerprint:
		return 0.6
	default:
		return 0
	}
}

// RiskLevel classifies how likely an email is to be a duplicate.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Recommendation is the detector's final verdict for an email.
type Recommendation string

const (
	// RecommendAccept means create the transaction normally.
	RecommendAccept Recommendation = "accept"
	// RecommendReview means route the email to the review queue.
	RecommendReview Recommendation = "review"
	// RecommendReject means treat as a confirmed duplicate and drop it.
	RecommendReject Recommendation = "reject"
)

// RiskForConfidence maps an aggregated confidence to a risk level.
func RiskForConfidence(confidence float64) RiskLevel {
	switch {
	case confidence >= 0.9:
		return RiskCritical
	case confidence >= 0.7:
		return RiskHigh
	case confidence >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RecommendationForConfidence maps an aggregated confidence to a verdict.
// It is the only path from confidence to recommendation; the mapping is
// monotonic in confidence.
func RecommendationForConfidence(confidence float64) Recommendation {
	switch {
	case confidence >= 0.9:
		return RecommendReject
	case confidence >= 0.6:
		return RecommendReview
	default:
		return RecommendAccept
	}
}

// DuplicateMatch is one piece of evidence produced by a detection level.
// At most one of MatchedIdentification and MatchedTransaction is set.
type DuplicateMatch struct {
	MatchedIdentification *Identification
	MatchedTransaction    *Transaction
	Level                 DetectionLevel
	Confidence            float64
	MatchedFields         []string
	Reasons               []string
}

// DetectionResult aggregates all matches for one email into a single
// actionable verdict.
type DetectionResult struct {
	ProcessedAt time.Time
	// TimeRisk is the time-window risk bucket of the closest Level-3 match,
	// when one exists.
	TimeRisk       *RiskLevel
	Recommendation Recommendation
	Risk           RiskLevel
	Summary        string
	Matches        []DuplicateMatch
	Confidence     float64
	Duration       time.Duration
}

// IsDuplicate reports whether the detector is confident enough to drop the
// email outright.
func (r *DetectionResult) IsDuplicate() bool {
	return r.Recommendation == RecommendReject
}
