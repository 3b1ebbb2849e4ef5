package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelWeights(t *testing.T) {
	assert.InDelta(t, 0.9, LevelEmailIdentity.Weight(), 1e-9)
	assert.InDelta(t, 0.8, LevelOrderIdentity.Weight(), 1e-9)
	assert.InDelta(t, 0.6, LevelFingerprint.Weight(), 1e-9)
	assert.Zero(t, DetectionLevel(0).Weight())
}

func TestRiskForConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		want       RiskLevel
	}{
		{confidence: 0, want: RiskLow},
		{confidence: 0.39, want: RiskLow},
		{confidence: 0.4, want: RiskMedium},
		{confidence: 0.69, want: RiskMedium},
		{confidence: 0.7, want: RiskHigh},
		{confidence: 0.89, want: RiskHigh},
		{confidence: 0.9, want: RiskCritical},
		{confidence: 1, want: RiskCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskForConfidence(tt.confidence), "confidence %.2f", tt.confidence)
	}
}

func TestRecommendationForConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Recommendation
	}{
		{confidence: 0, want: RecommendAccept},
		{confidence: 0.59, want: RecommendAccept},
		{confidence: 0.6, want: RecommendReview},
		{confidence: 0.89, want: RecommendReview},
		{confidence: 0.9, want: RecommendReject},
		{confidence: 1, want: RecommendReject},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendationForConfidence(tt.confidence), "confidence %.2f", tt.confidence)
	}

	// Monotonic: a higher confidence never softens the verdict.
	rank := map[Recommendation]int{RecommendAccept: 0, RecommendReview: 1, RecommendReject: 2}
	prev := RecommendAccept
	for c := 0.0; c <= 1.0; c += 0.01 {
		got := RecommendationForConfidence(c)
		assert.GreaterOrEqual(t, rank[got], rank[prev], "confidence %.2f", c)
		prev = got
	}
}

func TestIsDuplicate(t *testing.T) {
	reject := DetectionResult{Recommendation: RecommendReject}
	review := DetectionResult{Recommendation: RecommendReview}
	accept := DetectionResult{Recommendation: RecommendAccept}

	assert.True(t, reject.IsDuplicate())
	assert.False(t, review.IsDuplicate())
	assert.False(t, accept.IsDuplicate())
}
