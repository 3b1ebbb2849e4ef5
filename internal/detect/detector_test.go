package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/service"
)

// stubCorpus serves fixed prior records or a fixed error.
type stubCorpus struct {
	idents []model.Identification
	txns   []model.Transaction
	err    error
}

func (s *stubCorpus) FindPriorIdentifications(_ context.Context, _ service.CorpusScope) ([]model.Identification, error) {
	return s.idents, s.err
}

func (s *stubCorpus) FindPriorTransactions(_ context.Context, _ service.CorpusScope) ([]model.Transaction, error) {
	return s.txns, s.err
}

const testScope = "noreply@broker.example.com/individual"

func parsedBuy(date time.Time, qty, price float64) *model.ParsedTransaction {
	return &model.ParsedTransaction{
		Date:        date,
		Symbol:      "AAPL",
		Kind:        model.KindBuy,
		Quantity:    qty,
		Price:       price,
		TotalAmount: qty * price,
		AccountType: "individual",
		Currency:    "USD",
		FromEmail:   "noreply@broker.example.com",
	}
}

func identWith(messageID, contentHash, fingerprint string) *model.Identification {
	return &model.Identification{
		MessageID:       messageID,
		ContentHash:     contentHash,
		ShortHash:       first16(contentHash),
		FingerprintHash: fingerprint,
		SourceSender:    "noreply@broker.example.com",
		SourceDate:      time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC),
		Scope:           testScope,
	}
}

func first16(s string) string {
	if len(s) < 16 {
		return s
	}
	return s[:16]
}

func TestDetectNoPriorEvidence(t *testing.T) {
	detector := New(&stubCorpus{})
	txn := parsedBuy(time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC), 100, 150.50)
	ident := identWith("msg-1@broker", "hash-a", "fp-a")

	result := detector.Detect(context.Background(), txn, ident, testScope)

	assert.Zero(t, result.Confidence)
	assert.Equal(t, model.RecommendAccept, result.Recommendation)
	assert.Equal(t, model.RiskLow, result.Risk)
	assert.False(t, result.IsDuplicate())
	assert.Empty(t, result.Matches)
	assert.Equal(t, "no duplicate evidence found", result.Summary)
}

func TestDetectCorpusFailureSafeDefault(t *testing.T) {
	detector := New(&stubCorpus{err: errors.New("database locked")})
	txn := parsedBuy(time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC), 100, 150.50)
	ident := identWith("msg-1@broker", "hash-a", "fp-a")

	result := detector.Detect(context.Background(), txn, ident, testScope)

	assert.Zero(t, result.Confidence)
	assert.Equal(t, model.RecommendAccept, result.Recommendation)
	assert.Contains(t, result.Summary, "detection degraded")
	assert.Contains(t, result.Summary, "database locked")
	assert.False(t, result.ProcessedAt.IsZero())
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))
}

func TestDetectIdenticalMessageID(t *testing.T) {
	prior := identWith("msg-1@broker", "hash-other", "fp-other")
	detector := New(&stubCorpus{idents: []model.Identification{*prior}})

	txn := parsedBuy(time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC), 100, 150.50)
	ident := identWith("msg-1@broker", "hash-a", "fp-a")

	result := detector.Detect(context.Background(), txn, ident, testScope)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, model.LevelEmailIdentity, result.Matches[0].Level)
	assert.InDelta(t, 0.95, result.Matches[0].Confidence, 1e-9)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
	assert.Equal(t, model.RecommendReject, result.Recommendation)
	assert.Equal(t, model.RiskCritical, result.Risk)
	assert.True(t, result.IsDuplicate())
}

func TestDetectResubmittedEmail(t *testing.T) {
	// The same email a second time: identical content hash and fingerprint,
	// no message-id on either copy.
	prior := identWith("", "hash-a", "fp-a")
	prior.OrderIDs = []string{"ORD-12345"}
	prior.ConfirmationNumbers = []string{"CNF-77777"}

	detector := New(&stubCorpus{idents: []model.Identification{*prior}})

	txn := parsedBuy(time.Date(2025, 6, 17, 10, 35, 0, 0, time.UTC), 100, 150.50)
	ident := identWith("", "hash-a", "fp-a")
	ident.OrderIDs = []string{"ORD-12345"}
	ident.ConfirmationNumbers = []string{"CNF-77777"}

	result := detector.Detect(context.Background(), txn, ident, testScope)

	assert.GreaterOrEqual(t, result.Confidence, 0.9)
	assert.Equal(t, model.RecommendReject, result.Recommendation)
	assert.True(t, result.IsDuplicate())

	levels := make(map[model.DetectionLevel]bool)
	for _, m := range result.Matches {
		levels[m.Level] = true
	}
	assert.True(t, levels[model.LevelEmailIdentity])
	assert.True(t, levels[model.LevelOrderIdentity])
	assert.True(t, levels[model.LevelFingerprint])
}

func TestDetectNearDuplicateFill(t *testing.T) {
	// Two confirmations for BUY 100 AAPL thirty seconds apart at slightly
	// different prices. No shared identifiers, so only field agreement plus
	// time proximity drives the verdict.
	priorDate := time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC)
	priorTxn := model.FromParsed(parsedBuy(priorDate, 100, 150.50), "txn-1", testScope)

	detector := New(&stubCorpus{txns: []model.Transaction{priorTxn}})

	txn := parsedBuy(priorDate.Add(30*time.Second), 100, 150.52)
	ident := identWith("msg-2@broker", "hash-b", "fp-b")

	result := detector.Detect(context.Background(), txn, ident, testScope)

	require.Len(t, result.Matches, 1)
	match := result.Matches[0]
	assert.Equal(t, model.LevelFingerprint, match.Level)
	assert.Contains(t, match.MatchedFields, "symbol")
	assert.Contains(t, match.MatchedFields, "kind")
	assert.Contains(t, match.MatchedFields, "quantity")
	assert.Contains(t, match.MatchedFields, "date")
	assert.NotContains(t, match.MatchedFields, "price")

	assert.GreaterOrEqual(t, result.Confidence, 0.6)
	assert.NotEqual(t, model.RecommendAccept, result.Recommendation)

	require.NotNil(t, result.TimeRisk)
	assert.Equal(t, model.RiskHigh, *result.TimeRisk)
}

func TestDetectDistantSameFieldsStaysLow(t *testing.T) {
	// A week of separation earns no time bonus and the lowest time-window
	// risk, even when every field agrees.
	priorDate := time.Date(2025, 6, 10, 10, 30, 0, 0, time.UTC)
	priorTxn := model.FromParsed(parsedBuy(priorDate, 100, 150.50), "txn-1", testScope)

	detector := New(&stubCorpus{txns: []model.Transaction{priorTxn}})

	txn := parsedBuy(priorDate.AddDate(0, 0, 7), 100, 150.50)
	ident := identWith("msg-2@broker", "hash-b", "fp-b")

	result := detector.Detect(context.Background(), txn, ident, testScope)

	require.Len(t, result.Matches, 1)
	assert.InDelta(t, 1.0, result.Matches[0].Confidence, 1e-9)
	assert.NotContains(t, result.Matches[0].MatchedFields, "date")
	require.NotNil(t, result.TimeRisk)
	assert.Equal(t, model.RiskLow, *result.TimeRisk)
}

func TestDetectMatchesSortedByConfidence(t *testing.T) {
	priorIdent := identWith("msg-1@broker", "hash-other", "fp-other")
	priorDate := time.Date(2025, 6, 17, 10, 29, 30, 0, time.UTC)
	priorTxn := model.FromParsed(parsedBuy(priorDate, 50, 99.10), "txn-1", testScope)

	detector := New(&stubCorpus{
		idents: []model.Identification{*priorIdent},
		txns:   []model.Transaction{priorTxn},
	})

	txn := parsedBuy(time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC), 100, 150.50)
	ident := identWith("msg-1@broker", "hash-a", "fp-a")

	result := detector.Detect(context.Background(), txn, ident, testScope)

	require.GreaterOrEqual(t, len(result.Matches), 2)
	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t, result.Matches[i-1].Confidence, result.Matches[i].Confidence)
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		matches []model.DuplicateMatch
		want    float64
	}{
		{
			name: "no matches",
			want: 0,
		},
		{
			name: "single match is its confidence",
			matches: []model.DuplicateMatch{
				{Level: model.LevelEmailIdentity, Confidence: 0.95},
			},
			want: 0.95,
		},
		{
			name: "weighted mean across levels",
			matches: []model.DuplicateMatch{
				{Level: model.LevelEmailIdentity, Confidence: 0.9},
				{Level: model.LevelFingerprint, Confidence: 0.3},
			},
			// (0.9*0.9 + 0.3*0.6) / (0.9 + 0.6)
			want: 0.66,
		},
		{
			name: "level weights order evidence strength",
			matches: []model.DuplicateMatch{
				{Level: model.LevelOrderIdentity, Confidence: 1.0},
				{Level: model.LevelFingerprint, Confidence: 0.5},
			},
			// (1.0*0.8 + 0.5*0.6) / (0.8 + 0.6)
			want: 0.7857142857,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, aggregate(tt.matches), 1e-9)
		})
	}
}

func TestNewWithConfigDefaults(t *testing.T) {
	d := NewWithConfig(&stubCorpus{}, Config{})
	assert.Equal(t, DefaultConfig().Lookback, d.config.Lookback)
	assert.Equal(t, DefaultConfig().MaxCorpusRows, d.config.MaxCorpusRows)

	custom := NewWithConfig(&stubCorpus{}, Config{Lookback: time.Hour, MaxCorpusRows: 10})
	assert.Equal(t, time.Hour, custom.config.Lookback)
	assert.Equal(t, 10, custom.config.MaxCorpusRows)
}
