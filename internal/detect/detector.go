// Package detect decides whether a parsed brokerage email duplicates a
// previously recorded transaction. Three independent detection levels each
// produce weighted matches against the corpus; their evidence aggregates
// into one confidence and a final verdict.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/service"
)

// Config bounds how far the corpus search reaches.
type Config struct {
	// Lookback limits how old corpus entries may be.
	Lookback time.Duration
	// MaxCorpusRows caps the rows a single lookup may return.
	MaxCorpusRows int
}

// DefaultConfig returns the default detection configuration.
func DefaultConfig() Config {
	return Config{
		Lookback:      90 * 24 * time.Hour,
		MaxCorpusRows: 500,
	}
}

// Detector runs duplicate detection against a corpus provider. It is
// stateless apart from configuration and safe for concurrent use.
type Detector struct {
	corpus service.Corpus
	config Config
}

// New creates a detector with the default configuration.
func New(corpus service.Corpus) *Detector {
	return NewWithConfig(corpus, DefaultConfig())
}

// NewWithConfig creates a detector with custom corpus bounds.
func NewWithConfig(corpus service.Corpus, config Config) *Detector {
	if config.Lookback <= 0 {
		config.Lookback = DefaultConfig().Lookback
	}
	if config.MaxCorpusRows <= 0 {
		config.MaxCorpusRows = DefaultConfig().MaxCorpusRows
	}
	return &Detector{corpus: corpus, config: config}
}

// Detect compares one parsed email against the corpus for the given scope.
// It never returns an error: corpus failures degrade to a safe default of
// confidence 0 / accept so a storage outage cannot block ingestion. The
// processing duration is recorded on every path.
func (d *Detector) Detect(ctx context.Context, txn *model.ParsedTransaction, ident *model.Identification, scope string) model.DetectionResult {
	start := time.Now()

	corpusScope := service.CorpusScope{
		Scope: scope,
		Since: start.Add(-d.config.Lookback),
		Limit: d.config.MaxCorpusRows,
	}

	priorIdents, err := d.corpus.FindPriorIdentifications(ctx, corpusScope)
	if err != nil {
		return d.safeDefault(start, fmt.Errorf("prior identifications: %w", err))
	}
	priorTxns, err := d.corpus.FindPriorTransactions(ctx, corpusScope)
	if err != nil {
		return d.safeDefault(start, fmt.Errorf("prior transactions: %w", err))
	}

	var matches []model.DuplicateMatch
	matches = append(matches, level1Matches(ident, priorIdents)...)
	matches = append(matches, level2Matches(ident, priorIdents)...)

	l3, timeRisk := level3Matches(txn, ident, priorIdents, priorTxns)
	matches = append(matches, l3...)
	sortMatches(matches)

	confidence := aggregate(matches)
	result := model.DetectionResult{
		Confidence:     confidence,
		Risk:           model.RiskForConfidence(confidence),
		Recommendation: model.RecommendationForConfidence(confidence),
		Matches:        matches,
		TimeRisk:       timeRisk,
		Summary:        summarize(matches, confidence),
		ProcessedAt:    start,
		Duration:       time.Since(start),
	}

	slog.Debug("Detection complete",
		"scope", scope,
		"matches", len(matches),
		"confidence", confidence,
		"recommendation", result.Recommendation)

	return result
}

// safeDefault is the guaranteed result when the corpus cannot be read. The
// bias is deliberate: never block ingestion on infrastructure failure.
func (d *Detector) safeDefault(start time.Time, err error) model.DetectionResult {
	slog.Warn("Corpus lookup failed, returning safe default", "error", err)
	return model.DetectionResult{
		Confidence:     0,
		Risk:           model.RiskLow,
		Recommendation: model.RecommendAccept,
		Summary:        fmt.Sprintf("detection degraded: %v", err),
		ProcessedAt:    start,
		Duration:       time.Since(start),
	}
}

// aggregate computes the weighted mean of match confidences over the levels
// that produced at least one match. Zero matches means confidence 0.
func aggregate(matches []model.DuplicateMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	var weighted, total float64
	for _, m := range matches {
		w := m.Level.Weight()
		weighted += m.Confidence * w
		total += w
	}
	if total == 0 {
		return 0
	}
	confidence := weighted / total
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func summarize(matches []model.DuplicateMatch, confidence float64) string {
	if len(matches) == 0 {
		return "no duplicate evidence found"
	}

	best := matches[0]
	levels := make(map[model.DetectionLevel]struct{})
	for _, m := range matches {
		levels[m.Level] = struct{}{}
		if m.Confidence > best.Confidence {
			best = m
		}
	}

	reason := ""
	if len(best.Reasons) > 0 {
		reason = ": " + best.Reasons[0]
	}
	return fmt.Sprintf("%d match(es) across %d level(s), aggregated confidence %.2f; strongest level %d (%.2f)%s",
		len(matches), len(levels), confidence, best.Level, best.Confidence, reason)
}

// sortMatches orders matches by confidence descending for stable output.
func sortMatches(matches []model.DuplicateMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
}
