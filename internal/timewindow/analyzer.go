// Package timewindow classifies the temporal relationship between two
// brokerage transactions. All functions are pure; the package holds no state.
package timewindow

import (
	"math"
	"time"

	"github.com/sievefin/tradesift/internal/model"
)

// Proximity buckets by elapsed time between two transactions. Only the
// tightest applicable bucket is reported.
type Proximity string

const (
	SameSecond Proximity = "same_second"
	SameMinute Proximity = "same_minute"
	SameHour   Proximity = "same_hour"
	SameDay    Proximity = "same_day"
	Distant    Proximity = "distant"
)

// Pattern flags recognizable trading shapes that change how a near-duplicate
// should be read.
type Pattern string

const (
	// RapidTrading is an opposite-direction trade in the same symbol within
	// minutes, typical of day trading rather than a duplicate email.
	RapidTrading Pattern = "rapid_trading"
	// PartialFill is a smaller same-direction fill shortly after a larger
	// one at close to the same price.
	PartialFill Pattern = "partial_fill"
	// SplitOrder is the same order executed in multiple quantities at the
	// same price within a short window.
	SplitOrder Pattern = "split_order"
)

// TxnSample carries the fields the analyzer needs from a transaction.
type TxnSample struct {
	Date     time.Time
	Symbol   string
	Kind     model.TransactionKind
	Quantity float64
	Price    float64
}

// Analysis is the classification of one transaction pair.
type Analysis struct {
	Proximity Proximity
	Patterns  []Pattern
	Risk      model.RiskLevel
	Elapsed   time.Duration
}

// HasPattern reports whether the analysis flagged the given pattern.
func (a Analysis) HasPattern(p Pattern) bool {
	for _, got := range a.Patterns {
		if got == p {
			return true
		}
	}
	return false
}

const (
	rapidTradingWindow = 5 * time.Minute
	partialFillWindow  = 2 * time.Minute
	splitOrderWindow   = 10 * time.Minute

	// partialFillPriceBand is the relative price drift still considered the
	// same underlying order.
	partialFillPriceBand = 0.005
)

// Classify analyzes candidate a against prior b. The order of arguments
// matters only for partial-fill detection, where a is the later, smaller
// fill.
func Classify(a, b TxnSample) Analysis {
	elapsed := a.Date.Sub(b.Date)
	if elapsed < 0 {
		elapsed = -elapsed
	}

	analysis := Analysis{
		Proximity: proximityFor(elapsed),
		Elapsed:   elapsed,
	}
	analysis.Patterns = detectPatterns(a, b, elapsed)
	analysis.Risk = riskFor(analysis)
	return analysis
}

func proximityFor(elapsed time.Duration) Proximity {
	switch {
	case elapsed < time.Second:
		return SameSecond
	case elapsed < time.Minute:
		return SameMinute
	case elapsed < time.Hour:
		return SameHour
	case elapsed < 24*time.Hour:
		return SameDay
	default:
		return Distant
	}
}

func detectPatterns(a, b TxnSample, elapsed time.Duration) []Pattern {
	if a.Symbol == "" || a.Symbol != b.Symbol {
		return nil
	}

	var patterns []Pattern

	if elapsed <= rapidTradingWindow && oppositeKinds(a.Kind, b.Kind) {
		patterns = append(patterns, RapidTrading)
	}

	if a.Kind == b.Kind {
		if elapsed <= partialFillWindow &&
			a.Quantity > 0 && b.Quantity > 0 && a.Quantity < b.Quantity &&
			withinRelative(a.Price, b.Price, partialFillPriceBand) {
			patterns = append(patterns, PartialFill)
		}
		if elapsed <= splitOrderWindow &&
			math.Abs(a.Price-b.Price) <= 0.01 &&
			math.Abs(a.Quantity-b.Quantity) > 0.01 {
			patterns = append(patterns, SplitOrder)
		}
	}

	return patterns
}

func oppositeKinds(a, b model.TransactionKind) bool {
	return (a == model.KindBuy && b == model.KindSell) ||
		(a == model.KindSell && b == model.KindBuy)
}

func withinRelative(a, b, band float64) bool {
	if b == 0 {
		return a == 0
	}
	return math.Abs(a-b)/math.Abs(b) <= band
}

func riskFor(a Analysis) model.RiskLevel {
	switch {
	case a.Proximity == SameSecond:
		return model.RiskCritical
	case a.HasPattern(PartialFill) && a.Proximity == SameMinute:
		return model.RiskCritical
	case a.Proximity == SameMinute, a.HasPattern(RapidTrading):
		return model.RiskHigh
	case a.Proximity == SameHour, a.HasPattern(SplitOrder):
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// TimeBonus returns the Level-3 detection score bonus for elapsed time
// between two transactions. Only the largest applicable bucket counts.
func TimeBonus(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = -elapsed
	}
	switch {
	case elapsed < time.Minute:
		return 0.3
	case elapsed < time.Hour:
		return 0.2
	case elapsed < 24*time.Hour:
		return 0.1
	default:
		return 0
	}
}
