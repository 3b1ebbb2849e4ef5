package detect

import (
	"fmt"
	"math"

	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/timewindow"
)

// Scoring constants per level. These thresholds and weights define the
// detector's behavior and are not tunable at runtime.
const (
	messageIDConfidence   = 0.95
	contentHashConfidence = 0.90

	orderOverlapWeight  = 0.7
	confOverlapWeight   = 0.6
	fingerprintBonus    = 0.5
	level2MinConfidence = 0.4

	symbolScore         = 0.3
	kindScore           = 0.2
	quantityScore       = 0.25
	priceScore          = 0.25
	fieldTolerance      = 0.01
	level3MinConfidence = 0.3
)

// level1Matches checks email identity: exact message-id equality first, then
// exact content-hash equality. At most one match per corpus entry.
func level1Matches(ident *model.Identification, prior []model.Identification) []model.DuplicateMatch {
	var matches []model.DuplicateMatch
	for i := range prior {
		p := &prior[i]
		switch {
		case ident.MessageID != "" && ident.MessageID == p.MessageID:
			matches = append(matches, model.DuplicateMatch{
				Level:                 model.LevelEmailIdentity,
				Confidence:            messageIDConfidence,
				MatchedFields:         []string{"message_id"},
				Reasons:               []string{fmt.Sprintf("identical message-id %q", ident.MessageID)},
				MatchedIdentification: p,
			})
		case ident.ContentHash != "" && ident.ContentHash == p.ContentHash:
			matches = append(matches, model.DuplicateMatch{
				Level:                 model.LevelEmailIdentity,
				Confidence:            contentHashConfidence,
				MatchedFields:         []string{"content_hash"},
				Reasons:               []string{"identical email content hash"},
				MatchedIdentification: p,
			})
		}
	}
	return matches
}

// level2Matches checks order identity via set overlap of order IDs and
// confirmation numbers, with a flat bonus for exact fingerprint equality.
func level2Matches(ident *model.Identification, prior []model.Identification) []model.DuplicateMatch {
	var matches []model.DuplicateMatch
	for i := range prior {
		p := &prior[i]

		orderRatio := overlapRatio(ident.OrderIDs, p.OrderIDs)
		confRatio := overlapRatio(ident.ConfirmationNumbers, p.ConfirmationNumbers)
		fingerprintEqual := ident.FingerprintHash != "" && ident.FingerprintHash == p.FingerprintHash

		confidence := orderOverlapWeight*orderRatio + confOverlapWeight*confRatio
		if fingerprintEqual {
			confidence += fingerprintBonus
		}
		if confidence > 1 {
			confidence = 1
		}
		if confidence < level2MinConfidence {
			continue
		}

		var fields, reasons []string
		if orderRatio > 0 {
			fields = append(fields, "order_ids")
			reasons = append(reasons, fmt.Sprintf("order-id overlap %.0f%%", orderRatio*100))
		}
		if confRatio > 0 {
			fields = append(fields, "confirmation_numbers")
			reasons = append(reasons, fmt.Sprintf("confirmation-number overlap %.0f%%", confRatio*100))
		}
		if fingerprintEqual {
			fields = append(fields, "fingerprint_hash")
			reasons = append(reasons, "identical transaction fingerprint")
		}

		matches = append(matches, model.DuplicateMatch{
			Level:                 model.LevelOrderIdentity,
			Confidence:            confidence,
			MatchedFields:         fields,
			Reasons:               reasons,
			MatchedIdentification: p,
		})
	}
	return matches
}

// level3Matches compares transaction fingerprints with time-window
// semantics. It runs against both prior identifications and prior persisted
// transactions, and reports the time-window risk bucket of the closest
// transaction match.
func level3Matches(txn *model.ParsedTransaction, ident *model.Identification, priorIdents []model.Identification, priorTxns []model.Transaction) ([]model.DuplicateMatch, *model.RiskLevel) {
	var matches []model.DuplicateMatch
	var timeRisk *model.RiskLevel
	bestRank := -1

	candidate := timewindow.TxnSample{
		Date:     txn.Date,
		Symbol:   txn.Symbol,
		Kind:     txn.Kind,
		Quantity: txn.Quantity,
		Price:    txn.Price,
	}

	for i := range priorTxns {
		p := &priorTxns[i]
		prior := timewindow.TxnSample{
			Date:     p.Date,
			Symbol:   p.Symbol,
			Kind:     p.Kind,
			Quantity: p.Quantity,
			Price:    p.Price,
		}

		confidence, fields, reasons := scoreFields(candidate, prior)
		if confidence < level3MinConfidence {
			continue
		}

		analysis := timewindow.Classify(candidate, prior)
		for _, pattern := range analysis.Patterns {
			reasons = append(reasons, fmt.Sprintf("time-window pattern: %s", pattern))
		}
		if rank := riskRank(analysis.Risk); rank > bestRank {
			bestRank = rank
			risk := analysis.Risk
			timeRisk = &risk
		}

		matches = append(matches, model.DuplicateMatch{
			Level:              model.LevelFingerprint,
			Confidence:         confidence,
			MatchedFields:      fields,
			Reasons:            reasons,
			MatchedTransaction: p,
		})
	}

	// Prior identifications carry no transaction fields, so fingerprint
	// equality stands in for full field agreement.
	for i := range priorIdents {
		p := &priorIdents[i]
		if ident.FingerprintHash == "" || ident.FingerprintHash != p.FingerprintHash {
			continue
		}
		confidence := symbolScore + kindScore + quantityScore + priceScore
		confidence += timewindow.TimeBonus(txn.Date.Sub(p.SourceDate))
		if confidence > 1 {
			confidence = 1
		}
		matches = append(matches, model.DuplicateMatch{
			Level:                 model.LevelFingerprint,
			Confidence:            confidence,
			MatchedFields:         []string{"fingerprint_hash"},
			Reasons:               []string{"identical transaction fingerprint on prior email"},
			MatchedIdentification: p,
		})
	}

	return matches, timeRisk
}

// scoreFields scores field-level agreement between two transactions plus the
// time-proximity bonus. Only the largest applicable time bucket counts.
func scoreFields(a, b timewindow.TxnSample) (float64, []string, []string) {
	var confidence float64
	var fields, reasons []string

	if a.Symbol != "" && a.Symbol == b.Symbol {
		confidence += symbolScore
		fields = append(fields, "symbol")
		reasons = append(reasons, fmt.Sprintf("same symbol %s", a.Symbol))
	}
	if a.Kind != "" && a.Kind == b.Kind {
		confidence += kindScore
		fields = append(fields, "kind")
		reasons = append(reasons, fmt.Sprintf("same transaction kind %s", a.Kind))
	}
	if math.Abs(a.Quantity-b.Quantity) <= fieldTolerance {
		confidence += quantityScore
		fields = append(fields, "quantity")
		reasons = append(reasons, fmt.Sprintf("quantity within tolerance (%.2f vs %.2f)", a.Quantity, b.Quantity))
	}
	if math.Abs(a.Price-b.Price) <= fieldTolerance {
		confidence += priceScore
		fields = append(fields, "price")
		reasons = append(reasons, fmt.Sprintf("price within tolerance (%.2f vs %.2f)", a.Price, b.Price))
	}

	if bonus := timewindow.TimeBonus(a.Date.Sub(b.Date)); bonus > 0 {
		confidence += bonus
		fields = append(fields, "date")
		reasons = append(reasons, fmt.Sprintf("time proximity bonus %.1f", bonus))
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence, fields, reasons
}

func riskRank(r model.RiskLevel) int {
	switch r {
	case model.RiskCritical:
		return 3
	case model.RiskHigh:
		return 2
	case model.RiskMedium:
		return 1
	default:
		return 0
	}
}

// overlapRatio computes set overlap as shared elements over the larger set.
// Two empty sets overlap not at all.
func overlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	shared := 0
	for _, s := range b {
		if _, ok := set[s]; ok {
			shared++
		}
	}
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return float64(shared) / float64(larger)
}
