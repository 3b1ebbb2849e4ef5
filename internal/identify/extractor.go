// Package identify derives stable identifiers from parsed brokerage emails.
// Extraction is deterministic and side-effect-free: missing signals are
// omitted rather than reported as errors, and downstream confidence absorbs
// the gap.
package identify

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sievefin/tradesift/internal/model"
)

// ExtractInput carries the raw material for one email. TextBody and
// RawHeaders are optional.
type ExtractInput struct {
	Date       time.Time
	Subject    string
	Sender     string
	HTMLBody   string
	TextBody   string
	RawHeaders string
	Scope      string
}

// Extract builds an Identification from one email. It never fails; signals
// that cannot be found are left empty.
func Extract(in ExtractInput) model.Identification {
	body := in.TextBody
	if body == "" {
		body = StripHTML(in.HTMLBody)
	}

	normSubject := NormalizeText(in.Subject)
	normBody := NormalizeText(body)
	sender := strings.ToLower(strings.TrimSpace(in.Sender))

	contentHash := hashContent(normSubject, sender, normBody)

	// Identifier extraction runs over the raw subject and body so that
	// casing survives candidate validation.
	searchText := in.Subject + "\n" + body
	orderIDs := extractCandidates(searchText, orderIDPatterns)
	confirmations := extractCandidates(searchText, confirmationPatterns)

	id := model.Identification{
		MessageID:           extractMessageID(in.RawHeaders),
		ContentHash:         contentHash,
		ShortHash:           contentHash[:16],
		OrderIDs:            orderIDs,
		ConfirmationNumbers: confirmations,
		SourceSender:        sender,
		SourceSubject:       in.Subject,
		SourceDate:          in.Date,
		Scope:               in.Scope,
	}
	id.FingerprintHash = fingerprint(sender, orderIDs, confirmations, searchText)
	id.ExtractionMethod = methodTag(&id)
	return id
}

// Validate separates hard failures from soft gaps. Warnings lower confidence
// downstream but never block processing.
func Validate(id *model.Identification) model.ValidationResult {
	var result model.ValidationResult

	if id.ContentHash == "" {
		result.Errors = append(result.Errors, "missing content hash")
	}
	if id.FingerprintHash == "" {
		result.Errors = append(result.Errors, "missing fingerprint hash")
	}
	if id.SourceSender == "" {
		result.Errors = append(result.Errors, "missing sender")
	}

	if id.MessageID == "" {
		result.Warnings = append(result.Warnings, "no message-id header")
	}
	if len(id.OrderIDs) == 0 {
		result.Warnings = append(result.Warnings, "no order ids extracted")
	}
	if len(id.ConfirmationNumbers) == 0 {
		result.Warnings = append(result.Warnings, "no confirmation numbers extracted")
	}
	return result
}

func hashContent(subject, sender, body string) string {
	h := sha256.New()
	h.Write([]byte(subject))
	h.Write([]byte("|"))
	h.Write([]byte(sender))
	h.Write([]byte("|"))
	h.Write([]byte(body))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// fingerprint hashes sender plus every sorted identifying field so that two
// emails describing the same fill in different wording still collide.
func fingerprint(sender string, orderIDs, confirmations []string, searchText string) string {
	parts := []string{sender}
	parts = append(parts, sortedCopy(orderIDs)...)
	parts = append(parts, sortedCopy(confirmations)...)
	parts = append(parts, extractSymbols(searchText)...)
	parts = append(parts, extractAll(quantityPattern, searchText)...)
	parts = append(parts, extractAll(pricePattern, searchText)...)
	parts = append(parts, extractAll(datePattern, searchText)...)

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func extractMessageID(rawHeaders string) string {
	if rawHeaders == "" {
		return ""
	}
	m := messageIDHeader.FindStringSubmatch(rawHeaders)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractCandidates applies every pattern rule and keeps candidates that
// survive shape validation. Results are deduplicated and sorted.
func extractCandidates(text string, patterns []idPattern) []string {
	seen := make(map[string]struct{})
	for _, p := range patterns {
		for _, m := range p.regex.FindAllStringSubmatch(text, -1) {
			candidate := m[len(m)-1]
			candidate = strings.ToUpper(strings.TrimSpace(candidate))
			if !validCandidate(candidate) {
				continue
			}
			seen[candidate] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// validCandidate applies the length and shape rules for identifier
// candidates. Rejections are silent.
func validCandidate(c string) bool {
	if len(c) < 5 || len(c) > 24 {
		return false
	}
	digits := 0
	uniform := true
	for i := 0; i < len(c); i++ {
		if c[i] >= '0' && c[i] <= '9' {
			digits++
		}
		if c[i] != c[0] {
			uniform = false
		}
	}
	if digits == 0 || uniform {
		return false
	}
	// Pure numeric IDs must look like brokerage reference numbers.
	if digits == len(c) && (len(c) < 10 || len(c) > 15) {
		return false
	}
	return true
}

func extractSymbols(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range symbolPattern.FindAllString(text, -1) {
		if _, stop := symbolStopwords[m]; stop {
			continue
		}
		seen[m] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func extractAll(re *regexp.Regexp, text string) []string {
	seen := make(map[string]struct{})
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		seen[m[len(m)-1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func methodTag(id *model.Identification) string {
	var parts []string
	if id.MessageID != "" {
		parts = append(parts, "message-id")
	}
	if len(id.OrderIDs) > 0 {
		parts = append(parts, "orders")
	}
	if len(id.ConfirmationNumbers) > 0 {
		parts = append(parts, "confirmations")
	}
	if len(parts) == 0 {
		return "content-only"
	}
	return strings.Join(parts, "+")
}
