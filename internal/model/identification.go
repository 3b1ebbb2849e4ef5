package model

import "time"

// Identification holds the stable identifiers derived from one
// trade-confirmation email. Immutable once built by the extractor.
type Identification struct {
	SourceDate          time.Time
	MessageID           string
	ContentHash         string
	ShortHash           string
	FingerprintHash     string
	SourceSender        string
	SourceSubject       string
	ExtractionMethod    string
	Scope               string
	OrderIDs            []string
	ConfirmationNumbers []string
	TransactionID       string
}

// HasMessageID reports whether a Message-ID header was found in the source
// email.
func (id *Identification) HasMessageID() bool {
	return id.MessageID != ""
}

// ValidationResult separates hard failures from signals that merely lower
// downstream confidence. Warnings never block processing.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the identification can be used for detection.
func (v ValidationResult) Valid() bool {
	return len(v.Errors) == 0
}
