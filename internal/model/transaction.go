// Package model defines the core domain types for the tradesift pipeline.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// TransactionKind identifies what kind of brokerage event a confirmation
// email describes.
type TransactionKind string

const (
	// KindBuy is a purchase fill.
	KindBuy TransactionKind = "buy"
	// KindSell is a sale fill.
	KindSell TransactionKind = "sell"
	// KindDividend is a dividend payment.
	KindDividend TransactionKind = "dividend"
	// KindOptionExpiry is an option expiration notice.
	KindOptionExpiry TransactionKind = "option_expiry"
)

// ParsedTransaction is the structured record the external email parser
// produces for a single trade-confirmation email. The pipeline treats it as
// immutable input and never writes to it.
type ParsedTransaction struct {
	Date        time.Time
	Symbol      string
	Kind        TransactionKind
	AccountType string
	Currency    string
	Subject     string
	FromEmail   string
	RawContent  string
	Quantity    float64
	Price       float64
	TotalAmount float64
}

// Validate reports the required fields a ParsedTransaction is missing.
// A record with any missing required field must not enter detection.
func (p *ParsedTransaction) Validate() []string {
	var missing []string
	if strings.TrimSpace(p.Symbol) == "" {
		missing = append(missing, "symbol")
	}
	if p.Kind == "" {
		missing = append(missing, "kind")
	}
	if p.Date.IsZero() {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(p.FromEmail) == "" {
		missing = append(missing, "fromEmail")
	}
	return missing
}

// Transaction is a persisted brokerage transaction, created once an email
// clears duplicate detection (or a reviewer approves it).
type Transaction struct {
	Date        time.Time
	ID          string
	Symbol      string
	AccountType string
	Currency    string
	Scope       string
	Hash        string
	Kind        TransactionKind
	Quantity    float64
	Price       float64
	TotalAmount float64
}

// GenerateHash creates a stable hash for coarse duplicate checks at the
// storage layer.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%.4f:%.4f:%s",
		t.Date.UTC().Format(time.RFC3339),
		t.Symbol,
		t.Kind,
		t.Quantity,
		t.Price,
		t.Scope)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// FromParsed builds a persistable Transaction from a parsed email record.
func FromParsed(p *ParsedTransaction, id, scope string) Transaction {
	txn := Transaction{
		ID:          id,
		Date:        p.Date,
		Symbol:      p.Symbol,
		Kind:        p.Kind,
		Quantity:    p.Quantity,
		Price:       p.Price,
		TotalAmount: p.TotalAmount,
		AccountType: p.AccountType,
		Currency:    p.Currency,
		Scope:       scope,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}
