// Package service defines the contracts between the pipeline components and
// their collaborators.
package service

import (
	"context"
	"time"

	"github.com/sievefin/tradesift/internal/model"
)

// CorpusScope bounds a corpus lookup. Detection never runs an open-ended
// scan: every lookup carries a scope, a lookback window, and a row cap.
type CorpusScope struct {
	Since time.Time
	Scope string
	Limit int
}

// Corpus is the read side of the persistence layer the duplicate detector
// compares against. Implementations must bound result size to the scope's
// limit.
type Corpus interface {
	FindPriorIdentifications(ctx context.Context, scope CorpusScope) ([]model.Identification, error)
	FindPriorTransactions(ctx context.Context, scope CorpusScope) ([]model.Transaction, error)
}

// Storage is the full persistence contract.
type Storage interface {
	Corpus

	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionCount(ctx context.Context, scope string) (int, error)

	SaveIdentification(ctx context.Context, id *model.Identification) error
	GetIdentificationByContentHash(ctx context.Context, contentHash string) (*model.Identification, error)
	GetIdentificationCount(ctx context.Context, scope string) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Notifier receives queue events worth surfacing outside the process.
// Implementations must be safe for concurrent use and must not block.
type Notifier interface {
	UrgentAdmission(item *model.ReviewQueueItem)
	Escalated(item *model.ReviewQueueItem)
}

// RetryOptions configures retry behavior for storage operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
