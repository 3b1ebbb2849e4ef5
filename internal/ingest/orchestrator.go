// Package ingest drives parsed brokerage emails through the pipeline:
// identification extraction, duplicate detection, persistence, and
// conditional admission to the review queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sievefin/tradesift/internal/common"
	"github.com/sievefin/tradesift/internal/detect"
	"github.com/sievefin/tradesift/internal/identify"
	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/queue"
	"github.com/sievefin/tradesift/internal/service"
	"github.com/sievefin/tradesift/internal/storage"
)

// Message is one fetched email with its parsed transaction. The parser and
// mailbox poller live outside this module; ingest starts where they end.
type Message struct {
	Parsed     model.ParsedTransaction
	TextBody   string
	RawHeaders string
}

// MessageResult reports what happened to one message.
type MessageResult struct {
	Err            error
	QueueItemID    string
	TransactionID  string
	Recommendation model.Recommendation
	Warnings       []string
	Index          int
}

// BatchResult aggregates one batch run.
type BatchResult struct {
	Results  []MessageResult
	Accepted int
	Queued   int
	Rejected int
	Failed   int
}

// Config tunes the orchestrator.
type Config struct {
	// FanOut bounds concurrent message processing within a batch.
	FanOut int
	// Retry controls storage write retries.
	Retry service.RetryOptions
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		FanOut: 4,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
		},
	}
}

// Orchestrator wires the pipeline components together. Extraction and
// detection are stateless, so messages in a batch process concurrently; the
// review queue serializes its own mutations.
type Orchestrator struct {
	storage  service.Storage
	detector *detect.Detector
	queue    *queue.ReviewQueue
	config   Config
}

// New creates an orchestrator with the default configuration.
func New(store service.Storage, detector *detect.Detector, reviewQueue *queue.ReviewQueue) *Orchestrator {
	return NewWithConfig(store, detector, reviewQueue, DefaultConfig())
}

// NewWithConfig creates an orchestrator with custom configuration.
func NewWithConfig(store service.Storage, detector *detect.Detector, reviewQueue *queue.ReviewQueue, config Config) *Orchestrator {
	if config.FanOut <= 0 {
		config.FanOut = DefaultConfig().FanOut
	}
	return &Orchestrator{
		storage:  store,
		detector: detector,
		queue:    reviewQueue,
		config:   config,
	}
}

// ProcessBatch runs every message through the pipeline with bounded
// concurrency. Per-message failures are recorded in the batch result, not
// returned; only context cancellation aborts the batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, msgs []Message) (*BatchResult, error) {
	results := make([]MessageResult, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.FanOut)

	for i := range msgs {
		i := i // per-iteration capture; required while building with pre-1.22 toolchains
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.processOne(gctx, i, &msgs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchResult{Results: results}
	for _, r := range results {
		switch {
		case r.Err != nil:
			batch.Failed++
		case r.Recommendation == model.RecommendAccept:
			batch.Accepted++
		case r.Recommendation == model.RecommendReview:
			batch.Queued++
		case r.Recommendation == model.RecommendReject:
			batch.Rejected++
		}
	}

	slog.Info("Batch processed",
		"total", len(msgs),
		"accepted", batch.Accepted,
		"queued", batch.Queued,
		"rejected", batch.Rejected,
		"failed", batch.Failed)
	return batch, nil
}

// ProcessMessage runs a single message through extraction, detection, and
// routing.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg *Message) MessageResult {
	return o.processOne(ctx, 0, msg)
}

func (o *Orchestrator) processOne(ctx context.Context, index int, msg *Message) MessageResult {
	result := MessageResult{Index: index}

	if missing := msg.Parsed.Validate(); len(missing) > 0 {
		result.Err = fmt.Errorf("%w: missing %s", common.ErrMalformedInput, strings.Join(missing, ", "))
		return result
	}

	scope := ScopeFor(&msg.Parsed)
	ident := identify.Extract(identify.ExtractInput{
		Subject:    msg.Parsed.Subject,
		Sender:     msg.Parsed.FromEmail,
		HTMLBody:   msg.Parsed.RawContent,
		TextBody:   msg.TextBody,
		RawHeaders: msg.RawHeaders,
		Date:       msg.Parsed.Date,
		Scope:      scope,
	})

	validation := identify.Validate(&ident)
	result.Warnings = validation.Warnings
	if !validation.Valid() {
		result.Err = fmt.Errorf("%w: %s", common.ErrIdentificationWeak, strings.Join(validation.Errors, ", "))
		return result
	}

	detection := o.detector.Detect(ctx, &msg.Parsed, &ident, scope)
	result.Recommendation = detection.Recommendation

	switch detection.Recommendation {
	case model.RecommendAccept:
		txn := model.FromParsed(&msg.Parsed, uuid.NewString(), scope)
		if err := o.saveTransaction(ctx, &txn); err != nil {
			result.Err = err
			return result
		}
		result.TransactionID = txn.ID
		ident.TransactionID = txn.ID

	case model.RecommendReview:
		item := o.queue.Admit(msg.Parsed, ident, detection, scope)
		result.QueueItemID = item.ID

	case model.RecommendReject:
		slog.Info("Rejected confirmed duplicate",
			"scope", scope,
			"confidence", detection.Confidence,
			"summary", detection.Summary)
	}

	// The identification is persisted on every path so future emails can
	// Level-1 match against it.
	if err := o.saveIdentification(ctx, &ident); err != nil {
		result.Err = err
	}
	return result
}

func (o *Orchestrator) saveTransaction(ctx context.Context, txn *model.Transaction) error {
	err := common.WithRetry(ctx, func() error {
		saveErr := o.storage.SaveTransaction(ctx, txn)
		if saveErr != nil && !retryable(saveErr) {
			return &common.RetryableError{Err: saveErr, Retryable: false}
		}
		return saveErr
	}, o.config.Retry)

	// The same fill already stored is not a pipeline failure.
	if errors.Is(err, storage.ErrDuplicateTransaction) {
		slog.Debug("Transaction hash already recorded", "hash", txn.Hash)
		return nil
	}
	return err
}

func (o *Orchestrator) saveIdentification(ctx context.Context, ident *model.Identification) error {
	return common.WithRetry(ctx, func() error {
		saveErr := o.storage.SaveIdentification(ctx, ident)
		if saveErr != nil && !retryable(saveErr) {
			return &common.RetryableError{Err: saveErr, Retryable: false}
		}
		return saveErr
	}, o.config.Retry)
}

// retryable reports whether a storage error is worth retrying. Validation
// and duplicate errors are deterministic and are not.
func retryable(err error) bool {
	return !errors.Is(err, storage.ErrDuplicateTransaction) &&
		!errors.Is(err, storage.ErrInvalidTransaction) &&
		!errors.Is(err, storage.ErrInvalidIdentity) &&
		!errors.Is(err, storage.ErrNilParameter)
}

// ScopeFor derives the corpus scope for a message. Detection runs per
// sender and account type so one tenant's corpus stays bounded.
func ScopeFor(p *model.ParsedTransaction) string {
	accountType := p.AccountType
	if accountType == "" {
		accountType = "default"
	}
	return fmt.Sprintf("%s/%s", strings.ToLower(p.FromEmail), strings.ToLower(accountType))
}
