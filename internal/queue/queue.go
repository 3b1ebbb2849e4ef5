// Package queue implements the bounded, prioritized review queue for
// ambiguous duplicate-detection results. The queue exclusively owns item
// lifecycle: every mutation goes through its operations under a single
// read/write lock, and expected business conditions surface as typed errors
// rather than panics.
package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/service"
)

// Business-condition errors. None of these indicate a bug; callers are
// expected to handle them.
var (
	ErrItemNotFound  = errors.New("queue item not found")
	ErrNotPending    = errors.New("item is not pending")
	ErrNotInReview   = errors.New("item is not in review")
	ErrNotReviewable = errors.New("item is not reviewable")
	ErrInvalidAction = errors.New("invalid review action")
	ErrBadReviewerID = errors.New("invalid reviewer id")
)

// Config tunes queue capacity and automation thresholds.
type Config struct {
	// Capacity is the maximum number of items held at once.
	Capacity int
	// EscalationAge is the time-in-queue that triggers auto-escalation.
	EscalationAge time.Duration
	// EscalationRisk is the risk score that triggers auto-escalation.
	EscalationRisk float64
	// DeferralWindow is how long a deferral lasts before re-queueing.
	DeferralWindow time.Duration
	// PendingTTL, when positive, auto-approves pending items that sit
	// unreviewed past it.
	PendingTTL time.Duration
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:       1000,
		EscalationAge:  24 * time.Hour,
		EscalationRisk: 0.8,
		DeferralWindow: 24 * time.Hour,
	}
}

// ReviewQueue is a bounded key/value store of review items guarded by a
// global read/write lock. Admissions on different items may contend on the
// lock but never corrupt each other; statistics and eviction always observe
// a consistent snapshot.
type ReviewQueue struct {
	items    map[string]*model.ReviewQueueItem
	notifier service.Notifier
	config   Config
	mu       sync.RWMutex
	now      func() time.Time
}

// New creates a review queue with the default configuration.
func New() *ReviewQueue {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a review queue with custom configuration.
func NewWithConfig(config Config) *ReviewQueue {
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig().Capacity
	}
	if config.EscalationAge <= 0 {
		config.EscalationAge = DefaultConfig().EscalationAge
	}
	if config.EscalationRisk <= 0 {
		config.EscalationRisk = DefaultConfig().EscalationRisk
	}
	if config.DeferralWindow <= 0 {
		config.DeferralWindow = DefaultConfig().DeferralWindow
	}
	return &ReviewQueue{
		items:  make(map[string]*model.ReviewQueueItem),
		config: config,
		now:    time.Now,
	}
}

// SetNotifier attaches an optional notifier for urgent admissions and
// escalations. Notifications fire outside the queue lock.
func (q *ReviewQueue) SetNotifier(n service.Notifier) {
	q.mu.Lock()
	q.notifier = n
	q.mu.Unlock()
}

// Admit adds an ambiguous detection result to the queue. It never fails on
// capacity: when full, the oldest evictable pending item is auto-approved
// first. The admitted item is immediately checked for auto-escalation.
func (q *ReviewQueue) Admit(txn model.ParsedTransaction, ident model.Identification, detection model.DetectionResult, scope string) *model.ReviewQueueItem {
	now := q.now()

	item := &model.ReviewQueueItem{
		ID:             uuid.NewString(),
		Scope:          scope,
		Transaction:    txn,
		Identification: ident,
		Detection:      detection,
		QueuedAt:       now,
		Status:         model.StatusPending,
		Priority:       priorityFor(detection.Confidence, detection.Risk, detection.TimeRisk),
		RiskScore:      riskScoreFor(detection.Confidence, detection.TimeRisk),
		Tags:           tagsFor(&txn, &ident, &detection),
	}
	if q.config.PendingTTL > 0 {
		expiry := now.Add(q.config.PendingTTL)
		item.ExpiresAt = &expiry
	}

	q.mu.Lock()
	if len(q.items) >= q.config.Capacity {
		q.evictLocked()
	}
	q.items[item.ID] = item

	escalated := false
	if item.RiskScore >= q.config.EscalationRisk {
		q.escalateLocked(item, fmt.Sprintf("risk score %.2f at admission", item.RiskScore))
		escalated = true
	}
	notifier := q.notifier
	snapshot := *item
	q.mu.Unlock()

	slog.Info("Admitted item to review queue",
		"item_id", item.ID,
		"scope", scope,
		"priority", item.Priority,
		"risk_score", item.RiskScore)

	// The notifier runs outside the lock, so it gets a snapshot rather than
	// the live item a concurrent review could be mutating.
	if notifier != nil {
		if snapshot.Priority == model.PriorityUrgent {
			notifier.UrgentAdmission(&snapshot)
		}
		if escalated {
			notifier.Escalated(&snapshot)
		}
	}
	return item
}

// Get returns a copy of the item, or ErrItemNotFound.
func (q *ReviewQueue) Get(itemID string) (*model.ReviewQueueItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	snapshot := *item
	return &snapshot, nil
}

// Claim moves a pending item into review for the given reviewer.
func (q *ReviewQueue) Claim(itemID, reviewerID string) error {
	if reviewerID == "" || reviewerID == model.SystemReviewerID {
		return fmt.Errorf("%w: %q", ErrBadReviewerID, reviewerID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if item.Status != model.StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrNotPending, itemID, item.Status)
	}

	now := q.now()
	item.Status = model.StatusInReview
	item.Review.ReviewerID = reviewerID
	item.Review.ClaimedAt = &now
	return nil
}

// Release returns an in-review item to pending, clearing the reviewer.
func (q *ReviewQueue) Release(itemID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if item.Status != model.StatusInReview {
		return fmt.Errorf("%w: %s is %s", ErrNotInReview, itemID, item.Status)
	}

	item.Status = model.StatusPending
	item.Review.ReviewerID = ""
	item.Review.ClaimedAt = nil
	return nil
}

// Review applies a reviewer action to an item in pending or in-review state.
// The operation is all-or-nothing: on any failure no state changes.
func (q *ReviewQueue) Review(itemID string, action model.ReviewAction, reviewerID, notes string) error {
	if reviewerID == "" {
		return fmt.Errorf("%w: empty", ErrBadReviewerID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if item.Status != model.StatusPending && item.Status != model.StatusInReview {
		return fmt.Errorf("%w: %s is %s", ErrNotReviewable, itemID, item.Status)
	}

	now := q.now()
	switch action {
	case model.ActionApprove:
		q.decideLocked(item, reviewerID, model.StatusApproved, model.DecisionApproved, notes)
	case model.ActionReject:
		q.decideLocked(item, reviewerID, model.StatusRejected, model.DecisionRejected, notes)
	case model.ActionMerge:
		q.decideLocked(item, reviewerID, model.StatusApproved, model.DecisionMerged, notes)
	case model.ActionSplit:
		q.decideLocked(item, reviewerID, model.StatusApproved, model.DecisionSplit, notes)
	case model.ActionEscalate:
		q.escalateLocked(item, notes)
		item.Review.ReviewerID = reviewerID
	case model.ActionDefer:
		expiry := now.Add(q.config.DeferralWindow)
		item.Status = model.StatusDeferred
		item.ExpiresAt = &expiry
		item.Review.ReviewerID = reviewerID
		item.Review.Notes = notes
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	slog.Info("Review action applied",
		"item_id", itemID,
		"action", action,
		"reviewer", reviewerID,
		"status", item.Status)
	return nil
}

// Remove deletes an item outright, regardless of state.
func (q *ReviewQueue) Remove(itemID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[itemID]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	delete(q.items, itemID)
	return nil
}

// Size returns the current number of items.
func (q *ReviewQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// SweepExpired re-queues deferred items whose deferral has lapsed and
// auto-approves pending items that sat past their automatic expiry. Returns
// the number of items changed.
func (q *ReviewQueue) SweepExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	changed := 0
	for _, item := range q.items {
		if item.ExpiresAt == nil || item.ExpiresAt.After(now) {
			continue
		}
		switch item.Status {
		case model.StatusDeferred:
			item.Status = model.StatusPending
			item.ExpiresAt = nil
			item.Review.ReviewerID = ""
			changed++
		case model.StatusPending:
			q.decideLocked(item, model.SystemReviewerID, model.StatusApproved, model.DecisionAutoExpired,
				"expired without manual review")
			changed++
		}
	}
	if changed > 0 {
		slog.Info("Expiry sweep complete", "changed", changed)
	}
	return changed
}

// CheckEscalations escalates pending items whose age or risk crosses the
// configured thresholds. Safe to call periodically: the age trigger scales
// with the current escalation level so one stale item does not escalate on
// every pass.
func (q *ReviewQueue) CheckEscalations() int {
	q.mu.Lock()

	now := q.now()
	escalated := 0
	var toNotify []model.ReviewQueueItem
	for _, item := range q.items {
		if item.Status != model.StatusPending {
			continue
		}
		age := now.Sub(item.QueuedAt)
		ageTrigger := age >= time.Duration(item.EscalationLevel+1)*q.config.EscalationAge
		riskTrigger := item.RiskScore >= q.config.EscalationRisk && item.EscalationLevel == 0
		if !ageTrigger && !riskTrigger {
			continue
		}

		reason := fmt.Sprintf("risk score %.2f", item.RiskScore)
		if ageTrigger {
			reason = fmt.Sprintf("in queue for %s", age.Round(time.Minute))
		}
		q.escalateLocked(item, reason)
		toNotify = append(toNotify, *item)
		escalated++
	}
	notifier := q.notifier
	q.mu.Unlock()

	if notifier != nil {
		for i := range toNotify {
			notifier.Escalated(&toNotify[i])
		}
	}
	return escalated
}

// decideLocked applies a terminal decision. Caller holds the write lock.
func (q *ReviewQueue) decideLocked(item *model.ReviewQueueItem, reviewerID string, status model.ReviewStatus, decision model.ReviewDecision, notes string) {
	now := q.now()
	item.Status = status
	item.Review.ReviewerID = reviewerID
	item.Review.Decision = decision
	item.Review.Notes = notes
	item.Review.DecidedAt = &now
}

// escalateLocked raises an item's tier and returns it to pending for
// higher-tier review. Caller holds the write lock.
func (q *ReviewQueue) escalateLocked(item *model.ReviewQueueItem, reason string) {
	item.EscalationLevel++
	item.Status = model.StatusPending
	item.Review.ClaimedAt = nil
	item.Tags = append(item.Tags, fmt.Sprintf("escalated:level-%d", item.EscalationLevel))
	if reason != "" {
		item.Review.Notes = reason
	}
	slog.Info("Item escalated",
		"item_id", item.ID,
		"level", item.EscalationLevel,
		"reason", reason)
}

// evictLocked frees one slot by auto-approving the oldest pending item of
// the lowest priority present. If nothing is pending, the oldest item of any
// state is dropped. Caller holds the write lock.
func (q *ReviewQueue) evictLocked() {
	var victim *model.ReviewQueueItem
	for _, item := range q.items {
		if item.Status != model.StatusPending {
			continue
		}
		if victim == nil || evictBefore(item, victim) {
			victim = item
		}
	}

	if victim != nil {
		q.decideLocked(victim, model.SystemReviewerID, model.StatusApproved, model.DecisionAutoEvicted,
			"auto-approved to free queue capacity")
		delete(q.items, victim.ID)
		slog.Warn("Evicted pending item at capacity",
			"item_id", victim.ID,
			"priority", victim.Priority)
		return
	}

	// No pending items to resolve; drop the oldest item outright.
	for _, item := range q.items {
		if victim == nil || item.QueuedAt.Before(victim.QueuedAt) {
			victim = item
		}
	}
	if victim != nil {
		delete(q.items, victim.ID)
		slog.Warn("Evicted non-pending item at capacity", "item_id", victim.ID)
	}
}

// evictBefore orders eviction candidates: lower priority first, then older
// admission.
func evictBefore(a, b *model.ReviewQueueItem) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() < b.Priority.Rank()
	}
	return a.QueuedAt.Before(b.QueuedAt)
}
