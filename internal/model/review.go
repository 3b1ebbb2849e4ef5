package model

import "time"

// SystemReviewerID is the reserved reviewer identity used for automatic
// decisions (capacity eviction, expiry, auto-escalation). It is not a valid
// ID for human reviewers.
const SystemReviewerID = "system"

// ReviewStatus is the lifecycle state of a queued item.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusInReview ReviewStatus = "in_review"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
	StatusDeferred ReviewStatus = "deferred"
)

// Terminal reports whether no further review actions apply.
func (s ReviewStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ReviewPriority orders items for reviewers.
type ReviewPriority string

const (
	PriorityLow    ReviewPriority = "low"
	PriorityMedium ReviewPriority = "medium"
	PriorityHigh   ReviewPriority = "high"
	PriorityUrgent ReviewPriority = "urgent"
)

// Rank returns a sortable rank, higher meaning more urgent.
func (p ReviewPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ReviewAction is a reviewer's verb against a queued item.
type ReviewAction string

const (
	ActionApprove  ReviewAction = "approve"
	ActionReject   ReviewAction = "reject"
	ActionEscalate ReviewAction = "escalate"
	ActionDefer    ReviewAction = "defer"
	ActionMerge    ReviewAction = "merge"
	ActionSplit    ReviewAction = "split"
)

// ReviewDecision records how a terminal state was reached. Merge and split
// both end as approved but keep distinct decision codes.
type ReviewDecision string

const (
	DecisionApproved    ReviewDecision = "approved"
	DecisionRejected    ReviewDecision = "rejected"
	DecisionMerged      ReviewDecision = "merged"
	DecisionSplit       ReviewDecision = "split"
	DecisionAutoExpired ReviewDecision = "auto_expired"
	DecisionAutoEvicted ReviewDecision = "auto_evicted"
)

// ReviewMetadata is populated only after a review action runs.
type ReviewMetadata struct {
	ClaimedAt  *time.Time
	DecidedAt  *time.Time
	ReviewerID string
	Decision   ReviewDecision
	Notes      string
}

// ReviewQueueItem is one ambiguous email awaiting human judgment. Lifecycle
// is owned exclusively by the review queue; all mutation goes through its
// operations.
type ReviewQueueItem struct {
	QueuedAt        time.Time
	ExpiresAt       *time.Time
	ID              string
	Scope           string
	Status          ReviewStatus
	Priority        ReviewPriority
	Transaction     ParsedTransaction
	Identification  Identification
	Detection       DetectionResult
	Review          ReviewMetadata
	Tags            []string
	EscalationLevel int
	RiskScore       float64
}
