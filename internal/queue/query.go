package queue

import (
	"sort"
	"strings"
	"time"

	"github.com/sievefin/tradesift/internal/model"
)

// Filter narrows a queue listing. Zero values mean "any". Range bounds are
// inclusive.
type Filter struct {
	From          *time.Time
	To            *time.Time
	MinEscalation *int
	MinConfidence *float64
	MaxConfidence *float64
	MinRisk       *float64
	MaxRisk       *float64
	Status        model.ReviewStatus
	Priority      model.ReviewPriority
	Scope         string
	Symbol        string
	ReviewerID    string
	Tags          []string
}

// Sort field names accepted by ListOptions.SortBy.
const (
	SortByQueuedAt        = "queued_at"
	SortByPriority        = "priority"
	SortByConfidence      = "confidence"
	SortByRiskScore       = "risk_score"
	SortByEscalationLevel = "escalation_level"
	SortBySymbol          = "symbol"
	SortByStatus          = "status"
)

// ListOptions controls ordering and pagination. An empty SortBy uses the
// default order: priority descending, then admission time ascending.
type ListOptions struct {
	SortBy     string
	Descending bool
	Offset     int
	Limit      int
}

// List returns a filtered, sorted, paginated snapshot of queue items. The
// returned items are copies; mutating them does not affect the queue.
func (q *ReviewQueue) List(filter Filter, opts ListOptions) []model.ReviewQueueItem {
	q.mu.RLock()
	matched := make([]model.ReviewQueueItem, 0, len(q.items))
	for _, item := range q.items {
		if matches(item, &filter) {
			matched = append(matched, *item)
		}
	}
	q.mu.RUnlock()

	sortItems(matched, opts.SortBy, opts.Descending)
	return paginate(matched, opts.Offset, opts.Limit)
}

func matches(item *model.ReviewQueueItem, f *Filter) bool {
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if f.Priority != "" && item.Priority != f.Priority {
		return false
	}
	if f.Scope != "" && item.Scope != f.Scope {
		return false
	}
	if f.Symbol != "" && !strings.EqualFold(item.Transaction.Symbol, f.Symbol) {
		return false
	}
	if f.ReviewerID != "" && item.Review.ReviewerID != f.ReviewerID {
		return false
	}
	if f.From != nil && item.QueuedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && item.QueuedAt.After(*f.To) {
		return false
	}
	if f.MinEscalation != nil && item.EscalationLevel < *f.MinEscalation {
		return false
	}
	if f.MinConfidence != nil && item.Detection.Confidence < *f.MinConfidence {
		return false
	}
	if f.MaxConfidence != nil && item.Detection.Confidence > *f.MaxConfidence {
		return false
	}
	if f.MinRisk != nil && item.RiskScore < *f.MinRisk {
		return false
	}
	if f.MaxRisk != nil && item.RiskScore > *f.MaxRisk {
		return false
	}
	for _, want := range f.Tags {
		if !hasTag(item.Tags, want) {
			return false
		}
	}
	return true
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func sortItems(items []model.ReviewQueueItem, sortBy string, descending bool) {
	var less func(a, b *model.ReviewQueueItem) bool

	switch sortBy {
	case SortByQueuedAt:
		less = func(a, b *model.ReviewQueueItem) bool { return a.QueuedAt.Before(b.QueuedAt) }
	case SortByPriority:
		less = func(a, b *model.ReviewQueueItem) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortByConfidence:
		less = func(a, b *model.ReviewQueueItem) bool { return a.Detection.Confidence < b.Detection.Confidence }
	case SortByRiskScore:
		less = func(a, b *model.ReviewQueueItem) bool { return a.RiskScore < b.RiskScore }
	case SortByEscalationLevel:
		less = func(a, b *model.ReviewQueueItem) bool { return a.EscalationLevel < b.EscalationLevel }
	case SortBySymbol:
		less = func(a, b *model.ReviewQueueItem) bool { return a.Transaction.Symbol < b.Transaction.Symbol }
	case SortByStatus:
		less = func(a, b *model.ReviewQueueItem) bool { return a.Status < b.Status }
	default:
		// Default order: most urgent first, oldest first within a tier.
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Priority.Rank() != items[j].Priority.Rank() {
				return items[i].Priority.Rank() > items[j].Priority.Rank()
			}
			return items[i].QueuedAt.Before(items[j].QueuedAt)
		})
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			return less(&items[j], &items[i])
		}
		return less(&items[i], &items[j])
	})
}

func paginate(items []model.ReviewQueueItem, offset, limit int) []model.ReviewQueueItem {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
