package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievefin/tradesift/internal/common"
	"github.com/sievefin/tradesift/internal/detect"
	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/queue"
	"github.com/sievefin/tradesift/internal/testutil"
)

func testOrchestrator(t *testing.T) (*Orchestrator, *testutil.TestDB, *queue.ReviewQueue) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	reviewQueue := queue.New()
	detector := detect.New(db.Storage)
	return New(db.Storage, detector, reviewQueue), db, reviewQueue
}

// recentDate keeps test transactions inside the detector's corpus lookback,
// which is anchored to the wall clock.
func recentDate() time.Time {
	return time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
}

func testMessage(date time.Time, messageID string) Message {
	return Message{
		Parsed: model.ParsedTransaction{
			Date:        date,
			Symbol:      "AAPL",
			Kind:        model.KindBuy,
			Quantity:    100,
			Price:       150.50,
			TotalAmount: 15050,
			AccountType: "individual",
			Currency:    "USD",
			Subject:     "Trade Confirmation: BUY 100 AAPL",
			FromEmail:   "noreply@broker.example.com",
		},
		TextBody: "Order Number: ORD-2025061712345\n" +
			"Confirmation Number: CNF-88441122\n" +
			"BUY 100 shares AAPL @ 150.50",
		RawHeaders: "Message-ID: <" + messageID + ">\r\n",
	}
}

func TestProcessMessageAcceptPersists(t *testing.T) {
	o, db, reviewQueue := testOrchestrator(t)
	ctx := context.Background()

	msg := testMessage(recentDate(), "msg-1@broker")
	result := o.ProcessMessage(ctx, &msg)

	require.NoError(t, result.Err)
	assert.Equal(t, model.RecommendAccept, result.Recommendation)
	require.NotEmpty(t, result.TransactionID)
	assert.Empty(t, result.QueueItemID)
	assert.Zero(t, reviewQueue.Size())

	// The transaction and its identification are both on record.
	txn, err := db.Storage.GetTransactionByID(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", txn.Symbol)

	scope := ScopeFor(&msg.Parsed)
	count, err := db.Storage.GetIdentificationCount(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessMessageExactResendRejected(t *testing.T) {
	o, db, _ := testOrchestrator(t)
	ctx := context.Background()
	date := recentDate()

	first := testMessage(date, "msg-1@broker")
	require.NoError(t, o.ProcessMessage(ctx, &first).Err)

	// The identical email delivered again: same message-id, same content.
	resend := testMessage(date, "msg-1@broker")
	result := o.ProcessMessage(ctx, &resend)

	require.NoError(t, result.Err)
	assert.Equal(t, model.RecommendReject, result.Recommendation)
	assert.Empty(t, result.TransactionID)
	assert.Empty(t, result.QueueItemID)

	scope := ScopeFor(&resend.Parsed)
	count, err := db.Storage.GetTransactionCount(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessMessageNearDuplicateQueued(t *testing.T) {
	o, db, reviewQueue := testOrchestrator(t)
	ctx := context.Background()
	date := recentDate()

	first := testMessage(date, "msg-1@broker")
	require.NoError(t, o.ProcessMessage(ctx, &first).Err)

	// Thirty seconds later: a different email describing a near-identical
	// fill at a slightly different price with different identifiers.
	second := testMessage(date.Add(30*time.Second), "msg-2@broker")
	second.Parsed.Price = 150.52
	second.Parsed.Subject = "Execution notice for AAPL"
	second.TextBody = "Order Number: ORD-9988776655\nBUY 100 shares AAPL @ 150.52"
	result := o.ProcessMessage(ctx, &second)

	require.NoError(t, result.Err)
	assert.NotEqual(t, model.RecommendAccept, result.Recommendation)
	assert.Empty(t, result.TransactionID)

	if result.Recommendation == model.RecommendReview {
		require.NotEmpty(t, result.QueueItemID)
		item, err := reviewQueue.Get(result.QueueItemID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, item.Status)
	}

	// No second transaction was created either way.
	scope := ScopeFor(&second.Parsed)
	count, err := db.Storage.GetTransactionCount(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessMessageMalformedInput(t *testing.T) {
	o, _, _ := testOrchestrator(t)

	msg := testMessage(recentDate(), "msg-1@broker")
	msg.Parsed.Symbol = ""
	msg.Parsed.FromEmail = ""

	result := o.ProcessMessage(context.Background(), &msg)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, common.ErrMalformedInput)
	assert.Contains(t, result.Err.Error(), "symbol")
	assert.Contains(t, result.Err.Error(), "fromEmail")
}

func TestProcessMessageWarningsSurface(t *testing.T) {
	o, _, _ := testOrchestrator(t)

	msg := testMessage(recentDate(), "msg-1@broker")
	msg.RawHeaders = ""
	msg.TextBody = "no identifiers here"

	result := o.ProcessMessage(context.Background(), &msg)
	require.NoError(t, result.Err)
	assert.Contains(t, result.Warnings, "no message-id header")
	assert.Contains(t, result.Warnings, "no order ids extracted")
}

func TestProcessBatch(t *testing.T) {
	o, _, _ := testOrchestrator(t)
	ctx := context.Background()
	base := recentDate()

	// Distinct fills on distinct days, plus one malformed message.
	msgs := []Message{
		testMessage(base, "msg-1@broker"),
		testMessage(base.Add(-7*24*time.Hour), "msg-2@broker"),
		testMessage(base.Add(-14*24*time.Hour), "msg-3@broker"),
	}
	msgs[1].Parsed.Symbol = "MSFT"
	msgs[1].Parsed.Price = 410.00
	msgs[1].TextBody = "Order Number: ORD-5544332211\nBUY 100 shares MSFT @ 410.00"
	msgs[2].Parsed.Symbol = "NVDA"
	msgs[2].Parsed.Price = 120.00
	msgs[2].TextBody = "Order Number: ORD-6655443322\nBUY 100 shares NVDA @ 120.00"

	broken := testMessage(base, "msg-4@broker")
	broken.Parsed.Kind = ""
	msgs = append(msgs, broken)

	batch, err := o.ProcessBatch(ctx, msgs)
	require.NoError(t, err)
	require.Len(t, batch.Results, 4)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 4, batch.Accepted+batch.Queued+batch.Rejected+batch.Failed)

	// Results stay index-aligned to the input.
	for i, r := range batch.Results {
		assert.Equal(t, i, r.Index)
	}
	assert.Error(t, batch.Results[3].Err)
}

func TestProcessBatchCancelledContext(t *testing.T) {
	o, _, _ := testOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msgs := []Message{testMessage(recentDate(), "msg-1@broker")}
	_, err := o.ProcessBatch(ctx, msgs)
	assert.Error(t, err)
}

func TestScopeFor(t *testing.T) {
	tests := []struct {
		name   string
		parsed model.ParsedTransaction
		want   string
	}{
		{
			name:   "sender and account type lowercased",
			parsed: model.ParsedTransaction{FromEmail: "NoReply@Broker.Example.com", AccountType: "IRA"},
			want:   "noreply@broker.example.com/ira",
		},
		{
			name:   "missing account type falls back",
			parsed: model.ParsedTransaction{FromEmail: "a@b.com"},
			want:   "a@b.com/default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeFor(&tt.parsed))
		})
	}
}
