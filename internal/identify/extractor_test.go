package identify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput() ExtractInput {
	return ExtractInput{
		Date:    time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC),
		Subject: "Trade Confirmation: BUY 100 AAPL",
		Sender:  "noreply@broker.example.com",
		TextBody: "Your order has been executed.\n" +
			"Order Number: ORD-2025061712345\n" +
			"Confirmation Number: CNF-88441122\n" +
			"BUY 100 shares AAPL @ 150.50 on 2025-06-17",
		RawHeaders: "From: noreply@broker.example.com\r\n" +
			"Message-ID: <abc123@broker.example.com>\r\n" +
			"Date: Tue, 17 Jun 2025 10:30:00 +0000\r\n",
		Scope: "noreply@broker.example.com/individual",
	}
}

func TestExtract(t *testing.T) {
	id := Extract(testInput())

	assert.Equal(t, "abc123@broker.example.com", id.MessageID)
	assert.Len(t, id.ContentHash, 64)
	assert.Equal(t, id.ContentHash[:16], id.ShortHash)
	assert.NotEmpty(t, id.FingerprintHash)
	assert.Contains(t, id.OrderIDs, "ORD-2025061712345")
	assert.Contains(t, id.ConfirmationNumbers, "CNF-88441122")
	assert.Equal(t, "noreply@broker.example.com", id.SourceSender)
	assert.Equal(t, "message-id+orders+confirmations", id.ExtractionMethod)
}

func TestExtractDeterministic(t *testing.T) {
	first := Extract(testInput())
	second := Extract(testInput())

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.FingerprintHash, second.FingerprintHash)
	assert.Equal(t, first.OrderIDs, second.OrderIDs)
	assert.Equal(t, first.ConfirmationNumbers, second.ConfirmationNumbers)
}

func TestExtractContentHashNormalization(t *testing.T) {
	base := Extract(testInput())

	// Whitespace and case differences normalize away.
	in := testInput()
	in.Subject = "  Trade   Confirmation:   buy 100 aapl "
	reworded := Extract(in)
	assert.Equal(t, base.ContentHash, reworded.ContentHash)

	// A different sender produces a different content hash.
	in = testInput()
	in.Sender = "alerts@otherbroker.example.com"
	otherSender := Extract(in)
	assert.NotEqual(t, base.ContentHash, otherSender.ContentHash)
}

func TestExtractHTMLFallback(t *testing.T) {
	in := testInput()
	text := in.TextBody
	in.TextBody = ""
	in.HTMLBody = "<html><body><p>Order Number: ORD-2025061712345</p>" +
		"<script>ignored()</script></body></html>"

	id := Extract(in)
	assert.Contains(t, id.OrderIDs, "ORD-2025061712345")

	// Text body, when present, wins over HTML.
	in.TextBody = text
	withText := Extract(in)
	assert.Contains(t, withText.ConfirmationNumbers, "CNF-88441122")
}

func TestExtractNoSignals(t *testing.T) {
	id := Extract(ExtractInput{
		Date:     time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC),
		Subject:  "hello",
		Sender:   "someone@example.com",
		TextBody: "nothing identifying here",
	})

	assert.Empty(t, id.MessageID)
	assert.Empty(t, id.OrderIDs)
	assert.Empty(t, id.ConfirmationNumbers)
	assert.NotEmpty(t, id.ContentHash)
	assert.NotEmpty(t, id.FingerprintHash)
	assert.Equal(t, "content-only", id.ExtractionMethod)
}

func TestValidate(t *testing.T) {
	t.Run("complete identification is valid", func(t *testing.T) {
		id := Extract(testInput())
		result := Validate(&id)
		require.Empty(t, result.Errors)
		assert.Empty(t, result.Warnings)
		assert.True(t, result.Valid())
	})

	t.Run("missing sender is an error", func(t *testing.T) {
		in := testInput()
		in.Sender = ""
		id := Extract(in)
		result := Validate(&id)
		assert.Contains(t, result.Errors, "missing sender")
		assert.False(t, result.Valid())
	})

	t.Run("missing soft signals warn only", func(t *testing.T) {
		in := testInput()
		in.RawHeaders = ""
		in.TextBody = "no identifiers in this body"
		id := Extract(in)
		result := Validate(&id)
		assert.Empty(t, result.Errors)
		assert.Contains(t, result.Warnings, "no message-id header")
		assert.Contains(t, result.Warnings, "no order ids extracted")
		assert.Contains(t, result.Warnings, "no confirmation numbers extracted")
		assert.True(t, result.Valid())
	})
}

func TestValidCandidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{name: "alphanumeric with digits", candidate: "ORD-12345", want: true},
		{name: "too short", candidate: "AB12", want: false},
		{name: "too long", candidate: "A123456789012345678901234", want: false},
		{name: "no digits", candidate: "ABCDEF", want: false},
		{name: "uniform characters", candidate: "11111111111", want: false},
		{name: "numeric reference number", candidate: "2025061712345", want: true},
		{name: "numeric too short", candidate: "123456", want: false},
		{name: "numeric too long", candidate: "1234567890123456", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validCandidate(tt.candidate))
		})
	}
}

func TestExtractMessageID(t *testing.T) {
	tests := []struct {
		name    string
		headers string
		want    string
	}{
		{
			name:    "angle brackets stripped",
			headers: "Message-ID: <id-1@host>\r\n",
			want:    "id-1@host",
		},
		{
			name:    "case insensitive header name",
			headers: "MESSAGE-ID: bare-id@host\n",
			want:    "bare-id@host",
		},
		{
			name:    "absent header",
			headers: "From: a@b.com\r\nSubject: hi\r\n",
			want:    "",
		},
		{
			name:    "empty headers",
			headers: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMessageID(tt.headers))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "BUY   100\n\tAAPL", want: "buy 100 aapl"},
		{name: "trims edges", in: "  hello  ", want: "hello"},
		{name: "empty input", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<div>BUY <b>100</b> AAPL<style>p{}</style></div>")
	assert.Contains(t, got, "BUY")
	assert.Contains(t, got, "100")
	assert.Contains(t, got, "AAPL")
	assert.NotContains(t, got, "p{}")
}
