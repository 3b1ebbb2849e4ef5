package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sievefin/tradesift/internal/cli"
	"github.com/sievefin/tradesift/internal/config"
	"github.com/sievefin/tradesift/internal/detect"
	"github.com/sievefin/tradesift/internal/ingest"
	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/notify"
)

// messageFile is the JSON shape the external parser hands us per email.
type messageFile struct {
	Subject         string  `json:"subject"`
	FromEmail       string  `json:"fromEmail"`
	Symbol          string  `json:"symbol"`
	Kind            string  `json:"kind"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	TotalAmount     float64 `json:"totalAmount"`
	AccountType     string  `json:"accountType"`
	Currency        string  `json:"currency"`
	TransactionDate string  `json:"transactionDate"`
	RawContent      string  `json:"rawContent"`
	TextBody        string  `json:"textBody"`
	RawHeaders      string  `json:"rawHeaders"`
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Run parsed confirmation emails through duplicate detection",
		Long: `Ingest parsed trade-confirmation emails (one JSON document per file, or a
JSON array of documents) and route each through identification, duplicate
detection, and the review queue.

Examples:
  # Ingest a single parsed email
  tradesift ingest confirmation.json

  # Ingest a directory of parsed emails
  tradesift ingest inbox/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Detect without persisting or queueing")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	msgs, err := loadMessages(args)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("no messages found to ingest")
	}

	slog.Info("Ingesting parsed emails", "count", len(msgs), "dry_run", dryRun)

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	detector := detect.NewWithConfig(store, config.DetectConfig())

	if dryRun {
		return dryRunDetect(cmd, detector, msgs)
	}

	reviewQueue, err := loadQueue()
	if err != nil {
		return err
	}
	if emailCfg := config.EmailConfig(); emailCfg.Enabled {
		reviewQueue.SetNotifier(notify.NewEmailNotifier(emailCfg))
	}
	orchestrator := ingest.NewWithConfig(store, detector, reviewQueue, config.IngestConfig())

	bar := progressbar.Default(int64(len(msgs)), "detecting")
	const batchSize = 50

	total := ingest.BatchResult{}
	for start := 0; start < len(msgs); start += batchSize {
		end := start + batchSize
		if end > len(msgs) {
			end = len(msgs)
		}

		batch, batchErr := orchestrator.ProcessBatch(ctx, msgs[start:end])
		if batchErr != nil {
			return fmt.Errorf("batch aborted: %w", batchErr)
		}
		_ = bar.Add(end - start)

		total.Accepted += batch.Accepted
		total.Queued += batch.Queued
		total.Rejected += batch.Rejected
		total.Failed += batch.Failed
		total.Results = append(total.Results, batch.Results...)
	}
	_ = bar.Finish()

	if err := saveQueue(reviewQueue); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Ingestion complete"))
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("accepted: %d", total.Accepted)))
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("queued for review: %d", total.Queued)))
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatError(fmt.Sprintf("rejected duplicates: %d", total.Rejected)))
	if total.Failed > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatError(fmt.Sprintf("failed: %d", total.Failed)))
		for _, r := range total.Results {
			if r.Err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  message %d: %v\n", r.Index, r.Err)
			}
		}
	}
	return nil
}

func dryRunDetect(cmd *cobra.Command, detector *detect.Detector, msgs []ingest.Message) error {
	for i := range msgs {
		result, err := detectOne(cmd.Context(), detector, &msgs[i])
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", cli.FormatError(fmt.Sprintf("message %d:", i)), err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "message %d: %s confidence=%s  %s\n",
			i,
			cli.RecommendationStyle(result.Recommendation),
			cli.FormatConfidence(result.Confidence, result.Risk),
			cli.SubtleStyle.Render(result.Summary))
	}
	return nil
}

// loadMessages expands globs and decodes every file into messages.
func loadMessages(patterns []string) ([]ingest.Message, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			files = append(files, matches...)
		}
	}

	var msgs []ingest.Message
	for _, path := range files {
		fileMsgs, err := decodeMessageFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		msgs = append(msgs, fileMsgs...)
	}
	return msgs, nil
}

func decodeMessageFile(path string) ([]ingest.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []messageFile
	if err := json.Unmarshal(data, &raw); err != nil {
		var single messageFile
		if singleErr := json.Unmarshal(data, &single); singleErr != nil {
			return nil, fmt.Errorf("failed to decode: %w", err)
		}
		raw = []messageFile{single}
	}

	msgs := make([]ingest.Message, 0, len(raw))
	for _, m := range raw {
		msg, convErr := m.toMessage()
		if convErr != nil {
			return nil, convErr
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (m *messageFile) toMessage() (ingest.Message, error) {
	date, err := time.Parse(time.RFC3339, m.TransactionDate)
	if err != nil {
		return ingest.Message{}, fmt.Errorf("invalid transactionDate %q: %w", m.TransactionDate, err)
	}

	return ingest.Message{
		Parsed: model.ParsedTransaction{
			Subject:     m.Subject,
			FromEmail:   m.FromEmail,
			Symbol:      m.Symbol,
			Kind:        model.TransactionKind(m.Kind),
			Quantity:    m.Quantity,
			Price:       m.Price,
			TotalAmount: m.TotalAmount,
			AccountType: m.AccountType,
			Currency:    m.Currency,
			Date:        date,
			RawContent:  m.RawContent,
		},
		TextBody:   m.TextBody,
		RawHeaders: m.RawHeaders,
	}, nil
}
