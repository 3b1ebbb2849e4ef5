package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sievefin/tradesift/internal/cli"
	"github.com/sievefin/tradesift/internal/common"
	"github.com/sievefin/tradesift/internal/config"
	"github.com/sievefin/tradesift/internal/detect"
	"github.com/sievefin/tradesift/internal/identify"
	"github.com/sievefin/tradesift/internal/ingest"
	"github.com/sievefin/tradesift/internal/model"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Run read-only duplicate detection on one parsed email",
		Long: `Detect whether a parsed confirmation email duplicates a recorded
transaction, without persisting anything or touching the review queue.`,
		Args: cobra.ExactArgs(1),
		RunE: runDetect,
	}

	cmd.Flags().Bool("json", false, "Emit the detection result as JSON")
	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	asJSON, _ := cmd.Flags().GetBool("json")

	msgs, err := decodeMessageFile(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if len(msgs) != 1 {
		return fmt.Errorf("%s: expected exactly one message, got %d", args[0], len(msgs))
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	detector := detect.NewWithConfig(store, config.DetectConfig())
	result, err := detectOne(ctx, detector, &msgs[0])
	if err != nil {
		return err
	}

	if asJSON {
		encoded, encErr := json.MarshalIndent(result, "", "  ")
		if encErr != nil {
			return fmt.Errorf("failed to encode result: %w", encErr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Detection result"))
	fmt.Fprintf(cmd.OutOrStdout(), "recommendation: %s\n", cli.RecommendationStyle(result.Recommendation))
	fmt.Fprintf(cmd.OutOrStdout(), "confidence:     %s\n", cli.FormatConfidence(result.Confidence, result.Risk))
	fmt.Fprintf(cmd.OutOrStdout(), "summary:        %s\n", result.Summary)
	for _, match := range result.Matches {
		fmt.Fprintf(cmd.OutOrStdout(), "  level %d (%.2f): %s\n",
			match.Level, match.Confidence, strings.Join(match.Reasons, "; "))
	}
	return nil
}

// detectOne runs extraction and detection for a message without side
// effects.
func detectOne(ctx context.Context, detector *detect.Detector, msg *ingest.Message) (model.DetectionResult, error) {
	if missing := msg.Parsed.Validate(); len(missing) > 0 {
		return model.DetectionResult{}, fmt.Errorf("%w: missing %s",
			common.ErrMalformedInput, strings.Join(missing, ", "))
	}

	scope := ingest.ScopeFor(&msg.Parsed)
	ident := identify.Extract(identify.ExtractInput{
		Subject:    msg.Parsed.Subject,
		Sender:     msg.Parsed.FromEmail,
		HTMLBody:   msg.Parsed.RawContent,
		TextBody:   msg.TextBody,
		RawHeaders: msg.RawHeaders,
		Date:       msg.Parsed.Date,
		Scope:      scope,
	})
	if validation := identify.Validate(&ident); !validation.Valid() {
		return model.DetectionResult{}, fmt.Errorf("%w: %s",
			common.ErrIdentificationWeak, strings.Join(validation.Errors, ", "))
	}

	return detector.Detect(ctx, &msg.Parsed, &ident, scope), nil
}
