package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sievefin/tradesift/internal/cli"
	"github.com/sievefin/tradesift/internal/common"
	"github.com/sievefin/tradesift/internal/config"
	"github.com/sievefin/tradesift/internal/model"
	"github.com/sievefin/tradesift/internal/queue"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and work the manual review queue",
	}

	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueShowCmd())
	cmd.AddCommand(queueClaimCmd())
	cmd.AddCommand(queueReviewCmd())
	cmd.AddCommand(queueReleaseCmd())
	cmd.AddCommand(queueSweepCmd())
	cmd.AddCommand(queueStatsCmd())
	return cmd
}

// friendlyQueueError maps queue business errors to messages a reviewer at
// the terminal can act on. Unknown errors pass through unchanged.
func friendlyQueueError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, queue.ErrItemNotFound):
		return common.NewUserError("no queue item with that id (see 'tradesift queue list')", err)
	case errors.Is(err, queue.ErrNotPending):
		return common.NewUserError("item is already claimed or decided", err)
	case errors.Is(err, queue.ErrNotInReview):
		return common.NewUserError("item is not currently claimed", err)
	case errors.Is(err, queue.ErrNotReviewable):
		return common.NewUserError("item has already been decided", err)
	case errors.Is(err, queue.ErrInvalidAction):
		return common.NewUserError("unknown review action (use approve, reject, escalate, defer, merge, or split)", err)
	case errors.Is(err, queue.ErrBadReviewerID):
		return common.NewUserError("reviewer id is missing or reserved", err)
	}
	return err
}

// queuePath returns the snapshot file the CLI persists queue state in
// between invocations.
func queuePath() string {
	path := viper.GetString("queue.snapshot_path")
	if path == "" {
		path = "~/.local/share/tradesift/queue.json"
	}
	return config.ExpandPath(path)
}

func loadQueue() (*queue.ReviewQueue, error) {
	q := queue.NewWithConfig(config.QueueConfig())

	f, err := os.Open(queuePath())
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open queue snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := q.ReadSnapshot(f); err != nil {
		return nil, err
	}
	return q, nil
}

func saveQueue(q *queue.ReviewQueue) error {
	path := queuePath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write queue snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	return q.WriteSnapshot(f)
}

func queueListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review queue items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := loadQueue()
			if err != nil {
				return err
			}

			filter := queue.Filter{}
			if s, _ := cmd.Flags().GetString("status"); s != "" {
				filter.Status = model.ReviewStatus(s)
			}
			if p, _ := cmd.Flags().GetString("priority"); p != "" {
				filter.Priority = model.ReviewPriority(p)
			}
			if sym, _ := cmd.Flags().GetString("symbol"); sym != "" {
				filter.Symbol = sym
			}
			if tags, _ := cmd.Flags().GetStringSlice("tag"); len(tags) > 0 {
				filter.Tags = tags
			}

			sortBy, _ := cmd.Flags().GetString("sort")
			desc, _ := cmd.Flags().GetBool("desc")
			offset, _ := cmd.Flags().GetInt("offset")
			limit, _ := cmd.Flags().GetInt("limit")

			items := q.List(filter, queue.ListOptions{
				SortBy:     sortBy,
				Descending: desc,
				Offset:     offset,
				Limit:      limit,
			})
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, cli.TableHeaderStyle.Render("ID\tSTATUS\tPRIORITY\tSYMBOL\tCONFIDENCE\tRISK\tESC\tQUEUED"))
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%d\t%s\n",
					shortID(item.ID),
					item.Status,
					cli.PriorityStyle(item.Priority),
					item.Transaction.Symbol,
					item.Detection.Confidence,
					item.RiskScore,
					item.EscalationLevel,
					item.QueuedAt.Format("2006-01-02 15:04"),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("status", "", "filter by status (pending, in_review, approved, rejected, deferred)")
	cmd.Flags().String("priority", "", "filter by priority (low, medium, high, urgent)")
	cmd.Flags().String("symbol", "", "filter by symbol")
	cmd.Flags().StringSlice("tag", nil, "filter by tag (repeatable)")
	cmd.Flags().String("sort", "", "sort field (queued_at, priority, confidence, risk_score, escalation_level)")
	cmd.Flags().Bool("desc", false, "sort descending")
	cmd.Flags().Int("offset", 0, "pagination offset")
	cmd.Flags().Int("limit", 50, "pagination limit")
	return cmd
}

func queueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [item-id]",
		Short: "Show one queue item in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := loadQueue()
			if err != nil {
				return err
			}
			item, err := q.Get(args[0])
			if err != nil {
				return friendlyQueueError(err)
			}

			encoded, err := json.MarshalIndent(item, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode item: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}

func queueClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim [item-id] [reviewer-id]",
		Short: "Claim a pending item for review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := loadQueue()
			if err != nil {
				return err
			}
			if err := q.Claim(args[0], args[1]); err != nil {
				return friendlyQueueError(err)
			}
			if err := saveQueue(q); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("claimed %s for %s", shortID(args[0]), args[1])))
			return nil
		},
	}
}

func queueReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review [item-id] [action] [reviewer-id]",
		Short: "Apply a review action to an item",
		Long: `Apply a review action to a queue item.

Actions: approve, reject, escalate, defer, merge, split.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")

			q, err := loadQueue()
			if err != nil {
				return err
			}
			if err := q.Review(args[0], model.ReviewAction(args[1]), args[2], notes); err != nil {
				return friendlyQueueError(err)
			}
			if err := saveQueue(q); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s applied to %s", args[1], shortID(args[0]))))
			return nil
		},
	}

	cmd.Flags().String("notes", "", "review notes")
	return cmd
}

func queueReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release [item-id]",
		Short: "Return an in-review item to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := loadQueue()
			if err != nil {
				return err
			}
			if err := q.Release(args[0]); err != nil {
				return friendlyQueueError(err)
			}
			if err := saveQueue(q); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("released %s", shortID(args[0]))))
			return nil
		},
	}
}

func queueSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the expiry sweep and auto-escalation check",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := loadQueue()
			if err != nil {
				return err
			}

			expired := q.SweepExpired()
			escalated := q.CheckEscalations()

			if err := saveQueue(q); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("sweep complete: %d expired, %d escalated", expired, escalated)))
			return nil
		},
	}
}

func queueStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics and health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			q, err := loadQueue()
			if err != nil {
				return err
			}
			stats := q.Stats()

			if asJSON {
				encoded, encErr := json.MarshalIndent(stats, "", "  ")
				if encErr != nil {
					return fmt.Errorf("failed to encode stats: %w", encErr)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle("Review queue"))
			fmt.Fprintf(out, "size:            %d / %d\n", stats.Size, stats.Capacity)
			fmt.Fprintf(out, "health score:    %.0f / 100\n", stats.HealthScore)
			if stats.AvgReviewLatency > 0 {
				fmt.Fprintf(out, "avg latency:     %s\n", stats.AvgReviewLatency.Round(time.Minute))
			}
			if stats.OldestPending != nil {
				fmt.Fprintf(out, "oldest pending:  %s\n", stats.OldestPending.Format(time.RFC3339))
			}

			var lines []string
			for status, count := range stats.ByStatus {
				lines = append(lines, fmt.Sprintf("%s=%d", status, count))
			}
			fmt.Fprintf(out, "by status:       %s\n", strings.Join(lines, " "))

			lines = lines[:0]
			for priority, count := range stats.ByPriority {
				lines = append(lines, fmt.Sprintf("%s=%d", priority, count))
			}
			fmt.Fprintf(out, "by priority:     %s\n", strings.Join(lines, " "))
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Emit statistics as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
