package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/vitality/internal/storage"
	"github.com/steveyegge/vitality/internal/storage/sqlite"
	"github.com/steveyegge/vitality/internal/types"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler pass and deliver due reminders",
	Long: `Run one scheduler pass over every active reminder and deliver the reminders
that are due. A rule that missed several occurrences fires once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		at := time.Now()
		if atStr, _ := cmd.Flags().GetString("at"); atStr != "" {
			var err error
			if at, err = time.Parse(time.RFC3339, atStr); err != nil {
				return fmt.Errorf("invalid --at %q: %w", atStr, err)
			}
		}
		res, err := svc.Tick(ctx, at)
		if err != nil {
			return err
		}
		red := color.New(color.FgRed).SprintFunc()
		for _, f := range res.Failures {
			fmt.Fprintf(stdout, "%s rule %s: %v\n", red("✗"), f.RuleID, f.Err)
		}
		batch := svc.Dispatch(ctx, res.Jobs, nil)
		printBatch(len(res.Jobs), batch)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reminder scheduler until interrupted",
	Long: `Run the reminder scheduler in the foreground, delivering reminders as they
come due. Only one scheduler may run against a database at a time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lockPath, err := storage.AcquireRunLock(cfg.Database.Path, Version)
		if err != nil {
			return err
		}
		defer func() {
			if err := storage.ReleaseRunLock(lockPath); err != nil {
				logger.Warn("failed to release scheduler lock", "error", err)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(stdout, "%s scheduler running every %s (Ctrl+C to stop)\n", cyan("●"), cfg.Scheduler.Interval)
		if err := svc.Run(ctx); err != nil {
			return fmt.Errorf("scheduler stopped: %w", err)
		}
		fmt.Fprintln(stdout, "Scheduler stopped")
		return nil
	},
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <subject-line> <body>",
	Short: "Send a notification to every subject",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := svc.Broadcast(context.Background(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printBatch(res.Delivered+res.Failed, res)
		return nil
	},
}

var inboxCmd = &cobra.Command{
	Use:   "inbox <subject>",
	Short: "Show a subject's in-app notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if id, _ := cmd.Flags().GetString("read"); id != "" {
			if err := svc.MarkRead(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Marked %s read\n", id)
			return nil
		}
		unread, _ := cmd.Flags().GetBool("unread")
		items, err := svc.Inbox(ctx, args[0], unread)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Fprintln(stdout, gray("Inbox is empty"))
			return nil
		}
		bold := color.New(color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, item := range items {
			title := bold(item.Subject)
			if item.ReadAt != nil {
				title = gray(item.Subject)
			}
			fmt.Fprintf(stdout, "%s  %s  %s\n", gray(item.ID), item.CreatedAt.Local().Format("2006-01-02 15:04"), title)
			fmt.Fprintf(stdout, "  %s\n", item.Body)
		}
		return nil
	},
}

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Show recent delivery outcomes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter sqlite.DeliveryFilter
		status, _ := cmd.Flags().GetString("status")
		filter.Status = types.JobStatus(status)
		filter.RuleID, _ = cmd.Flags().GetString("rule")
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		attempts, err := svc.Deliveries(context.Background(), filter)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Fprintln(stdout, gray("No deliveries recorded"))
			return nil
		}
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		for _, a := range attempts {
			mark := green("✓")
			if a.Status != types.JobDelivered {
				mark = red("✗")
			}
			fmt.Fprintf(stdout, "%s %s  %-20s %-28s attempts=%d", mark, a.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				a.Recipient, a.Source, a.Attempts)
			if a.LastError != "" {
				fmt.Fprintf(stdout, "  %s", red(a.LastError))
			}
			fmt.Fprintln(stdout)
		}
		return nil
	},
}

func printBatch(total int, res types.BatchResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(stdout, "%d notification(s): %s delivered, %s failed\n", total,
		green(fmt.Sprintf("%d", res.Delivered)), red(fmt.Sprintf("%d", res.Failed)))
	for _, job := range res.Jobs {
		fmt.Fprintf(stdout, "  %s %s: %s\n", red("✗"), job.Recipient, job.LastError)
	}
}

func init() {
	tickCmd.Flags().String("at", "", "Evaluate reminders as of this instant (RFC3339, default now)")
	inboxCmd.Flags().Bool("unread", false, "Only unread items")
	inboxCmd.Flags().String("read", "", "Mark the given item read")
	attemptsCmd.Flags().String("status", "", "Filter by status (delivered, failed-transient, failed-permanent)")
	attemptsCmd.Flags().String("rule", "", "Filter by reminder rule id")
	attemptsCmd.Flags().Int("limit", 20, "Maximum rows")
	rootCmd.AddCommand(tickCmd, runCmd, broadcastCmd, inboxCmd, attemptsCmd)
}
