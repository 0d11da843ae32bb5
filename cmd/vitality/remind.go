package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/vitality/internal/reminder"
	"github.com/steveyegge/vitality/internal/types"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Manage recurring reminders",
}

var remindCreateCmd = &cobra.Command{
	Use:   "create <subject> <daily|weekly|monthly> <kind> <message>",
	Short: "Create a recurring reminder",
	Long: `Create a recurring reminder.

Examples:
  vitality remind create alice daily medication "Take your vitamins"
  vitality remind create alice weekly measurement "Log this week's sample" --start 2026-03-02T08:00:00Z`,
	Args: cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, err := types.ParseFrequency(args[1])
		if err != nil {
			return err
		}
		req := reminder.CreateRequest{
			SubjectID: args[0],
			Kind:      args[2],
			Message:   strings.Join(args[3:], " "),
			Frequency: freq,
		}
		if startStr, _ := cmd.Flags().GetString("start"); startStr != "" {
			req.StartAt, err = time.Parse(time.RFC3339, startStr)
			if err != nil {
				return fmt.Errorf("invalid --start %q: %w", startStr, err)
			}
		}
		rule, err := svc.ScheduleReminder(context.Background(), req)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(stdout, "%s Created reminder %s\n", green("✓"), rule.ID)
		fmt.Fprintf(stdout, "  Next: %s\n", rule.NextFireAt.Local().Format(time.RFC1123))
		return nil
	},
}

var remindListCmd = &cobra.Command{
	Use:   "list <subject>",
	Short: "List a subject's reminders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := svc.ListReminders(context.Background(), args[0])
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Fprintln(stdout, gray("No reminders"))
			return nil
		}
		for _, r := range rules {
			printRule(r)
		}
		return nil
	},
}

var remindUpdateCmd = &cobra.Command{
	Use:   "update <rule-id>",
	Short: "Change a reminder's kind, message or frequency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var changes reminder.Changes
		if cmd.Flags().Changed("kind") {
			kind, _ := cmd.Flags().GetString("kind")
			changes.Kind = &kind
		}
		if cmd.Flags().Changed("message") {
			msg, _ := cmd.Flags().GetString("message")
			changes.Message = &msg
		}
		if cmd.Flags().Changed("frequency") {
			s, _ := cmd.Flags().GetString("frequency")
			freq, err := types.ParseFrequency(s)
			if err != nil {
				return err
			}
			changes.Frequency = &freq
		}
		rule, err := svc.UpdateReminder(context.Background(), args[0], changes)
		if err != nil {
			return err
		}
		printRule(rule)
		return nil
	},
}

var remindCancelCmd = &cobra.Command{
	Use:   "cancel <rule-id>",
	Short: "Cancel a reminder permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.CancelReminder(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Cancelled %s\n", args[0])
		return nil
	},
}

var remindSnoozeCmd = &cobra.Command{
	Use:   "snooze <rule-id>",
	Short: "Postpone the next occurrence of a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := svc.SnoozeReminder(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Snoozed %s until %s\n", rule.ID, rule.NextFireAt.Local().Format(time.RFC1123))
		return nil
	},
}

var remindDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.DeleteReminder(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted %s\n", args[0])
		return nil
	},
}

func printRule(r *types.ReminderRule) {
	cyan := color.New(color.FgCyan).SprintFunc()
	stateColor := color.New(color.FgGreen).SprintFunc()
	switch r.State {
	case types.RuleSnoozed:
		stateColor = color.New(color.FgYellow).SprintFunc()
	case types.RuleCancelled:
		stateColor = color.New(color.FgHiBlack).SprintFunc()
	}
	fmt.Fprintf(stdout, "%s  %s  %s  %s: %s\n", cyan(r.ID), stateColor(string(r.State)), r.Frequency, r.Kind, r.Message)
	fmt.Fprintf(stdout, "  Next: %s", r.NextFireAt.Local().Format("2006-01-02 15:04"))
	if r.LastFiredAt != nil {
		fmt.Fprintf(stdout, "  Last: %s", r.LastFiredAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(stdout)
}

func init() {
	remindCreateCmd.Flags().String("start", "", "Anchor time (RFC3339, default now)")
	remindUpdateCmd.Flags().String("kind", "", "New kind")
	remindUpdateCmd.Flags().String("message", "", "New message")
	remindUpdateCmd.Flags().String("frequency", "", "New frequency (daily, weekly, monthly)")
	remindCmd.AddCommand(remindCreateCmd, remindListCmd, remindUpdateCmd, remindCancelCmd, remindSnoozeCmd, remindDeleteCmd)
	rootCmd.AddCommand(remindCmd)
}
