package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/vitality/internal/types"
)

var logCmd = &cobra.Command{
	Use:   "log <subject> <metric> <value>",
	Short: "Record a measurement",
	Long: `Record a measurement for a subject.

Metrics: count (millions/mL, >= 0), motility (%), morphology (%).

Examples:
  vitality log alice count 42
  vitality log alice motility 55 --at 2026-03-01`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		metric, err := types.ParseMetricType(args[1])
		if err != nil {
			return err
		}
		value, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[2], err)
		}
		takenAt := time.Now().UTC()
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			takenAt, err = time.Parse("2006-01-02", at)
			if err != nil {
				return fmt.Errorf("invalid --at date %q: %w", at, err)
			}
		}
		if err := svc.IngestSample(context.Background(), args[0], metric, takenAt, value); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(stdout, "%s Logged %s = %g for %s\n", green("✓"), metric, value, args[0])
		return nil
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend <subject> <metric>",
	Short: "Show the trend of a metric",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		metric, err := types.ParseMetricType(args[1])
		if err != nil {
			return err
		}
		window, _ := cmd.Flags().GetInt("window")
		tr, err := svc.GetTrend(context.Background(), args[0], metric, window)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %s\n", metric, tr.Direction)
		fmt.Fprintf(stdout, "  Confidence: %.2f\n", tr.Confidence)
		fmt.Fprintf(stdout, "  Slope:      %+.3f per day\n", tr.Slope)
		fmt.Fprintf(stdout, "  Samples:    %d\n", tr.Samples)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <subject>",
	Short: "Show goals, trends and measurements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := svc.Report(context.Background(), args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Fprintf(stdout, "\n%s\n\n", cyan("=== Report for "+report.SubjectID+" ==="))
		for _, m := range types.AllMetrics {
			status := report.Statuses[m]
			tr := report.Trends[m]
			fmt.Fprintf(stdout, "%-11s %s  latest %.1f / goal %.1f  trend %s (%.2f)  %d samples\n",
				m, colorState(status.State), status.Latest, status.Target,
				tr.Direction, tr.Confidence, len(report.Metrics[m]))
		}
		fmt.Fprintln(stdout)
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <subject>",
	Short: "Generate advice and show the advice history",
	Long: `Generate advice for every metric whose cool-down has elapsed.

With --history the stored advice is listed without generating anything.
With --deliver new advice is also sent through the configured channel.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		history, _ := cmd.Flags().GetBool("history")
		deliver, _ := cmd.Flags().GetBool("deliver")

		var recs []*types.Recommendation
		var err error
		if history {
			recs, err = svc.ListRecommendations(ctx, args[0])
		} else {
			recs, err = svc.RefreshRecommendations(ctx, args[0])
		}
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Fprintln(stdout, gray("No new advice"))
			return nil
		}
		yellow := color.New(color.FgYellow).SprintFunc()
		for _, rec := range recs {
			fmt.Fprintf(stdout, "%s %s %s\n", rec.CreatedAt.Local().Format("2006-01-02"), yellow("["+string(rec.Metric)+"]"), rec.Text)
		}
		if deliver && !history {
			res := svc.DeliverRecommendations(ctx, recs)
			fmt.Fprintf(stdout, "Delivered %d, failed %d\n", res.Delivered, res.Failed)
		}
		return nil
	},
}

func colorState(s types.GoalState) string {
	switch s {
	case types.GoalOnTrack:
		return color.GreenString("%-9s", s)
	case types.GoalAtRisk:
		return color.YellowString("%-9s", s)
	default:
		return color.RedString("%-9s", s)
	}
}

func init() {
	logCmd.Flags().String("at", "", "Measurement date (YYYY-MM-DD, default today)")
	trendCmd.Flags().Int("window", 0, "Number of trailing samples (default from config)")
	reportCmd.Flags().Bool("json", false, "Output JSON")
	recommendCmd.Flags().Bool("history", false, "List stored advice instead of generating")
	recommendCmd.Flags().Bool("deliver", false, "Send new advice through the delivery channel")
	rootCmd.AddCommand(logCmd, trendCmd, reportCmd, recommendCmd)
}
