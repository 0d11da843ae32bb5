package repl

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/vitality/internal/types"
)

var errNoSubject = errors.New("no subject selected (use 'use <subject>')")

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["subjects"] = r.cmdSubjects
	r.commands["use"] = r.cmdUse
	r.commands["log"] = r.cmdLog
	r.commands["trend"] = r.cmdTrend
	r.commands["status"] = r.cmdStatus
	r.commands["recommend"] = r.cmdRecommend
	r.commands["advice"] = r.cmdAdvice
	r.commands["remind"] = r.cmdRemind
	r.commands["reminders"] = r.cmdReminders
	r.commands["cancel"] = r.cmdCancel
	r.commands["snooze"] = r.cmdSnooze
	r.commands["tick"] = r.cmdTick
	r.commands["inbox"] = r.cmdInbox
}

func (r *REPL) commandNames() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *REPL) current() (string, error) {
	if r.subject == "" {
		return "", errNoSubject
	}
	return r.subject, nil
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the console"},
		{"subjects", "List registered subjects"},
		{"use <subject>", "Select the subject other commands act on"},
		{"log <metric> <value> [YYYY-MM-DD]", "Record a sample (count, motility, morphology)"},
		{"trend <metric> [window]", "Show the trend of a metric"},
		{"status", "Show goal status for every metric"},
		{"recommend", "Generate advice the cool-down allows"},
		{"advice", "Show advice history"},
		{"remind <daily|weekly|monthly> <kind> <message>", "Create a recurring reminder"},
		{"reminders", "List reminders"},
		{"cancel <rule-id>", "Cancel a reminder"},
		{"snooze <rule-id>", "Snooze a reminder"},
		{"tick", "Run one scheduler pass now and deliver due reminders"},
		{"inbox", "Show in-app notifications"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	return errExit
}

func (r *REPL) cmdSubjects(args []string) error {
	subjects, err := r.svc.Store().ListSubjects(r.ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Fprintln(r.out, "No subjects registered")
		return nil
	}
	for _, s := range subjects {
		marker := " "
		if s.ID == r.subject {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s  %s  %s\n", marker, s.ID, s.Email, s.DisplayName)
	}
	return nil
}

func (r *REPL) cmdUse(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <subject>")
	}
	if _, err := r.svc.Store().GetSubject(r.ctx, args[0]); err != nil {
		return err
	}
	r.subject = args[0]
	fmt.Fprintf(r.out, "Now using %s\n", args[0])
	return nil
}

func (r *REPL) cmdLog(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: log <metric> <value> [YYYY-MM-DD]")
	}
	metric, err := types.ParseMetricType(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}
	takenAt := time.Now().UTC()
	if len(args) == 3 {
		takenAt, err = time.Parse("2006-01-02", args[2])
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", args[2], err)
		}
	}
	if err := r.svc.IngestSample(r.ctx, subject, metric, takenAt, value); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%s Logged %s = %g at %s\n", green("✓"), metric, value, takenAt.Format("2006-01-02"))
	return nil
}

func (r *REPL) cmdTrend(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: trend <metric> [window]")
	}
	metric, err := types.ParseMetricType(args[0])
	if err != nil {
		return err
	}
	window := 0
	if len(args) == 2 {
		if window, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid window %q: %w", args[1], err)
		}
	}
	tr, err := r.svc.GetTrend(r.ctx, subject, metric, window)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s: %s (confidence %.2f, slope %+.2f/day, %d samples)\n",
		metric, directionColor(tr.Direction), tr.Confidence, tr.Slope, tr.Samples)
	return nil
}

func (r *REPL) cmdStatus(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	for _, metric := range types.AllMetrics {
		status, err := r.svc.GetGoalStatus(r.ctx, subject, metric)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%-11s %s  latest %.1f / goal %.1f\n",
			metric, stateColor(status.State), status.Latest, status.Target)
	}
	return nil
}

func (r *REPL) cmdRecommend(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	recs, err := r.svc.RefreshRecommendations(r.ctx, subject)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(r.out, "No new advice (recent advice still applies)")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(r.out, "[%s] %s\n", rec.Metric, rec.Text)
	}
	return nil
}

func (r *REPL) cmdAdvice(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	recs, err := r.svc.ListRecommendations(r.ctx, subject)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(r.out, "No advice yet")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(r.out, "%s [%s] %s\n", rec.CreatedAt.Format("2006-01-02"), rec.Metric, rec.Text)
	}
	return nil
}

func (r *REPL) cmdRemind(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	if len(args) < 3 {
		return fmt.Errorf("usage: remind <daily|weekly|monthly> <kind> <message>")
	}
	freq, err := types.ParseFrequency(args[0])
	if err != nil {
		return err
	}
	rule, err := r.svc.CreateReminder(r.ctx, subject, args[1], strings.Join(args[2:], " "), freq)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Created reminder %s, next at %s\n", rule.ID, rule.NextFireAt.Local().Format(time.RFC1123))
	return nil
}

func (r *REPL) cmdReminders(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	rules, err := r.svc.ListReminders(r.ctx, subject)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(r.out, "No reminders")
		return nil
	}
	for _, rule := range rules {
		fmt.Fprintf(r.out, "%s  %-8s %-10s %s  next %s\n", rule.ID, rule.Frequency, rule.State,
			rule.Kind, rule.NextFireAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (r *REPL) cmdCancel(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cancel <rule-id>")
	}
	if err := r.svc.CancelReminder(r.ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Cancelled %s\n", args[0])
	return nil
}

func (r *REPL) cmdSnooze(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snooze <rule-id>")
	}
	rule, err := r.svc.SnoozeReminder(r.ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Snoozed %s until %s\n", rule.ID, rule.NextFireAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func (r *REPL) cmdTick(args []string) error {
	res, err := r.svc.Tick(r.ctx, time.Now())
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		fmt.Fprintf(r.out, "rule %s failed: %v\n", f.RuleID, f.Err)
	}
	batch := r.svc.Dispatch(r.ctx, res.Jobs, nil)
	fmt.Fprintf(r.out, "%d reminders fired, %d delivered, %d failed\n", len(res.Jobs), batch.Delivered, batch.Failed)
	return nil
}

func (r *REPL) cmdInbox(args []string) error {
	subject, err := r.current()
	if err != nil {
		return err
	}
	items, err := r.svc.Inbox(r.ctx, subject, false)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(r.out, "Inbox is empty")
		return nil
	}
	bold := color.New(color.Bold).SprintFunc()
	for _, item := range items {
		marker := bold("•")
		if item.ReadAt != nil {
			marker = " "
		}
		fmt.Fprintf(r.out, "%s %s  %s: %s\n", marker, item.CreatedAt.Local().Format("2006-01-02 15:04"), item.Subject, item.Body)
	}
	return nil
}

func directionColor(d types.Direction) string {
	switch d {
	case types.DirectionIncreasing:
		return color.GreenString(string(d))
	case types.DirectionDecreasing:
		return color.RedString(string(d))
	case types.DirectionStable:
		return color.CyanString(string(d))
	default:
		return color.YellowString(string(d))
	}
}

func stateColor(s types.GoalState) string {
	switch s {
	case types.GoalOnTrack:
		return color.GreenString("%-9s", s)
	case types.GoalAtRisk:
		return color.YellowString("%-9s", s)
	default:
		return color.RedString("%-9s", s)
	}
}
