package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Manage tracked subjects",
}

var subjectAddCmd = &cobra.Command{
	Use:   "add <id> <email>",
	Short: "Register a subject",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		s, err := svc.RegisterSubject(context.Background(), args[0], args[1], name)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(stdout, "%s Registered %s <%s>\n", green("✓"), s.ID, s.Email)
		return nil
	},
}

var subjectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subjects, err := store.ListSubjects(context.Background())
		if err != nil {
			return err
		}
		if len(subjects) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Fprintln(stdout, gray("No subjects registered"))
			return nil
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		for _, s := range subjects {
			fmt.Fprintf(stdout, "%s  %s  %s\n", cyan(s.ID), s.Email, s.DisplayName)
		}
		return nil
	},
}

func init() {
	subjectAddCmd.Flags().String("name", "", "Display name")
	subjectCmd.AddCommand(subjectAddCmd, subjectListCmd)
	rootCmd.AddCommand(subjectCmd)
}
