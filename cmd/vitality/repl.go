package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/vitality/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start interactive shell",
	Long: `Start an interactive shell for logging measurements, reviewing trends
and managing reminders.

Type 'help' in the shell for available commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		r, err := repl.New(&repl.Config{Service: svc, Subject: subject})
		if err != nil {
			return fmt.Errorf("failed to create REPL: %w", err)
		}
		return r.Run(context.Background())
	},
}

func init() {
	replCmd.Flags().String("subject", "", "Subject to select on start")
	rootCmd.AddCommand(replCmd)
}
