package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/steveyegge/vitality/internal/config"
	"github.com/steveyegge/vitality/internal/core"
	"github.com/steveyegge/vitality/internal/storage"
)

// Version is stamped at build time
var Version = "dev"

var (
	dbPath     string
	configPath string

	// stdout receives command output
	stdout io.Writer = os.Stdout

	cfg    *config.Config
	store  storage.Storage
	svc    *core.Service
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vitality",
	Short: "Track health metrics, goals, advice and reminders",
	Long: `vitality tracks count, motility and morphology measurements for each subject,
classifies their trends against goals, generates advice, and delivers recurring reminders.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			cfg.Database.Path = dbPath
		}
		logger = config.SetupLogger(cfg.Env)

		store, err = storage.NewStorage(context.Background(), &storage.Config{Path: cfg.Database.Path})
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		svc, err = core.FromConfig(cfg, store, stdout, logger)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", storage.DefaultPath, "Database path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("VITALITY_CONFIG"), "YAML configuration file")
	rootCmd.Version = Version
}

// execute runs the command tree and always closes the store, including when
// the command failed
func execute() error {
	err := rootCmd.Execute()
	if store != nil {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
		store = nil
	}
	return err
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
