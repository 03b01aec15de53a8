// Package cli provides the command-line interface for rafeeq.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/rafeeq/internal/client"
	"github.com/raphaelgruber/rafeeq/internal/config"
	"github.com/raphaelgruber/rafeeq/internal/metrics"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	userID    string
	asJSON    bool
	serverURL string

	// Global config and services
	cfg           config.Config
	storage       *service.Storage
	journal       Backend
	closeLog      func() error
	skipBootstrap = map[string]bool{"version": true, "help": true, "completion": true}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rafeeq",
	Short: "Resilient study-journal companion",
	Long: `Rafeeq analyzes daily study reflections and plans tomorrow.

Each analysis walks a chain of AI and web-search providers, falls back to
past analyses from local memory, and as a last resort answers offline.
Every result is stored so similar reflections are answered instantly.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipBootstrap[cmd.Name()] {
			return nil
		}

		cfg = config.Load()

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		var logger *slog.Logger
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		if serverURL == "" {
			serverURL = os.Getenv("RAFEEQ_SERVER_URL")
		}
		if serverURL != "" {
			slog.Debug("using remote server", "url", serverURL)
			journal = client.New(serverURL)
			return nil
		}

		ctx := cmd.Context()
		var err error
		storage, err = service.OpenStorage(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}

		health := provider.NewHealthRegistry(cfg.Cooldown)
		collector := metrics.NewCollector(nil)
		journal = localBackend{service.NewJournal(service.Deps{
			Local:     storage.Local,
			Remote:    storage.Remote,
			Providers: service.BuildProviders(ctx, cfg, health, collector),
			Health:    health,
			Metrics:   collector,
			Mirror:    storage.Mirror(),
		}, service.Options(cfg)...)}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func shutdown() {
	if journal != nil {
		journal.Close()
	}
	if storage != nil {
		storage.Close(context.Background())
	}
	if closeLog != nil {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", service.DefaultUser, "journal user id")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of formatted output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "rafeeq-server URL (default: local storage, or RAFEEQ_SERVER_URL)")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(inspireCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rafeeq %s\n", Version)
	},
}
