// Command lifedashctl inspects and maintains the session snapshot store
// used by the lifedash server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lifedash/internal/cli"
	"lifedash/internal/config"
	applog "lifedash/internal/log"
	"lifedash/internal/session"
	"lifedash/internal/storage"
)

type options struct {
	dbPath   string
	output   string
	logLevel string
}

func main() {
	cli.LoadEnvFile()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:           "lifedashctl",
		Short:         "Inspect and maintain lifedash session snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.SetupLogger(opts.logLevel, applog.ComponentApp)
			switch opts.output {
			case outputTable, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", opts.output)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", cfg.SQLiteDBPath, "Snapshot database path")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "Output format (table, json, yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		sessionsCmd(opts),
		listCmd(opts),
		statsCmd(opts),
		eventsCmd(opts),
		purgeCmd(opts),
		ackCmd(opts),
		tokenCmd(cfg),
	)
	return cmd
}

// openStore opens the snapshot repository and a manager over it. The manager
// has no fetcher or publisher, so nothing leaves the process.
func (o *options) openStore() (*storage.SnapshotRepository, *session.Manager, error) {
	repo, err := storage.NewSnapshotRepository(o.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return repo, session.NewManager(session.ManagerConfig{}, repo), nil
}
