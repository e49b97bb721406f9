// Package cli provides the Cobra commands for the ordstore CLI.
package cli

import (
	"context"
	"database/sql"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/storage"
	"github.com/nonibytes/ordstore/ordstore/storage/postgres"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlite"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

var (
	// Version is set via ldflags during build
	Version = "dev"

	backendName  string
	dbTarget     string
	pgSchema     string
	sqliteDriver string
	verbose      bool

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ordstore",
	Short: "ordstore - maintain ranked rows and run similarity searches",
	Long: `ordstore maintains dense 1..n ordinal columns across scoped sibling rows
and compiles trigram/full-text similarity queries against Postgres.

Get started:
  ordstore reorder --table tasks --position-column position --id 7 --position 2
  ordstore search  --table posts --column title --term "postgres trigram"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "sqlite", "database backend (sqlite|postgres)")
	rootCmd.PersistentFlags().StringVar(&dbTarget, "db", "ordstore.db", "sqlite path or postgres DSN")
	rootCmd.PersistentFlags().StringVar(&pgSchema, "pg-schema", "", "dedicated postgres schema (optional)")
	rootCmd.PersistentFlags().StringVar(&sqliteDriver, "sqlite-driver", sqlite.DriverPure, "sqlite driver (sqlite|sqlite3)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func openAdapter(ctx context.Context) (storage.Adapter, *sql.DB, error) {
	var adapter storage.Adapter
	switch backendName {
	case "postgres":
		adapter = postgres.New(dbTarget, pgSchema)
	case "sqlite":
		adapter = sqlite.NewWithDriver(dbTarget, sqliteDriver)
	default:
		return nil, nil, ordstore.ConfigError("unknown backend " + backendName)
	}
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, nil, ordstore.Wrap(ordstore.ErrSQL, "connect to "+backendName, err)
	}
	return adapter, db, nil
}
