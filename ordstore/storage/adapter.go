package storage

import (
	"context"
	"database/sql"

	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Capabilities describes which SQL constructs a backend can execute. The
// sortable engine needs IncrementUpdate and WindowNumbering; the similarity
// engine needs the trigram/full-text family. Engines fail fast with a
// config error when the capability is missing rather than emitting SQL the
// backend cannot run.
type Capabilities struct {
	IncrementUpdate bool
	WindowNumbering bool

	TrigramSimilarity bool
	WordSimilarity    bool
	FullTextRank      bool
}

// Adapter abstracts database-specific connection and dialect concerns.
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	Capabilities() Capabilities

	Connect(ctx context.Context) (*sql.DB, error)
	Close() error
}

// Queryer is the intersection of *sql.DB and *sql.Tx the engines run
// statements against.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
