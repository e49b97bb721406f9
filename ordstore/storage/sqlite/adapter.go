// Package sqlite backs development and the test suite. Modern SQLite runs
// the increment/window-function SQL the sortable engine emits, but has no
// trigram extension, so similarity queries fail fast on this backend.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/nonibytes/ordstore/ordstore/storage"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

// Driver names as registered by the two supported sqlite drivers.
const (
	DriverPure = "sqlite"  // modernc.org/sqlite
	DriverCGo  = "sqlite3" // github.com/mattn/go-sqlite3
)

type Adapter struct {
	Path       string
	DriverName string
}

func New(path string) *Adapter {
	return &Adapter{Path: path, DriverName: DriverPure}
}

func NewWithDriver(path, driver string) *Adapter {
	return &Adapter{Path: path, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) Capabilities() storage.Capabilities {
	return storage.Capabilities{
		IncrementUpdate: true,
		WindowNumbering: true,
	}
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	dsn := a.Path
	if !strings.Contains(dsn, "?") {
		dsn = dsn + "?_busy_timeout=5000&_foreign_keys=on"
	} else {
		dsn = dsn + "&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open(a.DriverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Close() error {
	return nil
}
