package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/minicluster/pkg/types"

	// Registers the pure-Go "sqlite" database/sql driver
	_ "github.com/glebarez/go-sqlite"
)

// DriverName is the database/sql driver the gateway opens
const DriverName = "sqlite"

// Gateway owns the embedded store file. It holds no connection: every call
// opens one, uses it, and closes it before returning.
type Gateway struct {
	path string
}

// NewGateway returns a gateway for the store file at path. The file and its
// parent directories are created on first use.
func NewGateway(path string) *Gateway {
	return &Gateway{path: path}
}

// Path returns the store file path
func (g *Gateway) Path() string {
	return g.path
}

func (g *Gateway) dsn() string {
	return g.path + "?_pragma=busy_timeout(5000)"
}

// connect opens a single-connection handle on the store file
func (g *Gateway) connect(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %w", types.ErrDatabase, err)
	}

	db, err := sql.Open(DriverName, g.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", types.ErrDatabase, g.path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", types.ErrDatabase, g.path, err)
	}
	return db, nil
}

// withDB runs fn on a fresh connection and closes it afterwards
func (g *Gateway) withDB(ctx context.Context, fn func(*sql.DB) error) error {
	db, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// Ping opens and closes a connection, creating the store file if needed
func (g *Gateway) Ping(ctx context.Context) error {
	return g.withDB(ctx, func(*sql.DB) error { return nil })
}

// Execute runs a statement that is not expected to return rows
func (g *Gateway) Execute(ctx context.Context, query string, args ...any) error {
	return g.withDB(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: failed to execute statement: %w", types.ErrDatabase, err)
		}
		return nil
	})
}

// Query runs a statement and collects its full result set
func (g *Gateway) Query(ctx context.Context, query string, args ...any) (*types.ResultSet, error) {
	var result *types.ResultSet
	err := g.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%w: failed to run query: %w", types.ErrDatabase, err)
		}
		defer rows.Close()

		result, err = collect(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// collect drains rows into a result set, keeping each cell as the driver
// returned it
func collect(rows *sql.Rows) (*types.ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read columns: %w", types.ErrDatabase, err)
	}

	result := &types.ResultSet{Columns: columns}
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: failed to decode row: %w", types.ErrDatabase, err)
		}
		result.Rows = append(result.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read rows: %w", types.ErrDatabase, err)
	}
	return result, nil
}

// TableExists looks the table up in the catalog
func (g *Gateway) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := g.withDB(ctx, func(db *sql.DB) error {
		var err error
		exists, err = tableExists(ctx, db, table)
		return err
	})
	return exists, err
}

// queryRower is satisfied by *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryRower, table string) (bool, error) {
	var name string
	err := q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: failed to look up table %s: %w", types.ErrDatabase, table, err)
	}
	return true, nil
}

// Drop removes the table if it exists
func (g *Gateway) Drop(ctx context.Context, table string) error {
	return g.Execute(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table))
}

// LoadTable reads the whole table back
func (g *Gateway) LoadTable(ctx context.Context, table string) (*types.ResultSet, error) {
	return g.Query(ctx, "SELECT * FROM "+quoteIdent(table))
}

// DropDatabase deletes the store file and its journal files. A missing file
// is not an error.
func (g *Gateway) DropDatabase() error {
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(g.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: failed to remove %s: %w", types.ErrDatabase, g.path+suffix, err)
		}
	}
	return nil
}

// quoteIdent quotes an identifier for use in generated SQL
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
