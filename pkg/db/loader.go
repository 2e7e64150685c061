package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/cuemby/minicluster/pkg/types"
)

// TypeSeparator splits a header field into column name and SQL type
const TypeSeparator = "_"

// sqlType matches the type half of a header field, e.g. INTEGER, TEXT,
// VARCHAR(32), DECIMAL(10,2), DOUBLE PRECISION, id_INTEGER. SQLite accepts
// any name as a type and derives column affinity from its text.
var sqlType = regexp.MustCompile(`^[A-Za-z0-9_ (),]*[A-Za-z0-9_)]$`)

// Column is one column declared by a header field
type Column struct {
	Name  string
	Type  string
	Index int // position of the field in each record
}

// ParseHeader derives columns from header fields of the form <name>_<type>.
// Empty fields are skipped. The name is everything before the first
// separator, so first_name_TEXT is column "first" of type "name_TEXT".
func ParseHeader(fields []string) ([]Column, error) {
	var columns []Column
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, typ, ok := strings.Cut(field, TypeSeparator)
		if !ok {
			return nil, fmt.Errorf("%w: header field %q has no type", types.ErrSchema, field)
		}
		if name == "" {
			return nil, fmt.Errorf("%w: header field %q has no column name", types.ErrSchema, field)
		}
		if !sqlType.MatchString(typ) {
			return nil, fmt.Errorf("%w: header field %q has invalid type %q", types.ErrSchema, field, typ)
		}
		columns = append(columns, Column{Name: name, Type: typ, Index: i})
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: header declares no columns", types.ErrSchema)
	}
	return columns, nil
}

func createTableSQL(table string, columns []Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c.Name) + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func insertSQL(table string, n int) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), marks)
}

// Load creates table from the delimited file at source and inserts every
// data row. If the table already exists the call is a no-op: the contents
// are never compared with the source. Creation and inserts share one
// transaction, so a failure leaves no table behind.
func (g *Gateway) Load(ctx context.Context, table, source string) error {
	return g.withDB(ctx, func(db *sql.DB) error {
		exists, err := tableExists(ctx, db, table)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("%w: failed to open %s: %w", types.ErrSchema, source, err)
		}
		defer f.Close()

		return loadRecords(ctx, db, table, f)
	})
}

func loadRecords(ctx context.Context, db *sql.DB, table string, src io.Reader) error {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: source file is empty", types.ErrSchema)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read header: %w", types.ErrSchema, err)
	}

	columns, err := ParseHeader(header)
	if err != nil {
		return err
	}
	width := len(header)
	required := columns[len(columns)-1].Index + 1

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin load: %w", types.ErrDatabase, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTableSQL(table, columns)); err != nil {
		return fmt.Errorf("%w: failed to create table %s: %w", types.ErrDatabase, table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, len(columns)))
	if err != nil {
		return fmt.Errorf("%w: failed to prepare insert into %s: %w", types.ErrDatabase, table, err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: failed to read row %d: %w", types.ErrSchema, line, err)
		}
		if len(record) < required || len(record) > width {
			return fmt.Errorf("%w: row %d has %d fields, header has %d",
				types.ErrSchema, line, len(record), width)
		}

		for i, c := range columns {
			args[i] = record[c.Index]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: failed to insert row %d into %s: %w", types.ErrDatabase, line, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit load of %s: %w", types.ErrDatabase, table, err)
	}
	return nil
}
