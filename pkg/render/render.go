// Package render prints result sets as pipe-delimited tables.
package render

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/minicluster/pkg/types"
)

// Separator delimits cells in a rendered row
const Separator = "|"

// NullText is the rendering of a SQL NULL
const NullText = "NULL"

// Decoder attempts to stringify a cell as one SQL storage class. ok is
// false when the cell is not of that class.
type Decoder struct {
	Name   string
	Decode func(v any) (s string, ok bool)
}

// Candidates are tried in order; the first decoder that accepts a cell wins
var Candidates = []Decoder{
	{Name: "integer", Decode: decodeInteger},
	{Name: "text", Decode: decodeText},
	{Name: "real", Decode: decodeReal},
	{Name: "boolean", Decode: decodeBoolean},
	{Name: "timestamp", Decode: decodeTimestamp},
	{Name: "blob", Decode: decodeBlob},
	{Name: "null", Decode: decodeNull},
}

func decodeInteger(v any) (string, bool) {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10), true
	case int:
		return strconv.Itoa(n), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	}
	return "", false
}

func decodeText(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func decodeReal(v any) (string, bool) {
	switch f := v.(type) {
	case float64:
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(f), 'f', -1, 32), true
	}
	return "", false
}

func decodeBoolean(v any) (string, bool) {
	b, ok := v.(bool)
	if !ok {
		return "", false
	}
	return strconv.FormatBool(b), true
}

func decodeTimestamp(v any) (string, bool) {
	t, ok := v.(time.Time)
	if !ok {
		return "", false
	}
	return t.Format(time.RFC3339Nano), true
}

func decodeBlob(v any) (string, bool) {
	b, ok := v.([]byte)
	if !ok {
		return "", false
	}
	return "x'" + hex.EncodeToString(b) + "'", true
}

func decodeNull(v any) (string, bool) {
	if v != nil {
		return "", false
	}
	return NullText, true
}

// Cell stringifies one cell with the first candidate that accepts it
func Cell(v any) (string, error) {
	for _, c := range Candidates {
		if s, ok := c.Decode(v); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: no decoder for cell of type %T", types.ErrRender, v)
}

func line(cells []string) string {
	return Separator + strings.Join(cells, Separator) + Separator
}

// Lines renders the result set: a header of column names followed by one
// line per row. A result set without columns renders no lines.
func Lines(rs *types.ResultSet) ([]string, error) {
	if rs == nil || len(rs.Columns) == 0 {
		return nil, nil
	}

	lines := make([]string, 0, len(rs.Rows)+1)
	lines = append(lines, line(rs.Columns))

	cells := make([]string, len(rs.Columns))
	for r, row := range rs.Rows {
		if len(row) != len(rs.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d",
				types.ErrRender, r, len(row), len(rs.Columns))
		}
		for i, v := range row {
			s, err := Cell(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, rs.Columns[i], err)
			}
			cells[i] = s
		}
		lines = append(lines, line(cells))
	}
	return lines, nil
}

// Table writes the rendered result set to w, one line per row. Nothing is
// written if any cell fails to render.
func Table(w io.Writer, rs *types.ResultSet) error {
	lines, err := Lines(rs)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, l := range lines {
		bw.WriteString(l)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
