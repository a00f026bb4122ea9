package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"tendertriage/internal/blob"
)

// Canonical column names of the tender dataset.
const (
	ColumnID        = "tender_id"
	ColumnAmount    = "tender_value_amount"
	ColumnTenderers = "tender_numberOfTenderers"
	ColumnPublished = "tender_datePublished"
	ColumnBuyer     = "buyer_name"
	utf8BOM         = "\ufeff"
)

// RawRow maps a column name to its unparsed cell.
type RawRow map[string]string

// Source yields raw tender rows. limit <= 0 reads everything.
type Source interface {
	Rows(ctx context.Context, limit int) ([]RawRow, error)
	Describe() string
}

// BlobSource reads a CSV object with a header row from a blob store.
type BlobSource struct {
	Store blob.Store
	Key   string
}

// Describe names the object being read.
func (s BlobSource) Describe() string {
	return fmt.Sprintf("%s:%s", s.Store.Driver(), s.Key)
}

// Rows parses the CSV object.
func (s BlobSource) Rows(ctx context.Context, limit int) ([]RawRow, error) {
	_, rc, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Describe(), err)
	}
	defer func() { _ = rc.Close() }()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", s.Describe(), ErrMissingColumns{Missing: []string{ColumnID, ColumnAmount}})
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := normalizeHeader(header)
	if err := requireColumns(columns); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Describe(), err)
	}

	var rows []RawRow
	for limit <= 0 || len(rows) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make(RawRow, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SQLSource runs a query whose result columns carry the canonical names.
type SQLSource struct {
	DB    *sql.DB
	Query string
	Name  string
}

// Describe names the database being read.
func (s SQLSource) Describe() string {
	if s.Name != "" {
		return "sql:" + s.Name
	}
	return "sql"
}

// Rows executes the query and scans every column as text; NULL becomes "".
func (s SQLSource) Rows(ctx context.Context, limit int) ([]RawRow, error) {
	rs, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Describe(), err)
	}
	defer func() { _ = rs.Close() }()

	raw, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	columns := normalizeHeader(raw)
	if err := requireColumns(columns); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Describe(), err)
	}

	var rows []RawRow
	cells := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rs.Next() {
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(rows)+1, err)
		}
		row := make(RawRow, len(columns))
		for i, col := range columns {
			row[col] = cells[i].String
		}
		rows = append(rows, row)
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}
	return out
}

func requireColumns(columns []string) error {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var missing []string
	for _, c := range []string{ColumnID, ColumnAmount} {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return ErrMissingColumns{Missing: missing}
	}
	return nil
}
