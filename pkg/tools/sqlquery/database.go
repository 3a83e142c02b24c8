package sqlquery

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/switchboard/pkg/store/sqlite"
)

const (
	// DefaultPreviewRows is how many result rows are shown.
	DefaultPreviewRows = 20

	// sampleRows is how many example rows the schema shows per table.
	sampleRows = 3

	// maxCountedRows bounds how many rows are counted past the preview.
	maxCountedRows = 100000
)

// Database is a read-only SQLite database queried on behalf of the oracle.
type Database struct {
	db         *sql.DB
	path       string
	countLimit int
}

// Open opens the database at path read-only.
func Open(path string) (*Database, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	return &Database{db: db, path: path, countLimit: maxCountedRows}, nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// Schema describes every table and view: its CREATE statement followed by
// a few sample rows.
func (d *Database) Schema(ctx context.Context) (string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name, sql FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL
		ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}

	type table struct{ name, ddl string }
	var tables []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.name, &t.ddl); err != nil {
			rows.Close()
			return "", fmt.Errorf("scan schema: %w", err)
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}

	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(t.ddl))
		b.WriteString("\n")

		sample, err := d.Query(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, strings.ReplaceAll(t.name, `"`, `""`), sampleRows), sampleRows)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "/*\n%d rows from %s table:\n%s\n*/", len(sample.Rows), t.name, sample.Table())
	}
	return b.String(), nil
}

// Result is a query result cut to a preview.
type Result struct {
	Columns []string
	Rows    [][]string
	// More counts rows past the preview.
	More int
	// Truncated is set when counting stopped early, so More is a lower bound.
	Truncated bool
}

// Query runs a query and keeps up to previewRows rows.
func (d *Database) Query(ctx context.Context, query string, previewRows int) (*Result, error) {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(res.Rows) >= previewRows {
			if res.More >= d.countLimit {
				res.Truncated = true
				break
			}
			res.More++
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Table renders the header and rows separated by " | ".
func (r *Result) Table() string {
	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}

// Preview renders the result for the oracle.
func (r *Result) Preview() string {
	if len(r.Rows) == 0 {
		return "(no rows)"
	}
	out := r.Table()
	switch {
	case r.Truncated:
		out += fmt.Sprintf("\n... (over %d more rows)", r.More)
	case r.More > 0:
		out += fmt.Sprintf("\n... (%d more rows)", r.More)
	}
	return out
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
