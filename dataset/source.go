package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// RawTable is a table as read from a source, before schema checks.
type RawTable struct {
	Source  string
	Header  []string
	Rows    [][]string
	Missing [][]bool
}

// index returns the header position of name, or -1.
func (t *RawTable) index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Source reads one raw table.
type Source interface {
	Read(ctx context.Context) (*RawTable, error)
	String() string
}

// TSVSource reads a tab-separated file with a header row.
type TSVSource struct {
	Path string
	// NullValues are field values treated as missing. Defaults to the
	// empty string only.
	NullValues []string
}

// NewTSVSource creates a TSVSource for path.
func NewTSVSource(path string) *TSVSource {
	return &TSVSource{Path: path}
}

func (s *TSVSource) String() string { return s.Path }

// Read parses the whole file.
func (s *TSVSource) Read(ctx context.Context) (*RawTable, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", s.Path)
	}
	defer f.Close()
	return readDelimited(ctx, f, s.Path, s.nulls())
}

func (s *TSVSource) nulls() map[string]bool {
	out := map[string]bool{"": true}
	if len(s.NullValues) > 0 {
		out = make(map[string]bool, len(s.NullValues))
		for _, v := range s.NullValues {
			out[v] = true
		}
	}
	return out
}

// ReaderSource reads tab-separated data from an in-memory reader.
type ReaderSource struct {
	Name   string
	Reader io.Reader
}

func (s *ReaderSource) String() string { return s.Name }

// Read parses the whole reader. Empty fields are missing.
func (s *ReaderSource) Read(ctx context.Context) (*RawTable, error) {
	return readDelimited(ctx, s.Reader, s.Name, map[string]bool{"": true})
}

func readDelimited(ctx context.Context, r io.Reader, name string, nulls map[string]bool) (*RawTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError(name, "", "missing header row")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: read header of %s", name)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &RawTable{Source: name, Header: header}
	for row := 0; ; row++ {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewEncodingError("read", "", row, err)
		}
		missing := make([]bool, len(rec))
		for j, v := range rec {
			missing[j] = nulls[v]
		}
		t.Rows = append(t.Rows, rec)
		t.Missing = append(t.Missing, missing)
	}
	return t, nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads one table from a SQLite database file.
type SQLiteSource struct {
	Path  string
	Table string
}

// NewSQLiteSource creates a SQLiteSource.
func NewSQLiteSource(path, table string) *SQLiteSource {
	return &SQLiteSource{Path: path, Table: table}
}

func (s *SQLiteSource) String() string { return s.Path + "#" + s.Table }

// Read selects every row of the table. NULL values are missing.
func (s *SQLiteSource) Read(ctx context.Context) (*RawTable, error) {
	if !identifierPattern.MatchString(s.Table) {
		return nil, errors.NewValidationError("table", "must be a plain identifier", s.Table)
	}
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open sqlite %s", s.Path)
	}
	defer db.Close()
	return readSQL(ctx, db, s.String(), s.Table)
}

func readSQL(ctx context.Context, db *sql.DB, name, table string) (*RawTable, error) {
	rows, err := db.QueryContext(ctx, `SELECT * FROM "`+table+`"`)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: query %s", name)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "dataset: columns")
	}
	t := &RawTable{Source: name, Header: header}
	vals := make([]sql.NullString, len(header))
	ptrs := make([]any, len(header))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	row := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewEncodingError("scan", "", row, err)
		}
		rec := make([]string, len(header))
		missing := make([]bool, len(header))
		for j, v := range vals {
			rec[j] = v.String
			missing[j] = !v.Valid
		}
		t.Rows = append(t.Rows, rec)
		t.Missing = append(t.Missing, missing)
		row++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "dataset: iterate %s", name)
	}
	return t, nil
}
