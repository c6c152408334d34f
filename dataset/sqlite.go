package dataset

import (
	"context"
	"database/sql"
	"strings"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// WriteSQLite stores t as table in the SQLite database at path, replacing
// any existing table of the same name. Missing cells are stored as NULL.
func WriteSQLite(ctx context.Context, path, table string, t *RawTable) (err error) {
	if !identifierPattern.MatchString(table) {
		return errors.NewValidationError("table", "must be a plain identifier", table)
	}
	for _, h := range t.Header {
		if !identifierPattern.MatchString(h) {
			return errors.NewValidationError("column", "must be a plain identifier", h)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "dataset: open sqlite %s", path)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "dataset: begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cols := make([]string, len(t.Header))
	marks := make([]string, len(t.Header))
	for i, h := range t.Header {
		cols[i] = `"` + h + `" TEXT`
		marks[i] = "?"
	}
	if _, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS "`+table+`"`); err != nil {
		return errors.Wrap(err, "dataset: drop table")
	}
	if _, err = tx.ExecContext(ctx, `CREATE TABLE "`+table+`" (`+strings.Join(cols, ", ")+`)`); err != nil {
		return errors.Wrap(err, "dataset: create table")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO "`+table+`" VALUES (`+strings.Join(marks, ", ")+`)`)
	if err != nil {
		return errors.Wrap(err, "dataset: prepare insert")
	}
	defer stmt.Close()

	args := make([]any, len(t.Header))
	for i, rec := range t.Rows {
		for j := range args {
			if j >= len(rec) || (t.Missing != nil && t.Missing[i][j]) {
				args[j] = nil
				continue
			}
			args[j] = rec[j]
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return errors.NewEncodingError("insert", table, i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "dataset: commit")
	}
	return nil
}
