package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"
)

//go:embed schema.sql
var Schema string

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ApplySchema runs the schema one statement at a time, remote libsql servers
// reject multi-statement execs.
func ApplySchema(ctx context.Context, db DBTX) error {
	for _, stmt := range strings.Split(Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

const insertRecord = `INSERT INTO records (run_id, source, search_term, scraped_at, url, fields)
VALUES (?, ?, ?, ?, ?, ?)`

type InsertRecordParams struct {
	RunId      string
	Source     string
	SearchTerm string
	ScrapedAt  string
	Url        string
	Fields     string
}

func (q *Queries) InsertRecord(ctx context.Context, arg InsertRecordParams) error {
	_, err := q.db.ExecContext(ctx, insertRecord,
		arg.RunId,
		arg.Source,
		arg.SearchTerm,
		arg.ScrapedAt,
		arg.Url,
		arg.Fields,
	)
	return err
}

const countRecords = `SELECT count(*) FROM records WHERE run_id = ? AND source = ?`

func (q *Queries) CountRecords(ctx context.Context, runId, source string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRecords, runId, source)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listRecords = `SELECT source, search_term, scraped_at, url, fields FROM records
WHERE run_id = ? ORDER BY id`

type ListRecordsRow struct {
	Source     string
	SearchTerm string
	ScrapedAt  string
	Url        string
	Fields     string
}

func (q *Queries) ListRecords(ctx context.Context, runId string) ([]ListRecordsRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecords, runId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListRecordsRow
	for rows.Next() {
		var i ListRecordsRow
		err := rows.Scan(&i.Source, &i.SearchTerm, &i.ScrapedAt, &i.Url, &i.Fields)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
