// Package archive keeps every mirrored record in a sqlite or libsql database,
// tagged with the run that produced it.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/sink"
	configlibsql "medresai-scraper/lib/configuration/libsql"
	"strings"
	"time"

	"github.com/mazen160/go-random"
)

const (
	report_archive_tx     = "archive.tx"
	report_archive_insert = "archive.insert"
)

type Archive struct {
	db     *sql.DB
	makeTx MakeTx
	runId  string
	tel    telemetry.API
}

// NewRunId is the capture time followed by a random suffix, it sorts by
// start time.
func NewRunId(t time.Time) (string, error) {
	suffix, err := random.String(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", t.UTC().Format("20060102T150405"), strings.ToLower(suffix)), nil
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg configlibsql.Struct, runId string, tel telemetry.API) (*Archive, error) {
	db, err := cfg.OpenDB()
	if err != nil {
		return nil, fmt.Errorf("archive: open db: %w", err)
	}
	a, err := NewWithDB(ctx, db, runId, tel)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func NewWithDB(ctx context.Context, db *sql.DB, runId string, tel telemetry.API) (*Archive, error) {
	assert.NotNil(db)
	assert.NotNil(tel)
	assert.NotEmptyStr(runId)

	err := ApplySchema(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("archive: apply schema: %w", err)
	}
	return &Archive{
		db:     db,
		makeTx: NewMakeTx(db),
		runId:  runId,
		tel:    telemetry.NewScopedAPI("archive", tel),
	}, nil
}

func (a *Archive) Name() string {
	return "archive"
}

func (a *Archive) RunId() string {
	return a.runId
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// extraFields is every field that has no column of its own, as a JSON object.
func extraFields(r record.Record) (string, error) {
	extra := map[string]string{}
	for _, f := range r.Fields() {
		switch f.Key {
		case record.FieldSource, record.FieldSearchTerm, record.FieldScrapedAt, record.FieldURL:
			continue
		}
		extra[f.Key] = f.Value
	}
	out, err := json.Marshal(extra)
	return string(out), err
}

// Mirror inserts the whole batch in one transaction.
func (a *Archive) Mirror(ctx context.Context, batch sink.MirrorBatch) error {
	tx, discard, commit, err := a.makeTx()
	if err != nil {
		a.tel.ReportBroken(report_archive_tx, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	for i, r := range batch.Records {
		fields, err := extraFields(r)
		if err != nil {
			a.tel.ReportBroken(report_archive_insert, err, batch.Source, i)
			return err
		}
		err = tx.InsertRecord(ctx, InsertRecordParams{
			RunId:      a.runId,
			Source:     r.Value(record.FieldSource),
			SearchTerm: r.Value(record.FieldSearchTerm),
			ScrapedAt:  r.Value(record.FieldScrapedAt),
			Url:        r.Value(record.FieldURL),
			Fields:     fields,
		})
		if err != nil {
			a.tel.ReportBroken(report_archive_insert, err, batch.Source, i)
			return err
		}
	}

	err = commit()
	if err != nil {
		a.tel.ReportBroken(report_archive_tx, fmt.Errorf("commit: %w", err))
		return err
	}
	a.tel.ReportDebug("archived records", batch.Source, len(batch.Records))
	return nil
}
