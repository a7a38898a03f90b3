package archive

import (
	"context"
	"encoding/json"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/sink"
	configlibsql "medresai-scraper/lib/configuration/libsql"
	"medresai-scraper/lib/testutil"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var capturedAt = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func mirrorBatch() sink.MirrorBatch {
	var records []record.Record
	for _, id := range []string{"6VXX", "6VYB"} {
		var r record.Record
		r.Set("pdb_id", id)
		r.Set("resolution", 2.8)
		r.Set(record.FieldURL, "https://www.rcsb.org/structure/"+id)
		records = append(records, r)
	}
	records = sink.Tag(records, "pdb", "SARS-CoV-2 spike", capturedAt)
	return sink.MirrorBatch{
		Source:     "pdb",
		Term:       "SARS-CoV-2 spike",
		CapturedAt: capturedAt,
		Records:    records,
	}
}

func TestMirrorInsertsBatch(t *testing.T) {
	db := testutil.OpenMemoryDB(t, "")
	ctx := context.Background()

	a, err := NewWithDB(ctx, db, "run-1", &telemetry.Recorder{})
	require.NoError(t, err)
	require.Equal(t, "run-1", a.RunId())
	require.NoError(t, a.Mirror(ctx, mirrorBatch()))

	count, err := New(db).CountRecords(ctx, "run-1", "pdb")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	rows, err := New(db).ListRecords(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "SARS-CoV-2 spike", rows[0].SearchTerm)
	require.Equal(t, "2024-03-05 14:07:09", rows[0].ScrapedAt)
	require.Equal(t, "https://www.rcsb.org/structure/6VXX", rows[0].Url)

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(rows[0].Fields), &fields))
	require.Equal(t, map[string]string{"pdb_id": "6VXX", "resolution": "2.8"}, fields)
}

func TestSchemaIsIdempotent(t *testing.T) {
	db := testutil.OpenMemoryDB(t, "")
	ctx := context.Background()
	_, err := NewWithDB(ctx, db, "run-1", &telemetry.Recorder{})
	require.NoError(t, err)
	_, err = NewWithDB(ctx, db, "run-2", &telemetry.Recorder{})
	require.NoError(t, err)
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	cfg := configlibsql.Struct{File: filepath.Join(t.TempDir(), "archive.db")}
	a, err := Open(ctx, cfg, "run-file", &telemetry.Recorder{})
	require.NoError(t, err)
	require.NoError(t, a.Mirror(ctx, mirrorBatch()))
	require.NoError(t, a.Close())

	reopened, err := Open(ctx, cfg, "run-file-2", &telemetry.Recorder{})
	require.NoError(t, err)
	defer reopened.Close()
	count, err := New(reopened.db).CountRecords(ctx, "run-file", "pdb")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestMirrorFailureRollsBack(t *testing.T) {
	db := testutil.OpenMemoryDB(t, "")
	ctx := context.Background()
	tel := &telemetry.Recorder{}
	a, err := NewWithDB(ctx, db, "run-1", tel)
	require.NoError(t, err)

	_, err = db.Exec("DROP TABLE records")
	require.NoError(t, err)
	require.Error(t, a.Mirror(ctx, mirrorBatch()))
	require.Len(t, tel.Reports("broken", report_archive_insert), 1)
}

func TestNewRunId(t *testing.T) {
	id, err := NewRunId(capturedAt)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^20240305T140709-[a-z0-9]{6}$`), id)
}
