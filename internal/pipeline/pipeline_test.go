package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"medresai-scraper/internal/components/chrono"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/internal/scrapers/pdb"
	"medresai-scraper/internal/sink"
	"medresai-scraper/lib/testutil"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	name  string
	fetch func(ctx context.Context, term string, maxResults int) (record.Batch, error)
	calls []string
}

func (f *fakeScraper) Name() string {
	return f.name
}

func (f *fakeScraper) Fetch(ctx context.Context, term string, maxResults int) (record.Batch, error) {
	f.calls = append(f.calls, term)
	if f.fetch == nil {
		var batch record.Batch
		var r record.Record
		r.Set("id", f.name+":"+term)
		batch.Add(r)
		return batch, nil
	}
	return f.fetch(ctx, term, maxResults)
}

type write struct {
	source string
	term   string
	rows   int
}

type fakeWriter struct {
	writes []write
	err    error
}

func (f *fakeWriter) Write(ctx context.Context, batch record.Batch, source scrapers.Descriptor, term string) (sink.Artifact, error) {
	f.writes = append(f.writes, write{source: source.Name, term: term, rows: batch.Len()})
	if f.err != nil {
		return sink.Artifact{}, f.err
	}
	if batch.Empty() {
		return sink.Artifact{}, nil
	}
	return sink.Artifact{Path: fmt.Sprintf("%s_%s.csv", source.Name, term), Rows: batch.Len()}, nil
}

func source(s *fakeScraper) Source {
	return Source{
		Descriptor: scrapers.Descriptor{Name: s.name, Enabled: true, MaxResults: 10},
		Scraper:    s,
	}
}

func newPipeline(t *testing.T, sources []Source, w Writer, termDelay time.Duration) (*Pipeline, *telemetry.Recorder, *chrono.RecordSleep) {
	tel := &telemetry.Recorder{}
	sleep := &chrono.RecordSleep{}
	p, err := New(sources, w, tel, Options{
		TermDelay: termDelay,
		Sleep:     sleep,
		Time:      chrono.FixedTime{T: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)},
	})
	require.NoError(t, err)
	return p, tel, sleep
}

func TestRunVisitsEveryPairInOrder(t *testing.T) {
	a := &fakeScraper{name: "pdb"}
	b := &fakeScraper{name: "uniprot"}
	w := &fakeWriter{}
	p, _, sleep := newPipeline(t, []Source{source(a), source(b)}, w, 2*time.Second)

	summary := p.Run(context.Background(), []string{"spike", "protease", "antibody"})

	expected := []write{
		{"pdb", "spike", 1}, {"uniprot", "spike", 1},
		{"pdb", "protease", 1}, {"uniprot", "protease", 1},
		{"pdb", "antibody", 1}, {"uniprot", "antibody", 1},
	}
	if diff := cmp.Diff(expected, w.writes, cmp.AllowUnexported(write{})); diff != "" {
		t.Fatalf("writes (-want +got):\n%s", diff)
	}
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleep.Durations())
	require.Len(t, summary.Outcomes, 6)
	require.Equal(t, 6, summary.Records())
	require.Len(t, summary.Artifacts(), 6)
	require.Empty(t, summary.Failed())
	require.False(t, summary.Cancelled)
}

func TestZeroTermDelayNeverSleeps(t *testing.T) {
	p, _, sleep := newPipeline(t, []Source{source(&fakeScraper{name: "pdb"})}, &fakeWriter{}, 0)
	p.Run(context.Background(), []string{"a", "b"})
	require.Empty(t, sleep.Durations())
}

func TestAdapterFailuresAreIsolated(t *testing.T) {
	failing := &fakeScraper{
		name: "bindingdb",
		fetch: func(ctx context.Context, term string, maxResults int) (record.Batch, error) {
			return record.Batch{}, errors.New("upstream exploded")
		},
	}
	panicking := &fakeScraper{
		name: "sabdab",
		fetch: func(ctx context.Context, term string, maxResults int) (record.Batch, error) {
			var m map[string]int
			m["boom"]++
			return record.Batch{}, nil
		},
	}
	healthy := &fakeScraper{name: "iedb"}
	w := &fakeWriter{}
	p, tel, _ := newPipeline(t, []Source{source(failing), source(panicking), source(healthy)}, w, 0)

	summary := p.Run(context.Background(), []string{"spike"})

	require.Len(t, summary.Outcomes, 3)
	require.Len(t, summary.Failed(), 2)
	require.ErrorContains(t, summary.Outcomes[0].Err, "upstream exploded")
	require.ErrorContains(t, summary.Outcomes[1].Err, "panicked")
	require.NoError(t, summary.Outcomes[2].Err)
	require.Equal(t, 1, summary.Outcomes[2].Records)
	require.Equal(t, []string{"spike"}, healthy.calls)

	require.Len(t, tel.Reports("broken", report_pipeline_panic), 1)
	require.Len(t, tel.Reports("broken", report_pipeline_fetch), 2)
	require.Len(t, w.writes, 3)
	require.Zero(t, w.writes[0].rows)
}

func TestWriteFailureContinues(t *testing.T) {
	w := &fakeWriter{err: errors.New("disk full")}
	a := &fakeScraper{name: "pdb"}
	b := &fakeScraper{name: "uniprot"}
	p, tel, _ := newPipeline(t, []Source{source(a), source(b)}, w, 0)

	summary := p.Run(context.Background(), []string{"spike"})
	require.Len(t, summary.Failed(), 2)
	require.Len(t, tel.Reports("broken", report_pipeline_write), 2)
	require.Equal(t, []string{"spike"}, b.calls)
}

func TestSkipsAreReported(t *testing.T) {
	s := &fakeScraper{
		name: "bindingdb",
		fetch: func(ctx context.Context, term string, maxResults int) (record.Batch, error) {
			var batch record.Batch
			batch.Skip(0, "", "row has 3 cells")
			return batch, nil
		},
	}
	p, tel, _ := newPipeline(t, []Source{source(s)}, &fakeWriter{}, 0)
	summary := p.Run(context.Background(), []string{"spike"})
	require.Equal(t, 1, summary.Outcomes[0].Skipped)
	require.Len(t, tel.Reports("warning", report_pipeline_skip), 1)
}

func TestCancellationStopsBetweenPairs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeScraper{
		name: "pdb",
		fetch: func(_ context.Context, term string, _ int) (record.Batch, error) {
			cancel()
			var batch record.Batch
			batch.Add(record.New(record.Field{Key: "pdb_id", Value: "6VXX"}))
			return batch, nil
		},
	}
	second := &fakeScraper{name: "uniprot"}
	w := &fakeWriter{}
	p, _, _ := newPipeline(t, []Source{source(first), source(second)}, w, time.Second)

	summary := p.Run(ctx, []string{"spike", "protease"})
	require.True(t, summary.Cancelled)
	require.Len(t, summary.Outcomes, 1)
	require.Len(t, w.writes, 1)
	require.Empty(t, second.calls)
}

func TestBuildSkipsDisabledSources(t *testing.T) {
	env := testutil.NewEnv(t)
	sources, err := Build(env.Deps, []scrapers.Descriptor{
		{Name: "pdb", Enabled: true, MaxResults: 1},
		{Name: "uniprot", Enabled: false, MaxResults: 1},
		{Name: "iedb", Enabled: true, MaxResults: 1},
	})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "pdb", sources[0].Scraper.Name())
	require.Equal(t, "iedb", sources[1].Scraper.Name())

	_, err = Build(env.Deps, []scrapers.Descriptor{{Name: "chembl", Enabled: true}})
	require.Error(t, err)
}

const pdbSearch = `{"result_set": [
  {"identifier": "6VXX"}, {"identifier": "6VYB"}, {"identifier": "7KRQ"}
]}`

func TestPdbRunEndToEnd(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("POST /query", testutil.JSON(pdbSearch))
	upstream.Handle("GET /entry/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"struct": {"title": "Spike %s"}, "rcsb_entry_info": {"resolution_combined": [3.1]}}`, r.PathValue("id"))
	})

	env := testutil.NewEnv(t)
	opts := pdb.DefaultOptions()
	opts.SearchUrl = upstream.URL + "/query"
	opts.EntryUrl = upstream.URL + "/entry/"
	opts.Delay = 0
	desc := scrapers.Descriptor{Name: pdb.Name, Enabled: true, MaxResults: 2}

	dir := t.TempDir()
	clock := chrono.FixedTime{T: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)}
	s := sink.New(dir, clock, env.Tel)

	p, err := New(
		[]Source{{Descriptor: desc, Scraper: pdb.New(env.Deps, opts)}},
		s,
		env.Tel,
		Options{Sleep: env.Sleep, Time: clock},
	)
	require.NoError(t, err)

	summary := p.Run(context.Background(), []string{"SARS-CoV-2 spike"})
	require.Empty(t, summary.Failed())
	require.Equal(t, 2, upstream.Hits("GET /entry/{id}"))
	require.Len(t, summary.Artifacts(), 1)

	f, err := os.Open(summary.Artifacts()[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s missing from %v", name, header)
		return -1
	}
	for _, row := range rows[1:] {
		require.Equal(t, "pdb", row[col("source")])
		require.Equal(t, "SARS-CoV-2 spike", row[col("search_term")])
		require.Equal(t, "2024-03-05 14:07:09", row[col("scraped_at")])
		require.True(t, strings.HasPrefix(row[col("title")], "Spike "))
	}
}

func TestSummaryReport(t *testing.T) {
	summary := Summary{
		Started:  time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
		Finished: time.Date(2024, 3, 5, 14, 1, 30, 0, time.UTC),
		Outcomes: []Outcome{
			{Term: "spike", Source: "pdb", Records: 2, Artifact: "scraped_data/pdb_20240305_140000.csv"},
			{Term: "spike", Source: "sabdab", Err: errors.New("adapter panicked: boom")},
		},
	}
	report := summary.Report()
	require.Contains(t, report, "completed in 1m30s")
	require.Contains(t, report, "2 records in 1 files, 1 failed pairs")
	require.Contains(t, report, "pdb_20240305_140000.csv")
	require.Contains(t, report, "adapter panicked: boom")
}
