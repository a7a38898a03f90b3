package pdbekb

import (
	"context"
	"medresai-scraper/internal/record"
	"medresai-scraper/lib/testutil"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const selectBody = `{
  "responseHeader": {"status": 0},
  "response": {
    "numFound": 3,
    "docs": [
      {
        "pdb_id": "6vxx",
        "title": "Structure of the SARS-CoV-2 spike glycoprotein (closed state)",
        "experimental_method": ["Electron Microscopy"],
        "resolution": 2.8,
        "organism_scientific_name": ["Severe acute respiratory syndrome coronavirus 2", "Homo sapiens"],
        "deposition_date": "2020-03-10T01:00:00Z"
      },
      {"pdb_id": "7abc", "organism_scientific_name": "Mus musculus"},
      {"title": "no id"}
    ]
  }
}`

func TestFetch(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /select", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "spike" || q.Get("rows") != "50" || q.Get("sort") != "overall_quality desc" || q.Get("wt") != "json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(selectBody))
	})

	env := testutil.NewEnv(t)
	opts := DefaultOptions()
	opts.SearchUrl = upstream.URL + "/select"
	batch, err := New(env.Deps, opts).Fetch(context.Background(), "spike", 50)
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())
	require.Equal(t, []record.Skip{{Index: 2, Reason: "no pdb_id"}}, batch.Skipped)

	expected := []record.Field{
		{Key: "pdb_id", Value: "6vxx"},
		{Key: "title", Value: "Structure of the SARS-CoV-2 spike glycoprotein (closed state)"},
		{Key: "experimental_method", Value: "Electron Microscopy"},
		{Key: "resolution", Value: "2.8"},
		{Key: "organism", Value: "Severe acute respiratory syndrome coronavirus 2, Homo sapiens"},
		{Key: "deposition_date", Value: "2020-03-10T01:00:00Z"},
		{Key: "url", Value: "https://www.ebi.ac.uk/pdbe/entry/pdb/6vxx"},
	}
	if diff := cmp.Diff(expected, batch.Records[0].Fields()); diff != "" {
		t.Fatalf("record (-want +got):\n%s", diff)
	}

	sparse := batch.Records[1]
	require.Equal(t, "Mus musculus", sparse.Value("organism"))
	require.Equal(t, "", sparse.Value("resolution"))
	require.Equal(t, "", sparse.Value("title"))
}

func TestFetchBoundsResults(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /select", testutil.JSON(selectBody))

	env := testutil.NewEnv(t)
	opts := DefaultOptions()
	opts.SearchUrl = upstream.URL + "/select"
	batch, err := New(env.Deps, opts).Fetch(context.Background(), testutil.SearchTerm(t), 1)
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
}

func TestFetchMissingDocs(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /select", testutil.JSON(`{"response": {"numFound": 0}}`))

	env := testutil.NewEnv(t)
	opts := DefaultOptions()
	opts.SearchUrl = upstream.URL + "/select"
	batch, err := New(env.Deps, opts).Fetch(context.Background(), testutil.SearchTerm(t), 5)
	require.NoError(t, err)
	require.True(t, batch.Empty())
	require.Len(t, env.Tel.Reports("warning", report_scraper_decode), 1)
}
