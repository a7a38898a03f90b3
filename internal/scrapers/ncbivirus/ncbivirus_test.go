package ncbivirus

import (
	"context"
	"encoding/json"
	"io"
	"medresai-scraper/internal/record"
	"medresai-scraper/lib/testutil"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "hits": {
    "total": 3,
    "hits": [
      {"_id": "1", "_source": {
        "accession": "MN908947",
        "title": "Severe acute respiratory syndrome coronavirus 2 isolate Wuhan-Hu-1",
        "taxonomy": {"species": {"name": "Severe acute respiratory syndrome-related coronavirus"}},
        "collection_date": "2019-12",
        "length": 29903
      }},
      {"_id": "2"},
      {"_id": "3", "_source": {"title": "partial"}}
    ]
  }
}`

func TestFetch(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	var payload map[string]any
	upstream.Handle("POST /search", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &payload)
		w.Write([]byte(searchBody))
	})

	env := testutil.NewEnv(t)
	opts := DefaultOptions()
	opts.SearchUrl = upstream.URL + "/search"
	batch, err := New(env.Deps, opts).Fetch(context.Background(), "coronavirus main protease", 10)
	require.NoError(t, err)

	require.Equal(t, "coronavirus main protease", payload["query"])
	require.EqualValues(t, 10, payload["size"])
	require.EqualValues(t, 1, payload["page"])
	require.Equal(t, "relevance", payload["sort"])

	require.Equal(t, 2, batch.Len())
	require.Equal(t, []record.Skip{{Index: 1, ID: "2", Reason: "hit has no _source"}}, batch.Skipped)

	expected := []record.Field{
		{Key: "accession", Value: "MN908947"},
		{Key: "title", Value: "Severe acute respiratory syndrome coronavirus 2 isolate Wuhan-Hu-1"},
		{Key: "virus_species", Value: "Severe acute respiratory syndrome-related coronavirus"},
		{Key: "collection_date", Value: "2019-12"},
		{Key: "length", Value: "29903"},
		{Key: "url", Value: "https://www.ncbi.nlm.nih.gov/labs/virus/vssi/#/virus?SeqType_s=Nucleotide&VirusLineage_ss=&SourceDB_s=GenBank&Accession_s=MN908947"},
	}
	if diff := cmp.Diff(expected, batch.Records[0].Fields()); diff != "" {
		t.Fatalf("record (-want +got):\n%s", diff)
	}

	partial := batch.Records[1]
	require.Equal(t, "", partial.Value("accession"))
	require.Equal(t, "", partial.Value("virus_species"))
	require.Equal(t, "0", partial.Value("length"))
	require.Equal(t, "", partial.Value(record.FieldURL))
}

func TestFetchShapeErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		report  string
	}{
		{"server error", testutil.Status(http.StatusBadGateway), report_scraper_search},
		{"missing hits", testutil.JSON(`{"error": "bad query"}`), report_scraper_decode},
		{"not json", testutil.HTML(`<html></html>`), report_scraper_decode},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			upstream := testutil.NewUpstream(t)
			upstream.Handle("POST /search", c.handler)

			env := testutil.NewEnv(t)
			opts := DefaultOptions()
			opts.SearchUrl = upstream.URL + "/search"
			batch, err := New(env.Deps, opts).Fetch(context.Background(), testutil.SearchTerm(t), 10)
			require.NoError(t, err)
			require.True(t, batch.Empty())
			require.NotEmpty(t, env.Tel.Reports("warning", c.report))
		})
	}
}
