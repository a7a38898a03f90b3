package iedb

import (
	"context"
	"medresai-scraper/internal/record"
	"medresai-scraper/lib/testutil"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<table id="result">
  <tr><th>Epitope</th><th>Antigen</th><th>Organism</th><th>Assays</th><th>Host</th><th>References</th></tr>
  <tr>
    <td><a href="/epitope/1309887">1309887</a> YLQPRTFLL</td>
    <td>Spike glycoprotein</td><td>SARS-CoV-2</td><td>12</td><td>Homo sapiens</td><td>4</td>
  </tr>
  <tr>
    <td>NYNYLYRLF</td>
    <td>Spike glycoprotein</td><td>SARS-CoV-2</td><td>3</td><td>Mus musculus</td><td>1</td>
  </tr>
  <tr><td>short</td><td>row</td></tr>
</table>
</body></html>`

func newScraper(t *testing.T, upstream *testutil.Upstream, env testutil.Env) *Scraper {
	opts := DefaultOptions()
	opts.SearchUrl = upstream.URL + "/result_v3.php"
	s, err := New(env.Deps, opts)
	require.NoError(t, err)
	return s
}

func TestFetch(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /result_v3.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("epitope_name") != "spike" || q.Get("sort_by") != "desc_epitope_id" || q.Get("page_results") != "10" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(resultsPage))
	})

	env := testutil.NewEnv(t)
	batch, err := newScraper(t, upstream, env).Fetch(context.Background(), "spike", 10)
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())
	require.Len(t, batch.Skipped, 1)

	expected := []record.Field{
		{Key: "epitope_id", Value: "1309887"},
		{Key: "epitope_sequence", Value: "1309887 YLQPRTFLL"},
		{Key: "antigen_name", Value: "Spike glycoprotein"},
		{Key: "host_organism", Value: "Homo sapiens"},
		{Key: "url", Value: "https://www.iedb.org/epitope/1309887"},
	}
	if diff := cmp.Diff(expected, batch.Records[0].Fields()); diff != "" {
		t.Fatalf("record (-want +got):\n%s", diff)
	}

	unlinked := batch.Records[1]
	require.Equal(t, "Unknown", unlinked.Value("epitope_id"))
	require.Equal(t, "", unlinked.Value(record.FieldURL))
	require.Equal(t, "Mus musculus", unlinked.Value("host_organism"))
}

func TestFetchNoTable(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /result_v3.php", testutil.HTML(`<html><body><table id="other"></table></body></html>`))

	env := testutil.NewEnv(t)
	batch, err := newScraper(t, upstream, env).Fetch(context.Background(), testutil.SearchTerm(t), 10)
	require.NoError(t, err)
	require.True(t, batch.Empty())
	require.Len(t, env.Tel.Reports("warning", report_scraper_parse), 1)
}
