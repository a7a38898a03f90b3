package sabdab

import (
	"context"
	"medresai-scraper/internal/record"
	"medresai-scraper/lib/testutil"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const formPage = `<html><body><form method="post">
<input type="hidden" name="csrfmiddlewaretoken" value="tok123">
<input name="antigen">
</form></body></html>`

const resultsPage = `<html><body>
<table class="results">
  <tr><th>PDB</th><th>Hchain</th><th>Antigen chain</th><th>Antigen</th><th>Resolution</th><th>Method</th></tr>
  <tr><td> 7KMG </td><td>H</td><td>A</td><td>spike glycoprotein</td><td>2.4</td><td>X-RAY</td></tr>
  <tr><td>bad</td></tr>
  <tr><td>6XC2</td><td>B</td><td>C</td><td>spike protein S1</td><td>3.1</td><td>EM</td></tr>
</table>
</body></html>`

func newScraper(upstream *testutil.Upstream, env testutil.Env) *Scraper {
	opts := DefaultOptions()
	opts.SearchUrl = upstream.URL + "/search/"
	return New(env.Deps, opts)
}

func TestFetchWithSession(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /search/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "cookie123", Path: "/"})
		w.Write([]byte(formPage))
	})
	upstream.Handle("POST /search/", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("csrftoken")
		if err != nil || cookie.Value != "cookie123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		r.ParseForm()
		if r.PostForm.Get("csrfmiddlewaretoken") != "tok123" || r.PostForm.Get("antigen") != "spike" || r.Referer() == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(resultsPage))
	})

	env := testutil.NewEnv(t)
	batch, err := newScraper(upstream, env).Fetch(context.Background(), "spike", 10)
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())
	require.Len(t, batch.Skipped, 1)

	expected := []record.Field{
		{Key: "pdb_id", Value: "7KMG"},
		{Key: "antigen", Value: "spike glycoprotein"},
		{Key: "antibody_chain", Value: "H"},
		{Key: "antigen_chain", Value: "A"},
		{Key: "resolution", Value: "2.4"},
		{Key: "url", Value: "http://opig.stats.ox.ac.uk/webapps/sabdab/sabdab/structure/7KMG"},
	}
	if diff := cmp.Diff(expected, batch.Records[0].Fields()); diff != "" {
		t.Fatalf("record (-want +got):\n%s", diff)
	}
}

func TestFetchMissingToken(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /search/", testutil.HTML(`<html><body><form></form></body></html>`))
	upstream.Handle("POST /search/", testutil.HTML(resultsPage))

	env := testutil.NewEnv(t)
	batch, err := newScraper(upstream, env).Fetch(context.Background(), testutil.SearchTerm(t), 10)
	require.NoError(t, err)
	require.True(t, batch.Empty())
	require.Equal(t, 0, upstream.Hits("POST /search/"))
	require.Len(t, env.Tel.Reports("warning", report_scraper_session), 1)
}

func TestFetchNoResultsTable(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /search/", testutil.HTML(formPage))
	upstream.Handle("POST /search/", testutil.HTML(`<html><body><p>No structures found</p></body></html>`))

	env := testutil.NewEnv(t)
	batch, err := newScraper(upstream, env).Fetch(context.Background(), testutil.SearchTerm(t), 10)
	require.NoError(t, err)
	require.True(t, batch.Empty())
	require.Len(t, env.Tel.Reports("warning", report_scraper_parse), 1)
}

func TestFetchBoundsRows(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Handle("GET /search/", testutil.HTML(formPage))
	upstream.Handle("POST /search/", testutil.HTML(resultsPage))

	env := testutil.NewEnv(t)
	batch, err := newScraper(upstream, env).Fetch(context.Background(), "spike", 1)
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	require.Equal(t, "7KMG", batch.Records[0].Value("pdb_id"))
}
