// Package pdbekb queries the PDBe Solr search service, ranked by overall
// structure quality.
package pdbekb

import (
	"context"
	"fmt"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/components/transport"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/scrapers"
	"net/http"
	"net/url"
	"strconv"
)

const Name = "pdbe_kb"

const (
	report_scraper_search = "scraper.search"
	report_scraper_decode = "scraper.decode"
	report_scraper_fetch  = "scraper.fetch"
)

type Options struct {
	SearchUrl string
	SiteUrl   string
}

func DefaultOptions() Options {
	return Options{
		SearchUrl: "https://www.ebi.ac.uk/pdbe/search/pdb/select",
		SiteUrl:   "https://www.ebi.ac.uk/pdbe/entry/pdb/",
	}
}

type Scraper struct {
	deps scrapers.Deps
	opts Options
	tel  telemetry.API
}

func New(deps scrapers.Deps, opts Options) *Scraper {
	assert.NotNil(deps.Client)
	assert.NotNil(deps.Tel)
	assert.NotEmptyStr(opts.SearchUrl)

	return &Scraper{
		deps: deps,
		opts: opts,
		tel:  telemetry.NewScopedAPI(Name, deps.Tel),
	}
}

func (s *Scraper) Name() string {
	return Name
}

func (s *Scraper) Fetch(ctx context.Context, term string, maxResults int) (record.Batch, error) {
	var batch record.Batch
	if maxResults <= 0 {
		return batch, nil
	}

	res := s.deps.Client.Do(ctx, s.deps.Retry.Apply(transport.Request{
		Method: http.MethodGet,
		URL:    s.opts.SearchUrl,
		Params: url.Values{
			"q":    {term},
			"rows": {strconv.Itoa(maxResults)},
			"sort": {"overall_quality desc"},
			"wt":   {"json"},
		},
	}))
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if !res.OK() {
		s.tel.ReportWarning(report_scraper_search, res.Err, term)
		return batch, nil
	}

	docs := res.JSON().Get("response.docs")
	if !docs.IsArray() {
		s.tel.ReportWarning(report_scraper_decode, fmt.Errorf("response has no docs"), term)
		return batch, nil
	}

	for i, doc := range docs.Array() {
		if i >= maxResults {
			break
		}
		e := decodeDoc(doc)
		if e.PdbId == "" {
			batch.Skip(i, "", "no pdb_id")
			continue
		}
		batch.Add(e.record(s.opts.SiteUrl))
		s.tel.ReportDebug("processed pdbe-kb entry", e.PdbId)
	}

	s.tel.ReportCount(report_scraper_fetch, int64(batch.Len()))
	return batch, nil
}
