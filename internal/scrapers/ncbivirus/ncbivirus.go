// Package ncbivirus searches the NCBI Virus sequence index.
package ncbivirus

import (
	"context"
	"fmt"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/components/transport"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/scrapers"
	"net/http"
)

const Name = "ncbi_virus"

const (
	report_scraper_search = "scraper.search"
	report_scraper_decode = "scraper.decode"
	report_scraper_fetch  = "scraper.fetch"
)

type Options struct {
	SearchUrl string
	// SiteUrl is the prefix the accession is appended to.
	SiteUrl string
}

func DefaultOptions() Options {
	return Options{
		SearchUrl: "https://www.ncbi.nlm.nih.gov/labs/virus/vssi/api/search",
		SiteUrl:   "https://www.ncbi.nlm.nih.gov/labs/virus/vssi/#/virus?SeqType_s=Nucleotide&VirusLineage_ss=&SourceDB_s=GenBank&Accession_s=",
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
		Method: http.MethodPost,
		URL:    s.opts.SearchUrl,
		JSON: map[string]any{
			"query":  term,
			"page":   1,
			"size":   maxResults,
			"facets": map[string]any{},
			"aggs":   map[string]any{},
			"sort":   "relevance",
		},
	}))
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if !res.OK() {
		s.tel.ReportWarning(report_scraper_search, res.Err, term)
		return batch, nil
	}

	hits := res.JSON().Get("hits.hits")
	if !hits.IsArray() {
		s.tel.ReportWarning(report_scraper_decode, fmt.Errorf("response has no hits"), term)
		return batch, nil
	}

	for i, hit := range hits.Array() {
		if i >= maxResults {
			break
		}
		e, ok := decodeHit(hit)
		if !ok {
			batch.Skip(i, hit.Get("_id").String(), "hit has no _source")
			continue
		}
		batch.Add(e.record(s.opts.SiteUrl))
		s.tel.ReportDebug("processed ncbi virus entry", e.Accession)
	}

	s.tel.ReportCount(report_scraper_fetch, int64(batch.Len()))
	return batch, nil
}
