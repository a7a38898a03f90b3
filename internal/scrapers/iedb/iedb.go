// Package iedb reads epitopes from the Immune Epitope Database results page.
package iedb

import (
	"context"
	"fmt"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/components/transport"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/lib/htmlutil"
	"net/http"
	"net/url"
	"strconv"
)

const Name = "iedb"

const (
	report_scraper_search = "scraper.search"
	report_scraper_parse  = "scraper.parse"
	report_scraper_fetch  = "scraper.fetch"
)

type Options struct {
	SearchUrl string
	SiteUrl   string
}

func DefaultOptions() Options {
	return Options{
		SearchUrl: "https://www.iedb.org/result_v3.php",
		SiteUrl:   "https://www.iedb.org",
	}
}

type Scraper struct {
	deps scrapers.Deps
	opts Options
	base *url.URL
	tel  telemetry.API
}

func New(deps scrapers.Deps, opts Options) (*Scraper, error) {
	assert.NotNil(deps.Client)
	assert.NotNil(deps.Tel)
	assert.NotEmptyStr(opts.SearchUrl)

	base, err := url.Parse(opts.SiteUrl)
	if err != nil {
		return nil, fmt.Errorf("iedb: parse site url: %w", err)
	}
	return &Scraper{
		deps: deps,
		opts: opts,
		base: base,
		tel:  telemetry.NewScopedAPI(Name, deps.Tel),
	}, nil
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
			"epitope_name": {term},
			"sort_by":      {"desc_epitope_id"},
			"page_results": {strconv.Itoa(maxResults)},
		},
	}))
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if !res.OK() {
		s.tel.ReportWarning(report_scraper_search, res.Err, term)
		return batch, nil
	}

	doc, err := res.Document()
	if err != nil {
		s.tel.ReportWarning(report_scraper_parse, fmt.Errorf("parse results page: %w", err), term)
		return batch, nil
	}
	table := doc.Find("table#result").First()
	if table.Length() == 0 {
		s.tel.ReportWarning(report_scraper_parse, fmt.Errorf("results table not found"), term)
		return batch, nil
	}

	for i, row := range htmlutil.BodyRows(table) {
		if batch.Len() >= maxResults {
			break
		}
		cells := htmlutil.Cells(row)
		if len(cells) < minCells {
			batch.Skip(i, "", fmt.Sprintf("row has %d cells, expected at least %d", len(cells), minCells))
			continue
		}
		e := decodeRow(ctx, cells, s.base)
		batch.Add(e.record())
		s.tel.ReportDebug("processed iedb entry", e.EpitopeId)
	}

	s.tel.ReportCount(report_scraper_fetch, int64(batch.Len()))
	return batch, nil
}
