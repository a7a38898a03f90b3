// Package pdb searches the RCSB Protein Data Bank. A full-text search finds
// entry identifiers, then each entry's core record is fetched on its own.
package pdb

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
	"time"
)

const Name = "pdb"

const (
	report_scraper_search       = "scraper.search"
	report_scraper_fetch_detail = "scraper.fetch-detail"
	report_scraper_fetch        = "scraper.fetch"
)

type Options struct {
	SearchUrl string
	// EntryUrl is the prefix the entry identifier is appended to.
	EntryUrl string
	SiteUrl  string
	Delay    time.Duration
}

func DefaultOptions() Options {
	return Options{
		SearchUrl: "https://search.rcsb.org/rcsbsearch/v2/query",
		EntryUrl:  "https://data.rcsb.org/rest/v1/core/entry/",
		SiteUrl:   "https://www.rcsb.org/structure/",
		Delay:     time.Millisecond * 500,
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
	assert.NotNil(deps.Sleep)
	assert.NotEmptyStr(opts.SearchUrl)
	assert.NotEmptyStr(opts.EntryUrl)

	return &Scraper{
		deps: deps,
		opts: opts,
		tel:  telemetry.NewScopedAPI(Name, deps.Tel),
	}
}

func (s *Scraper) Name() string {
	return Name
}

func searchQuery(term string, rows int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"type":    "terminal",
			"service": "text",
			"parameters": map[string]any{
				"attribute": "rcsb_entity_info.description",
				"operator":  "contains_words",
				"value":     term,
			},
		},
		"return_type": "entry",
		"request_options": map[string]any{
			"pager": map[string]any{
				"start": 0,
				"rows":  rows,
			},
			"scoring_strategy": "combined",
			"sort": []map[string]any{
				{"sort_by": "score", "direction": "desc"},
			},
		},
	}
}

func (s *Scraper) Fetch(ctx context.Context, term string, maxResults int) (record.Batch, error) {
	var batch record.Batch
	if maxResults <= 0 {
		return batch, nil
	}

	res := s.deps.Client.Do(ctx, s.deps.Retry.Apply(transport.Request{
		Method: http.MethodPost,
		URL:    s.opts.SearchUrl,
		JSON:   searchQuery(term, maxResults),
	}))
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if !res.OK() {
		s.tel.ReportWarning(report_scraper_search, res.Err, term)
		return batch, nil
	}

	ids := searchHits(res.JSON())
	if len(ids) == 0 {
		s.tel.ReportWarning(report_scraper_search, fmt.Errorf("no entries"), term)
		return batch, nil
	}
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}

	for i, id := range ids {
		detail := s.deps.Client.Do(ctx, s.deps.Retry.Apply(transport.Request{
			Method: http.MethodGet,
			URL:    s.opts.EntryUrl + url.PathEscape(id),
		}))
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		switch {
		case !detail.OK():
			s.tel.ReportWarning(report_scraper_fetch_detail, detail.Err, id)
			batch.Skip(i, id, "detail request failed")
		case !detail.JSON().IsObject():
			s.tel.ReportWarning(report_scraper_fetch_detail, fmt.Errorf("detail is not a json object"), id)
			batch.Skip(i, id, "malformed detail")
		default:
			batch.Add(decodeEntry(id, detail.JSON()).record(s.opts.SiteUrl))
			s.tel.ReportDebug("processed pdb entry", id)
		}

		if i < len(ids)-1 {
			err := s.deps.Sleep.Sleep(ctx, s.opts.Delay)
			if err != nil {
				return batch, err
			}
		}
	}

	s.tel.ReportCount(report_scraper_fetch, int64(batch.Len()))
	return batch, nil
}
