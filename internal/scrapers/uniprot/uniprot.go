// Package uniprot searches UniProtKB through its REST API, following the
// cursor links it returns until enough entries were collected.
package uniprot

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
	"time"
)

const Name = "uniprot"

const (
	report_scraper_search = "scraper.search"
	report_scraper_decode = "scraper.decode"
	report_scraper_fetch  = "scraper.fetch"
)

type Options struct {
	SearchUrl string
	SiteUrl   string
	// Delay is the pause before following a next page link.
	Delay time.Duration
}

func DefaultOptions() Options {
	return Options{
		SearchUrl: "https://rest.uniprot.org/uniprotkb/search",
		SiteUrl:   "https://www.uniprot.org/uniprotkb/",
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

	req := transport.Request{
		Method: http.MethodGet,
		URL:    s.opts.SearchUrl,
		Params: url.Values{
			"query":  {term},
			"format": {"json"},
			"size":   {strconv.Itoa(maxResults)},
		},
	}

	index := 0
	for page := 1; ; page++ {
		res := s.deps.Client.Do(ctx, s.deps.Retry.Apply(req))
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		if !res.OK() {
			s.tel.ReportWarning(report_scraper_search, res.Err, term, page)
			break
		}

		results := res.JSON().Get("results")
		if !results.IsArray() {
			s.tel.ReportWarning(report_scraper_decode, fmt.Errorf("response has no results"), term, page)
			break
		}

		items := results.Array()
		for _, item := range items {
			if index >= maxResults {
				break
			}
			e := decodeEntry(item)
			if e.Accession == "" {
				batch.Skip(index, "", "no accession")
			} else {
				batch.Add(e.record(s.opts.SiteUrl))
				s.tel.ReportDebug("processed uniprot entry", e.Accession)
			}
			index++
		}

		next := nextPage(res.Header.Get("Link"))
		if index >= maxResults || len(items) == 0 || next == "" {
			break
		}
		err := s.deps.Sleep.Sleep(ctx, s.opts.Delay)
		if err != nil {
			return batch, err
		}
		req = transport.Request{Method: http.MethodGet, URL: next}
	}

	s.tel.ReportCount(report_scraper_fetch, int64(batch.Len()))
	return batch, nil
}
