// Package sabdab searches the Structural Antibody Database. The search form
// is protected by a csrf token, so a session is opened with a GET before the
// form is posted.
package sabdab

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
	"time"
)

const Name = "sabdab"

const (
	report_scraper_session = "scraper.session"
	report_scraper_search  = "scraper.search"
	report_scraper_parse   = "scraper.parse"
	report_scraper_fetch   = "scraper.fetch"
)

type Options struct {
	SearchUrl string
	// SiteUrl is the prefix the pdb id is appended to.
	SiteUrl string
	// Delay is the pause between opening the session and posting the form.
	Delay time.Duration
}

func DefaultOptions() Options {
	return Options{
		SearchUrl: "http://opig.stats.ox.ac.uk/webapps/sabdab/sabdab/search/",
		SiteUrl:   "http://opig.stats.ox.ac.uk/webapps/sabdab/sabdab/structure/",
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

func searchForm(token, term string) url.Values {
	return url.Values{
		"csrfmiddlewaretoken": {token},
		"seq":                 {""},
		"cdrs":                {""},
		"clustered":           {"on"},
		"resolution_min":      {""},
		"resolution_max":      {""},
		"rfactor_min":         {""},
		"rfactor_max":         {""},
		"antigen":             {term},
		"species":             {""},
		"model":               {"all"},
	}
}

func (s *Scraper) session(ctx context.Context) (string, error) {
	res := s.deps.Client.Do(ctx, s.deps.Retry.Apply(transport.Request{
		Method: http.MethodGet,
		URL:    s.opts.SearchUrl,
	}))
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !res.OK() {
		s.tel.ReportWarning(report_scraper_session, res.Err)
		return "", nil
	}
	doc, err := res.Document()
	if err != nil {
		s.tel.ReportWarning(report_scraper_session, fmt.Errorf("parse search form: %w", err))
		return "", nil
	}
	token := csrfToken(doc)
	if token == "" {
		s.tel.ReportWarning(report_scraper_session, fmt.Errorf("csrf token not found"))
	}
	return token, nil
}

func (s *Scraper) Fetch(ctx context.Context, term string, maxResults int) (record.Batch, error) {
	var batch record.Batch
	if maxResults <= 0 {
		return batch, nil
	}

	token, err := s.session(ctx)
	if err != nil {
		return batch, err
	}
	if token == "" {
		return batch, nil
	}
	err = s.deps.Sleep.Sleep(ctx, s.opts.Delay)
	if err != nil {
		return batch, err
	}

	res := s.deps.Client.Do(ctx, s.deps.Retry.Apply(transport.Request{
		Method:  http.MethodPost,
		URL:     s.opts.SearchUrl,
		Params:  searchForm(token, term),
		Headers: map[string]string{"Referer": s.opts.SearchUrl},
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
	table := doc.Find("table.results").First()
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
		e := decodeRow(cells)
		if e.PdbId == "" {
			batch.Skip(i, "", "no pdb id")
			continue
		}
		batch.Add(e.record(s.opts.SiteUrl))
		s.tel.ReportDebug("processed sabdab entry", e.PdbId)
	}

	s.tel.ReportCount(report_scraper_fetch, int64(batch.Len()))
	return batch, nil
}
