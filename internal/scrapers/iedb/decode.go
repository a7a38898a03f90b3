package iedb

import (
	"context"
	"medresai-scraper/internal/record"
	"medresai-scraper/lib/htmlutil"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

const minCells = 6

// entry is one row of the results table. EpitopeId is "Unknown" when the
// epitope cell has no link, every other field defaults to "".
type entry struct {
	EpitopeId       string
	EpitopeSequence string
	AntigenName     string
	HostOrganism    string
	Url             string
}

func decodeRow(ctx context.Context, cells []*goquery.Selection, base *url.URL) entry {
	e := entry{
		EpitopeId:       "Unknown",
		EpitopeSequence: htmlutil.CleanText(cells[0]),
		AntigenName:     htmlutil.CleanText(cells[1]),
		HostOrganism:    htmlutil.CleanText(cells[4]),
	}
	anchors := htmlutil.GetAnchors(ctx, cells[0].Find("a").First(), base)
	if len(anchors) > 0 {
		e.EpitopeId = anchors[0].Name
		e.Url = anchors[0].Href
	}
	return e
}

func (e entry) record() record.Record {
	var r record.Record
	r.Set("epitope_id", e.EpitopeId)
	r.Set("epitope_sequence", e.EpitopeSequence)
	r.Set("antigen_name", e.AntigenName)
	r.Set("host_organism", e.HostOrganism)
	r.Set(record.FieldURL, e.Url)
	return r
}
