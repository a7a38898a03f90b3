package bindingdb

import (
	"context"
	"medresai-scraper/internal/record"
	"medresai-scraper/lib/htmlutil"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resultsHeader is the text of the first header cell of the results table.
const resultsHeader = "Target Name/Synonyms/UniProt ID"

const minCells = 6

var (
	uniprotRegex   = regexp.MustCompile(`UniProt:\s*([A-Z0-9]+)`)
	monomerIdRegex = regexp.MustCompile(`monomerid=(\d+)`)
)

// entry is one row of the results table, every field defaults to "".
type entry struct {
	TargetId      string
	TargetName    string
	LigandId      string
	LigandName    string
	AffinityType  string
	AffinityValue string
	AffinityUnit  string
	TargetUrl     string
	LigandUrl     string
}

func decodeRow(ctx context.Context, cells []*goquery.Selection, base *url.URL) entry {
	e := entry{
		TargetName:    htmlutil.CleanText(cells[0]),
		LigandName:    htmlutil.CleanText(cells[1]),
		AffinityType:  htmlutil.CleanText(cells[2]),
		AffinityValue: htmlutil.CleanText(cells[3]),
		AffinityUnit:  htmlutil.CleanText(cells[4]),
	}

	if strings.Contains(strings.ToLower(e.TargetName), "uniprot") {
		groups := uniprotRegex.FindStringSubmatch(e.TargetName)
		if len(groups) > 1 {
			e.TargetId = groups[1]
		}
	}

	target, ok := htmlutil.FirstAnchor(ctx, cells[0], base)
	if ok {
		e.TargetUrl = target.Href
	}
	ligand, ok := htmlutil.FirstAnchor(ctx, cells[1], base)
	if ok {
		e.LigandUrl = ligand.Href
		groups := monomerIdRegex.FindStringSubmatch(ligand.Href)
		if len(groups) > 1 {
			e.LigandId = groups[1]
		}
	}
	return e
}

// id identifies the row in logs.
func (e entry) id() string {
	target := e.TargetId
	if target == "" {
		target = "Unknown"
	}
	ligand := e.LigandId
	if ligand == "" {
		ligand = "Unknown"
	}
	return target + "/" + ligand
}

func (e entry) record() record.Record {
	link := e.TargetUrl
	if link == "" {
		link = e.LigandUrl
	}

	var r record.Record
	r.Set("target_id", e.TargetId)
	r.Set("target_name", e.TargetName)
	r.Set("ligand_id", e.LigandId)
	r.Set("ligand_name", e.LigandName)
	r.Set("affinity_type", e.AffinityType)
	r.Set("affinity_value", e.AffinityValue)
	r.Set("affinity_unit", e.AffinityUnit)
	r.Set("target_url", e.TargetUrl)
	r.Set("ligand_url", e.LigandUrl)
	r.Set(record.FieldURL, link)
	return r
}
