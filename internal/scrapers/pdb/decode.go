package pdb

import (
	"medresai-scraper/internal/record"

	"github.com/tidwall/gjson"
)

// searchHits are the entry identifiers of a search response, in rank order.
// Hits without an identifier are left out.
func searchHits(res gjson.Result) []string {
	var ids []string
	for _, item := range res.Get("result_set").Array() {
		id := item.Get("identifier").String()
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// entry is a decoded core entry. Missing strings are "", a missing resolution
// is 0.
type entry struct {
	PdbId              string
	Title              string
	DepositionDate     string
	Resolution         float64
	ExperimentalMethod string
}

func decodeEntry(id string, res gjson.Result) entry {
	return entry{
		PdbId:              id,
		Title:              res.Get("struct.title").String(),
		DepositionDate:     res.Get("rcsb_accession_info.deposit_date").String(),
		Resolution:         res.Get("rcsb_entry_info.resolution_combined.0").Float(),
		ExperimentalMethod: res.Get("exptl.0.method").String(),
	}
}

func (e entry) record(siteUrl string) record.Record {
	var r record.Record
	r.Set("pdb_id", e.PdbId)
	r.Set("title", e.Title)
	r.Set("deposition_date", e.DepositionDate)
	r.Set("resolution", e.Resolution)
	r.Set("experimental_method", e.ExperimentalMethod)
	r.Set(record.FieldURL, siteUrl+e.PdbId)
	return r
}
