package ncbivirus

import (
	"medresai-scraper/internal/record"
	"net/url"

	"github.com/tidwall/gjson"
)

// entry is one search hit. Missing strings are "", a missing length is 0.
type entry struct {
	Accession      string
	Title          string
	VirusSpecies   string
	CollectionDate string
	Length         int64
}

// decodeHit returns false when the hit carries no _source document.
func decodeHit(hit gjson.Result) (entry, bool) {
	src := hit.Get("_source")
	if !src.IsObject() {
		return entry{}, false
	}
	return entry{
		Accession:      src.Get("accession").String(),
		Title:          src.Get("title").String(),
		VirusSpecies:   src.Get("taxonomy.species.name").String(),
		CollectionDate: src.Get("collection_date").String(),
		Length:         src.Get("length").Int(),
	}, true
}

func (e entry) record(siteUrl string) record.Record {
	link := ""
	if e.Accession != "" {
		link = siteUrl + url.QueryEscape(e.Accession)
	}

	var r record.Record
	r.Set("accession", e.Accession)
	r.Set("title", e.Title)
	r.Set("virus_species", e.VirusSpecies)
	r.Set("collection_date", e.CollectionDate)
	r.Set("length", e.Length)
	r.Set(record.FieldURL, link)
	return r
}
