package pdbekb

import (
	"medresai-scraper/internal/record"
	"strings"

	"github.com/tidwall/gjson"
)

// entry is one Solr document. Strings default to "". Resolution is kept as
// upstream rendered it and is "" when missing.
type entry struct {
	PdbId              string
	Title              string
	ExperimentalMethod string
	Resolution         string
	Organism           string
	DepositionDate     string
}

// joined renders a value that is sometimes a list and sometimes a scalar.
func joined(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	var parts []string
	for _, item := range v.Array() {
		parts = append(parts, item.String())
	}
	return strings.Join(parts, ", ")
}

func decodeDoc(doc gjson.Result) entry {
	return entry{
		PdbId:              doc.Get("pdb_id").String(),
		Title:              joined(doc.Get("title")),
		ExperimentalMethod: joined(doc.Get("experimental_method")),
		Resolution:         doc.Get("resolution").String(),
		Organism:           joined(doc.Get("organism_scientific_name")),
		DepositionDate:     doc.Get("deposition_date").String(),
	}
}

func (e entry) record(siteUrl string) record.Record {
	var r record.Record
	r.Set("pdb_id", e.PdbId)
	r.Set("title", e.Title)
	r.Set("experimental_method", e.ExperimentalMethod)
	r.Set("resolution", e.Resolution)
	r.Set("organism", e.Organism)
	r.Set("deposition_date", e.DepositionDate)
	r.Set(record.FieldURL, siteUrl+e.PdbId)
	return r
}
