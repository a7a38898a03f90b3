package uniprot

import (
	"medresai-scraper/internal/record"
	"regexp"

	"github.com/tidwall/gjson"
)

// entry is one UniProtKB result. Missing strings are "", a missing sequence
// length is 0 and PdbReferences is empty when there are no PDB
// cross-references.
type entry struct {
	Accession      string
	ProteinName    string
	GeneName       string
	Organism       string
	SequenceLength int64
	PdbReferences  []string
}

// proteinName prefers the recommended name, then the first submitted name,
// then the first alternative name.
func proteinName(desc gjson.Result) string {
	candidates := []string{
		"recommendedName.fullName.value",
		"submissionNames.0.fullName.value",
		"alternativeNames.0.fullName.value",
	}
	for _, path := range candidates {
		name := desc.Get(path)
		if name.Exists() {
			return name.String()
		}
	}
	return ""
}

func decodeEntry(item gjson.Result) entry {
	e := entry{
		Accession:      item.Get("primaryAccession").String(),
		ProteinName:    proteinName(item.Get("proteinDescription")),
		GeneName:       item.Get("genes.0.geneName.value").String(),
		Organism:       item.Get("organism.scientificName").String(),
		SequenceLength: item.Get("sequence.length").Int(),
	}
	for _, ref := range item.Get("uniProtKBCrossReferences").Array() {
		if ref.Get("database").String() != "PDB" {
			continue
		}
		e.PdbReferences = append(e.PdbReferences, ref.Get("id").String())
	}
	return e
}

func (e entry) record(siteUrl string) record.Record {
	var r record.Record
	r.Set("uniprot_id", e.Accession)
	r.Set("protein_name", e.ProteinName)
	r.Set("gene_name", e.GeneName)
	r.Set("organism", e.Organism)
	r.Set("sequence_length", e.SequenceLength)
	r.Set("pdb_references", e.PdbReferences)
	r.Set(record.FieldURL, siteUrl+e.Accession)
	return r
}

var nextLinkRegex = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

// nextPage extracts the rel="next" target of a Link header, "" when there is
// none.
func nextPage(link string) string {
	groups := nextLinkRegex.FindStringSubmatch(link)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}
