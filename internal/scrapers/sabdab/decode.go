package sabdab

import (
	"medresai-scraper/internal/record"
	"medresai-scraper/lib/htmlutil"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

const minCells = 6

// csrfToken reads the token the search form must be posted with, "" when the
// page carries none.
func csrfToken(doc *goquery.Document) string {
	token, _ := doc.Find(`input[name="csrfmiddlewaretoken"]`).First().Attr("value")
	return token
}

// entry is one row of the results table, every field defaults to "".
type entry struct {
	PdbId         string
	AntibodyChain string
	AntigenChain  string
	Antigen       string
	Resolution    string
}

func decodeRow(cells []*goquery.Selection) entry {
	return entry{
		PdbId:         htmlutil.CleanText(cells[0]),
		AntibodyChain: htmlutil.CleanText(cells[1]),
		AntigenChain:  htmlutil.CleanText(cells[2]),
		Antigen:       htmlutil.CleanText(cells[3]),
		Resolution:    htmlutil.CleanText(cells[4]),
	}
}

func (e entry) record(siteUrl string) record.Record {
	var r record.Record
	r.Set("pdb_id", e.PdbId)
	r.Set("antigen", e.Antigen)
	r.Set("antibody_chain", e.AntibodyChain)
	r.Set("antigen_chain", e.AntigenChain)
	r.Set("resolution", e.Resolution)
	r.Set(record.FieldURL, siteUrl+url.PathEscape(e.PdbId))
	return r
}
