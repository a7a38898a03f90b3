package transport

import (
	"bytes"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Response is the outcome of a request after all of its attempts.
// A request that ran out of attempts is still a Response, with OK() false and
// Err holding the last failure.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Attempts int
	Err      error
}

func (r Response) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

// JSON parses the body leniently, an empty or non-JSON body yields a result
// whose lookups all return zero values.
func (r Response) JSON() gjson.Result {
	if len(r.Body) == 0 || !gjson.ValidBytes(r.Body) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

func (r Response) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
}
