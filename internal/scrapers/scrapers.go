// Package scrapers defines the contract every source adapter implements.
//
// Each adapter's fetch generally has this structure:
//  1. transform the search term into one or more HTTP requests.
//  2. make the requests through the retrying transport.
//  3. make assertions on the response (status, expected shape).
//  4. decode the response into typed entries, then into flat records.
//
// Decoding lives in each adapter's decode.go, it is the only place that knows
// which upstream keys may be missing and what they default to.
package scrapers

import (
	"context"
	"medresai-scraper/internal/components/chrono"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/components/transport"
	"medresai-scraper/internal/record"
	"time"
)

type Scraper interface {
	Name() string
	// Fetch queries the source for term and returns at most maxResults
	// records. Upstream failures produce an empty or partial batch, the
	// error is only non-nil when ctx is done.
	Fetch(ctx context.Context, term string, maxResults int) (record.Batch, error)
}

// Descriptor is the configuration of one source within a run.
type Descriptor struct {
	Name       string
	Enabled    bool
	MaxResults int
	// Delay is the pause between consecutive detail or page requests.
	Delay time.Duration
}

// Retry is the retry policy adapters pass along with every request.
type Retry struct {
	MaxRetries   int
	InitialDelay time.Duration
}

func DefaultRetry() Retry {
	return Retry{
		MaxRetries:   transport.DefaultMaxRetries,
		InitialDelay: transport.DefaultInitialDelay,
	}
}

// Apply copies the retry policy onto req.
func (r Retry) Apply(req transport.Request) transport.Request {
	req.MaxRetries = r.MaxRetries
	req.InitialDelay = r.InitialDelay
	return req
}

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Client *transport.Client
	Tel    telemetry.API
	Sleep  chrono.SleepAPI
	Retry  Retry
}
