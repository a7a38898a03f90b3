package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/chrono"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/lib/restyutil"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_transport_retry     = "transport.retry"
	report_transport_exhausted = "transport.exhausted"
	report_transport_method    = "transport.unsupported-method"
	report_transport_dump      = "transport.dump"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultTimeout      = time.Second * 30
	DefaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var errUnsupportedMethod = errors.New("unsupported method")

type Request struct {
	Method string
	URL    string
	// Params is the query string of a GET and the form body of a POST
	// without JSON.
	Params  url.Values
	JSON    any
	Headers map[string]string
	// MaxRetries bounds the total number of attempts, values below 1 mean 1.
	MaxRetries   int
	InitialDelay time.Duration
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond caps the request rate across the whole client,
	// 0 disables the limit.
	RequestsPerSecond float64
	CloudflareBypass  bool
	// DumpDir, when set, receives one file per request/response pair.
	DumpDir string

	// NewTimer creates the timer that waits between attempts, nil uses a
	// real timer.
	NewTimer func() backoff.Timer
	Time     chrono.TimeAPI
}

type Client struct {
	http     *resty.Client
	tel      telemetry.API
	newTimer func() backoff.Timer
}

func NewClient(tel telemetry.API, opts Options) (*Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("transport", tel)

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Time == nil {
		opts.Time = chrono.NewStandardTime()
	}

	httpClient := resty.New()
	// sessions (csrf tokens, cookies) carry over between the requests of an adapter
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeader("user-agent", opts.UserAgent)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	if opts.RequestsPerSecond > 0 {
		burst := int(math.Ceil(opts.RequestsPerSecond))
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	var output restyutil.InstrumentOutput
	if opts.DumpDir != "" {
		fsout, err := restyutil.NewFilesystemOutput(opts.DumpDir, opts.Time.Now())
		if err != nil {
			return nil, err
		}
		tel.ReportDebug(report_transport_dump, fsout.Dir())
		output = fsout
	}
	restyutil.InstrumentClient(httpClient, nil, output)
	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		http:     httpClient,
		tel:      tel,
		newTimer: opts.NewTimer,
	}, nil
}

// Do performs req, retrying transport errors and non-2xx statuses with
// exponential backoff. It never returns an error, a request that failed every
// attempt yields a Response with OK() false.
func (c *Client) Do(ctx context.Context, req Request) Response {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		err := fmt.Errorf("%w: %s", errUnsupportedMethod, req.Method)
		c.tel.ReportBroken(report_transport_method, err, req.URL)
		return Response{Err: err}
	}
	req.Method = method

	maxRetries := req.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	initialDelay := req.InitialDelay
	if initialDelay < 0 {
		initialDelay = 0
	}

	var last Response
	attempts := 0
	operation := func() error {
		attempts++
		res, err := c.attempt(ctx, req)
		last = res
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		c.tel.ReportWarning(
			report_transport_retry,
			fmt.Errorf("attempt %d/%d: %w", attempts, maxRetries, err),
			req.Method,
			req.URL,
			fmt.Sprintf("retrying in %s", next),
		)
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(
		operation,
		backoff.WithContext(
			backoff.WithMaxRetries(schedule(initialDelay), uint64(maxRetries-1)),
			ctx,
		),
		notify,
		timer,
	)
	last.Attempts = attempts
	if err != nil {
		last.Err = err
		c.tel.ReportBroken(
			report_transport_exhausted,
			fmt.Errorf("gave up after %d attempt(s): %w", attempts, err),
			req.Method,
			req.URL,
		)
	}
	return last
}

// schedule waits initial, 2*initial, 4*initial, ... between attempts.
func schedule(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Client) attempt(ctx context.Context, req Request) (Response, error) {
	r := c.http.R().SetContext(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}

	switch req.Method {
	case http.MethodGet:
		if len(req.Params) > 0 {
			r.SetQueryParamsFromValues(req.Params)
		}
	case http.MethodPost:
		if req.JSON != nil {
			r.SetHeader("Content-Type", "application/json")
			r.SetBody(req.JSON)
		} else if len(req.Params) > 0 {
			r.SetFormDataFromValues(req.Params)
		}
	}

	res, err := r.Execute(req.Method, req.URL)

	var out Response
	if res != nil && res.RawResponse != nil {
		out.Status = res.StatusCode()
		out.Header = res.Header()
		out.Body = res.Body()
	}
	if err != nil {
		return out, err
	}
	if !res.IsSuccess() {
		return out, fmt.Errorf("http %s", res.Status())
	}
	return out, nil
}
