package testutil

import (
	"database/sql"
	"medresai-scraper/internal/components/chrono"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/components/transport"
	"medresai-scraper/internal/scrapers"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mazen160/go-random"
	_ "modernc.org/sqlite"
)

// Upstream is a fake upstream service that counts the hits on every route.
type Upstream struct {
	*httptest.Server

	mu   sync.Mutex
	mux  *http.ServeMux
	hits map[string]int
}

func NewUpstream(t testing.TB) *Upstream {
	u := &Upstream{
		mux:  http.NewServeMux(),
		hits: map[string]int{},
	}
	u.Server = httptest.NewServer(u.mux)
	t.Cleanup(u.Close)
	return u
}

// Handle registers handler under a ServeMux pattern like "POST /query".
func (u *Upstream) Handle(pattern string, handler http.HandlerFunc) {
	u.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[pattern]++
		u.mu.Unlock()
		handler(w, r)
	})
}

// Hits is how many requests the route registered with pattern received.
func (u *Upstream) Hits(pattern string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[pattern]
}

// Body replies with a fixed body and content type.
func Body(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}
}

func JSON(body string) http.HandlerFunc {
	return Body("application/json", body)
}

func HTML(body string) http.HandlerFunc {
	return Body("text/html; charset=utf-8", body)
}

func Status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

type Env struct {
	Deps  scrapers.Deps
	Tel   *telemetry.Recorder
	Sleep *chrono.RecordSleep
}

// NewEnv wires adapter dependencies for tests: a real transport with zero
// backoff, a recording telemetry API and a sleeper that never blocks.
func NewEnv(t testing.TB) Env {
	tel := &telemetry.Recorder{}
	client, err := transport.NewClient(tel, transport.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sleep := &chrono.RecordSleep{}
	return Env{
		Deps: scrapers.Deps{
			Client: client,
			Tel:    tel,
			Sleep:  sleep,
			Retry:  scrapers.Retry{MaxRetries: 2},
		},
		Tel:   tel,
		Sleep: sleep,
	}
}

// SearchTerm returns a random, space separated search term.
func SearchTerm(t testing.TB) string {
	first, err := random.String(8)
	if err != nil {
		t.Fatal(err)
	}
	second, err := random.String(5)
	if err != nil {
		t.Fatal(err)
	}
	return strings.ToLower(first + " " + second)
}

// OpenMemoryDB opens an in-memory sqlite database with schema applied.
func OpenMemoryDB(t testing.TB, schema string) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if schema == "" {
		return db
	}
	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Fatal(err)
	}
	return db
}
