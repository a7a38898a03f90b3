// Package config loads and validates the run configuration. Validation
// happens before any network activity, every problem is reported at once.
package config

import (
	"errors"
	"fmt"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/components/transport"
	"medresai-scraper/internal/notify"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/internal/scrapers/registry"
	"medresai-scraper/internal/sink/sheets"
	configlibsql "medresai-scraper/lib/configuration/libsql"
	"medresai-scraper/lib/configutil"
	libtelemetry "medresai-scraper/lib/telemetry"
	"medresai-scraper/lib/textutil"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultPath = "protscrape.json5"

var (
	ErrNoSearchTerms        = errors.New("no search terms configured")
	ErrBlankSearchTerm      = errors.New("search term is blank")
	ErrNoEnabledSources     = errors.New("no sources are enabled")
	ErrUnknownSource        = errors.New("unknown source")
	ErrInvalidMaxRetries    = errors.New("transport.max_retries must be at least 1")
	ErrInvalidDelay         = errors.New("delays must not be negative")
	ErrDelayNotSupported    = errors.New("source makes a single request per term, delay_ms has no effect")
	ErrInvalidMaxResults    = errors.New("max_results must not be negative")
	ErrNoOutputDir          = errors.New("output_dir is empty")
	ErrOutputDirNotWritable = errors.New("output directory is not writable")
)

// SourceConfig overrides the defaults of one source. Pointer fields tell an
// explicit zero or false apart from an absent key.
type SourceConfig struct {
	Enabled    *bool `json:"enabled" yaml:"enabled"`
	MaxResults *int  `json:"max_results" yaml:"max_results"`
	DelayMs    *int  `json:"delay_ms" yaml:"delay_ms"`
}

type TransportConfig struct {
	MaxRetries        *int    `json:"max_retries" yaml:"max_retries"`
	InitialDelayMs    *int    `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	TimeoutSec        *int    `json:"timeout_sec" yaml:"timeout_sec"`
	UserAgent         string  `json:"user_agent" yaml:"user_agent"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass" yaml:"cloudflare_bypass"`
	// DumpDir, when set, receives every request and response for debugging.
	DumpDir string `json:"dump_dir" yaml:"dump_dir"`
}

type Config struct {
	SearchTerms []string                `json:"search_terms" yaml:"search_terms"`
	OutputDir   string                  `json:"output_dir" yaml:"output_dir"`
	TermDelayMs *int                    `json:"term_delay_ms" yaml:"term_delay_ms"`
	Sources     map[string]SourceConfig `json:"sources" yaml:"sources"`
	Transport   TransportConfig         `json:"transport" yaml:"transport"`
	Sheets      sheets.Config           `json:"sheets" yaml:"sheets"`
	Archive     configlibsql.Struct     `json:"archive" yaml:"archive"`
	Logging     telemetry.LogConfig     `json:"logging" yaml:"logging"`
	Telemetry   libtelemetry.Config     `json:"telemetry" yaml:"telemetry"`
	Notify      notify.Config           `json:"notify" yaml:"notify"`
}

func intPtr(v int) *int {
	return &v
}

// Default is the configuration used when no file exists.
func Default() Config {
	return Config{
		SearchTerms: []string{
			"SARS-CoV-2 spike",
			"coronavirus main protease",
			"viral protein antibody complex",
		},
		OutputDir:   "scraped_data",
		TermDelayMs: intPtr(2000),
		Sources:     map[string]SourceConfig{},
		Transport: TransportConfig{
			MaxRetries:     intPtr(transport.DefaultMaxRetries),
			InitialDelayMs: intPtr(int(transport.DefaultInitialDelay / time.Millisecond)),
			TimeoutSec:     intPtr(int(transport.DefaultTimeout / time.Second)),
			UserAgent:      transport.DefaultUserAgent,
		},
		Sheets: sheets.Config{
			CredentialsFile: "google_credentials.json",
			SpreadsheetName: "Protein Database Data",
		},
		Logging: telemetry.LogConfig{
			Level:      "info",
			File:       "scraper.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads path (plus its ".local" override) on top of Default. A bare file
// name is searched for in the working directory and its parents. A missing
// file is not an error, the defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	read := configutil.ReadConfig[Config]
	if filepath.Base(path) == path {
		// a bare file name is looked up from the working directory upwards
		read = configutil.ReadRecursively[Config]
	}
	file, err := read(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	merge(&cfg, file)
	return cfg, nil
}

// merge copies every field file sets onto cfg.
func merge(cfg *Config, file Config) {
	if file.SearchTerms != nil {
		cfg.SearchTerms = file.SearchTerms
	}
	if file.OutputDir != "" {
		cfg.OutputDir = file.OutputDir
	}
	if file.TermDelayMs != nil {
		cfg.TermDelayMs = file.TermDelayMs
	}
	for name, src := range file.Sources {
		cfg.Sources[name] = src
	}

	t := file.Transport
	if t.MaxRetries != nil {
		cfg.Transport.MaxRetries = t.MaxRetries
	}
	if t.InitialDelayMs != nil {
		cfg.Transport.InitialDelayMs = t.InitialDelayMs
	}
	if t.TimeoutSec != nil {
		cfg.Transport.TimeoutSec = t.TimeoutSec
	}
	if t.UserAgent != "" {
		cfg.Transport.UserAgent = t.UserAgent
	}
	cfg.Transport.RequestsPerSecond = t.RequestsPerSecond
	cfg.Transport.CloudflareBypass = t.CloudflareBypass
	cfg.Transport.DumpDir = t.DumpDir

	if file.Sheets.CredentialsFile != "" {
		cfg.Sheets.CredentialsFile = file.Sheets.CredentialsFile
	}
	if file.Sheets.SpreadsheetName != "" {
		cfg.Sheets.SpreadsheetName = file.Sheets.SpreadsheetName
	}
	cfg.Sheets.SpreadsheetId = file.Sheets.SpreadsheetId
	cfg.Sheets.ShareWith = file.Sheets.ShareWith

	cfg.Archive = file.Archive
	if file.Logging.Level != "" {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.File != "" {
		cfg.Logging.File = file.Logging.File
	}
	if file.Logging.MaxSizeMB != 0 {
		cfg.Logging.MaxSizeMB = file.Logging.MaxSizeMB
	}
	if file.Logging.MaxBackups != 0 {
		cfg.Logging.MaxBackups = file.Logging.MaxBackups
	}
	cfg.Telemetry = file.Telemetry
	cfg.Notify = file.Notify
}

func millis(v *int) time.Duration {
	if v == nil {
		return 0
	}
	return time.Duration(*v) * time.Millisecond
}

func (c Config) TermDelay() time.Duration {
	return millis(c.TermDelayMs)
}

// sourceOverrides keys the configured sources by their normalized name.
func (c Config) sourceOverrides() (map[string]SourceConfig, []string) {
	out := map[string]SourceConfig{}
	var unknown []string
	for name, src := range c.Sources {
		normalized := textutil.NormalizeName(name)
		if !registry.Known(normalized) {
			unknown = append(unknown, name)
			continue
		}
		out[normalized] = src
	}
	return out, unknown
}

// Descriptors returns every known source, configured overrides applied, in
// run order. Disabled sources are included.
func (c Config) Descriptors() []scrapers.Descriptor {
	overrides, _ := c.sourceOverrides()
	descs := registry.Defaults()
	for i, d := range descs {
		o, ok := overrides[d.Name]
		if !ok {
			continue
		}
		if o.Enabled != nil {
			d.Enabled = *o.Enabled
		}
		if o.MaxResults != nil {
			d.MaxResults = *o.MaxResults
		}
		if o.DelayMs != nil {
			d.Delay = millis(o.DelayMs)
		}
		descs[i] = d
	}
	return descs
}

// Enabled is Descriptors without the disabled sources.
func (c Config) Enabled() []scrapers.Descriptor {
	var out []scrapers.Descriptor
	for _, d := range c.Descriptors() {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

func (c Config) Retry() scrapers.Retry {
	retry := scrapers.DefaultRetry()
	if c.Transport.MaxRetries != nil {
		retry.MaxRetries = *c.Transport.MaxRetries
	}
	if c.Transport.InitialDelayMs != nil {
		retry.InitialDelay = millis(c.Transport.InitialDelayMs)
	}
	return retry
}

func (c Config) TransportOptions() transport.Options {
	timeout := transport.DefaultTimeout
	if c.Transport.TimeoutSec != nil && *c.Transport.TimeoutSec > 0 {
		timeout = time.Duration(*c.Transport.TimeoutSec) * time.Second
	}
	return transport.Options{
		Timeout:           timeout,
		UserAgent:         c.Transport.UserAgent,
		RequestsPerSecond: c.Transport.RequestsPerSecond,
		CloudflareBypass:  c.Transport.CloudflareBypass,
		DumpDir:           c.Transport.DumpDir,
	}
}

// Validate checks everything that can be checked without the network or
// the filesystem.
func (c Config) Validate() error {
	var errs []error

	terms := 0
	for i, term := range c.SearchTerms {
		if strings.TrimSpace(term) == "" {
			errs = append(errs, fmt.Errorf("%w: search_terms[%d]", ErrBlankSearchTerm, i))
			continue
		}
		terms++
	}
	if terms == 0 {
		errs = append(errs, ErrNoSearchTerms)
	}

	_, unknown := c.sourceOverrides()
	for _, name := range unknown {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownSource, name))
	}
	if len(c.Enabled()) == 0 {
		errs = append(errs, ErrNoEnabledSources)
	}
	for name, src := range c.Sources {
		if src.MaxResults != nil && *src.MaxResults < 0 {
			errs = append(errs, fmt.Errorf("%w: sources.%s", ErrInvalidMaxResults, name))
		}
		if src.DelayMs != nil && *src.DelayMs < 0 {
			errs = append(errs, fmt.Errorf("%w: sources.%s.delay_ms", ErrInvalidDelay, name))
		}
		normalized := textutil.NormalizeName(name)
		if src.DelayMs != nil && *src.DelayMs > 0 && registry.Known(normalized) && !registry.Paced(normalized) {
			errs = append(errs, fmt.Errorf("%w: sources.%s.delay_ms", ErrDelayNotSupported, name))
		}
	}

	if c.Transport.MaxRetries != nil && *c.Transport.MaxRetries < 1 {
		errs = append(errs, ErrInvalidMaxRetries)
	}
	if c.Transport.InitialDelayMs != nil && *c.Transport.InitialDelayMs < 0 {
		errs = append(errs, fmt.Errorf("%w: transport.initial_delay_ms", ErrInvalidDelay))
	}
	if c.TermDelayMs != nil && *c.TermDelayMs < 0 {
		errs = append(errs, fmt.Errorf("%w: term_delay_ms", ErrInvalidDelay))
	}
	if c.OutputDir == "" {
		errs = append(errs, ErrNoOutputDir)
	}

	return errors.Join(errs...)
}

// EnsureOutputDir creates the output directory and proves it is writable.
func (c Config) EnsureOutputDir() error {
	err := os.MkdirAll(c.OutputDir, 0o755)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputDirNotWritable, err)
	}
	check, err := os.CreateTemp(c.OutputDir, ".check-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputDirNotWritable, err)
	}
	check.Close()
	return os.Remove(filepath.Clean(check.Name()))
}
