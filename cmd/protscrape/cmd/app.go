package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"medresai-scraper/internal/components/chrono"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/components/transport"
	"medresai-scraper/internal/config"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/internal/sink"
	"medresai-scraper/internal/sink/archive"
	"medresai-scraper/internal/sink/sheets"
	libtelemetry "medresai-scraper/lib/telemetry"
	"time"
)

const serviceName = "protscrape"

// app holds everything a command needs once configuration is validated.
type app struct {
	cfg  config.Config
	tel  telemetry.API
	deps scrapers.Deps
	sink *sink.Sink

	logFile   io.Closer
	otel      libtelemetry.Telemetry
	archive   *archive.Archive
	startedAt time.Time
}

// loadConfig reads and validates the configuration, terms replace the
// configured search terms when given. Any error here is fatal and happens
// before network activity.
func loadConfig(terms []string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if len(terms) > 0 {
		cfg.SearchTerms = terms
	}
	err = cfg.Validate()
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration:\n%w", err)
	}
	err = cfg.EnsureOutputDir()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logFile, err := telemetry.InitSlog(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	otel, err := libtelemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	libtelemetry.InstrumentPerfStats(ctx, time.Second*15)

	tel := telemetry.SlogAPI{}
	clock := chrono.NewStandardTime()

	client, err := transport.NewClient(tel, cfg.TransportOptions())
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("create http client: %w", err)
	}

	a := &app{
		cfg: cfg,
		tel: tel,
		deps: scrapers.Deps{
			Client: client,
			Tel:    tel,
			Sleep:  chrono.NewStandardSleep(),
			Retry:  cfg.Retry(),
		},
		logFile:   logFile,
		otel:      otel,
		startedAt: clock.Now(),
	}

	var mirrors []sink.Mirror
	if cfg.Sheets.Enabled() {
		m, err := sheets.New(ctx, cfg.Sheets, tel)
		switch {
		case errors.Is(err, sheets.ErrNoCredentials):
			slog.Warn("google credentials file not found, using csv output only", "file", cfg.Sheets.CredentialsFile)
		case err != nil:
			slog.Warn("could not connect to google sheets, using csv output only", "err", err)
		default:
			mirrors = append(mirrors, m)
		}
	}
	if cfg.Archive.Enabled() {
		runId, err := archive.NewRunId(a.startedAt)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("create run id: %w", err)
		}
		a.archive, err = archive.Open(ctx, cfg.Archive, runId, tel)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		slog.Info("archiving records", "run_id", a.archive.RunId())
		mirrors = append(mirrors, a.archive)
	}

	a.sink = sink.New(cfg.OutputDir, clock, tel, mirrors...)
	return a, nil
}

func (a *app) Close(ctx context.Context) {
	if a.archive != nil {
		err := a.archive.Close()
		if err != nil {
			slog.Warn("close archive", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*10)
	defer cancel()
	err := a.otel.Shutdown(shutdownCtx)
	if err != nil {
		slog.Warn("shutdown telemetry", "err", err)
	}

	a.logFile.Close()
}
