// Package sheets mirrors batches into a Google Sheets spreadsheet, one
// worksheet per source and calendar day. Every write clears the worksheet
// and replaces its contents, so a worksheet holds the latest batch of that day.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/sink"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	report_sheets_resolve = "sheets.resolve-spreadsheet"
	report_sheets_share   = "sheets.share"
	report_sheets_update  = "sheets.update-worksheet"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// WorksheetDateLayout is the date embedded in worksheet names.
const WorksheetDateLayout = "20060102"

var ErrNoCredentials = errors.New("sheets: credentials file not found")

type Config struct {
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	// SpreadsheetId addresses the spreadsheet directly, when empty the
	// spreadsheet is looked up by SpreadsheetName and created if missing.
	SpreadsheetId   string `json:"spreadsheet_id" yaml:"spreadsheet_id"`
	SpreadsheetName string `json:"spreadsheet_name" yaml:"spreadsheet_name"`
	// ShareWith is an email address a newly created spreadsheet is shared with.
	ShareWith string `json:"share_with" yaml:"share_with"`
}

func (c Config) Enabled() bool {
	return c.CredentialsFile != ""
}

type Mirror struct {
	sheets *gsheets.Service
	drive  *drive.Service
	cfg    Config
	tel    telemetry.API

	mu            sync.Mutex
	spreadsheetId string
}

// New authenticates with the service account in cfg.CredentialsFile. A
// missing file is reported as ErrNoCredentials.
func New(ctx context.Context, cfg Config, tel telemetry.API) (*Mirror, error) {
	key, err := os.ReadFile(cfg.CredentialsFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, cfg.CredentialsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("sheets: read credentials: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(key, gsheets.SpreadsheetsScope, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("sheets: parse credentials: %w", err)
	}
	httpClient := jwtConfig.Client(ctx)

	sheetsService, err := gsheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("sheets: create sheets client: %w", err)
	}
	driveService, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("sheets: create drive client: %w", err)
	}
	return NewWithServices(sheetsService, driveService, cfg, tel), nil
}

// NewWithServices builds a mirror from existing API clients. driveService
// may be nil when cfg.SpreadsheetId is set.
func NewWithServices(sheetsService *gsheets.Service, driveService *drive.Service, cfg Config, tel telemetry.API) *Mirror {
	assert.NotNil(sheetsService)
	assert.NotNil(tel)
	if cfg.SpreadsheetId == "" {
		assert.NotNil(driveService)
		assert.NotEmptyStr(cfg.SpreadsheetName)
	}

	return &Mirror{
		sheets:        sheetsService,
		drive:         driveService,
		cfg:           cfg,
		tel:           telemetry.NewScopedAPI("sheets", tel),
		spreadsheetId: cfg.SpreadsheetId,
	}
}

func WorksheetName(source string, t time.Time) string {
	return fmt.Sprintf("%s_%s", source, t.Format(WorksheetDateLayout))
}

func (m *Mirror) Name() string {
	return "sheets"
}

func (m *Mirror) Mirror(ctx context.Context, batch sink.MirrorBatch) error {
	spreadsheetId, err := m.resolve(ctx)
	if err != nil {
		m.tel.ReportBroken(report_sheets_resolve, err)
		return err
	}

	worksheet := WorksheetName(batch.Source, batch.CapturedAt)
	err = m.ensureWorksheet(ctx, spreadsheetId, worksheet, len(batch.Rows)+1, len(batch.Columns))
	if err != nil {
		m.tel.ReportBroken(report_sheets_update, err, worksheet)
		return err
	}

	sheetRange := fmt.Sprintf("'%s'", worksheet)
	_, err = m.sheets.Spreadsheets.Values.
		Clear(spreadsheetId, sheetRange, &gsheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		err = fmt.Errorf("clear %s: %w", worksheet, err)
		m.tel.ReportBroken(report_sheets_update, err)
		return err
	}

	_, err = m.sheets.Spreadsheets.Values.
		Update(spreadsheetId, sheetRange+"!A1", &gsheets.ValueRange{Values: values(batch)}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		err = fmt.Errorf("update %s: %w", worksheet, err)
		m.tel.ReportBroken(report_sheets_update, err)
		return err
	}

	m.tel.ReportDebug("updated worksheet", worksheet, len(batch.Rows))
	return nil
}

func values(batch sink.MirrorBatch) [][]any {
	out := make([][]any, 0, len(batch.Rows)+1)
	header := make([]any, len(batch.Columns))
	for i, c := range batch.Columns {
		header[i] = c
	}
	out = append(out, header)
	for _, row := range batch.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		out = append(out, cells)
	}
	return out
}

func (m *Mirror) ensureWorksheet(ctx context.Context, spreadsheetId, title string, rows, cols int) error {
	spreadsheet, err := m.sheets.Spreadsheets.Get(spreadsheetId).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return nil
		}
	}

	_, err = m.sheets.Spreadsheets.BatchUpdate(spreadsheetId, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title: title,
					GridProperties: &gsheets.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add worksheet %s: %w", title, err)
	}
	return nil
}

// resolve finds the spreadsheet id once and remembers it for the run.
func (m *Mirror) resolve(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spreadsheetId != "" {
		return m.spreadsheetId, nil
	}

	query := fmt.Sprintf(
		"name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(m.cfg.SpreadsheetName),
		spreadsheetMimeType,
	)
	list, err := m.drive.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("find spreadsheet %q: %w", m.cfg.SpreadsheetName, err)
	}
	if len(list.Files) > 0 {
		m.spreadsheetId = list.Files[0].Id
		return m.spreadsheetId, nil
	}

	created, err := m.sheets.Spreadsheets.Create(&gsheets.Spreadsheet{
		Properties: &gsheets.SpreadsheetProperties{Title: m.cfg.SpreadsheetName},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet %q: %w", m.cfg.SpreadsheetName, err)
	}
	m.spreadsheetId = created.SpreadsheetId

	if m.cfg.ShareWith != "" {
		_, err = m.drive.Permissions.Create(created.SpreadsheetId, &drive.Permission{
			Type:         "user",
			Role:         "writer",
			EmailAddress: m.cfg.ShareWith,
		}).Context(ctx).Do()
		if err != nil {
			// the spreadsheet is usable without being shared
			m.tel.ReportWarning(report_sheets_share, err, m.cfg.ShareWith)
		}
	}
	return m.spreadsheetId, nil
}

func escapeQuery(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
