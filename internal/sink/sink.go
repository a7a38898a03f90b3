// Package sink persists batches. Every batch becomes one write-once CSV file,
// optionally mirrored to secondary destinations on a best-effort basis.
package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/chrono"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/scrapers"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	report_sink_write  = "sink.write"
	report_sink_empty  = "sink.empty-batch"
	report_sink_mirror = "sink.mirror"
	report_sink_rows   = "sink.rows"
)

// ErrBlankTag is returned for a batch whose source or search term is blank,
// such records could not be attributed later.
var ErrBlankTag = errors.New("sink: source and search term must not be blank")

// FileTimestampLayout is the timestamp embedded in artifact file names.
const FileTimestampLayout = "20060102_150405"

// maxCollisions bounds how many "_N" suffixes are tried for one file name.
const maxCollisions = 1000

// TagColumns are appended to every artifact after the adapter's own fields.
var TagColumns = []string{record.FieldSource, record.FieldSearchTerm, record.FieldScrapedAt}

// Artifact describes a written CSV file.
type Artifact struct {
	Path       string
	Rows       int
	Columns    []string
	CapturedAt time.Time
}

// MirrorBatch is a tagged batch laid out as a table.
type MirrorBatch struct {
	Source     string
	Term       string
	CapturedAt time.Time
	Columns    []string
	Rows       [][]string
	Records    []record.Record
}

// Mirror is a secondary destination for batches, its failures never affect
// the CSV artifact.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, batch MirrorBatch) error
}

type Sink struct {
	dir     string
	clock   chrono.TimeAPI
	tel     telemetry.API
	mirrors []Mirror
	link    func(oldname, newname string) error
}

func New(dir string, clock chrono.TimeAPI, tel telemetry.API, mirrors ...Mirror) *Sink {
	assert.NotEmptyStr(dir)
	assert.NotNil(clock)
	assert.NotNil(tel)

	var active []Mirror
	for _, m := range mirrors {
		if m != nil {
			active = append(active, m)
		}
	}
	return &Sink{
		dir:     dir,
		clock:   clock,
		tel:     tel,
		mirrors: active,
		link:    os.Link,
	}
}

// Tag returns copies of records carrying the run metadata.
func Tag(records []record.Record, source, term string, capturedAt time.Time) []record.Record {
	scrapedAt := capturedAt.Format(record.ScrapedAtLayout)
	out := make([]record.Record, len(records))
	for i, r := range records {
		tagged := r.Clone()
		tagged.Set(record.FieldSource, source)
		tagged.Set(record.FieldSearchTerm, term)
		tagged.Set(record.FieldScrapedAt, scrapedAt)
		out[i] = tagged
	}
	return out
}

// Write persists batch as a new CSV file and then hands it to the mirrors.
// An empty batch writes nothing and returns a zero Artifact.
func (s *Sink) Write(ctx context.Context, batch record.Batch, source scrapers.Descriptor, term string) (Artifact, error) {
	if strings.TrimSpace(source.Name) == "" || strings.TrimSpace(term) == "" {
		err := fmt.Errorf("%w: source %q, term %q", ErrBlankTag, source.Name, term)
		s.tel.ReportBroken(report_sink_write, err)
		return Artifact{}, err
	}
	if batch.Empty() {
		s.tel.ReportWarning(report_sink_empty, source.Name, term)
		return Artifact{}, nil
	}

	capturedAt := s.clock.Now()
	records := Tag(batch.Records, source.Name, term, capturedAt)
	columns := record.Columns(records, TagColumns...)
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = record.Row(r, columns)
	}

	path, err := s.writeFile(source.Name, capturedAt, columns, rows)
	artifact := Artifact{
		Path:       path,
		Rows:       len(rows),
		Columns:    columns,
		CapturedAt: capturedAt,
	}
	if err != nil {
		s.tel.ReportBroken(report_sink_write, err, source.Name, term)
		artifact = Artifact{CapturedAt: capturedAt}
	} else {
		s.tel.ReportDebug(fmt.Sprintf("saved %d records to %s", len(rows), path))
		s.tel.ReportCount(report_sink_rows, int64(len(rows)))
	}

	mirrored := MirrorBatch{
		Source:     source.Name,
		Term:       term,
		CapturedAt: capturedAt,
		Columns:    columns,
		Rows:       rows,
		Records:    records,
	}
	for _, m := range s.mirrors {
		merr := mirror(ctx, m, mirrored)
		if merr != nil {
			s.tel.ReportWarning(report_sink_mirror, fmt.Errorf("%s: %w", m.Name(), merr), source.Name, term)
		}
	}

	return artifact, err
}

// mirror runs one mirror, a panic inside it becomes its error.
func mirror(ctx context.Context, m Mirror, batch MirrorBatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return m.Mirror(ctx, batch)
}

// writeFile writes the table to a temporary file and links it into place
// under the first free name, so a half-written file is never visible and an
// existing artifact is never replaced.
func (s *Sink) writeFile(source string, capturedAt time.Time, columns []string, rows [][]string) (string, error) {
	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".%s-*.csv.tmp", source))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	err = w.Write(columns)
	if err == nil {
		err = w.WriteAll(rows)
	}
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close csv: %w", closeErr)
	}

	base := fmt.Sprintf("%s_%s", source, capturedAt.Format(FileTimestampLayout))
	for n := 1; n <= maxCollisions; n++ {
		name := base + ".csv"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.csv", base, n)
		}
		target := filepath.Join(s.dir, name)

		err := s.link(tmpPath, target)
		if linkUnsupported(err) {
			err = copyExclusive(tmpPath, target)
		}
		if err == nil {
			return target, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return "", fmt.Errorf("publish %s: %w", target, err)
	}
	return "", fmt.Errorf("publish %s: more than %d artifacts with the same name", base, maxCollisions)
}

// linkUnsupported reports filesystems without hard links. FAT and exFAT
// answer EPERM, FUSE and SMB mounts usually ENOTSUP or ENOSYS.
func linkUnsupported(err error) bool {
	return err != nil && (errors.Is(err, errors.ErrUnsupported) || errors.Is(err, syscall.EPERM))
}

// copyExclusive copies src to a new file at dst, failing with os.ErrExist
// when dst is already taken. A failed copy removes what it created.
func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
