package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Outcome is the result of one (term, source) pair.
type Outcome struct {
	Term     string
	Source   string
	Records  int
	Skipped  int
	Artifact string
	Err      error
}

type Summary struct {
	Started   time.Time
	Finished  time.Time
	Outcomes  []Outcome
	Cancelled bool
}

func (s Summary) Records() int {
	total := 0
	for _, o := range s.Outcomes {
		total += o.Records
	}
	return total
}

func (s Summary) Artifacts() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Artifact != "" {
			out = append(out, o.Artifact)
		}
	}
	return out
}

func (s Summary) Failed() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Table renders one row per pair.
func (s Summary) Table() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Term", "Source", "Records", "Skipped", "Artifact", "Error"})
	for _, o := range s.Outcomes {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		t.AppendRow(table.Row{o.Term, o.Source, o.Records, o.Skipped, o.Artifact, errText})
	}
	t.AppendFooter(table.Row{"", "Total", s.Records()})
	return t
}

// Report is the plain text rendering used for notifications.
func (s Summary) Report() string {
	var b strings.Builder
	status := "completed"
	if s.Cancelled {
		status = "cancelled"
	}
	fmt.Fprintf(&b, "Scraping run %s in %s.\n", status, s.Finished.Sub(s.Started).Round(time.Second))
	fmt.Fprintf(&b, "%d records in %d files, %d failed pairs.\n\n", s.Records(), len(s.Artifacts()), len(s.Failed()))
	b.WriteString(s.Table().Render())
	b.WriteString("\n")
	return b.String()
}
