package record

import "fmt"

// Skip is a record a source could not produce.
type Skip struct {
	// Index is the position of the item in the upstream result.
	Index  int
	ID     string
	Reason string
}

func (s Skip) String() string {
	if s.ID == "" {
		return fmt.Sprintf("#%d: %s", s.Index, s.Reason)
	}
	return fmt.Sprintf("#%d (%s): %s", s.Index, s.ID, s.Reason)
}

// Batch is everything one source produced for one search term, in emission order.
type Batch struct {
	Records []Record
	Skipped []Skip
}

func (b *Batch) Add(r Record) {
	b.Records = append(b.Records, r)
}

func (b *Batch) Skip(index int, id, reason string) {
	b.Skipped = append(b.Skipped, Skip{Index: index, ID: id, Reason: reason})
}

func (b Batch) Len() int {
	return len(b.Records)
}

func (b Batch) Empty() bool {
	return len(b.Records) == 0
}

// Columns is the union of the keys of records in first-seen order, followed by
// trailing. Keys listed in trailing are only placed at the end.
func Columns(records []Record, trailing ...string) []string {
	reserved := make(map[string]bool, len(trailing))
	for _, k := range trailing {
		reserved[k] = true
	}

	seen := map[string]bool{}
	var columns []string
	for _, r := range records {
		for _, f := range r.fields {
			if seen[f.Key] || reserved[f.Key] {
				continue
			}
			seen[f.Key] = true
			columns = append(columns, f.Key)
		}
	}
	return append(columns, trailing...)
}

// Row lays r out along columns, absent keys become "".
func Row(r Record, columns []string) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = r.Value(c)
	}
	return row
}
