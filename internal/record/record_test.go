package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSetKeepsOrder(t *testing.T) {
	var r Record
	r.Set("pdb_id", "6VXX")
	r.Set("resolution", 2.8)
	r.Set(FieldURL, "https://www.rcsb.org/structure/6VXX")
	r.Set("pdb_id", "6VYB")

	require.Equal(t, []string{"pdb_id", "resolution", FieldURL}, r.Keys())
	require.Equal(t, "6VYB", r.Value("pdb_id"))
	require.Equal(t, "2.8", r.Value("resolution"))

	_, ok := r.Get("missing")
	require.False(t, ok)
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in       any
		expected string
	}{
		{nil, ""},
		{"text", "text"},
		{1273, "1273"},
		{int64(42), "42"},
		{0.0, "0"},
		{3.45, "3.45"},
		{true, "true"},
		{[]string{"6VXX", "6VYB"}, "6VXX, 6VYB"},
		{[]string{}, ""},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, Format(c.in), "%#v", c.in)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := New(Field{"a", "1"})
	c := r.Clone()
	c.Set("a", "2")
	c.Set("b", "3")
	require.Equal(t, "1", r.Value("a"))
	require.Equal(t, 1, r.Len())
	require.Equal(t, 2, c.Len())
}

func TestColumns(t *testing.T) {
	records := []Record{
		New(Field{"pdb_id", "1"}, Field{"title", "t"}, Field{FieldSource, "pdb"}),
		New(Field{"pdb_id", "2"}, Field{"resolution", "2.1"}),
	}
	columns := Columns(records, FieldSource, FieldSearchTerm, FieldScrapedAt)
	expected := []string{"pdb_id", "title", "resolution", FieldSource, FieldSearchTerm, FieldScrapedAt}
	if diff := cmp.Diff(expected, columns); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}

	require.Equal(t, []string{"2", "", "2.1", "", "", ""}, Row(records[1], columns))
}

func TestBatch(t *testing.T) {
	var b Batch
	require.True(t, b.Empty())
	b.Add(New(Field{"id", "x"}))
	b.Skip(1, "y", "detail request failed")
	require.Equal(t, 1, b.Len())
	require.Equal(t, "#1 (y): detail request failed", b.Skipped[0].String())
	require.Equal(t, "#2: no accession", Skip{Index: 2, Reason: "no accession"}.String())
}
