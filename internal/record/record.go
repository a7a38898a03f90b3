// Package record holds the flat, ordered record every source is normalized into.
package record

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FieldSource     = "source"
	FieldSearchTerm = "search_term"
	FieldScrapedAt  = "scraped_at"
	FieldURL        = "url"
)

// ScrapedAtLayout is the layout of the scraped_at field.
const ScrapedAtLayout = "2006-01-02 15:04:05"

type Field struct {
	Key   string
	Value string
}

// Record is an ordered list of fields. Setting an existing key replaces its
// value in place, so column order follows the order fields were first set.
type Record struct {
	fields []Field
}

func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Key, f.Value)
	}
	return r
}

func (r *Record) Set(key string, value any) {
	formatted := Format(value)
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields[i].Value = formatted
			return
		}
	}
	r.fields = append(r.fields, Field{Key: key, Value: formatted})
}

func (r Record) Get(key string) (string, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Value is Get without the presence flag.
func (r Record) Value(key string) string {
	v, _ := r.Get(key)
	return v
}

func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r Record) Len() int {
	return len(r.fields)
}

func (r Record) Clone() Record {
	return Record{fields: r.Fields()}
}

// Format renders a scalar the way it is persisted.
func Format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case []string:
		return strings.Join(v, ", ")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
