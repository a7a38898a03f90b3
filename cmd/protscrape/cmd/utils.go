package cmd

import (
	"fmt"
	"medresai-scraper/internal/scrapers/registry"
	"medresai-scraper/lib/textutil"
	"os"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// suggestionThreshold is the similarity a known name needs to be offered as a correction.
const suggestionThreshold = 0.8

func suggest(name string, known []string) []string {
	type candidate struct {
		name  string
		score float64
	}
	var candidates []candidate
	normalized := textutil.NormalizeName(name)
	for _, k := range known {
		score := matchr.JaroWinkler(normalized, k, false)
		if score >= suggestionThreshold {
			candidates = append(candidates, candidate{name: k, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// resolveSource maps user input onto a registered source name.
func resolveSource(name string) (string, error) {
	normalized := textutil.NormalizeName(name)
	if registry.Known(normalized) {
		return normalized, nil
	}
	message := fmt.Sprintf("unknown source %q", name)
	if suggestions := suggest(name, registry.Names()); len(suggestions) > 0 {
		message += fmt.Sprintf(", did you mean %s?", strings.Join(suggestions, " or "))
	} else {
		message += fmt.Sprintf(", known sources are %s", strings.Join(registry.Names(), ", "))
	}
	return "", fmt.Errorf("%s", message)
}
