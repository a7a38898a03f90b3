package textutil

import (
	"regexp"
	"strings"
)

var separatorRegex = regexp.MustCompile(`[\s\-]+`)

// NormalizeName lowercases a source name and turns spaces and dashes into
// underscores, so "PDBe-KB" and "pdbe kb" both become "pdbe_kb".
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = separatorRegex.ReplaceAllString(name, "_")
	return name
}
