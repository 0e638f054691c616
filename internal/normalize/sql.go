// Package normalize reduces SQL statements to their structural shape so
// queries that differ only in literal values group together.
package normalize

import (
	"regexp"
	"strings"
)

// Patterns are applied in order; string literals go first so numbers
// inside quotes are not rewritten a second time.
var sqlPatterns = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	{regexp.MustCompile(`'(?:[^'\\]|\\.)*'`), "?"},   // single-quoted strings
	{regexp.MustCompile(`"(?:[^"\\]|\\.)*"`), "?"},   // double-quoted strings
	{regexp.MustCompile(`\b\d+\.\d+\b`), "?"},        // decimals
	{regexp.MustCompile(`\b\d+\b`), "?"},             // integers
	{regexp.MustCompile(`\?(?:\s*,\s*\?)+`), "?, ?"}, // collapse IN (...) lists
}

// SQL replaces literals with placeholders and collapses whitespace.
// The statement's own keywords and identifiers are left untouched.
func SQL(text string) string {
	normalized := text
	for _, p := range sqlPatterns {
		normalized = p.re.ReplaceAllString(normalized, p.placeholder)
	}
	return strings.Join(strings.Fields(normalized), " ")
}
