package ingest

import (
	"regexp"
	"strings"
)

type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

// boilerplateRules strip machine-generated disclaimers from descriptions.
// Order matters: a whole-sentence rule must run before the narrower phrase
// rule that would otherwise leave "This event is strictly for." behind.
var boilerplateRules = []substitution{
	{regexp.MustCompile(`(?i)\s*(please note:?\s*)?this (event|show|concert|performance) is (strictly )?(only )?(for|open to|restricted to) (guests |those |people |persons )?(aged |ages )?\d{1,2}( years)?( and (above|over)|\+)( only)?\.?`), ""},
	{regexp.MustCompile(`(?i)\s*children under (the age of )?\d{1,2}( years)? (are|will) not (be )?(permitted|allowed|admitted)( entry)?\.?`), ""},
	{regexp.MustCompile(`(?i)\s*age restriction:?\s*\d{1,2}\s*\+?( only)?\.?`), ""},
	{regexp.MustCompile(`(?i)\s*\b(strictly )?(for )?(guests )?(aged|ages?) \d{1,2}\s*(\+|and (above|over))( only)?\.?`), ""},
	{regexp.MustCompile(`(?i)\s*\b(strictly )?\d{1,2}\+ only\b\.?`), ""},
}

// collapseRules tidy what the boilerplate rules leave behind.
var collapseRules = []substitution{
	{regexp.MustCompile(`\(\s*\)`), ""},
	{regexp.MustCompile(`[ \t]+([.,;:!?])`), "$1"},
	{regexp.MustCompile(`([.,;:!?])[.,;:]+`), "$1"},
	{regexp.MustCompile(`[ \t]{2,}`), " "},
	{regexp.MustCompile(`[ \t]*\n[ \t]*`), "\n"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

var spaceRun = regexp.MustCompile(`\s+`)

// CleanText removes boilerplate phrases from free text and collapses the
// doubled punctuation and whitespace they leave. CleanText is idempotent.
func CleanText(s string) string {
	for _, r := range boilerplateRules {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	for _, r := range collapseRules {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return strings.TrimSpace(s)
}

// collapseSpace trims and folds every whitespace run into one space. Used
// for single-line fields such as titles and venue names.
func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
