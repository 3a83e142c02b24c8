// Package sqlquery implements sql_query: the oracle drafts a read-only
// query against a SQLite database, which is then cleaned, checked and run.
package sqlquery

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNotReadOnly rejects drafts that are not a single SELECT or WITH query.
var ErrNotReadOnly = errors.New("Generated SQL is not a read-only SELECT/CTE.")

var (
	reFence      = regexp.MustCompile("(?s)```(?:sql|SQL|sqlite|postgresql|mysql)?\\s*(.*?)\\s*```")
	rePrefix     = regexp.MustCompile(`(?i)^(?:SQL\s*Query|SQLQuery|SQLite|MySQL|PostgreSQL|SQL)\s*:\s*`)
	reCTE        = regexp.MustCompile(`(?i)(WITH\b[\s\S]*?SELECT[\s\S]*?;)`)
	reSelect     = regexp.MustCompile(`(?i)(SELECT[\s\S]*?;)`)
	reBackticks  = regexp.MustCompile("`([^`]*)`")
	reWhitespace = regexp.MustCompile(`\s+`)
)

// CleanSQL extracts the query from an oracle draft: code fences and
// "SQLQuery:" style prefixes are removed, the CTE or else the last SELECT
// statement is kept, backtick quoting is dropped and whitespace collapsed.
func CleanSQL(draft string) (string, error) {
	text := reFence.ReplaceAllString(draft, "$1")
	text = rePrefix.ReplaceAllString(strings.TrimSpace(text), "")

	if m := reCTE.FindString(text); m != "" {
		text = m
	} else if all := reSelect.FindAllString(text, -1); len(all) > 0 {
		text = all[len(all)-1]
	}

	text = reBackticks.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))

	lowered := strings.ToLower(text)
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return "", ErrNotReadOnly
	}
	return text, nil
}
