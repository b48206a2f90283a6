package clean

import (
	"regexp"
	"strings"

	"github.com/psivak/filmwiki/internal/types"
)

// Languages commonly named in Indian film summaries.
var languages = []string{
	"Hindi", "Tamil", "Telugu", "Malayalam", "Kannada",
	"Bengali", "Marathi", "Punjabi", "Gujarati", "Assamese",
	"Odia", "Bhojpuri", "Urdu",
}

var languagePattern = regexp.MustCompile(
	`(?i)(` + strings.Join(languages, "|") + `)[\s-]language`)

// Enrich derives the auxiliary columns for each row: decade, people count,
// has-summary flag, and detected language.
func Enrich(rows []types.Row) {
	for i := range rows {
		row := &rows[i]
		if row.Year != nil {
			decade := *row.Year / 10 * 10
			row.Decade = &decade
		}
		row.PeopleCount = countPeople(row.People)
		row.HasSummary = row.Summary != nil
		row.Language = DetectLanguage(row.Summary)
	}
}

// DetectLanguage matches a fixed vocabulary of language names against
// "<name>-language" phrasing in the summary. Best effort; nil when no
// language is named.
func DetectLanguage(summary *string) *string {
	if summary == nil {
		return nil
	}
	m := languagePattern.FindStringSubmatch(*summary)
	if m == nil {
		return nil
	}
	lang := titleCase(m[1])
	return &lang
}

func countPeople(people *string) int {
	if people == nil {
		return 0
	}
	return len(strings.Split(*people, ";"))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
