// Package clean joins the harvest outputs into rows and applies the
// normalization, deduplication and enrichment rules.
package clean

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/psivak/filmwiki/internal/types"
)

// MinYear is the earliest plausible release year for a film.
const MinYear = 1890

var (
	imdbPattern  = regexp.MustCompile(`^tt\d+$`)
	digitsOnly   = regexp.MustCompile(`^\d+$`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	quoteFixer   = strings.NewReplacer("“", `"`, "”", `"`)
	newlineFixer = strings.NewReplacer("\n", " ", "\r", "")
)

// Assemble joins the identifier map, metadata and summaries into one row
// per title. Rows are produced unnormalized; Clean applies the rules.
func Assemble(ids map[string]string, meta map[string]*types.Metadata, summaries map[string]*string) []types.Row {
	rows := make([]types.Row, 0, len(ids))
	for title, qid := range ids {
		row := types.Row{Title: title, Summary: summaries[title]}
		if m := meta[qid]; m != nil {
			row.IMDbID = m.IMDbID
			row.Year = m.Year
			row.People = m.PeopleJoined()
		}
		rows = append(rows, row)
	}
	return rows
}

// Clean normalizes every field, sorts by (year descending, title ascending,
// missing years last), and drops duplicate titles keeping the first.
func Clean(rows []types.Row) []types.Row {
	cleaned := make([]types.Row, len(rows))
	for i, row := range rows {
		row.Title = NormalizeTitle(row.Title)
		row.IMDbID = NormalizeIMDbID(row.IMDbID)
		row.Year = NormalizeYear(row.Year)
		row.Summary = NormalizeSummary(row.Summary)
		row.People = NormalizePeople(row.People)
		cleaned[i] = row
	}

	SortRows(cleaned)

	seen := make(map[string]bool, len(cleaned))
	out := cleaned[:0]
	for _, row := range cleaned {
		if seen[row.Title] {
			continue
		}
		seen[row.Title] = true
		out = append(out, row)
	}
	return out
}

// SortRows sorts by year descending, then title ascending. Rows without a
// year sort last.
func SortRows(rows []types.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		yi, yj := rows[i].Year, rows[j].Year
		switch {
		case yi == nil && yj == nil:
			return rows[i].Title < rows[j].Title
		case yi == nil:
			return false
		case yj == nil:
			return true
		case *yi != *yj:
			return *yi > *yj
		default:
			return rows[i].Title < rows[j].Title
		}
	})
}

// NormalizeTitle trims whitespace and straightens curly quotation marks.
func NormalizeTitle(title string) string {
	return quoteFixer.Replace(strings.TrimSpace(title))
}

// NormalizeIMDbID standardizes an IMDb id to the "tt" prefix plus digits
// form. Bare digit strings get the prefix added; anything else that does
// not match the format is nulled.
func NormalizeIMDbID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if digitsOnly.MatchString(v) {
		v = "tt" + v
	}
	if !imdbPattern.MatchString(v) {
		return nil
	}
	return &v
}

// NormalizeYear nulls years outside [MinYear, current year].
func NormalizeYear(year *int) *int {
	if year == nil {
		return nil
	}
	if *year < MinYear || *year > time.Now().Year() {
		return nil
	}
	return year
}

// NormalizeSummary trims, straightens quotes, folds newlines into spaces
// and collapses whitespace runs. Empty summaries become nil.
func NormalizeSummary(summary *string) *string {
	if summary == nil {
		return nil
	}
	v := quoteFixer.Replace(strings.TrimSpace(*summary))
	v = newlineFixer.Replace(v)
	v = spaceRuns.ReplaceAllString(v, " ")
	if v == "" {
		return nil
	}
	return &v
}

// NormalizePeople splits a "; "-separated list, trims entries, drops
// empties and duplicates, sorts, and rejoins. Empty lists become nil.
func NormalizePeople(people *string) *string {
	if people == nil {
		return nil
	}
	parts := strings.Split(*people, ";")
	seen := make(map[string]bool, len(parts))
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		names = append(names, p)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	joined := strings.Join(names, "; ")
	return &joined
}
