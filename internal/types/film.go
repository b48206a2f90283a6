package types

import "strings"

// Metadata holds the structured-data fields resolved for one film entity.
// All fields are optional; a film with no Wikidata statements at all still
// gets an (empty) Metadata entry.
type Metadata struct {
	// IMDbID is the external identifier (P345), e.g. "tt0123456".
	IMDbID *string `json:"imdb_id"`

	// Year is the release year derived from the publication date (P577).
	Year *int `json:"year"`

	// People is the deduplicated, sorted union of director, cast,
	// producer and screenwriter labels.
	People []string `json:"people"`
}

// PeopleJoined renders the people list in the canonical "; "-separated form
// used in the assembled table. Returns nil when empty.
func (m *Metadata) PeopleJoined() *string {
	if len(m.People) == 0 {
		return nil
	}
	s := strings.Join(m.People, "; ")
	return &s
}

// Row is one line of the final assembled table for a category group.
type Row struct {
	Title       string  `json:"title"`
	IMDbID      *string `json:"imdb_id"`
	Year        *int    `json:"year"`
	Summary     *string `json:"summary"`
	People      *string `json:"people"`
	Decade      *int    `json:"decade"`
	PeopleCount int     `json:"people_count"`
	HasSummary  bool    `json:"has_summary"`
	Language    *string `json:"language"`
}

// QualityReport summarizes data quality for one assembled table.
type QualityReport struct {
	TotalRows       int                `json:"total_rows"`
	NullCounts      map[string]int     `json:"null_counts"`
	NullPercentages map[string]float64 `json:"null_percentages"`
	Duplicates      int                `json:"duplicates"`
	YearMin         *int               `json:"year_min"`
	YearMax         *int               `json:"year_max"`
	DecadeHistogram map[int]int        `json:"decade_distribution"`
}

// StringPtr returns a pointer to s. Convenience for nullable fields and
// test fixtures.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
