// Package catalog holds the hand-curated question bank, the
// guaranteed-available data source when the remote generator is absent or
// failing.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"retrotunes-service/internal/domain"
)

//go:embed questions.json
var questionsJSON []byte

// Record is a curated question in canonical (unshuffled) option order.
// Decade and Category are always concrete tags, never wildcards.
type Record struct {
	Text          string          `json:"text"`
	Options       []string        `json:"options"`
	CorrectAnswer string          `json:"correctAnswer"`
	Decade        domain.Decade   `json:"decade"`
	Category      domain.Category `json:"category"`
}

// Catalog is a read-only set of records queryable by decade and category.
type Catalog struct {
	records []Record
}

// New builds a catalog from externally supplied records (e.g. the Postgres
// question table). Malformed records are rejected up front so the supply
// pipeline can trust everything it reads.
func New(records []Record) (*Catalog, error) {
	for i, r := range records {
		if err := check(r); err != nil {
			return nil, fmt.Errorf("catalog record %d (%q): %w", i, r.Text, err)
		}
	}
	return &Catalog{records: records}, nil
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	var records []Record
	if err := json.Unmarshal(questionsJSON, &records); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}
	return New(records)
}

func check(r Record) error {
	if r.Text == "" {
		return fmt.Errorf("empty text")
	}
	if len(r.Options) != domain.QuestionOptionCount {
		return fmt.Errorf("%d options, want %d", len(r.Options), domain.QuestionOptionCount)
	}
	seen := make(map[string]bool, len(r.Options))
	correctFound := false
	for _, opt := range r.Options {
		if seen[opt] {
			return fmt.Errorf("duplicate option %q", opt)
		}
		seen[opt] = true
		if opt == r.CorrectAnswer {
			correctFound = true
		}
	}
	if !correctFound {
		return fmt.Errorf("correct answer %q not among options", r.CorrectAnswer)
	}
	if r.Decade == domain.DecadeAll || r.Decade == "" {
		return fmt.Errorf("decade tag must be concrete, got %q", r.Decade)
	}
	if r.Category == domain.CategoryBoth || r.Category == "" {
		return fmt.Errorf("category tag must be concrete, got %q", r.Category)
	}
	return nil
}

// Query returns every record matching the decade and category filters
// (concrete values or wildcards) whose text is not in excluded.
func (c *Catalog) Query(decade domain.Decade, category domain.Category, excluded map[string]struct{}) []Record {
	var out []Record
	for _, r := range c.records {
		if !r.Decade.Matches(decade) || !r.Category.Matches(category) {
			continue
		}
		if _, skip := excluded[r.Text]; skip {
			continue
		}
		out = append(out, r)
	}
	return out
}

// All returns a copy of every record, ignoring filters and exclusions.
func (c *Catalog) All() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Size is the total number of records.
func (c *Catalog) Size() int {
	return len(c.records)
}

// CountFor is the number of records matching the given filters.
func (c *Catalog) CountFor(decade domain.Decade, category domain.Category) int {
	return len(c.Query(decade, category, nil))
}
