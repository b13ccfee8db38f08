// Package generator talks to the remote question generator. The remote side
// is treated as untrustworthy: everything it returns is re-validated by the
// supply pipeline before reaching a session.
package generator

import (
	"context"

	"retrotunes-service/internal/domain"
)

// Request describes one batch of questions to generate.
type Request struct {
	Count        int
	Decade       domain.Decade
	Category     domain.Category
	ExcludeTexts []string // most-recent-last, bounded before being sent
}

// Candidate is a raw question as returned by the remote generator. No field
// is trusted; the supply validator enforces every invariant.
type Candidate struct {
	Text          string          `json:"text"`
	Options       []string        `json:"options"`
	CorrectAnswer string          `json:"correctAnswer"`
	Decade        domain.Decade   `json:"decade"`
	Category      domain.Category `json:"category"`
}

// Generator produces question candidates on demand. Implementations must
// honor ctx cancellation; the supply manager races every call against a
// hard timeout.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Candidate, error)
}
