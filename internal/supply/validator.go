// Package supply sources, validates and mixes questions for game sessions.
// It is the resilience boundary of the game: whatever the remote generator
// does, sessions stay fed from the catalog.
package supply

import (
	"encoding/base64"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"retrotunes-service/internal/domain"
	"retrotunes-service/internal/generator"
	"retrotunes-service/internal/shuffle"
)

// Denylist maps a region-restricted category to lowercase tokens that must
// not appear in a candidate served under that category. This is a
// best-effort guard against a generator ignoring category constraints, not
// a security boundary.
type Denylist map[domain.Category][]string

// DefaultDenylist blocks the contamination actually seen in the wild:
// Brazilian artists leaking into batches requested as Portuguese.
func DefaultDenylist() Denylist {
	return Denylist{
		domain.CategoryPortuguese: {
			"anitta",
			"ivete sangalo",
			"roberto carlos",
			"caetano veloso",
			"gilberto gil",
			"marisa monte",
			"michel teló",
			"luan santana",
			"sertanejo",
		},
	}
}

// Validator turns raw candidates of unknown trustworthiness into finalized
// questions, or drops them. Pure transformation, silent drops.
type Validator struct {
	denylist Denylist

	mu  sync.Mutex
	rng *rand.Rand
}

func NewValidator(denylist Denylist) *Validator {
	return &Validator{
		denylist: denylist,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Normalize validates c against every structural and content-safety rule
// and, on success, returns a game-ready question: fresh id, shuffled
// options, request filters filled in where the candidate omitted them.
// idx disambiguates ids within a batch.
func (v *Validator) Normalize(c generator.Candidate, idx int, decade domain.Decade, category domain.Category) (domain.Question, bool) {
	if c.Text == "" {
		return domain.Question{}, false
	}
	if len(c.Options) != domain.QuestionOptionCount {
		return domain.Question{}, false
	}
	seen := make(map[string]bool, len(c.Options))
	correctFound := false
	for _, opt := range c.Options {
		if opt == "" || seen[opt] {
			return domain.Question{}, false
		}
		seen[opt] = true
		if opt == c.CorrectAnswer {
			correctFound = true
		}
	}
	if !correctFound {
		return domain.Question{}, false
	}
	if v.unsafe(c, category) {
		return domain.Question{}, false
	}

	q := domain.Question{
		ID:            v.freshID(c.Text, idx),
		Text:          c.Text,
		Options:       shuffle.Slice(c.Options),
		CorrectAnswer: c.CorrectAnswer,
		Decade:        c.Decade,
		Category:      c.Category,
	}
	if q.Decade == "" || q.Decade == domain.DecadeAll {
		q.Decade = decade
	}
	if q.Category == "" || q.Category == domain.CategoryBoth {
		q.Category = category
	}
	return q, true
}

// unsafe applies the keyword denylist for region-restricted requests, over
// the text and every option.
func (v *Validator) unsafe(c generator.Candidate, category domain.Category) bool {
	tokens := v.denylist[category]
	if len(tokens) == 0 {
		return false
	}
	haystack := strings.ToLower(c.Text + " " + strings.Join(c.Options, " "))
	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

const idSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// freshID derives a batch-unique id from the question text plus a random
// suffix; collisions only matter within a batch, where idx already
// separates entries.
func (v *Validator) freshID(text string, idx int) string {
	prefix := base64.StdEncoding.EncodeToString([]byte(text))
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	suffix := make([]byte, 3)
	for i := range suffix {
		suffix[i] = idSuffixAlphabet[v.rng.Intn(len(idSuffixAlphabet))]
	}
	return prefix + strconv.Itoa(idx) + string(suffix)
}
