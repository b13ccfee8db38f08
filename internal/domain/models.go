package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Decade identifies the era a question belongs to. DecadeAll is a wildcard
// used only in filter requests, never as a catalog tag.
type Decade string

const (
	Decade80s   Decade = "80s"
	Decade90s   Decade = "90s"
	Decade00s   Decade = "00s"
	Decade2010s Decade = "2010s"
	Decade2020s Decade = "2020s"
	DecadeAll   Decade = "all"
)

// Decades lists the concrete (non-wildcard) decades offered at setup.
var Decades = []Decade{Decade80s, Decade90s, Decade00s, Decade2010s, Decade2020s}

// Category identifies the musical region of a question. CategoryBoth is a
// wildcard with the same convention as DecadeAll.
type Category string

const (
	CategoryPortuguese    Category = "portuguese"
	CategoryInternational Category = "international"
	CategoryBoth          Category = "both"
)

// Categories lists the concrete (non-wildcard) categories offered at setup.
var Categories = []Category{CategoryPortuguese, CategoryInternational}

// Matches reports whether a concrete tag satisfies the filter value.
func (d Decade) Matches(filter Decade) bool {
	return filter == DecadeAll || d == filter
}

// Matches reports whether a concrete tag satisfies the filter value.
func (c Category) Matches(filter Category) bool {
	return filter == CategoryBoth || c == filter
}

// QuestionOptionCount is the fixed number of answer options per question.
const QuestionOptionCount = 4

// Question is a single game-ready trivia item. Instances live for one
// session and are never persisted individually; Text (not ID) is the
// de-duplication key across sessions.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Decade        Decade   `json:"decade"`
	Category      Category `json:"category"`
}

// IsCorrect compares a chosen option against the correct answer verbatim.
func (q Question) IsCorrect(option string) bool {
	return option == q.CorrectAnswer
}

const maxPlayerNameLen = 24

// GameConfig carries the immutable session parameters set at setup time.
type GameConfig struct {
	PlayerName      string   `json:"playerName"`
	Decade          Decade   `json:"decade"`
	Category        Category `json:"category"`
	DurationMinutes int      `json:"durationMinutes"`
}

// Validate rejects configs the setup layer should never have produced.
func (c GameConfig) Validate() error {
	name := strings.TrimSpace(c.PlayerName)
	if name == "" {
		return ErrEmptyPlayerName
	}
	if utf8.RuneCountInString(name) > maxPlayerNameLen {
		return fmt.Errorf("%w: %d runes (max %d)", ErrPlayerNameTooLong, utf8.RuneCountInString(name), maxPlayerNameLen)
	}
	if c.DurationMinutes < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, c.DurationMinutes)
	}
	switch c.Decade {
	case Decade80s, Decade90s, Decade00s, Decade2010s, Decade2020s, DecadeAll:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDecade, c.Decade)
	}
	switch c.Category {
	case CategoryPortuguese, CategoryInternational, CategoryBoth:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c.Category)
	}
	return nil
}

// PlayerScore is an immutable ledger entry created at game end. Date is an
// RFC3339 timestamp.
type PlayerScore struct {
	Name            string   `json:"name"`
	Score           int      `json:"score"`
	Decade          Decade   `json:"decade"`
	Category        Category `json:"category"`
	DurationMinutes int      `json:"durationMinutes"`
	Date            string   `json:"date"`
}
