// Package ledger persists everything that outlives a session: ranked
// scores, the played-question history used for de-duplication, and player
// preferences. It sits on a plain key-value Store so the backing can be
// swapped (in-memory, Redis) without touching game logic.
package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"retrotunes-service/internal/domain"
)

// Store is the key-value persistence collaborator. Values are opaque
// strings (JSON for structured keys).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

const (
	keyScores       = "rt:scores"
	keyPlayerName   = "rt:player_name"
	keyCategoryPref = "rt:category_preference"
	keyHistory      = "rt:played_history"
	keyMute         = "rt:mute_preference"

	// keyLegacyScores is the pre-category, pre-duration score list written
	// by earlier releases. Read once at startup, upgraded, removed.
	keyLegacyScores = "rt_scores"
)

const (
	// MaxScores is the rolling top-N retained in the ledger.
	MaxScores = 20
	// MaxHistory caps the played-history; oldest texts are evicted first.
	MaxHistory = 100
)

// Ledger is the single writer over the shared cross-session state.
type Ledger struct {
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time

	mu sync.Mutex
}

func New(store Store, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{store: store, logger: logger, now: time.Now}
}

// legacyScore tolerates the old shape: category missing, durationMinutes
// missing or non-numeric.
type legacyScore struct {
	Name            string          `json:"name"`
	Score           int             `json:"score"`
	Decade          domain.Decade   `json:"decade"`
	Category        domain.Category `json:"category"`
	DurationMinutes any             `json:"durationMinutes"`
	Date            string          `json:"date"`
}

// MigrateLegacy upgrades the old score-ledger key to the current shape.
// Idempotent: once the legacy key is gone this is a no-op. Never fails
// startup; a corrupt legacy value is logged and discarded.
func (l *Ledger) MigrateLegacy(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, ok, err := l.store.Get(ctx, keyLegacyScores)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var legacy []legacyScore
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		l.logger.Warnw("corrupt legacy score ledger, discarding", "err", err)
		return l.store.Delete(ctx, keyLegacyScores)
	}

	scores := l.loadScores(ctx)
	for _, e := range legacy {
		category := e.Category
		if category == "" {
			category = domain.CategoryBoth
		}
		minutes := 1
		if f, isNum := e.DurationMinutes.(float64); isNum && f >= 1 {
			minutes = int(f)
		}
		scores = append(scores, domain.PlayerScore{
			Name:            e.Name,
			Score:           e.Score,
			Decade:          e.Decade,
			Category:        category,
			DurationMinutes: minutes,
			Date:            e.Date,
		})
	}

	if err := l.saveScores(ctx, scores); err != nil {
		return err
	}
	if err := l.store.Delete(ctx, keyLegacyScores); err != nil {
		return err
	}
	l.logger.Infow("legacy score ledger migrated", "entries", len(legacy))
	return nil
}

// Scores returns the ranked ledger, best first.
func (l *Ledger) Scores(ctx context.Context) []domain.PlayerScore {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadScores(ctx)
}

// RecordScore appends a finished session's entry and reports whether it
// beats the best prior score in the same duration bucket.
func (l *Ledger) RecordScore(ctx context.Context, s domain.PlayerScore) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.Date == "" {
		s.Date = l.now().UTC().Format(time.RFC3339)
	}

	scores := l.loadScores(ctx)
	newRecord := true
	for _, prior := range scores {
		if prior.DurationMinutes == s.DurationMinutes && prior.Score >= s.Score {
			newRecord = false
			break
		}
	}

	scores = append(scores, s)
	if err := l.saveScores(ctx, scores); err != nil {
		return false, err
	}
	return newRecord, nil
}

// History returns the played-question texts, most-recent-last.
func (l *Ledger) History(ctx context.Context) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadHistory(ctx)
}

// AppendHistory records a played question text, evicting the oldest entries
// beyond the cap.
func (l *Ledger) AppendHistory(ctx context.Context, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := append(l.loadHistory(ctx), text)
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	return l.setJSON(ctx, keyHistory, history)
}

// PlayerName returns the last-used player name, if any.
func (l *Ledger) PlayerName(ctx context.Context) string {
	name, _, err := l.store.Get(ctx, keyPlayerName)
	if err != nil {
		l.logger.Warnw("read player name", "err", err)
		return ""
	}
	return name
}

func (l *Ledger) SetPlayerName(ctx context.Context, name string) error {
	return l.store.Set(ctx, keyPlayerName, name)
}

// CategoryPreference returns the last-used category filter, defaulting to
// the wildcard.
func (l *Ledger) CategoryPreference(ctx context.Context) domain.Category {
	raw, ok, err := l.store.Get(ctx, keyCategoryPref)
	if err != nil || !ok {
		return domain.CategoryBoth
	}
	switch c := domain.Category(raw); c {
	case domain.CategoryPortuguese, domain.CategoryInternational, domain.CategoryBoth:
		return c
	}
	return domain.CategoryBoth
}

func (l *Ledger) SetCategoryPreference(ctx context.Context, c domain.Category) error {
	return l.store.Set(ctx, keyCategoryPref, string(c))
}

// Muted returns the persisted mute preference.
func (l *Ledger) Muted(ctx context.Context) bool {
	raw, _, err := l.store.Get(ctx, keyMute)
	if err != nil {
		l.logger.Warnw("read mute preference", "err", err)
		return false
	}
	return raw == "true"
}

func (l *Ledger) SetMuted(ctx context.Context, muted bool) error {
	if muted {
		return l.store.Set(ctx, keyMute, "true")
	}
	return l.store.Set(ctx, keyMute, "false")
}

// Reset wipes scores and history. This is the only destructive operation
// and is confirmation-gated by the caller.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, keyScores); err != nil {
		return err
	}
	return l.store.Delete(ctx, keyHistory)
}

func (l *Ledger) loadScores(ctx context.Context) []domain.PlayerScore {
	var scores []domain.PlayerScore
	l.getJSON(ctx, keyScores, &scores)
	return scores
}

// saveScores sorts descending by score and truncates to the rolling top-N.
func (l *Ledger) saveScores(ctx context.Context, scores []domain.PlayerScore) error {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	if len(scores) > MaxScores {
		scores = scores[:MaxScores]
	}
	return l.setJSON(ctx, keyScores, scores)
}

func (l *Ledger) loadHistory(ctx context.Context) []string {
	var history []string
	l.getJSON(ctx, keyHistory, &history)
	return history
}

// getJSON treats read errors and corrupt payloads as an absent value, per
// the recovery contract: persistence problems never block the game.
func (l *Ledger) getJSON(ctx context.Context, key string, v any) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warnw("persistence read failed", "key", key, "err", err)
		return
	}
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		l.logger.Warnw("corrupt persisted value, treating as absent", "key", key, "err", err)
	}
}

func (l *Ledger) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, key, string(raw))
}
