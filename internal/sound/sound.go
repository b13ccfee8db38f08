// Package sound decides which audio cue accompanies a reveal. Playback
// happens client-side; the service owns the mute preference and suppresses
// cues while muted.
package sound

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"retrotunes-service/internal/ledger"
)

// Cue names an audio asset the client knows how to play.
type Cue string

const (
	CueCorrect Cue = "correct"
	CueWrong   Cue = "wrong"
	CueNone    Cue = ""
)

// Service caches the persisted mute preference. The ledger is only read on
// first use, so constructing the service is free.
type Service struct {
	ledger *ledger.Ledger
	logger *zap.SugaredLogger

	mu     sync.Mutex
	loaded bool
	muted  bool
}

func New(l *ledger.Ledger, logger *zap.SugaredLogger) *Service {
	return &Service{ledger: l, logger: logger}
}

// Muted reports the current mute preference.
func (s *Service) Muted(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	return s.muted
}

// SetMuted updates and persists the preference.
func (s *Service) SetMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.muted = muted
	return s.ledger.SetMuted(ctx, muted)
}

// Toggle flips the preference and returns the new state.
func (s *Service) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	s.muted = !s.muted
	return s.muted, s.ledger.SetMuted(ctx, s.muted)
}

// CueFor picks the cue for an answer outcome, or CueNone while muted.
func (s *Service) CueFor(ctx context.Context, correct bool) Cue {
	if s.Muted(ctx) {
		return CueNone
	}
	if correct {
		return CueCorrect
	}
	return CueWrong
}

func (s *Service) loadLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.muted = s.ledger.Muted(ctx)
	s.loaded = true
}
