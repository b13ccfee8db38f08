package sound

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"retrotunes-service/internal/infra/memory"
	"retrotunes-service/internal/ledger"
)

func newTestService() (*Service, *ledger.Ledger) {
	l := ledger.New(memory.NewStore(), zap.NewNop().Sugar())
	return New(l, zap.NewNop().Sugar()), l
}

func TestCueForOutcome(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()

	if got := s.CueFor(ctx, true); got != CueCorrect {
		t.Fatalf("expected correct cue, got %q", got)
	}
	if got := s.CueFor(ctx, false); got != CueWrong {
		t.Fatalf("expected wrong cue, got %q", got)
	}
}

func TestMuteSuppressesCues(t *testing.T) {
	ctx := context.Background()
	s, l := newTestService()

	if err := s.SetMuted(ctx, true); err != nil {
		t.Fatalf("set muted: %v", err)
	}
	if got := s.CueFor(ctx, true); got != CueNone {
		t.Fatalf("muted service emitted cue %q", got)
	}
	if !l.Muted(ctx) {
		t.Fatal("mute preference not persisted")
	}
}

func TestToggleRoundTrips(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()

	muted, err := s.Toggle(ctx)
	if err != nil || !muted {
		t.Fatalf("first toggle: muted=%v err=%v", muted, err)
	}
	muted, err = s.Toggle(ctx)
	if err != nil || muted {
		t.Fatalf("second toggle: muted=%v err=%v", muted, err)
	}
}

func TestPersistedPreferenceLoadedLazily(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.NewStore(), zap.NewNop().Sugar())
	if err := l.SetMuted(ctx, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := New(l, zap.NewNop().Sugar())
	if !s.Muted(ctx) {
		t.Fatal("persisted preference not picked up on first read")
	}
}
