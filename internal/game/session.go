// Package game drives the turn-by-turn session loop: presenting questions,
// scoring answers, topping the batch up in the background and ending the
// session when the countdown hits zero.
package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"retrotunes-service/internal/domain"
	"retrotunes-service/internal/ledger"
	"retrotunes-service/internal/supply"
)

// State is the session's lifecycle phase. Replenishing is not a State:
// top-ups run concurrently while the session keeps Presenting.
type State string

const (
	StateLoading    State = "loading"
	StatePresenting State = "presenting"
	StateRevealing  State = "revealing"
	StateEnded      State = "ended"
)

// Ticker abstracts the one-second countdown source so tests can drive time
// by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewTicker returns the wall-clock ticker used outside tests.
func NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Tuning holds the knobs of the session loop. Zero values mean defaults.
type Tuning struct {
	// QuestionsPerMinute sizes the initial batch relative to duration.
	QuestionsPerMinute int
	// LowWaterMark is the remaining-question count that triggers a
	// background top-up.
	LowWaterMark int
	// RevealDelay is the fixed pause before auto-advancing.
	RevealDelay time.Duration
	// MinLoading keeps the loading phase on screen at least this long, so
	// fast fetches do not flicker. Presentation nicety only.
	MinLoading time.Duration
}

func (t Tuning) withDefaults() Tuning {
	if t.QuestionsPerMinute <= 0 {
		t.QuestionsPerMinute = 12
	}
	if t.LowWaterMark <= 0 {
		t.LowWaterMark = 3
	}
	if t.RevealDelay <= 0 {
		t.RevealDelay = time.Second
	}
	return t
}

// EventType tags session events sent to the presentation layer.
type EventType string

const (
	EventLoading  EventType = "loading"
	EventQuestion EventType = "question"
	EventTick     EventType = "tick"
	EventReveal   EventType = "reveal"
	EventEnded    EventType = "ended"
)

// Event is one update on the session's event stream.
type Event struct {
	Type      EventType        `json:"type"`
	Question  *domain.Question `json:"question,omitempty"`
	Index     int              `json:"index,omitempty"`
	Remaining int              `json:"remaining"`
	Score     int              `json:"score"`
	Reveal    *Reveal          `json:"reveal,omitempty"`
	Final     *Result          `json:"final,omitempty"`
}

// Reveal carries the outcome of one answered question.
type Reveal struct {
	Selected      string `json:"selected"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
}

// Result is the terminal summary handed to the presentation layer.
type Result struct {
	Score     int  `json:"score"`
	NewRecord bool `json:"newRecord"`
}

// Deps are the session's collaborators. NewTicker and After default to the
// wall clock.
type Deps struct {
	Supply    supply.Fetcher
	Ledger    *ledger.Ledger
	Logger    *zap.SugaredLogger
	NewTicker func(time.Duration) Ticker
	After     func(time.Duration, func())
}

// Session is a single game run. All mutation happens under mu; the two
// concurrent activities (countdown ticks, batch fetches) funnel through it,
// so no two ticks and no tick/answer pair ever interleave mid-transition.
type Session struct {
	cfg    domain.GameConfig
	tuning Tuning
	deps   Deps

	mu           sync.Mutex
	state        State
	batch        []domain.Question
	idx          int
	score        int
	remaining    int
	played       map[string]struct{}
	generation   int
	replenishing bool
	closed       bool
	ticker       Ticker

	events chan Event
}

// NewSession validates the config and prepares a session. Run must be
// called to start it.
func NewSession(cfg domain.GameConfig, tuning Tuning, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.NewTicker == nil {
		deps.NewTicker = NewTicker
	}
	if deps.After == nil {
		deps.After = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return &Session{
		cfg:       cfg,
		tuning:    tuning.withDefaults(),
		deps:      deps,
		state:     StateLoading,
		remaining: cfg.DurationMinutes * 60,
		played:    make(map[string]struct{}),
		events:    make(chan Event, 64),
	}, nil
}

// Events is the session's update stream. It is closed when the session
// ends or is torn down.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Score returns the score accumulated so far.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Run fetches the initial batch and starts the countdown. It returns once
// the session is presenting (or torn down); the countdown then runs on its
// own goroutine until the session ends.
func (s *Session) Run(ctx context.Context) {
	s.emit(Event{Type: EventLoading, Remaining: s.remaining})

	start := time.Now()
	history := s.deps.Ledger.History(ctx)
	batch := s.deps.Supply.Fetch(ctx, supply.Request{
		Decade:   s.cfg.Decade,
		Category: s.cfg.Category,
		Count:    s.cfg.DurationMinutes * s.tuning.QuestionsPerMinute,
		Excluded: history,
	})

	// Hold the loading screen to its minimum duration; a sub-second fetch
	// otherwise flashes and disappears.
	if wait := s.tuning.MinLoading - time.Since(start); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			s.Stop()
			return
		}
	}

	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		return
	}
	if len(batch) == 0 {
		// Only an empty catalog gets here (e.g. an unseeded question
		// table). Nothing was played, so nothing is committed.
		s.state = StateEnded
		s.generation++
		s.emitLocked(Event{Type: EventEnded, Remaining: s.remaining, Final: &Result{}})
		s.closeLocked()
		s.mu.Unlock()
		return
	}
	s.batch = batch
	s.state = StatePresenting
	s.ticker = s.deps.NewTicker(time.Second)
	q := s.batch[s.idx]
	s.emitLocked(Event{Type: EventQuestion, Question: &q, Index: s.idx, Remaining: s.remaining, Score: s.score})
	ticker := s.ticker
	s.mu.Unlock()

	go s.countdown(ctx, ticker)
}

// countdown is the sole authority for session termination.
func (s *Session) countdown(ctx context.Context, ticker Ticker) {
	for {
		select {
		case <-ticker.C():
			s.mu.Lock()
			if s.state == StateEnded {
				s.mu.Unlock()
				return
			}
			s.remaining--
			if s.remaining <= 0 {
				s.endLocked(ctx)
				s.mu.Unlock()
				return
			}
			s.emitLocked(Event{Type: EventTick, Remaining: s.remaining, Score: s.score})
			s.mu.Unlock()
		case <-ctx.Done():
			s.Stop()
			return
		}
	}
}

// Answer scores the player's selection for the current question. Valid only
// while Presenting; the Revealing phase acts as the disablement guard that
// makes submission idempotent.
func (s *Session) Answer(ctx context.Context, option string) (Reveal, error) {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return Reveal{}, domain.ErrSessionEnded
	}
	if s.state != StatePresenting {
		s.mu.Unlock()
		return Reveal{}, domain.ErrNotPresenting
	}

	q := s.batch[s.idx]
	valid := false
	for _, opt := range q.Options {
		if opt == option {
			valid = true
			break
		}
	}
	if !valid {
		s.mu.Unlock()
		return Reveal{}, domain.ErrUnknownOption
	}

	correct := q.IsCorrect(option)
	if correct {
		s.score++
	}
	s.played[q.Text] = struct{}{}
	s.state = StateRevealing

	reveal := Reveal{Selected: option, CorrectAnswer: q.CorrectAnswer, Correct: correct}
	s.emitLocked(Event{Type: EventReveal, Reveal: &reveal, Remaining: s.remaining, Score: s.score})

	gen := s.generation
	s.mu.Unlock()

	if err := s.deps.Ledger.AppendHistory(ctx, q.Text); err != nil {
		s.deps.Logger.Warnw("append played history", "err", err)
	}

	s.deps.After(s.tuning.RevealDelay, func() { s.advance(ctx, gen) })
	return reveal, nil
}

// advance moves to the next question after the reveal delay. A stale
// generation means the session was torn down in the meantime.
func (s *Session) advance(ctx context.Context, gen int) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateRevealing {
		s.mu.Unlock()
		return
	}

	s.idx++
	if s.idx >= len(s.batch) {
		// Replenishment has not landed; recycle rather than freeze.
		// Repeats beat a stalled game.
		s.idx = 0
	}
	s.state = StatePresenting
	q := s.batch[s.idx]
	s.emitLocked(Event{Type: EventQuestion, Question: &q, Index: s.idx, Remaining: s.remaining, Score: s.score})

	needTopUp := len(s.batch)-s.idx <= s.tuning.LowWaterMark && !s.replenishing
	if needTopUp {
		s.replenishing = true
	}
	s.mu.Unlock()

	if needTopUp {
		go s.replenish(ctx, gen)
	}
}

// replenish fetches another minute's worth of questions and appends them to
// the batch tail; already-presented indices stay valid. Stale completions
// (teardown, session ended) are discarded.
func (s *Session) replenish(ctx context.Context, gen int) {
	excluded := s.deps.Ledger.History(ctx)
	s.mu.Lock()
	for text := range s.played {
		excluded = append(excluded, text)
	}
	for _, q := range s.batch {
		excluded = append(excluded, q.Text)
	}
	count := s.tuning.QuestionsPerMinute
	s.mu.Unlock()

	batch := s.deps.Supply.Fetch(ctx, supply.Request{
		Decade:   s.cfg.Decade,
		Category: s.cfg.Category,
		Count:    count,
		Excluded: excluded,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replenishing = false
	if gen != s.generation || s.state == StateEnded {
		return
	}
	s.batch = append(s.batch, batch...)
	s.deps.Logger.Infow("batch replenished", "added", len(batch), "total", len(s.batch))
}

// endLocked finishes the session: the score through the last fully scored
// answer is committed to the ledger and the final event is emitted. Caller
// holds mu.
func (s *Session) endLocked(ctx context.Context) {
	s.state = StateEnded
	s.generation++
	if s.ticker != nil {
		s.ticker.Stop()
	}

	entry := domain.PlayerScore{
		Name:            s.cfg.PlayerName,
		Score:           s.score,
		Decade:          s.cfg.Decade,
		Category:        s.cfg.Category,
		DurationMinutes: s.cfg.DurationMinutes,
	}
	newRecord, err := s.deps.Ledger.RecordScore(ctx, entry)
	if err != nil {
		s.deps.Logger.Warnw("commit final score", "err", err)
	}

	s.emitLocked(Event{Type: EventEnded, Remaining: 0, Score: s.score, Final: &Result{Score: s.score, NewRecord: newRecord}})
	s.closeLocked()
}

// Stop tears the session down without committing a score: countdown
// stopped, in-flight fetches orphaned by the generation bump.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEnded {
		return
	}
	s.state = StateEnded
	s.generation++
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.closeLocked()
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(e)
}

// emitLocked delivers an event without ever blocking the session: when the
// consumer lags, the oldest buffered event is dropped to make room.
func (s *Session) emitLocked(e Event) {
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
		select {
		case <-s.events:
		default:
		}
		s.events <- e
	}
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
