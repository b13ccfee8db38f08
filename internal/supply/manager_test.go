package supply

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"retrotunes-service/internal/catalog"
	"retrotunes-service/internal/domain"
	"retrotunes-service/internal/generator"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func newTestManager(t *testing.T, gen generator.Generator) *Manager {
	t.Helper()
	return NewManager(testCatalog(t), gen, NewValidator(DefaultDenylist()), 50*time.Millisecond, zap.NewNop().Sugar())
}

type stubGen struct {
	candidates []generator.Candidate
	err        error
}

func (s stubGen) Generate(context.Context, generator.Request) ([]generator.Candidate, error) {
	return s.candidates, s.err
}

// blockingGen never answers; only ctx expiry releases it.
type blockingGen struct{}

func (blockingGen) Generate(ctx context.Context, _ generator.Request) ([]generator.Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFetchOfflineReturnsExactFilteredCount(t *testing.T) {
	m := newTestManager(t, nil)
	cat := testCatalog(t)

	want := cat.CountFor(domain.Decade80s, domain.CategoryPortuguese)
	if want > 10 {
		want = 10
	}
	batch := m.Fetch(context.Background(), Request{
		Decade:   domain.Decade80s,
		Category: domain.CategoryPortuguese,
		Count:    10,
	})
	if len(batch) != want {
		t.Fatalf("expected %d questions, got %d", want, len(batch))
	}
	for _, q := range batch {
		if q.Decade != domain.Decade80s || q.Category != domain.CategoryPortuguese {
			t.Fatalf("question %q tagged (%s, %s), want (80s, portuguese)", q.Text, q.Decade, q.Category)
		}
		if len(q.Options) != domain.QuestionOptionCount || !q.IsCorrect(q.CorrectAnswer) {
			t.Fatalf("malformed question delivered: %+v", q)
		}
	}
}

func TestFetchBroadensWhenFilteredSupplyIsShort(t *testing.T) {
	m := newTestManager(t, nil)
	cat := testCatalog(t)

	pairCount := cat.CountFor(domain.Decade80s, domain.CategoryPortuguese)
	count := pairCount + 5
	batch := m.Fetch(context.Background(), Request{
		Decade:   domain.Decade80s,
		Category: domain.CategoryPortuguese,
		Count:    count,
	})
	if len(batch) != count {
		t.Fatalf("expected broadened batch of %d, got %d", count, len(batch))
	}
	seen := make(map[string]bool)
	for _, q := range batch {
		if seen[q.Text] {
			t.Fatalf("duplicate text in batch: %q", q.Text)
		}
		seen[q.Text] = true
	}
}

func TestFetchNeverReturnsExcludedTexts(t *testing.T) {
	m := newTestManager(t, nil)
	cat := testCatalog(t)

	records := cat.Query(domain.Decade80s, domain.CategoryPortuguese, nil)
	excluded := []string{records[0].Text, records[1].Text, records[2].Text}

	batch := m.Fetch(context.Background(), Request{
		Decade:   domain.Decade80s,
		Category: domain.CategoryPortuguese,
		Count:    len(records) - len(excluded),
		Excluded: excluded,
	})
	for _, q := range batch {
		for _, ex := range excluded {
			if q.Text == ex {
				t.Fatalf("excluded text returned: %q", ex)
			}
		}
	}
}

func TestFetchBackfillsWithExcludedOnlyAsLastResort(t *testing.T) {
	m := newTestManager(t, nil)
	cat := testCatalog(t)

	// Exclude the whole catalog; supply must still not come back empty.
	var excluded []string
	for _, r := range cat.All() {
		excluded = append(excluded, r.Text)
	}
	batch := m.Fetch(context.Background(), Request{
		Decade:   domain.Decade90s,
		Category: domain.CategoryBoth,
		Count:    5,
		Excluded: excluded,
	})
	if len(batch) != 5 {
		t.Fatalf("expected last-resort batch of 5, got %d", len(batch))
	}
}

func TestFetchDegradesOnRemoteError(t *testing.T) {
	m := newTestManager(t, stubGen{err: errors.New("boom")})

	batch := m.Fetch(context.Background(), Request{
		Decade:   domain.Decade90s,
		Category: domain.CategoryInternational,
		Count:    8,
	})
	if len(batch) != 8 {
		t.Fatalf("expected catalog fallback of 8, got %d", len(batch))
	}
}

func TestFetchTreatsTimeoutAsFailure(t *testing.T) {
	m := newTestManager(t, blockingGen{})

	start := time.Now()
	batch := m.Fetch(context.Background(), Request{
		Decade:   domain.Decade00s,
		Category: domain.CategoryBoth,
		Count:    6,
	})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("fetch did not respect remote timeout, took %v", elapsed)
	}
	if len(batch) != 6 {
		t.Fatalf("expected catalog fallback of 6, got %d", len(batch))
	}
}

// countingGen blocks every call until released, so concurrent fetches are
// guaranteed to overlap.
type countingGen struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (g *countingGen) Generate(ctx context.Context, _ generator.Request) ([]generator.Candidate, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	<-g.release
	return nil, errors.New("no candidates")
}

func TestConcurrentFetchesKeepTheirOwnExclusions(t *testing.T) {
	m := newTestManager(t, nil)
	cat := testCatalog(t)

	records := cat.Query(domain.Decade80s, domain.CategoryPortuguese, nil)
	count := len(records)
	exclusions := []string{records[0].Text, records[1].Text}

	results := make([][]domain.Question, len(exclusions))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, ex := range exclusions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = m.Fetch(context.Background(), Request{
				Decade:   domain.Decade80s,
				Category: domain.CategoryPortuguese,
				Count:    count,
				Excluded: []string{ex},
			})
		}()
	}
	close(start)
	wg.Wait()

	// Each caller must get a batch honoring its own exclusion set, not a
	// result computed for the other one.
	for i, ex := range exclusions {
		if len(results[i]) == 0 {
			t.Fatalf("request %d came back empty", i)
		}
		for _, q := range results[i] {
			if q.Text == ex {
				t.Fatalf("request %d got back its own excluded text %q", i, ex)
			}
		}
	}
}

func TestIdenticalConcurrentFetchesCollapse(t *testing.T) {
	gen := &countingGen{release: make(chan struct{})}
	m := newTestManager(t, gen)

	req := Request{
		Decade:   domain.Decade90s,
		Category: domain.CategoryBoth,
		Count:    5,
		Excluded: []string{"pergunta vista"},
	}
	var wg sync.WaitGroup
	var batchA, batchB []domain.Question
	wg.Add(2)
	go func() { defer wg.Done(); batchA = m.Fetch(context.Background(), req) }()
	go func() { defer wg.Done(); batchB = m.Fetch(context.Background(), req) }()
	time.Sleep(100 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	gen.mu.Lock()
	calls := gen.calls
	gen.mu.Unlock()
	if calls != 1 {
		t.Fatalf("identical concurrent requests should share one sourcing pass, generator saw %d", calls)
	}
	if len(batchA) != 5 || len(batchB) != 5 {
		t.Fatalf("expected both callers served, got %d and %d", len(batchA), len(batchB))
	}
	// Shared result, private backing arrays: each session appends to its
	// batch later.
	if &batchA[0] == &batchB[0] {
		t.Fatal("collapsed fetch handed the same slice to both callers")
	}
}

func TestFetchMergesRemoteFirstAndValidates(t *testing.T) {
	remote := []generator.Candidate{
		{
			Text:          "Quem produziu o álbum 'Random Access Memories'?",
			Options:       []string{"Daft Punk", "Justice", "Moderat", "Röyksopp"},
			CorrectAnswer: "Daft Punk",
			Decade:        domain.Decade2010s,
			Category:      domain.CategoryInternational,
		},
		{
			// Structurally invalid: must be dropped, not abort the batch.
			Text:          "Pergunta partida",
			Options:       []string{"a", "b"},
			CorrectAnswer: "c",
		},
		{
			Text:          "Quem produziu o álbum 'Random Access Memories'?",
			Options:       []string{"Daft Punk", "Justice", "Moderat", "Röyksopp"},
			CorrectAnswer: "Daft Punk",
			Decade:        domain.Decade2010s,
			Category:      domain.CategoryInternational,
		},
	}
	m := newTestManager(t, stubGen{candidates: remote})

	batch := m.Fetch(context.Background(), Request{
		Decade:   domain.Decade2010s,
		Category: domain.CategoryInternational,
		Count:    11,
	})
	if len(batch) != 11 {
		t.Fatalf("expected 11 questions, got %d", len(batch))
	}
	remoteSeen := 0
	for _, q := range batch {
		if q.Text == "Quem produziu o álbum 'Random Access Memories'?" {
			remoteSeen++
		}
		if q.Text == "Pergunta partida" {
			t.Fatal("invalid remote candidate delivered")
		}
	}
	if remoteSeen != 1 {
		t.Fatalf("remote candidate should appear exactly once, saw %d", remoteSeen)
	}
}
