package supply

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"retrotunes-service/internal/catalog"
	"retrotunes-service/internal/domain"
	"retrotunes-service/internal/generator"
	"retrotunes-service/internal/shuffle"
)

// DefaultRemoteTimeout bounds each remote generation attempt. Expiry is
// treated identically to a network failure; there is no retry.
const DefaultRemoteTimeout = 6 * time.Second

// Request describes one batch wanted by a session.
type Request struct {
	Decade   domain.Decade
	Category domain.Category
	Count    int
	// Excluded holds question texts to avoid, most-recent-last, typically
	// the cross-session played history plus the session's own played set.
	Excluded []string
}

// Fetcher is the supply contract consumed by the session state machine.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) []domain.Question
}

// Manager orchestrates question sourcing: remote generator under a time
// budget when configured, catalog baseline always, validation,
// text-deduplication and pool shuffling. Fetch never returns an error and
// never comes back empty under normal configuration.
type Manager struct {
	catalog   *catalog.Catalog
	gen       generator.Generator // nil means catalog-only, a first-class mode
	validator *Validator
	timeout   time.Duration
	logger    *zap.SugaredLogger
	sf        singleflight.Group
}

func NewManager(cat *catalog.Catalog, gen generator.Generator, validator *Validator, timeout time.Duration, logger *zap.SugaredLogger) *Manager {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Manager{
		catalog:   cat,
		gen:       gen,
		validator: validator,
		timeout:   timeout,
		logger:    logger,
	}
}

// Fetch returns up to req.Count finalized questions. Identical concurrent
// requests (a double-triggered replenishment) collapse into one sourcing
// pass; requests with different exclusion sets never share a result.
func (m *Manager) Fetch(ctx context.Context, req Request) []domain.Question {
	batch, _, _ := m.sf.Do(req.key(), func() (any, error) {
		return m.fetch(ctx, req), nil
	})
	qs := batch.([]domain.Question)

	// Callers append replenished questions onto their batch; handing the
	// same backing array to two of them would let those appends collide.
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out
}

// key identifies a request by its full contents, exclusion texts included.
func (r Request) key() string {
	h := fnv.New64a()
	for _, text := range r.Excluded {
		io.WriteString(h, text)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s|%s|%d|%x", r.Decade, r.Category, r.Count, h.Sum64())
}

func (m *Manager) fetch(ctx context.Context, req Request) []domain.Question {
	excluded := make(map[string]struct{}, len(req.Excluded))
	for _, text := range req.Excluded {
		excluded[text] = struct{}{}
	}

	var pool []domain.Question
	seen := make(map[string]struct{})
	add := func(q domain.Question) {
		if _, dup := seen[q.Text]; dup {
			return
		}
		seen[q.Text] = struct{}{}
		pool = append(pool, q)
	}

	// Remote first, so fresh material wins the text-level dedupe against
	// the static catalog.
	candidates, err := m.remote(ctx, req)
	if err != nil {
		m.logger.Warnw("remote supply failed, degrading to catalog", "err", err, "decade", req.Decade, "category", req.Category)
	}
	kept := 0
	for i, c := range candidates {
		q, ok := m.validator.Normalize(c, i, req.Decade, req.Category)
		if !ok {
			continue
		}
		if _, played := excluded[q.Text]; played {
			continue
		}
		add(q)
		kept++
	}
	if len(candidates) > 0 && kept < len(candidates) {
		m.logger.Infow("dropped invalid remote candidates", "received", len(candidates), "kept", kept)
	}

	// Catalog baseline with the requested filters.
	m.addRecords(&pool, seen, m.catalog.Query(req.Decade, req.Category, excluded), req)

	pool = shuffle.Slice(pool)
	if len(pool) >= req.Count {
		return pool[:req.Count]
	}

	// Short: relax category while keeping the decade, then fall back to the
	// whole catalog. Excluded texts stay out until nothing else is left.
	m.addRecords(&pool, seen, m.catalog.Query(req.Decade, domain.CategoryBoth, excluded), req)
	if len(pool) < req.Count {
		m.addRecords(&pool, seen, m.catalog.Query(domain.DecadeAll, domain.CategoryBoth, excluded), req)
	}
	if len(pool) < req.Count {
		m.addRecords(&pool, seen, m.catalog.All(), req)
	}

	if len(pool) > req.Count {
		pool = pool[:req.Count]
	}
	return pool
}

// addRecords normalizes catalog records into the pool in random order,
// skipping texts already present. Truncation to the requested count is the
// caller's concern.
func (m *Manager) addRecords(pool *[]domain.Question, seen map[string]struct{}, records []catalog.Record, req Request) {
	for i, r := range shuffle.Slice(records) {
		if _, dup := seen[r.Text]; dup {
			continue
		}
		q, ok := m.validator.Normalize(generator.Candidate{
			Text:          r.Text,
			Options:       r.Options,
			CorrectAnswer: r.CorrectAnswer,
			Decade:        r.Decade,
			Category:      r.Category,
		}, len(*pool)+i, req.Decade, req.Category)
		if !ok {
			// Catalog records are validated at load time; a drop here means
			// the denylist and the curation disagree.
			m.logger.Warnw("catalog record dropped by validator", "text", r.Text)
			continue
		}
		seen[q.Text] = struct{}{}
		*pool = append(*pool, q)
	}
}

// remote runs a single generation attempt under the configured timeout.
// A nil generator yields no candidates and no error: catalog-only mode.
func (m *Manager) remote(ctx context.Context, req Request) ([]generator.Candidate, error) {
	if m.gen == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	candidates, err := m.gen.Generate(ctx, generator.Request{
		Count:        req.Count,
		Decade:       req.Decade,
		Category:     req.Category,
		ExcludeTexts: req.Excluded,
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
