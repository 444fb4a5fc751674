package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/NicklasHM/P3-sleep-diary/internal/logging"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// Policy decides what a failed question lookup does to the caller.
type Policy int

const (
	// FailClosed aborts the whole fetch on the first failure. Used for
	// session-critical lookups.
	FailClosed Policy = iota
	// FailOpen omits questions that could not be fetched. Used for
	// background lookups whose result is revalidated later.
	FailOpen
)

func (p Policy) String() string {
	if p == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

// DefaultCacheSize is the number of localized questions a Fetcher keeps.
const DefaultCacheSize = 512

const fetchWorkers = 8

type cacheKey struct {
	id     string
	locale domain.Locale
}

// Fetcher loads localized questions in parallel through an LRU cache.
type Fetcher struct {
	reader    ports.QuestionReader
	cache     *lru.Cache[cacheKey, domain.Question]
	logger    *slog.Logger
	onFailure func(Policy)
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchLogger configures a logger for the Fetcher.
func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithFailureObserver registers a callback for every failed lookup.
func WithFailureObserver(fn func(Policy)) FetcherOption {
	return func(f *Fetcher) {
		f.onFailure = fn
	}
}

// NewFetcher creates a Fetcher. size <= 0 selects DefaultCacheSize.
func NewFetcher(reader ports.QuestionReader, size int, opts ...FetcherOption) (*Fetcher, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, domain.Question](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	f := &Fetcher{
		reader: reader,
		cache:  cache,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch returns the questions with the given IDs in the given order. With
// FailOpen the result omits questions that failed to load and the error is
// always nil.
func (f *Fetcher) Fetch(ctx context.Context, ids []string, locale domain.Locale, policy Policy) ([]domain.Question, error) {
	results := make([]*domain.Question, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, id := range ids {
		if q, ok := f.cache.Get(cacheKey{id, locale}); ok {
			c := q.Clone()
			results[i] = &c
			continue
		}
		g.Go(func() error {
			q, err := f.reader.Get(gctx, id, locale, false)
			if err != nil {
				if f.onFailure != nil {
					f.onFailure(policy)
				}
				if policy == FailOpen {
					f.logger.Warn("question lookup failed, omitting it", "question_id", id, "policy", policy.String(), "err", err)
					return nil
				}
				if errors.Is(err, domain.ErrQuestionNotFound) {
					return err
				}
				return domain.Transient("fetch question "+id, err)
			}
			f.cache.Add(cacheKey{id, locale}, q.Clone())
			results[i] = &q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Question, 0, len(ids))
	for _, q := range results {
		if q != nil {
			out = append(out, *q)
		}
	}
	return out, nil
}

// Purge drops every cached question, e.g. after an edit was committed.
func (f *Fetcher) Purge() {
	f.cache.Purge()
}
