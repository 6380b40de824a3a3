package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/0x0BSoD/animeTimes/internal/model"
)

var ErrNoSources = errors.New("all sources failed")

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Item, error)
}

// DetailsProvider completes an item (summary, image) with a second request.
type DetailsProvider interface {
	Details(ctx context.Context, item model.Item) (model.Item, error)
}

type Fetcher struct {
	sources []Source
	details DetailsProvider

	filterKeywords []string
	workers        int
	backoff        Backoff
}

func New(
	sources []Source,
	details DetailsProvider,
	filterKeywords []string,
	workers int,
	backoff Backoff,
) *Fetcher {
	return &Fetcher{
		sources: sources,
		details: details,
		filterKeywords: lo.Map(filterKeywords, func(k string, _ int) string {
			return strings.ToLower(strings.TrimSpace(k))
		}),
		workers: max(workers, 1),
		backoff: backoff,
	}
}

// Fetch collects items from every source concurrently. A failing source is
// logged and skipped; an error is returned only when no source succeeded.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.Item, error) {
	var (
		mu       sync.Mutex
		results  = make([][]model.Item, len(f.sources))
		failures []error
		g        errgroup.Group
	)

	for i, src := range f.sources {
		g.Go(func() error {
			var items []model.Item
			err := withRetry(ctx, src.Name(), f.backoff, func(ctx context.Context) error {
				var err error
				items, err = src.Fetch(ctx)
				return err
			})
			if err != nil {
				slog.Error("failed to fetch items", "source", src.Name(), "err", err)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return nil
			}

			results[i] = f.filter(items)
			return nil
		})
	}
	_ = g.Wait()

	if len(f.sources) > 0 && len(failures) == len(f.sources) {
		return nil, errors.Join(append([]error{ErrNoSources}, failures...)...)
	}

	return lo.Flatten(results), nil
}

func (f *Fetcher) filter(items []model.Item) []model.Item {
	return lo.Reject(items, func(item model.Item, _ int) bool {
		return f.itemMustSkipped(item)
	})
}

func (f *Fetcher) itemMustSkipped(item model.Item) bool {
	categories := lo.Uniq(lo.Map(item.Categories, func(c string, _ int) string {
		return strings.ToLower(c)
	}))
	title := strings.ToLower(item.Title)

	for _, keyword := range f.filterKeywords {
		if keyword == "" {
			continue
		}
		if lo.Contains(categories, keyword) || strings.Contains(title, keyword) {
			return true
		}
	}

	return false
}

// Enrich fetches details for items without a summary, with at most f.workers
// requests in flight. The order of items is kept. An item whose details
// cannot be fetched keeps its data and gets fallbackSummary.
func (f *Fetcher) Enrich(ctx context.Context, items []model.Item, fallbackSummary string) []model.Item {
	if f.details == nil || len(items) == 0 {
		return items
	}

	out := make([]model.Item, len(items))

	var g errgroup.Group
	g.SetLimit(f.workers)

	for i, item := range items {
		if item.Summary != "" {
			out[i] = item
			continue
		}

		g.Go(func() error {
			detailed, err := f.details.Details(ctx, item)
			if err != nil {
				slog.Error("failed to fetch article details", "title", item.Title, "link", item.Link, "err", err)
				item.Summary = fallbackSummary
				out[i] = item
				return nil
			}
			out[i] = detailed
			return nil
		})
	}
	_ = g.Wait()

	return out
}
