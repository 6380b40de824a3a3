// Package notifier runs one fetch-and-post cycle: it filters fetched items
// through the ledger, publishes the new ones and records every confirmed post.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/0x0BSoD/animeTimes/internal/ledger"
	"github.com/0x0BSoD/animeTimes/internal/metrics"
	"github.com/0x0BSoD/animeTimes/internal/model"
	"github.com/0x0BSoD/animeTimes/internal/source"
)

type ItemFetcher interface {
	Fetch(ctx context.Context) ([]model.Item, error)
	Enrich(ctx context.Context, items []model.Item, fallbackSummary string) []model.Item
}

type Publisher interface {
	Publish(ctx context.Context, item model.Item) error
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Report describes a finished run.
type Report struct {
	RunID   string
	Fetched int
	Fresh   int
	Posted  int
	Failed  int
}

type Notifier struct {
	store      ledger.Store
	fetcher    ItemFetcher
	publisher  Publisher
	summarizer Summarizer
	metrics    *metrics.Metrics

	key          ledger.KeyFunc
	sendInterval time.Duration
	maxEntries   int
}

// New wires a notifier. summarizer and m may be nil. maxEntries <= 0 keeps
// the ledger unbounded.
func New(
	store ledger.Store,
	fetcher ItemFetcher,
	publisher Publisher,
	summarizer Summarizer,
	m *metrics.Metrics,
	key ledger.KeyFunc,
	sendInterval time.Duration,
	maxEntries int,
) *Notifier {
	if key == nil {
		key = ledger.TitleKey
	}
	return &Notifier{
		store:        store,
		fetcher:      fetcher,
		publisher:    publisher,
		summarizer:   summarizer,
		metrics:      m,
		key:          key,
		sendInterval: sendInterval,
		maxEntries:   maxEntries,
	}
}

// RunOnce loads the ledger, posts every fetched item it does not contain and
// saves the ledger after each confirmed post and once more at the end.
//
// A failed post is counted and retried on the next run. A ledger that cannot
// be loaded or saved aborts the run.
func (n *Notifier) RunOnce(ctx context.Context) (report Report, err error) {
	start := time.Now()
	report.RunID = uuid.NewString()
	log := slog.With("run_id", report.RunID)

	defer func() {
		n.metrics.ObserveItems(report.Fetched, report.Fresh, report.Posted, report.Failed)
		n.metrics.ObserveRun(start, err)
	}()

	log.Info("run started")

	posted, err := n.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load ledger: %w", err)
	}
	log.Info("ledger loaded", "entries", posted.Len())

	items, err := n.fetcher.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch items: %w", err)
	}
	report.Fetched = len(items)

	fresh, ids := n.fresh(log, posted, items)
	report.Fresh = len(fresh)
	log.Info("items selected", "fetched", report.Fetched, "fresh", report.Fresh)

	if len(fresh) > 0 {
		fresh = n.fetcher.Enrich(ctx, fresh, source.FailedSummary)
		n.summarize(ctx, log, fresh)
	}

	for i, item := range fresh {
		var wait time.Duration
		if i > 0 {
			wait = n.sendInterval
		}
		if err := sleep(ctx, wait); err != nil {
			break
		}

		if err := n.publisher.Publish(ctx, item); err != nil {
			report.Failed++
			log.Error("failed to post item", "title", item.Title, "err", err)
			continue
		}

		id := ids[i]
		posted.Record(id)
		report.Posted++

		// A post that went out is recorded even if the run is being cancelled.
		if err := n.store.Save(context.WithoutCancel(ctx), posted); err != nil {
			return report, fmt.Errorf("save ledger after posting %q: %w", id, err)
		}
	}

	if n.maxEntries > 0 {
		if pruned := posted.Prune(n.maxEntries); pruned > 0 {
			log.Info("ledger pruned", "removed", pruned, "max_entries", n.maxEntries)
		}
	}

	// The final save also runs after cancellation so a cold start still
	// leaves a ledger behind.
	if err := n.store.Save(context.WithoutCancel(ctx), posted); err != nil {
		return report, fmt.Errorf("save ledger: %w", err)
	}
	n.metrics.SetLedgerSize(posted.Len())

	log.Info("run finished",
		"posted", report.Posted,
		"failed", report.Failed,
		"entries", posted.Len(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run interrupted: %w", err)
	}

	return report, nil
}

// fresh drops items that are already in the ledger or repeat an earlier item
// of the same batch. Items without an id are skipped. The ids are returned
// alongside, computed before enrichment may touch the items.
func (n *Notifier) fresh(log *slog.Logger, posted *ledger.Ledger, items []model.Item) ([]model.Item, []string) {
	var (
		out  = make([]model.Item, 0, len(items))
		ids  = make([]string, 0, len(items))
		seen = make(map[string]struct{}, len(items))
	)

	for _, item := range items {
		id := n.key(item)
		if id == "" {
			log.Warn("item has no id, skipping", "title", item.Title, "link", item.Link)
			continue
		}
		if posted.Contains(id) {
			log.Debug("already posted", "id", id)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
		ids = append(ids, id)
	}

	return out, ids
}

func (n *Notifier) summarize(ctx context.Context, log *slog.Logger, items []model.Item) {
	if n.summarizer == nil {
		return
	}

	for i := range items {
		switch items[i].Summary {
		case "", source.NoSummary, source.FailedSummary:
			continue
		}

		s, err := n.summarizer.Summarize(ctx, items[i].Summary)
		if err != nil {
			log.Warn("failed to summarize, keeping scraped summary", "title", items[i].Title, "err", err)
			continue
		}
		if s != "" {
			items[i].Summary = s
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
