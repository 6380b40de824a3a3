package source

import (
	"context"
	"net/http"
	"strings"

	"github.com/SlyMarbo/rss"
	"github.com/samber/lo"

	"github.com/0x0BSoD/animeTimes/internal/model"
)

// contextTransport injects a context into every outgoing request so that
// context cancellation and deadlines propagate through the rss library.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

type RSSSource struct {
	URL    string
	client *http.Client
}

func NewRSSSource(url string, client *http.Client) RSSSource {
	return RSSSource{URL: url, client: client}
}

func (s RSSSource) Name() string {
	return s.URL
}

func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := s.loadFeed(ctx)
	if err != nil {
		return nil, err
	}

	items := lo.Filter(feed.Items, func(item *rss.Item, _ int) bool {
		return strings.TrimSpace(item.Title) != ""
	})

	return lo.Map(items, func(item *rss.Item, _ int) model.Item {
		return model.Item{
			Title:      strings.TrimSpace(item.Title),
			Categories: item.Categories,
			Link:       item.Link,
			Date:       item.Date,
			ImageURL:   enclosureImage(item),
			SourceName: s.Name(),
			Summary:    truncate(collapseSpaces(itemText(item)), summaryLimit),
		}
	}), nil
}

// itemText returns the richest available text for an item.
// Content (full body) is preferred over Summary (short excerpt).
func itemText(item *rss.Item) string {
	if c := strings.TrimSpace(item.Content); c != "" {
		return stripTags(c)
	}
	return stripTags(strings.TrimSpace(item.Summary))
}

func enclosureImage(item *rss.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

func (s RSSSource) loadFeed(ctx context.Context) (*rss.Feed, error) {
	base := s.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client := &http.Client{
		Transport: contextTransport{ctx: ctx, base: base},
		Timeout:   s.client.Timeout,
	}
	return rss.FetchByClient(s.URL, client)
}
