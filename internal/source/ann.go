// Package source implements the feeds news items are collected from: the Anime News Network front page and plain RSS feeds.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/0x0BSoD/animeTimes/internal/model"
)

const (
	ANNName = "animenewsnetwork"

	NoSummary     = "No summary available."
	FailedSummary = "Failed to fetch summary."

	summaryLimit = 300
)

var (
	newsBlockSel = cascadia.MustCompile("div.herald.box.news.t-news")
	titleSel     = cascadia.MustCompile("h3")
	titleLinkSel = cascadia.MustCompile("a[href]")
	timeSel      = cascadia.MustCompile("time")
	thumbnailSel = cascadia.MustCompile("div.thumbnail.lazyload")
	trailerSel   = cascadia.MustCompile("a.trailer[href]")
	meatSel      = cascadia.MustCompile("div.meat")
	contentSel   = cascadia.MustCompile("div.content")
	paragraphSel = cascadia.MustCompile("p")
	dateLayouts  = []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02T15:04:05", "2006-01-02"}
	trailerHosts = []string{"youtube.com", "youtu.be"}
)

// ANNSource scrapes the news blocks of the Anime News Network front page.
type ANNSource struct {
	baseURL  *url.URL
	client   *http.Client
	location *time.Location
	allDates bool
	now      func() time.Time
}

// NewANNSource returns a source for baseURL. Only news dated today in loc are
// returned unless allDates is set.
func NewANNSource(baseURL string, client *http.Client, loc *time.Location, allDates bool) (*ANNSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	return &ANNSource{
		baseURL:  u,
		client:   client,
		location: loc,
		allDates: allDates,
		now:      time.Now,
	}, nil
}

func (s *ANNSource) Name() string {
	return ANNName
}

func (s *ANNSource) Fetch(ctx context.Context) ([]model.Item, error) {
	body, err := get(ctx, s.client, s.baseURL.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return s.parseFrontPage(body)
}

func (s *ANNSource) parseFrontPage(r io.Reader) ([]model.Item, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse front page: %w", err)
	}

	blocks := newsBlockSel.MatchAll(doc)
	slog.Info("news blocks found", "source", ANNName, "count", len(blocks))

	today := s.now().In(s.location)

	var items []model.Item
	for _, block := range blocks {
		titleNode := titleSel.MatchFirst(block)
		timeNode := timeSel.MatchFirst(block)
		if titleNode == nil || timeNode == nil {
			continue
		}

		title := strippedText(titleNode)
		if title == "" {
			continue
		}

		raw, ok := attr(timeNode, "datetime")
		if !ok {
			continue
		}
		date, err := parseDate(raw)
		if err != nil {
			slog.Error("failed to parse news date", "title", title, "datetime", raw, "err", err)
			continue
		}
		date = date.In(s.location)

		if !s.allDates && !sameDay(date, today) {
			slog.Debug("skipping news not from today", "title", title, "date", date.Format(time.DateOnly))
			continue
		}

		item := model.Item{
			Title:      title,
			Date:       date,
			SourceName: ANNName,
		}
		if a := titleLinkSel.MatchFirst(titleNode); a != nil {
			href, _ := attr(a, "href")
			item.Link = s.resolve(href)
		}
		if thumb := thumbnailSel.MatchFirst(block); thumb != nil {
			if src, ok := attr(thumb, "data-src"); ok {
				item.ImageURL = s.resolve(src)
			}
		}
		if a := trailerSel.MatchFirst(block); a != nil {
			href, _ := attr(a, "href")
			if isTrailer(href) {
				item.TrailerURL = href
			}
		}

		items = append(items, item)
	}

	slog.Info("news selected", "source", ANNName, "count", len(items), "all_dates", s.allDates)
	return items, nil
}

// Details fills the item summary from the first paragraph of the article page.
func (s *ANNSource) Details(ctx context.Context, item model.Item) (model.Item, error) {
	if item.Summary == "" {
		item.Summary = NoSummary
	}
	if item.Link == "" {
		return item, nil
	}

	body, err := get(ctx, s.client, item.Link)
	if err != nil {
		return item, err
	}
	defer body.Close()

	page, err := io.ReadAll(body)
	if err != nil {
		return item, fmt.Errorf("read article %s: %w", item.Link, err)
	}

	pageURL, _ := url.Parse(item.Link)
	summary, err := extractSummary(page, pageURL)
	if err != nil {
		return item, err
	}
	if summary != "" {
		item.Summary = summary
	}

	return item, nil
}

// extractSummary prefers the first paragraph of the article body and falls
// back to a readability excerpt for pages without the usual containers.
func extractSummary(page []byte, pageURL *url.URL) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}

	container := meatSel.MatchFirst(doc)
	if container == nil {
		container = contentSel.MatchFirst(doc)
	}
	if container != nil {
		if p := paragraphSel.MatchFirst(container); p != nil {
			return truncate(collapseSpaces(rawText(p)), summaryLimit), nil
		}
		return "", nil
	}

	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	text := article.Excerpt
	if text == "" {
		text = article.TextContent
	}

	return truncate(collapseSpaces(text), summaryLimit), nil
}

func (s *ANNSource) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return s.baseURL.ResolveReference(u).String()
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", raw)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func isTrailer(href string) bool {
	for _, host := range trailerHosts {
		if strings.Contains(href, host) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
