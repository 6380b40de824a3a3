// Package publisher posts news items to a Telegram chat or channel.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/0x0BSoD/animeTimes/internal/botkit/markup"
	"github.com/0x0BSoD/animeTimes/internal/model"
)

// ErrNotify marks a failed delivery. The item is not recorded and will be
// retried on the next run.
var ErrNotify = errors.New("notify failed")

const (
	captionLimit = 1024
	messageLimit = 4096

	noSummary = "No summary available"
	openRule  = "﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏﹏"
	closeRule = "﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋﹋"
)

// Parse modes accepted by NewTelegram.
const (
	ParseModeHTML       = "html"
	ParseModeMarkdownV2 = "markdownv2"
)

// BotAPI is the part of *tgbotapi.BotAPI the publisher needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// format renders caption pieces in one Telegram parse mode.
type format struct {
	mode   string
	escape func(string) string
	bold   func(string) string
	link   func(text, url string) string
	// cut drops an escape sequence left incomplete by truncation.
	cut func(string) string
}

var formats = map[string]format{
	ParseModeHTML: {
		mode:   tgbotapi.ModeHTML,
		escape: markup.EscapeForHTML,
		bold:   func(s string) string { return "<b>" + s + "</b>" },
		link: func(text, url string) string {
			return fmt.Sprintf("<a href=\"%s\">%s</a>", markup.EscapeAttr(url), markup.EscapeForHTML(text))
		},
		cut: cutEntity,
	},
	ParseModeMarkdownV2: {
		mode:   tgbotapi.ModeMarkdownV2,
		escape: markup.EscapeForMarkdown,
		bold:   func(s string) string { return "*" + s + "*" },
		link: func(text, url string) string {
			return fmt.Sprintf("[%s](%s)", markup.EscapeForMarkdown(text), markup.EscapeURLForMarkdown(url))
		},
		cut: cutEscape,
	},
}

type Telegram struct {
	bot       BotAPI
	chatID    int64
	channel   string
	signature string
	format    format
	client    *http.Client
}

// NewTelegram targets chat, which is either a numeric chat id or an @channel
// username. parseMode is ParseModeHTML (the default when empty) or
// ParseModeMarkdownV2.
func NewTelegram(bot BotAPI, chat, signature, parseMode string, client *http.Client) (*Telegram, error) {
	if parseMode == "" {
		parseMode = ParseModeHTML
	}
	f, ok := formats[strings.ToLower(parseMode)]
	if !ok {
		return nil, fmt.Errorf("unknown parse mode %q", parseMode)
	}

	t := &Telegram{bot: bot, signature: signature, format: f, client: client}

	chat = strings.TrimSpace(chat)
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		t.chatID = id
		return t, nil
	}
	if !strings.HasPrefix(chat, "@") || len(chat) < 2 {
		return nil, fmt.Errorf("invalid telegram chat %q: want a numeric id or @channel", chat)
	}
	t.channel = chat

	return t, nil
}

// Publish sends the item as a photo post when its image is reachable and
// falls back to a text message otherwise.
func (t *Telegram) Publish(ctx context.Context, item model.Item) error {
	caption := t.Caption(item, captionLimit)
	slog.Info("sending to telegram", "title", item.Title, "image", item.ImageURL)

	if item.HasImage() && t.validImage(ctx, item.ImageURL) {
		_, err := t.bot.Send(t.photo(item.ImageURL, caption))
		if err == nil {
			slog.Info("posted with photo", "title", item.Title)
			return nil
		}
		slog.Error("failed to send photo, falling back to text", "title", item.Title, "err", err)
	}

	if _, err := t.bot.Send(t.message(t.Caption(item, messageLimit))); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotify, item.Title, err)
	}
	slog.Info("posted as text", "title", item.Title)

	return nil
}

// Caption renders the post body so that it stays within limit characters.
// The summary is shortened first; once it is down to an ellipsis the title is
// shortened too, and as a last resort the trailer link is dropped.
func (t *Telegram) Caption(item model.Item, limit int) string {
	f := t.format

	title := f.escape(strings.TrimSpace(item.Title))
	summary := f.escape(noSummary)
	if s := strings.TrimSpace(item.Summary); s != "" {
		summary = f.escape(s)
	}
	trailer := item.TrailerURL

	caption := t.render(title, summary, trailer)
	excess := utf8.RuneCountInString(caption) - limit
	if excess <= 0 {
		return caption
	}

	ellipsis := f.escape("...")
	ellipsisLen := utf8.RuneCountInString(ellipsis)

	if keep := utf8.RuneCountInString(summary) - excess - ellipsisLen; keep >= 0 {
		return t.render(title, f.cut(string([]rune(summary)[:keep]))+ellipsis, trailer)
	}

	summary = ellipsis
	excess = utf8.RuneCountInString(t.render(title, summary, trailer)) - limit
	keep := max(utf8.RuneCountInString(title)-excess-ellipsisLen, 0)
	title = f.cut(string([]rune(title)[:keep])) + ellipsis

	caption = t.render(title, summary, trailer)
	if utf8.RuneCountInString(caption) > limit && trailer != "" {
		caption = t.render(title, summary, "")
	}

	return caption
}

func (t *Telegram) render(title, summary, trailer string) string {
	f := t.format

	var b strings.Builder
	b.WriteString(f.bold(title) + " ⚡\n")
	b.WriteString(openRule + "\n")
	b.WriteString(summary + "\n")
	if trailer != "" {
		b.WriteString("🎬 " + f.link("Watch Trailer", trailer) + "\n")
	}
	b.WriteString(closeRule)
	if t.signature != "" {
		b.WriteString("\n" + f.escape("🍁| "+t.signature))
	}
	return b.String()
}

// cutEntity drops a trailing partial HTML entity left by truncation.
func cutEntity(s string) string {
	amp := strings.LastIndexByte(s, '&')
	if amp >= 0 && !strings.Contains(s[amp:], ";") {
		return s[:amp]
	}
	return s
}

// cutEscape drops a trailing lone MarkdownV2 escape character.
func cutEscape(s string) string {
	n := len(s) - len(strings.TrimRight(s, "\\"))
	if n%2 == 1 {
		return s[:len(s)-1]
	}
	return s
}

// validImage fetches the first kilobyte of url and checks it is served as an image.
func (t *Telegram) validImage(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("invalid image url", "url", url, "err", err)
		return false
	}
	req.Header.Set("Range", "bytes=0-1023")

	resp, err := t.client.Do(req)
	if err != nil {
		slog.Warn("image url is not reachable", "url", url, "err", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("image url returned bad status", "url", url, "status", resp.StatusCode)
		return false
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		slog.Warn("url is not an image", "url", url, "content_type", ct)
		return false
	}

	return true
}

func (t *Telegram) photo(url, caption string) tgbotapi.PhotoConfig {
	var cfg tgbotapi.PhotoConfig
	if t.channel != "" {
		cfg = tgbotapi.NewPhotoToChannel(t.channel, tgbotapi.FileURL(url))
	} else {
		cfg = tgbotapi.NewPhoto(t.chatID, tgbotapi.FileURL(url))
	}
	cfg.Caption = caption
	cfg.ParseMode = t.format.mode
	return cfg
}

func (t *Telegram) message(text string) tgbotapi.MessageConfig {
	var cfg tgbotapi.MessageConfig
	if t.channel != "" {
		cfg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		cfg = tgbotapi.NewMessage(t.chatID, text)
	}
	cfg.ParseMode = t.format.mode
	return cfg
}
