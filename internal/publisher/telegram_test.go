package publisher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/animeTimes/internal/model"
)

type fakeBot struct {
	sent      []tgbotapi.Chattable
	failPhoto bool
	failText  bool
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	switch c.(type) {
	case tgbotapi.PhotoConfig:
		if b.failPhoto {
			return tgbotapi.Message{}, errors.New("Bad Request: wrong file identifier")
		}
	case tgbotapi.MessageConfig:
		if b.failText {
			return tgbotapi.Message{}, errors.New("Too Many Requests: retry after 5")
		}
	}
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			assert.Equal(t, "bytes=0-1023", r.Header.Get("Range"))
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestTelegram(t *testing.T, bot BotAPI, chat string) *Telegram {
	t.Helper()

	tg, err := NewTelegram(bot, chat, "@TheAnimeTimes_acn", ParseModeHTML, http.DefaultClient)
	require.NoError(t, err)
	return tg
}

func TestNewTelegram_Chat(t *testing.T) {
	tg, err := NewTelegram(&fakeBot{}, "-1001234567890", "", "", http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), tg.chatID)
	assert.Empty(t, tg.channel)

	tg, err = NewTelegram(&fakeBot{}, "@anime_times", "", "", http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, "@anime_times", tg.channel)

	for _, bad := range []string{"", "@", "anime_times"} {
		_, err := NewTelegram(&fakeBot{}, bad, "", "", http.DefaultClient)
		assert.Error(t, err, bad)
	}

	tg, err = NewTelegram(&fakeBot{}, "1", "", "MarkdownV2", http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, tg.format.mode)

	_, err = NewTelegram(&fakeBot{}, "1", "", "bbcode", http.DefaultClient)
	assert.Error(t, err)
}

func TestTelegram_Caption(t *testing.T) {
	tg := newTestTelegram(t, &fakeBot{}, "1")

	got := tg.Caption(model.Item{
		Title:      "Kaiju No. 8 <Season 2> & more",
		Summary:    "Production I.G confirmed it.",
		TrailerURL: "https://www.youtube.com/watch?v=a&b=1",
	}, captionLimit)

	want := "<b>Kaiju No. 8 &lt;Season 2&gt; &amp; more</b> ⚡\n" +
		openRule + "\n" +
		"Production I.G confirmed it.\n" +
		"🎬 <a href=\"https://www.youtube.com/watch?v=a&amp;b=1\">Watch Trailer</a>\n" +
		closeRule + "\n" +
		"🍁| @TheAnimeTimes_acn"
	assert.Equal(t, want, got)
}

func TestTelegram_CaptionWithoutSummary(t *testing.T) {
	tg := newTestTelegram(t, &fakeBot{}, "1")

	got := tg.Caption(model.Item{Title: "T"}, captionLimit)
	assert.Contains(t, got, "\n"+noSummary+"\n")
}

func TestTelegram_CaptionIsTruncated(t *testing.T) {
	tg := newTestTelegram(t, &fakeBot{}, "1")
	item := model.Item{
		Title:   "Long one",
		Summary: strings.Repeat("Tom & Jerry ", 200),
	}

	got := tg.Caption(item, captionLimit)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), captionLimit)
	assert.Contains(t, got, "...\n"+closeRule)
	assert.True(t, strings.HasSuffix(got, "@TheAnimeTimes_acn"))

	body := got[strings.Index(got, openRule)+len(openRule) : strings.Index(got, "...")]
	assert.NotRegexp(t, `&[a-z]*$`, body, "no dangling entity before the ellipsis")

	full := tg.Caption(item, messageLimit)
	assert.Greater(t, utf8.RuneCountInString(full), utf8.RuneCountInString(got))
}

func TestTelegram_CaptionLongTitle(t *testing.T) {
	tg := newTestTelegram(t, &fakeBot{}, "1")
	item := model.Item{
		Title:      strings.Repeat("&", 400),
		Summary:    "short",
		TrailerURL: "https://youtu.be/abc",
	}

	got := tg.Caption(item, captionLimit)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), captionLimit)
	assert.True(t, strings.HasPrefix(got, "<b>&amp;"))
	assert.Contains(t, got, "&amp;...</b> ⚡\n")
	assert.Contains(t, got, openRule+"\n...\n")
	assert.Contains(t, got, "Watch Trailer")
	assert.True(t, strings.HasSuffix(got, "@TheAnimeTimes_acn"))
}

func TestTelegram_CaptionDropsTrailerLast(t *testing.T) {
	tg := newTestTelegram(t, &fakeBot{}, "1")
	item := model.Item{
		Title:      "T",
		Summary:    "S",
		TrailerURL: "https://www.youtube.com/watch?v=" + strings.Repeat("x", 1100),
	}

	got := tg.Caption(item, captionLimit)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), captionLimit)
	assert.NotContains(t, got, "Watch Trailer")
}

func TestTelegram_CaptionMarkdownV2(t *testing.T) {
	tg, err := NewTelegram(&fakeBot{}, "1", "@TheAnimeTimes_acn", ParseModeMarkdownV2, http.DefaultClient)
	require.NoError(t, err)

	got := tg.Caption(model.Item{
		Title:      "Re:Zero - Season 3 (2024)!",
		Summary:    "Airs in October.",
		TrailerURL: "https://www.youtube.com/watch?v=(a)",
	}, captionLimit)

	want := "*Re:Zero \\- Season 3 \\(2024\\)\\!* ⚡\n" +
		openRule + "\n" +
		"Airs in October\\.\n" +
		"🎬 [Watch Trailer](https://www.youtube.com/watch?v=(a\\))\n" +
		closeRule + "\n" +
		"🍁\\| @TheAnimeTimes\\_acn"
	assert.Equal(t, want, got)

	long := tg.Caption(model.Item{Title: "T", Summary: strings.Repeat("a.", 800)}, captionLimit)
	assert.LessOrEqual(t, utf8.RuneCountInString(long), captionLimit)
	assert.Contains(t, long, "\\.\\.\\.\n"+closeRule)
	assert.NotContains(t, long, "\\\\.\\.\\.", "no lone escape before the ellipsis")
}

func TestCutEscape(t *testing.T) {
	assert.Equal(t, `a\.b`, cutEscape(`a\.b`))
	assert.Equal(t, `a`, cutEscape(`a\`))
	assert.Equal(t, `a\\`, cutEscape(`a\\`))
	assert.Equal(t, `a\\`, cutEscape(`a\\\`))
}

func TestTelegram_PublishWithPhoto(t *testing.T) {
	srv := imageServer(t)
	bot := &fakeBot{}
	tg := newTestTelegram(t, bot, "@anime_times")

	err := tg.Publish(context.Background(), model.Item{Title: "T", ImageURL: srv.URL + "/ok.jpg"})
	require.NoError(t, err)

	require.Len(t, bot.sent, 1)
	photo, ok := bot.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "@anime_times", photo.ChannelUsername)
	assert.Equal(t, tgbotapi.FileURL(srv.URL+"/ok.jpg"), photo.File)
	assert.Equal(t, tgbotapi.ModeHTML, photo.ParseMode)
	assert.True(t, strings.HasPrefix(photo.Caption, "<b>T</b>"))
}

func TestTelegram_PublishFallsBackToText(t *testing.T) {
	srv := imageServer(t)

	tests := []struct {
		name      string
		image     string
		failPhoto bool
		wantSends int
	}{
		{name: "no image", image: "", wantSends: 1},
		{name: "not an image", image: srv.URL + "/page.html", wantSends: 1},
		{name: "missing image", image: srv.URL + "/gone.jpg", wantSends: 1},
		{name: "photo rejected", image: srv.URL + "/ok.jpg", failPhoto: true, wantSends: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{failPhoto: tt.failPhoto}
			tg := newTestTelegram(t, bot, "42")

			err := tg.Publish(context.Background(), model.Item{Title: "T", ImageURL: tt.image})
			require.NoError(t, err)

			require.Len(t, bot.sent, tt.wantSends)
			msg, ok := bot.sent[len(bot.sent)-1].(tgbotapi.MessageConfig)
			require.True(t, ok)
			assert.Equal(t, int64(42), msg.ChatID)
			assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
		})
	}
}

func TestTelegram_PublishFailure(t *testing.T) {
	bot := &fakeBot{failText: true}
	tg := newTestTelegram(t, bot, "42")

	err := tg.Publish(context.Background(), model.Item{Title: "T"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotify)
}
