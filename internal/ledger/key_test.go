package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/animeTimes/internal/model"
)

func TestKeyFuncByName(t *testing.T) {
	for _, name := range []string{"", KeyTitle, KeyLink, KeyHash} {
		fn, err := KeyFuncByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn, name)
	}

	_, err := KeyFuncByName("guid")
	assert.Error(t, err)
}

func TestTitleKey(t *testing.T) {
	assert.Equal(t, "Frieren Season 2", TitleKey(model.Item{Title: "  Frieren Season 2\n"}))
}

func TestLinkKey(t *testing.T) {
	a := model.Item{Title: "x", Link: "HTTPS://www.AnimeNewsNetwork.com/news/2025-01-01/foo/.123#comments"}
	b := model.Item{Title: "y", Link: "https://www.animenewsnetwork.com/news/2025-01-01/foo/.123"}

	assert.Equal(t, LinkKey(a), LinkKey(b))
	assert.Equal(t, "title only", LinkKey(model.Item{Title: "title only"}))
}

func TestHashKey(t *testing.T) {
	item := model.Item{Title: "A", Link: "https://example.com/a", SourceName: "ann"}

	first := HashKey(item)
	assert.Len(t, first, 64)
	assert.Equal(t, first, HashKey(item), "stable across calls")

	other := item
	other.Link = "https://example.com/b"
	assert.NotEqual(t, first, HashKey(other))

	otherSource := item
	otherSource.SourceName = "rss"
	assert.NotEqual(t, first, HashKey(otherSource))
}
