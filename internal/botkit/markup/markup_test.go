package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeForMarkdown(t *testing.T) {
	assert.Equal(t, `Re:Zero \- Season 3 \(2024\)\!`, EscapeForMarkdown("Re:Zero - Season 3 (2024)!"))
	assert.Equal(t, `a\_b\*c\.d`, EscapeForMarkdown("a_b*c.d"))
	assert.Equal(t, "plain", EscapeForMarkdown("plain"))
	assert.Equal(t, `C:\\anime\.txt`, EscapeForMarkdown(`C:\anime.txt`))
}

func TestEscapeURLForMarkdown(t *testing.T) {
	assert.Equal(t, `https://en.wikipedia.org/wiki/Dororo_(2019\)`, EscapeURLForMarkdown("https://en.wikipedia.org/wiki/Dororo_(2019)"))
	assert.Equal(t, `a\\b`, EscapeURLForMarkdown(`a\b`))
	assert.Equal(t, "https://youtu.be/x_y.z", EscapeURLForMarkdown("https://youtu.be/x_y.z"))
}

func TestEscapeForHTML(t *testing.T) {
	assert.Equal(t, "Tom &amp; Jerry &lt;3 &gt;", EscapeForHTML("Tom & Jerry <3 >"))
	assert.Equal(t, "&amp;amp;", EscapeForHTML("&amp;"), "already-escaped input is escaped again")
	assert.Equal(t, "", EscapeForHTML(""))
}

func TestEscapeAttr(t *testing.T) {
	assert.Equal(t, "https://x.test/?a=1&amp;b=&quot;2&quot;", EscapeAttr(`https://x.test/?a=1&b="2"`))
}
