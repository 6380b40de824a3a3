package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/0x0BSoD/animeTimes/internal/model"
)

// KeyFunc derives the ledger identifier of an item. It must return the same
// value for the same item on every run.
type KeyFunc func(item model.Item) string

const (
	KeyTitle = "title"
	KeyLink  = "link"
	KeyHash  = "hash"
)

// KeyFuncByName maps the ledger_key setting to a KeyFunc.
func KeyFuncByName(name string) (KeyFunc, error) {
	switch name {
	case "", KeyTitle:
		return TitleKey, nil
	case KeyLink:
		return LinkKey, nil
	case KeyHash:
		return HashKey, nil
	default:
		return nil, fmt.Errorf("unknown ledger key %q", name)
	}
}

// TitleKey uses the trimmed title. Existing posted_titles.json files store raw
// titles, so this keeps them valid across the switch.
func TitleKey(item model.Item) string {
	return strings.TrimSpace(item.Title)
}

// LinkKey uses the canonical article URL and falls back to the title for items
// without a link.
func LinkKey(item model.Item) string {
	link := canonicalLink(item.Link)
	if link == "" {
		return TitleKey(item)
	}
	return link
}

// HashKey is a hex SHA-256 over the source name and the link (or title).
func HashKey(item model.Item) string {
	sum := sha256.Sum256([]byte(item.SourceName + "\n" + LinkKey(item)))
	return hex.EncodeToString(sum[:])
}

func canonicalLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}
