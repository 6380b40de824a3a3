package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0 (compatible; animeTimes/1.0)"

// get performs a GET and returns the body of a 2xx response. The caller closes it.
func get(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	return resp.Body, nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// strippedText joins the trimmed text nodes below n without a separator.
func strippedText(n *html.Node) string {
	var b strings.Builder
	walkText(n, func(s string) {
		b.WriteString(strings.TrimSpace(s))
	})
	return b.String()
}

// rawText joins the text nodes below n as they are.
func rawText(n *html.Node) string {
	var b strings.Builder
	walkText(n, func(s string) {
		b.WriteString(s)
	})
	return b.String()
}

func walkText(n *html.Node, fn func(string)) {
	if n.Type == html.TextNode {
		fn(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}

// stripTags returns the text content of an HTML fragment.
func stripTags(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return fragment
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return rawText(doc)
}
