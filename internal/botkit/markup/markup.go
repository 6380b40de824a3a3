// Package markup escapes text for the Telegram parse modes.
package markup

import "strings"

var (
	markdownReplacer = strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)

	// inside the (...) part of an inline link only these two are reserved
	markdownURLReplacer = strings.NewReplacer(
		"\\", "\\\\",
		")", "\\)",
	)

	htmlReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
)

// EscapeForMarkdown escapes every character reserved by MarkdownV2.
func EscapeForMarkdown(src string) string {
	return markdownReplacer.Replace(src)
}

// EscapeURLForMarkdown escapes a URL placed in a MarkdownV2 inline link.
func EscapeURLForMarkdown(src string) string {
	return markdownURLReplacer.Replace(src)
}

// EscapeForHTML escapes the three characters the HTML parse mode requires.
func EscapeForHTML(src string) string {
	return htmlReplacer.Replace(src)
}

// EscapeAttr escapes a value placed inside a double-quoted HTML attribute.
func EscapeAttr(src string) string {
	return strings.ReplaceAll(EscapeForHTML(src), `"`, "&quot;")
}
